package store

import (
	"context"
	"fmt"
	"log"

	"github.com/agentflow-go/agentflow/workflow"
	"github.com/agentflow-go/agentflow/workflow/emit"
)

// Downstream delivers a batch of outbox events to whatever consumes
// them: a message bus, a webhook, a log shipper. Returning an error
// leaves the batch marked pending so the next Flush retries it.
type Downstream func(ctx context.Context, events []emit.Event) error

// OutboxEmitter adapts a CheckpointStorage's transactional outbox
// (AppendEvent/PendingEvents/MarkEventsEmitted) into an emit.Emitter.
// The teacher's Store[S] defines the same outbox methods but never
// calls them from its engine; OutboxEmitter exists so the pattern is
// actually exercised here: Emit and EmitBatch durably append to
// storage first, and Flush drains pending rows through Downstream,
// marking only the ones Downstream acknowledges.
type OutboxEmitter struct {
	storage    workflow.CheckpointStorage
	downstream Downstream
	batchSize  int
}

// NewOutboxEmitter returns an OutboxEmitter that persists events to
// storage and, on Flush, delivers pending batches of up to batchSize
// events to downstream. A batchSize <= 0 defaults to 100.
func NewOutboxEmitter(storage workflow.CheckpointStorage, downstream Downstream, batchSize int) *OutboxEmitter {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &OutboxEmitter{storage: storage, downstream: downstream, batchSize: batchSize}
}

// Emit appends event to the outbox. AppendEvent failures are logged
// rather than returned since Emitter.Emit has no error return; a
// caller that needs a hard guarantee should use EmitBatch instead.
func (o *OutboxEmitter) Emit(event emit.Event) {
	if _, err := o.storage.AppendEvent(context.Background(), event); err != nil {
		log.Printf("outbox: append event failed: %v", err)
	}
}

// EmitBatch appends every event to the outbox, stopping at the first
// failure.
func (o *OutboxEmitter) EmitBatch(ctx context.Context, events []emit.Event) error {
	for _, event := range events {
		if _, err := o.storage.AppendEvent(ctx, event); err != nil {
			return fmt.Errorf("outbox: append event: %w", err)
		}
	}
	return nil
}

// Flush drains pending outbox rows in batches of batchSize, handing
// each batch to Downstream and marking it emitted only once Downstream
// returns successfully. Stops at the first batch Downstream fails to
// deliver, leaving it (and anything after it) pending for the next
// Flush call.
func (o *OutboxEmitter) Flush(ctx context.Context) error {
	for {
		pending, err := o.storage.PendingEvents(ctx, o.batchSize)
		if err != nil {
			return fmt.Errorf("outbox: load pending events: %w", err)
		}
		if len(pending) == 0 {
			return nil
		}

		if err := o.downstream(ctx, pending); err != nil {
			return fmt.Errorf("outbox: deliver batch: %w", err)
		}

		ids := make([]string, 0, len(pending))
		for _, ev := range pending {
			id, _ := ev.Meta["event_id"].(string)
			if id != "" {
				ids = append(ids, id)
			}
		}
		if err := o.storage.MarkEventsEmitted(ctx, ids); err != nil {
			return fmt.Errorf("outbox: mark emitted: %w", err)
		}

		if len(pending) < o.batchSize {
			return nil
		}
	}
}

var _ emit.Emitter = (*OutboxEmitter)(nil)
