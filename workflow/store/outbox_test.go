package store

import (
	"context"
	"errors"
	"testing"

	"github.com/agentflow-go/agentflow/workflow/emit"
)

func TestOutboxEmitter_FlushDeliversAndMarksEmitted(t *testing.T) {
	storage := NewMemoryStore()
	ctx := context.Background()

	var delivered []emit.Event
	downstream := func(_ context.Context, events []emit.Event) error {
		delivered = append(delivered, events...)
		return nil
	}

	outbox := NewOutboxEmitter(storage, downstream, 10)
	outbox.Emit(emit.Event{RunID: "run-1", Msg: "executor started"})
	outbox.Emit(emit.Event{RunID: "run-1", Msg: "executor finished"})

	if err := outbox.Flush(ctx); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if len(delivered) != 2 {
		t.Fatalf("expected 2 delivered events, got %d", len(delivered))
	}

	pending, err := storage.PendingEvents(ctx, 10)
	if err != nil {
		t.Fatalf("pending events: %v", err)
	}
	if len(pending) != 0 {
		t.Errorf("expected no pending events after flush, got %d", len(pending))
	}
}

func TestOutboxEmitter_FailedDeliveryLeavesEventsPending(t *testing.T) {
	storage := NewMemoryStore()
	ctx := context.Background()

	boom := errors.New("downstream unavailable")
	outbox := NewOutboxEmitter(storage, func(context.Context, []emit.Event) error {
		return boom
	}, 10)

	outbox.Emit(emit.Event{RunID: "run-1", Msg: "executor started"})

	if err := outbox.Flush(ctx); !errors.Is(err, boom) {
		t.Fatalf("expected flush to surface downstream error, got %v", err)
	}

	pending, err := storage.PendingEvents(ctx, 10)
	if err != nil {
		t.Fatalf("pending events: %v", err)
	}
	if len(pending) != 1 {
		t.Errorf("expected event to remain pending after failed delivery, got %d", len(pending))
	}
}

func TestOutboxEmitter_FlushInBatches(t *testing.T) {
	storage := NewMemoryStore()
	ctx := context.Background()

	var batchSizes []int
	outbox := NewOutboxEmitter(storage, func(_ context.Context, events []emit.Event) error {
		batchSizes = append(batchSizes, len(events))
		return nil
	}, 2)

	for i := 0; i < 5; i++ {
		outbox.Emit(emit.Event{RunID: "run-1", Msg: "e"})
	}

	if err := outbox.Flush(ctx); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if len(batchSizes) != 3 {
		t.Fatalf("expected 3 batches (2, 2, 1), got %d: %v", len(batchSizes), batchSizes)
	}
	if batchSizes[0] != 2 || batchSizes[1] != 2 || batchSizes[2] != 1 {
		t.Errorf("unexpected batch sizes: %v", batchSizes)
	}
}

func TestOutboxEmitter_EmitBatch(t *testing.T) {
	storage := NewMemoryStore()
	ctx := context.Background()

	outbox := NewOutboxEmitter(storage, func(context.Context, []emit.Event) error { return nil }, 10)

	err := outbox.EmitBatch(ctx, []emit.Event{
		{RunID: "run-1", Msg: "a"},
		{RunID: "run-1", Msg: "b"},
	})
	if err != nil {
		t.Fatalf("emit batch: %v", err)
	}

	pending, err := storage.PendingEvents(ctx, 10)
	if err != nil {
		t.Fatalf("pending events: %v", err)
	}
	if len(pending) != 2 {
		t.Errorf("expected 2 pending events, got %d", len(pending))
	}
}
