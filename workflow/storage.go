package workflow

import (
	"context"
	"errors"

	"github.com/agentflow-go/agentflow/workflow/emit"
)

// ErrCheckpointStorageNotFound is returned by a CheckpointStorage
// implementation when a requested run or step does not exist.
var ErrCheckpointStorageNotFound = errors.New("workflow: checkpoint not found in storage")

// CheckpointStorage persists Checkpoints and the transactional event
// outbox across process restarts. It is the generalization of the
// teacher's Store[S] to a non-generic Checkpoint, and lives in the
// workflow package (rather than workflow/store) so that both it and
// Workflow can reference Checkpoint without an import cycle;
// workflow/store provides the concrete implementations.
type CheckpointStorage interface {
	// SaveCheckpoint persists cp. A checkpoint with the same RunID and
	// StepID is overwritten; a repeated IdempotencyKey is left to the
	// caller to detect via CheckIdempotency before calling SaveCheckpoint.
	SaveCheckpoint(ctx context.Context, cp Checkpoint) error

	// LoadCheckpoint retrieves the checkpoint for runID at stepID.
	LoadCheckpoint(ctx context.Context, runID string, stepID int) (Checkpoint, error)

	// LoadLatest retrieves the highest-StepID checkpoint saved for runID.
	LoadLatest(ctx context.Context, runID string) (Checkpoint, error)

	// LoadByLabel retrieves a checkpoint by its user-assigned label.
	LoadByLabel(ctx context.Context, runID, label string) (Checkpoint, error)

	// CheckIdempotency reports whether key has already been committed.
	CheckIdempotency(ctx context.Context, key string) (bool, error)

	// AppendEvent adds event to the transactional outbox and returns the
	// ID it was assigned, for later use with MarkEventsEmitted.
	AppendEvent(ctx context.Context, event emit.Event) (eventID string, err error)

	// PendingEvents returns up to limit outbox events not yet marked
	// emitted, implementing the transactional-outbox pattern so a crashed
	// emitter can resume without losing or duplicating events.
	PendingEvents(ctx context.Context, limit int) ([]emit.Event, error)

	// MarkEventsEmitted records that eventIDs were successfully emitted.
	MarkEventsEmitted(ctx context.Context, eventIDs []string) error
}

// PersistCheckpoint saves runID's current checkpoint (see SaveCheckpoint)
// into storage, computing the checkpoint first.
func (w *Workflow) PersistCheckpoint(ctx context.Context, storage CheckpointStorage, runID, label string) (Checkpoint, error) {
	cp, err := w.SaveCheckpoint(runID, label)
	if err != nil {
		return Checkpoint{}, err
	}
	if err := storage.SaveCheckpoint(ctx, cp); err != nil {
		return Checkpoint{}, err
	}
	return cp, nil
}

// ResumeFromStorage loads runID's latest checkpoint from storage and
// resumes it via Resume.
func (w *Workflow) ResumeFromStorage(ctx context.Context, storage CheckpointStorage, runID string) (*RunResult, error) {
	cp, err := storage.LoadLatest(ctx, runID)
	if err != nil {
		return nil, err
	}
	return w.Resume(ctx, cp)
}
