package workflow

import (
	"errors"
	"strconv"
)

// Sentinel errors returned by the scheduler, codec and request subsystem.
// Wrap with fmt.Errorf("...: %w", ErrX) and unwrap with errors.Is/errors.As.
var (
	// ErrMaxStepsExceeded is returned when a run performs more supersteps
	// than WithMaxSteps allows without reaching completion.
	ErrMaxStepsExceeded = errors.New("workflow: max steps exceeded")

	// ErrBackpressure names a frontier queue that stayed full. No code path
	// in this package returns it: Frontier.Enqueue waits on a full queue
	// until room frees up or its context ends, and returns ctx.Err() then.
	ErrBackpressure = errors.New("workflow: backpressure timeout enqueuing work item")

	// ErrNoProgress is returned, wrapped in a RoutingError, when the
	// superstep loop cannot dequeue a work item the frontier reported as
	// queued while the run's context is still live. An empty frontier with
	// no pending request is not this error: the run ends as completed.
	ErrNoProgress = errors.New("workflow: no runnable executors and no pending requests")

	// ErrReplayMismatch is returned during strict replay when a live
	// executor invocation produces output that hashes differently than the
	// recorded output for the same (executor, attempt) pair.
	ErrReplayMismatch = errors.New("workflow: replay hash mismatch, executor is non-deterministic")

	// ErrIdempotencyViolation names the reuse of a checkpoint idempotency
	// key for a different step within the same run. No code path in this
	// package returns it; CheckpointStorage.CheckIdempotency reports whether
	// a key was already used as a bool.
	ErrIdempotencyViolation = errors.New("workflow: idempotency key already used for a different step")

	// ErrMaxAttemptsExceeded is returned when an executor's retry policy
	// exhausts its attempts without a non-error result.
	ErrMaxAttemptsExceeded = errors.New("workflow: max retry attempts exceeded")

	// ErrExecutorNotFound is returned when a message is routed to an
	// executor ID that was never registered with the builder.
	ErrExecutorNotFound = errors.New("workflow: executor not found")

	// ErrNoStartExecutor is returned by Build when no start executor was set.
	ErrNoStartExecutor = errors.New("workflow: no start executor configured")

	// ErrDuplicateExecutor is recorded by AddExecutor when the ID is already
	// registered and returned by Build, wrapped in a ValidationError.
	ErrDuplicateExecutor = errors.New("workflow: duplicate executor id")

	// ErrUnhandledMessageType is returned when an executor receives a
	// message whose payload type has no registered handler and the
	// executor has no catch-all handler.
	ErrUnhandledMessageType = errors.New("workflow: executor has no handler for message type")

	// ErrRequestNotPending is returned by SubmitResponse when the request
	// ID is unknown or has already been resolved.
	ErrRequestNotPending = errors.New("workflow: request id is not pending")

	// ErrResponseTypeMismatch is returned by SubmitResponse when the
	// supplied response value's type does not match the type the request
	// was opened with.
	ErrResponseTypeMismatch = errors.New("workflow: response type does not match pending request")

	// ErrCheckpointNotFound is returned, wrapped in a CheckpointError, by
	// SaveCheckpoint and SubmitResponse when the run ID has no active run
	// state. Store lookups that find nothing return
	// ErrCheckpointStorageNotFound instead.
	ErrCheckpointNotFound = errors.New("workflow: checkpoint not found")

	// ErrCheckpointIncompatible is returned by Resume when a checkpoint's
	// recorded WorkflowHash does not match the workflow it is being
	// resumed against, i.e. the graph changed shape since the checkpoint
	// was taken.
	ErrCheckpointIncompatible = errors.New("workflow: checkpoint is incompatible with this workflow's structure")
)

// ExecutorError wraps an error raised while running a specific executor,
// attaching the executor ID and superstep for diagnostics.
type ExecutorError struct {
	ExecutorID string
	Step       int
	Message    string
	Cause      error
}

func (e *ExecutorError) Error() string {
	prefix := e.ExecutorID + " (step " + strconv.Itoa(e.Step) + "): " + e.Message
	if e.Cause != nil {
		return prefix + ": " + e.Cause.Error()
	}
	return prefix
}

func (e *ExecutorError) Unwrap() error { return e.Cause }

// ValidationError reports a workflow graph that failed Build-time
// validation: an unset or unregistered start executor, a dangling edge
// endpoint, or a duplicate executor ID. Field names whichever part of the
// graph the problem was found on (an executor ID or "start executor").
type ValidationError struct {
	Field string
	Cause error
}

func (e *ValidationError) Error() string {
	return "workflow: validation failed for " + e.Field + ": " + e.Cause.Error()
}

func (e *ValidationError) Unwrap() error { return e.Cause }

// RoutingError reports a failure to deliver or invoke on an envelope once
// a run is underway: a message addressed to an unregistered executor, an
// executor with no handler for the payload's type, a run that exceeds
// WithMaxSteps, or a queued work item the frontier fails to yield.
type RoutingError struct {
	ExecutorID string
	Step       int
	Cause      error
}

func (e *RoutingError) Error() string {
	prefix := "workflow: routing failed"
	if e.ExecutorID != "" {
		prefix += " at " + e.ExecutorID + " (step " + strconv.Itoa(e.Step) + ")"
	}
	return prefix + ": " + e.Cause.Error()
}

func (e *RoutingError) Unwrap() error { return e.Cause }

// RequestError reports a problem resolving a request/response suspension:
// an unknown or already-resolved request ID, or a response value whose
// type doesn't match what the request was opened with.
type RequestError struct {
	RequestID string
	Cause     error
}

func (e *RequestError) Error() string {
	return "workflow: request " + e.RequestID + ": " + e.Cause.Error()
}

func (e *RequestError) Unwrap() error { return e.Cause }

// CheckpointError reports a problem saving, loading, or resuming a
// checkpoint: the run has no checkpoint, or a checkpoint's recorded
// WorkflowHash no longer matches the workflow being resumed.
type CheckpointError struct {
	RunID string
	Cause error
}

func (e *CheckpointError) Error() string {
	return "workflow: checkpoint for run " + e.RunID + ": " + e.Cause.Error()
}

func (e *CheckpointError) Unwrap() error { return e.Cause }
