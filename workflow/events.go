package workflow

import (
	"time"

	"github.com/agentflow-go/agentflow/workflow/emit"
)

// Event message names emitted by the scheduler. Kept as constants so
// emitter implementations and tests can match on them without repeating
// string literals.
const (
	EventExecutorStart         = "executor_start"
	EventExecutorEnd           = "executor_end"
	EventError                 = "error"
	EventRoutingDecision       = "routing_decision"
	EventRequestInfo           = "request_info"
	EventResponseReceived      = "response_received"
	EventCheckpointSaved       = "checkpoint_saved"
	EventWorkflowCompleted     = "workflow_completed"
	EventSuperstepCompleted    = "superstep_completed"
	EventWorkflowOutput        = "workflow_output"
	EventWorkflowStatusChanged = "workflow_status_changed"
)

// RunStatus is one state a run passes through; WorkflowStatusChangedEvent
// reports transitions between them.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusSuspended RunStatus = "suspended"
	RunStatusCompleted RunStatus = "completed"
)

// WorkflowStatusChangedEvent reports a run settling into status at step.
// RunResult.CompletedEvent surfaces the one that closed out a completed
// run.
type WorkflowStatusChangedEvent struct {
	RunID  string
	Status RunStatus
	Step   int
}

// SuperstepCompletedEvent reports one superstep's batch of executor
// invocations finishing, before routing enqueues the next superstep's
// frontier.
type SuperstepCompletedEvent struct {
	RunID      string
	Step       int
	Dispatched int
}

// WorkflowOutputEvent reports one value yielded via
// WorkflowContext.YieldOutput, in the superstep it was produced.
type WorkflowOutputEvent struct {
	RunID  string
	Step   int
	Output any
}

func (w *Workflow) emitExecutorStart(runID, executorID string, step int) {
	w.cfg.emitter.Emit(emit.Event{
		RunID: runID, Step: step, ExecutorID: executorID, Msg: EventExecutorStart,
	})
}

func (w *Workflow) emitExecutorEnd(runID, executorID string, step int, latency time.Duration, outCount int) {
	w.cfg.emitter.Emit(emit.Event{
		RunID: runID, Step: step, ExecutorID: executorID, Msg: EventExecutorEnd,
		Meta: map[string]interface{}{
			"latency_ms":    latency.Milliseconds(),
			"messages_sent": outCount,
		},
	})
}

func (w *Workflow) emitError(runID, executorID string, step int, err error) {
	w.cfg.emitter.Emit(emit.Event{
		RunID: runID, Step: step, ExecutorID: executorID, Msg: EventError,
		Meta: map[string]interface{}{"error": err.Error()},
	})
}

func (w *Workflow) emitRoutingDecision(runID, executorID string, step int, to []string) {
	w.cfg.emitter.Emit(emit.Event{
		RunID: runID, Step: step, ExecutorID: executorID, Msg: EventRoutingDecision,
		Meta: map[string]interface{}{"targets": to},
	})
}

func (w *Workflow) emitRequestInfo(runID, executorID string, step int, requestID string) {
	w.cfg.emitter.Emit(emit.Event{
		RunID: runID, Step: step, ExecutorID: executorID, Msg: EventRequestInfo,
		Meta: map[string]interface{}{"request_id": requestID},
	})
}

func (w *Workflow) emitResponseReceived(runID, executorID string, step int, requestID string) {
	w.cfg.emitter.Emit(emit.Event{
		RunID: runID, Step: step, ExecutorID: executorID, Msg: EventResponseReceived,
		Meta: map[string]interface{}{"request_id": requestID},
	})
}

func (w *Workflow) emitCheckpointSaved(runID string, step int, label string) {
	w.cfg.emitter.Emit(emit.Event{
		RunID: runID, Step: step, Msg: EventCheckpointSaved,
		Meta: map[string]interface{}{"label": label},
	})
}

func (w *Workflow) emitWorkflowCompleted(runID string, step int) {
	w.cfg.emitter.Emit(emit.Event{
		RunID: runID, Step: step, Msg: EventWorkflowCompleted,
	})
}

func (w *Workflow) emitSuperstepCompleted(runID string, step, dispatched int) {
	w.cfg.emitter.Emit(emit.Event{
		RunID: runID, Step: step, Msg: EventSuperstepCompleted,
		Meta: map[string]interface{}{"event": SuperstepCompletedEvent{RunID: runID, Step: step, Dispatched: dispatched}},
	})
}

func (w *Workflow) emitWorkflowOutput(runID string, step int, output any) {
	w.cfg.emitter.Emit(emit.Event{
		RunID: runID, Step: step, Msg: EventWorkflowOutput,
		Meta: map[string]interface{}{"event": WorkflowOutputEvent{RunID: runID, Step: step, Output: output}},
	})
}

func (w *Workflow) emitStatusChanged(runID string, step int, status RunStatus) WorkflowStatusChangedEvent {
	event := WorkflowStatusChangedEvent{RunID: runID, Status: status, Step: step}
	w.cfg.emitter.Emit(emit.Event{
		RunID: runID, Step: step, Msg: EventWorkflowStatusChanged,
		Meta: map[string]interface{}{"event": event},
	})
	return event
}
