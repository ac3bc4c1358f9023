package workflow

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sync"
)

// RunnerContext holds the state shared by every executor invocation within
// one run: the run's identity, its SharedState side-channel, and the
// registry of in-flight request/response suspensions. The scheduler owns
// one RunnerContext per run and hands each executor invocation a
// WorkflowContext that wraps it with invocation-local bookkeeping.
type RunnerContext struct {
	RunID string
	State *SharedState

	mu       sync.Mutex
	requests map[string]*pendingRequest
	usage    Usage

	replayMode   bool
	strictReplay bool
	recordedIOs  []RecordedIO
	replayIndex  map[string]RecordedIO
}

// Usage totals token consumption across a run, independent of the dollar
// cost CostTracker attributes to those tokens. AgentExecutor reports into
// it via WorkflowContext.RecordUsage; Workflow.Run/Resume/SubmitResponse
// surface the running total on the returned RunResult.
type Usage struct {
	InputTokens  int64
	OutputTokens int64
}

func (rc *RunnerContext) addUsage(inputTokens, outputTokens int) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.usage.InputTokens += int64(inputTokens)
	rc.usage.OutputTokens += int64(outputTokens)
}

func (rc *RunnerContext) totalUsage() Usage {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return rc.usage
}

func newRunnerContext(runID string) *RunnerContext {
	return &RunnerContext{
		RunID:       runID,
		State:       NewSharedState(),
		requests:    make(map[string]*pendingRequest),
		replayIndex: make(map[string]RecordedIO),
	}
}

// WorkflowContext is the API surface handed to an executor's handler. It
// lets the handler send messages along outgoing edges or directly to a
// named executor, yield a final workflow output, open a request/response
// suspension, and read or write run-scoped SharedState.
//
// A WorkflowContext is valid only for the duration of the handler call that
// received it; the scheduler collects its outgoing/yielded/request side
// effects once the handler returns and discards the context.
type WorkflowContext struct {
	rc             *RunnerContext
	executorID     string
	step           int
	incomingSource string

	mu       sync.Mutex
	outgoing []Envelope
	yielded  []any
	opened   []*pendingRequest
}

func newWorkflowContext(rc *RunnerContext, executorID string, step int, incomingSource string) *WorkflowContext {
	return &WorkflowContext{rc: rc, executorID: executorID, step: step, incomingSource: incomingSource}
}

// RunID returns the identifier of the run currently executing.
func (c *WorkflowContext) RunID() string { return c.rc.RunID }

// ExecutorID returns the ID of the executor this context was created for.
func (c *WorkflowContext) ExecutorID() string { return c.executorID }

// Step returns the superstep this invocation is running within.
func (c *WorkflowContext) Step() int { return c.step }

// IncomingSource returns the executor ID that produced the envelope this
// invocation is handling: "__start__" for the run's initial input, and ""
// for a response handler invocation (neither crosses an edge from another
// executor).
// FanInExecutor uses this to tell which declared upstream source a message
// arrived from.
func (c *WorkflowContext) IncomingSource() string { return c.incomingSource }

// State returns the run's SharedState.
func (c *WorkflowContext) State() *SharedState { return c.rc.State }

// RecordUsage adds to the run's token usage total, surfaced on the
// eventual RunResult.Usage. AgentExecutor calls this once per chat model
// reply, alongside (not instead of) any configured CostTracker, which
// attributes a dollar cost to the same tokens.
func (c *WorkflowContext) RecordUsage(inputTokens, outputTokens int) {
	c.rc.addUsage(inputTokens, outputTokens)
}

// SendMessage emits payload for delivery along the current executor's
// outgoing edges: direct edges always fire, conditional/switch edges fire
// when their predicate matches, and fan-out edges all fire concurrently in
// the next superstep.
func (c *WorkflowContext) SendMessage(payload any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.outgoing = append(c.outgoing, Envelope{SourceID: c.executorID, Payload: payload, Step: c.step})
	return nil
}

// SendMessageTo delivers payload directly to targetID, bypassing edge
// evaluation. Used by response handlers that resume a specific downstream
// executor rather than re-evaluating routing.
func (c *WorkflowContext) SendMessageTo(targetID string, payload any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.outgoing = append(c.outgoing, Envelope{
		SourceID: c.executorID, TargetID: targetID, Payload: payload, Step: c.step,
	})
	return nil
}

// YieldOutput marks payload as one of the workflow's final outputs. A run
// may yield any number of outputs across its executors; Workflow.Run
// collects them all.
func (c *WorkflowContext) YieldOutput(payload any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.yielded = append(c.yielded, payload)
	return nil
}

// RequestInfo suspends progress on this logical thread of the workflow
// until a matching response is submitted via Workflow.SubmitResponse.
// responseExample is a zero value of the type the eventual response must
// have (e.g. MyResponse{}); its type is recorded so SubmitResponse can
// reject a mismatched response. RequestInfo returns the request's ID, which
// the caller must surface to whatever external system will answer it.
func (c *WorkflowContext) RequestInfo(payload any, responseExample any) (string, error) {
	req := &pendingRequest{
		id:           newRequestID(),
		executorID:   c.executorID,
		payload:      payload,
		responseType: reflect.TypeOf(responseExample),
		openedAtStep: c.step,
	}
	c.mu.Lock()
	c.opened = append(c.opened, req)
	c.mu.Unlock()
	return req.id, nil
}

// Recordable wraps a non-deterministic side effect (an API call, a
// database read) so it can be replayed later without re-invoking it.
// attempt distinguishes retries of the same executor within one run.
// request is recorded alongside the response purely for operator
// inspection; it plays no role in matching.
//
// On a run started with WithReplayMode, if a recording exists for this
// executor and attempt, call is skipped and the recorded response is
// returned directly. Otherwise call runs live and its result is
// recorded into the run's checkpoint for future replay. Under
// WithStrictReplay, a live call made despite an existing recording
// (because the caller chose not to skip it) whose response hash
// disagrees with the recording returns ErrReplayMismatch.
func (c *WorkflowContext) Recordable(attempt int, request any, call func() (any, error)) (any, error) {
	key := recordedIOKey(c.executorID, attempt)

	if c.rc.replayMode {
		if rec, ok := c.rc.replayIndex[key]; ok {
			var result any
			if err := json.Unmarshal(rec.Response, &result); err != nil {
				return nil, fmt.Errorf("workflow: decode recorded response for %q: %w", c.executorID, err)
			}
			return result, nil
		}
	}

	result, err := call()
	if err != nil {
		return nil, err
	}

	recorded, recErr := newRecordedIO(c.executorID, attempt, request, result)
	if recErr != nil {
		return result, fmt.Errorf("workflow: record io for %q: %w", c.executorID, recErr)
	}

	if c.rc.strictReplay {
		if prior, ok := c.rc.replayIndex[key]; ok && prior.Hash != recorded.Hash {
			return nil, fmt.Errorf("%s: %w", c.executorID, ErrReplayMismatch)
		}
	}

	c.rc.mu.Lock()
	c.rc.recordedIOs = append(c.rc.recordedIOs, recorded)
	c.rc.replayIndex[key] = recorded
	c.rc.mu.Unlock()

	return result, nil
}

// drain returns and clears the envelopes, outputs, and newly opened
// requests accumulated by this invocation. Called by the scheduler once
// the handler returns.
func (c *WorkflowContext) drain() ([]Envelope, []any, []*pendingRequest) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out, yielded, opened := c.outgoing, c.yielded, c.opened
	c.outgoing, c.yielded, c.opened = nil, nil, nil
	return out, yielded, opened
}
