package workflow

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// Workflow is an immutable, built graph of executors ready to run. Create
// one with NewBuilder()...Build(). A Workflow may be run multiple times
// concurrently under different run IDs; per-run state lives in an
// activeRun, not on the Workflow itself.
type Workflow struct {
	executors    map[string]Executor
	edgesByFrom  map[string][]Edge
	startID      string
	cfg          engineConfig
	typeRegistry *TypeRegistry
	codec        *Codec
	hash         string
	router       *streamRouter

	mu     sync.Mutex
	active map[string]*activeRun
}

// WorkflowHash returns this workflow's structural identity, a SHA-256
// digest over its sorted executor IDs and edge tuples. Checkpoints record
// the hash of the workflow that produced them; Resume rejects a checkpoint
// whose hash doesn't match.
func (w *Workflow) WorkflowHash() string { return w.hash }

// activeRun is the live state of one in-progress or suspended run: enough
// to resume a superstep loop from wherever it left off, either because a
// superstep just finished or because the run is blocked on a pending
// request/response suspension.
type activeRun struct {
	rc       *RunnerContext
	frontier *Frontier
	step     int
}

// RunResult summarizes the outcome of Run, Resume, or SubmitResponse: the
// outputs yielded so far, and whether the run completed or is suspended on
// pending requests. These calls block until one of the two, so a RunResult
// never describes a run that is between supersteps.
type RunResult struct {
	RunID     string
	Outputs   []any
	Completed bool
	Suspended bool
	Pending   []RequestRecord
	Steps     int
	Usage     Usage

	statusEvent *WorkflowStatusChangedEvent
}

// CompletedEvent returns the WorkflowStatusChangedEvent that closed out
// this run, or nil if the run is still suspended (no terminal status has
// been reached yet).
func (r *RunResult) CompletedEvent() *WorkflowStatusChangedEvent {
	if r == nil {
		return nil
	}
	return r.statusEvent
}

func (w *Workflow) registerActive(ar *activeRun) {
	if w.active == nil {
		w.active = make(map[string]*activeRun)
	}
	w.mu.Lock()
	w.active[ar.rc.RunID] = ar
	w.mu.Unlock()
}

func (w *Workflow) getActive(runID string) (*activeRun, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	ar, ok := w.active[runID]
	return ar, ok
}

func (w *Workflow) dropActive(runID string) {
	w.mu.Lock()
	delete(w.active, runID)
	w.mu.Unlock()
}

// Run starts a new run with runID, delivering input to the start executor,
// and drives supersteps until the workflow completes or suspends on a
// request/response gate. It blocks for the duration.
func (w *Workflow) Run(ctx context.Context, runID string, input any) (*RunResult, error) {
	rc := newRunnerContext(runID)
	rc.replayMode = w.cfg.replayMode
	rc.strictReplay = w.cfg.strictReplay
	frontier := NewFrontier(w.cfg.queueDepth)
	ar := &activeRun{rc: rc, frontier: frontier, step: 0}

	initial := WorkItem{
		StepID:           0,
		OrderKey:         computeOrderKey("__start__", 0),
		ExecutorID:       w.startID,
		Envelope:         Envelope{SourceID: "__start__", Payload: input, Step: 0},
		ParentExecutorID: "__start__",
	}
	if err := frontier.Enqueue(ctx, initial); err != nil {
		return nil, fmt.Errorf("workflow: enqueue initial message: %w", err)
	}

	w.registerActive(ar)
	return w.runLoop(ctx, ar)
}

// SubmitResponse resolves the pending request requestID on runID with
// response, invokes the opening executor's response handler, and resumes
// the superstep loop from there. It blocks until the run next completes or
// suspends again.
func (w *Workflow) SubmitResponse(ctx context.Context, runID, requestID string, response any) (*RunResult, error) {
	ar, ok := w.getActive(runID)
	if !ok {
		return nil, &CheckpointError{RunID: runID, Cause: fmt.Errorf("no active run state: %w", ErrCheckpointNotFound)}
	}

	req, err := ar.rc.resolve(requestID, response)
	if err != nil {
		return nil, err
	}

	ex, ok := w.executors[req.executorID]
	if !ok {
		return nil, &RoutingError{ExecutorID: req.executorID, Step: ar.step, Cause: ErrExecutorNotFound}
	}
	rhp, ok := ex.(responseHandlerProvider)
	if !ok {
		return nil, &RoutingError{ExecutorID: req.executorID, Step: ar.step, Cause: fmt.Errorf("no response handler: %w", ErrUnhandledMessageType)}
	}

	wctx := newWorkflowContext(ar.rc, req.executorID, ar.step, "")
	if err := rhp.invokeResponseHandler(wctx, req.payload, response); err != nil {
		err = &ExecutorError{ExecutorID: req.executorID, Step: ar.step, Message: "response handler failed", Cause: err}
		return nil, err
	}
	w.emitResponseReceived(runID, req.executorID, ar.step, requestID)

	outgoing, yielded, opened := wctx.drain()
	for _, o := range opened {
		w.openRequest(ar, o)
	}
	for _, env := range outgoing {
		if err := w.route(ctx, ar.rc.RunID, ar.frontier, env, ar.step+1); err != nil {
			return nil, err
		}
	}

	result, err := w.runLoop(ctx, ar)
	if err != nil {
		return nil, err
	}
	result.Outputs = append(append([]any{}, yielded...), result.Outputs...)
	return result, nil
}

// openRequest registers a newly opened request against ar's RunnerContext
// and arms its TTL so it auto-releases rather than leaking if nobody ever
// answers it, the same safeguard oasis's suspend.go applies per-agent.
func (w *Workflow) openRequest(ar *activeRun, req *pendingRequest) {
	ttl := w.cfg.suspendTTL
	ar.rc.register(req, ttl, func(id string) {
		ar.rc.release(id)
	})
}

// runLoop drives BSP-style supersteps: every item currently queued in
// ar.frontier is dispatched concurrently, the loop joins on all of them,
// their outgoing messages are routed into the next superstep's frontier,
// and only then does the next superstep begin. This keeps two runs fed
// identical inputs visiting executors in the same relative order
// regardless of goroutine scheduling.
func (w *Workflow) runLoop(ctx context.Context, ar *activeRun) (*RunResult, error) {
	if w.cfg.runWallClockBudget > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.cfg.runWallClockBudget)
		defer cancel()
	}

	var outputs []any

	for {
		batchSize := ar.frontier.Len()
		if batchSize == 0 {
			pending := ar.rc.Pending()
			if len(pending) > 0 {
				w.emitStatusChanged(ar.rc.RunID, ar.step, RunStatusSuspended)
				return &RunResult{
					RunID: ar.rc.RunID, Outputs: outputs, Suspended: true, Pending: pending, Steps: ar.step,
					Usage: ar.rc.totalUsage(),
				}, nil
			}
			w.dropActive(ar.rc.RunID)
			w.emitWorkflowCompleted(ar.rc.RunID, ar.step)
			event := w.emitStatusChanged(ar.rc.RunID, ar.step, RunStatusCompleted)
			return &RunResult{
				RunID: ar.rc.RunID, Outputs: outputs, Completed: true, Steps: ar.step,
				Usage: ar.rc.totalUsage(), statusEvent: &event,
			}, nil
		}

		if w.cfg.maxSteps > 0 && ar.step >= w.cfg.maxSteps {
			w.dropActive(ar.rc.RunID)
			return nil, &RoutingError{Step: ar.step, Cause: fmt.Errorf("run %q: %w", ar.rc.RunID, ErrMaxStepsExceeded)}
		}

		items := make([]WorkItem, 0, batchSize)
		for i := 0; i < batchSize; i++ {
			item, ok := ar.frontier.Dequeue(ctx)
			if !ok {
				w.dropActive(ar.rc.RunID)
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				return nil, &RoutingError{Step: ar.step, Cause: ErrNoProgress}
			}
			items = append(items, item)
		}

		results := make([]stepResult, len(items))
		maxConcurrent := w.cfg.maxConcurrentExecutors
		if maxConcurrent <= 0 {
			maxConcurrent = 8
		}
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(maxConcurrent)
		for i, item := range items {
			i, item := i, item
			g.Go(func() error {
				results[i] = w.invoke(gctx, ar.rc, item, ar.step)
				return results[i].err
			})
		}
		if err := g.Wait(); err != nil {
			w.dropActive(ar.rc.RunID)
			return nil, err
		}

		for _, res := range results {
			outputs = append(outputs, res.yielded...)
			for _, out := range res.yielded {
				w.emitWorkflowOutput(ar.rc.RunID, ar.step, out)
			}
			for _, req := range res.opened {
				w.openRequest(ar, req)
				w.emitRequestInfo(ar.rc.RunID, req.executorID, ar.step, req.id)
			}
		}
		for _, res := range results {
			for _, env := range res.outgoing {
				if err := w.route(ctx, ar.rc.RunID, ar.frontier, env, ar.step+1); err != nil {
					w.dropActive(ar.rc.RunID)
					return nil, err
				}
			}
		}
		w.emitSuperstepCompleted(ar.rc.RunID, ar.step, len(items))

		ar.step++
	}
}

type stepResult struct {
	outgoing []Envelope
	yielded  []any
	opened   []*pendingRequest
	err      error
}

func (w *Workflow) policyFor(ex Executor) NodePolicy {
	if pp, ok := ex.(PolicyProvider); ok {
		return pp.Policy()
	}
	return NodePolicy{}
}

func (w *Workflow) invoke(ctx context.Context, rc *RunnerContext, item WorkItem, step int) stepResult {
	ex, ok := w.executors[item.ExecutorID]
	if !ok {
		return stepResult{err: &RoutingError{ExecutorID: item.ExecutorID, Step: step, Cause: ErrExecutorNotFound}}
	}

	w.emitExecutorStart(rc.RunID, item.ExecutorID, step)
	start := time.Now()

	policy := w.policyFor(ex)
	timeout := policy.Timeout
	if timeout == 0 {
		timeout = w.cfg.defaultTimeout
	}

	attempt := item.Attempt
	var err error
	var wctx *WorkflowContext
	for {
		invCtx := ctx
		var cancel context.CancelFunc
		if timeout > 0 {
			invCtx, cancel = context.WithTimeout(ctx, timeout)
		}
		wctx = newWorkflowContext(rc, item.ExecutorID, step, item.Envelope.SourceID)
		err = ex.Dispatch(invCtx, wctx, item.Envelope)
		if cancel != nil {
			cancel()
		}

		if err == nil || policy.RetryPolicy == nil {
			break
		}
		rp := policy.RetryPolicy
		if vErr := rp.Validate(); vErr != nil {
			break
		}
		if rp.Retryable == nil || !rp.Retryable(err) {
			break
		}
		if attempt+1 >= rp.MaxAttempts {
			err = fmt.Errorf("%w after %d attempts: %w", ErrMaxAttemptsExceeded, attempt+1, err)
			break
		}
		if w.cfg.metrics != nil {
			w.cfg.metrics.IncrementRetries(rc.RunID, item.ExecutorID)
		}
		delay := computeBackoff(attempt, rp.BaseDelay, rp.MaxDelay, nil)
		time.Sleep(delay)
		attempt++
	}

	latency := time.Since(start)
	if err != nil {
		w.emitError(rc.RunID, item.ExecutorID, step, err)
		if w.cfg.metrics != nil {
			w.cfg.metrics.RecordStepLatency(rc.RunID, item.ExecutorID, latency, "error")
		}
		return stepResult{err: &ExecutorError{ExecutorID: item.ExecutorID, Step: step, Message: "dispatch failed", Cause: err}}
	}

	outgoing, yielded, opened := wctx.drain()
	w.emitExecutorEnd(rc.RunID, item.ExecutorID, step, latency, len(outgoing))
	if w.cfg.metrics != nil {
		w.cfg.metrics.RecordStepLatency(rc.RunID, item.ExecutorID, latency, "success")
	}
	return stepResult{outgoing: outgoing, yielded: yielded, opened: opened}
}

// route evaluates env against every outgoing edge of env.SourceID (or,
// when env.TargetID is set, bypasses edges entirely) and enqueues the
// resulting WorkItems for nextStep. Switch-case edges sharing a Group apply
// first-match-wins in registration order; multi-selection edges sharing a
// Group resolve their shared Selector once against the whole group's
// target set and forward to whichever subset it returns.
func (w *Workflow) route(ctx context.Context, runID string, frontier *Frontier, env Envelope, nextStep int) error {
	if env.TargetID != "" {
		item := WorkItem{
			StepID:           nextStep,
			OrderKey:         computeOrderKey(env.SourceID, 0),
			ExecutorID:       env.TargetID,
			Envelope:         Envelope{SourceID: env.SourceID, TargetID: env.TargetID, Payload: env.Payload, TraceID: env.TraceID, Step: nextStep},
			ParentExecutorID: env.SourceID,
		}
		return frontier.Enqueue(ctx, item)
	}

	edges := w.edgesByFrom[env.SourceID]
	matchedGroup := make(map[string]bool)
	selected := make(map[string]map[string]bool) // group -> selected target IDs
	for _, e := range edges {
		if e.Kind != EdgeMultiSelect || selected[e.Group] != nil {
			continue
		}
		ids := make([]string, 0, len(edges))
		for _, ge := range edges {
			if ge.Kind == EdgeMultiSelect && ge.Group == e.Group {
				ids = append(ids, ge.To)
			}
		}
		picked := make(map[string]bool, len(ids))
		if e.Selector != nil {
			for _, id := range e.Selector(env.Payload, ids) {
				picked[id] = true
			}
		}
		selected[e.Group] = picked
	}

	var targets []string
	for idx, e := range edges {
		if e.Kind == EdgeSwitchCase {
			if matchedGroup[e.Group] {
				continue
			}
			if !e.Matches(env.Payload) {
				continue
			}
			matchedGroup[e.Group] = true
		} else if e.Kind == EdgeMultiSelect {
			if !selected[e.Group][e.To] {
				continue
			}
		} else if !e.Matches(env.Payload) {
			continue
		}

		item := WorkItem{
			StepID:           nextStep,
			OrderKey:         computeOrderKey(env.SourceID, idx),
			ExecutorID:       e.To,
			Envelope:         Envelope{SourceID: env.SourceID, Payload: env.Payload, TraceID: env.TraceID, Step: nextStep},
			ParentExecutorID: env.SourceID,
			EdgeIndex:        idx,
		}
		if err := frontier.Enqueue(ctx, item); err != nil {
			return err
		}
		targets = append(targets, e.To)
	}
	if len(targets) > 0 {
		w.emitRoutingDecision(runID, env.SourceID, nextStep-1, targets)
	}
	return nil
}

// SaveCheckpoint captures the current state of an in-progress or suspended
// run as a Checkpoint. The run must still be active (not yet completed).
func (w *Workflow) SaveCheckpoint(runID, label string) (Checkpoint, error) {
	ar, ok := w.getActive(runID)
	if !ok {
		return Checkpoint{}, &CheckpointError{RunID: runID, Cause: ErrCheckpointNotFound}
	}
	state := ar.rc.State.Snapshot()
	frontier := ar.frontier.Snapshot()
	pending := ar.rc.Pending()
	key, err := computeIdempotencyKey(runID, ar.step, frontier, state)
	if err != nil {
		return Checkpoint{}, err
	}
	cp := Checkpoint{
		RunID:           runID,
		StepID:          ar.step,
		State:           state,
		Frontier:        frontier,
		PendingRequests: pending,
		RecordedIOs:     append([]RecordedIO(nil), ar.rc.recordedIOs...),
		IdempotencyKey:  key,
		WorkflowHash:    w.hash,
		Timestamp:       time.Now(),
		Label:           label,
	}
	w.emitCheckpointSaved(runID, ar.step, label)
	return cp, nil
}

// Resume rebuilds an activeRun from a Checkpoint and drives the superstep
// loop forward from where it left off. Pending requests recorded in the
// checkpoint are re-armed with a fresh TTL rather than resuming their
// original deadline, since wall-clock time spent while the process was
// down should not count against the external responder.
func (w *Workflow) Resume(ctx context.Context, cp Checkpoint) (*RunResult, error) {
	if cp.WorkflowHash != "" && cp.WorkflowHash != w.hash {
		return nil, &CheckpointError{
			RunID: cp.RunID,
			Cause: fmt.Errorf("checkpoint hash %q does not match workflow hash %q: %w", cp.WorkflowHash, w.hash, ErrCheckpointIncompatible),
		}
	}

	rc := newRunnerContext(cp.RunID)
	rc.State.Restore(cp.State)
	rc.replayMode = w.cfg.replayMode
	rc.strictReplay = w.cfg.strictReplay
	for _, rec := range cp.RecordedIOs {
		rc.recordedIOs = append(rc.recordedIOs, rec)
		rc.replayIndex[recordedIOKey(rec.ExecutorID, rec.Attempt)] = rec
	}

	frontier := NewFrontier(w.cfg.queueDepth)
	frontier.Restore(cp.Frontier)

	ar := &activeRun{rc: rc, frontier: frontier, step: cp.StepID}
	w.registerActive(ar)

	for _, rec := range cp.PendingRequests {
		req := &pendingRequest{
			id:           rec.ID,
			executorID:   rec.ExecutorID,
			payload:      rec.Payload,
			openedAtStep: rec.OpenedAtStep,
		}
		w.openRequest(ar, req)
	}

	return w.runLoop(ctx, ar)
}
