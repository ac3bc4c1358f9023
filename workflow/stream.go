package workflow

import (
	"context"
	"sync"

	"github.com/agentflow-go/agentflow/workflow/emit"
)

// streamRouter wraps a workflow's configured Emitter and additionally fans
// events out to any channel subscribed for a specific run. RunStream and
// SendResponsesStreaming use it to expose a live event feed without
// replacing the workflow's configured observability backend (log, OTel,
// buffered history) with something run-scoped.
type streamRouter struct {
	base emit.Emitter

	mu   sync.Mutex
	subs map[string][]chan emit.Event
}

func newStreamRouter(base emit.Emitter) *streamRouter {
	return &streamRouter{base: base, subs: make(map[string][]chan emit.Event)}
}

func (r *streamRouter) subscribe(runID string, buffer int) (<-chan emit.Event, func()) {
	ch := make(chan emit.Event, buffer)
	r.mu.Lock()
	r.subs[runID] = append(r.subs[runID], ch)
	r.mu.Unlock()

	unsubscribe := func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		list := r.subs[runID]
		for i, c := range list {
			if c == ch {
				r.subs[runID] = append(list[:i], list[i+1:]...)
				break
			}
		}
		if len(r.subs[runID]) == 0 {
			delete(r.subs, runID)
		}
		close(ch)
	}
	return ch, unsubscribe
}

func (r *streamRouter) Emit(event emit.Event) {
	r.base.Emit(event)
	r.mu.Lock()
	chans := append([]chan emit.Event(nil), r.subs[event.RunID]...)
	r.mu.Unlock()
	for _, ch := range chans {
		select {
		case ch <- event:
		default: // a slow subscriber must never stall the run
		}
	}
}

func (r *streamRouter) EmitBatch(ctx context.Context, events []emit.Event) error {
	for _, event := range events {
		r.Emit(event)
	}
	return nil
}

func (r *streamRouter) Flush(ctx context.Context) error { return r.base.Flush(ctx) }

// StreamResult carries the outcome of a run driven through RunStream or
// SendResponsesStreaming, delivered once the run settles (completes,
// suspends, or fails) and its event channel is closed.
type StreamResult struct {
	Result *RunResult
	Err    error
}

// RunStream starts a new run exactly as Run does, but returns immediately
// with a channel of events observed during the run instead of blocking
// until it settles. The event channel closes, and result receives exactly
// one StreamResult, once the run next completes or suspends.
func (w *Workflow) RunStream(ctx context.Context, runID string, input any) (<-chan emit.Event, <-chan StreamResult) {
	events, unsubscribe := w.router.subscribe(runID, 64)
	result := make(chan StreamResult, 1)
	go func() {
		defer unsubscribe()
		defer close(result)
		r, err := w.Run(ctx, runID, input)
		result <- StreamResult{Result: r, Err: err}
	}()
	return events, result
}

// SendResponsesStreaming submits responses one at a time, in map iteration
// order, against runID's open requests, and streams the events that every
// submission's resumed superstep loop produces. Use SubmitResponse
// instead when only the final RunResult is needed.
func (w *Workflow) SendResponsesStreaming(ctx context.Context, runID string, responses map[string]any) (<-chan emit.Event, <-chan StreamResult) {
	events, unsubscribe := w.router.subscribe(runID, 64)
	result := make(chan StreamResult, 1)
	go func() {
		defer unsubscribe()
		defer close(result)
		var (
			r   *RunResult
			err error
		)
		for requestID, response := range responses {
			r, err = w.SubmitResponse(ctx, runID, requestID, response)
			if err != nil {
				result <- StreamResult{Err: err}
				return
			}
		}
		result <- StreamResult{Result: r, Err: err}
	}()
	return events, result
}
