package workflow

import (
	"context"
	"fmt"
	"sync"
)

// FanInExecutor joins one message from each of a declared set of upstream
// executors — typically the branches of a prior fan-out edge — before
// combining them with combine and forwarding the result downstream. Plain
// edges alone only express "deliver every message as it arrives"; a
// source-keyed barrier is what a fan-out/fan-in pair needs: the join fires
// exactly when every declared source has delivered since the last fire, not
// merely when some number of messages has arrived, so a duplicate from one
// source can never stand in for a missing one.
//
// Inputs are buffered per run (keyed by WorkflowContext.RunID) so a single
// FanInExecutor instance is safe to reuse across concurrent runs of the
// same workflow.
type FanInExecutor[T any] struct {
	*Base
	sources []string
	index   map[string]int
	combine func([]T) any

	mu      sync.Mutex
	buffers map[string]map[string]T
}

// NewFanInExecutor returns a FanInExecutor identified by id that joins one
// message from each executor ID in sources, in that registration order,
// producing combine's result as a single outgoing message. A message
// arriving from an executor ID not present in sources is an error.
func NewFanInExecutor[T any](id string, sources []string, combine func([]T) any) *FanInExecutor[T] {
	index := make(map[string]int, len(sources))
	for i, s := range sources {
		index[s] = i
	}
	f := &FanInExecutor[T]{
		Base:    NewBase(id),
		sources: append([]string(nil), sources...),
		index:   index,
		combine: combine,
		buffers: make(map[string]map[string]T),
	}
	RegisterHandler(f.Base, func(ctx context.Context, wctx *WorkflowContext, payload T) error {
		return f.collect(wctx, payload)
	})
	return f
}

func (f *FanInExecutor[T]) collect(wctx *WorkflowContext, payload T) error {
	source := wctx.IncomingSource()
	if _, ok := f.index[source]; !ok {
		return &RoutingError{
			ExecutorID: f.ID(), Step: wctx.Step(),
			Cause: fmt.Errorf("message from undeclared source %q", source),
		}
	}
	runID := wctx.RunID()

	f.mu.Lock()
	buf, ok := f.buffers[runID]
	if !ok {
		buf = make(map[string]T, len(f.sources))
		f.buffers[runID] = buf
	}
	buf[source] = payload
	ready := len(buf) == len(f.sources)
	var batch []T
	if ready {
		batch = make([]T, len(f.sources))
		for i, s := range f.sources {
			batch[i] = buf[s]
		}
		delete(f.buffers, runID)
	}
	f.mu.Unlock()

	if !ready {
		return nil
	}
	return wctx.SendMessage(f.combine(batch))
}
