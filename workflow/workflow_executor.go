package workflow

import (
	"context"
	"fmt"
)

// WorkflowExecutor runs an entire Workflow as a single Executor inside
// an outer workflow, the Go counterpart of the Python original's
// WorkflowExecutor base class (used, for example, to wrap an
// agent-plus-approval pair into one reusable unit: see
// AgentApprovalExecutor in the upstream samples). Every message the
// outer workflow sends it becomes the inner workflow's input; every
// output the inner workflow yields is forwarded as an outgoing
// message on the outer workflow.
//
// A sub-workflow that suspends on a request/response gate propagates
// that suspension outward: WorkflowExecutor opens its own pending
// request wrapping the inner one, and resolving that outer request
// resumes the inner workflow via SubmitResponse.
type WorkflowExecutor struct {
	*Base
	inner *Workflow
}

// pendingSubRequest is the payload of an outer request opened on
// behalf of a suspended inner run.
type pendingSubRequest struct {
	SubRunID     string
	SubRequestID string
	Payload      any
}

// WorkflowExecutorResponse answers a pendingSubRequest: Response is
// forwarded verbatim to the inner workflow's SubmitResponse.
type WorkflowExecutorResponse struct {
	Response any
}

// NewWorkflowExecutor returns a WorkflowExecutor identified by id that
// runs inner as a single unit of the outer workflow.
func NewWorkflowExecutor(id string, inner *Workflow) *WorkflowExecutor {
	w := &WorkflowExecutor{Base: NewBase(id), inner: inner}

	w.SetCatchAll(func(ctx context.Context, wctx *WorkflowContext, payload any) error {
		subRunID := wctx.RunID() + "/" + w.ID()
		result, err := w.inner.Run(ctx, subRunID, payload)
		if err != nil {
			return fmt.Errorf("sub-workflow executor %q: %w", w.ID(), err)
		}
		return w.forward(wctx, subRunID, result)
	})

	RegisterResponseHandler(w.Base, func(wctx *WorkflowContext, req pendingSubRequest, resp WorkflowExecutorResponse) error {
		result, err := w.inner.SubmitResponse(context.Background(), req.SubRunID, req.SubRequestID, resp.Response)
		if err != nil {
			return fmt.Errorf("sub-workflow executor %q: %w", w.ID(), err)
		}
		return w.forward(wctx, req.SubRunID, result)
	})

	return w
}

func (w *WorkflowExecutor) forward(wctx *WorkflowContext, subRunID string, result *RunResult) error {
	for _, out := range result.Outputs {
		if err := wctx.SendMessage(out); err != nil {
			return err
		}
	}
	for _, pending := range result.Pending {
		if _, err := wctx.RequestInfo(pendingSubRequest{
			SubRunID:     subRunID,
			SubRequestID: pending.ID,
			Payload:      pending.Payload,
		}, WorkflowExecutorResponse{}); err != nil {
			return err
		}
	}
	return nil
}
