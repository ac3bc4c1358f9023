package workflow

import (
	"context"

	"github.com/agentflow-go/agentflow/workflow/chatclient"
)

// RequestInfoResponse is what a human (or external system) submits back
// through SubmitResponse to resolve a pending request opened by
// RequestInfoExecutor. Messages, if non-empty, replaces the
// conversation going back to the originating agent; an empty Messages
// treats the agent's last turn as final and yields it as output,
// mirroring the Python original's AgentRequestInfoExecutor.
type RequestInfoResponse struct {
	Messages []chatclient.Message
}

// RequestInfoExecutor sits between two AgentExecutors and suspends the
// run for external approval: every AgentExecutorResponse it receives is
// turned into a pending request via WorkflowContext.RequestInfo, and
// the resolving RequestInfoResponse either sends a revised prompt back
// to the agent or yields the agent's response as the run's output.
// Grounded on the Python original's AgentRequestInfoExecutor
// (agent_framework._workflows._orchestration_request_info_new).
type RequestInfoExecutor struct {
	*Base
}

// NewRequestInfoExecutor returns a RequestInfoExecutor identified by id.
func NewRequestInfoExecutor(id string) *RequestInfoExecutor {
	r := &RequestInfoExecutor{Base: NewBase(id)}

	RegisterHandler(r.Base, func(ctx context.Context, wctx *WorkflowContext, resp AgentExecutorResponse) error {
		_, err := wctx.RequestInfo(resp, RequestInfoResponse{})
		return err
	})
	RegisterResponseHandler(r.Base, func(wctx *WorkflowContext, original AgentExecutorResponse, response RequestInfoResponse) error {
		if len(response.Messages) > 0 {
			return wctx.SendMessage(AgentExecutorRequest{Messages: response.Messages, ShouldRespond: true})
		}
		return wctx.YieldOutput(original)
	})

	return r
}
