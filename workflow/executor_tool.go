package workflow

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/agentflow-go/agentflow/workflow/chatclient"
	"github.com/agentflow-go/agentflow/workflow/tool"
)

// ToolExecutor sits downstream of an AgentExecutor and actually invokes the
// tool.Tool calls the model requested. An AgentExecutorResponse with no
// ToolCalls passes through unchanged; one with ToolCalls gets each call
// dispatched against a registered tool, the results folded back into the
// conversation as new messages, and a follow-up AgentExecutorRequest (with
// ShouldRespond true) sent on so the originating agent can incorporate the
// tool output into a final reply.
type ToolExecutor struct {
	*Base
	tools map[string]tool.Tool
}

// NewToolExecutor returns a ToolExecutor identified by id, dispatching
// against the given tools keyed by their Name().
func NewToolExecutor(id string, tools ...tool.Tool) *ToolExecutor {
	t := &ToolExecutor{
		Base:  NewBase(id),
		tools: make(map[string]tool.Tool, len(tools)),
	}
	for _, tl := range tools {
		t.tools[tl.Name()] = tl
	}

	RegisterHandler(t.Base, func(ctx context.Context, wctx *WorkflowContext, resp AgentExecutorResponse) error {
		return t.runCalls(ctx, wctx, resp)
	})

	return t
}

func (t *ToolExecutor) runCalls(ctx context.Context, wctx *WorkflowContext, resp AgentExecutorResponse) error {
	if len(resp.ToolCalls) == 0 {
		return wctx.SendMessage(resp)
	}

	messages := append([]chatclient.Message{}, resp.Messages...)
	for _, call := range resp.ToolCalls {
		messages = append(messages, t.invoke(ctx, call))
	}

	return wctx.SendMessage(AgentExecutorRequest{Messages: messages, ShouldRespond: true})
}

func (t *ToolExecutor) invoke(ctx context.Context, call chatclient.ToolCall) chatclient.Message {
	tl, ok := t.tools[call.Name]
	if !ok {
		return chatclient.Message{
			Role:    chatclient.RoleUser,
			Content: fmt.Sprintf("tool %q is not available", call.Name),
		}
	}

	out, err := tl.Call(ctx, call.Input)
	if err != nil {
		return chatclient.Message{
			Role:    chatclient.RoleUser,
			Content: fmt.Sprintf("tool %q failed: %v", call.Name, err),
		}
	}

	encoded, err := json.Marshal(out)
	if err != nil {
		return chatclient.Message{
			Role:    chatclient.RoleUser,
			Content: fmt.Sprintf("tool %q produced an unencodable result: %v", call.Name, err),
		}
	}

	return chatclient.Message{
		Role:    chatclient.RoleUser,
		Content: fmt.Sprintf("tool %q result: %s", call.Name, encoded),
	}
}
