package workflow

import (
	"context"
	"strings"
	"testing"

	"github.com/agentflow-go/agentflow/workflow/chatclient"
	"github.com/agentflow-go/agentflow/workflow/tool"
)

func newRequestSinkExecutor(id string) *Base {
	return FunctionExecutor(id, func(ctx context.Context, wctx *WorkflowContext, payload AgentExecutorRequest) error {
		return wctx.YieldOutput(payload)
	})
}

func TestToolExecutor_PassesThroughWhenNoToolCalls(t *testing.T) {
	client := &chatclient.MockClient{Responses: []chatclient.ChatOut{{Text: "no tools needed"}}}
	agent := NewAgentExecutor("writer", client, "")
	toolExec := NewToolExecutor("tools")
	sink := newSinkExecutor("sink")

	wf, err := NewBuilder().
		AddExecutor(agent).
		AddExecutor(toolExec).
		AddExecutor(sink).
		AddEdge("writer", "tools").
		AddEdge("tools", "sink").
		SetStartExecutor("writer").
		Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	result, err := wf.Run(context.Background(), "run-1", "hello")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !result.Completed {
		t.Fatal("expected run to complete")
	}
	out := result.Outputs[0].(AgentExecutorResponse)
	if out.Text != "no tools needed" {
		t.Errorf("expected passthrough text, got %q", out.Text)
	}
}

func TestToolExecutor_InvokesRequestedToolAndForwardsResult(t *testing.T) {
	client := &chatclient.MockClient{
		Responses: []chatclient.ChatOut{{
			Text: "checking the weather",
			ToolCalls: []chatclient.ToolCall{
				{Name: "weather", Input: map[string]interface{}{"city": "nyc"}},
			},
		}},
	}
	weather := &tool.MockTool{
		ToolName:  "weather",
		Responses: []map[string]interface{}{{"temp": 72}},
	}

	agent := NewAgentExecutor("writer", client, "")
	toolExec := NewToolExecutor("tools", weather)
	sink := newRequestSinkExecutor("sink")

	wf, err := NewBuilder().
		AddExecutor(agent).
		AddExecutor(toolExec).
		AddExecutor(sink).
		AddEdge("writer", "tools").
		AddEdge("tools", "sink").
		SetStartExecutor("writer").
		Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	result, err := wf.Run(context.Background(), "run-1", "what's the weather")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !result.Completed {
		t.Fatal("expected run to complete")
	}
	if weather.CallCount() != 1 {
		t.Fatalf("expected the tool to be invoked once, got %d", weather.CallCount())
	}

	req := result.Outputs[0].(AgentExecutorRequest)
	if !req.ShouldRespond {
		t.Error("expected the follow-up request to ask the agent to respond")
	}
	last := req.Messages[len(req.Messages)-1]
	if !strings.Contains(last.Content, "weather") || !strings.Contains(last.Content, "72") {
		t.Errorf("expected the tool result folded into the messages, got %q", last.Content)
	}
}

func TestToolExecutor_UnknownToolProducesErrorMessage(t *testing.T) {
	client := &chatclient.MockClient{
		Responses: []chatclient.ChatOut{{
			ToolCalls: []chatclient.ToolCall{{Name: "missing", Input: nil}},
		}},
	}
	agent := NewAgentExecutor("writer", client, "")
	toolExec := NewToolExecutor("tools")
	sink := newRequestSinkExecutor("sink")

	wf, err := NewBuilder().
		AddExecutor(agent).
		AddExecutor(toolExec).
		AddExecutor(sink).
		AddEdge("writer", "tools").
		AddEdge("tools", "sink").
		SetStartExecutor("writer").
		Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	result, err := wf.Run(context.Background(), "run-1", "do something")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	req := result.Outputs[0].(AgentExecutorRequest)
	last := req.Messages[len(req.Messages)-1]
	if !strings.Contains(last.Content, "missing") || !strings.Contains(last.Content, "not available") {
		t.Errorf("expected an unavailable-tool message, got %q", last.Content)
	}
}
