package workflow

import (
	"context"
	"testing"

	"github.com/agentflow-go/agentflow/workflow/chatclient"
)

func TestRequestInfoExecutor_SuspendsAndYieldsOnEmptyResponse(t *testing.T) {
	client := &chatclient.MockClient{Responses: []chatclient.ChatOut{{Text: "draft"}}}
	writer := NewAgentExecutor("writer", client, "")
	gate := NewRequestInfoExecutor("approval")

	wf, err := NewBuilder().
		AddExecutor(writer).
		AddExecutor(gate).
		AddEdge("writer", "approval").
		SetStartExecutor("writer").
		Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	result, err := wf.Run(context.Background(), "run-1", "write something")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !result.Suspended {
		t.Fatal("expected run to suspend on the approval gate")
	}
	if len(result.Pending) != 1 {
		t.Fatalf("expected 1 pending request, got %d", len(result.Pending))
	}

	resumed, err := wf.SubmitResponse(context.Background(), "run-1", result.Pending[0].ID, RequestInfoResponse{})
	if err != nil {
		t.Fatalf("submit response: %v", err)
	}
	if !resumed.Completed {
		t.Fatal("expected run to complete after approval")
	}
	out := resumed.Outputs[0].(AgentExecutorResponse)
	if out.Text != "draft" {
		t.Errorf("expected approved draft as output, got %q", out.Text)
	}
}

func TestRequestInfoExecutor_RevisionSendsBackToAgent(t *testing.T) {
	client := &chatclient.MockClient{
		Responses: []chatclient.ChatOut{{Text: "draft v1"}, {Text: "draft v2"}},
	}
	writer := NewAgentExecutor("writer", client, "")
	gate := NewRequestInfoExecutor("approval")
	sink := newSinkExecutor("sink")

	wf, err := NewBuilder().
		AddExecutor(writer).
		AddExecutor(gate).
		AddExecutor(sink).
		AddEdge("writer", "approval").
		AddEdge("approval", "writer").
		SetStartExecutor("writer").
		Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	result, err := wf.Run(context.Background(), "run-1", "write something")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !result.Suspended {
		t.Fatal("expected suspension")
	}

	revision := []chatclient.Message{{Role: chatclient.RoleUser, Content: "please revise: add more detail"}}
	resumed, err := wf.SubmitResponse(context.Background(), "run-1", result.Pending[0].ID, RequestInfoResponse{Messages: revision})
	if err != nil {
		t.Fatalf("submit response: %v", err)
	}
	if !resumed.Suspended {
		t.Fatal("expected run to suspend again after the agent produces a second draft")
	}
	if client.CallCount() != 2 {
		t.Errorf("expected the agent to be called twice, got %d", client.CallCount())
	}
}
