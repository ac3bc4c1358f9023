package workflow

import (
	"context"
	"errors"
	"testing"
)

func buildHashTestWorkflow(t *testing.T) *Workflow {
	t.Helper()
	step := FunctionExecutor("step", func(ctx context.Context, wctx *WorkflowContext, n int) error {
		return wctx.YieldOutput(n + 1)
	})
	wf, err := NewBuilder().
		AddExecutor(step).
		SetStartExecutor("step").
		Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	return wf
}

func TestWorkflowHash_StableAcrossRebuilds(t *testing.T) {
	a := buildHashTestWorkflow(t)
	b := buildHashTestWorkflow(t)
	if a.WorkflowHash() == "" {
		t.Fatal("expected a non-empty workflow hash")
	}
	if a.WorkflowHash() != b.WorkflowHash() {
		t.Errorf("expected identical graphs to hash the same, got %q vs %q", a.WorkflowHash(), b.WorkflowHash())
	}
}

func TestWorkflowHash_DiffersWhenGraphShapeChanges(t *testing.T) {
	a := buildHashTestWorkflow(t)

	step := FunctionExecutor("step", func(ctx context.Context, wctx *WorkflowContext, n int) error {
		return wctx.YieldOutput(n + 1)
	})
	other := FunctionExecutor("other", func(ctx context.Context, wctx *WorkflowContext, n int) error {
		return wctx.YieldOutput(n)
	})
	b, err := NewBuilder().
		AddExecutor(step).
		AddExecutor(other).
		AddEdge("step", "other").
		SetStartExecutor("step").
		Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	if a.WorkflowHash() == b.WorkflowHash() {
		t.Error("expected a structurally different graph to hash differently")
	}
}

func TestWorkflow_ResumeRejectsMismatchedWorkflowHash(t *testing.T) {
	original := buildHashTestWorkflow(t)
	result, err := original.Run(context.Background(), "run-1", 1)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !result.Completed {
		t.Fatal("expected run to complete")
	}

	cp := Checkpoint{
		RunID:        "run-2",
		State:        map[string]any{},
		WorkflowHash: "sha256:not-the-real-hash",
		Frontier: []WorkItem{{
			StepID:     0,
			ExecutorID: "step",
			Envelope:   Envelope{SourceID: "__start__", Payload: 1, Step: 0},
		}},
	}

	differentShape := FunctionExecutor("step", func(ctx context.Context, wctx *WorkflowContext, n int) error {
		return wctx.YieldOutput(n + 1)
	})
	reshaped, err := NewBuilder().
		AddExecutor(differentShape).
		AddExecutor(FunctionExecutor("extra", func(ctx context.Context, wctx *WorkflowContext, n int) error { return nil })).
		AddEdge("step", "extra").
		SetStartExecutor("step").
		Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	_, err = reshaped.Resume(context.Background(), cp)
	if !errors.Is(err, ErrCheckpointIncompatible) {
		t.Fatalf("expected ErrCheckpointIncompatible, got %v", err)
	}
}

func TestWorkflow_ResumeAcceptsMatchingWorkflowHash(t *testing.T) {
	wf := buildHashTestWorkflow(t)
	cp := Checkpoint{
		RunID:        "run-3",
		State:        map[string]any{},
		WorkflowHash: wf.WorkflowHash(),
		Frontier: []WorkItem{{
			StepID:     0,
			ExecutorID: "step",
			Envelope:   Envelope{SourceID: "__start__", Payload: 5, Step: 0},
		}},
	}

	result, err := wf.Resume(context.Background(), cp)
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	if !result.Completed || result.Outputs[0].(int) != 6 {
		t.Fatalf("expected completed run with output 6, got %+v", result)
	}
}
