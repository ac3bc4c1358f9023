package workflow

import (
	"context"
	"testing"
)

func buildDoublingWorkflow(t *testing.T) *Workflow {
	t.Helper()
	doubler := FunctionExecutor("double", func(ctx context.Context, wctx *WorkflowContext, n int) error {
		return wctx.YieldOutput(n * 2)
	})
	wf, err := NewBuilder().
		AddExecutor(doubler).
		SetStartExecutor("double").
		Build()
	if err != nil {
		t.Fatalf("build inner workflow: %v", err)
	}
	return wf
}

func TestWorkflowExecutor_ForwardsInnerOutputs(t *testing.T) {
	inner := buildDoublingWorkflow(t)
	wrapped := NewWorkflowExecutor("doubler", inner)
	sink := FunctionExecutor("sink", func(ctx context.Context, wctx *WorkflowContext, n int) error {
		return wctx.YieldOutput(n)
	})

	outer, err := NewBuilder().
		AddExecutor(wrapped).
		AddExecutor(sink).
		AddEdge("doubler", "sink").
		SetStartExecutor("doubler").
		Build()
	if err != nil {
		t.Fatalf("build outer workflow: %v", err)
	}

	result, err := outer.Run(context.Background(), "run-1", 21)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !result.Completed {
		t.Fatal("expected outer run to complete")
	}
	if len(result.Outputs) != 1 || result.Outputs[0].(int) != 42 {
		t.Fatalf("expected forwarded output 42, got %v", result.Outputs)
	}
}

func buildSuspendingWorkflow(t *testing.T) *Workflow {
	t.Helper()
	gate := FunctionExecutor("gate", func(ctx context.Context, wctx *WorkflowContext, n int) error {
		_, err := wctx.RequestInfo(n, 0)
		return err
	})
	RegisterResponseHandler(gate, func(wctx *WorkflowContext, original int, response int) error {
		return wctx.YieldOutput(original + response)
	})
	wf, err := NewBuilder().
		AddExecutor(gate).
		SetStartExecutor("gate").
		Build()
	if err != nil {
		t.Fatalf("build inner workflow: %v", err)
	}
	return wf
}

func TestWorkflowExecutor_PropagatesNestedSuspension(t *testing.T) {
	inner := buildSuspendingWorkflow(t)
	wrapped := NewWorkflowExecutor("gatekeeper", inner)
	sink := FunctionExecutor("sink", func(ctx context.Context, wctx *WorkflowContext, n int) error {
		return wctx.YieldOutput(n)
	})

	outer, err := NewBuilder().
		AddExecutor(wrapped).
		AddExecutor(sink).
		AddEdge("gatekeeper", "sink").
		SetStartExecutor("gatekeeper").
		Build()
	if err != nil {
		t.Fatalf("build outer workflow: %v", err)
	}

	result, err := outer.Run(context.Background(), "run-1", 5)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !result.Suspended {
		t.Fatal("expected outer run to suspend when the inner workflow suspends")
	}
	if len(result.Pending) != 1 {
		t.Fatalf("expected 1 outer pending request, got %d", len(result.Pending))
	}

	resumed, err := outer.SubmitResponse(context.Background(), "run-1", result.Pending[0].ID, WorkflowExecutorResponse{Response: 37})
	if err != nil {
		t.Fatalf("submit response: %v", err)
	}
	if !resumed.Completed {
		t.Fatal("expected outer run to complete after resolving the nested suspension")
	}
	if len(resumed.Outputs) != 1 || resumed.Outputs[0].(int) != 42 {
		t.Fatalf("expected forwarded sum 42, got %v", resumed.Outputs)
	}
}
