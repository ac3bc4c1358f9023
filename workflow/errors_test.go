package workflow

import (
	"context"
	"errors"
	"testing"
)

func TestBuildReturnsValidationErrorOnDuplicateExecutor(t *testing.T) {
	_, err := NewBuilder().
		AddExecutor(newSinkExecutor("dup")).
		AddExecutor(newSinkExecutor("dup")).
		SetStartExecutor("dup").
		Build()

	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected *ValidationError, got %T: %v", err, err)
	}
	if !errors.Is(err, ErrDuplicateExecutor) {
		t.Errorf("expected errors.Is to reach ErrDuplicateExecutor, got %v", err)
	}
}

func TestBuildReturnsValidationErrorOnMissingStartExecutor(t *testing.T) {
	_, err := NewBuilder().
		AddExecutor(newSinkExecutor("only")).
		Build()

	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected *ValidationError, got %T: %v", err, err)
	}
	if !errors.Is(err, ErrNoStartExecutor) {
		t.Errorf("expected errors.Is to reach ErrNoStartExecutor, got %v", err)
	}
}

func TestBuildReturnsValidationErrorOnDanglingEdge(t *testing.T) {
	_, err := NewBuilder().
		AddExecutor(newSinkExecutor("start")).
		AddEdge("start", "missing").
		SetStartExecutor("start").
		Build()

	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected *ValidationError, got %T: %v", err, err)
	}
}

func TestSubmitResponseReturnsRequestErrorOnUnknownID(t *testing.T) {
	waiter := NewBase("waiter")
	RegisterHandler(waiter, func(ctx context.Context, wctx *WorkflowContext, payload string) error {
		_, err := wctx.RequestInfo(payload, AgentExecutorResponse{})
		return err
	})
	sink := newSinkExecutor("sink")

	wf, err := NewBuilder().
		AddExecutor(waiter).
		AddExecutor(sink).
		AddEdge("waiter", "sink").
		SetStartExecutor("waiter").
		Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	result, err := wf.Run(context.Background(), "run-1", "need input")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !result.Suspended {
		t.Fatal("expected run to suspend on open request")
	}

	_, err = wf.SubmitResponse(context.Background(), "run-1", "nonexistent-id", AgentExecutorResponse{})
	var rerr *RequestError
	if !errors.As(err, &rerr) {
		t.Fatalf("expected *RequestError, got %T: %v", err, err)
	}
	if !errors.Is(err, ErrRequestNotPending) {
		t.Errorf("expected errors.Is to reach ErrRequestNotPending, got %v", err)
	}
}

func TestResumeReturnsCheckpointErrorOnHashMismatch(t *testing.T) {
	sink := newSinkExecutor("sink")
	wf, err := NewBuilder().
		AddExecutor(sink).
		SetStartExecutor("sink").
		Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	cp := Checkpoint{RunID: "run-1", StepID: 1, WorkflowHash: "not-a-real-hash"}
	_, err = wf.Resume(context.Background(), cp)
	var cerr *CheckpointError
	if !errors.As(err, &cerr) {
		t.Fatalf("expected *CheckpointError, got %T: %v", err, err)
	}
	if !errors.Is(err, ErrCheckpointIncompatible) {
		t.Errorf("expected errors.Is to reach ErrCheckpointIncompatible, got %v", err)
	}
}
