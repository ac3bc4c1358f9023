package workflow

import (
	"context"
	"errors"
	"testing"
)

func buildRecordingWorkflow(t *testing.T, calls *int) *Workflow {
	t.Helper()
	caller := FunctionExecutor("caller", func(ctx context.Context, wctx *WorkflowContext, attempt int) error {
		result, err := wctx.Recordable(attempt, map[string]int{"attempt": attempt}, func() (any, error) {
			*calls++
			return map[string]any{"value": *calls}, nil
		})
		if err != nil {
			return err
		}
		return wctx.YieldOutput(result)
	})
	wf, err := NewBuilder().
		AddExecutor(caller).
		SetStartExecutor("caller").
		RegisterType(RecordedIO{}).
		Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	return wf
}

func TestRecordable_RecordsDuringLiveRun(t *testing.T) {
	var calls int
	wf := buildRecordingWorkflow(t, &calls)

	result, err := wf.Run(context.Background(), "run-1", 0)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected 1 live call during initial run, got %d", calls)
	}
	if !result.Completed {
		t.Fatal("expected run to complete")
	}
}

func TestRecordable_ResumeReplaysRecordedResponse(t *testing.T) {
	var calls int
	wf := buildRecordingWorkflow(t, &calls)

	cp := Checkpoint{
		RunID:  "run-2",
		StepID: 0,
		State:  map[string]any{},
		Frontier: []WorkItem{{
			StepID:     0,
			ExecutorID: "caller",
			Envelope:   Envelope{SourceID: "__start__", Payload: 0, Step: 0},
		}},
		RecordedIOs: []RecordedIO{
			{ExecutorID: "caller", Attempt: 0, Response: []byte(`{"value":99}`)},
		},
	}

	replayWf, err := NewBuilder().
		AddExecutor(FunctionExecutor("caller", func(ctx context.Context, wctx *WorkflowContext, attempt int) error {
			result, err := wctx.Recordable(attempt, attempt, func() (any, error) {
				calls++
				return map[string]any{"value": -1}, nil
			})
			if err != nil {
				return err
			}
			return wctx.YieldOutput(result)
		})).
		SetStartExecutor("caller").
		WithOption(WithReplayMode(true)).
		Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	result, err := replayWf.Resume(context.Background(), cp)
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	if !result.Completed {
		t.Fatal("expected replay run to complete")
	}
	if calls != 0 {
		t.Errorf("expected the live call to be skipped during replay, got %d calls", calls)
	}
	out := result.Outputs[0].(map[string]any)
	if out["value"].(float64) != 99 {
		t.Errorf("expected replayed response value 99, got %v", out["value"])
	}
}

func TestRecordable_StrictReplayWithoutRecordingDoesNotMismatch(t *testing.T) {
	cp := Checkpoint{
		RunID:  "run-3",
		StepID: 0,
		State:  map[string]any{},
		Frontier: []WorkItem{{
			StepID:     0,
			ExecutorID: "caller",
			Envelope:   Envelope{SourceID: "__start__", Payload: 0, Step: 0},
		}},
		RecordedIOs: []RecordedIO{},
	}

	wf, err := NewBuilder().
		AddExecutor(FunctionExecutor("caller", func(ctx context.Context, wctx *WorkflowContext, attempt int) error {
			_, err := wctx.Recordable(attempt, attempt, func() (any, error) {
				return map[string]any{"value": 1}, nil
			})
			return err
		})).
		SetStartExecutor("caller").
		WithOption(WithStrictReplay(true)).
		Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	// No prior recording exists, so this call records rather than
	// mismatches; strict replay only fires once a contradicting
	// recording is already present in the replay index.
	result, err := wf.Resume(context.Background(), cp)
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	if !result.Completed {
		t.Fatal("expected run to complete when there is nothing to mismatch against")
	}
	if errors.Is(err, ErrReplayMismatch) {
		t.Fatal("did not expect a mismatch with no prior recording")
	}
}
