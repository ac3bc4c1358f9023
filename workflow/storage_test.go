package workflow

import (
	"context"
	"errors"
	"testing"

	"github.com/agentflow-go/agentflow/workflow/chatclient"
	"github.com/agentflow-go/agentflow/workflow/emit"
)

// fakeCheckpointStorage is a minimal in-package CheckpointStorage used to
// test Workflow's storage-facing convenience methods without depending on
// the workflow/store package (which itself depends on workflow, so the
// other direction would be a cycle).
type fakeCheckpointStorage struct {
	byRunStep map[string]map[int]Checkpoint
}

func newFakeCheckpointStorage() *fakeCheckpointStorage {
	return &fakeCheckpointStorage{byRunStep: make(map[string]map[int]Checkpoint)}
}

func (f *fakeCheckpointStorage) SaveCheckpoint(_ context.Context, cp Checkpoint) error {
	if _, ok := f.byRunStep[cp.RunID]; !ok {
		f.byRunStep[cp.RunID] = make(map[int]Checkpoint)
	}
	f.byRunStep[cp.RunID][cp.StepID] = cp
	return nil
}

func (f *fakeCheckpointStorage) LoadCheckpoint(_ context.Context, runID string, stepID int) (Checkpoint, error) {
	cp, ok := f.byRunStep[runID][stepID]
	if !ok {
		return Checkpoint{}, ErrCheckpointStorageNotFound
	}
	return cp, nil
}

func (f *fakeCheckpointStorage) LoadLatest(_ context.Context, runID string) (Checkpoint, error) {
	byStep, ok := f.byRunStep[runID]
	if !ok || len(byStep) == 0 {
		return Checkpoint{}, ErrCheckpointStorageNotFound
	}
	best := -1
	for step := range byStep {
		if step > best {
			best = step
		}
	}
	return byStep[best], nil
}

func (f *fakeCheckpointStorage) LoadByLabel(_ context.Context, runID, label string) (Checkpoint, error) {
	for _, cp := range f.byRunStep[runID] {
		if cp.Label == label {
			return cp, nil
		}
	}
	return Checkpoint{}, ErrCheckpointStorageNotFound
}

func (f *fakeCheckpointStorage) CheckIdempotency(context.Context, string) (bool, error) { return false, nil }
func (f *fakeCheckpointStorage) AppendEvent(context.Context, emit.Event) (string, error) {
	return "", nil
}
func (f *fakeCheckpointStorage) PendingEvents(context.Context, int) ([]emit.Event, error) {
	return nil, nil
}
func (f *fakeCheckpointStorage) MarkEventsEmitted(context.Context, []string) error { return nil }

var _ CheckpointStorage = (*fakeCheckpointStorage)(nil)

func TestWorkflow_PersistAndResumeFromStorage(t *testing.T) {
	client := &chatclient.MockClient{Responses: []chatclient.ChatOut{{Text: "draft"}}}
	writer := NewAgentExecutor("writer", client, "")
	gate := NewRequestInfoExecutor("approval")

	wf, err := NewBuilder().
		AddExecutor(writer).
		AddExecutor(gate).
		AddEdge("writer", "approval").
		SetStartExecutor("writer").
		RegisterType(AgentExecutorResponse{}).
		RegisterType(RequestInfoResponse{}).
		Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	ctx := context.Background()
	result, err := wf.Run(ctx, "run-1", "write something")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !result.Suspended {
		t.Fatal("expected suspension before persisting")
	}

	storage := newFakeCheckpointStorage()
	cp, err := wf.PersistCheckpoint(ctx, storage, "run-1", "awaiting-approval")
	if err != nil {
		t.Fatalf("persist checkpoint: %v", err)
	}
	if cp.RunID != "run-1" {
		t.Errorf("expected checkpoint for run-1, got %q", cp.RunID)
	}

	resumed, err := wf.ResumeFromStorage(ctx, storage, "run-1")
	if err != nil {
		t.Fatalf("resume from storage: %v", err)
	}
	if !resumed.Suspended {
		t.Fatal("expected resumed run to still be suspended pending approval")
	}
	if len(resumed.Pending) != 1 {
		t.Fatalf("expected 1 pending request after resume, got %d", len(resumed.Pending))
	}
}

func TestWorkflow_ResumeFromStorage_MissingRun(t *testing.T) {
	wf, err := NewBuilder().
		AddExecutor(FunctionExecutor("noop", func(ctx context.Context, wctx *WorkflowContext, payload any) error {
			return wctx.YieldOutput(payload)
		})).
		SetStartExecutor("noop").
		Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	storage := newFakeCheckpointStorage()
	_, err = wf.ResumeFromStorage(context.Background(), storage, "missing-run")
	if !errors.Is(err, ErrCheckpointStorageNotFound) {
		t.Fatalf("expected ErrCheckpointStorageNotFound, got %v", err)
	}
}
