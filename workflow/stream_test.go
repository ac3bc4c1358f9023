package workflow

import (
	"context"
	"testing"
	"time"

	"github.com/agentflow-go/agentflow/workflow/emit"
)

func TestRunStreamDeliversEventsAndTerminalResult(t *testing.T) {
	sink := newSinkExecutor("sink")
	wf, err := NewBuilder().
		AddExecutor(sink).
		SetStartExecutor("sink").
		Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	events, results := wf.RunStream(context.Background(), "run-1", AgentExecutorResponse{Text: "hi"})

	var seen []emit.Event
	var result StreamResult
	timeout := time.After(2 * time.Second)
drain:
	for {
		select {
		case e, ok := <-events:
			if !ok {
				events = nil
				if results == nil {
					break drain
				}
				continue
			}
			seen = append(seen, e)
		case r, ok := <-results:
			if !ok {
				break drain
			}
			result = r
			results = nil
			if events == nil {
				break drain
			}
		case <-timeout:
			t.Fatal("timed out waiting for stream to settle")
		}
	}

	if result.Err != nil {
		t.Fatalf("run failed: %v", result.Err)
	}
	if result.Result == nil || !result.Result.Completed {
		t.Fatalf("expected a completed result, got %+v", result.Result)
	}
	if len(seen) == 0 {
		t.Error("expected at least one event on the stream")
	}

	foundCompletion := false
	for _, e := range seen {
		if status, ok := e.Meta["event"].(WorkflowStatusChangedEvent); ok && status.Status == RunStatusCompleted {
			foundCompletion = true
		}
	}
	if !foundCompletion {
		t.Error("expected a WorkflowStatusChangedEvent with RunStatusCompleted among the streamed events")
	}
}

func TestRunStreamUnsubscribeStopsDelivery(t *testing.T) {
	sink := newSinkExecutor("sink")
	wf, err := NewBuilder().
		AddExecutor(sink).
		SetStartExecutor("sink").
		Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	router := wf.router
	events, unsubscribe := router.subscribe("run-x", 4)
	unsubscribe()

	router.Emit(emit.Event{RunID: "run-x", Msg: EventWorkflowOutput})

	select {
	case _, ok := <-events:
		if ok {
			t.Fatal("expected channel to be closed after unsubscribe, got a delivered event")
		}
	default:
		t.Fatal("expected channel to be closed, got neither closure nor delivery")
	}
}
