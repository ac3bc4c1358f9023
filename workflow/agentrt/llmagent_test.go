package agentrt

import (
	"context"
	"testing"

	"github.com/agentflow-go/agentflow/workflow/chatclient"
)

func TestLLMAgent_ExecuteReturnsModelOutput(t *testing.T) {
	client := &chatclient.MockClient{Responses: []chatclient.ChatOut{{Text: "hi there"}}}
	agent := NewLLMAgent("greeter", "says hello", client, "Be friendly.")

	result, err := agent.Execute(context.Background(), Task{Input: "hello"})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if result.Output != "hi there" {
		t.Errorf("expected output %q, got %q", "hi there", result.Output)
	}
}

func TestLLMAgent_PersistsAndReloadsThreadHistory(t *testing.T) {
	client := &chatclient.MockClient{
		Responses: []chatclient.ChatOut{{Text: "first reply"}, {Text: "second reply"}},
	}
	store := NewMemoryThreadStore()
	agent := NewLLMAgent("chatty", "", client, "", WithThreadStore(store))

	if _, err := agent.Execute(context.Background(), Task{ThreadID: "t1", Input: "hi"}); err != nil {
		t.Fatalf("first execute: %v", err)
	}
	if _, err := agent.Execute(context.Background(), Task{ThreadID: "t1", Input: "again"}); err != nil {
		t.Fatalf("second execute: %v", err)
	}

	history, err := store.Messages(context.Background(), "t1", 0)
	if err != nil {
		t.Fatalf("messages: %v", err)
	}
	if len(history) != 4 {
		t.Fatalf("expected 4 stored messages (2 turns x user+assistant), got %d", len(history))
	}

	second := client.Calls[1]
	if len(second.Messages) != 3 {
		t.Fatalf("expected the second call to carry prior turn plus new prompt, got %d messages", len(second.Messages))
	}
}

func TestLLMAgent_RunsContextProvidersBeforeCall(t *testing.T) {
	client := &chatclient.MockClient{Responses: []chatclient.ChatOut{{Text: "ok"}}}
	provider := ContextProviderFunc(func(ctx context.Context, threadID string) ([]Message, error) {
		return []Message{{Role: chatclient.RoleSystem, Content: "today is a test day"}}, nil
	})
	agent := NewLLMAgent("aware", "", client, "", WithContextProviders(provider))

	if _, err := agent.Execute(context.Background(), Task{Input: "what day is it"}); err != nil {
		t.Fatalf("execute: %v", err)
	}

	call := client.Calls[0]
	found := false
	for _, m := range call.Messages {
		if m.Content == "today is a test day" {
			found = true
		}
	}
	if !found {
		t.Error("expected the context provider's message to be included in the call")
	}
}

func TestMemoryThreadStore_Isolation(t *testing.T) {
	store := NewMemoryThreadStore()
	store.StoreMessage(context.Background(), "a", chatclient.Message{Role: chatclient.RoleUser, Content: "for a"})
	store.StoreMessage(context.Background(), "b", chatclient.Message{Role: chatclient.RoleUser, Content: "for b"})

	aMsgs, _ := store.Messages(context.Background(), "a", 0)
	if len(aMsgs) != 1 || aMsgs[0].Content != "for a" {
		t.Errorf("expected thread a isolated, got %v", aMsgs)
	}
}
