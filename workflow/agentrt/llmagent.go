package agentrt

import (
	"context"
	"fmt"

	"github.com/agentflow-go/agentflow/workflow/chatclient"
)

// LLMAgent is the default Agent implementation: one ChatClient call per
// Execute, with thread history loaded from and appended to a
// ThreadMessageStore, and context providers run beforehand.
type LLMAgent struct {
	name         string
	description  string
	client       chatclient.ChatClient
	instructions string
	store        ThreadMessageStore
	providers    []ContextProvider
	historyLimit int
}

// LLMAgentOption configures an LLMAgent at construction time.
type LLMAgentOption func(*LLMAgent)

// WithThreadStore attaches message history persistence.
func WithThreadStore(store ThreadMessageStore) LLMAgentOption {
	return func(a *LLMAgent) { a.store = store }
}

// WithContextProviders runs each provider before the model call and
// prepends its messages to the thread history, in order.
func WithContextProviders(providers ...ContextProvider) LLMAgentOption {
	return func(a *LLMAgent) { a.providers = providers }
}

// WithHistoryLimit bounds how many prior messages are loaded from the
// thread store. Zero means unbounded.
func WithHistoryLimit(n int) LLMAgentOption {
	return func(a *LLMAgent) { a.historyLimit = n }
}

// NewLLMAgent returns an LLMAgent identified by name, backed by client.
func NewLLMAgent(name, description string, client chatclient.ChatClient, instructions string, opts ...LLMAgentOption) *LLMAgent {
	a := &LLMAgent{
		name:         name,
		description:  description,
		client:       client,
		instructions: instructions,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *LLMAgent) Name() string        { return a.name }
func (a *LLMAgent) Description() string { return a.description }

func (a *LLMAgent) Execute(ctx context.Context, task Task) (Result, error) {
	messages := make([]chatclient.Message, 0, len(a.providers)+4)
	if a.instructions != "" {
		messages = append(messages, chatclient.Message{Role: chatclient.RoleSystem, Content: a.instructions})
	}

	for _, provider := range a.providers {
		extra, err := provider.ProvideContext(ctx, task.ThreadID)
		if err != nil {
			return Result{}, fmt.Errorf("agentrt: context provider failed: %w", err)
		}
		for _, m := range extra {
			messages = append(messages, chatclient.Message{Role: m.Role, Content: m.Content})
		}
	}

	if a.store != nil && task.ThreadID != "" {
		history, err := a.store.Messages(ctx, task.ThreadID, a.historyLimit)
		if err != nil {
			return Result{}, fmt.Errorf("agentrt: load thread history: %w", err)
		}
		messages = append(messages, history...)
	}

	userMsg := chatclient.Message{Role: chatclient.RoleUser, Content: task.Input}
	messages = append(messages, userMsg)

	out, err := a.client.Chat(ctx, messages, nil)
	if err != nil {
		return Result{}, fmt.Errorf("agentrt: agent %q: %w", a.name, err)
	}

	if a.store != nil && task.ThreadID != "" {
		if err := a.store.StoreMessage(ctx, task.ThreadID, userMsg); err != nil {
			return Result{}, fmt.Errorf("agentrt: persist user message: %w", err)
		}
		reply := chatclient.Message{Role: chatclient.RoleAssistant, Content: out.Text}
		if err := a.store.StoreMessage(ctx, task.ThreadID, reply); err != nil {
			return Result{}, fmt.Errorf("agentrt: persist assistant message: %w", err)
		}
	}

	return Result{Output: out.Text, Usage: out.Usage}, nil
}

var _ Agent = (*LLMAgent)(nil)
