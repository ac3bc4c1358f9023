package agentrt

import "context"

// ContextProvider injects additional messages ahead of a turn's history,
// e.g. retrieved documents, a dynamically computed system prompt, or the
// current time. Grounded on oasis's dynamicPrompt/PromptFunc hook in
// agentcore.go, generalized from a single prompt string to a list of
// messages so a provider can contribute more than one line of context.
type ContextProvider interface {
	ProvideContext(ctx context.Context, threadID string) ([]Message, error)
}

// Message mirrors chatclient.Message to keep agentrt usable without
// importing chatclient types into every provider implementation.
type Message struct {
	Role    string
	Content string
}

// ContextProviderFunc adapts a plain function to a ContextProvider.
type ContextProviderFunc func(ctx context.Context, threadID string) ([]Message, error)

func (f ContextProviderFunc) ProvideContext(ctx context.Context, threadID string) ([]Message, error) {
	return f(ctx, threadID)
}
