// Package chatclient defines the ChatClient interface that AgentExecutor
// uses to talk to an LLM, plus adapters for the major hosted providers.
//
// It generalizes the teacher's graph/model.ChatModel in one respect:
// Chat returns a Usage alongside the text/tool-call output, so an
// AgentExecutor can feed CostTracker.RecordLLMCall real token counts
// instead of estimating them.
package chatclient

import "context"

// Message is one turn of a conversation sent to a ChatClient.
type Message struct {
	Role    string
	Content string
}

// Standard role constants, aligned with the conventions used by every
// major LLM provider.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ToolSpec describes a tool the LLM may call, in JSON Schema form.
type ToolSpec struct {
	Name        string
	Description string
	Schema      map[string]interface{}
}

// ToolCall is a single tool invocation requested by the LLM.
type ToolCall struct {
	Name  string
	Input map[string]interface{}
}

// Usage reports the token accounting for one Chat call, used to price
// the call via CostTracker.
type Usage struct {
	InputTokens  int
	OutputTokens int
}

// ChatOut is the result of one Chat call.
type ChatOut struct {
	Text      string
	ToolCalls []ToolCall
	Usage     Usage
	Model     string
}

// ChatClient sends a conversation to an LLM and returns its response.
// Implementations must respect ctx cancellation and translate
// provider-specific errors into plain errors the caller can log or
// retry on.
type ChatClient interface {
	Chat(ctx context.Context, messages []Message, tools []ToolSpec) (ChatOut, error)
}
