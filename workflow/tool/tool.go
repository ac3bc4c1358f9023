// Package tool defines the pluggable tool-calling contract a
// workflow.ToolExecutor dispatches against: an agent's ToolCalls name a
// tool and its input, and a Tool turns that into a structured result.
// Grounded on the teacher's graph/tool package.
package tool

import "context"

// Tool is something an agent can invoke by name. Implementations should
// validate input, respect ctx cancellation, and return a result an LLM
// can read back as text.
type Tool interface {
	// Name is the identifier that must match a chatclient.ToolCall.Name.
	Name() string

	// Call executes the tool. input may be nil for parameterless tools.
	Call(ctx context.Context, input map[string]interface{}) (map[string]interface{}, error)
}
