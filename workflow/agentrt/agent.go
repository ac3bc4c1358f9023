// Package agentrt provides a standalone, thread-addressed agent contract
// for callers that want a single request/response LLM turn with message
// history instead of the full workflow engine: a CLI, an HTTP handler, a
// notebook. It does not depend on workflow's scheduler; it only reuses
// chatclient so the same ChatClient implementations serve both.
//
// Grounded on oasis's Agent/LLMAgent contract (agent.go, agentcore.go):
// a named, described unit of work over a task, with thread-scoped message
// history and a hook for injecting extra context before each call.
package agentrt

import (
	"context"

	"github.com/agentflow-go/agentflow/workflow/chatclient"
)

// Task is the input to an Agent.
type Task struct {
	// ThreadID scopes message history; empty means no history is kept.
	ThreadID string
	// Input is the user's request for this turn.
	Input string
}

// Result is the output of an Agent.
type Result struct {
	Output string
	Usage  chatclient.Usage
}

// Agent is a unit of work that takes a Task and returns a Result.
type Agent interface {
	// Name identifies the agent.
	Name() string
	// Description is a human-readable summary of what the agent does.
	Description() string
	// Execute runs the agent on task.
	Execute(ctx context.Context, task Task) (Result, error)
}
