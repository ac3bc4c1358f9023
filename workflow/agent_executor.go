package workflow

import (
	"context"
	"fmt"

	"github.com/agentflow-go/agentflow/workflow/chatclient"
)

// AgentExecutorRequest is the typed message an AgentExecutor consumes:
// the running conversation plus whether the agent should produce a new
// reply (false lets an agent join a conversation without responding,
// mirroring the Python original's should_respond flag used by
// human-in-the-loop approval loops).
type AgentExecutorRequest struct {
	Messages      []chatclient.Message
	ShouldRespond bool
}

// AgentExecutorResponse is what an AgentExecutor emits after a turn.
// Downstream executors can treat it as the new conversation tail,
// which is what lets AgentExecutors chain directly off one another's
// output without an intermediate adapter.
type AgentExecutorResponse struct {
	ExecutorID string
	Messages   []chatclient.Message
	Text       string
	ToolCalls  []chatclient.ToolCall
}

// AgentExecutor wraps a chatclient.ChatClient behind the Executor
// interface, generalizing the Python original's AgentExecutor: it
// accepts either a bare string prompt or a prior AgentExecutorResponse
// (for chaining one agent's output into the next), prepends its system
// instructions, calls the model, and forwards an AgentExecutorResponse
// to its outgoing edges.
type AgentExecutor struct {
	*Base
	client       chatclient.ChatClient
	instructions string
	tools        []chatclient.ToolSpec
	modelName    string
	costTracker  *CostTracker
}

// AgentExecutorOption configures an AgentExecutor at construction time.
type AgentExecutorOption func(*AgentExecutor)

// WithTools attaches tool specs the agent may call.
func WithTools(tools ...chatclient.ToolSpec) AgentExecutorOption {
	return func(a *AgentExecutor) { a.tools = tools }
}

// WithModelName records the model name used for cost attribution,
// independent of what the underlying ChatClient reports back.
func WithModelName(name string) AgentExecutorOption {
	return func(a *AgentExecutor) { a.modelName = name }
}

// WithAgentCostTracker routes every chat call's token usage into
// tracker, keyed by this executor's ID.
func WithAgentCostTracker(tracker *CostTracker) AgentExecutorOption {
	return func(a *AgentExecutor) { a.costTracker = tracker }
}

// NewAgentExecutor returns an AgentExecutor identified by id, backed by
// client, with instructions as its system prompt.
func NewAgentExecutor(id string, client chatclient.ChatClient, instructions string, opts ...AgentExecutorOption) *AgentExecutor {
	a := &AgentExecutor{
		Base:         NewBase(id),
		client:       client,
		instructions: instructions,
	}
	for _, opt := range opts {
		opt(a)
	}

	RegisterHandler(a.Base, func(ctx context.Context, wctx *WorkflowContext, prompt string) error {
		return a.respond(ctx, wctx, []chatclient.Message{{Role: chatclient.RoleUser, Content: prompt}})
	})
	RegisterHandler(a.Base, func(ctx context.Context, wctx *WorkflowContext, req AgentExecutorRequest) error {
		if !req.ShouldRespond {
			return wctx.SendMessage(AgentExecutorResponse{ExecutorID: a.ID(), Messages: req.Messages})
		}
		return a.respond(ctx, wctx, req.Messages)
	})
	RegisterHandler(a.Base, func(ctx context.Context, wctx *WorkflowContext, prior AgentExecutorResponse) error {
		return a.respond(ctx, wctx, prior.Messages)
	})

	return a
}

func (a *AgentExecutor) respond(ctx context.Context, wctx *WorkflowContext, history []chatclient.Message) error {
	messages := make([]chatclient.Message, 0, len(history)+1)
	if a.instructions != "" {
		messages = append(messages, chatclient.Message{Role: chatclient.RoleSystem, Content: a.instructions})
	}
	messages = append(messages, history...)

	out, err := a.client.Chat(ctx, messages, a.tools)
	if err != nil {
		return fmt.Errorf("agent executor %q: %w", a.ID(), err)
	}

	wctx.RecordUsage(out.Usage.InputTokens, out.Usage.OutputTokens)
	if a.costTracker != nil {
		modelName := a.modelName
		if modelName == "" {
			modelName = out.Model
		}
		a.costTracker.RecordLLMCall(modelName, out.Usage.InputTokens, out.Usage.OutputTokens, a.ID())
	}

	reply := chatclient.Message{Role: chatclient.RoleAssistant, Content: out.Text}
	resp := AgentExecutorResponse{
		ExecutorID: a.ID(),
		Messages:   append(append([]chatclient.Message{}, history...), reply),
		Text:       out.Text,
		ToolCalls:  out.ToolCalls,
	}
	return wctx.SendMessage(resp)
}
