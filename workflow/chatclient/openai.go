package chatclient

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	openaisdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
)

// OpenAIClient implements ChatClient against OpenAI's chat completions
// API, with retry on transient errors using a linearly growing delay
// (retryDelay times the attempt number), grounded on the teacher's
// graph/model/openai adapter.
type OpenAIClient struct {
	apiKey     string
	modelName  string
	maxRetries int
	retryDelay time.Duration
}

// NewOpenAIClient returns an OpenAIClient for modelName. An empty
// modelName defaults to "gpt-4o".
func NewOpenAIClient(apiKey, modelName string) *OpenAIClient {
	if modelName == "" {
		modelName = "gpt-4o"
	}
	return &OpenAIClient{apiKey: apiKey, modelName: modelName, maxRetries: 3, retryDelay: time.Second}
}

func (c *OpenAIClient) Chat(ctx context.Context, messages []Message, tools []ToolSpec) (ChatOut, error) {
	if ctx.Err() != nil {
		return ChatOut{}, ctx.Err()
	}
	if c.apiKey == "" {
		return ChatOut{}, errors.New("chatclient: OpenAI API key is required")
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		out, err := c.createChatCompletion(ctx, messages, tools)
		if err == nil {
			return out, nil
		}
		lastErr = err
		if !isTransientError(err) {
			return ChatOut{}, err
		}
		if attempt >= c.maxRetries {
			break
		}
		delay := c.retryDelay
		if isRateLimitError(err) {
			delay = c.retryDelay * time.Duration(attempt+1)
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ChatOut{}, ctx.Err()
		}
	}
	return ChatOut{}, fmt.Errorf("chatclient: OpenAI failed after %d retries: %w", c.maxRetries, lastErr)
}

func (c *OpenAIClient) createChatCompletion(ctx context.Context, messages []Message, tools []ToolSpec) (ChatOut, error) {
	client := openaisdk.NewClient(option.WithAPIKey(c.apiKey))

	params := openaisdk.ChatCompletionNewParams{
		Model:    openaisdk.ChatModel(c.modelName),
		Messages: convertOpenAIMessages(messages),
	}
	if len(tools) > 0 {
		params.Tools = convertOpenAITools(tools)
	}

	resp, err := client.Chat.Completions.New(ctx, params)
	if err != nil {
		return ChatOut{}, fmt.Errorf("chatclient: OpenAI API error: %w", err)
	}
	return convertOpenAIResponse(resp, c.modelName), nil
}

func convertOpenAIMessages(messages []Message) []openaisdk.ChatCompletionMessageParamUnion {
	result := make([]openaisdk.ChatCompletionMessageParamUnion, len(messages))
	for i, msg := range messages {
		switch msg.Role {
		case RoleSystem:
			result[i] = openaisdk.SystemMessage(msg.Content)
		case RoleAssistant:
			result[i] = openaisdk.AssistantMessage(msg.Content)
		default:
			result[i] = openaisdk.UserMessage(msg.Content)
		}
	}
	return result
}

func convertOpenAITools(tools []ToolSpec) []openaisdk.ChatCompletionToolParam {
	result := make([]openaisdk.ChatCompletionToolParam, len(tools))
	for i, tool := range tools {
		result[i] = openaisdk.ChatCompletionToolParam{
			Function: shared.FunctionDefinitionParam{
				Name:        tool.Name,
				Description: openaisdk.String(tool.Description),
				Parameters:  shared.FunctionParameters(tool.Schema),
			},
		}
	}
	return result
}

func convertOpenAIResponse(resp *openaisdk.ChatCompletion, modelName string) ChatOut {
	out := ChatOut{Model: modelName}
	out.Usage = Usage{
		InputTokens:  int(resp.Usage.PromptTokens),
		OutputTokens: int(resp.Usage.CompletionTokens),
	}
	if len(resp.Choices) == 0 {
		return out
	}
	msg := resp.Choices[0].Message
	out.Text = msg.Content
	if len(msg.ToolCalls) > 0 {
		out.ToolCalls = make([]ToolCall, len(msg.ToolCalls))
		for i, tc := range msg.ToolCalls {
			out.ToolCalls[i] = ToolCall{Name: tc.Function.Name, Input: parseToolInput(tc.Function.Arguments)}
		}
	}
	return out
}

func isTransientError(err error) bool {
	if err == nil {
		return false
	}
	var rateLimitErr *rateLimitError
	if errors.As(err, &rateLimitErr) {
		return true
	}
	msgLower := strings.ToLower(err.Error())
	for _, pattern := range []string{"timeout", "network", "connection", "temporary", "503", "502", "500"} {
		if strings.Contains(msgLower, pattern) {
			return true
		}
	}
	return false
}

func isRateLimitError(err error) bool {
	var rateLimitErr *rateLimitError
	return errors.As(err, &rateLimitErr)
}

type rateLimitError struct{ message string }

func (e *rateLimitError) Error() string { return e.message }
