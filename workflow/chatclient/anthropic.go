package chatclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicClient implements ChatClient against Anthropic's Messages
// API, grounded on the teacher's graph/model/anthropic adapter.
// Anthropic takes the system prompt as a separate parameter rather
// than a message with role "system", so Chat splits it out before
// calling the SDK.
type AnthropicClient struct {
	apiKey    string
	modelName string
}

// NewAnthropicClient returns an AnthropicClient for modelName. An
// empty modelName defaults to "claude-sonnet-4-5-20250929".
func NewAnthropicClient(apiKey, modelName string) *AnthropicClient {
	if modelName == "" {
		modelName = "claude-sonnet-4-5-20250929"
	}
	return &AnthropicClient{apiKey: apiKey, modelName: modelName}
}

func (c *AnthropicClient) Chat(ctx context.Context, messages []Message, tools []ToolSpec) (ChatOut, error) {
	if ctx.Err() != nil {
		return ChatOut{}, ctx.Err()
	}
	if c.apiKey == "" {
		return ChatOut{}, errors.New("chatclient: Anthropic API key is required")
	}

	systemPrompt, conversation := extractSystemPrompt(messages)

	client := anthropicsdk.NewClient(option.WithAPIKey(c.apiKey))
	params := anthropicsdk.MessageNewParams{
		Model:     anthropicsdk.Model(c.modelName),
		Messages:  convertAnthropicMessages(conversation),
		MaxTokens: 4096,
	}
	if systemPrompt != "" {
		params.System = []anthropicsdk.TextBlockParam{{Text: systemPrompt}}
	}
	if len(tools) > 0 {
		params.Tools = convertAnthropicTools(tools)
	}

	resp, err := client.Messages.New(ctx, params)
	if err != nil {
		return ChatOut{}, fmt.Errorf("chatclient: Anthropic API error: %w", err)
	}
	return convertAnthropicResponse(resp, c.modelName), nil
}

func extractSystemPrompt(messages []Message) (string, []Message) {
	var systemPrompt string
	var conversation []Message
	for _, msg := range messages {
		if msg.Role == RoleSystem {
			if systemPrompt != "" {
				systemPrompt += "\n\n"
			}
			systemPrompt += msg.Content
			continue
		}
		conversation = append(conversation, msg)
	}
	return systemPrompt, conversation
}

func convertAnthropicMessages(messages []Message) []anthropicsdk.MessageParam {
	result := make([]anthropicsdk.MessageParam, len(messages))
	for i, msg := range messages {
		switch msg.Role {
		case RoleAssistant:
			result[i] = anthropicsdk.NewAssistantMessage(anthropicsdk.NewTextBlock(msg.Content))
		default:
			result[i] = anthropicsdk.NewUserMessage(anthropicsdk.NewTextBlock(msg.Content))
		}
	}
	return result
}

func convertAnthropicTools(tools []ToolSpec) []anthropicsdk.ToolUnionParam {
	result := make([]anthropicsdk.ToolUnionParam, len(tools))
	for i, tool := range tools {
		var properties any
		var required []string
		if tool.Schema != nil {
			if props, ok := tool.Schema["properties"]; ok {
				properties = props
			}
			if req, ok := tool.Schema["required"].([]string); ok {
				required = req
			} else if req, ok := tool.Schema["required"].([]interface{}); ok {
				required = make([]string, len(req))
				for j, v := range req {
					if s, ok := v.(string); ok {
						required[j] = s
					}
				}
			}
		}
		result[i] = anthropicsdk.ToolUnionParam{
			OfTool: &anthropicsdk.ToolParam{
				Name:        tool.Name,
				Description: anthropicsdk.String(tool.Description),
				InputSchema: anthropicsdk.ToolInputSchemaParam{Properties: properties, Required: required},
			},
		}
	}
	return result
}

func convertAnthropicResponse(resp *anthropicsdk.Message, modelName string) ChatOut {
	out := ChatOut{Model: modelName}
	out.Usage = Usage{
		InputTokens:  int(resp.Usage.InputTokens),
		OutputTokens: int(resp.Usage.OutputTokens),
	}
	for _, block := range resp.Content {
		switch b := block.AsAny().(type) {
		case anthropicsdk.TextBlock:
			if out.Text != "" {
				out.Text += "\n"
			}
			out.Text += b.Text
		case anthropicsdk.ToolUseBlock:
			var input map[string]interface{}
			_ = json.Unmarshal(b.Input, &input)
			out.ToolCalls = append(out.ToolCalls, ToolCall{Name: b.Name, Input: input})
		}
	}
	return out
}
