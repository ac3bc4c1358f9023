package chatclient

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// GoogleClient implements ChatClient against Google's Gemini API,
// grounded on the teacher's graph/model/google adapter. Gemini has no
// per-message role for system instructions, so system messages are
// folded into the model's SystemInstruction rather than sent as a
// conversation turn.
type GoogleClient struct {
	apiKey    string
	modelName string
}

// NewGoogleClient returns a GoogleClient for modelName. An empty
// modelName defaults to "gemini-2.5-flash".
func NewGoogleClient(apiKey, modelName string) *GoogleClient {
	if modelName == "" {
		modelName = "gemini-2.5-flash"
	}
	return &GoogleClient{apiKey: apiKey, modelName: modelName}
}

func (c *GoogleClient) Chat(ctx context.Context, messages []Message, tools []ToolSpec) (ChatOut, error) {
	if ctx.Err() != nil {
		return ChatOut{}, ctx.Err()
	}
	if c.apiKey == "" {
		return ChatOut{}, errors.New("chatclient: Google API key is required")
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(c.apiKey))
	if err != nil {
		return ChatOut{}, fmt.Errorf("chatclient: failed to create Google client: %w", err)
	}
	defer client.Close()

	genModel := client.GenerativeModel(c.modelName)

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
	if systemPrompt != "" {
		genModel.SystemInstruction = genai.NewUserContent(genai.Text(systemPrompt))
	}
	if len(tools) > 0 {
		genModel.Tools = convertGoogleTools(tools)
	}

	resp, err := genModel.GenerateContent(ctx, convertGoogleParts(conversation)...)
	if err != nil {
		var safetyErr *SafetyFilterError
		if errors.As(err, &safetyErr) {
			return ChatOut{}, safetyErr
		}
		return ChatOut{}, fmt.Errorf("chatclient: Google API error: %w", err)
	}
	return convertGoogleResponse(resp, c.modelName), nil
}

// SafetyFilterError reports that Gemini blocked a response for a
// specific safety category (e.g. HARM_CATEGORY_DANGEROUS_CONTENT).
type SafetyFilterError struct {
	Category string
}

func (e *SafetyFilterError) Error() string {
	return fmt.Sprintf("chatclient: Google blocked response (category %s)", e.Category)
}

func convertGoogleParts(messages []Message) []genai.Part {
	var parts []genai.Part
	for _, msg := range messages {
		if msg.Content != "" {
			parts = append(parts, genai.Text(msg.Content))
		}
	}
	return parts
}

func convertGoogleTools(tools []ToolSpec) []*genai.Tool {
	declarations := make([]*genai.FunctionDeclaration, len(tools))
	for i, tool := range tools {
		declarations[i] = &genai.FunctionDeclaration{
			Name:        tool.Name,
			Description: tool.Description,
			Parameters:  convertGoogleSchema(tool.Schema),
		}
	}
	return []*genai.Tool{{FunctionDeclarations: declarations}}
}

func convertGoogleSchema(schema map[string]interface{}) *genai.Schema {
	if schema == nil {
		return nil
	}
	result := &genai.Schema{Type: genai.TypeObject}
	if props, ok := schema["properties"].(map[string]interface{}); ok {
		properties := make(map[string]*genai.Schema, len(props))
		for key, val := range props {
			propMap, ok := val.(map[string]interface{})
			if !ok {
				continue
			}
			propSchema := &genai.Schema{}
			if t, ok := propMap["type"].(string); ok {
				propSchema.Type = googleSchemaType(t)
			}
			if desc, ok := propMap["description"].(string); ok {
				propSchema.Description = desc
			}
			properties[key] = propSchema
		}
		result.Properties = properties
	}
	if req, ok := schema["required"].([]string); ok {
		result.Required = req
	}
	return result
}

func googleSchemaType(jsonType string) genai.Type {
	switch jsonType {
	case "string":
		return genai.TypeString
	case "number":
		return genai.TypeNumber
	case "integer":
		return genai.TypeInteger
	case "boolean":
		return genai.TypeBoolean
	case "array":
		return genai.TypeArray
	case "object":
		return genai.TypeObject
	default:
		return genai.TypeUnspecified
	}
}

func convertGoogleResponse(resp *genai.GenerateContentResponse, modelName string) ChatOut {
	out := ChatOut{Model: modelName}
	if resp.UsageMetadata != nil {
		out.Usage = Usage{
			InputTokens:  int(resp.UsageMetadata.PromptTokenCount),
			OutputTokens: int(resp.UsageMetadata.CandidatesTokenCount),
		}
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return out
	}
	for _, part := range resp.Candidates[0].Content.Parts {
		switch p := part.(type) {
		case genai.Text:
			if out.Text != "" {
				out.Text += "\n"
			}
			out.Text += string(p)
		case genai.FunctionCall:
			out.ToolCalls = append(out.ToolCalls, ToolCall{Name: p.Name, Input: p.Args})
		}
	}
	return out
}
