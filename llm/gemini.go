package llm

import (
	"context"
	"fmt"
	"os"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/kallax-dev/termpilot/errors"
	"github.com/kallax-dev/termpilot/session"
	"github.com/kallax-dev/termpilot/tools"
)

// GeminiClient talks to the Google Gemini API.
type GeminiClient struct {
	model *genai.GenerativeModel
}

// NewGeminiClient creates a Gemini client. An empty apiKey falls back to the
// GEMINI_API_KEY environment variable.
func NewGeminiClient(ctx context.Context, apiKey, modelName string) (*GeminiClient, error) {
	if apiKey == "" {
		apiKey = os.Getenv("GEMINI_API_KEY")
	}
	if apiKey == "" {
		return nil, errors.New("no API key: pass -k or set GEMINI_API_KEY")
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to create genai client")
	}

	return &GeminiClient{model: client.GenerativeModel(modelName)}, nil
}

// Chat sends the turn history and returns the assistant's reply as a turn.
func (g *GeminiClient) Chat(ctx context.Context, turns []session.Turn, available []tools.Tool) (*session.Turn, error) {
	history, systemPrompt := convertTurnsToGeminiContent(turns)
	if len(history) == 0 {
		return nil, errors.New("no sendable turns in history")
	}
	if systemPrompt != "" {
		g.model.SystemInstruction = &genai.Content{
			Parts: []genai.Part{genai.Text(systemPrompt)},
		}
	}
	g.model.Tools = convertToolsToGeminiTools(available)

	// The last entry is the new prompt; everything before it is history.
	last := history[len(history)-1]
	chat := g.model.StartChat()
	chat.History = history[:len(history)-1]

	resp, err := chat.SendMessage(ctx, last.Parts...)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to send message to Gemini")
	}

	return processGeminiResponse(resp)
}

// convertTurnsToGeminiContent converts the turn history to Gemini content.
// The system turn becomes the model's system instruction; tool turns become
// function responses.
func convertTurnsToGeminiContent(turns []session.Turn) ([]*genai.Content, string) {
	var contents []*genai.Content
	var systemPrompt string

	for _, turn := range turns {
		switch turn.Role {
		case session.RoleSystem:
			systemPrompt = turn.Content
		case session.RoleAssistant:
			var parts []genai.Part
			if turn.Content != "" {
				parts = append(parts, genai.Text(turn.Content))
			}
			for _, tc := range turn.ToolCalls {
				parts = append(parts, genai.FunctionCall{Name: tc.Name, Args: tc.Args})
			}
			if len(parts) == 0 {
				continue
			}
			contents = append(contents, &genai.Content{Role: "model", Parts: parts})
		case session.RoleTool:
			if len(turn.ToolCalls) == 1 && turn.ToolCalls[0].ID != "" {
				contents = append(contents, &genai.Content{
					Role: "user",
					Parts: []genai.Part{genai.FunctionResponse{
						Name:     turn.ToolCalls[0].Name,
						Response: map[string]interface{}{"output": turn.Content},
					}},
				})
			} else {
				contents = append(contents, &genai.Content{
					Role:  "user",
					Parts: []genai.Part{genai.Text(turn.Content)},
				})
			}
		case session.RoleUser:
			fallthrough
		default:
			contents = append(contents, &genai.Content{
				Role:  "user",
				Parts: []genai.Part{genai.Text(turn.Content)},
			})
		}
	}
	return contents, systemPrompt
}

// convertToolsToGeminiTools converts tool declarations to Gemini function
// declarations. Only flat object schemas with string/integer/number/boolean
// properties are mapped; anything else degrades to an untyped object.
func convertToolsToGeminiTools(ts []tools.Tool) []*genai.Tool {
	if len(ts) == 0 {
		return nil
	}
	var funcDecls []*genai.FunctionDeclaration
	for _, t := range ts {
		funcDecls = append(funcDecls, &genai.FunctionDeclaration{
			Name:        t.Name(),
			Description: t.Description(),
			Parameters:  convertParametersToGeminiSchema(t.Parameters()),
		})
	}
	return []*genai.Tool{{FunctionDeclarations: funcDecls}}
}

func convertParametersToGeminiSchema(params map[string]interface{}) *genai.Schema {
	schema := &genai.Schema{
		Type:       genai.TypeObject,
		Properties: map[string]*genai.Schema{},
	}
	props, _ := params["properties"].(map[string]interface{})
	for name, raw := range props {
		prop, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}
		propSchema := &genai.Schema{Type: geminiType(prop["type"])}
		if desc, ok := prop["description"].(string); ok {
			propSchema.Description = desc
		}
		schema.Properties[name] = propSchema
	}
	if required, ok := params["required"].([]string); ok {
		schema.Required = required
	}
	return schema
}

func geminiType(t interface{}) genai.Type {
	switch t {
	case "string":
		return genai.TypeString
	case "integer":
		return genai.TypeInteger
	case "number":
		return genai.TypeNumber
	case "boolean":
		return genai.TypeBoolean
	default:
		return genai.TypeObject
	}
}

// processGeminiResponse converts a Gemini response into a session.Turn.
// Gemini does not assign call IDs, so they are synthesized here.
func processGeminiResponse(resp *genai.GenerateContentResponse) (*session.Turn, error) {
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, errors.Wrapf(errors.ErrNoChoices, "empty Gemini response")
	}

	var content string
	var calls []session.ToolCall

	for i, part := range resp.Candidates[0].Content.Parts {
		switch v := part.(type) {
		case genai.Text:
			content += string(v)
		case genai.FunctionCall:
			calls = append(calls, session.ToolCall{
				ID:   fmt.Sprintf("call_%d_%s", i, v.Name),
				Name: v.Name,
				Args: v.Args,
			})
		default:
			return nil, errors.New("unsupported part type in Gemini response: %T", v)
		}
	}

	return &session.Turn{
		Role:      session.RoleAssistant,
		Content:   content,
		ToolCalls: calls,
	}, nil
}
