package llm

import (
	"context"
	"encoding/json"
	"os"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/kallax-dev/termpilot/errors"
	"github.com/kallax-dev/termpilot/session"
	"github.com/kallax-dev/termpilot/tools"
)

const anthropicMaxTokens = 4096

// AnthropicClient talks to the Anthropic Messages API.
type AnthropicClient struct {
	client *anthropic.Client
	model  string
}

// NewAnthropicClient creates an Anthropic client. An empty apiKey falls back
// to the ANTHROPIC_API_KEY environment variable.
func NewAnthropicClient(apiKey, model string) (*AnthropicClient, error) {
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if apiKey == "" {
		return nil, errors.New("no API key: pass -k or set ANTHROPIC_API_KEY")
	}

	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	return &AnthropicClient{client: &client, model: model}, nil
}

// Chat sends the turn history and returns the assistant's reply as a turn.
func (a *AnthropicClient) Chat(ctx context.Context, turns []session.Turn, available []tools.Tool) (*session.Turn, error) {
	messages, systemPrompt := convertTurnsToAnthropicMessages(turns)

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(a.model),
		MaxTokens: anthropicMaxTokens,
		Messages:  messages,
	}
	if systemPrompt != "" {
		params.System = []anthropic.TextBlockParam{{Text: systemPrompt}}
	}
	for _, t := range available {
		toolParam := anthropic.ToolParam{
			Name:        t.Name(),
			Description: anthropic.String(t.Description()),
			InputSchema: convertParametersToAnthropicSchema(t.Parameters()),
		}
		params.Tools = append(params.Tools, anthropic.ToolUnionParam{OfTool: &toolParam})
	}

	resp, err := a.client.Messages.New(ctx, params)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to send message to Anthropic")
	}

	return processAnthropicResponse(resp)
}

// convertTurnsToAnthropicMessages converts the turn history to Anthropic's
// format. The system turn becomes the top-level system prompt; tool turns
// become tool_result blocks on a user message.
func convertTurnsToAnthropicMessages(turns []session.Turn) ([]anthropic.MessageParam, string) {
	var messages []anthropic.MessageParam
	var systemPrompt string

	for _, turn := range turns {
		switch turn.Role {
		case session.RoleSystem:
			systemPrompt = turn.Content
		case session.RoleUser:
			messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(turn.Content)))
		case session.RoleAssistant:
			var blocks []anthropic.ContentBlockParamUnion
			if turn.Content != "" {
				blocks = append(blocks, anthropic.ContentBlockParamUnion{
					OfText: &anthropic.TextBlockParam{Text: turn.Content},
				})
			}
			for _, tc := range turn.ToolCalls {
				argsBytes, err := json.Marshal(tc.Args)
				if err != nil {
					continue
				}
				blocks = append(blocks, anthropic.ContentBlockParamUnion{
					OfToolUse: &anthropic.ToolUseBlockParam{
						Type:  "tool_use",
						ID:    tc.ID,
						Name:  tc.Name,
						Input: argsBytes,
					},
				})
			}
			if len(blocks) == 0 {
				continue
			}
			messages = append(messages, anthropic.MessageParam{
				Role:    anthropic.MessageParamRoleAssistant,
				Content: blocks,
			})
		case session.RoleTool:
			if len(turn.ToolCalls) == 1 && turn.ToolCalls[0].ID != "" {
				messages = append(messages, anthropic.MessageParam{
					Role: anthropic.MessageParamRoleUser,
					Content: []anthropic.ContentBlockParamUnion{{
						OfToolResult: &anthropic.ToolResultBlockParam{
							ToolUseID: turn.ToolCalls[0].ID,
							Content: []anthropic.ToolResultBlockParamContentUnion{{
								OfText: &anthropic.TextBlockParam{Text: turn.Content},
							}},
						},
					}},
				})
			} else {
				// Legacy inline result: no call to correlate with.
				messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(turn.Content)))
			}
		}
	}

	return messages, systemPrompt
}

// convertParametersToAnthropicSchema maps a plain schema map onto the
// Anthropic input schema parameter.
func convertParametersToAnthropicSchema(params map[string]interface{}) anthropic.ToolInputSchemaParam {
	schema := anthropic.ToolInputSchemaParam{
		Properties: map[string]interface{}{},
	}
	if props, ok := params["properties"].(map[string]interface{}); ok {
		schema.Properties = props
	}
	if required, ok := params["required"].([]string); ok {
		schema.Required = required
	}
	return schema
}

// processAnthropicResponse converts an Anthropic response into a
// session.Turn.
func processAnthropicResponse(resp *anthropic.Message) (*session.Turn, error) {
	if len(resp.Content) == 0 {
		return nil, errors.Wrapf(errors.ErrNoChoices, "model %s", resp.Model)
	}

	var content string
	var calls []session.ToolCall

	for _, block := range resp.Content {
		switch b := block.AsAny().(type) {
		case anthropic.TextBlock:
			content += b.Text
		case anthropic.ToolUseBlock:
			var args map[string]interface{}
			if err := json.Unmarshal(b.Input, &args); err != nil {
				return nil, errors.Wrapf(errors.ErrArgumentDecode, "tool use %s: %v", b.ID, err)
			}
			calls = append(calls, session.ToolCall{ID: b.ID, Name: b.Name, Args: args})
		}
	}

	return &session.Turn{
		Role:      session.RoleAssistant,
		Content:   content,
		ToolCalls: calls,
	}, nil
}
