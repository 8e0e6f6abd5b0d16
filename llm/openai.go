package llm

import (
	"context"
	"encoding/json"
	"os"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"

	"github.com/kallax-dev/termpilot/errors"
	"github.com/kallax-dev/termpilot/session"
	"github.com/kallax-dev/termpilot/tools"
)

// OpenAIClient talks to the OpenAI Chat Completions API or any compatible
// endpoint reachable through a custom base URL.
type OpenAIClient struct {
	client *openai.Client
	model  string
}

// NewOpenAIClient creates an OpenAI client. baseURL and apiKey may be empty,
// in which case the OPENAI_BASE_URL and OPENAI_API_KEY environment variables
// apply.
func NewOpenAIClient(baseURL, apiKey, model string) (*OpenAIClient, error) {
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if apiKey == "" {
		return nil, errors.New("no API key: pass -k or set OPENAI_API_KEY")
	}

	options := []option.RequestOption{
		option.WithAPIKey(apiKey),
	}
	if baseURL == "" {
		baseURL = os.Getenv("OPENAI_BASE_URL")
	}
	if baseURL != "" {
		options = append(options, option.WithBaseURL(baseURL))
	}

	c := openai.NewClient(options...)
	return &OpenAIClient{client: &c, model: model}, nil
}

// Chat sends the turn history and returns the assistant's reply as a turn.
func (o *OpenAIClient) Chat(ctx context.Context, turns []session.Turn, available []tools.Tool) (*session.Turn, error) {
	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(o.model),
		Messages: convertTurnsToOpenAIMessages(turns),
		Tools:    convertToolsToOpenAITools(available),
	}

	resp, err := o.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to send message to OpenAI")
	}

	return processOpenAIResponse(resp)
}

// processOpenAIResponse converts an API response into a session.Turn.
func processOpenAIResponse(resp *openai.ChatCompletion) (*session.Turn, error) {
	if len(resp.Choices) == 0 {
		return nil, errors.Wrapf(errors.ErrNoChoices, "model %s", resp.Model)
	}

	choice := resp.Choices[0].Message

	if len(choice.ToolCalls) > 0 {
		var calls []session.ToolCall
		for _, tc := range choice.ToolCalls {
			var args map[string]interface{}
			// Arguments arrive as a JSON string; a flat object is expected.
			if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err != nil {
				return nil, errors.Wrapf(errors.ErrArgumentDecode, "tool call %s: %v", tc.ID, err)
			}
			calls = append(calls, session.ToolCall{
				ID:   tc.ID,
				Name: tc.Function.Name,
				Args: args,
			})
		}
		return &session.Turn{
			Role:      session.RoleAssistant,
			Content:   choice.Content,
			ToolCalls: calls,
		}, nil
	}

	return &session.Turn{Role: session.RoleAssistant, Content: choice.Content}, nil
}

// convertTurnsToOpenAIMessages converts our turn history to OpenAI's message
// format. A tool turn without a call ID comes from the legacy inline variant
// and is presented as user-provided output.
func convertTurnsToOpenAIMessages(turns []session.Turn) []openai.ChatCompletionMessageParamUnion {
	var messages []openai.ChatCompletionMessageParamUnion
	for _, turn := range turns {
		switch turn.Role {
		case session.RoleSystem:
			messages = append(messages, openai.SystemMessage(turn.Content))
		case session.RoleAssistant:
			assistantMessage := openai.ChatCompletionMessage{
				Role:    "assistant",
				Content: turn.Content,
			}
			if len(turn.ToolCalls) > 0 {
				var toolCalls []openai.ChatCompletionMessageToolCallUnion
				for _, tc := range turn.ToolCalls {
					argsBytes, err := json.Marshal(tc.Args)
					if err != nil {
						continue
					}
					toolCalls = append(toolCalls, openai.ChatCompletionMessageToolCallUnion{
						ID:   tc.ID,
						Type: "function",
						Function: openai.ChatCompletionMessageFunctionToolCallFunction{
							Name:      tc.Name,
							Arguments: string(argsBytes),
						},
					})
				}
				assistantMessage.ToolCalls = toolCalls
			}
			messages = append(messages, assistantMessage.ToParam())
		case session.RoleTool:
			if len(turn.ToolCalls) == 1 && turn.ToolCalls[0].ID != "" {
				messages = append(messages, openai.ToolMessage(turn.Content, turn.ToolCalls[0].ID))
			} else {
				messages = append(messages, openai.UserMessage(turn.Content))
			}
		case session.RoleUser:
			fallthrough
		default:
			messages = append(messages, openai.UserMessage(turn.Content))
		}
	}
	return messages
}

// convertToolsToOpenAITools converts tool declarations to the OpenAI format.
func convertToolsToOpenAITools(ts []tools.Tool) []openai.ChatCompletionToolUnionParam {
	if len(ts) == 0 {
		return nil
	}
	var openAITools []openai.ChatCompletionToolUnionParam
	for _, t := range ts {
		openAITools = append(openAITools, openai.ChatCompletionFunctionTool(openai.FunctionDefinitionParam{
			Name:        t.Name(),
			Description: openai.String(t.Description()),
			Parameters:  openai.FunctionParameters(t.Parameters()),
		}))
	}
	return openAITools
}
