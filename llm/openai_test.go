package llm

import (
	"testing"

	"github.com/openai/openai-go/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kallax-dev/termpilot/errors"
	"github.com/kallax-dev/termpilot/session"
)

func TestConvertTurnsToOpenAIMessages(t *testing.T) {
	turns := []session.Turn{
		{Role: session.RoleSystem, Content: "be helpful"},
		{Role: session.RoleUser, Content: "list files"},
		{Role: session.RoleAssistant, Content: "", ToolCalls: []session.ToolCall{
			{ID: "call_1", Name: "terminal", Args: map[string]interface{}{"command": "ls"}},
		}},
		{Role: session.RoleTool, Content: "a.txt\n", ToolCalls: []session.ToolCall{
			{ID: "call_1", Name: "terminal"},
		}},
	}

	messages := convertTurnsToOpenAIMessages(turns)
	require.Len(t, messages, 4)

	assert.NotNil(t, messages[0].OfSystem)
	assert.NotNil(t, messages[1].OfUser)

	require.NotNil(t, messages[2].OfAssistant)
	require.Len(t, messages[2].OfAssistant.ToolCalls, 1)
	id := messages[2].OfAssistant.ToolCalls[0].GetID()
	require.NotNil(t, id)
	assert.Equal(t, "call_1", *id)

	require.NotNil(t, messages[3].OfTool)
	assert.Equal(t, "call_1", messages[3].OfTool.ToolCallID)
}

func TestConvertTurnsToOpenAIMessagesLegacyToolTurn(t *testing.T) {
	// A tool turn without a call ID comes from the inline variant and must be
	// presented as a user message.
	turns := []session.Turn{
		{Role: session.RoleTool, Content: "exit code: 0", ToolCalls: []session.ToolCall{
			{Name: "terminal", Args: map[string]interface{}{"command": "true"}},
		}},
	}

	messages := convertTurnsToOpenAIMessages(turns)
	require.Len(t, messages, 1)
	assert.Nil(t, messages[0].OfTool)
	assert.NotNil(t, messages[0].OfUser)
}

func TestProcessOpenAIResponseNoChoices(t *testing.T) {
	_, err := processOpenAIResponse(&openai.ChatCompletion{Model: "gpt-4o-mini"})
	assert.True(t, errors.Is(err, errors.ErrNoChoices))
}

func TestProcessOpenAIResponseText(t *testing.T) {
	resp := &openai.ChatCompletion{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Content: "all done"}},
		},
	}

	turn, err := processOpenAIResponse(resp)
	require.NoError(t, err)
	assert.Equal(t, session.RoleAssistant, turn.Role)
	assert.Equal(t, "all done", turn.Content)
	assert.Empty(t, turn.ToolCalls)
}

func TestProcessOpenAIResponseToolCalls(t *testing.T) {
	resp := &openai.ChatCompletion{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{
				ToolCalls: []openai.ChatCompletionMessageToolCallUnion{{
					ID: "call_9",
					Function: openai.ChatCompletionMessageFunctionToolCallFunction{
						Name:      "terminal",
						Arguments: `{"command":"pwd"}`,
					},
				}},
			}},
		},
	}

	turn, err := processOpenAIResponse(resp)
	require.NoError(t, err)
	require.Len(t, turn.ToolCalls, 1)
	assert.Equal(t, "call_9", turn.ToolCalls[0].ID)
	assert.Equal(t, "pwd", turn.ToolCalls[0].Args["command"])
}

func TestProcessOpenAIResponseBadArguments(t *testing.T) {
	resp := &openai.ChatCompletion{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{
				ToolCalls: []openai.ChatCompletionMessageToolCallUnion{{
					ID: "call_9",
					Function: openai.ChatCompletionMessageFunctionToolCallFunction{
						Name:      "terminal",
						Arguments: `{not json`,
					},
				}},
			}},
		},
	}

	_, err := processOpenAIResponse(resp)
	assert.True(t, errors.Is(err, errors.ErrArgumentDecode))
}
