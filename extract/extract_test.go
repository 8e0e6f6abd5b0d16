package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kallax-dev/termpilot/errors"
	"github.com/kallax-dev/termpilot/session"
)

func assistantText(content string) session.Turn {
	return session.Turn{Role: session.RoleAssistant, Content: content}
}

func TestInlineExtractsFencedCommand(t *testing.T) {
	turn := assistantText("Sure, let me list the files.\n\nterminal_call:\n```\nls -la\n```\nThat should do it.")

	calls, err := Inline{}.Extract(turn)
	require.NoError(t, err)
	require.Len(t, calls, 1)
	assert.Equal(t, "ls -la", Command(calls[0]))
	assert.Equal(t, "terminal", calls[0].Name)
	assert.Empty(t, calls[0].ID)
}

func TestInlineTrimsWhitespace(t *testing.T) {
	turn := assistantText("terminal_call:\n```\n  echo hi  \n```")

	calls, err := Inline{}.Extract(turn)
	require.NoError(t, err)
	require.Len(t, calls, 1)
	assert.Equal(t, "echo hi", Command(calls[0]))
}

func TestInlineNoMarkerIsNotAnError(t *testing.T) {
	for _, content := range []string{
		"Just a plain answer.",
		"Here is a block without the marker:\n```\nls\n```",
		"terminal_call:\n```\nunterminated fence",
		"terminal_call:\n```\n\n```", // empty fenced content
	} {
		calls, err := Inline{}.Extract(assistantText(content))
		require.NoError(t, err)
		assert.Empty(t, calls, "content: %q", content)
	}
}

func TestInlineIsSingleShot(t *testing.T) {
	assert.True(t, Inline{}.SingleShot())
	assert.False(t, ToolCalls{}.SingleShot())
}

func TestToolCallsSurfacesTerminalCalls(t *testing.T) {
	turn := session.Turn{
		Role: session.RoleAssistant,
		ToolCalls: []session.ToolCall{
			{ID: "call_1", Name: "terminal", Args: map[string]interface{}{"command": "pwd"}},
			{ID: "call_2", Name: "terminal", Args: map[string]interface{}{"command": "ls"}},
		},
	}

	calls, err := ToolCalls{}.Extract(turn)
	require.NoError(t, err)
	require.Len(t, calls, 2)
	assert.Equal(t, "pwd", Command(calls[0]))
	assert.Equal(t, "ls", Command(calls[1]))
}

func TestToolCallsNoCallsMeansNoCommand(t *testing.T) {
	calls, err := ToolCalls{}.Extract(assistantText("all done"))
	require.NoError(t, err)
	assert.Empty(t, calls)
}

func TestToolCallsRejectsMalformedArguments(t *testing.T) {
	cases := map[string]map[string]interface{}{
		"extra key":    {"command": "ls", "shell": "bash"},
		"wrong key":    {"cmd": "ls"},
		"non-string":   {"command": 7},
		"empty string": {"command": "   "},
		"no args":      {},
	}
	for name, args := range cases {
		t.Run(name, func(t *testing.T) {
			turn := session.Turn{
				Role:      session.RoleAssistant,
				ToolCalls: []session.ToolCall{{ID: "call_1", Name: "terminal", Args: args}},
			}
			_, err := ToolCalls{}.Extract(turn)
			assert.True(t, errors.Is(err, errors.ErrArgumentDecode))
		})
	}
}

func TestToolCallsPassesThroughForeignTools(t *testing.T) {
	turn := session.Turn{
		Role: session.RoleAssistant,
		ToolCalls: []session.ToolCall{
			{ID: "call_1", Name: "lookup_docs", Args: map[string]interface{}{"query": "go modules", "limit": 3}},
		},
	}

	calls, err := ToolCalls{}.Extract(turn)
	require.NoError(t, err)
	require.Len(t, calls, 1)
	assert.Equal(t, "lookup_docs", calls[0].Name)
}
