// Package extract determines whether an assistant turn requests shell
// commands. Two strategies exist: scanning the assistant text for an inline
// marker followed by a fenced block, and surfacing structured tool calls
// carried on the turn. Both normalize to session.ToolCall so the orchestrator
// has a single processing path.
package extract

import (
	"strings"

	"github.com/kallax-dev/termpilot/errors"
	"github.com/kallax-dev/termpilot/session"
	"github.com/kallax-dev/termpilot/tools"
)

// Extractor inspects an assistant turn for requested commands.
type Extractor interface {
	// Extract returns the commands the turn requests, in order. Finding
	// none is not an error.
	Extract(turn session.Turn) ([]session.ToolCall, error)
	// SingleShot reports whether the conversation ends after one model
	// round regardless of whether a command was found.
	SingleShot() bool
}

const (
	inlineMarker = "terminal_call:\n```\n"
	fenceClose   = "\n```"
)

// Inline extracts at most one command from the assistant text, delimited by
// the fixed marker and a fenced block. Text around the marker is
// conversational and stays on the assistant turn untouched.
type Inline struct{}

func (Inline) Extract(turn session.Turn) ([]session.ToolCall, error) {
	start := strings.Index(turn.Content, inlineMarker)
	if start < 0 {
		return nil, nil
	}
	rest := turn.Content[start+len(inlineMarker):]
	end := strings.Index(rest, fenceClose)
	if end < 0 {
		return nil, nil
	}
	command := strings.TrimSpace(rest[:end])
	if command == "" {
		return nil, nil
	}
	// No ID: the legacy inline variant has no call correlation.
	return []session.ToolCall{{
		Name: tools.TerminalName,
		Args: map[string]interface{}{"command": command},
	}}, nil
}

func (Inline) SingleShot() bool { return true }

// ToolCalls surfaces the structured tool calls carried on the turn.
// Terminal calls must carry exactly one argument, a non-empty string named
// "command"; anything else fails with errors.ErrArgumentDecode. Calls for
// other tools are passed through for the registry to handle.
type ToolCalls struct{}

func (ToolCalls) Extract(turn session.Turn) ([]session.ToolCall, error) {
	if len(turn.ToolCalls) == 0 {
		return nil, nil
	}
	calls := make([]session.ToolCall, 0, len(turn.ToolCalls))
	for _, tc := range turn.ToolCalls {
		if tc.Name == tools.TerminalName {
			if err := validateCommandArgs(tc); err != nil {
				return nil, err
			}
		}
		calls = append(calls, tc)
	}
	return calls, nil
}

func (ToolCalls) SingleShot() bool { return false }

func validateCommandArgs(tc session.ToolCall) error {
	if len(tc.Args) != 1 {
		return errors.Wrapf(errors.ErrArgumentDecode, "tool call %s: expected a single 'command' argument, got %d arguments", tc.ID, len(tc.Args))
	}
	command, ok := tc.Args["command"].(string)
	if !ok {
		return errors.Wrapf(errors.ErrArgumentDecode, "tool call %s: 'command' argument missing or not a string", tc.ID)
	}
	if strings.TrimSpace(command) == "" {
		return errors.Wrapf(errors.ErrArgumentDecode, "tool call %s: empty command", tc.ID)
	}
	return nil
}

// Command returns the command string from a validated terminal tool call.
func Command(tc session.ToolCall) string {
	command, _ := tc.Args["command"].(string)
	return command
}
