// Package llm holds the clients for the chat-completion endpoints the agent
// can talk to. Every client converts between the session.Turn schema and its
// provider's wire format; the rest of the program never sees provider types.
package llm

import (
	"context"

	"github.com/kallax-dev/termpilot/session"
	"github.com/kallax-dev/termpilot/tools"
)

// Client is the interface for one conversation round trip: the full turn
// history in, one assistant turn out. An empty candidate list from the
// endpoint surfaces as errors.ErrNoChoices.
type Client interface {
	Chat(ctx context.Context, turns []session.Turn, available []tools.Tool) (*session.Turn, error)
}
