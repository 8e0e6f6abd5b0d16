package llm

import (
	"context"
	"fmt"

	"github.com/kallax-dev/termpilot/session"
	"github.com/kallax-dev/termpilot/tools"
)

// MockClient is a stand-in for offline use and wiring tests. It parrots the
// last message back and never requests a command.
type MockClient struct{}

func (m *MockClient) Chat(ctx context.Context, turns []session.Turn, available []tools.Tool) (*session.Turn, error) {
	last := ""
	if len(turns) > 0 {
		last = turns[len(turns)-1].Content
	}
	return &session.Turn{
		Role:    session.RoleAssistant,
		Content: fmt.Sprintf("mock response to: %q", last),
	}, nil
}
