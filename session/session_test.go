package session

import (
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kallax-dev/termpilot/errors"
)

func TestInitStartsWithSystemTurn(t *testing.T) {
	st := NewStore(filepath.Join(t.TempDir(), "state.json"))

	state, err := st.Init("you are a helpful assistant")
	require.NoError(t, err)

	require.Len(t, state.Turns, 1)
	assert.Equal(t, RoleSystem, state.Turns[0].Role)
	assert.Equal(t, "you are a helpful assistant", state.Turns[0].Content)

	wd, err := os.Getwd()
	require.NoError(t, err)
	assert.Equal(t, wd, state.Terminal.Cwd)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	st := NewStore(path)

	state := &State{
		Turns: []Turn{
			{Role: RoleSystem, Content: "system prompt"},
			{Role: RoleUser, Content: "list files"},
			{Role: RoleAssistant, ToolCalls: []ToolCall{
				{ID: "call_1", Name: "terminal", Args: map[string]interface{}{"command": "ls"}},
			}},
			{Role: RoleTool, Content: "a.txt\nb.txt", ToolCalls: []ToolCall{{ID: "call_1", Name: "terminal"}}},
		},
		Terminal: TerminalState{Cwd: "/tmp"},
	}
	require.NoError(t, st.Save(state))

	loaded, err := st.Load()
	require.NoError(t, err)
	assert.Equal(t, state, loaded)
}

func TestSaveOverwritesPriorState(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	st := NewStore(path)

	require.NoError(t, st.Save(&State{Turns: []Turn{{Role: RoleSystem, Content: "one"}}}))
	require.NoError(t, st.Save(&State{Turns: []Turn{{Role: RoleSystem, Content: "two"}}}))

	loaded, err := st.Load()
	require.NoError(t, err)
	require.Len(t, loaded.Turns, 1)
	assert.Equal(t, "two", loaded.Turns[0].Content)
}

func TestLoadMissingFile(t *testing.T) {
	st := NewStore(filepath.Join(t.TempDir(), "missing.json"))

	_, err := st.Load()
	assert.True(t, errors.Is(err, fs.ErrNotExist))
}

func TestLoadCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

	_, err := NewStore(path).Load()
	assert.True(t, errors.Is(err, errors.ErrCorruptState))
}
