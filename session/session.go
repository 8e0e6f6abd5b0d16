// Package session holds the persisted conversation state: the ordered turn
// history plus the tracked terminal working directory. The whole state is one
// JSON document that is loaded at the start of a run and rewritten once at
// the end.
package session

import (
	"encoding/json"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/kallax-dev/termpilot/errors"
)

// Role identifies who produced a turn.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ToolCall is a request from the model to execute one tool. IDs are assigned
// by the model and are unique within a turn. The legacy inline extraction
// path synthesizes calls with an empty ID.
type ToolCall struct {
	ID   string                 `json:"id"`
	Name string                 `json:"name"`
	Args map[string]interface{} `json:"args,omitempty"`
}

// Turn is one conversation entry. Assistant turns may carry tool calls; tool
// turns reference the call they answer through ToolCalls[0] (or carry none in
// the legacy inline variant).
type Turn struct {
	Role      Role       `json:"role"`
	Content   string     `json:"content,omitempty"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
}

// TerminalState tracks the shell working directory across commands. Only
// directory-changing commands mutate it.
type TerminalState struct {
	Cwd string `json:"cwd"`
}

// State is the unit of persisted session memory.
type State struct {
	Turns    []Turn        `json:"turns"`
	Terminal TerminalState `json:"terminalState"`
}

// Append adds a turn at the end of the history. Turns are never reordered.
func (s *State) Append(t Turn) {
	s.Turns = append(s.Turns, t)
}

// Store reads and writes the state file at a fixed path.
type Store struct {
	path string
}

// NewStore creates a store for the given state file path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Init builds a fresh state: a single system turn with the given
// instructional prompt, and the process working directory as the tracked cwd.
func (st *Store) Init(systemPrompt string) (*State, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, errors.Wrapf(err, "could not determine working directory")
	}
	return &State{
		Turns:    []Turn{{Role: RoleSystem, Content: systemPrompt}},
		Terminal: TerminalState{Cwd: cwd},
	}, nil
}

// Load reads the persisted state. A missing file surfaces as fs.ErrNotExist;
// a file that exists but does not parse surfaces as errors.ErrCorruptState.
func (st *Store) Load() (*State, error) {
	data, err := os.ReadFile(st.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
		return nil, errors.Wrapf(err, "could not read state file %s", st.path)
	}

	var s State
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, errors.Wrapf(errors.ErrCorruptState, "could not parse state file %s: %v", st.path, err)
	}
	return &s, nil
}

// Save overwrites the state file with the given state. The write goes to a
// temp file in the same directory first and is renamed into place, so a crash
// mid-write cannot corrupt the next load.
func (st *Store) Save(state *State) error {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return errors.Wrapf(err, "failed to serialize state")
	}

	dir := filepath.Dir(st.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Wrapf(err, "could not create state directory %s", dir)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(st.path)+".*")
	if err != nil {
		return errors.Wrapf(err, "could not create temp state file")
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return errors.Wrapf(err, "could not write temp state file")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return errors.Wrapf(err, "could not close temp state file")
	}
	if err := os.Rename(tmpName, st.path); err != nil {
		os.Remove(tmpName)
		return errors.Wrapf(err, "could not replace state file %s", st.path)
	}
	return nil
}
