// Package tools declares the tools the agent advertises to the model. The
// terminal tool is built in and executed by the orchestrator itself; tools
// contributed by MCP servers are Invokable and run out of process.
package tools

import "context"

// TerminalName is the fixed function name the model uses to request a shell
// command.
const TerminalName = "terminal"

// Tool is the declaration surface sent to the completion endpoint.
type Tool interface {
	Name() string
	Description() string
	// Parameters returns the JSON schema of the tool's arguments as a
	// plain map, ready to serialize into a provider request.
	Parameters() map[string]interface{}
}

// Invokable is a Tool whose execution is delegated to an external provider,
// such as an MCP server.
type Invokable interface {
	Tool
	Invoke(ctx context.Context, args map[string]interface{}) (string, error)
}

// Terminal is the built-in shell command tool. It is declaration-only: the
// orchestrator executes terminal requests itself so it can apply the safety
// gate and track the working directory.
type Terminal struct{}

func (Terminal) Name() string { return TerminalName }

func (Terminal) Description() string {
	return "Run a terminal command and get the output. Maintains the current working directory across calls."
}

func (Terminal) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"command": map[string]interface{}{
				"type":        "string",
				"description": "The command to execute",
			},
		},
		"required": []string{"command"},
	}
}

// Registry holds the invokable tools available to the agent, keyed by name.
type Registry struct {
	byName map[string]Invokable
	order  []string
}

func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]Invokable)}
}

// Register adds an invokable tool. A later registration with the same name
// replaces the earlier one.
func (r *Registry) Register(t Invokable) {
	if _, exists := r.byName[t.Name()]; !exists {
		r.order = append(r.order, t.Name())
	}
	r.byName[t.Name()] = t
}

// Lookup returns the invokable tool with the given name.
func (r *Registry) Lookup(name string) (Invokable, bool) {
	t, ok := r.byName[name]
	return t, ok
}

// Declarations returns the full tool list to advertise: the terminal tool
// first, then every registered invokable in registration order.
func (r *Registry) Declarations() []Tool {
	decls := make([]Tool, 0, len(r.order)+1)
	decls = append(decls, Terminal{})
	for _, name := range r.order {
		decls = append(decls, r.byName[name])
	}
	return decls
}
