// Package agent orchestrates one run of the assistant: it relays the user's
// message to the model, extracts requested commands from the reply, executes
// them against the tracked working directory, and feeds results back until
// the model answers in plain text or the round cap is reached.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"os"

	"go.uber.org/zap"

	"github.com/kallax-dev/termpilot/audit"
	"github.com/kallax-dev/termpilot/errors"
	"github.com/kallax-dev/termpilot/extract"
	"github.com/kallax-dev/termpilot/gate"
	"github.com/kallax-dev/termpilot/llm"
	"github.com/kallax-dev/termpilot/session"
	"github.com/kallax-dev/termpilot/shell"
	"github.com/kallax-dev/termpilot/tools"
)

const defaultMaxRounds = 16

const inlineSystemPrompt = `You are a terminal assistant. You help the user by running shell commands on their machine.

When a command is needed, include it in your reply using exactly this form:
terminal_call:
` + "```" + `
<command>
` + "```" + `

Emit at most one command per reply. Commands run with POSIX sh in a session whose working directory persists between commands. Be cautious with destructive operations and prefer read-only commands when inspecting the system.`

const toolCallSystemPrompt = `You are a terminal assistant. You help the user by running shell commands on their machine through the "terminal" tool.

Commands run with POSIX sh in a session whose working directory persists between calls. Call the tool as many times as needed, then answer the user in plain text. Be cautious with destructive operations and prefer read-only commands when inspecting the system.`

// SystemPrompt returns the instructional prompt for a fresh session.
func SystemPrompt(structured bool) string {
	if structured {
		return toolCallSystemPrompt
	}
	return inlineSystemPrompt
}

// CommandRunner executes one shell command against a working directory.
// *shell.Runner satisfies it.
type CommandRunner interface {
	Run(ctx context.Context, command, cwd string) (*shell.Result, error)
}

// Options wires an Agent. Client, Extractor, Runner, Gate, Audit, and Store
// are required; the rest default sensibly.
type Options struct {
	Client    llm.Client
	Extractor extract.Extractor
	Runner    CommandRunner
	Gate      *gate.Gate
	Audit     *audit.Logger
	Store     *session.Store
	Registry  *tools.Registry
	// Resume continues the persisted conversation instead of starting a
	// fresh one.
	Resume    bool
	MaxRounds int
	Out       io.Writer
	Logger    *zap.Logger
}

// Agent drives the conversation loop.
type Agent struct {
	client    llm.Client
	extractor extract.Extractor
	runner    CommandRunner
	gate      *gate.Gate
	audit     *audit.Logger
	store     *session.Store
	registry  *tools.Registry
	resume    bool
	maxRounds int
	out       io.Writer
	logger    *zap.Logger
}

func New(opts Options) *Agent {
	if opts.Registry == nil {
		opts.Registry = tools.NewRegistry()
	}
	if opts.MaxRounds <= 0 {
		opts.MaxRounds = defaultMaxRounds
	}
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Agent{
		client:    opts.Client,
		extractor: opts.Extractor,
		runner:    opts.Runner,
		gate:      opts.Gate,
		audit:     opts.Audit,
		store:     opts.Store,
		registry:  opts.Registry,
		resume:    opts.Resume,
		maxRounds: opts.MaxRounds,
		out:       opts.Out,
		logger:    opts.Logger,
	}
}

// Run appends the user's message to the session, drives the model loop, and
// persists the state once on success. Any error aborts without persisting.
func (a *Agent) Run(ctx context.Context, userMessage string) error {
	structured := !a.extractor.SingleShot()

	state, err := a.loadOrInit(structured)
	if err != nil {
		return err
	}

	state.Append(session.Turn{Role: session.RoleUser, Content: userMessage})
	if err := a.audit.Log(audit.Event{Kind: audit.KindUser, Details: userMessage}); err != nil {
		return err
	}

	var declarations []tools.Tool
	if structured {
		declarations = a.registry.Declarations()
	}

	for round := 0; round < a.maxRounds; round++ {
		reply, err := a.client.Chat(ctx, state.Turns, declarations)
		if err != nil {
			return err
		}

		calls, err := a.extractor.Extract(*reply)
		if err != nil {
			return err
		}

		state.Append(*reply)
		if err := a.audit.Log(audit.Event{Kind: audit.KindAssistant, Details: reply.Content}); err != nil {
			return err
		}
		if reply.Content != "" {
			fmt.Fprintln(a.out, reply.Content)
		}

		if len(calls) == 0 {
			return a.store.Save(state)
		}

		for _, call := range calls {
			if err := a.processCall(ctx, state, call); err != nil {
				return err
			}
		}

		if a.extractor.SingleShot() {
			return a.store.Save(state)
		}
	}

	return errors.Wrapf(errors.ErrMaxRounds, "gave up after %d rounds", a.maxRounds)
}

// loadOrInit returns the persisted state when resuming, or a fresh one
// otherwise. Resuming with no state file falls back to a fresh session; a
// state file that exists but does not parse is fatal.
func (a *Agent) loadOrInit(structured bool) (*session.State, error) {
	if a.resume {
		state, err := a.store.Load()
		if err == nil {
			return state, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
		a.logger.Info("no previous session to resume")
	}
	return a.store.Init(SystemPrompt(structured))
}

// processCall executes one extracted call and appends its result as a tool
// turn.
func (a *Agent) processCall(ctx context.Context, state *session.State, call session.ToolCall) error {
	details := extract.Command(call)
	if details == "" {
		if raw, err := json.Marshal(call.Args); err == nil {
			details = string(raw)
		}
	}
	if err := a.audit.Log(audit.Event{
		Kind:          audit.KindToolCall,
		CorrelationID: call.ID,
		Function:      call.Name,
		Details:       details,
	}); err != nil {
		return err
	}

	var content string
	var kind audit.Kind
	var err error

	if call.Name == tools.TerminalName {
		content, kind, err = a.runTerminal(ctx, state, extract.Command(call))
	} else {
		content, kind = a.runRegistered(ctx, call)
	}
	if err != nil {
		return err
	}

	state.Append(session.Turn{
		Role:      session.RoleTool,
		Content:   content,
		ToolCalls: []session.ToolCall{{ID: call.ID, Name: call.Name}},
	})
	return a.audit.Log(audit.Event{
		Kind:          kind,
		CorrelationID: call.ID,
		Function:      call.Name,
		Details:       content,
	})
}

// runTerminal gates and executes a shell command, updating the tracked
// working directory.
func (a *Agent) runTerminal(ctx context.Context, state *session.State, command string) (string, audit.Kind, error) {
	if !a.gate.Confirm(command) {
		a.logger.Info("command canceled", zap.String("command", command))
		return "command canceled by the user", audit.KindToolCanceled, nil
	}

	res, err := a.runner.Run(ctx, command, state.Terminal.Cwd)
	if err != nil {
		return "", "", err
	}

	prevCwd := state.Terminal.Cwd
	state.Terminal.Cwd = res.Cwd

	content := formatResult(res, prevCwd)
	fmt.Fprint(a.out, content)
	if content != "" && content[len(content)-1] != '\n' {
		fmt.Fprintln(a.out)
	}
	return content, audit.KindToolOutput, nil
}

// runRegistered dispatches a non-terminal call to the tool registry. Failures
// are reported to the model as content, not raised.
func (a *Agent) runRegistered(ctx context.Context, call session.ToolCall) (string, audit.Kind) {
	tool, ok := a.registry.Lookup(call.Name)
	if !ok {
		return fmt.Sprintf("tool %q is not available", call.Name), audit.KindToolOutput
	}
	out, err := tool.Invoke(ctx, call.Args)
	if err != nil {
		a.logger.Warn("tool invocation failed", zap.String("tool", call.Name), zap.Error(err))
		return fmt.Sprintf("tool %q failed: %v", call.Name, err), audit.KindToolOutput
	}
	return out, audit.KindToolOutput
}

// formatResult renders a command outcome for the model. Non-zero exits are
// reported with their output rather than treated as failures.
func formatResult(res *shell.Result, prevCwd string) string {
	if res.Cwd != prevCwd {
		return fmt.Sprintf("working directory is now %s", res.Cwd)
	}
	if res.ExitCode != 0 {
		out := fmt.Sprintf("command exited with code %d", res.ExitCode)
		if res.Stdout != "" {
			out += "\nstdout:\n" + res.Stdout
		}
		if res.Stderr != "" {
			out += "\nstderr:\n" + res.Stderr
		}
		return out
	}
	if res.Stderr != "" && res.Stdout == "" {
		return res.Stderr
	}
	return res.Stdout
}
