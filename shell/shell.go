// Package shell executes one command at a time against a tracked working
// directory. Directory changes never spawn a subprocess: a child's chdir
// would not persist to this process, so cd is resolved here and the new
// directory is returned for the caller to track.
package shell

import (
	"bytes"
	"context"
	stderrors "errors"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/bmatcuk/doublestar/v4"
	"go.uber.org/zap"

	"github.com/kallax-dev/termpilot/errors"
)

// Result is the outcome of one command. A non-zero ExitCode is data for the
// model to react to, not an execution failure.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
	// Cwd is the working directory after the command. Only cd changes it.
	Cwd string
}

// Runner executes commands through a POSIX shell.
type Runner struct {
	denyPatterns []string
	logger       *zap.Logger
}

// NewRunner creates a runner. denyPatterns are doublestar globs; cd targets
// matching any of them are refused (reported to the model, not fatal).
func NewRunner(denyPatterns []string, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{denyPatterns: denyPatterns, logger: logger}
}

// Run executes the raw command string with `sh -c`, blocking until the
// subprocess exits. cwd is the shell's working directory. Commands whose
// first token is `cd` are handled in-process instead.
func (r *Runner) Run(ctx context.Context, command, cwd string) (*Result, error) {
	fields := strings.Fields(command)
	if len(fields) > 0 && fields[0] == "cd" {
		return r.changeDir(fields, cwd)
	}

	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	cmd.Dir = cwd
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	exitCode := 0
	if err != nil {
		var exitErr *exec.ExitError
		if stderrors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		} else {
			return nil, errors.Wrapf(err, "failed to execute command")
		}
	}

	if !utf8.Valid(stdout.Bytes()) || !utf8.Valid(stderr.Bytes()) {
		return nil, errors.Wrapf(errors.ErrOutputDecode, "command %q", command)
	}

	r.logger.Debug("command executed",
		zap.String("command", command),
		zap.String("cwd", cwd),
		zap.Int("exitCode", exitCode),
	)

	return &Result{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		ExitCode: exitCode,
		Cwd:      cwd,
	}, nil
}

// changeDir resolves a cd target against the tracked cwd. No argument means
// the home directory; relative paths resolve against cwd, not the process's
// actual directory.
func (r *Runner) changeDir(fields []string, cwd string) (*Result, error) {
	target := "~"
	if len(fields) > 1 {
		target = fields[1]
	}

	if target == "~" || strings.HasPrefix(target, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, errors.Wrapf(err, "could not resolve home directory")
		}
		target = filepath.Join(home, strings.TrimPrefix(target, "~"))
	} else if !filepath.IsAbs(target) {
		target = filepath.Join(cwd, target)
	}
	target = filepath.Clean(target)

	restricted, err := r.isRestricted(target)
	if err != nil {
		return nil, err
	}
	if restricted {
		r.logger.Warn("cd target restricted", zap.String("target", target))
		return &Result{
			Stderr:   "cd: " + target + ": access to this path is restricted",
			ExitCode: 1,
			Cwd:      cwd,
		}, nil
	}

	info, err := os.Stat(target)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, errors.Wrapf(errors.ErrDirectoryNotFound, "%s", target)
		}
		return nil, errors.Wrapf(err, "could not stat %s", target)
	}
	if !info.IsDir() {
		return nil, errors.Wrapf(errors.ErrDirectoryNotFound, "%s is not a directory", target)
	}

	r.logger.Debug("working directory changed", zap.String("cwd", target))
	return &Result{Cwd: target}, nil
}

// isRestricted checks the target against the configured deny globs.
func (r *Runner) isRestricted(path string) (bool, error) {
	for _, pattern := range r.denyPatterns {
		match, err := doublestar.PathMatch(pattern, path)
		if err != nil {
			return false, errors.Wrapf(err, "invalid deny pattern %q", pattern)
		}
		if match {
			return true, nil
		}
	}
	return false, nil
}
