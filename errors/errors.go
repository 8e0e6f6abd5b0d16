// Package errors provides error construction helpers that annotate errors
// with the file and line of their origin, plus the sentinel conditions that
// abort a run before state is persisted.
package errors

import (
	"errors"
	"fmt"
	"path/filepath"
	"runtime"
)

// Fatal conditions. Any of these propagates to the top of the process,
// aborting the run without saving conversation state.
var (
	// ErrNoChoices means the completion endpoint returned an empty
	// candidate list.
	ErrNoChoices = errors.New("completion endpoint returned no choices")

	// ErrArgumentDecode means a tool call carried an argument payload that
	// is not a single-key string map with a non-empty command.
	ErrArgumentDecode = errors.New("malformed tool call arguments")

	// ErrDirectoryNotFound means a cd target does not exist.
	ErrDirectoryNotFound = errors.New("directory not found")

	// ErrOutputDecode means subprocess output was not valid UTF-8.
	ErrOutputDecode = errors.New("command output is not valid text")

	// ErrCorruptState means the persisted conversation file exists but
	// does not parse.
	ErrCorruptState = errors.New("conversation state file is corrupt")

	// ErrMaxRounds means the model kept requesting commands past the
	// configured round cap.
	ErrMaxRounds = errors.New("maximum model rounds exceeded")
)

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// New creates a new error with file and line number information.
func New(format string, a ...interface{}) error {
	_, file, line, ok := runtime.Caller(1)
	if !ok {
		file = "???"
		line = 0
	} else {
		file = filepath.Base(file)
	}
	return fmt.Errorf("[%s:%d] %s", file, line, fmt.Sprintf(format, a...))
}

// Wrapf adds context (including file and line number) to an existing error.
// If the provided error is nil, Wrapf returns nil. The original error stays
// reachable through the chain, so sentinel checks with Is still work.
func Wrapf(err error, format string, a ...interface{}) error {
	if err == nil {
		return nil
	}
	_, file, line, ok := runtime.Caller(1)
	if !ok {
		file = "???"
		line = 0
	} else {
		file = filepath.Base(file)
	}
	return fmt.Errorf("[%s:%d] %s: %w", file, line, fmt.Sprintf(format, a...), err)
}
