// Package audit appends one CSV row per agent state transition to a log file
// shared across runs. The header is written once, when the file is created.
package audit

import (
	"encoding/csv"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/kallax-dev/termpilot/errors"
)

// Kind is the event type column.
type Kind string

const (
	KindUser         Kind = "user"
	KindAssistant    Kind = "assistant"
	KindToolCall     Kind = "tool_call"
	KindToolOutput   Kind = "tool_output"
	KindToolCanceled Kind = "tool_canceled"
)

var header = []string{"timestamp", "event_type", "host", "correlation_id", "function", "details"}

// timeNow can be overridden for testing.
var timeNow = time.Now

// Event is one state transition. CorrelationID is the ToolCall id (empty for
// turns without one); Function is the tool name, empty unless the event came
// from a tool call.
type Event struct {
	Kind          Kind
	CorrelationID string
	Function      string
	Details       string
}

// Logger appends events to the audit file.
type Logger struct {
	path   string
	host   string
	logger *zap.Logger
}

// NewLogger creates an audit logger writing to path. The hostname is resolved
// once and reused for every row.
func NewLogger(path string, logger *zap.Logger) *Logger {
	if logger == nil {
		logger = zap.NewNop()
	}
	host, err := os.Hostname()
	if err != nil {
		host = "unknown"
	}
	return &Logger{path: path, host: host, logger: logger}
}

// Log appends one row, creating the file (and writing the header) if needed.
func (l *Logger) Log(ev Event) error {
	_, statErr := os.Stat(l.path)
	writeHeader := os.IsNotExist(statErr)

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return errors.Wrapf(err, "could not open audit log %s", l.path)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if writeHeader {
		if err := w.Write(header); err != nil {
			return errors.Wrapf(err, "could not write audit header")
		}
	}

	row := []string{
		timeNow().UTC().Format(time.RFC3339),
		string(ev.Kind),
		l.host,
		ev.CorrelationID,
		ev.Function,
		ev.Details,
	}
	if err := w.Write(row); err != nil {
		return errors.Wrapf(err, "could not write audit row")
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return errors.Wrapf(err, "could not flush audit log")
	}

	l.logger.Debug("audit event", zap.String("kind", string(ev.Kind)), zap.String("correlationId", ev.CorrelationID))
	return nil
}
