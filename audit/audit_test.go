package audit

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readRows(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestHeaderWrittenOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.csv")

	l := NewLogger(path, nil)
	require.NoError(t, l.Log(Event{Kind: KindUser, Details: "list files"}))
	require.NoError(t, l.Log(Event{Kind: KindAssistant, Details: "running ls"}))

	// A second logger simulates a later process run sharing the file.
	l2 := NewLogger(path, nil)
	require.NoError(t, l2.Log(Event{Kind: KindToolOutput, CorrelationID: "call_1", Function: "terminal", Details: "a.txt"}))

	rows := readRows(t, path)
	require.Len(t, rows, 4)
	assert.Equal(t, []string{"timestamp", "event_type", "host", "correlation_id", "function", "details"}, rows[0])
	assert.Equal(t, "user", rows[1][1])
	assert.Equal(t, "tool_output", rows[3][1])
	assert.Equal(t, "call_1", rows[3][3])
	assert.Equal(t, "terminal", rows[3][4])
}

func TestRowShape(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.csv")

	fixed := time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)
	timeNow = func() time.Time { return fixed }
	defer func() { timeNow = time.Now }()

	l := NewLogger(path, nil)
	require.NoError(t, l.Log(Event{Kind: KindToolCanceled, CorrelationID: "call_9", Function: "terminal", Details: "user canceled"}))

	rows := readRows(t, path)
	require.Len(t, rows, 2)
	row := rows[1]
	require.Len(t, row, 6)
	assert.Equal(t, "2025-03-14T09:26:53Z", row[0])
	assert.Equal(t, "tool_canceled", row[1])
	assert.NotEmpty(t, row[2]) // host
	assert.Equal(t, "call_9", row[3])
	assert.Equal(t, "user canceled", row[5])
}

func TestDetailsWithCommasAndNewlines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.csv")
	l := NewLogger(path, nil)

	details := "line one, with comma\nline two"
	require.NoError(t, l.Log(Event{Kind: KindToolOutput, Details: details}))

	rows := readRows(t, path)
	require.Len(t, rows, 2)
	assert.Equal(t, details, rows[1][5])
}
