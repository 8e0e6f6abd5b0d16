package errors

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapfKeepsSentinelReachable(t *testing.T) {
	err := Wrapf(ErrDirectoryNotFound, "cd %s", "/nope")
	require.Error(t, err)
	assert.True(t, Is(err, ErrDirectoryNotFound))
	assert.Contains(t, err.Error(), "/nope")
	assert.Contains(t, err.Error(), "errors_test.go")
}

func TestWrapfNil(t *testing.T) {
	assert.NoError(t, Wrapf(nil, "ignored"))
}

func TestNewIncludesCaller(t *testing.T) {
	err := New("boom %d", 42)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom 42")
	assert.Contains(t, err.Error(), "errors_test.go")
}
