package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultPathsShareDataDir(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "openai", cfg.LLMClient)
	assert.Equal(t, DefaultMaxRounds, cfg.MaxRounds)
	assert.Equal(t, cfg.Paths.DataDir, filepath.Dir(cfg.Paths.StateFile))
	assert.Equal(t, cfg.Paths.DataDir, filepath.Dir(cfg.Paths.AuditLog))
	assert.Equal(t, cfg.Paths.DataDir, filepath.Dir(cfg.Paths.DebugLog))
}

func TestLoadFromFileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
llm: anthropic
model: claude-sonnet-4
tool_calls: true
safe: true
max_rounds: 5
restricted_paths:
  - /etc/**
mcp_servers:
  - name: docs
    command: docs-server
    args: ["--stdio"]
paths:
  state_file: /var/lib/termpilot/conversation.json
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg := Default()
	require.NoError(t, loadFromFile(path, cfg))

	assert.Equal(t, "anthropic", cfg.LLMClient)
	assert.Equal(t, "claude-sonnet-4", cfg.Model)
	assert.True(t, cfg.ToolCalls)
	assert.True(t, cfg.Safe)
	assert.Equal(t, 5, cfg.MaxRounds)
	assert.Equal(t, []string{"/etc/**"}, cfg.RestrictedPaths)
	require.Len(t, cfg.MCPServers, 1)
	assert.Equal(t, "docs", cfg.MCPServers[0].Name)
	assert.Equal(t, "/var/lib/termpilot/conversation.json", cfg.Paths.StateFile)
	// Fields absent from the file keep their defaults.
	assert.NotEmpty(t, cfg.Paths.AuditLog)
}

func TestLoadFromFileMissing(t *testing.T) {
	cfg := Default()
	err := loadFromFile(filepath.Join(t.TempDir(), "nope.yaml"), cfg)
	assert.Error(t, err)
}
