// Package config loads termpilot configuration from the user's home
// directory and the current working directory, with the latter taking
// precedence. All well-known file paths live here so nothing else in the
// program hardcodes them.
package config

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/kallax-dev/termpilot/errors"
)

// MCPServer describes an external Model Context Protocol tool server to
// spawn. Its tools are advertised alongside the terminal tool in structured
// tool-call mode.
type MCPServer struct {
	Name    string   `yaml:"name"`
	Command string   `yaml:"command"`
	Args    []string `yaml:"args"`
}

// Paths holds every file the program reads or writes outside the shell
// commands themselves.
type Paths struct {
	DataDir   string `yaml:"data_dir"`
	StateFile string `yaml:"state_file"`
	AuditLog  string `yaml:"audit_log"`
	DebugLog  string `yaml:"debug_log"`
}

type Config struct {
	LLMClient string `yaml:"llm"`
	Model     string `yaml:"model"`
	APIBase   string `yaml:"api_base"`
	APIKey    string `yaml:"api_key"`

	// ToolCalls selects the structured tool-call conversation mode instead
	// of the inline marker convention.
	ToolCalls bool `yaml:"tool_calls"`
	// Safe enables the interactive confirmation gate.
	Safe bool `yaml:"safe"`
	// MaxRounds caps model rounds per invocation in tool-call mode.
	MaxRounds int `yaml:"max_rounds"`

	// RestrictedPaths are doublestar globs; cd targets matching any of
	// them are refused.
	RestrictedPaths []string    `yaml:"restricted_paths"`
	MCPServers      []MCPServer `yaml:"mcp_servers"`

	Paths Paths `yaml:"paths"`
}

// DefaultMaxRounds bounds the tool-call loop when the config does not say
// otherwise.
const DefaultMaxRounds = 16

const configDirName = ".termpilot"

// Default returns the built-in configuration, with paths rooted under
// ~/.termpilot.
func Default() *Config {
	dataDir := configDirName
	if home, err := os.UserHomeDir(); err == nil {
		dataDir = filepath.Join(home, configDirName)
	}
	return &Config{
		LLMClient: "openai",
		Model:     "gpt-4o-mini",
		MaxRounds: DefaultMaxRounds,
		Paths: Paths{
			DataDir:   dataDir,
			StateFile: filepath.Join(dataDir, "conversation.json"),
			AuditLog:  filepath.Join(dataDir, "audit.csv"),
			DebugLog:  filepath.Join(dataDir, "termpilot.log"),
		},
	}
}

// Load builds the effective configuration: defaults, then the user-level
// config file, then the project-level one.
func Load() (*Config, error) {
	cfg := Default()

	home, err := os.UserHomeDir()
	if err == nil {
		userConfigPath := filepath.Join(home, configDirName, "config.yaml")
		if _, err := os.Stat(userConfigPath); err == nil {
			if err := loadFromFile(userConfigPath, cfg); err != nil {
				return nil, errors.Wrapf(err, "error loading user config")
			}
		}
	}

	wd, err := os.Getwd()
	if err != nil {
		return nil, errors.Wrapf(err, "could not get working directory")
	}
	projectConfigPath := filepath.Join(wd, configDirName, "config.yaml")
	if _, err := os.Stat(projectConfigPath); err == nil {
		if err := loadFromFile(projectConfigPath, cfg); err != nil {
			return nil, errors.Wrapf(err, "error loading project config")
		}
	}

	if cfg.MaxRounds <= 0 {
		cfg.MaxRounds = DefaultMaxRounds
	}
	return cfg, nil
}

// EnsureDataDir creates the data directory the state, audit, and debug log
// files live in.
func (c *Config) EnsureDataDir() error {
	if err := os.MkdirAll(c.Paths.DataDir, 0755); err != nil {
		return errors.Wrapf(err, "could not create data directory %s", c.Paths.DataDir)
	}
	return nil
}

func loadFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	// Unmarshal overwrites fields present in the YAML, which gives a
	// simple merge where later files replace earlier values.
	return yaml.Unmarshal(data, cfg)
}
