package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/kallax-dev/termpilot/agent"
	"github.com/kallax-dev/termpilot/audit"
	"github.com/kallax-dev/termpilot/config"
	"github.com/kallax-dev/termpilot/extract"
	"github.com/kallax-dev/termpilot/gate"
	"github.com/kallax-dev/termpilot/llm"
	"github.com/kallax-dev/termpilot/session"
	"github.com/kallax-dev/termpilot/shell"
	"github.com/kallax-dev/termpilot/tools"
	"github.com/kallax-dev/termpilot/tools/mcp"
)

func main() {
	continueFlag := flag.Bool("c", false, "Continue the previous conversation")
	modelFlag := flag.String("m", "", "Model name to request")
	baseFlag := flag.String("b", "", "API base URL (OpenAI-compatible endpoints)")
	keyFlag := flag.String("k", "", "API key (falls back to the provider's environment variable)")
	safeFlag := flag.Bool("s", false, "Ask for confirmation before executing each command")
	toolCallsFlag := flag.Bool("t", false, "Use structured tool calls instead of the inline marker convention")
	flag.Parse()

	message := strings.Join(flag.Args(), " ")
	if message == "" {
		fmt.Fprint(os.Stderr, "Message: ")
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && line == "" {
			fmt.Fprintln(os.Stderr, "no message given")
			os.Exit(1)
		}
		message = strings.TrimSpace(line)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %+v\n", err)
		os.Exit(1)
	}

	// Flags override file configuration.
	if *modelFlag != "" {
		cfg.Model = *modelFlag
	}
	if *baseFlag != "" {
		cfg.APIBase = *baseFlag
	}
	if *keyFlag != "" {
		cfg.APIKey = *keyFlag
	}
	if *safeFlag {
		cfg.Safe = true
	}
	if *toolCallsFlag {
		cfg.ToolCalls = true
	}

	if err := cfg.EnsureDataDir(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %+v\n", err)
		os.Exit(1)
	}

	logger, err := initializeLogger(cfg.Paths.DebugLog)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing logger: %+v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()
	logger.Info("termpilot invoked", zap.Strings("args", os.Args[1:]))

	ctx := context.Background()

	client, err := newClient(ctx, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing %s client: %+v\n", cfg.LLMClient, err)
		os.Exit(1)
	}

	var extractor extract.Extractor = extract.Inline{}
	if cfg.ToolCalls {
		extractor = extract.ToolCalls{}
	}

	registry := tools.NewRegistry()
	if cfg.ToolCalls {
		for _, server := range cfg.MCPServers {
			mcpClient, err := mcp.Connect(ctx, server.Name, server.Command, server.Args, logger)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error connecting to MCP server %q: %+v\n", server.Name, err)
				os.Exit(1)
			}
			defer mcpClient.Close()
			remote, err := mcpClient.Tools(ctx)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error listing tools from MCP server %q: %+v\n", server.Name, err)
				os.Exit(1)
			}
			for _, t := range remote {
				registry.Register(t)
			}
		}
	}

	a := agent.New(agent.Options{
		Client:    client,
		Extractor: extractor,
		Runner:    shell.NewRunner(cfg.RestrictedPaths, logger),
		Gate:      gate.New(cfg.Safe, os.Stdin, os.Stderr),
		Audit:     audit.NewLogger(cfg.Paths.AuditLog, logger),
		Store:     session.NewStore(cfg.Paths.StateFile),
		Registry:  registry,
		Resume:    *continueFlag,
		MaxRounds: cfg.MaxRounds,
		Out:       os.Stdout,
		Logger:    logger,
	})

	if err := a.Run(ctx, message); err != nil {
		logger.Error("run failed", zap.Error(err))
		fmt.Fprintf(os.Stderr, "Error: %+v\n", err)
		os.Exit(1)
	}
}

// initializeLogger sends debug logs to a file so stdout stays clean for the
// conversation itself.
func initializeLogger(path string) (*zap.Logger, error) {
	loggerConfig := zap.NewProductionConfig()
	loggerConfig.OutputPaths = []string{path}
	return loggerConfig.Build()
}

func newClient(ctx context.Context, cfg *config.Config) (llm.Client, error) {
	switch cfg.LLMClient {
	case "openai":
		return llm.NewOpenAIClient(cfg.APIBase, cfg.APIKey, cfg.Model)
	case "anthropic":
		return llm.NewAnthropicClient(cfg.APIKey, cfg.Model)
	case "gemini":
		return llm.NewGeminiClient(ctx, cfg.APIKey, cfg.Model)
	case "bedrock":
		return llm.NewBedrockClient(ctx, cfg.Model)
	case "mock":
		return &llm.MockClient{}, nil
	default:
		return nil, fmt.Errorf("unknown LLM client %q", cfg.LLMClient)
	}
}
