// Package mcp connects extra tools from Model Context Protocol servers.
// Each configured server runs as a subprocess speaking MCP over stdio; its
// tools are exposed alongside the built-in terminal tool.
package mcp

import (
	"context"
	"os"
	"os/exec"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/kallax-dev/termpilot/errors"
)

// Client manages the connection to a single MCP server subprocess.
type Client struct {
	name   string
	cmd    *exec.Cmd
	conn   *mcpsdk.ClientSession
	logger *zap.Logger
}

// Connect starts the server subprocess, performs the MCP handshake, and
// returns a connected client.
func Connect(ctx context.Context, name, command string, args []string, logger *zap.Logger) (*Client, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	cmd := exec.Command(command, args...)
	cmd.Stderr = os.Stderr
	client := mcpsdk.NewClient(&mcpsdk.Implementation{Name: "termpilot", Version: "v1.0.0"}, nil)
	conn, err := client.Connect(ctx, mcpsdk.NewCommandTransport(cmd))
	if err != nil {
		cmd.Process.Kill()
		return nil, errors.Wrapf(err, "failed to connect to MCP server %q", name)
	}

	return &Client{name: name, cmd: cmd, conn: conn, logger: logger}, nil
}

// Tools lists the tools the server provides, following pagination cursors
// until exhausted.
func (c *Client) Tools(ctx context.Context) ([]*RemoteTool, error) {
	var remote []*RemoteTool
	params := &mcpsdk.ListToolsParams{}
	for {
		list, err := c.conn.ListTools(ctx, params)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to list tools from MCP server %q", c.name)
		}
		for _, t := range list.Tools {
			remote = append(remote, &RemoteTool{
				client:      c,
				name:        t.Name,
				description: t.Description,
			})
		}
		if list.NextCursor == "" {
			break
		}
		params.Cursor = list.NextCursor
	}
	c.logger.Info("mcp server connected", zap.String("server", c.name), zap.Int("tools", len(remote)))
	return remote, nil
}

// Close closes the session and terminates the server subprocess.
func (c *Client) Close() error {
	if c.conn != nil {
		c.conn.Close()
	}
	if c.cmd != nil && c.cmd.Process != nil {
		c.logger.Info("terminating mcp server", zap.String("server", c.name))
		return c.cmd.Process.Kill()
	}
	return nil
}

// RemoteTool is a tool served by an MCP server. It satisfies tools.Invokable.
type RemoteTool struct {
	client      *Client
	name        string
	description string
}

func (t *RemoteTool) Name() string        { return t.name }
func (t *RemoteTool) Description() string { return t.description }

// Parameters returns a permissive object schema. MCP servers validate their
// own inputs, so the declaration does not constrain them here.
func (t *RemoteTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type":       "object",
		"properties": map[string]interface{}{},
	}
}

// Invoke calls the tool on the server and concatenates its text content.
func (t *RemoteTool) Invoke(ctx context.Context, args map[string]interface{}) (string, error) {
	result, err := t.client.conn.CallTool(ctx, &mcpsdk.CallToolParams{
		Name:      t.name,
		Arguments: args,
	})
	if err != nil {
		return "", errors.Wrapf(err, "failed to call tool %q on MCP server %q", t.name, t.client.name)
	}
	var out string
	for _, content := range result.Content {
		if text, ok := content.(*mcpsdk.TextContent); ok {
			out += text.Text
		}
	}
	return out, nil
}
