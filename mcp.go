package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/model8cli/m8cli/engine"
)

type MCPServerConfig struct {
	Command string   `json:"command"`
	Args    []string `json:"args"`
}

type MCPConfig struct {
	MCPServers map[string]MCPServerConfig `json:"mcpServers"`
}

type mcpConnection struct {
	name    string
	session *mcp.ClientSession
}

// MCPManager holds live sessions to configured MCP servers and bridges their
// tools into the registry.
type MCPManager struct {
	connections []*mcpConnection
}

// Load connects to every server in configDir/mcp.json and registers its
// tools. Connection failures are warnings; a broken server should not take
// the CLI down.
func (m *MCPManager) Load(configDir string, r *engine.Registry, verbose bool) error {
	path := filepath.Join(configDir, "mcp.json")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	var config MCPConfig
	if err := json.Unmarshal(data, &config); err != nil {
		return fmt.Errorf("parsing mcp.json: %w", err)
	}

	client := mcp.NewClient(&mcp.Implementation{
		Name:    appName,
		Version: version,
	}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for name, sc := range config.MCPServers {
		cmd := exec.Command(sc.Command, sc.Args...)
		transport := &mcp.CommandTransport{Command: cmd}

		session, err := client.Connect(ctx, transport, nil)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: MCP server %q failed to connect: %v\n", name, err)
			continue
		}
		m.connections = append(m.connections, &mcpConnection{name: name, session: session})

		result, err := session.ListTools(ctx, &mcp.ListToolsParams{})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: MCP server %q failed to list tools: %v\n", name, err)
			continue
		}

		for _, tool := range result.Tools {
			toolName := tool.Name
			sess := session
			r.Register(engine.ToolSpec{
				Name:        toolName,
				Description: tool.Description,
				Parameters:  marshalSchema(tool.InputSchema),
				Safety:      engine.Confirm,
			}, func(ctx context.Context, arguments string) (string, error) {
				var args map[string]any
				json.Unmarshal([]byte(arguments), &args)

				callCtx, callCancel := context.WithTimeout(ctx, 60*time.Second)
				defer callCancel()

				res, err := sess.CallTool(callCtx, &mcp.CallToolParams{
					Name:      toolName,
					Arguments: args,
				})
				if err != nil {
					return "", err
				}
				if res.IsError {
					return "", fmt.Errorf("tool error: %s", contentToString(res.Content))
				}
				return contentToString(res.Content), nil
			})
			if verbose {
				fmt.Fprintf(os.Stderr, "Loaded MCP tool: %s (from %s)\n", toolName, name)
			}
		}
	}
	return nil
}

func (m *MCPManager) Close() {
	for _, conn := range m.connections {
		conn.session.Close()
	}
}

func marshalSchema(schema any) json.RawMessage {
	if schema == nil {
		return json.RawMessage(`{"type":"object"}`)
	}
	b, err := json.Marshal(schema)
	if err != nil {
		return json.RawMessage(`{"type":"object"}`)
	}
	return b
}

func contentToString(content []mcp.Content) string {
	var result string
	for _, c := range content {
		if tc, ok := c.(*mcp.TextContent); ok {
			result += tc.Text
		}
	}
	return result
}
