package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"github.com/model8cli/m8cli/engine"
)

const defaultCommandTimeout = 30 * time.Second

// RegisterSystem adds shell and environment tools.
func RegisterSystem(r *engine.Registry) {
	r.Register(engine.ToolSpec{
		Name:        "execute_command",
		Description: "Run a shell command and return its combined output and exit status",
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"command": {"type": "string", "description": "Shell command to run"},
				"working_directory": {"type": "string", "description": "Directory to run in, defaults to the current directory"},
				"timeout_seconds": {"type": "integer", "description": "Timeout in seconds, defaults to 30"}
			},
			"required": ["command"]
		}`),
		Safety: engine.Confirm,
	}, executeCommand)

	r.Register(engine.ToolSpec{
		Name:        "system_info",
		Description: "Report the host operating system, architecture and runtime details",
		Safety:      engine.Safe,
	}, systemInfo)

	r.Register(engine.ToolSpec{
		Name:        "environment",
		Description: "Read an environment variable",
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"name": {"type": "string", "description": "Variable name"}
			},
			"required": ["name"]
		}`),
		Safety: engine.Safe,
	}, environment)
}

func executeCommand(ctx context.Context, args string) (string, error) {
	var p struct {
		Command          string `json:"command"`
		WorkingDirectory string `json:"working_directory"`
		TimeoutSeconds   int    `json:"timeout_seconds"`
	}
	if err := json.Unmarshal([]byte(args), &p); err != nil {
		return "", fmt.Errorf("invalid arguments: %w", err)
	}
	if strings.TrimSpace(p.Command) == "" {
		return "", fmt.Errorf("command is required")
	}

	timeout := defaultCommandTimeout
	if p.TimeoutSeconds > 0 {
		timeout = time.Duration(p.TimeoutSeconds) * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var cmd *exec.Cmd
	if runtime.GOOS == "windows" {
		cmd = exec.CommandContext(ctx, "cmd", "/c", p.Command)
	} else {
		cmd = exec.CommandContext(ctx, "sh", "-c", p.Command)
	}
	if p.WorkingDirectory != "" {
		cmd.Dir = p.WorkingDirectory
	}

	output, err := cmd.CombinedOutput()
	if ctx.Err() == context.DeadlineExceeded {
		return "", fmt.Errorf("command timed out after %s", timeout)
	}

	var sb strings.Builder
	sb.Write(output)
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			fmt.Fprintf(&sb, "\n(exit status %d)", exitErr.ExitCode())
			return sb.String(), nil
		}
		return "", err
	}
	if sb.Len() == 0 {
		return "(no output)", nil
	}
	return sb.String(), nil
}

func systemInfo(_ context.Context, _ string) (string, error) {
	hostname, _ := os.Hostname()
	workDir, _ := os.Getwd()

	var sb strings.Builder
	fmt.Fprintf(&sb, "OS: %s\n", runtime.GOOS)
	fmt.Fprintf(&sb, "Architecture: %s\n", runtime.GOARCH)
	fmt.Fprintf(&sb, "CPUs: %d\n", runtime.NumCPU())
	fmt.Fprintf(&sb, "Hostname: %s\n", hostname)
	fmt.Fprintf(&sb, "Working directory: %s\n", workDir)
	fmt.Fprintf(&sb, "Go runtime: %s\n", runtime.Version())
	return sb.String(), nil
}

func environment(_ context.Context, args string) (string, error) {
	var p struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal([]byte(args), &p); err != nil {
		return "", fmt.Errorf("invalid arguments: %w", err)
	}
	if p.Name == "" {
		return "", fmt.Errorf("name is required")
	}

	value, ok := os.LookupEnv(p.Name)
	if !ok {
		return fmt.Sprintf("%s is not set", p.Name), nil
	}
	return value, nil
}
