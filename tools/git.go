package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/model8cli/m8cli/engine"
)

const gitTimeout = 30 * time.Second

// RegisterGit adds git tools. All of them shell out to the git binary.
func RegisterGit(r *engine.Registry) {
	r.Register(engine.ToolSpec{
		Name:        "git_status",
		Description: "Show the working tree status of a git repository",
		Parameters:  repoPathParams,
		Safety:      engine.Safe,
	}, gitStatus)

	r.Register(engine.ToolSpec{
		Name:        "git_log",
		Description: "Show recent commits of a git repository",
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"path": {"type": "string", "description": "Repository path, defaults to the working directory"},
				"limit": {"type": "integer", "description": "Number of commits, defaults to 10"}
			}
		}`),
		Safety: engine.Safe,
	}, gitLog)

	r.Register(engine.ToolSpec{
		Name:        "git_diff",
		Description: "Show uncommitted changes in a git repository",
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"path": {"type": "string", "description": "Repository path, defaults to the working directory"},
				"staged": {"type": "boolean", "description": "Show staged changes instead of unstaged"}
			}
		}`),
		Safety: engine.Safe,
	}, gitDiff)

	r.Register(engine.ToolSpec{
		Name:        "git_commit",
		Description: "Commit changes in a git repository",
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"path": {"type": "string", "description": "Repository path, defaults to the working directory"},
				"message": {"type": "string", "description": "Commit message"},
				"add_all": {"type": "boolean", "description": "Stage all changes before committing"}
			},
			"required": ["message"]
		}`),
		Safety: engine.Confirm,
	}, gitCommit)

	r.Register(engine.ToolSpec{
		Name:        "git_branch",
		Description: "List branches of a git repository",
		Parameters:  repoPathParams,
		Safety:      engine.Safe,
	}, gitBranch)
}

var repoPathParams = json.RawMessage(`{
	"type": "object",
	"properties": {
		"path": {"type": "string", "description": "Repository path, defaults to the working directory"}
	}
}`)

func runGit(ctx context.Context, dir string, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, gitTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "git", args...)
	if dir != "" {
		cmd.Dir = dir
	}
	output, err := cmd.CombinedOutput()
	if err != nil {
		msg := strings.TrimSpace(string(output))
		if msg == "" {
			return "", fmt.Errorf("git %s: %w", args[0], err)
		}
		return "", fmt.Errorf("git %s: %s", args[0], msg)
	}
	out := strings.TrimSpace(string(output))
	if out == "" {
		return "(no output)", nil
	}
	return out, nil
}

type repoArgs struct {
	Path string `json:"path"`
}

func parseRepoArgs(args string) repoArgs {
	var p repoArgs
	if args != "" {
		json.Unmarshal([]byte(args), &p)
	}
	return p
}

func gitStatus(ctx context.Context, args string) (string, error) {
	p := parseRepoArgs(args)
	return runGit(ctx, p.Path, "status", "--short", "--branch")
}

func gitLog(ctx context.Context, args string) (string, error) {
	var p struct {
		Path  string `json:"path"`
		Limit int    `json:"limit"`
	}
	if args != "" {
		json.Unmarshal([]byte(args), &p)
	}
	if p.Limit <= 0 {
		p.Limit = 10
	}
	return runGit(ctx, p.Path, "log", fmt.Sprintf("-%d", p.Limit), "--oneline")
}

func gitDiff(ctx context.Context, args string) (string, error) {
	var p struct {
		Path   string `json:"path"`
		Staged bool   `json:"staged"`
	}
	if args != "" {
		json.Unmarshal([]byte(args), &p)
	}
	gitArgs := []string{"diff"}
	if p.Staged {
		gitArgs = append(gitArgs, "--staged")
	}
	return runGit(ctx, p.Path, gitArgs...)
}

func gitCommit(ctx context.Context, args string) (string, error) {
	var p struct {
		Path    string `json:"path"`
		Message string `json:"message"`
		AddAll  bool   `json:"add_all"`
	}
	if err := json.Unmarshal([]byte(args), &p); err != nil {
		return "", fmt.Errorf("invalid arguments: %w", err)
	}
	if strings.TrimSpace(p.Message) == "" {
		return "", fmt.Errorf("message is required")
	}

	if p.AddAll {
		if _, err := runGit(ctx, p.Path, "add", "-A"); err != nil {
			return "", err
		}
	}
	return runGit(ctx, p.Path, "commit", "-m", p.Message)
}

func gitBranch(ctx context.Context, args string) (string, error) {
	p := parseRepoArgs(args)
	return runGit(ctx, p.Path, "branch", "--list")
}
