// Package tools provides the builtin tools registered into the engine:
// file operations, shell commands, git, web access, and a nostr feed.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/model8cli/m8cli/engine"
)

const maxFileBytes = 10 << 20

// RegisterFileOps adds the file manipulation tools.
func RegisterFileOps(r *engine.Registry) {
	r.Register(engine.ToolSpec{
		Name:        "read_file",
		Description: "Read the contents of a text file",
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"path": {"type": "string", "description": "File path to read"}
			},
			"required": ["path"]
		}`),
		Safety: engine.Safe,
	}, readFile)

	r.Register(engine.ToolSpec{
		Name:        "write_file",
		Description: "Write content to a file, creating parent directories as needed",
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"path": {"type": "string", "description": "File path to write"},
				"content": {"type": "string", "description": "Content to write"}
			},
			"required": ["path", "content"]
		}`),
		Safety: engine.Confirm,
	}, writeFile)

	r.Register(engine.ToolSpec{
		Name:        "edit_file",
		Description: "Replace an exact text fragment in a file",
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"path": {"type": "string", "description": "File path to edit"},
				"old_text": {"type": "string", "description": "Exact text to replace"},
				"new_text": {"type": "string", "description": "Replacement text"}
			},
			"required": ["path", "old_text", "new_text"]
		}`),
		Safety: engine.Confirm,
	}, editFile)

	r.Register(engine.ToolSpec{
		Name:        "list_directory",
		Description: "List the entries of a directory",
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"path": {"type": "string", "description": "Directory path, defaults to the working directory"}
			}
		}`),
		Safety: engine.Safe,
	}, listDirectory)

	r.Register(engine.ToolSpec{
		Name:        "search_files",
		Description: "Search a directory tree by file name pattern and/or file content",
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"directory": {"type": "string", "description": "Directory to search, defaults to the working directory"},
				"pattern": {"type": "string", "description": "Glob pattern matched against file names"},
				"content": {"type": "string", "description": "Substring searched inside files"},
				"max_results": {"type": "integer", "description": "Result cap, defaults to 100"}
			}
		}`),
		Safety: engine.Safe,
	}, searchFiles)

	r.Register(engine.ToolSpec{
		Name:        "delete_file",
		Description: "Delete a single file",
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"path": {"type": "string", "description": "File path to delete"}
			},
			"required": ["path"]
		}`),
		Safety: engine.Confirm,
	}, deleteFile)

	r.Register(engine.ToolSpec{
		Name:        "copy_file",
		Description: "Copy a file to a new location",
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"source": {"type": "string", "description": "File to copy"},
				"destination": {"type": "string", "description": "Target path"}
			},
			"required": ["source", "destination"]
		}`),
		Safety: engine.Confirm,
	}, copyFile)
}

func readFile(_ context.Context, args string) (string, error) {
	var p struct {
		Path string `json:"path"`
	}
	if err := json.Unmarshal([]byte(args), &p); err != nil {
		return "", fmt.Errorf("invalid arguments: %w", err)
	}

	info, err := os.Stat(p.Path)
	if err != nil {
		return "", err
	}
	if info.Size() > maxFileBytes {
		return "", fmt.Errorf("file too large: %d bytes (limit %d)", info.Size(), maxFileBytes)
	}

	data, err := os.ReadFile(p.Path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func writeFile(_ context.Context, args string) (string, error) {
	var p struct {
		Path    string `json:"path"`
		Content string `json:"content"`
	}
	if err := json.Unmarshal([]byte(args), &p); err != nil {
		return "", fmt.Errorf("invalid arguments: %w", err)
	}
	if p.Path == "" {
		return "", fmt.Errorf("path is required")
	}

	if dir := filepath.Dir(p.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", err
		}
	}
	if err := os.WriteFile(p.Path, []byte(p.Content), 0o644); err != nil {
		return "", err
	}
	return fmt.Sprintf("Wrote %d bytes to %s", len(p.Content), p.Path), nil
}

func editFile(_ context.Context, args string) (string, error) {
	var p struct {
		Path    string `json:"path"`
		OldText string `json:"old_text"`
		NewText string `json:"new_text"`
	}
	if err := json.Unmarshal([]byte(args), &p); err != nil {
		return "", fmt.Errorf("invalid arguments: %w", err)
	}

	data, err := os.ReadFile(p.Path)
	if err != nil {
		return "", err
	}
	content := string(data)
	if !strings.Contains(content, p.OldText) {
		return "", fmt.Errorf("old_text not found in %s", p.Path)
	}

	updated := strings.Replace(content, p.OldText, p.NewText, 1)
	if err := os.WriteFile(p.Path, []byte(updated), 0o644); err != nil {
		return "", err
	}
	return fmt.Sprintf("Edited %s", p.Path), nil
}

func listDirectory(_ context.Context, args string) (string, error) {
	var p struct {
		Path string `json:"path"`
	}
	if args != "" {
		if err := json.Unmarshal([]byte(args), &p); err != nil {
			return "", fmt.Errorf("invalid arguments: %w", err)
		}
	}
	if p.Path == "" {
		p.Path = "."
	}

	entries, err := os.ReadDir(p.Path)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	for _, entry := range entries {
		if entry.IsDir() {
			fmt.Fprintf(&sb, "%s/\n", entry.Name())
			continue
		}
		info, err := entry.Info()
		if err != nil {
			fmt.Fprintf(&sb, "%s\n", entry.Name())
			continue
		}
		fmt.Fprintf(&sb, "%s (%d bytes)\n", entry.Name(), info.Size())
	}
	if sb.Len() == 0 {
		return "(empty directory)", nil
	}
	return sb.String(), nil
}

func searchFiles(_ context.Context, args string) (string, error) {
	var p struct {
		Directory  string `json:"directory"`
		Pattern    string `json:"pattern"`
		Content    string `json:"content"`
		MaxResults int    `json:"max_results"`
	}
	if args != "" {
		if err := json.Unmarshal([]byte(args), &p); err != nil {
			return "", fmt.Errorf("invalid arguments: %w", err)
		}
	}
	if p.Directory == "" {
		p.Directory = "."
	}
	if p.MaxResults <= 0 {
		p.MaxResults = 100
	}
	if p.Pattern == "" && p.Content == "" {
		return "", fmt.Errorf("pattern or content is required")
	}

	var matches []string
	err := filepath.WalkDir(p.Directory, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if d.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}
		if len(matches) >= p.MaxResults {
			return filepath.SkipAll
		}
		if p.Pattern != "" {
			ok, err := filepath.Match(p.Pattern, d.Name())
			if err != nil || !ok {
				return nil
			}
		}
		if p.Content != "" {
			info, err := d.Info()
			if err != nil || info.Size() > maxFileBytes {
				return nil
			}
			data, err := os.ReadFile(path)
			if err != nil || !strings.Contains(string(data), p.Content) {
				return nil
			}
		}
		matches = append(matches, path)
		return nil
	})
	if err != nil {
		return "", err
	}

	if len(matches) == 0 {
		return "No matches found.", nil
	}
	return strings.Join(matches, "\n"), nil
}

func deleteFile(_ context.Context, args string) (string, error) {
	var p struct {
		Path string `json:"path"`
	}
	if err := json.Unmarshal([]byte(args), &p); err != nil {
		return "", fmt.Errorf("invalid arguments: %w", err)
	}

	info, err := os.Stat(p.Path)
	if err != nil {
		return "", err
	}
	if info.IsDir() {
		return "", fmt.Errorf("%s is a directory; delete_file only removes files", p.Path)
	}
	if err := os.Remove(p.Path); err != nil {
		return "", err
	}
	return fmt.Sprintf("Deleted %s", p.Path), nil
}

func copyFile(_ context.Context, args string) (string, error) {
	var p struct {
		Source      string `json:"source"`
		Destination string `json:"destination"`
	}
	if err := json.Unmarshal([]byte(args), &p); err != nil {
		return "", fmt.Errorf("invalid arguments: %w", err)
	}

	data, err := os.ReadFile(p.Source)
	if err != nil {
		return "", err
	}
	if dir := filepath.Dir(p.Destination); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", err
		}
	}
	if err := os.WriteFile(p.Destination, data, 0o644); err != nil {
		return "", err
	}
	return fmt.Sprintf("Copied %s to %s", p.Source, p.Destination), nil
}
