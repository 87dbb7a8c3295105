// Package safety validates tool calls before execution. The gate inspects
// the rendered command and path arguments of a call, not just the tool name,
// so a destructive shell string is denied wherever it would actually be
// executed while the same string stays legal as plain text content.
package safety

import (
	"encoding/json"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/model8cli/m8cli/engine"
)

// Argument keys whose values are executed as shell commands.
var commandKeys = map[string]bool{
	"command": true,
	"cmd":     true,
}

// Argument keys whose values are filesystem paths.
var pathKeys = map[string]bool{
	"path":              true,
	"source":            true,
	"destination":       true,
	"directory":         true,
	"working_directory": true,
}

var urlKeys = map[string]bool{
	"url": true,
}

// Destructive shell constructs denied regardless of which tool carries them.
var dangerousPatterns = []*regexp.Regexp{
	regexp.MustCompile(`rm\s+-[a-z]*r[a-z]*f`),
	regexp.MustCompile(`rm\s+-[a-z]*f[a-z]*r`),
	regexp.MustCompile(`sudo\s+rm`),
	regexp.MustCompile(`del\s+/[fsq]`),
	regexp.MustCompile(`format\s+[a-z]:`),
	regexp.MustCompile(`\bmkfs(\.\w+)?\b`),
	regexp.MustCompile(`\bfdisk\b`),
	regexp.MustCompile(`dd\s+if=`),
	regexp.MustCompile(`:\(\)\s*\{\s*:\s*\|\s*:\s*&\s*\}\s*;\s*:`),
	regexp.MustCompile(`chmod\s+-?[a-z]*\s*777`),
	regexp.MustCompile(`(wget|curl)[^|]*\|\s*(ba|z|da)?sh`),
	regexp.MustCompile(`>\s*/dev/(sd|nvme|hd)`),
	regexp.MustCompile(`shutdown\b|reboot\b|halt\b`),
}

// Gate implements engine.Gate.
type Gate struct {
	workDir string
	homeDir string
	extra   []*regexp.Regexp
}

// Option configures a Gate.
type Option func(*Gate)

// WithWorkDir overrides the allowed working tree root.
func WithWorkDir(dir string) Option {
	return func(g *Gate) { g.workDir = dir }
}

// WithPatterns adds denylist patterns from configuration. Invalid patterns
// are skipped.
func WithPatterns(patterns []string) Option {
	return func(g *Gate) {
		for _, p := range patterns {
			re, err := regexp.Compile(p)
			if err != nil {
				continue
			}
			g.extra = append(g.extra, re)
		}
	}
}

func NewGate(opts ...Option) *Gate {
	g := &Gate{}
	if wd, err := os.Getwd(); err == nil {
		g.workDir = wd
	}
	if home, err := os.UserHomeDir(); err == nil {
		g.homeDir = home
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Check evaluates one tool call. Blocked specs always deny; otherwise the
// rendered arguments decide, and confirm-class specs that pass inspection
// still require approval.
func (g *Gate) Check(spec engine.ToolSpec, args string) engine.Verdict {
	if spec.Safety == engine.Blocked {
		return engine.Deny
	}

	var parsed map[string]any
	if err := json.Unmarshal([]byte(args), &parsed); err == nil {
		for key, val := range parsed {
			s, ok := val.(string)
			if !ok {
				continue
			}
			switch {
			case commandKeys[key]:
				if !g.CommandAllowed(s) {
					return engine.Deny
				}
			case pathKeys[key]:
				if !g.PathAllowed(s) {
					return engine.Deny
				}
			case urlKeys[key]:
				if !URLAllowed(s) {
					return engine.Deny
				}
			}
		}
	}

	if spec.Safety == engine.Confirm {
		return engine.RequireConfirmation
	}
	return engine.Allow
}

// CommandAllowed reports whether a shell command avoids the denylist.
func (g *Gate) CommandAllowed(command string) bool {
	lower := strings.ToLower(command)
	for _, re := range dangerousPatterns {
		if re.MatchString(lower) {
			return false
		}
	}
	for _, re := range g.extra {
		if re.MatchString(lower) {
			return false
		}
	}
	return true
}

// PathAllowed reports whether a path stays inside the working tree or the
// user's home directory after resolution.
func (g *Gate) PathAllowed(path string) bool {
	if path == "" {
		return false
	}

	resolved := path
	if !filepath.IsAbs(resolved) {
		resolved = filepath.Join(g.workDir, resolved)
	}
	resolved = filepath.Clean(resolved)

	for _, root := range []string{g.workDir, g.homeDir} {
		if root == "" {
			continue
		}
		if within(root, resolved) {
			return true
		}
	}
	return false
}

func within(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel == "." || (!strings.HasPrefix(rel, ".."+string(filepath.Separator)) && rel != "..")
}

// URLAllowed accepts http and https URLs only.
func URLAllowed(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
