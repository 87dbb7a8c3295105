package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const approvalFileName = "approved_tools.json"

// ApprovalRecords maps a working directory to the tool names the user has
// permanently approved there with "always".
type ApprovalRecords map[string][]string

func loadApprovalRecords(configDir string) (ApprovalRecords, error) {
	records := ApprovalRecords{}
	data, err := os.ReadFile(filepath.Join(configDir, approvalFileName))
	if err != nil {
		if os.IsNotExist(err) {
			return records, nil
		}
		return nil, err
	}
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", approvalFileName, err)
	}
	return records, nil
}

func saveApprovalRecords(configDir string, records ApprovalRecords) error {
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return err
	}
	path := filepath.Join(configDir, approvalFileName)
	return withFileLock(path+".lock", func() error {
		return os.WriteFile(path, data, 0o600)
	})
}

func (r ApprovalRecords) approved(workDir, tool string) bool {
	for _, t := range r[workDir] {
		if t == tool {
			return true
		}
	}
	return false
}

func (r ApprovalRecords) add(workDir, tool string) {
	if r.approved(workDir, tool) {
		return
	}
	r[workDir] = append(r[workDir], tool)
	sort.Strings(r[workDir])
}

// TerminalApprover asks on the terminal before a confirm-class tool runs.
// Answering "a" remembers the approval for this directory.
type TerminalApprover struct {
	in        *bufio.Reader
	configDir string
	workDir   string
	records   ApprovalRecords
	yes       bool
}

func NewTerminalApprover(configDir, workDir string, records ApprovalRecords, yes bool) *TerminalApprover {
	return &TerminalApprover{
		in:        bufio.NewReader(os.Stdin),
		configDir: configDir,
		workDir:   workDir,
		records:   records,
		yes:       yes,
	}
}

func (a *TerminalApprover) Approve(ctx context.Context, toolName, args string) (bool, error) {
	if a.yes {
		return true, nil
	}
	if a.records != nil && a.records.approved(a.workDir, toolName) {
		return true, nil
	}

	display := args
	if len(display) > 200 {
		display = display[:200] + "..."
	}
	fmt.Fprintf(os.Stderr, "\nTool %q wants to run with arguments:\n  %s\n", toolName, display)
	fmt.Fprint(os.Stderr, "Allow? [y/N/a(lways)] ")

	line, err := a.in.ReadString('\n')
	if err != nil {
		return false, err
	}

	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	case "a", "always":
		if a.records != nil {
			a.records.add(a.workDir, toolName)
			if err := saveApprovalRecords(a.configDir, a.records); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to save approval: %v\n", err)
			}
		}
		return true, nil
	}
	return false, nil
}
