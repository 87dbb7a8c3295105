package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestApprovalRecords(t *testing.T) {
	r := ApprovalRecords{}

	if r.approved("/work", "execute_command") {
		t.Error("empty records approved something")
	}

	r.add("/work", "execute_command")
	if !r.approved("/work", "execute_command") {
		t.Error("tool not approved after add")
	}
	if r.approved("/other", "execute_command") {
		t.Error("approval leaked to another directory")
	}

	r.add("/work", "execute_command")
	if len(r["/work"]) != 1 {
		t.Errorf("duplicate add grew the list: %v", r["/work"])
	}
}

func TestApprovalRecordsSaveLoad(t *testing.T) {
	dir := t.TempDir()
	r := ApprovalRecords{
		"/proj/a": {"write_file", "execute_command"},
		"/proj/b": {"delete_file"},
	}
	if err := saveApprovalRecords(dir, r); err != nil {
		t.Fatalf("saveApprovalRecords failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, approvalFileName)); err != nil {
		t.Fatalf("expected file to exist: %v", err)
	}

	loaded, err := loadApprovalRecords(dir)
	if err != nil {
		t.Fatalf("loadApprovalRecords failed: %v", err)
	}
	if !loaded.approved("/proj/a", "write_file") || !loaded.approved("/proj/b", "delete_file") {
		t.Errorf("loaded = %v", loaded)
	}
}

func TestLoadApprovalRecordsMissing(t *testing.T) {
	loaded, err := loadApprovalRecords(t.TempDir())
	if err != nil {
		t.Fatalf("loadApprovalRecords failed: %v", err)
	}
	if loaded == nil {
		t.Fatal("expected empty records, got nil")
	}
}

func TestApproverYesFlag(t *testing.T) {
	a := NewTerminalApprover(t.TempDir(), "/work", ApprovalRecords{}, true)
	ok, err := a.Approve(rootCtx, "execute_command", "{}")
	if err != nil || !ok {
		t.Errorf("Approve with --yes = %v, %v, want true", ok, err)
	}
}

func TestApproverRemembered(t *testing.T) {
	records := ApprovalRecords{"/work": {"write_file"}}
	a := NewTerminalApprover(t.TempDir(), "/work", records, false)
	ok, err := a.Approve(rootCtx, "write_file", "{}")
	if err != nil || !ok {
		t.Errorf("Approve for remembered tool = %v, %v, want true", ok, err)
	}
}
