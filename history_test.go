package main

import (
	"context"
	"strings"
	"testing"
	"time"
)

func openTestHistory(t *testing.T) *HistoryStore {
	t.Helper()
	h, err := OpenHistory(t.TempDir())
	if err != nil {
		t.Fatalf("OpenHistory failed: %v", err)
	}
	t.Cleanup(func() { h.Close() })
	return h
}

func TestHistoryPragmasApplied(t *testing.T) {
	h := openTestHistory(t)

	var mode string
	if err := h.db.QueryRow("PRAGMA journal_mode").Scan(&mode); err != nil {
		t.Fatalf("querying journal_mode: %v", err)
	}
	if !strings.EqualFold(mode, "wal") {
		t.Errorf("journal_mode = %q, want wal", mode)
	}

	var timeout int
	if err := h.db.QueryRow("PRAGMA busy_timeout").Scan(&timeout); err != nil {
		t.Fatalf("querying busy_timeout: %v", err)
	}
	if timeout != 10000 {
		t.Errorf("busy_timeout = %d, want 10000", timeout)
	}
}

func TestHistoryRecordList(t *testing.T) {
	h := openTestHistory(t)
	ctx := context.Background()

	entries := []HistoryEntry{
		{SessionID: "s1", Title: "first question", Model: "gpt-4o-mini", Steps: 2, State: "done", CreatedAt: 100},
		{SessionID: "s2", Title: "second question", Model: "llama3.1", Steps: 5, State: "failed", CreatedAt: 200},
	}
	for _, e := range entries {
		if err := h.Record(ctx, e); err != nil {
			t.Fatalf("Record failed: %v", err)
		}
	}

	got, err := h.List(ctx, 0)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("listed %d entries, want 2", len(got))
	}
	// Newest first.
	if got[0].SessionID != "s2" || got[1].SessionID != "s1" {
		t.Errorf("order = [%s %s], want [s2 s1]", got[0].SessionID, got[1].SessionID)
	}
	if got[0].State != "failed" || got[0].Steps != 5 {
		t.Errorf("entry = %+v", got[0])
	}
}

func TestHistoryUpsert(t *testing.T) {
	h := openTestHistory(t)
	ctx := context.Background()

	h.Record(ctx, HistoryEntry{SessionID: "s1", Title: "q", Model: "m", Steps: 1, State: "executing-tools", CreatedAt: 100})
	h.Record(ctx, HistoryEntry{SessionID: "s1", Title: "q", Model: "m", Steps: 4, State: "done", CreatedAt: 100})

	got, err := h.List(ctx, 0)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("listed %d entries, want 1 (upsert)", len(got))
	}
	if got[0].Steps != 4 || got[0].State != "done" {
		t.Errorf("entry = %+v, want updated steps and state", got[0])
	}
}

func TestHistoryTitleTruncated(t *testing.T) {
	h := openTestHistory(t)
	ctx := context.Background()

	long := strings.Repeat("x", 200)
	h.Record(ctx, HistoryEntry{SessionID: "s1", Title: long, Model: "m", State: "done"})

	got, _ := h.List(ctx, 0)
	if len(got) != 1 {
		t.Fatal("entry missing")
	}
	if len(got[0].Title) > 90 {
		t.Errorf("title length = %d, want truncated", len(got[0].Title))
	}
	if !strings.HasSuffix(got[0].Title, "...") {
		t.Errorf("title = %q, want ellipsis", got[0].Title)
	}
}

func TestHistoryDefaultTimestamp(t *testing.T) {
	h := openTestHistory(t)
	ctx := context.Background()

	before := time.Now().Unix()
	h.Record(ctx, HistoryEntry{SessionID: "s1", Title: "q", Model: "m", State: "done"})

	got, _ := h.List(ctx, 0)
	if len(got) != 1 || got[0].CreatedAt < before {
		t.Errorf("CreatedAt = %d, want >= %d", got[0].CreatedAt, before)
	}
}

func TestHistoryLimit(t *testing.T) {
	h := openTestHistory(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		h.Record(ctx, HistoryEntry{
			SessionID: string(rune('a' + i)),
			Title:     "q", Model: "m", State: "done",
			CreatedAt: int64(100 + i),
		})
	}

	got, err := h.List(ctx, 3)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(got) != 3 {
		t.Errorf("listed %d entries, want 3", len(got))
	}
}

func TestHistoryClear(t *testing.T) {
	h := openTestHistory(t)
	ctx := context.Background()

	h.Record(ctx, HistoryEntry{SessionID: "s1", Title: "q", Model: "m", State: "done"})
	if err := h.Clear(ctx); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	got, _ := h.List(ctx, 0)
	if len(got) != 0 {
		t.Errorf("listed %d entries after clear, want 0", len(got))
	}
}
