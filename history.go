package main

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// HistoryStore indexes completed sessions in sqlite so `m8cli history` can
// show what ran, with which model, and how many steps it took.
type HistoryStore struct {
	db *sql.DB
}

type HistoryEntry struct {
	SessionID string
	Title     string
	Model     string
	Steps     int
	State     string
	CreatedAt int64
}

func OpenHistory(configDir string) (*HistoryStore, error) {
	dbPath := filepath.Join(configDir, "m8cli.db")
	// modernc.org/sqlite applies pragmas via _pragma=name(value); the
	// mattn-style _journal_mode/_busy_timeout keys are silently ignored.
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(10000)")
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS sessions (
		session_id TEXT PRIMARY KEY,
		title      TEXT NOT NULL,
		model      TEXT NOT NULL,
		steps      INTEGER NOT NULL,
		state      TEXT NOT NULL,
		created_at INTEGER NOT NULL
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating history schema: %w", err)
	}
	return &HistoryStore{db: db}, nil
}

func (h *HistoryStore) Close() error { return h.db.Close() }

// Record upserts one session's outcome. Titles are the first user request,
// truncated for display.
func (h *HistoryStore) Record(ctx context.Context, e HistoryEntry) error {
	if e.Title == "" {
		e.Title = time.Now().Format("Jan 2, 3:04 PM")
	}
	if len(e.Title) > 80 {
		e.Title = e.Title[:80] + "..."
	}
	if e.CreatedAt == 0 {
		e.CreatedAt = time.Now().Unix()
	}
	_, err := h.db.ExecContext(ctx,
		`INSERT INTO sessions(session_id, title, model, steps, state, created_at)
		 VALUES(?, ?, ?, ?, ?, ?)
		 ON CONFLICT(session_id) DO UPDATE SET
		   title = excluded.title, model = excluded.model,
		   steps = excluded.steps, state = excluded.state`,
		e.SessionID, e.Title, e.Model, e.Steps, e.State, e.CreatedAt)
	return err
}

func (h *HistoryStore) List(ctx context.Context, limit int) ([]HistoryEntry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := h.db.QueryContext(ctx,
		`SELECT session_id, title, model, steps, state, created_at
		 FROM sessions ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []HistoryEntry
	for rows.Next() {
		var e HistoryEntry
		if err := rows.Scan(&e.SessionID, &e.Title, &e.Model, &e.Steps, &e.State, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (h *HistoryStore) Clear(ctx context.Context) error {
	_, err := h.db.ExecContext(ctx, `DELETE FROM sessions`)
	return err
}
