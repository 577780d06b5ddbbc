// Package journal keeps a log of lifecycle operations in a SQLite database
// inside the repository's git dir. Superproject and submodule changes are
// not atomic, so the journal is where a partially applied operation can be
// found afterwards.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// Outcomes stored per operation.
const (
	OutcomeOK      = "ok"
	OutcomePartial = "partial"
	OutcomeFailed  = "failed"
)

// Entry is one journaled operation.
type Entry struct {
	ID         string
	Op         string
	Branch     string
	Outcome    string
	Warnings   []string
	Error      string
	StartedAt  time.Time
	FinishedAt time.Time
}

// OutcomeOf classifies an operation by its error and warning count.
func OutcomeOf(err error, warnings int) string {
	switch {
	case err != nil:
		return OutcomeFailed
	case warnings > 0:
		return OutcomePartial
	default:
		return OutcomeOK
	}
}

// PathFor returns the journal location for a repository's git dir.
func PathFor(gitDir string) string {
	return filepath.Join(gitDir, "gitsession", "journal.db")
}

var schema = []string{`CREATE TABLE IF NOT EXISTS operations (
	id          TEXT PRIMARY KEY,
	op          TEXT NOT NULL,
	branch      TEXT NOT NULL DEFAULT '',
	outcome     TEXT NOT NULL,
	warnings    TEXT NOT NULL DEFAULT '',
	error       TEXT NOT NULL DEFAULT '',
	started_at  INTEGER NOT NULL,
	finished_at INTEGER NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS idx_operations_started_at ON operations(started_at)`,
}

// Journal is an open operation journal.
type Journal struct {
	db *sql.DB
}

// Open creates or opens the journal database at path.
func Open(ctx context.Context, path string) (*Journal, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create journal directory: %w", err)
	}
	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite handles one writer at a time

	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("init journal schema: %w", err)
		}
	}
	return &Journal{db: db}, nil
}

// Record inserts e.
func (j *Journal) Record(ctx context.Context, e Entry) error {
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO operations (id, op, branch, outcome, warnings, error, started_at, finished_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Op, e.Branch, e.Outcome, strings.Join(e.Warnings, "\n"), e.Error,
		e.StartedAt.UnixMilli(), e.FinishedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("record operation %s: %w", e.ID, err)
	}
	return nil
}

// Recent returns up to limit entries, newest first.
func (j *Journal) Recent(ctx context.Context, limit int) ([]Entry, error) {
	rows, err := j.db.QueryContext(ctx,
		`SELECT id, op, branch, outcome, warnings, error, started_at, finished_at
		 FROM operations ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query journal: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e                 Entry
			warnings          string
			started, finished int64
		)
		if err := rows.Scan(&e.ID, &e.Op, &e.Branch, &e.Outcome, &warnings, &e.Error, &started, &finished); err != nil {
			return nil, fmt.Errorf("scan journal row: %w", err)
		}
		if warnings != "" {
			e.Warnings = strings.Split(warnings, "\n")
		}
		e.StartedAt = time.UnixMilli(started)
		e.FinishedAt = time.UnixMilli(finished)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Close releases the database.
func (j *Journal) Close() error {
	return j.db.Close()
}
