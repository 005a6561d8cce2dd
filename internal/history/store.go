// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package history keeps a SQLite ledger of finished exports.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrClosed is returned by operations on a closed Store.
var ErrClosed = errors.New("history store closed")

// Entry is one finished export.
type Entry struct {
	ID         string
	SessionID  string
	Output     string
	Format     string
	OK         bool
	Kind       string
	Message    string
	SizeBytes  int64
	DurationMs int64
	ElapsedMs  int64
	CreatedAt  time.Time
}

// Store persists Entries.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the ledger at path and applies the schema.
func Open(path string) (*Store, error) {
	db, err := openDB(path, DefaultDBConfig())
	if err != nil {
		return nil, err
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS exports (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL DEFAULT '',
		output TEXT NOT NULL,
		format TEXT NOT NULL DEFAULT '',
		ok INTEGER NOT NULL CHECK(ok IN (0, 1)),
		kind TEXT NOT NULL DEFAULT '',
		message TEXT NOT NULL DEFAULT '',
		size_bytes INTEGER NOT NULL DEFAULT 0,
		duration_ms INTEGER NOT NULL DEFAULT 0,
		elapsed_ms INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_exports_created_at ON exports(created_at);
	CREATE INDEX IF NOT EXISTS idx_exports_session ON exports(session_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Record inserts e. A zero CreatedAt is set to now.
func (s *Store) Record(ctx context.Context, e Entry) error {
	if s == nil || s.db == nil {
		return ErrClosed
	}
	if e.ID == "" {
		return errors.New("history entry without id")
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	query := `
	INSERT INTO exports (id, session_id, output, format, ok, kind, message, size_bytes, duration_ms, elapsed_ms, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		e.ID, e.SessionID, e.Output, e.Format, boolToInt(e.OK), e.Kind, e.Message,
		e.SizeBytes, e.DurationMs, e.ElapsedMs, e.CreatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("record export %s: %w", e.ID, err)
	}
	return nil
}

// Recent returns up to limit entries, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if s == nil || s.db == nil {
		return nil, ErrClosed
	}
	if limit <= 0 {
		limit = 50
	}
	query := `
	SELECT id, session_id, output, format, ok, kind, message, size_bytes, duration_ms, elapsed_ms, created_at
	FROM exports
	ORDER BY created_at DESC, id DESC
	LIMIT ?
	`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	entries := make([]Entry, 0, limit)
	for rows.Next() {
		var (
			e         Entry
			ok        int
			createdAt string
		)
		if err := rows.Scan(&e.ID, &e.SessionID, &e.Output, &e.Format, &ok, &e.Kind, &e.Message,
			&e.SizeBytes, &e.DurationMs, &e.ElapsedMs, &createdAt); err != nil {
			return nil, err
		}
		e.OK = ok == 1
		if t, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
			e.CreatedAt = t
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Check runs a quick integrity check. It returns nil when healthy.
func (s *Store) Check(ctx context.Context) error {
	if s == nil || s.db == nil {
		return ErrClosed
	}
	issues, err := verifyIntegrity(ctx, s.db, false)
	if err != nil {
		return err
	}
	if len(issues) > 0 {
		return fmt.Errorf("history database corrupt: %v", issues)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
