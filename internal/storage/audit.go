// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/jeranaias/aicli/internal/tools"
)

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("audit store is closed")

// AuditEntry is one stored tool call.
type AuditEntry struct {
	ID        string
	CallID    string
	Tool      string
	Arguments string
	OK        bool
	Error     string
	Result    string
	Timestamp time.Time
	Duration  time.Duration
}

// AuditStore writes tool executions to SQLite.
type AuditStore struct {
	db   *sql.DB
	path string

	mu     sync.Mutex
	closed bool
}

// OpenAuditStore opens (creating if needed) the audit database at path.
func OpenAuditStore(path string) (*AuditStore, error) {
	if path == "" {
		return nil, errors.New("audit path must not be empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create audit directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit database: %w", err)
	}

	// One writer: the executor records calls sequentially.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	if _, err := db.Exec(InitMetadata); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &AuditStore{db: db, path: path}, nil
}

// Path returns the database file path.
func (s *AuditStore) Path() string {
	return s.path
}

// Record stores one execution. It implements tools.Recorder.
func (s *AuditStore) Record(ctx context.Context, rec tools.ExecutionRecord) error {
	if s.isClosed() {
		return ErrClosed
	}
	ok := 0
	if rec.Result.OK {
		ok = 1
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tool_calls (id, call_id, tool, arguments, ok, error, result, started_at, duration_ms)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.CallID, rec.ToolName, rec.Arguments, ok, rec.Result.Error,
		rec.Result.JSON(), rec.Timestamp.UnixNano(), rec.Duration.Milliseconds())
	if err != nil {
		return fmt.Errorf("record tool call: %w", err)
	}
	return nil
}

// Recent returns up to limit entries, newest first.
func (s *AuditStore) Recent(ctx context.Context, limit int) ([]AuditEntry, error) {
	if s.isClosed() {
		return nil, ErrClosed
	}
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, call_id, tool, arguments, ok, COALESCE(error, ''), result, started_at, duration_ms
		 FROM tool_calls ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query tool calls: %w", err)
	}
	defer rows.Close()

	var entries []AuditEntry
	for rows.Next() {
		var (
			e          AuditEntry
			ok         int
			startedAt  int64
			durationMs int64
		)
		if err := rows.Scan(&e.ID, &e.CallID, &e.Tool, &e.Arguments, &ok, &e.Error, &e.Result, &startedAt, &durationMs); err != nil {
			return nil, fmt.Errorf("scan tool call: %w", err)
		}
		e.OK = ok == 1
		e.Timestamp = time.Unix(0, startedAt)
		e.Duration = time.Duration(durationMs) * time.Millisecond
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Count returns the number of stored entries.
func (s *AuditStore) Count(ctx context.Context) (int, error) {
	if s.isClosed() {
		return 0, ErrClosed
	}
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tool_calls`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count tool calls: %w", err)
	}
	return n, nil
}

// Prune deletes all but the newest keep entries and returns how many were
// removed.
func (s *AuditStore) Prune(ctx context.Context, keep int) (int64, error) {
	if s.isClosed() {
		return 0, ErrClosed
	}
	if keep < 0 {
		keep = 0
	}
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM tool_calls WHERE rowid NOT IN (
		     SELECT rowid FROM tool_calls ORDER BY started_at DESC, rowid DESC LIMIT ?)`, keep)
	if err != nil {
		return 0, fmt.Errorf("prune tool calls: %w", err)
	}
	return res.RowsAffected()
}

// Close closes the database. It is safe to call more than once.
func (s *AuditStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

func (s *AuditStore) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
