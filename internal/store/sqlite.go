package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// WAL mode for better concurrency between the /ask path and /review.
	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS escalations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		question TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		resolved_at INTEGER
	);
	CREATE INDEX IF NOT EXISTS idx_escalations_open ON escalations(session_id) WHERE resolved_at IS NULL;
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// FlagQuestion records a question for human review.
func (s *SQLiteStore) FlagQuestion(ctx context.Context, sessionID, question string) error {
	query := `INSERT INTO escalations (session_id, question, created_at) VALUES (?, ?, ?)`
	if _, err := s.db.ExecContext(ctx, query, sessionID, question, time.Now().Unix()); err != nil {
		return fmt.Errorf("flag question: %w", err)
	}
	return nil
}

// ListOpen returns unresolved escalations, oldest first.
func (s *SQLiteStore) ListOpen(ctx context.Context) ([]Escalation, error) {
	query := `
		SELECT session_id, question, created_at
		FROM escalations WHERE resolved_at IS NULL
		ORDER BY created_at ASC, id ASC`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query open escalations: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close escalation rows", "error", closeErr)
		}
	}()

	var out []Escalation
	for rows.Next() {
		var e Escalation
		var createdAt int64
		if err := rows.Scan(&e.SessionID, &e.Question, &createdAt); err != nil {
			return nil, fmt.Errorf("scan escalation row: %w", err)
		}
		e.CreatedAt = time.Unix(createdAt, 0)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate escalations: %w", err)
	}
	return out, nil
}

// Resolve marks every open escalation for a session as handled.
func (s *SQLiteStore) Resolve(ctx context.Context, sessionID string) (int64, error) {
	query := `UPDATE escalations SET resolved_at = ? WHERE session_id = ? AND resolved_at IS NULL`
	result, err := s.db.ExecContext(ctx, query, time.Now().Unix(), sessionID)
	if err != nil {
		return 0, fmt.Errorf("resolve escalations: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		slog.Debug("Resolve affected 0 rows", "session_id", sessionID)
	}
	return rows, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}
