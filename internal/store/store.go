// Package store persists escalated visitor questions for the review workflow.
package store

import (
	"context"
	"time"
)

// Escalation is a visitor question flagged for human review.
type Escalation struct {
	SessionID  string
	Question   string
	CreatedAt  time.Time
	ResolvedAt *time.Time
}

// Repository defines the persistence interface for escalations.
type Repository interface {
	// FlagQuestion records a question for human review.
	FlagQuestion(ctx context.Context, sessionID, question string) error

	// ListOpen returns unresolved escalations, oldest first.
	ListOpen(ctx context.Context) ([]Escalation, error)

	// Resolve marks every open escalation for a session as handled.
	// Resolving a session with no open escalations is a no-op.
	Resolve(ctx context.Context, sessionID string) (int64, error)

	// Ping verifies database connectivity.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
