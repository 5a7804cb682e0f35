// Package store persists chat session transcripts.
package store

import (
	"context"
	"time"
)

// Turn is one recorded message.
type Turn struct {
	ID        int64
	SessionID string
	Direction string
	Content   string
	CreatedAt time.Time
}

// Repository defines transcript persistence.
type Repository interface {
	// StartSession records a new connection.
	StartSession(ctx context.Context, sessionID, clientAddr string) error

	// EndSession stamps the session's disconnect time.
	EndSession(ctx context.Context, sessionID string) error

	// AppendTurn records one message in either direction.
	AppendTurn(ctx context.Context, sessionID, direction, content string) error

	// ListTurns returns a session's turns in the order they were recorded.
	ListTurns(ctx context.Context, sessionID string) ([]Turn, error)

	// PruneBefore deletes turns, and ended sessions, older than cutoff.
	PruneBefore(ctx context.Context, cutoff time.Time) (int64, error)

	// Ping verifies database connectivity and returns an error if the database is unreachable.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
