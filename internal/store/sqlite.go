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

	"github.com/siddhartha-04/itcprj/internal/shared"
)

const (
	writeAttempts  = 3
	writeBaseDelay = 50 * time.Millisecond
)

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

var _ Repository = (*SQLiteStore)(nil)

// NewSQLite opens (creating if needed) the transcript database at dbPath.
func NewSQLite(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	dsn := "file:" + dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(8)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &SQLiteStore{db: db, now: time.Now}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS sessions (
		session_id TEXT PRIMARY KEY,
		client_addr TEXT NOT NULL DEFAULT '',
		connected_at INTEGER NOT NULL,
		disconnected_at INTEGER
	);

	CREATE TABLE IF NOT EXISTS turns (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		direction TEXT NOT NULL,
		content TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_turns_session ON turns(session_id, id);
	CREATE INDEX IF NOT EXISTS idx_turns_created ON turns(created_at);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

func (s *SQLiteStore) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	var res sql.Result
	err := shared.RetryOnConflict(ctx, writeAttempts, writeBaseDelay, func() error {
		var err error
		res, err = s.db.ExecContext(ctx, query, args...)
		return err
	})
	return res, err
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// StartSession records a new connection. Reconnecting with a known id reopens it.
func (s *SQLiteStore) StartSession(ctx context.Context, sessionID, clientAddr string) error {
	query := `
	INSERT INTO sessions (session_id, client_addr, connected_at)
	VALUES (?, ?, ?)
	ON CONFLICT(session_id) DO UPDATE SET
		client_addr = excluded.client_addr,
		disconnected_at = NULL`

	if _, err := s.exec(ctx, query, sessionID, clientAddr, s.now().UnixMilli()); err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	return nil
}

// EndSession stamps disconnected_at. Unknown ids are logged and ignored.
func (s *SQLiteStore) EndSession(ctx context.Context, sessionID string) error {
	result, err := s.exec(ctx, `UPDATE sessions SET disconnected_at = ? WHERE session_id = ?`, s.now().UnixMilli(), sessionID)
	if err != nil {
		return fmt.Errorf("end session: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		slog.Debug("EndSession affected 0 rows", "session_id", sessionID)
	}
	return nil
}

// AppendTurn records one message.
func (s *SQLiteStore) AppendTurn(ctx context.Context, sessionID, direction, content string) error {
	query := `INSERT INTO turns (session_id, direction, content, created_at) VALUES (?, ?, ?, ?)`
	if _, err := s.exec(ctx, query, sessionID, direction, content, s.now().UnixMilli()); err != nil {
		return fmt.Errorf("append turn: %w", err)
	}
	return nil
}

// ListTurns returns a session's turns oldest first.
func (s *SQLiteStore) ListTurns(ctx context.Context, sessionID string) ([]Turn, error) {
	query := `
		SELECT id, session_id, direction, content, created_at
		FROM turns WHERE session_id = ? ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query turns: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close turn rows", "error", closeErr)
		}
	}()

	var turns []Turn
	for rows.Next() {
		var t Turn
		var createdAt int64
		if err := rows.Scan(&t.ID, &t.SessionID, &t.Direction, &t.Content, &createdAt); err != nil {
			return nil, fmt.Errorf("scan turn row: %w", err)
		}
		t.CreatedAt = time.UnixMilli(createdAt)
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate turns: %w", err)
	}
	return turns, nil
}

// PruneBefore deletes turns created before cutoff and sessions that ended before it.
// It returns the number of turns removed.
func (s *SQLiteStore) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	threshold := cutoff.UnixMilli()

	result, err := s.exec(ctx, `DELETE FROM turns WHERE created_at < ?`, threshold)
	if err != nil {
		return 0, fmt.Errorf("prune turns: %w", err)
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("get rows affected: %w", err)
	}

	if _, err := s.exec(ctx, `DELETE FROM sessions WHERE disconnected_at IS NOT NULL AND disconnected_at < ?`, threshold); err != nil {
		return deleted, fmt.Errorf("prune sessions: %w", err)
	}
	return deleted, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}
