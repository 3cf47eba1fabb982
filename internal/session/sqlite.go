// This file implements an SQLite-backed session store for deployments
// that want sessions to survive a process restart.
package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "embed"

	"github.com/telkomfield/visitbot/internal/models"
	_ "github.com/mattn/go-sqlite3"
)

// DefaultDirPermissions defines the default permissions for database
// directories.
const DefaultDirPermissions = 0755

//go:embed migrations_sqlite.sql
var sqliteMigrations string

// sessionData is the JSON shape stored in the data column.
type sessionData struct {
	Values  map[string]string `json:"values"`
	History []Step            `json:"history,omitempty"`
}

// SQLiteStore persists sessions in an SQLite database, one row per user.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (and if needed creates) the SQLite database at the
// given DSN and runs migrations.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	if dsn == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, fmt.Errorf("session database DSN not set")
	}

	dir := filepath.Dir(dsn)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create session database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create session database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		slog.Error("Failed to open session SQLite connection", "error", err)
		return nil, err
	}
	if err := db.Ping(); err != nil {
		slog.Error("Session SQLite ping failed", "error", err)
		return nil, err
	}
	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("Failed to run session migrations", "error", err)
		return nil, fmt.Errorf("failed to run session migrations: %w", err)
	}
	slog.Debug("Session SQLite store ready", "dsn_set", true)
	return &SQLiteStore{db: db}, nil
}

// GetOrCreate loads the user's session row, creating an idle session if
// none exists yet.
func (s *SQLiteStore) GetOrCreate(ctx context.Context, userID string) (*Session, error) {
	query := `SELECT user_id, state, data, created_at, updated_at FROM sessions WHERE user_id = ?`

	var sess Session
	var dataJSON sql.NullString
	err := s.db.QueryRowContext(ctx, query, userID).Scan(
		&sess.UserID, &sess.State, &dataJSON, &sess.CreatedAt, &sess.UpdatedAt)
	if err == sql.ErrNoRows {
		sess := New(userID)
		if err := s.Save(ctx, sess); err != nil {
			return nil, err
		}
		slog.Debug("SQLiteStore created session", "userID", userID)
		return sess, nil
	}
	if err != nil {
		slog.Error("SQLiteStore GetOrCreate failed", "error", err, "userID", userID)
		return nil, fmt.Errorf("failed to load session for %s: %w", userID, err)
	}

	sess.Values = make(map[string]string)
	if dataJSON.Valid && dataJSON.String != "" {
		var data sessionData
		if err := json.Unmarshal([]byte(dataJSON.String), &data); err != nil {
			slog.Error("SQLiteStore session data unmarshal failed", "error", err, "userID", userID)
			// A corrupt row must not wedge the user; hand back a clean
			// restartable session instead.
			sess.State = models.StateIdle
		} else {
			if data.Values != nil {
				sess.Values = data.Values
			}
			sess.History = data.History
		}
	}
	return &sess, nil
}

// Save stores or updates the session row.
func (s *SQLiteStore) Save(ctx context.Context, sess *Session) error {
	data, err := json.Marshal(sessionData{Values: sess.Values, History: sess.History})
	if err != nil {
		slog.Error("SQLiteStore Save marshal failed", "error", err, "userID", sess.UserID)
		return err
	}

	query := `
		INSERT OR REPLACE INTO sessions (user_id, state, data, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)`
	_, err = s.db.ExecContext(ctx, query, sess.UserID, string(sess.State), string(data),
		sess.CreatedAt, sess.UpdatedAt)
	if err != nil {
		slog.Error("SQLiteStore Save failed", "error", err, "userID", sess.UserID)
		return fmt.Errorf("failed to save session for %s: %w", sess.UserID, err)
	}
	slog.Debug("SQLiteStore Save succeeded", "userID", sess.UserID, "state", sess.State)
	return nil
}

// Reset returns the user's session to idle, discarding collected data.
func (s *SQLiteStore) Reset(ctx context.Context, userID string) error {
	sess, err := s.GetOrCreate(ctx, userID)
	if err != nil {
		return err
	}
	sess.Reset()
	return s.Save(ctx, sess)
}

// Delete removes the user's session row.
func (s *SQLiteStore) Delete(ctx context.Context, userID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE user_id = ?`, userID)
	if err != nil {
		slog.Error("SQLiteStore Delete failed", "error", err, "userID", userID)
		return fmt.Errorf("failed to delete session for %s: %w", userID, err)
	}
	slog.Debug("SQLiteStore Delete succeeded", "userID", userID)
	return nil
}

// ActiveCount returns the number of sessions currently mid-form.
func (s *SQLiteStore) ActiveCount(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sessions WHERE state != ?`, string(models.StateIdle)).Scan(&count)
	if err != nil {
		slog.Error("SQLiteStore ActiveCount failed", "error", err)
		return 0, fmt.Errorf("failed to count active sessions: %w", err)
	}
	return count, nil
}

// SweepIdle resets active sessions last touched before the cutoff.
func (s *SQLiteStore) SweepIdle(ctx context.Context, cutoff time.Time) (int, error) {
	query := `
		UPDATE sessions
		SET state = ?, data = ?, updated_at = ?
		WHERE state != ? AND updated_at < ?`
	res, err := s.db.ExecContext(ctx, query,
		string(models.StateIdle), `{"values":{}}`, time.Now(),
		string(models.StateIdle), cutoff)
	if err != nil {
		slog.Error("SQLiteStore SweepIdle failed", "error", err)
		return 0, fmt.Errorf("failed to sweep stale sessions: %w", err)
	}
	swept, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if swept > 0 {
		slog.Info("SQLiteStore swept stale sessions", "count", swept, "cutoff", cutoff)
	}
	return int(swept), nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
