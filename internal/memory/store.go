// Package memory maintains session context: a fast in-process window plus
// a durable SQLite history of turns and learned preferences.
package memory

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/Ak-9647/queryflow/pkg/models"
)

// Store wraps the SQLite database holding durable conversation history.
type Store struct {
	conn *sql.DB
	path string
	mu   sync.RWMutex
}

// Open opens the database at path, creating parent directories as needed.
// WAL mode is enabled for concurrent reads.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}
	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	return &Store{conn: conn, path: path}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.Close()
}

// Path returns the path to the database file.
func (s *Store) Path() string {
	return s.path
}

// Migrate applies all pending schema migrations.
func (s *Store) Migrate() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.conn.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("create schema_version table: %w", err)
	}

	var currentVersion int
	row := s.conn.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_version")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("get schema version: %w", err)
	}

	migrations := []struct {
		version int
		sql     string
	}{
		{1, migrationV1Sessions},
		{2, migrationV2Turns},
		{3, migrationV3Preferences},
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}

		tx, err := s.conn.Begin()
		if err != nil {
			return fmt.Errorf("begin transaction: %w", err)
		}

		if _, err := tx.Exec(m.sql); err != nil {
			tx.Rollback()
			return fmt.Errorf("apply migration v%d: %w", m.version, err)
		}

		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", m.version); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration v%d: %w", m.version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration v%d: %w", m.version, err)
		}
	}

	return nil
}

const migrationV1Sessions = `
CREATE TABLE IF NOT EXISTS sessions (
	id TEXT PRIMARY KEY,
	created_at DATETIME NOT NULL,
	last_activity DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_sessions_last_activity ON sessions(last_activity);
`

const migrationV2Turns = `
CREATE TABLE IF NOT EXISTS turns (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
	query TEXT NOT NULL,
	intent TEXT NOT NULL,
	summary TEXT,
	degraded INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_turns_session_id ON turns(session_id, id);
`

const migrationV3Preferences = `
CREATE TABLE IF NOT EXISTS preferences (
	session_id TEXT PRIMARY KEY REFERENCES sessions(id) ON DELETE CASCADE,
	data TEXT NOT NULL,
	updated_at DATETIME NOT NULL
);
`

// UpsertSession records a session's existence and bumps its last activity.
func (s *Store) UpsertSession(id string, createdAt, lastActivity time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.conn.Exec(`
		INSERT INTO sessions (id, created_at, last_activity) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET last_activity = excluded.last_activity
	`, id, formatTime(createdAt), formatTime(lastActivity))
	if err != nil {
		return fmt.Errorf("upsert session %s: %w", id, err)
	}
	return nil
}

// AppendTurn appends one turn to a session's history. History is
// append-only; turns are never updated or reordered.
func (s *Store) AppendTurn(turn models.Turn) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	degraded := 0
	if turn.Degraded {
		degraded = 1
	}
	_, err := s.conn.Exec(`
		INSERT INTO turns (session_id, query, intent, summary, degraded, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, turn.SessionID, turn.Query, string(turn.Intent), turn.Summary, degraded, formatTime(turn.Timestamp))
	if err != nil {
		return fmt.Errorf("append turn for session %s: %w", turn.SessionID, err)
	}
	return nil
}

// ListTurns returns the most recent limit turns for a session in
// chronological order. A limit of 0 returns all turns.
func (s *Store) ListTurns(sessionID string, limit int) ([]models.Turn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT session_id, query, intent, summary, degraded, created_at
		FROM (
			SELECT id, session_id, query, intent, summary, degraded, created_at
			FROM turns WHERE session_id = ?
			ORDER BY id DESC
	`
	args := []any{sessionID}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	query += ") ORDER BY id ASC"

	rows, err := s.conn.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list turns for session %s: %w", sessionID, err)
	}
	defer rows.Close()

	var turns []models.Turn
	for rows.Next() {
		var t models.Turn
		var intent, createdAt string
		var degraded int
		if err := rows.Scan(&t.SessionID, &t.Query, &intent, &t.Summary, &degraded, &createdAt); err != nil {
			return nil, fmt.Errorf("scan turn: %w", err)
		}
		t.Intent = models.Intent(intent)
		t.Degraded = degraded != 0
		if ts, err := parseTime(createdAt); err == nil {
			t.Timestamp = ts
		}
		turns = append(turns, t)
	}
	return turns, rows.Err()
}

// CountTurns returns the number of stored turns for a session.
func (s *Store) CountTurns(sessionID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	row := s.conn.QueryRow("SELECT COUNT(*) FROM turns WHERE session_id = ?", sessionID)
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("count turns for session %s: %w", sessionID, err)
	}
	return count, nil
}

// PruneTurns deletes the oldest turns beyond keep for a session.
func (s *Store) PruneTurns(sessionID string, keep int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.conn.Exec(`
		DELETE FROM turns WHERE session_id = ? AND id NOT IN (
			SELECT id FROM turns WHERE session_id = ? ORDER BY id DESC LIMIT ?
		)
	`, sessionID, sessionID, keep)
	if err != nil {
		return fmt.Errorf("prune turns for session %s: %w", sessionID, err)
	}
	return nil
}

// SavePreferences persists a session's preference map as JSON.
func (s *Store) SavePreferences(sessionID string, prefs models.Preferences) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(prefs)
	if err != nil {
		return fmt.Errorf("marshal preferences: %w", err)
	}

	_, err = s.conn.Exec(`
		INSERT INTO preferences (session_id, data, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at
	`, sessionID, string(data), formatTime(time.Now()))
	if err != nil {
		return fmt.Errorf("save preferences for session %s: %w", sessionID, err)
	}
	return nil
}

// GetPreferences loads a session's preference map. Missing sessions get an
// empty map.
func (s *Store) GetPreferences(sessionID string) (models.Preferences, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var data string
	row := s.conn.QueryRow("SELECT data FROM preferences WHERE session_id = ?", sessionID)
	if err := row.Scan(&data); err != nil {
		if err == sql.ErrNoRows {
			return models.Preferences{}, nil
		}
		return models.Preferences{}, fmt.Errorf("get preferences for session %s: %w", sessionID, err)
	}

	var prefs models.Preferences
	if err := json.Unmarshal([]byte(data), &prefs); err != nil {
		return models.Preferences{}, fmt.Errorf("unmarshal preferences for session %s: %w", sessionID, err)
	}
	return prefs, nil
}

// PurgeSessionsBefore removes sessions whose last activity predates cutoff,
// cascading to their turns and preferences.
func (s *Store) PurgeSessionsBefore(cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.conn.Exec("DELETE FROM sessions WHERE last_activity < ?", formatTime(cutoff))
	if err != nil {
		return 0, fmt.Errorf("purge sessions: %w", err)
	}
	return res.RowsAffected()
}

// SessionTimes returns a session's stored created/last-activity times, or
// false when the session has never been persisted.
func (s *Store) SessionTimes(sessionID string) (created, last time.Time, ok bool, err error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var createdStr, lastStr string
	row := s.conn.QueryRow("SELECT created_at, last_activity FROM sessions WHERE id = ?", sessionID)
	if scanErr := row.Scan(&createdStr, &lastStr); scanErr != nil {
		if scanErr == sql.ErrNoRows {
			return time.Time{}, time.Time{}, false, nil
		}
		return time.Time{}, time.Time{}, false, fmt.Errorf("get session %s: %w", sessionID, scanErr)
	}

	created, err = parseTime(createdStr)
	if err != nil {
		return time.Time{}, time.Time{}, false, err
	}
	last, err = parseTime(lastStr)
	if err != nil {
		return time.Time{}, time.Time{}, false, err
	}
	return created, last, true, nil
}

// formatTime formats a time.Time for SQLite storage.
func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// parseTime parses a time string from SQLite.
func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339, s)
}
