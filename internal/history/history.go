// Package history persists shell-integration breadcrumbs: window titles
// and working-directory reports, per terminal session. It backs the
// "recent directories" picker without holding anything in the emulator's
// hot path; writes go through a small write-behind recorder.
package history

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SchemaVersion tracks the current database schema version.
// Bump this when adding migrations.
const SchemaVersion = 1

// DB wraps the SQLite history database. Safe for concurrent use within one
// process; WAL mode plus a busy timeout keeps multiple emulator processes
// from tripping over each other.
type DB struct {
	db *sql.DB
}

// Open creates or opens the history database at dbPath.
func Open(dbPath string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o700); err != nil {
		return nil, fmt.Errorf("history: mkdir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("history: open: %w", err)
	}

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("history: %s: %w", pragma, err)
		}
	}

	h := &DB{db: db}
	if err := h.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return h, nil
}

// Close checkpoints the WAL and closes the database.
func (h *DB) Close() error {
	if _, err := h.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		h.db.Close()
		return fmt.Errorf("history: checkpoint: %w", err)
	}
	return h.db.Close()
}

func (h *DB) migrate() error {
	var version int
	if err := h.db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("history: read schema version: %w", err)
	}
	if version >= SchemaVersion {
		return nil
	}

	if version < 1 {
		const schema = `
CREATE TABLE IF NOT EXISTS titles (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id TEXT NOT NULL,
	title      TEXT NOT NULL,
	seen_at    INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS dirs (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id TEXT NOT NULL,
	path       TEXT NOT NULL,
	seen_at    INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_titles_session ON titles(session_id, seen_at);
CREATE INDEX IF NOT EXISTS idx_dirs_seen ON dirs(seen_at);
`
		if _, err := h.db.Exec(schema); err != nil {
			return fmt.Errorf("history: create schema: %w", err)
		}
	}

	if _, err := h.db.Exec(fmt.Sprintf("PRAGMA user_version=%d", SchemaVersion)); err != nil {
		return fmt.Errorf("history: set schema version: %w", err)
	}
	return nil
}

// RecordTitle stores a window-title change.
func (h *DB) RecordTitle(sessionID, title string, at time.Time) error {
	_, err := h.db.Exec("INSERT INTO titles (session_id, title, seen_at) VALUES (?, ?, ?)",
		sessionID, title, at.Unix())
	if err != nil {
		return fmt.Errorf("history: record title: %w", err)
	}
	return nil
}

// RecordDir stores a working-directory report.
func (h *DB) RecordDir(sessionID, path string, at time.Time) error {
	_, err := h.db.Exec("INSERT INTO dirs (session_id, path, seen_at) VALUES (?, ?, ?)",
		sessionID, path, at.Unix())
	if err != nil {
		return fmt.Errorf("history: record dir: %w", err)
	}
	return nil
}

// RecentDirs returns distinct working directories, most recently seen
// first, up to limit.
func (h *DB) RecentDirs(limit int) ([]string, error) {
	rows, err := h.db.Query(
		"SELECT path FROM dirs GROUP BY path ORDER BY MAX(seen_at) DESC LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("history: recent dirs: %w", err)
	}
	defer rows.Close()

	var dirs []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("history: scan dir: %w", err)
		}
		dirs = append(dirs, p)
	}
	return dirs, rows.Err()
}

// LastTitle returns the most recent title recorded for a session, or ""
// when the session has none.
func (h *DB) LastTitle(sessionID string) (string, error) {
	var title string
	err := h.db.QueryRow(
		"SELECT title FROM titles WHERE session_id = ? ORDER BY seen_at DESC, id DESC LIMIT 1",
		sessionID).Scan(&title)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("history: last title: %w", err)
	}
	return title, nil
}
