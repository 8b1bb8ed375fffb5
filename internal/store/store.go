// Package store is the dashboard's persistence layer: a single SQLite file
// holding imported energy usage plus the small CRUD resources (projects,
// notes, shopping items).
//
// The handle is constructed once at process start and passed explicitly into
// whatever needs it; there is no package-level client.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	appLog "wallboard/internal/log"
)

// Store wraps the SQLite database handle.
type Store struct {
	db *sql.DB
}

// schema creates all tables on first open. Energy usage is keyed by date so
// that re-importing a bill upserts rather than duplicates.
const schema = `
CREATE TABLE IF NOT EXISTS energy_usage (
	date       TEXT PRIMARY KEY,
	usage_kwh  REAL NOT NULL,
	cost       REAL
);

CREATE TABLE IF NOT EXISTS projects (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL DEFAULT '',
	status     TEXT NOT NULL DEFAULT '',
	notes      TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS notes (
	id         TEXT PRIMARY KEY,
	title      TEXT NOT NULL DEFAULT '',
	body       TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS shopping_items (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL DEFAULT '',
	quantity   TEXT NOT NULL DEFAULT '',
	done       TEXT NOT NULL DEFAULT 'false',
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);
`

// Open opens (creating if necessary) the SQLite database at path and applies
// the schema.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("store: path is empty")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("store: create dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open: %w", err)
	}

	// A single writer keeps SQLite happy under concurrent HTTP handlers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: apply schema: %w", err)
	}

	appLog.Info("store opened", "path", path)
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping verifies the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
