// Package sqlite implements db.Store on an embedded SQLite database. It
// serves library mode and tests, where running a Redis stack next to the
// pipeline is not worth the setup.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/matchgate/enrichd/internal/db"
)

// Compile-time check: Store implements db.Store.
var _ db.Store = (*Store)(nil)

// Config holds parameters for a SQLite store.
type Config struct {
	// Path is the database file; ":memory:" keeps everything in process.
	Path string
}

// Store implements db.Store via modernc.org/sqlite.
type Store struct {
	db *sql.DB
}

// NewStore opens a SQLite database with WAL mode and initializes the schema.
func NewStore(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("path is required")
	}

	conn, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, &db.Error{Op: db.OpOpen, Err: err}
	}

	// Each pooled connection would open its own private ":memory:" database,
	// so the pool is pinned to a single connection.
	conn.SetMaxOpenConns(1)

	if _, err := conn.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, &db.Error{Op: db.OpOpen, Err: err}
	}
	if _, err := conn.ExecContext(ctx, "PRAGMA busy_timeout=5000"); err != nil {
		conn.Close()
		return nil, &db.Error{Op: db.OpOpen, Err: err}
	}

	if err := initSchema(ctx, conn); err != nil {
		conn.Close()
		return nil, err
	}

	return &Store{db: conn}, nil
}

// initSchema creates tables if they don't exist. Record insertion order is
// carried by rowid; upserts must keep it stable, so writes use ON CONFLICT
// updates rather than INSERT OR REPLACE.
func initSchema(ctx context.Context, conn *sql.DB) error {
	schema := `
CREATE TABLE IF NOT EXISTS indexes (
	name TEXT PRIMARY KEY,
	prefix TEXT NOT NULL,
	match_field TEXT NOT NULL,
	case_sensitive INTEGER NOT NULL DEFAULT 1
);

CREATE TABLE IF NOT EXISTS records (
	key TEXT PRIMARY KEY,
	idx TEXT NOT NULL,
	id TEXT NOT NULL,
	match_value TEXT NOT NULL,
	source TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS records_match ON records(idx, match_value);

CREATE TABLE IF NOT EXISTS meta (
	key TEXT PRIMARY KEY,
	fields TEXT NOT NULL
);
`
	if _, err := conn.ExecContext(ctx, schema); err != nil {
		return &db.Error{Op: db.OpExec, Err: err}
	}
	return nil
}

// Ping checks that the database file is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// Close shuts down the database handle.
func (s *Store) Close() {
	_ = s.db.Close()
}

// WaitForReady polls Ping until the store responds or timeout expires. An
// embedded database is ready as soon as it opens; the loop exists for
// interface parity with networked stores.
func (s *Store) WaitForReady(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("timeout waiting for database: %w", ctx.Err())
		case <-ticker.C:
			if err := s.Ping(ctx); err == nil {
				return nil
			}
		}
	}
}
