// Package sqlite implements storage.Storage on a local SQLite file via
// database/sql and the modernc.org/sqlite driver (no cgo). This is the
// natural backend for single-host deployments that need checkpoints to
// survive restarts without running a server.
//
// Usage:
//
//	db, err := sql.Open("sqlite", "file:slotline.db")
//	st := sqlitestore.New(db)
//	if err := st.Migrate(ctx); err != nil { ... }
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite" // register the "sqlite" driver

	"github.com/slotline/slotline/storage"
)

// Compile-time interface check.
var _ storage.Storage = (*Store)(nil)

const schema = `
CREATE TABLE IF NOT EXISTS slotline_kv (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);`

// Store implements storage.Storage backed by a SQLite table.
// The caller owns the *sql.DB lifecycle; Store never closes it.
type Store struct {
	db *sql.DB
}

// New creates a SQLite-backed store.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// DB returns the underlying *sql.DB.
func (s *Store) DB() *sql.DB { return s.db }

// Migrate creates the key-value table if it does not exist.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("storage/sqlite: migrate: %w", err)
	}
	return nil
}

// Get returns the value stored under key.
func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	var v string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM slotline_kv WHERE key = ?`, key,
	).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("storage/sqlite: get %q: %w", key, err)
	}
	return v, true, nil
}

// Set stores value under key, replacing any previous value.
func (s *Store) Set(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO slotline_kv (key, value) VALUES (?, ?)
		 ON CONFLICT (key) DO UPDATE SET value = excluded.value`,
		key, value,
	)
	if err != nil {
		return fmt.Errorf("storage/sqlite: set %q: %w", key, err)
	}
	return nil
}

// Remove deletes key.
func (s *Store) Remove(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM slotline_kv WHERE key = ?`, key,
	); err != nil {
		return fmt.Errorf("storage/sqlite: remove %q: %w", key, err)
	}
	return nil
}
