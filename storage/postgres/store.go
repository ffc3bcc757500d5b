// Package postgres implements storage.Storage on PostgreSQL via pgx,
// for deployments that want checkpoint state in the same database as
// the rest of the application.
//
// Usage:
//
//	pool, err := pgxpool.New(ctx, "postgres://localhost/app")
//	st := pgstore.New(pool)
//	if err := st.Migrate(ctx); err != nil { ... }
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/slotline/slotline/storage"
)

// Compile-time interface check.
var _ storage.Storage = (*Store)(nil)

const schema = `
CREATE TABLE IF NOT EXISTS slotline_kv (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);`

// Store implements storage.Storage backed by a Postgres table.
// The caller owns the pool lifecycle; Store never closes it.
type Store struct {
	pool *pgxpool.Pool
}

// New creates a Postgres-backed store.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Pool returns the underlying connection pool.
func (s *Store) Pool() *pgxpool.Pool { return s.pool }

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Migrate creates the key-value table if it does not exist.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("storage/postgres: migrate: %w", err)
	}
	return nil
}

// Get returns the value stored under key.
func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	var v string
	err := s.pool.QueryRow(ctx,
		`SELECT value FROM slotline_kv WHERE key = $1`, key,
	).Scan(&v)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("storage/postgres: get %q: %w", key, err)
	}
	return v, true, nil
}

// Set stores value under key, replacing any previous value.
func (s *Store) Set(ctx context.Context, key, value string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO slotline_kv (key, value) VALUES ($1, $2)
		 ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value`,
		key, value,
	)
	if err != nil {
		return fmt.Errorf("storage/postgres: set %q: %w", key, err)
	}
	return nil
}

// Remove deletes key.
func (s *Store) Remove(ctx context.Context, key string) error {
	if _, err := s.pool.Exec(ctx,
		`DELETE FROM slotline_kv WHERE key = $1`, key,
	); err != nil {
		return fmt.Errorf("storage/postgres: remove %q: %w", key, err)
	}
	return nil
}
