// Package storage defines the key-value persistence capability the
// scheduler uses to checkpoint lane state. The contract is a single
// string key per scheduler instance: Get, Set, Remove.
//
// Backends: Memory (default, no durability across restarts), Redis,
// SQLite, Postgres, and Mongo. Persistence failures are non-fatal to
// in-memory scheduling — the engine logs and continues, with recovery
// guarantees void for that cycle.
package storage

import "context"

// Storage is the injected persistence capability.
// Implementations must be safe for concurrent use.
type Storage interface {
	// Get returns the value stored under key. The second return is
	// false when the key is absent.
	Get(ctx context.Context, key string) (string, bool, error)

	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key, value string) error

	// Remove deletes key. Removing an absent key is a no-op.
	Remove(ctx context.Context, key string) error
}
