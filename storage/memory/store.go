// Package memory provides a fully in-memory storage backend. It is the
// default: values do not survive a process restart, so recovery repair
// only applies within a single process lifetime. Intended for unit
// testing and development.
package memory

import (
	"context"
	"sync"

	"github.com/slotline/slotline/storage"
)

// Compile-time interface check.
var _ storage.Storage = (*Store)(nil)

// Store is an in-memory implementation of storage.Storage.
// Safe for concurrent access.
type Store struct {
	mu     sync.RWMutex
	values map[string]string
}

// New returns a new empty Store.
func New() *Store {
	return &Store{
		values: make(map[string]string),
	}
}

// Get returns the value stored under key.
func (s *Store) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.values[key]
	return v, ok, nil
}

// Set stores value under key.
func (s *Store) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.values[key] = value
	return nil
}

// Remove deletes key.
func (s *Store) Remove(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.values, key)
	return nil
}

// Len returns the number of stored keys.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.values)
}
