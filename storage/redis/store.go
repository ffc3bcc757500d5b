// Package redis implements storage.Storage on Redis, for deployments
// that already run Redis and want checkpoint state to survive process
// restarts.
//
// Usage:
//
//	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
//	st := redisstore.New(client)
package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/slotline/slotline/storage"
)

// Compile-time interface check.
var _ storage.Storage = (*Store)(nil)

// Store implements storage.Storage backed by Redis string keys.
type Store struct {
	client redis.Cmdable
}

// New creates a Redis-backed store. The caller owns the Redis client
// lifecycle.
func New(client redis.Cmdable) *Store {
	return &Store{client: client}
}

// Client returns the underlying Redis client.
func (s *Store) Client() redis.Cmdable { return s.client }

// Ping verifies the Redis connection is alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Get returns the value stored under key.
func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("storage/redis: get %q: %w", key, err)
	}
	return v, true, nil
}

// Set stores value under key with no expiry.
func (s *Store) Set(ctx context.Context, key, value string) error {
	if err := s.client.Set(ctx, key, value, 0).Err(); err != nil {
		return fmt.Errorf("storage/redis: set %q: %w", key, err)
	}
	return nil
}

// Remove deletes key.
func (s *Store) Remove(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("storage/redis: remove %q: %w", key, err)
	}
	return nil
}
