// Package mongo implements storage.Storage on MongoDB, storing each
// checkpoint key as one document in a dedicated collection.
//
// Usage:
//
//	client, err := mongo.Connect(options.Client().ApplyURI(uri))
//	st := mongostore.New(client.Database("app"))
package mongo

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/slotline/slotline/storage"
)

// Compile-time interface check.
var _ storage.Storage = (*Store)(nil)

// DefaultCollection is the collection checkpoint documents live in.
const DefaultCollection = "slotline_kv"

type document struct {
	Key   string `bson:"_id"`
	Value string `bson:"value"`
}

// Option configures the Store.
type Option func(*Store)

// WithCollection overrides the collection name.
func WithCollection(name string) Option {
	return func(s *Store) { s.collection = name }
}

// Store implements storage.Storage backed by a Mongo collection.
// The caller owns the client lifecycle; Store never closes it.
type Store struct {
	db         *mongo.Database
	collection string
}

// New creates a Mongo-backed store.
func New(db *mongo.Database, opts ...Option) *Store {
	s := &Store{db: db, collection: DefaultCollection}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) coll() *mongo.Collection {
	return s.db.Collection(s.collection)
}

// Get returns the value stored under key.
func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	var doc document
	err := s.coll().FindOne(ctx, bson.M{"_id": key}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("storage/mongo: get %q: %w", key, err)
	}
	return doc.Value, true, nil
}

// Set stores value under key, replacing any previous value.
func (s *Store) Set(ctx context.Context, key, value string) error {
	_, err := s.coll().ReplaceOne(ctx,
		bson.M{"_id": key},
		document{Key: key, Value: value},
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("storage/mongo: set %q: %w", key, err)
	}
	return nil
}

// Remove deletes key.
func (s *Store) Remove(ctx context.Context, key string) error {
	if _, err := s.coll().DeleteOne(ctx, bson.M{"_id": key}); err != nil {
		return fmt.Errorf("storage/mongo: remove %q: %w", key, err)
	}
	return nil
}
