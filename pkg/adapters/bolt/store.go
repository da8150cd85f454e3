// Package bolt persists session state in a single bbolt database file.
package bolt

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/scalux/scalux/pkg/domain"
)

// DefaultBucket holds one JSON document per session, keyed by session ID.
const DefaultBucket = "sessions"

// Store implements ports.StateStore on top of bbolt.
type Store struct {
	db     *bolt.DB
	bucket []byte
}

// Option configures a Store.
type Option func(*Store)

// WithBucket overrides DefaultBucket, letting several stores share a file.
func WithBucket(name string) Option {
	return func(s *Store) {
		if name != "" {
			s.bucket = []byte(name)
		}
	}
}

// Open opens (or creates) the database at path. It fails after one second
// if another process holds the file lock.
func Open(path string, opts ...Option) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to ensure database directory: %w", err)
	}
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt database: %w", err)
	}

	s := &Store{db: db, bucket: []byte(DefaultBucket)}
	for _, opt := range opts {
		opt(s)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(s.bucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize session bucket: %w", err)
	}
	return s, nil
}

// Save persists the state.
func (s *Store) Save(ctx context.Context, sessionID string, state *domain.State) error {
	if sessionID == "" {
		return fmt.Errorf("sessionID cannot be empty")
	}
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(s.bucket).Put([]byte(sessionID), data)
	})
}

// Load retrieves the state.
func (s *Store) Load(ctx context.Context, sessionID string) (*domain.State, error) {
	var state domain.State
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(s.bucket).Get([]byte(sessionID))
		if v == nil {
			return domain.ErrSessionNotFound
		}
		// v is only valid inside the transaction; Unmarshal copies.
		if err := json.Unmarshal(v, &state); err != nil {
			return fmt.Errorf("failed to unmarshal state: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &state, nil
}

// Delete removes the state. Deleting a missing session is not an error.
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(s.bucket).Delete([]byte(sessionID))
	})
}

// List returns session IDs in key order.
func (s *Store) List(ctx context.Context) ([]string, error) {
	sessions := []string{}
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(s.bucket).ForEach(func(k, _ []byte) error {
			sessions = append(sessions, string(k))
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	return sessions, nil
}

// Close releases the database file.
func (s *Store) Close() error {
	return s.db.Close()
}
