// Package timestore persists the stored-time feature's values. A Postgres
// implementation backs it when a DSN is configured; otherwise an in-memory
// store is used.
package timestore

import (
	"context"
	"errors"
	"sync"
)

// ErrNoStoredTime is returned by Latest before any value has been saved.
var ErrNoStoredTime = errors.New("no stored time")

type Store interface {
	Save(ctx context.Context, value string) error
	Latest(ctx context.Context) (string, error)

	// Close releases underlying resources. The in-memory store is a no-op.
	Close() error
}

// MemoryStore keeps the values in process memory.
type MemoryStore struct {
	mu     sync.Mutex
	values []string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Save(ctx context.Context, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values = append(s.values, value)
	return nil
}

func (s *MemoryStore) Latest(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.values) == 0 {
		return "", ErrNoStoredTime
	}
	return s.values[len(s.values)-1], nil
}

func (s *MemoryStore) Close() error { return nil }
