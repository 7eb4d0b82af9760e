// Package memstore implements an in-memory feature store for tests.
package memstore

import (
	"context"
	"sync"

	"github.com/discochess/persona/internal/features"
	"github.com/discochess/persona/internal/featurestore"
	"github.com/discochess/persona/internal/game"
)

// Compile-time check that Store implements featurestore.Store.
var _ featurestore.Store = (*Store)(nil)

// Store keeps records in a map. It is safe for concurrent use.
type Store struct {
	mu      sync.RWMutex
	records map[game.Key]features.GameFeatures
	closed  bool
}

// New creates an empty store.
func New() *Store {
	return &Store{records: make(map[game.Key]features.GameFeatures)}
}

// Put inserts or replaces f.
func (s *Store) Put(ctx context.Context, f features.GameFeatures) error {
	if err := f.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return featurestore.ErrClosed
	}
	s.records[f.Key] = f
	return nil
}

// Get returns the record for key.
func (s *Store) Get(ctx context.Context, key game.Key) (features.GameFeatures, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return features.GameFeatures{}, featurestore.ErrClosed
	}
	f, ok := s.records[key]
	if !ok {
		return features.GameFeatures{}, featurestore.ErrNotFound
	}
	return f, nil
}

// List returns the matching records ordered by key.
func (s *Store) List(ctx context.Context, q featurestore.Query) ([]features.GameFeatures, error) {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return nil, featurestore.ErrClosed
	}
	var out []features.GameFeatures
	for k, f := range s.records {
		if q.Matches(k) {
			out = append(out, f)
		}
	}
	s.mu.RUnlock()

	featurestore.SortByKey(out)
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

// Len returns the number of stored records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Close marks the store closed.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
