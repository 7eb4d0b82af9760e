package calibration

import (
	"context"

	"github.com/discochess/persona/internal/features"
	"github.com/discochess/persona/internal/featurestore"
)

// Corpus supplies the classified games of a benchmark player.
type Corpus interface {
	Features(ctx context.Context, entry BenchmarkEntry) ([]features.GameFeatures, error)
}

// StoreCorpus reads games from a feature store. It only lists records.
type StoreCorpus struct {
	store featurestore.Store
}

// NewStoreCorpus returns a corpus backed by s.
func NewStoreCorpus(s featurestore.Store) *StoreCorpus {
	return &StoreCorpus{store: s}
}

// Features lists the stored games of entry.
func (c *StoreCorpus) Features(ctx context.Context, entry BenchmarkEntry) ([]features.GameFeatures, error) {
	return c.store.List(ctx, featurestore.Query{User: entry.Username(), Platform: entry.Platform})
}

// MapCorpus serves games held in memory, keyed by username.
type MapCorpus map[string][]features.GameFeatures

// Features returns the games of entry.
func (m MapCorpus) Features(ctx context.Context, entry BenchmarkEntry) ([]features.GameFeatures, error) {
	return m[entry.Username()], nil
}
