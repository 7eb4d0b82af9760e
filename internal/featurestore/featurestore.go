// Package featurestore defines storage for per-game feature records.
// Records are keyed by (user, platform, game id); writing a key that
// already exists replaces the record.
package featurestore

import (
	"context"
	"errors"
	"sort"

	"github.com/discochess/persona/internal/features"
	"github.com/discochess/persona/internal/game"
)

// ErrNotFound is returned when no record exists for a key.
var ErrNotFound = errors.New("featurestore: record not found")

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("featurestore: store closed")

// Query selects records. Empty fields match everything.
type Query struct {
	User     string
	Platform string

	// Limit caps the number of records returned. Zero means no limit.
	Limit int
}

// Matches reports whether k is selected by q.
func (q Query) Matches(k game.Key) bool {
	return (q.User == "" || q.User == k.User) &&
		(q.Platform == "" || q.Platform == k.Platform)
}

// Store persists GameFeatures.
type Store interface {
	// Put inserts or replaces the record for f.Key.
	Put(ctx context.Context, f features.GameFeatures) error

	// Get returns the record for key, or ErrNotFound.
	Get(ctx context.Context, key game.Key) (features.GameFeatures, error)

	// List returns the records selected by q ordered by key.
	List(ctx context.Context, q Query) ([]features.GameFeatures, error)

	// Close releases any resources held by the store.
	Close() error
}

// SortByKey orders fs by user, platform and game id.
func SortByKey(fs []features.GameFeatures) {
	sort.Slice(fs, func(i, j int) bool {
		a, b := fs[i].Key, fs[j].Key
		if a.User != b.User {
			return a.User < b.User
		}
		if a.Platform != b.Platform {
			return a.Platform < b.Platform
		}
		return a.GameID < b.GameID
	})
}
