// Package blob defines key-addressed byte storage used for evaluation
// database shards and manifests.
package blob

import (
	"context"
	"errors"
)

// ErrNotFound is returned when no object exists under a key.
var ErrNotFound = errors.New("blob: object not found")

// Store reads and writes opaque objects by slash-separated key.
// Implementations do not interpret or compress the bytes.
type Store interface {
	// Get returns the object stored under key.
	Get(ctx context.Context, key string) ([]byte, error)

	// Put stores data under key, replacing any previous object.
	Put(ctx context.Context, key string, data []byte) error

	// Close releases any resources held by the store.
	Close() error
}
