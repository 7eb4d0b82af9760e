package evaldb

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/discochess/persona/internal/blob"
	"github.com/discochess/persona/internal/codec"
)

// ManifestKey is the blob key of the manifest.
const ManifestKey = "manifest.json"

// Manifest describes how a database is sharded and compressed.
type Manifest struct {
	Version     int       `json:"version"`
	TotalShards int       `json:"total_shards"`
	Strategy    string    `json:"strategy"`
	RecordCount int64     `json:"record_count"`
	ShardCount  int       `json:"shard_count"` // non-empty shards
	BuiltAt     time.Time `json:"built_at"`
	SourceURL   string    `json:"source_url,omitempty"`
	Compression string    `json:"compression"`
}

// ReadManifest loads the manifest from s.
func ReadManifest(ctx context.Context, s blob.Store) (*Manifest, error) {
	data, err := s.Get(ctx, ManifestKey)
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing manifest: %w", err)
	}
	if m.TotalShards <= 0 {
		return nil, fmt.Errorf("manifest has invalid total_shards %d", m.TotalShards)
	}
	return &m, nil
}

// WriteManifest stores m in s.
func WriteManifest(ctx context.Context, s blob.Store, m *Manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling manifest: %w", err)
	}
	if err := s.Put(ctx, ManifestKey, data); err != nil {
		return fmt.Errorf("writing manifest: %w", err)
	}
	return nil
}

// ShardKey returns the blob key of a shard, e.g. "shards/00042.zst".
func ShardKey(shardID int, c codec.Codec) string {
	key := fmt.Sprintf("shards/%05d", shardID)
	if ext := c.Extension(); ext != "" {
		key += "." + ext
	}
	return key
}
