// Package evaldb looks up precomputed evaluations in a sharded database of
// sorted, compressed JSONL files in the Lichess evaluation format.
//
// Shards live in any blob.Store, so the same database can be served from
// local disk, GCS or S3. Chained in front of a live engine, a DB answers
// the common positions of a corpus without a search.
package evaldb

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/notnil/chess"
	"go.uber.org/zap"

	"github.com/discochess/persona/internal/blob"
	"github.com/discochess/persona/internal/codec"
	"github.com/discochess/persona/internal/engine"
	"github.com/discochess/persona/internal/stats"
)

// Compile-time check that DB implements engine.Evaluator.
var _ engine.Evaluator = (*DB)(nil)

// DB is a lookup evaluator. It is safe for concurrent use, so one DB can
// be shared by every worker of a batch.
type DB struct {
	store       blob.Store
	codec       codec.Codec
	strategy    Strategy
	totalShards int
	minDepth    int
	shards      *lru.Cache[int, []byte]
	stats       stats.Collector
	logger      *zap.Logger
	closed      atomic.Bool
}

// Open reads the manifest from s and returns a DB over its shards.
func Open(ctx context.Context, s blob.Store, opts ...Option) (*DB, error) {
	cfg := defaultOptions()
	for _, opt := range opts {
		opt(&cfg)
	}

	m, err := ReadManifest(ctx, s)
	if err != nil {
		return nil, err
	}
	strategy, err := StrategyByName(m.Strategy)
	if err != nil {
		return nil, err
	}
	c, err := codec.ByName(m.Compression)
	if err != nil {
		return nil, err
	}
	cache, err := lru.New[int, []byte](max(cfg.cacheSize, 1))
	if err != nil {
		return nil, fmt.Errorf("creating shard cache: %w", err)
	}

	db := &DB{
		store:       s,
		codec:       c,
		strategy:    strategy,
		totalShards: m.TotalShards,
		minDepth:    cfg.minDepth,
		shards:      cache,
		stats:       cfg.stats,
		logger:      cfg.logger,
	}
	db.logger.Debug("evaluation database opened",
		zap.Int("totalShards", m.TotalShards),
		zap.String("strategy", m.Strategy),
		zap.Int64("records", m.RecordCount),
	)
	return db, nil
}

// Evaluate looks pos up. It returns engine.ErrNotFound for positions that
// are absent or searched shallower than the configured minimum depth.
// Limits are ignored.
func (db *DB) Evaluate(ctx context.Context, pos *chess.Position, _ engine.Limits) (engine.Result, error) {
	if db.closed.Load() {
		return engine.Result{}, engine.ErrClosed
	}
	db.stats.IncCounter(stats.MetricLookups, 1)

	shardID := db.strategy.ShardID(pos, db.totalShards)
	data, err := db.shard(ctx, shardID)
	if errors.Is(err, blob.ErrNotFound) {
		db.stats.IncCounter(stats.MetricLookupMisses, 1)
		return engine.Result{}, engine.ErrNotFound
	}
	if err != nil {
		return engine.Result{}, fmt.Errorf("fetching shard %d: %w", shardID, err)
	}

	rec, err := search(data, engine.PositionKey(pos))
	if err != nil {
		if errors.Is(err, engine.ErrNotFound) {
			db.stats.IncCounter(stats.MetricLookupMisses, 1)
		}
		return engine.Result{}, err
	}
	res, ok := rec.result(pos)
	if !ok || res.Depth < db.minDepth {
		db.stats.IncCounter(stats.MetricLookupMisses, 1)
		return engine.Result{}, engine.ErrNotFound
	}

	db.stats.IncCounter(stats.MetricLookupHits, 1)
	return res, nil
}

// Close releases the underlying store. A DB shared between workers is
// closed once by its owner.
func (db *DB) Close() error {
	if !db.closed.CompareAndSwap(false, true) {
		return engine.ErrClosed
	}
	if err := db.store.Close(); err != nil {
		return fmt.Errorf("closing store: %w", err)
	}
	return nil
}

// shard returns the decompressed contents of a shard, caching it.
func (db *DB) shard(ctx context.Context, shardID int) ([]byte, error) {
	if data, ok := db.shards.Get(shardID); ok {
		return data, nil
	}

	db.stats.IncCounter(stats.MetricShardFetches, 1)
	compressed, err := db.store.Get(ctx, ShardKey(shardID, db.codec))
	if err != nil {
		return nil, err
	}
	r, err := db.codec.Reader(bytes.NewReader(compressed))
	if err != nil {
		return nil, fmt.Errorf("creating decompressor: %w", err)
	}
	defer r.Close()
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("decompressing shard: %w", err)
	}

	db.shards.Add(shardID, data)
	return data, nil
}

// Shared wraps db so that closing the wrapper leaves db open. Workers
// each get a Shared handle while the owner closes db itself.
func Shared(db *DB) engine.Evaluator {
	return sharedDB{db}
}

type sharedDB struct{ *DB }

func (sharedDB) Close() error { return nil }
