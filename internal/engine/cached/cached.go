// Package cached memoizes evaluator results in a shared LRU cache.
package cached

import (
	"context"
	"fmt"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/notnil/chess"

	"github.com/discochess/persona/internal/engine"
	"github.com/discochess/persona/internal/stats"
)

// key identifies a cached search. Deeper searches are cached separately
// from shallower ones.
type key struct {
	position string
	depth    int
}

// Stats contains cache statistics.
type Stats struct {
	Hits   int64
	Misses int64
	Size   int // Current number of entries
}

// HitRate returns the cache hit rate as a percentage.
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total) * 100
}

// Cache holds results shared by every evaluator wrapped with it.
// It is safe for concurrent use.
type Cache struct {
	lru       *lru.Cache[key, engine.Result]
	collector stats.Collector

	hits   atomic.Int64
	misses atomic.Int64
}

// NewCache creates a cache holding up to size results.
// The collector is optional; if nil, a no-op collector is used.
func NewCache(size int, collector stats.Collector) (*Cache, error) {
	if size <= 0 {
		return nil, fmt.Errorf("cached: size must be positive, got %d", size)
	}
	l, err := lru.New[key, engine.Result](size)
	if err != nil {
		return nil, err
	}
	if collector == nil {
		collector = stats.NewNoop()
	}
	return &Cache{lru: l, collector: collector}, nil
}

// Wrap returns an evaluator that answers from c before asking ev.
// Closing the wrapper closes ev but leaves c intact.
func (c *Cache) Wrap(ev engine.Evaluator) engine.Evaluator {
	return &evaluator{cache: c, next: ev}
}

// Stats returns current cache statistics.
func (c *Cache) Stats() Stats {
	return Stats{
		Hits:   c.hits.Load(),
		Misses: c.misses.Load(),
		Size:   c.lru.Len(),
	}
}

func (c *Cache) get(k key) (engine.Result, bool) {
	res, ok := c.lru.Get(k)
	if ok {
		c.hits.Add(1)
		c.collector.IncCounter(stats.MetricCacheHits, 1)
		return res, true
	}
	c.misses.Add(1)
	c.collector.IncCounter(stats.MetricCacheMisses, 1)
	return engine.Result{}, false
}

func (c *Cache) add(k key, res engine.Result) {
	c.lru.Add(k, res)
	c.collector.SetGauge(stats.MetricCacheSize, int64(c.lru.Len()))
}

type evaluator struct {
	cache *Cache
	next  engine.Evaluator
}

func (e *evaluator) Evaluate(ctx context.Context, pos *chess.Position, limits engine.Limits) (engine.Result, error) {
	k := key{position: engine.PositionKey(pos), depth: limits.Depth}
	if res, ok := e.cache.get(k); ok {
		return res, nil
	}
	res, err := e.next.Evaluate(ctx, pos, limits)
	if err != nil {
		return engine.Result{}, err
	}
	e.cache.add(k, res)
	return res, nil
}

func (e *evaluator) Close() error {
	return e.next.Close()
}
