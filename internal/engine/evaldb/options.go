package evaldb

import (
	"go.uber.org/zap"

	"github.com/discochess/persona/internal/codec"
	"github.com/discochess/persona/internal/stats"
)

// Option configures a DB or a Writer.
type Option func(*options)

type options struct {
	codec       codec.Codec
	strategy    Strategy
	totalShards int
	cacheSize   int
	minDepth    int
	source      string
	stats       stats.Collector
	logger      *zap.Logger
}

func defaultOptions() options {
	return options{
		codec:       codec.Zstd{},
		strategy:    Material{},
		totalShards: 32768, // 2^15 shards
		cacheSize:   128,
		stats:       stats.NewNoop(),
		logger:      zap.NewNop(),
	}
}

// WithCodec sets the shard compression. A DB opened from a manifest uses
// the manifest's compression instead.
func WithCodec(c codec.Codec) Option {
	return func(o *options) { o.codec = c }
}

// WithStrategy sets the sharding strategy for a Writer.
func WithStrategy(s Strategy) Option {
	return func(o *options) { o.strategy = s }
}

// WithTotalShards sets the shard count for a Writer. Default is 32768.
func WithTotalShards(n int) Option {
	return func(o *options) { o.totalShards = n }
}

// WithCacheSize sets how many decoded shards a DB keeps. Default is 128.
func WithCacheSize(n int) Option {
	return func(o *options) { o.cacheSize = n }
}

// WithMinDepth makes a DB treat records searched shallower than depth as
// missing, so a chained engine evaluates them instead.
func WithMinDepth(depth int) Option {
	return func(o *options) { o.minDepth = depth }
}

// WithSource records where a Writer's evaluations came from in the
// manifest.
func WithSource(url string) Option {
	return func(o *options) { o.source = url }
}

// WithStats sets the stats collector.
func WithStats(c stats.Collector) Option {
	return func(o *options) { o.stats = c }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}
