package persona

import (
	"time"

	"go.uber.org/zap"

	"github.com/discochess/persona/internal/engine"
	"github.com/discochess/persona/internal/features"
	"github.com/discochess/persona/internal/featurestore"
	"github.com/discochess/persona/internal/scoring"
	"github.com/discochess/persona/internal/stats"
)

// Option configures an Analyzer.
type Option interface {
	apply(*options)
}

// options holds the analyzer configuration.
type options struct {
	factory   engine.Factory
	store     featurestore.Store
	weights   scoring.Weights
	extractor features.Config
	limits    engine.Limits
	timeout   time.Duration
	workers   int
	cacheSize int
	stats     stats.Collector
	logger    *zap.Logger
}

// defaultOptions returns the default configuration.
func defaultOptions() options {
	return options{
		weights:   scoring.DefaultWeights(),
		extractor: features.DefaultConfig(),
		limits:    engine.Limits{Depth: 18},
		timeout:   10 * time.Second,
		stats:     stats.NewNoop(),
		logger:    zap.NewNop(),
	}
}

// optionFunc wraps a function to implement Option.
type optionFunc func(*options)

// Compile-time check that optionFunc implements Option.
var _ Option = optionFunc(nil)

func (f optionFunc) apply(o *options) { f(o) }

// WithEvaluatorFactory sets how each worker obtains its evaluator.
// Required for AnalyzeGames.
func WithEvaluatorFactory(f engine.Factory) Option {
	return optionFunc(func(o *options) {
		o.factory = f
	})
}

// WithWorkers sets the number of parallel workers.
// Default is the number of CPUs.
func WithWorkers(n int) Option {
	return optionFunc(func(o *options) {
		o.workers = n
	})
}

// WithFeatureStore sets where feature records are kept.
// If not set, records are kept in memory.
func WithFeatureStore(s featurestore.Store) Option {
	return optionFunc(func(o *options) {
		o.store = s
	})
}

// WithWeights sets the scoring weights.
func WithWeights(w scoring.Weights) Option {
	return optionFunc(func(o *options) {
		o.weights = w
	})
}

// WithExtractorConfig sets the feature extraction heuristics.
func WithExtractorConfig(c features.Config) Option {
	return optionFunc(func(o *options) {
		o.extractor = c
	})
}

// WithLimits sets the search limits for every position.
// Default is depth 18.
func WithLimits(l engine.Limits) Option {
	return optionFunc(func(o *options) {
		o.limits = l
	})
}

// WithTimeout sets the per-position evaluation deadline.
// Default is 10s. Zero disables it.
func WithTimeout(d time.Duration) Option {
	return optionFunc(func(o *options) {
		o.timeout = d
	})
}

// WithEvalCache shares an LRU cache of size results between workers.
// Zero disables the cache.
func WithEvalCache(size int) Option {
	return optionFunc(func(o *options) {
		o.cacheSize = size
	})
}

// WithStats sets the stats collector.
// If not set, a no-op collector is used.
func WithStats(c stats.Collector) Option {
	return optionFunc(func(o *options) {
		o.stats = c
	})
}

// WithLogger sets the logger.
// If not set, a no-op logger is used.
func WithLogger(l *zap.Logger) Option {
	return optionFunc(func(o *options) {
		o.logger = l
	})
}
