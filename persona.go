// Package persona classifies the moves of a player's games, extracts
// per-game style features and scores six personality traits from them.
//
// Example usage:
//
//	a, err := persona.New(
//	    persona.WithEvaluatorFactory(uciengine.Factory("stockfish")),
//	    persona.WithWorkers(4),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer a.Close()
//
//	report, err := a.AnalyzePGN(ctx, "games.pgn.zst", "alice", "lichess")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	profile, err := a.Profile(ctx, "alice", "lichess")
package persona

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/discochess/persona/internal/annotate"
	"github.com/discochess/persona/internal/batch"
	"github.com/discochess/persona/internal/engine/cached"
	"github.com/discochess/persona/internal/features"
	"github.com/discochess/persona/internal/featurestore"
	"github.com/discochess/persona/internal/featurestore/memstore"
	"github.com/discochess/persona/internal/pgn"
	"github.com/discochess/persona/internal/scoring"
	"github.com/discochess/persona/internal/stats"
)

// Sentinel errors for well-defined error conditions.
var (
	// ErrNoEvaluator indicates analysis was requested without an
	// evaluator factory.
	ErrNoEvaluator = errors.New("persona: no evaluator configured")

	// ErrNoGames indicates a profile was requested for a player with no
	// stored games.
	ErrNoGames = errors.New("persona: no games for player")

	// ErrClosed indicates the analyzer has been closed.
	ErrClosed = errors.New("persona: analyzer closed")
)

// Analyzer runs the pipeline from games to trait profiles.
// An Analyzer is safe for concurrent use by multiple goroutines.
type Analyzer struct {
	store  featurestore.Store
	scorer *scoring.Scorer
	runner *batch.Runner
	cache  *cached.Cache
	stats  stats.Collector
	logger *zap.Logger
	closed atomic.Bool
}

// New creates an Analyzer with the given options.
func New(opts ...Option) (*Analyzer, error) {
	cfg := defaultOptions()
	for _, opt := range opts {
		opt.apply(&cfg)
	}

	scorer, err := scoring.NewScorer(cfg.weights)
	if err != nil {
		return nil, err
	}
	extractor, err := features.NewExtractor(
		features.WithConfig(cfg.extractor),
		features.WithLogger(cfg.logger.Named("features")),
	)
	if err != nil {
		return nil, err
	}

	a := &Analyzer{
		store:  cfg.store,
		scorer: scorer,
		stats:  cfg.stats,
		logger: cfg.logger,
	}
	if a.store == nil {
		a.store = memstore.New()
	}

	if cfg.factory != nil {
		runnerOpts := []batch.Option{
			batch.WithWorkers(cfg.workers),
			batch.WithExtractor(extractor),
			batch.WithStats(cfg.stats),
			batch.WithLogger(cfg.logger.Named("batch")),
			batch.WithAnnotateOptions(
				annotate.WithLimits(cfg.limits),
				annotate.WithTimeout(cfg.timeout),
				annotate.WithStats(cfg.stats),
				annotate.WithLogger(cfg.logger.Named("annotate")),
			),
		}
		if cfg.cacheSize > 0 {
			a.cache, err = cached.NewCache(cfg.cacheSize, cfg.stats)
			if err != nil {
				return nil, err
			}
			runnerOpts = append(runnerOpts, batch.WithCache(a.cache))
		}
		a.runner, err = batch.New(cfg.factory, a.store, runnerOpts...)
		if err != nil {
			return nil, err
		}
	}

	a.logger.Debug("analyzer initialized",
		zap.String("weights", scorer.Weights().Version),
		zap.Bool("evaluator", a.runner != nil),
		zap.Int("evalCache", cfg.cacheSize),
	)
	return a, nil
}

// AnalyzeGames classifies every game from src and stores the features.
// The report is returned even when the batch stops early.
func (a *Analyzer) AnalyzeGames(ctx context.Context, src batch.Source) (*batch.Report, error) {
	if a.closed.Load() {
		return nil, ErrClosed
	}
	if a.runner == nil {
		return nil, ErrNoEvaluator
	}
	return a.runner.RunSource(ctx, src)
}

// AnalyzePGN classifies the games of user in the PGN file at path. The
// file may be compressed with zstd or gzip.
func (a *Analyzer) AnalyzePGN(ctx context.Context, path, user, platform string) (*batch.Report, error) {
	f, err := pgn.Open(path, user, pgn.WithPlatform(platform))
	if err != nil {
		return nil, fmt.Errorf("persona: %w", err)
	}
	defer f.Close()
	return a.AnalyzeGames(ctx, f)
}

// Profile scores the stored games of user on platform. An empty platform
// matches every platform.
func (a *Analyzer) Profile(ctx context.Context, user, platform string) (scoring.Profile, error) {
	if a.closed.Load() {
		return scoring.Profile{}, ErrClosed
	}
	fs, err := a.store.List(ctx, featurestore.Query{User: user, Platform: platform})
	if err != nil {
		return scoring.Profile{}, fmt.Errorf("persona: listing games of %s: %w", user, err)
	}
	if len(fs) == 0 {
		return scoring.Profile{}, fmt.Errorf("%w: %s", ErrNoGames, user)
	}
	return a.scorer.ScoreFeatures(fs), nil
}

// ProfileFeatures scores fs directly.
func (a *Analyzer) ProfileFeatures(fs []features.GameFeatures) scoring.Profile {
	return a.scorer.ScoreFeatures(fs)
}

// Scorer returns the scorer in use.
func (a *Analyzer) Scorer() *scoring.Scorer {
	return a.scorer
}

// Store returns the feature store.
func (a *Analyzer) Store() featurestore.Store {
	return a.store
}

// CacheStats returns evaluation cache statistics, or false without a cache.
func (a *Analyzer) CacheStats() (cached.Stats, bool) {
	if a.cache == nil {
		return cached.Stats{}, false
	}
	return a.cache.Stats(), true
}

// Close releases the feature store. After Close, the analyzer should not
// be used.
func (a *Analyzer) Close() error {
	if !a.closed.CompareAndSwap(false, true) {
		return ErrClosed
	}
	if err := a.store.Close(); err != nil {
		return fmt.Errorf("closing feature store: %w", err)
	}
	return nil
}
