// Package sqlitepersonafx provides an fx module for an analyzer that keeps
// features in SQLite and evaluates with a UCI engine.
package sqlitepersonafx

import (
	"context"
	"errors"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/discochess/persona"
	"github.com/discochess/persona/internal/blob/diskblob"
	"github.com/discochess/persona/internal/engine"
	"github.com/discochess/persona/internal/engine/evaldb"
	"github.com/discochess/persona/internal/engine/uciengine"
	"github.com/discochess/persona/internal/featurestore/sqlitestore"
	"github.com/discochess/persona/internal/scoring"
	"github.com/discochess/persona/internal/stats"
	"github.com/discochess/persona/internal/stats/logger"
)

// Config holds configuration for the analyzer.
type Config struct {
	// DBPath is the SQLite feature database.
	DBPath string

	// EnginePath is the UCI engine binary.
	EnginePath string

	// EvalDir optionally names a local evaluation database consulted
	// before the engine.
	EvalDir string

	// WeightsPath optionally names a weights YAML file.
	WeightsPath string

	// Workers is the number of engine workers. Default is 4.
	Workers int

	// Depth is the engine search depth. Default is 18.
	Depth int

	// CacheSize is the number of evaluations shared between workers.
	// Default is 100000.
	CacheSize int
}

// Module provides a *persona.Analyzer.
// Requires a *zap.Logger and a Config to be provided.
var Module = fx.Module("sqlitepersona",
	fx.Provide(
		newStatsCollector,
		newAnalyzer,
	),
)

func newStatsCollector(log *zap.Logger) stats.Collector {
	return logger.New(log.Named("persona.stats"))
}

// Params holds dependencies for creating the analyzer.
type Params struct {
	fx.In

	Config    Config
	Logger    *zap.Logger
	Collector stats.Collector
	Lifecycle fx.Lifecycle
}

// Result holds the provided analyzer.
type Result struct {
	fx.Out

	Analyzer *persona.Analyzer
}

func newAnalyzer(p Params) (Result, error) {
	if p.Config.EnginePath == "" {
		return Result{}, errors.New("sqlitepersonafx: EnginePath is required")
	}
	workers := p.Config.Workers
	if workers <= 0 {
		workers = 4
	}
	depth := p.Config.Depth
	if depth <= 0 {
		depth = 18
	}
	cacheSize := p.Config.CacheSize
	if cacheSize <= 0 {
		cacheSize = 100_000
	}

	weights := scoring.DefaultWeights()
	if p.Config.WeightsPath != "" {
		var err error
		if weights, err = scoring.LoadWeights(p.Config.WeightsPath); err != nil {
			return Result{}, err
		}
	}

	live := uciengine.Factory(p.Config.EnginePath,
		uciengine.WithStats(p.Collector),
		uciengine.WithLogger(p.Logger.Named("uci")),
	)
	factory := live
	var db *evaldb.DB
	if p.Config.EvalDir != "" {
		s, err := diskblob.New(p.Config.EvalDir)
		if err != nil {
			return Result{}, err
		}
		db, err = evaldb.Open(context.Background(), s,
			evaldb.WithMinDepth(depth),
			evaldb.WithStats(p.Collector),
			evaldb.WithLogger(p.Logger.Named("evaldb")),
		)
		if err != nil {
			s.Close()
			return Result{}, err
		}
		factory = func(ctx context.Context) (engine.Evaluator, error) {
			ev, err := live(ctx)
			if err != nil {
				return nil, err
			}
			return engine.NewChain(evaldb.Shared(db), ev), nil
		}
	}

	store, err := sqlitestore.Open(p.Config.DBPath, sqlitestore.WithLogger(p.Logger.Named("featurestore")))
	if err != nil {
		return Result{}, err
	}

	a, err := persona.New(
		persona.WithEvaluatorFactory(factory),
		persona.WithFeatureStore(store),
		persona.WithWeights(weights),
		persona.WithWorkers(workers),
		persona.WithLimits(engine.Limits{Depth: depth}),
		persona.WithEvalCache(cacheSize),
		persona.WithStats(p.Collector),
		persona.WithLogger(p.Logger.Named("persona")),
	)
	if err != nil {
		store.Close()
		return Result{}, err
	}

	p.Lifecycle.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			err := a.Close()
			if db != nil {
				err = errors.Join(err, db.Close())
			}
			return err
		},
	})

	return Result{Analyzer: a}, nil
}
