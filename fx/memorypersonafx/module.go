// Package memorypersonafx provides an fx module for an in-memory analyzer
// with a material-counting evaluator. Useful for testing.
package memorypersonafx

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/discochess/persona"
	"github.com/discochess/persona/internal/engine"
	"github.com/discochess/persona/internal/engine/scripted"
	"github.com/discochess/persona/internal/featurestore/memstore"
	"github.com/discochess/persona/internal/stats"
	"github.com/discochess/persona/internal/stats/logger"
)

// Module provides an in-memory analyzer for testing.
// Requires a *zap.Logger to be provided.
var Module = fx.Module("memorypersona",
	fx.Provide(
		newStatsCollector,
		newMemStore,
		newAnalyzer,
	),
)

func newStatsCollector(log *zap.Logger) stats.Collector {
	return logger.New(log.Named("persona.stats"))
}

func newMemStore() *memstore.Store {
	return memstore.New()
}

// Params holds dependencies for creating the analyzer.
type Params struct {
	fx.In

	Logger    *zap.Logger
	Collector stats.Collector
	Store     *memstore.Store
	Lifecycle fx.Lifecycle
}

// Result holds the provided analyzer and store.
type Result struct {
	fx.Out

	Analyzer *persona.Analyzer
	Store    *memstore.Store // Exposed for test setup
}

func newAnalyzer(p Params) (Result, error) {
	factory := func(context.Context) (engine.Evaluator, error) {
		return scripted.New(scripted.WithFallback(scripted.Material)), nil
	}
	a, err := persona.New(
		persona.WithEvaluatorFactory(factory),
		persona.WithFeatureStore(p.Store),
		persona.WithWorkers(2),
		persona.WithStats(p.Collector),
		persona.WithLogger(p.Logger.Named("persona")),
	)
	if err != nil {
		return Result{}, err
	}

	p.Lifecycle.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return a.Close()
		},
	})

	return Result{
		Analyzer: a,
		Store:    p.Store,
	}, nil
}
