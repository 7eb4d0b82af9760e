// Package batch classifies many games in parallel. Each worker owns one
// evaluator; games are processed whole, and cancellation is observed
// between positions so a game is either fully classified or skipped.
package batch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/discochess/persona/internal/annotate"
	"github.com/discochess/persona/internal/engine"
	"github.com/discochess/persona/internal/engine/cached"
	"github.com/discochess/persona/internal/features"
	"github.com/discochess/persona/internal/game"
	"github.com/discochess/persona/internal/stats"
)

// ErrNoFactory is returned by New without an evaluator factory.
var ErrNoFactory = errors.New("batch: no evaluator factory")

// Sink receives each completed feature record.
type Sink interface {
	Put(ctx context.Context, f features.GameFeatures) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, f features.GameFeatures) error

// Put calls fn.
func (fn SinkFunc) Put(ctx context.Context, f features.GameFeatures) error {
	return fn(ctx, f)
}

// Source yields games. Next returns io.EOF at the end and errors wrapping
// game.ErrMalformed for games that could not be read.
type Source interface {
	Next() (*game.Game, error)
}

// Runner runs the classification pipeline over a stream of games.
type Runner struct {
	factory   engine.Factory
	sink      Sink
	workers   int
	cache     *cached.Cache
	extractor *features.Extractor
	annotate  []annotate.Option
	stats     stats.Collector
	logger    *zap.Logger

	active atomic.Int64
}

// Option configures a Runner.
type Option func(*Runner)

// WithWorkers sets the number of workers. Default is runtime.NumCPU().
func WithWorkers(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.workers = n
		}
	}
}

// WithCache shares c between the workers' evaluators.
func WithCache(c *cached.Cache) Option {
	return func(r *Runner) {
		r.cache = c
	}
}

// WithExtractor sets the feature extractor.
func WithExtractor(x *features.Extractor) Option {
	return func(r *Runner) {
		r.extractor = x
	}
}

// WithAnnotateOptions passes options to every worker's annotator.
func WithAnnotateOptions(opts ...annotate.Option) Option {
	return func(r *Runner) {
		r.annotate = append(r.annotate, opts...)
	}
}

// WithStats sets the stats collector.
func WithStats(c stats.Collector) Option {
	return func(r *Runner) {
		r.stats = c
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(r *Runner) {
		r.logger = l
	}
}

// New creates a runner that builds evaluators with factory and hands
// results to sink.
func New(factory engine.Factory, sink Sink, opts ...Option) (*Runner, error) {
	if factory == nil {
		return nil, ErrNoFactory
	}
	r := &Runner{
		factory: factory,
		sink:    sink,
		workers: runtime.NumCPU(),
		stats:   stats.NewNoop(),
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.sink == nil {
		r.sink = SinkFunc(func(context.Context, features.GameFeatures) error { return nil })
	}
	if r.extractor == nil {
		x, err := features.NewExtractor(features.WithLogger(r.logger))
		if err != nil {
			return nil, err
		}
		r.extractor = x
	}
	return r, nil
}

// Run classifies every game received from games until the channel is
// closed or ctx is done. The report is returned even when err is not nil:
// an unavailable evaluator stops the batch with an error wrapping
// engine.ErrUnavailable, and cancellation returns ctx.Err().
func (r *Runner) Run(ctx context.Context, games <-chan *game.Game) (*Report, error) {
	t := newTally(uuid.NewString(), r.workers, time.Now())
	return r.run(ctx, games, t)
}

// RunSource reads games from src and classifies them. Games src cannot
// read are reported as malformed.
func (r *Runner) RunSource(ctx context.Context, src Source) (*Report, error) {
	t := newTally(uuid.NewString(), r.workers, time.Now())

	feedCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	games := make(chan *game.Game)
	done := make(chan error, 1)
	go func() {
		defer close(games)
		done <- feed(feedCtx, src, games, t)
	}()

	rep, err := r.run(feedCtx, games, t)
	cancel()
	if ferr := <-done; ferr != nil && err == nil {
		err = ferr
		rep = t.report(rep.Duration)
	}
	return rep, err
}

func feed(ctx context.Context, src Source, out chan<- *game.Game, t *tally) error {
	for n := 1; ; n++ {
		g, err := src.Next()
		switch {
		case errors.Is(err, io.EOF):
			return nil
		case errors.Is(err, game.ErrMalformed):
			t.skip(Skip{Game: fmt.Sprintf("#%d", n), Reason: ReasonMalformed, Error: err.Error()})
			continue
		case err != nil:
			return fmt.Errorf("batch: reading games: %w", err)
		}
		select {
		case out <- g:
		case <-ctx.Done():
			return nil
		}
	}
}

func (r *Runner) run(ctx context.Context, games <-chan *game.Game, t *tally) (*Report, error) {
	start := time.Now()
	r.logger.Info("batch started", zap.String("run", t.rep.RunID), zap.Int("workers", r.workers))

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < r.workers; i++ {
		g.Go(func() error {
			return r.work(gctx, i, games, t)
		})
	}
	err := g.Wait()
	if err == nil {
		err = ctx.Err()
	}

	rep := t.report(time.Since(start))
	fields := []zap.Field{
		zap.String("run", rep.RunID),
		zap.Int("attempted", rep.Attempted),
		zap.Int("classified", rep.Classified),
		zap.Int("skipped", rep.Skipped),
		zap.Int("degraded_plies", rep.DegradedPlies),
		zap.Duration("duration", rep.Duration),
	}
	if err != nil {
		r.logger.Warn("batch stopped", append(fields, zap.Error(err))...)
		return rep, err
	}
	r.logger.Info("batch complete", fields...)
	return rep, nil
}

func (r *Runner) work(ctx context.Context, id int, games <-chan *game.Game, t *tally) error {
	ev, err := r.factory(ctx)
	if err != nil {
		return fmt.Errorf("batch: worker %d: %w", id, err)
	}
	if r.cache != nil {
		ev = r.cache.Wrap(ev)
	}
	defer ev.Close()

	r.stats.SetGauge(stats.MetricActiveWorkers, r.active.Add(1))
	defer func() {
		r.stats.SetGauge(stats.MetricActiveWorkers, r.active.Add(-1))
	}()

	annotator := annotate.New(ev, r.annotate...)
	logger := r.logger.With(zap.Int("worker", id))
	for {
		select {
		case <-ctx.Done():
			return nil
		case gm, ok := <-games:
			if !ok {
				return nil
			}
			if gm == nil {
				continue
			}
			if err := r.process(ctx, annotator, gm, t, logger); err != nil {
				return err
			}
		}
	}
}

// process classifies one game. Only errors that must stop the batch are
// returned; everything else becomes a skip.
func (r *Runner) process(ctx context.Context, a *annotate.Annotator, gm *game.Game, t *tally, logger *zap.Logger) error {
	start := time.Now()
	r.stats.IncCounter(stats.MetricGamesAttempted, 1)

	skip := func(reason string, err error) {
		r.stats.IncCounter(stats.MetricGamesSkipped, 1)
		s := Skip{Game: gm.Key.String(), Reason: reason}
		if err != nil {
			s.Error = err.Error()
		}
		t.skip(s)
		logger.Info("game skipped", zap.String("game", s.Game), zap.String("reason", reason), zap.Error(err))
	}

	if err := gm.Validate(); err != nil {
		skip(ReasonMalformed, err)
		return nil
	}

	plies, err := a.Annotate(ctx, gm)
	if err != nil {
		switch {
		case errors.Is(err, engine.ErrUnavailable):
			skip(ReasonUnavailable, err)
			return err
		case ctx.Err() != nil:
			skip(ReasonCancelled, nil)
			return nil
		case errors.Is(err, game.ErrMalformed):
			skip(ReasonMalformed, err)
		default:
			skip(ReasonFailed, err)
		}
		return nil
	}

	res, err := r.extractor.Extract(gm, plies)
	if err != nil {
		if errors.Is(err, game.ErrMalformed) {
			skip(ReasonMalformed, err)
		} else {
			skip(ReasonFailed, err)
		}
		return nil
	}

	if err := r.sink.Put(ctx, res.Features); err != nil {
		if ctx.Err() != nil {
			skip(ReasonCancelled, nil)
			return nil
		}
		skip(ReasonFailed, err)
		return fmt.Errorf("batch: storing %s: %w", gm.Key, err)
	}

	degraded := annotate.Degraded(plies)
	t.classified(degraded)
	r.stats.IncCounter(stats.MetricGamesClassified, 1)
	r.stats.IncCounter(stats.MetricFeaturesStored, 1)
	r.stats.ObserveHistogram(stats.MetricGameSeconds, time.Since(start).Seconds())
	logger.Debug("game classified",
		zap.String("game", gm.Key.String()),
		zap.Int("plies", len(plies)),
		zap.Int("degraded", degraded),
	)
	return nil
}
