// Package annotate evaluates every position of a game once and pairs the
// results into per-ply evaluations for the feature extractor.
package annotate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/notnil/chess"
	"go.uber.org/zap"

	"github.com/discochess/persona/internal/engine"
	"github.com/discochess/persona/internal/features"
	"github.com/discochess/persona/internal/game"
	"github.com/discochess/persona/internal/stats"
)

// DefaultTimeout is the per-position budget when none is configured.
const DefaultTimeout = 10 * time.Second

// Annotator drives one evaluator. Like the evaluator it wraps, it is not
// safe for concurrent use.
type Annotator struct {
	ev      engine.Evaluator
	limits  engine.Limits
	timeout time.Duration
	stats   stats.Collector
	logger  *zap.Logger
}

// Option configures an Annotator.
type Option func(*Annotator)

// WithLimits sets the search limits passed to the evaluator.
func WithLimits(l engine.Limits) Option {
	return func(a *Annotator) {
		a.limits = l
	}
}

// WithTimeout sets the per-position deadline. Zero disables it.
func WithTimeout(d time.Duration) Option {
	return func(a *Annotator) {
		a.timeout = d
	}
}

// WithStats sets the stats collector.
func WithStats(c stats.Collector) Option {
	return func(a *Annotator) {
		a.stats = c
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(a *Annotator) {
		a.logger = l
	}
}

// New creates an annotator around ev.
func New(ev engine.Evaluator, opts ...Option) *Annotator {
	a := &Annotator{
		ev:      ev,
		limits:  engine.Limits{Depth: 18},
		timeout: DefaultTimeout,
		stats:   stats.NewNoop(),
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// positionEval is the outcome for one position.
type positionEval struct {
	res      engine.Result
	status   features.Status
	terminal bool
}

// Annotate returns one PlyEval per ply of g. A position that times out
// degrades only the plies on either side of it. The evaluator becoming
// unavailable is returned as an error wrapping engine.ErrUnavailable, and
// a cancelled ctx abandons the game at the next position.
func (a *Annotator) Annotate(ctx context.Context, g *game.Game) ([]features.PlyEval, error) {
	positions := g.Chess.Positions()
	evals := make([]positionEval, len(positions))

	for i, pos := range positions {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		pe, err := a.evaluate(ctx, pos)
		if err != nil {
			return nil, fmt.Errorf("%s position %d: %w", g.Key, i, err)
		}
		evals[i] = pe
	}

	plies := make([]features.PlyEval, len(positions)-1)
	for i := range plies {
		plies[i] = pair(positions[i], positions[i+1], evals[i], evals[i+1])
	}
	if n := Degraded(plies); n > 0 {
		a.stats.IncCounter(stats.MetricDegradedPlies, int64(n))
		a.logger.Info("game has degraded plies", zap.String("game", g.Key.String()), zap.Int("plies", n))
	}
	return plies, nil
}

func (a *Annotator) evaluate(ctx context.Context, pos *chess.Position) (positionEval, error) {
	if pos.Status() != chess.NoMethod {
		return positionEval{terminal: true}, nil
	}

	evalCtx, cancel := ctx, context.CancelFunc(func() {})
	if a.timeout > 0 {
		evalCtx, cancel = context.WithTimeout(ctx, a.timeout)
	}
	defer cancel()

	res, err := a.ev.Evaluate(evalCtx, pos, a.limits)
	switch {
	case err == nil:
		if res.BestMove == "" {
			return positionEval{res: res, status: features.StatusNoBestMove}, nil
		}
		return positionEval{res: res, status: features.StatusOK}, nil
	case ctx.Err() != nil:
		// The batch was cancelled, not just this position.
		return positionEval{}, ctx.Err()
	case engine.IsTimeout(err):
		a.logger.Debug("position timed out", zap.String("fen", pos.String()), zap.Duration("timeout", a.timeout))
		return positionEval{status: features.StatusTimeout}, nil
	case errors.Is(err, engine.ErrNotFound):
		return positionEval{status: features.StatusUnavailable}, nil
	}
	return positionEval{}, err
}

// pair builds the PlyEval of the move from before to after.
func pair(before, after *chess.Position, b, a positionEval) features.PlyEval {
	ev := features.PlyEval{Best: b.res}

	switch {
	case a.terminal:
		ev.Status = features.StatusTerminal
		ev.HasPlayed = true
		if after.Status() == chess.Checkmate {
			ev.Played = engine.Checkmated(after.Turn())
		} else {
			ev.Played = engine.Centipawns(0, after.Turn())
		}
		return ev
	case a.status != features.StatusTimeout && a.status != features.StatusUnavailable:
		ev.Played = a.res.Eval
		ev.HasPlayed = true
	}

	switch {
	case len(before.ValidMoves()) == 1:
		ev.Status = features.StatusForced
	case b.status != features.StatusOK:
		ev.Status = b.status
	case !ev.HasPlayed:
		ev.Status = a.status
	default:
		ev.Status = features.StatusOK
	}
	return ev
}

// Degraded counts the plies that lost their evaluation.
func Degraded(plies []features.PlyEval) int {
	n := 0
	for _, p := range plies {
		if p.Status.Degraded() {
			n++
		}
	}
	return n
}
