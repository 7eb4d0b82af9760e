// Package uciengine runs a UCI chess engine subprocess as an evaluator.
package uciengine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/notnil/chess"
	"github.com/notnil/chess/uci"
	"go.uber.org/zap"

	"github.com/discochess/persona/internal/engine"
	"github.com/discochess/persona/internal/stats"
)

// Compile-time check that Engine implements engine.Evaluator.
var _ engine.Evaluator = (*Engine)(nil)

const (
	// DefaultDeadlineMargin is reserved out of a context deadline for the
	// engine to report its move.
	DefaultDeadlineMargin = 50 * time.Millisecond

	// minMoveTime is the shortest search worth starting.
	minMoveTime = 10 * time.Millisecond
)

// Engine wraps one engine process. It is not safe for concurrent use;
// run one Engine per worker.
type Engine struct {
	eng    *uci.Engine
	path   string
	stats  stats.Collector
	logger *zap.Logger
	margin time.Duration

	mu      sync.Mutex
	pending chan struct{} // closed when the in-flight search finishes
	closed  bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithStats sets the stats collector.
func WithStats(c stats.Collector) Option {
	return func(e *Engine) {
		e.stats = c
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithDeadlineMargin sets how much of a context deadline is held back
// from the engine's move time.
func WithDeadlineMargin(d time.Duration) Option {
	return func(e *Engine) {
		if d >= 0 {
			e.margin = d
		}
	}
}

// New starts the engine binary at path and performs the UCI handshake.
func New(path string, opts ...Option) (*Engine, error) {
	e := &Engine{
		path:   path,
		stats:  stats.NewNoop(),
		logger: zap.NewNop(),
		margin: DefaultDeadlineMargin,
	}
	for _, opt := range opts {
		opt(e)
	}

	eng, err := uci.New(path)
	if err != nil {
		return nil, fmt.Errorf("%w: starting %s: %v", engine.ErrUnavailable, path, err)
	}
	if err := eng.Run(uci.CmdUCI, uci.CmdIsReady, uci.CmdUCINewGame); err != nil {
		eng.Close()
		return nil, fmt.Errorf("%w: handshake with %s: %v", engine.ErrUnavailable, path, err)
	}
	e.eng = eng

	e.logger.Debug("engine started", zap.String("path", path))
	return e, nil
}

// Factory returns an engine.Factory that starts a new process per worker.
func Factory(path string, opts ...Option) engine.Factory {
	return func(ctx context.Context) (engine.Evaluator, error) {
		return New(path, opts...)
	}
}

// searchCommand builds the go command for limits. A context deadline
// caps the move time at the time left minus margin, so the engine answers
// before the caller gives up. It reports false when the time left is too
// short to search.
func searchCommand(ctx context.Context, limits engine.Limits, margin time.Duration) (uci.CmdGo, bool) {
	cmd := uci.CmdGo{Depth: limits.Depth, MoveTime: limits.MoveTime}
	deadline, ok := ctx.Deadline()
	if !ok {
		return cmd, true
	}
	budget := (time.Until(deadline) - margin).Truncate(time.Millisecond)
	if budget < minMoveTime {
		return cmd, false
	}
	if cmd.MoveTime <= 0 || cmd.MoveTime > budget {
		cmd.MoveTime = budget
	}
	return cmd, true
}

// Evaluate searches pos. The engine's move time is bounded by the
// context deadline, less the deadline margin. If ctx still expires first,
// ErrTimeout is returned while the engine finishes its bounded search;
// the next call waits for it to drain.
func (e *Engine) Evaluate(ctx context.Context, pos *chess.Position, limits engine.Limits) (engine.Result, error) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return engine.Result{}, engine.ErrClosed
	}
	if e.pending != nil {
		pending := e.pending
		e.mu.Unlock()
		select {
		case <-pending:
		case <-ctx.Done():
			return engine.Result{}, contextErr(ctx)
		}
		e.mu.Lock()
	}
	cmdGo, ok := searchCommand(ctx, limits, e.margin)
	if !ok {
		e.mu.Unlock()
		e.stats.IncCounter(stats.MetricEvaluationTimeouts, 1)
		return engine.Result{}, engine.ErrTimeout
	}
	done := make(chan struct{})
	e.pending = done
	e.mu.Unlock()

	start := time.Now()
	e.stats.IncCounter(stats.MetricEvaluations, 1)

	var (
		res    uci.SearchResults
		runErr error
	)
	go func() {
		defer func() {
			e.mu.Lock()
			if e.pending == done {
				e.pending = nil
			}
			e.mu.Unlock()
			close(done)
		}()
		runErr = e.eng.Run(uci.CmdPosition{Position: pos}, cmdGo)
		if runErr == nil {
			res = e.eng.SearchResults()
		}
	}()

	select {
	case <-done:
	case <-ctx.Done():
		e.stats.IncCounter(stats.MetricEvaluationTimeouts, 1)
		e.logger.Debug("search interrupted",
			zap.String("fen", pos.String()),
			zap.Duration("elapsed", time.Since(start)),
		)
		return engine.Result{}, contextErr(ctx)
	}

	e.stats.ObserveHistogram(stats.MetricEvaluationSeconds, time.Since(start).Seconds())
	if runErr != nil {
		return engine.Result{}, fmt.Errorf("%w: %v", engine.ErrUnavailable, runErr)
	}
	return toResult(pos, res), nil
}

// Close stops the engine process.
func (e *Engine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return engine.ErrClosed
	}
	e.closed = true
	e.mu.Unlock()
	return e.eng.Close()
}

func toResult(pos *chess.Position, sr uci.SearchResults) engine.Result {
	stm := pos.Turn()
	res := engine.Result{Depth: sr.Info.Depth}
	if sr.Info.Score.Mate != 0 {
		res.Eval = engine.MateIn(sr.Info.Score.Mate, stm)
	} else {
		res.Eval = engine.Centipawns(sr.Info.Score.CP, stm)
	}
	if sr.BestMove != nil {
		res.BestMove = sr.BestMove.String()
	}
	for _, m := range sr.Info.PV {
		res.PV = append(res.PV, m.String())
	}
	return res
}

func contextErr(ctx context.Context) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return engine.ErrTimeout
	}
	return ctx.Err()
}
