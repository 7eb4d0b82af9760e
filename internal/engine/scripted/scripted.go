// Package scripted provides a deterministic in-memory evaluator.
// Useful for testing and for replaying stored analyses without an engine.
package scripted

import (
	"context"
	"sync"

	"github.com/notnil/chess"

	"github.com/discochess/persona/internal/engine"
)

// Compile-time check that Evaluator implements engine.Evaluator.
var _ engine.Evaluator = (*Evaluator)(nil)

// FallbackFunc computes a result for positions with no scripted entry.
type FallbackFunc func(pos *chess.Position) (engine.Result, error)

// Evaluator answers from a table keyed by engine.PositionKey.
// It is safe for concurrent use.
type Evaluator struct {
	mu       sync.Mutex
	results  map[string]engine.Result
	stalls   map[string]bool
	fallback FallbackFunc
	down     bool
	calls    int
	closed   bool
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithFallback sets the function used for unscripted positions.
// Without one, unscripted positions return engine.ErrNotFound.
func WithFallback(fn FallbackFunc) Option {
	return func(e *Evaluator) {
		e.fallback = fn
	}
}

// New creates an empty scripted evaluator.
func New(opts ...Option) *Evaluator {
	e := &Evaluator{
		results: make(map[string]engine.Result),
		stalls:  make(map[string]bool),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Set scripts the result for the position given as FEN.
func (e *Evaluator) Set(fen string, r engine.Result) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.results[engine.NormalizeFEN(fen)] = r
}

// Stall makes the position given as FEN block until the caller's
// deadline expires.
func (e *Evaluator) Stall(fen string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stalls[engine.NormalizeFEN(fen)] = true
}

// SetUnavailable makes every later call fail with engine.ErrUnavailable.
func (e *Evaluator) SetUnavailable(down bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.down = down
}

// Calls returns the number of Evaluate calls made so far.
func (e *Evaluator) Calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

// Evaluate returns the scripted result for pos.
func (e *Evaluator) Evaluate(ctx context.Context, pos *chess.Position, limits engine.Limits) (engine.Result, error) {
	key := engine.PositionKey(pos)

	e.mu.Lock()
	e.calls++
	closed, down, stall := e.closed, e.down, e.stalls[key]
	res, ok := e.results[key]
	fallback := e.fallback
	e.mu.Unlock()

	switch {
	case closed:
		return engine.Result{}, engine.ErrClosed
	case down:
		return engine.Result{}, engine.ErrUnavailable
	case stall:
		<-ctx.Done()
		if ctx.Err() == context.DeadlineExceeded {
			return engine.Result{}, engine.ErrTimeout
		}
		return engine.Result{}, ctx.Err()
	case ok:
		return res, nil
	case fallback != nil:
		return fallback(pos)
	}
	return engine.Result{}, engine.ErrNotFound
}

// Close marks the evaluator closed.
func (e *Evaluator) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	return nil
}

// pieceValues in centipawns, indexed by chess.PieceType.
var pieceValues = map[chess.PieceType]int{
	chess.Pawn:   100,
	chess.Knight: 300,
	chess.Bishop: 300,
	chess.Rook:   500,
	chess.Queen:  900,
}

// Material scores a position by material balance and names the first
// legal move as best. It gives repeatable, engine-free output.
func Material(pos *chess.Position) (engine.Result, error) {
	stm := pos.Turn()
	cp := 0
	for _, piece := range pos.Board().SquareMap() {
		v := pieceValues[piece.Type()]
		if piece.Color() == stm {
			cp += v
		} else {
			cp -= v
		}
	}

	res := engine.Result{Eval: engine.Centipawns(cp, stm), Depth: 1}
	if moves := pos.ValidMoves(); len(moves) > 0 {
		res.BestMove = moves[0].String()
		res.PV = []string{res.BestMove}
	}
	return res, nil
}
