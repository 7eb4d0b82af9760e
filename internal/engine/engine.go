// Package engine defines the position evaluator consumed by the analysis
// pipeline, along with the Evaluation value type it produces.
package engine

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/notnil/chess"
)

// Sentinel errors for evaluator failures.
var (
	// ErrUnavailable indicates the evaluator process or service cannot be
	// reached. It is fatal for a batch.
	ErrUnavailable = errors.New("engine: evaluator unavailable")

	// ErrTimeout indicates a single position exceeded its time budget.
	ErrTimeout = errors.New("engine: evaluation timed out")

	// ErrNotFound indicates a lookup evaluator holds no entry for the
	// position. Chain falls through to the next evaluator on it.
	ErrNotFound = errors.New("engine: position not found")

	// ErrClosed indicates the evaluator has been closed.
	ErrClosed = errors.New("engine: evaluator closed")
)

// Limits bounds a single search.
type Limits struct {
	// Depth is the search depth in plies. Zero lets the engine decide.
	Depth int

	// MoveTime is the engine-side time budget. A context deadline, when
	// shorter, caps it further.
	MoveTime time.Duration
}

// Result is the outcome of evaluating one position.
type Result struct {
	// Eval is the score of the position for its side to move.
	Eval Evaluation

	// BestMove is the engine's top choice in UCI notation, or empty when
	// none was produced.
	BestMove string

	// PV is the principal variation in UCI notation.
	PV []string

	// Depth is the depth actually searched.
	Depth int
}

// Evaluator scores chess positions. Implementations are usually backed by
// a single-threaded engine process and are not safe for concurrent use
// unless documented otherwise.
type Evaluator interface {
	// Evaluate scores pos within limits. It returns ErrTimeout when ctx
	// expires first and ErrUnavailable when the backend is gone.
	Evaluate(ctx context.Context, pos *chess.Position, limits Limits) (Result, error)

	// Close releases the evaluator.
	Close() error
}

// Factory creates one evaluator per worker.
type Factory func(ctx context.Context) (Evaluator, error)

// PositionKey returns the first four FEN fields of pos: placement, side to
// move, castling and en passant. Move counters are dropped so transposed
// positions share a key.
func PositionKey(pos *chess.Position) string {
	return NormalizeFEN(pos.String())
}

// NormalizeFEN reduces a FEN string to its first four fields.
func NormalizeFEN(fen string) string {
	fields := strings.Fields(fen)
	if len(fields) > 4 {
		fields = fields[:4]
	}
	return strings.Join(fields, " ")
}

// IsTimeout reports whether err was caused by an expired deadline.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout) || errors.Is(err, context.DeadlineExceeded)
}
