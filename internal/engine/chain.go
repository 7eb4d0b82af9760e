package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/notnil/chess"
)

// Chain tries evaluators in order, moving on when one reports
// ErrNotFound. A typical chain puts a precomputed lookup in front of a
// live engine.
type Chain struct {
	evaluators []Evaluator
}

// Compile-time check that Chain implements Evaluator.
var _ Evaluator = (*Chain)(nil)

// NewChain returns a Chain over evs.
func NewChain(evs ...Evaluator) *Chain {
	return &Chain{evaluators: evs}
}

// Evaluate returns the first result that is not ErrNotFound.
func (c *Chain) Evaluate(ctx context.Context, pos *chess.Position, limits Limits) (Result, error) {
	for _, ev := range c.evaluators {
		res, err := ev.Evaluate(ctx, pos, limits)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		return res, err
	}
	return Result{}, ErrNotFound
}

// Close closes every evaluator in the chain.
func (c *Chain) Close() error {
	var errs []error
	for i, ev := range c.evaluators {
		if err := ev.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing evaluator %d: %w", i, err))
		}
	}
	return errors.Join(errs...)
}
