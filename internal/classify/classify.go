// Package classify labels moves by how much evaluation they give up
// against the engine's best move.
package classify

import (
	"fmt"
	"strconv"

	"github.com/notnil/chess"

	"github.com/discochess/persona/internal/engine"
)

// Quality is a move-quality label. Labels from Best to Blunder are
// ordered by severity; Unknown marks plies without a usable evaluation.
type Quality uint8

const (
	Best Quality = iota
	Good
	Inaccuracy
	Mistake
	Blunder
	Unknown
)

var qualityNames = [...]string{
	Best:       "best",
	Good:       "good",
	Inaccuracy: "inaccuracy",
	Mistake:    "mistake",
	Blunder:    "blunder",
	Unknown:    "unknown",
}

// Qualities lists every label in severity order, ending with Unknown.
var Qualities = []Quality{Best, Good, Inaccuracy, Mistake, Blunder, Unknown}

func (q Quality) String() string {
	if int(q) < len(qualityNames) {
		return qualityNames[q]
	}
	return fmt.Sprintf("quality(%d)", uint8(q))
}

// Known reports whether q is one of the rated labels.
func (q Quality) Known() bool {
	return q <= Blunder
}

// IsError reports whether q is an inaccuracy or worse.
func (q Quality) IsError() bool {
	return q >= Inaccuracy && q <= Blunder
}

// MarshalText encodes the label name.
func (q Quality) MarshalText() ([]byte, error) {
	return []byte(q.String()), nil
}

// UnmarshalText decodes a label name.
func (q *Quality) UnmarshalText(text []byte) error {
	for i, name := range qualityNames {
		if name == string(text) {
			*q = Quality(i)
			return nil
		}
	}
	return fmt.Errorf("classify: unknown quality %q", text)
}

// Thresholds are inclusive upper bounds of centipawn loss per label.
// A loss of zero or less is always Best; anything above Mistake is a
// Blunder.
type Thresholds struct {
	Good       int `yaml:"good" json:"good"`
	Inaccuracy int `yaml:"inaccuracy" json:"inaccuracy"`
	Mistake    int `yaml:"mistake" json:"mistake"`
}

// DefaultThresholds returns the 50/100/200 centipawn bounds.
func DefaultThresholds() Thresholds {
	return Thresholds{Good: 50, Inaccuracy: 100, Mistake: 200}
}

// Validate checks the bounds are positive and increasing.
func (t Thresholds) Validate() error {
	if t.Good <= 0 || t.Inaccuracy <= t.Good || t.Mistake <= t.Inaccuracy {
		return fmt.Errorf("classify: thresholds must satisfy 0 < good < inaccuracy < mistake, got %d/%d/%d",
			t.Good, t.Inaccuracy, t.Mistake)
	}
	return nil
}

// Classify labels a centipawn loss.
func (t Thresholds) Classify(loss int) Quality {
	switch {
	case loss <= 0:
		return Best
	case loss <= t.Good:
		return Good
	case loss <= t.Inaccuracy:
		return Inaccuracy
	case loss <= t.Mistake:
		return Mistake
	}
	return Blunder
}

// Classify labels a centipawn loss with the default thresholds.
func Classify(loss int) Quality {
	return DefaultThresholds().Classify(loss)
}

// LossKind tells a finite loss apart from one involving a forced mate.
type LossKind uint8

const (
	// Finite is an ordinary centipawn loss.
	Finite LossKind = iota
	// MissedMate means the best move mated for the mover and the played
	// move no longer does.
	MissedMate
	// AllowedMate means the played move lets the opponent force mate
	// where the best move did not.
	AllowedMate
)

func (k LossKind) String() string {
	switch k {
	case MissedMate:
		return "missed_mate"
	case AllowedMate:
		return "allowed_mate"
	}
	return "finite"
}

// Loss is the cost of a played move. Centipawns is only set for Finite
// losses and is never negative.
type Loss struct {
	Kind       LossKind
	Centipawns int
}

// IsMate reports whether the loss involves a forced mate.
func (l Loss) IsMate() bool {
	return l.Kind != Finite
}

// String returns "35cp" for a finite loss and the kind otherwise.
func (l Loss) String() string {
	if l.IsMate() {
		return l.Kind.String()
	}
	return strconv.Itoa(l.Centipawns) + "cp"
}

// LossBetween measures what mover gave up by playing into played instead
// of best. best scores the position before the move, played the position
// after it; each is relative to its own side to move.
func LossBetween(best, played engine.Evaluation, mover chess.Color) Loss {
	bestMates := best.WinningMateFor(mover)
	playedMates := played.WinningMateFor(mover)
	bestMated := best.LosingMateFor(mover)
	playedMated := played.LosingMateFor(mover)

	switch {
	case bestMates && !playedMates:
		return Loss{Kind: MissedMate}
	case playedMated && !bestMated:
		return Loss{Kind: AllowedMate}
	case best.IsMate() || played.IsMate():
		// Both mate in the same direction, or the played move reached a
		// mate the best line did not see.
		return Loss{Kind: Finite}
	}

	loss := best.CentipawnsFor(mover) - played.CentipawnsFor(mover)
	return Loss{Kind: Finite, Centipawns: max(loss, 0)}
}

// ClassifyLoss labels a Loss with the default thresholds.
func ClassifyLoss(l Loss) Quality {
	return DefaultThresholds().ClassifyLoss(l)
}

// ClassifyLoss labels a Loss. Any mate-related loss is a Blunder.
func (t Thresholds) ClassifyLoss(l Loss) Quality {
	if l.IsMate() {
		return Blunder
	}
	return t.Classify(l.Centipawns)
}

// Favorable reports whether e is strictly good for c: a mate for c or a
// positive centipawn score.
func Favorable(e engine.Evaluation, c chess.Color) bool {
	if e.IsMate() {
		return e.WinningMateFor(c)
	}
	return e.CentipawnsFor(c) > 0
}

// IsBrilliant reports whether a move is a brilliant candidate: the
// engine's top choice, starting a confirmed sacrifice, leaving a position
// still favorable for the mover.
func IsBrilliant(q Quality, sacrifice bool, after engine.Evaluation, mover chess.Color) bool {
	return q == Best && sacrifice && Favorable(after, mover)
}
