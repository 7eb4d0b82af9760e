package engine

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/notnil/chess"
)

// Kind distinguishes centipawn scores from forced mates.
type Kind uint8

const (
	// Centipawn is a finite score in hundredths of a pawn.
	Centipawn Kind = iota
	// Mate is a forced mate; the value counts moves to mate.
	Mate
)

// String returns "cp" or "mate".
func (k Kind) String() string {
	if k == Mate {
		return "mate"
	}
	return "cp"
}

// Evaluation is an engine score relative to the side to move.
//
// For Centipawn, positive values favor SideToMove. For Mate, a positive
// value means SideToMove mates in Value moves, a negative value means it
// is mated in -Value moves, and zero means it is already checkmated.
type Evaluation struct {
	Kind       Kind
	Value      int
	SideToMove chess.Color
}

// Centipawns returns a centipawn evaluation for the side to move.
func Centipawns(cp int, stm chess.Color) Evaluation {
	return Evaluation{Kind: Centipawn, Value: cp, SideToMove: stm}
}

// MateIn returns a mate evaluation for the side to move.
func MateIn(moves int, stm chess.Color) Evaluation {
	return Evaluation{Kind: Mate, Value: moves, SideToMove: stm}
}

// Checkmated returns the evaluation of a position where loser is mated.
func Checkmated(loser chess.Color) Evaluation {
	return Evaluation{Kind: Mate, Value: 0, SideToMove: loser}
}

// FromWhite converts a White-relative score, as stored in the Lichess
// evaluation database, to an Evaluation for stm.
func FromWhite(kind Kind, value int, stm chess.Color) Evaluation {
	if stm == chess.Black {
		value = -value
	}
	return Evaluation{Kind: kind, Value: value, SideToMove: stm}
}

// IsMate reports whether the evaluation is a forced mate.
func (e Evaluation) IsMate() bool {
	return e.Kind == Mate
}

// CentipawnsFor returns the centipawn score from c's point of view.
// It is only meaningful for Centipawn evaluations.
func (e Evaluation) CentipawnsFor(c chess.Color) int {
	if e.SideToMove == c {
		return e.Value
	}
	return -e.Value
}

// White returns the centipawn score from White's point of view.
func (e Evaluation) White() int {
	return e.CentipawnsFor(chess.White)
}

// MateFor reports the mate distance in moves and whether c is the side
// delivering it. It is only meaningful for Mate evaluations.
func (e Evaluation) MateFor(c chess.Color) (moves int, winning bool) {
	stmWins := e.Value > 0
	moves = e.Value
	if moves < 0 {
		moves = -moves
	}
	if e.SideToMove == c {
		return moves, stmWins
	}
	return moves, !stmWins
}

// rank orders evaluations from c's point of view. Winning mates sit
// above every finite score, losing mates below.
func (e Evaluation) rank(c chess.Color) (tier, v int) {
	if e.Kind != Mate {
		return 0, e.CentipawnsFor(c)
	}
	moves, winning := e.MateFor(c)
	if winning {
		return 1, -moves
	}
	return -1, moves
}

// Compare returns -1, 0 or +1 as a is worse, equal or better than b for c.
func Compare(a, b Evaluation, c chess.Color) int {
	at, av := a.rank(c)
	bt, bv := b.rank(c)
	switch {
	case at != bt:
		if at < bt {
			return -1
		}
		return 1
	case av < bv:
		return -1
	case av > bv:
		return 1
	}
	return 0
}

// WinningMateFor reports whether e is a forced mate delivered by c.
func (e Evaluation) WinningMateFor(c chess.Color) bool {
	if e.Kind != Mate {
		return false
	}
	_, winning := e.MateFor(c)
	return winning
}

// LosingMateFor reports whether e is a forced mate against c.
func (e Evaluation) LosingMateFor(c chess.Color) bool {
	if e.Kind != Mate {
		return false
	}
	_, winning := e.MateFor(c)
	return !winning
}

// String returns a White-relative score such as "+1.25", "-0.50", "#3"
// or "#-5".
func (e Evaluation) String() string {
	if e.Kind == Mate {
		moves, whiteWins := e.MateFor(chess.White)
		if !whiteWins {
			moves = -moves
		}
		return "#" + strconv.Itoa(moves)
	}
	cp := e.White()
	sign := "+"
	if cp < 0 {
		sign = "-"
		cp = -cp
	}
	return fmt.Sprintf("%s%d.%02d", sign, cp/100, cp%100)
}

type evaluationJSON struct {
	Kind       string `json:"kind"`
	Value      int    `json:"value"`
	SideToMove string `json:"side_to_move"`
}

// MarshalJSON encodes the evaluation as {"kind","value","side_to_move"}.
// An evaluation without a side to move is absent and encodes as null.
func (e Evaluation) MarshalJSON() ([]byte, error) {
	if e.SideToMove == chess.NoColor {
		return []byte("null"), nil
	}
	return json.Marshal(evaluationJSON{
		Kind:       e.Kind.String(),
		Value:      e.Value,
		SideToMove: e.SideToMove.String(),
	})
}

// UnmarshalJSON decodes the form written by MarshalJSON.
func (e *Evaluation) UnmarshalJSON(data []byte) error {
	if string(bytes.TrimSpace(data)) == "null" {
		*e = Evaluation{}
		return nil
	}
	var raw evaluationJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch raw.Kind {
	case "cp":
		e.Kind = Centipawn
	case "mate":
		e.Kind = Mate
	default:
		return fmt.Errorf("engine: unknown evaluation kind %q", raw.Kind)
	}
	switch raw.SideToMove {
	case "w":
		e.SideToMove = chess.White
	case "b":
		e.SideToMove = chess.Black
	default:
		return fmt.Errorf("engine: unknown side to move %q", raw.SideToMove)
	}
	e.Value = raw.Value
	return nil
}
