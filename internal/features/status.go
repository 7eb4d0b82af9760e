package features

import "fmt"

// Status describes how a ply was evaluated.
type Status uint8

const (
	// StatusOK means both the position before and after the move were
	// evaluated.
	StatusOK Status = iota
	// StatusTimeout means an adjacent position exceeded its time budget.
	StatusTimeout
	// StatusForced means the mover had a single legal move.
	StatusForced
	// StatusNoBestMove means the evaluator returned no best move.
	StatusNoBestMove
	// StatusTerminal means the move delivered mate or stalemate and was
	// rated without the engine.
	StatusTerminal
	// StatusUnavailable means no evaluator answered for the ply.
	StatusUnavailable
)

var statusNames = [...]string{
	StatusOK:          "ok",
	StatusTimeout:     "timeout",
	StatusForced:      "forced",
	StatusNoBestMove:  "no_best_move",
	StatusTerminal:    "terminal",
	StatusUnavailable: "unavailable",
}

func (s Status) String() string {
	if int(s) < len(statusNames) {
		return statusNames[s]
	}
	return fmt.Sprintf("status(%d)", uint8(s))
}

// Rated reports whether plies with this status count towards quality
// rates.
func (s Status) Rated() bool {
	return s == StatusOK || s == StatusTerminal
}

// Degraded reports whether the ply lost its evaluation.
func (s Status) Degraded() bool {
	return s == StatusTimeout || s == StatusNoBestMove || s == StatusUnavailable
}

// MarshalText encodes the status name.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a status name.
func (s *Status) UnmarshalText(text []byte) error {
	for i, name := range statusNames {
		if name == string(text) {
			*s = Status(i)
			return nil
		}
	}
	return fmt.Errorf("features: unknown status %q", text)
}
