// Package game holds the analysis view of one played game: the move list
// from the chess library plus who the subject player is and how the game
// ended for them.
package game

import (
	"errors"
	"fmt"
	"strings"

	"github.com/notnil/chess"
)

// ErrMalformed indicates a game whose moves cannot be replayed or whose
// metadata is inconsistent. Malformed games are excluded from aggregation.
var ErrMalformed = errors.New("game: malformed game")

// Result is the outcome of a game for the subject player.
type Result string

const (
	Win     Result = "win"
	Loss    Result = "loss"
	Draw    Result = "draw"
	Unknown Result = "unknown"
)

// Key identifies a stored game. It is unique per feature record.
type Key struct {
	User     string `json:"user"`
	Platform string `json:"platform"`
	GameID   string `json:"game_id"`
}

// String returns "user/platform/game_id".
func (k Key) String() string {
	return k.User + "/" + k.Platform + "/" + k.GameID
}

// Validate reports whether every part of k is set.
func (k Key) Validate() error {
	if k.User == "" || k.Platform == "" || k.GameID == "" {
		return fmt.Errorf("%w: incomplete key %q", ErrMalformed, k.String())
	}
	return nil
}

// Game is a game ready for analysis.
type Game struct {
	Key     Key
	White   string
	Black   string
	Subject chess.Color
	Outcome Result

	// Chess holds the replayed moves and positions.
	Chess *chess.Game
}

// FromChess builds a Game for the player named user, who must be one of
// the two players recorded in the White and Black tags.
func FromChess(g *chess.Game, key Key) (*Game, error) {
	white, black := tag(g, "White"), tag(g, "Black")

	var subject chess.Color
	switch {
	case strings.EqualFold(white, key.User):
		subject = chess.White
	case strings.EqualFold(black, key.User):
		subject = chess.Black
	default:
		return nil, fmt.Errorf("%w: %q played neither side (%s vs %s)", ErrMalformed, key.User, white, black)
	}

	out := &Game{
		Key:     key,
		White:   white,
		Black:   black,
		Subject: subject,
		Chess:   g,
	}
	out.Outcome = ResultFor(g.Outcome(), subject)
	return out, out.Validate()
}

// New builds a Game from an already replayed chess game with an explicit
// subject. It is used by tests and callers that know the side directly.
func New(g *chess.Game, key Key, subject chess.Color) (*Game, error) {
	out := &Game{
		Key:     key,
		White:   tag(g, "White"),
		Black:   tag(g, "Black"),
		Subject: subject,
		Outcome: ResultFor(g.Outcome(), subject),
		Chess:   g,
	}
	return out, out.Validate()
}

// Validate checks the game is usable for extraction.
func (g *Game) Validate() error {
	if err := g.Key.Validate(); err != nil {
		return err
	}
	if g.Chess == nil {
		return fmt.Errorf("%w: %s has no moves", ErrMalformed, g.Key)
	}
	if g.Subject != chess.White && g.Subject != chess.Black {
		return fmt.Errorf("%w: %s has no subject color", ErrMalformed, g.Key)
	}
	if len(g.Chess.Positions()) != len(g.Chess.Moves())+1 {
		return fmt.Errorf("%w: %s positions do not match moves", ErrMalformed, g.Key)
	}
	return nil
}

// Plies returns the number of half-moves played.
func (g *Game) Plies() int {
	return len(g.Chess.Moves())
}

// Tag returns a PGN tag value, or "" when absent.
func (g *Game) Tag(name string) string {
	return tag(g.Chess, name)
}

// ResultFor maps a game outcome to the result for color c.
func ResultFor(o chess.Outcome, c chess.Color) Result {
	switch o {
	case chess.Draw:
		return Draw
	case chess.WhiteWon:
		if c == chess.White {
			return Win
		}
		return Loss
	case chess.BlackWon:
		if c == chess.Black {
			return Win
		}
		return Loss
	}
	return Unknown
}

func tag(g *chess.Game, name string) string {
	if tp := g.GetTagPair(name); tp != nil {
		return tp.Value
	}
	return ""
}
