// Package features turns one annotated game into a fixed-shape feature
// record for the subject player, in a single forward pass over its plies.
package features

import (
	"fmt"

	"github.com/notnil/chess"

	"github.com/discochess/persona/internal/classify"
	"github.com/discochess/persona/internal/engine"
	"github.com/discochess/persona/internal/game"
)

// PlyEval is the evaluator output for one ply.
type PlyEval struct {
	Status Status

	// Best is the search of the position before the move.
	Best engine.Result

	// Played is the evaluation of the position after the move, relative
	// to its side to move. HasPlayed is false when it is unknown.
	Played    engine.Evaluation
	HasPlayed bool
}

// MoveRecord describes one ply. Records are returned alongside the
// features and are never persisted.
type MoveRecord struct {
	Ply   int
	Mover chess.Color
	SAN   string
	UCI   string
	Piece chess.PieceType

	Before   engine.Evaluation
	BestMove string
	After    engine.Evaluation
	Loss     classify.Loss
	Quality  classify.Quality
	Status   Status

	Capture     bool
	Check       bool
	Castle      bool
	DoubleCheck bool
	Threat      bool
	Sacrifice   bool
	Brilliant   bool
}

// Forcing reports whether the move is a check or a capture.
func (r *MoveRecord) Forcing() bool {
	return r.Check || r.Capture
}

// Quiet reports whether the move is neither forcing nor a threat.
func (r *MoveRecord) Quiet() bool {
	return !r.Forcing() && !r.Threat
}

// QualityCounts tallies the subject's rated moves by label.
type QualityCounts struct {
	Best         int `json:"best"`
	Good         int `json:"good"`
	Inaccuracy   int `json:"inaccuracy"`
	Mistake      int `json:"mistake"`
	Blunder      int `json:"blunder"`
	Unknown      int `json:"unknown"`
	Brilliant    int `json:"brilliant"`
	MissedMates  int `json:"missed_mates"`
	AllowedMates int `json:"allowed_mates"`

	// TotalLoss sums the finite centipawn losses of rated moves.
	TotalLoss int `json:"total_loss"`
}

func (q *QualityCounts) add(label classify.Quality) {
	switch label {
	case classify.Best:
		q.Best++
	case classify.Good:
		q.Good++
	case classify.Inaccuracy:
		q.Inaccuracy++
	case classify.Mistake:
		q.Mistake++
	case classify.Blunder:
		q.Blunder++
	default:
		q.Unknown++
	}
}

// GameFeatures is the per-game record consumed by scoring. Every rate is
// in [0,1]. Field order is fixed so encoding is byte-identical for equal
// input.
type GameFeatures struct {
	Key       game.Key    `json:"key"`
	Subject   string      `json:"subject"`
	Outcome   game.Result `json:"outcome"`
	ECO       string      `json:"eco"`
	Opening   string      `json:"opening"`
	BookPlies int         `json:"book_plies"`

	// Rates and their counts cover rated moves only; forced plies and
	// plies without an evaluation count towards TotalMoves alone.
	ForcingRate  float64 `json:"forcing_rate"`
	QuietRate    float64 `json:"quiet_rate"`
	RatedMoves   int     `json:"rated_moves"`
	ForcingMoves int     `json:"forcing_moves"`
	QuietMoves   int     `json:"quiet_moves"`

	EarlyQueen  Mark `json:"early_queen"`
	CastleMove  Mark `json:"castle_move"`
	QueenlessAt Mark `json:"queenless_at"`
	EndgameAt   Mark `json:"endgame_at"`

	PieceTradesEarly    int `json:"piece_trades_early"`
	SacEvents           int `json:"sac_events"`
	KingAttackMoves     int `json:"king_attack_moves"`
	DoubleChecks        int `json:"double_checks"`
	NonPawnDevelopments int `json:"non_pawn_developments"`
	MinorDevelopments   int `json:"minor_developments"`
	OpeningPly          int `json:"opening_ply"`
	TotalMoves          int `json:"total_moves"`
	TotalPlies          int `json:"total_plies"`
	QuietMoveStreaks    int `json:"quiet_move_streaks"`
	QuietStreakLength   int `json:"quiet_streak_length"`
	EndgameQuietStreaks int `json:"endgame_quiet_streaks"`
	RookEndgames        int `json:"rook_endgames"`
	ThreatMoves         int `json:"threat_moves"`
	ChecksGiven         int `json:"checks_given"`
	Captures            int `json:"captures"`

	OppositeCastle   bool `json:"opposite_castle"`
	LongGame         bool `json:"long_game"`
	FirstToGiveCheck bool `json:"first_to_give_check"`
	CastledByMove10  bool `json:"castled_by_move_10"`
	Queenless        bool `json:"queenless"`
	EndgameReach     bool `json:"endgame_reach"`
	Repetition       bool `json:"repetition"`

	Quality QualityCounts `json:"quality"`
}

// Validate checks the rate fields are in range.
func (f *GameFeatures) Validate() error {
	for name, v := range map[string]float64{
		"forcing_rate": f.ForcingRate,
		"quiet_rate":   f.QuietRate,
	} {
		if v < 0 || v > 1 {
			return fmt.Errorf("features: %s = %v out of [0,1]", name, v)
		}
	}
	return f.Key.Validate()
}

// Result is the output of Extract.
type Result struct {
	Features GameFeatures
	Moves    []MoveRecord
}

// Config holds the extraction heuristics.
type Config struct {
	// OpeningPly is the last ply of the opening. Trades and developments
	// are only counted up to it.
	OpeningPly int `yaml:"opening_ply" json:"opening_ply"`

	// EarlyQueenPlies bounds the early queen window: a queen move counts
	// when it comes before this ply.
	EarlyQueenPlies int `yaml:"early_queen_plies" json:"early_queen_plies"`

	// CastleWindowPlies bounds the plies in which castling is tracked.
	CastleWindowPlies int `yaml:"castle_window_plies" json:"castle_window_plies"`

	// KingZoneRadius is the Chebyshev distance defining the king zone.
	KingZoneRadius int `yaml:"king_zone_radius" json:"king_zone_radius"`

	// QuietStreakLength is the minimum run of quiet moves counted.
	QuietStreakLength int `yaml:"quiet_streak_length" json:"quiet_streak_length"`

	// SacrificeMaterial is the net material drop, in pawns, of a
	// sacrifice.
	SacrificeMaterial int `yaml:"sacrifice_material" json:"sacrifice_material"`

	// SacrificeWindowPlies is how long material must stay down.
	SacrificeWindowPlies int `yaml:"sacrifice_window_plies" json:"sacrifice_window_plies"`

	// SacrificeEvalFloor is the lowest subject-relative evaluation, in
	// centipawns, tolerated inside the window.
	SacrificeEvalFloor int `yaml:"sacrifice_eval_floor" json:"sacrifice_eval_floor"`

	// TradeWindowPlies bounds the delay of a recapture.
	TradeWindowPlies int `yaml:"trade_window_plies" json:"trade_window_plies"`

	// LongGamePlies is the length from which a game counts as long.
	LongGamePlies int `yaml:"long_game_plies" json:"long_game_plies"`

	Thresholds classify.Thresholds `yaml:"thresholds" json:"thresholds"`
}

// DefaultConfig returns the standard heuristics.
func DefaultConfig() Config {
	return Config{
		OpeningPly:           8,
		EarlyQueenPlies:      16,
		CastleWindowPlies:    40,
		KingZoneRadius:       2,
		QuietStreakLength:    5,
		SacrificeMaterial:    2,
		SacrificeWindowPlies: 4,
		SacrificeEvalFloor:   -50,
		TradeWindowPlies:     2,
		LongGamePlies:        80,
		Thresholds:           classify.DefaultThresholds(),
	}
}

// Validate checks every setting is usable.
func (c Config) Validate() error {
	switch {
	case c.OpeningPly <= 0:
		return fmt.Errorf("features: opening_ply must be positive")
	case c.EarlyQueenPlies <= 0:
		return fmt.Errorf("features: early_queen_plies must be positive")
	case c.CastleWindowPlies <= 0:
		return fmt.Errorf("features: castle_window_plies must be positive")
	case c.KingZoneRadius <= 0:
		return fmt.Errorf("features: king_zone_radius must be positive")
	case c.QuietStreakLength <= 0:
		return fmt.Errorf("features: quiet_streak_length must be positive")
	case c.SacrificeMaterial <= 0:
		return fmt.Errorf("features: sacrifice_material must be positive")
	case c.SacrificeWindowPlies <= 0:
		return fmt.Errorf("features: sacrifice_window_plies must be positive")
	case c.TradeWindowPlies <= 0:
		return fmt.Errorf("features: trade_window_plies must be positive")
	case c.LongGamePlies <= 0:
		return fmt.Errorf("features: long_game_plies must be positive")
	}
	return c.Thresholds.Validate()
}
