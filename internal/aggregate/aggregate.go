// Package aggregate folds a player's per-game features into totals,
// ratios and samples for scoring.
package aggregate

import (
	"sort"

	"github.com/discochess/persona/internal/features"
	"github.com/discochess/persona/internal/game"
)

// Sample is a ratio together with the number of games behind it.
type Sample struct {
	Value float64 `json:"value"`
	N     int     `json:"n"`
}

// Sufficient reports whether the sample rests on at least min games.
func (s Sample) Sufficient(min int) bool {
	return s.N >= min
}

// Or returns the value when the sample is sufficient and def otherwise.
func (s Sample) Or(def float64, min int) float64 {
	if !s.Sufficient(min) {
		return def
	}
	return s.Value
}

func ratio(k, n int) Sample {
	if n == 0 {
		return Sample{}
	}
	return Sample{Value: float64(k) / float64(n), N: n}
}

// Aggregate summarizes many games of one player. It is a plain value;
// Fold never retains its input.
type Aggregate struct {
	Games int `json:"games"`

	// Move totals over the subject's moves.
	Moves               int                    `json:"moves"`
	RatedMoves          int                    `json:"rated_moves"`
	ForcingMoves        int                    `json:"forcing_moves"`
	QuietMoves          int                    `json:"quiet_moves"`
	ThreatMoves         int                    `json:"threat_moves"`
	KingAttackMoves     int                    `json:"king_attack_moves"`
	DoubleChecks        int                    `json:"double_checks"`
	SacEvents           int                    `json:"sac_events"`
	ChecksGiven         int                    `json:"checks_given"`
	Captures            int                    `json:"captures"`
	QuietMoveStreaks    int                    `json:"quiet_move_streaks"`
	QuietStreakMoves    int                    `json:"quiet_streak_moves"` // streaks times their minimum length
	EndgameQuietStreaks int                    `json:"endgame_quiet_streaks"`
	PieceTradesEarly    int                    `json:"piece_trades_early"`
	NonPawnDevelopments int                    `json:"non_pawn_developments"`
	MinorDevelopments   int                    `json:"minor_developments"`
	Quality             features.QualityCounts `json:"quality"`

	// Game counts.
	Wins                int `json:"wins"`
	Losses              int `json:"losses"`
	Draws               int `json:"draws"`
	EarlyQueenGames     int `json:"early_queen_games"`
	CastledGames        int `json:"castled_games"`
	CastledByMove10     int `json:"castled_by_move_10"`
	OppositeCastleGames int `json:"opposite_castle_games"`
	LongGames           int `json:"long_games"`
	FirstCheckGames     int `json:"first_check_games"`
	RepetitionGames     int `json:"repetition_games"`
	QueenlessGames      int `json:"queenless_games"`
	EndgameGames        int `json:"endgame_games"`
	RookEndgameGames    int `json:"rook_endgame_games"`

	// CastlePlySum adds up the castling plies of castled games.
	CastlePlySum int `json:"castle_ply_sum"`

	// Per-game means.
	MeanForcingRate float64 `json:"mean_forcing_rate"`
	MeanQuietRate   float64 `json:"mean_quiet_rate"`
	MeanBookPlies   float64 `json:"mean_book_plies"`
	MeanOpeningPly  float64 `json:"mean_opening_ply"`
	MeanPlies       float64 `json:"mean_plies"`

	// Conditional ratios.
	QueenlessConv    Sample `json:"queenless_conv"`
	EndgameDrawRate  Sample `json:"endgame_draw_rate"`
	EndgameQuietRate Sample `json:"endgame_quiet_rate"`
	OpeningBreadth   Sample `json:"opening_breadth"`

	// Openings lists the distinct ECO codes played, sorted.
	Openings []string `json:"openings"`
}

// Fold aggregates fs. The result depends only on the multiset of inputs.
func Fold(fs []features.GameFeatures) Aggregate {
	var a Aggregate
	var (
		queenlessWins int
		endgameDraws  int
		endgameQuiet  int
		withECO       int
		sumForcing    float64
		sumQuiet      float64
		sumBook       int
		sumOpening    int
		sumPlies      int
	)
	ecos := make(map[string]struct{})

	for i := range fs {
		f := &fs[i]
		a.Games++

		a.Moves += f.TotalMoves
		a.RatedMoves += f.RatedMoves
		a.ForcingMoves += f.ForcingMoves
		a.QuietMoves += f.QuietMoves
		a.ThreatMoves += f.ThreatMoves
		a.KingAttackMoves += f.KingAttackMoves
		a.DoubleChecks += f.DoubleChecks
		a.SacEvents += f.SacEvents
		a.ChecksGiven += f.ChecksGiven
		a.Captures += f.Captures
		a.QuietMoveStreaks += f.QuietMoveStreaks
		a.QuietStreakMoves += f.QuietMoveStreaks * f.QuietStreakLength
		a.EndgameQuietStreaks += f.EndgameQuietStreaks
		a.PieceTradesEarly += f.PieceTradesEarly
		a.NonPawnDevelopments += f.NonPawnDevelopments
		a.MinorDevelopments += f.MinorDevelopments
		addQuality(&a.Quality, f.Quality)

		switch f.Outcome {
		case game.Win:
			a.Wins++
		case game.Loss:
			a.Losses++
		case game.Draw:
			a.Draws++
		}
		count(&a.EarlyQueenGames, f.EarlyQueen.IsSet())
		count(&a.CastledByMove10, f.CastledByMove10)
		count(&a.OppositeCastleGames, f.OppositeCastle)
		count(&a.LongGames, f.LongGame)
		count(&a.FirstCheckGames, f.FirstToGiveCheck)
		count(&a.RepetitionGames, f.Repetition)
		count(&a.RookEndgameGames, f.RookEndgames > 0)
		if ply, ok := f.CastleMove.Get(); ok {
			a.CastledGames++
			a.CastlePlySum += ply
		}
		if f.Queenless {
			a.QueenlessGames++
			count(&queenlessWins, f.Outcome == game.Win)
		}
		if f.EndgameReach {
			a.EndgameGames++
			count(&endgameDraws, f.Outcome == game.Draw)
			count(&endgameQuiet, f.EndgameQuietStreaks > 0)
		}
		if f.ECO != "" {
			withECO++
			ecos[f.ECO] = struct{}{}
		}

		sumForcing += f.ForcingRate
		sumQuiet += f.QuietRate
		sumBook += f.BookPlies
		sumOpening += f.OpeningPly
		sumPlies += f.TotalPlies
	}

	if a.Games > 0 {
		n := float64(a.Games)
		a.MeanForcingRate = sumForcing / n
		a.MeanQuietRate = sumQuiet / n
		a.MeanBookPlies = float64(sumBook) / n
		a.MeanOpeningPly = float64(sumOpening) / n
		a.MeanPlies = float64(sumPlies) / n
	}

	a.QueenlessConv = ratio(queenlessWins, a.QueenlessGames)
	a.EndgameDrawRate = ratio(endgameDraws, a.EndgameGames)
	a.EndgameQuietRate = ratio(endgameQuiet, a.EndgameGames)
	a.OpeningBreadth = ratio(len(ecos), withECO)

	a.Openings = make([]string, 0, len(ecos))
	for eco := range ecos {
		a.Openings = append(a.Openings, eco)
	}
	sort.Strings(a.Openings)
	return a
}

func count(n *int, cond bool) {
	if cond {
		*n++
	}
}

func addQuality(dst *features.QualityCounts, q features.QualityCounts) {
	dst.Best += q.Best
	dst.Good += q.Good
	dst.Inaccuracy += q.Inaccuracy
	dst.Mistake += q.Mistake
	dst.Blunder += q.Blunder
	dst.Unknown += q.Unknown
	dst.Brilliant += q.Brilliant
	dst.MissedMates += q.MissedMates
	dst.AllowedMates += q.AllowedMates
	dst.TotalLoss += q.TotalLoss
}
