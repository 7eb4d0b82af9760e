package scoring

import (
	"fmt"

	"github.com/discochess/persona/internal/aggregate"
)

// Metric names a scoring input. Every metric is in [0,1].
type Metric string

const (
	BestRate           Metric = "best_rate"
	ErrorRate          Metric = "error_rate"
	MistakeRate        Metric = "mistake_rate"
	BlunderRate        Metric = "blunder_rate"
	ForcingRate        Metric = "forcing_rate"
	QuietRate          Metric = "quiet_rate"
	EarlyTradeRate     Metric = "early_trade_rate"
	EarlyQueenRate     Metric = "early_queen_rate"
	QueenlessConv      Metric = "queenless_conv"
	KingAttackRate     Metric = "king_attack_rate"
	SacRate            Metric = "sac_rate"
	DoubleCheckRate    Metric = "double_check_rate"
	FirstCheckRate     Metric = "first_check_rate"
	OppositeCastleRate Metric = "opposite_castle_rate"
	QuietStreakRate    Metric = "quiet_streak_rate"
	CastleDelay        Metric = "castle_delay"
	LongGameRate       Metric = "long_game_rate"
	OpeningBreadth     Metric = "opening_breadth"
	BookDeparture      Metric = "book_departure"
	BookDepth          Metric = "book_depth"
	DevelopmentLag     Metric = "development_lag"
	RepetitionRate     Metric = "repetition_rate"
	EndgameDrawRate    Metric = "endgame_draw_rate"
	EndgameQuietRate   Metric = "endgame_quiet_rate"
	DrawRate           Metric = "draw_rate"
	BrilliantRate      Metric = "brilliant_rate"
)

// AllMetrics lists every metric in a fixed order.
var AllMetrics = []Metric{
	BestRate, ErrorRate, MistakeRate, BlunderRate, ForcingRate, QuietRate,
	EarlyTradeRate, EarlyQueenRate, QueenlessConv, KingAttackRate, SacRate,
	DoubleCheckRate, FirstCheckRate, OppositeCastleRate, QuietStreakRate,
	CastleDelay, LongGameRate, OpeningBreadth, BookDeparture, BookDepth,
	DevelopmentLag, RepetitionRate, EndgameDrawRate, EndgameQuietRate, DrawRate,
	BrilliantRate,
}

// KnownMetric reports whether m is one of AllMetrics.
func KnownMetric(m Metric) bool {
	for _, k := range AllMetrics {
		if k == m {
			return true
		}
	}
	return false
}

// Metrics holds a value per metric.
type Metrics map[Metric]float64

// Clone returns a copy of m.
func (m Metrics) Clone() Metrics {
	out := make(Metrics, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Validate checks every metric is known and in range.
func (m Metrics) Validate() error {
	for k, v := range m {
		if !KnownMetric(k) {
			return fmt.Errorf("scoring: unknown metric %q", k)
		}
		if v < 0 || v > 1 {
			return fmt.Errorf("scoring: metric %s = %v out of [0,1]", k, v)
		}
	}
	return nil
}

// MetricsFrom derives the scoring inputs from an aggregate. Ratios backed
// by fewer than d.MinSample games take their neutral default.
func MetricsFrom(a aggregate.Aggregate, d Defaults) Metrics {
	q := a.Quality
	games := a.Games
	horizon := d.CastleHorizon
	if horizon <= 0 {
		horizon = 40
	}

	book := d.BookHorizon
	if book <= 0 {
		book = 16
	}
	bookDepth := unit(a.MeanBookPlies / float64(book))
	castleDelay := 1.0
	if games > 0 {
		never := games - a.CastledGames
		castleDelay = unit((float64(never) + float64(a.CastlePlySum)/float64(horizon)) / float64(games))
	}
	developmentLag := 1.0
	if games > 0 {
		developmentLag = unit(1 - float64(a.MinorDevelopments)/float64(4*games))
	}

	return Metrics{
		BestRate:           frac(q.Best, a.RatedMoves),
		ErrorRate:          frac(q.Inaccuracy+q.Mistake+q.Blunder, a.RatedMoves),
		MistakeRate:        frac(q.Mistake+q.Blunder, a.RatedMoves),
		BlunderRate:        frac(q.Blunder, a.RatedMoves),
		ForcingRate:        frac(a.ForcingMoves, a.RatedMoves),
		QuietRate:          frac(a.QuietMoves, a.RatedMoves),
		EarlyTradeRate:     frac(a.PieceTradesEarly, games),
		EarlyQueenRate:     frac(a.EarlyQueenGames, games),
		QueenlessConv:      a.QueenlessConv.Or(d.QueenlessConv, d.MinSample),
		KingAttackRate:     frac(a.KingAttackMoves, a.Moves),
		SacRate:            frac(a.SacEvents, games),
		DoubleCheckRate:    frac(a.DoubleChecks, games),
		FirstCheckRate:     frac(a.FirstCheckGames, games),
		OppositeCastleRate: frac(a.OppositeCastleGames, games),
		QuietStreakRate:    frac(a.QuietStreakMoves, a.RatedMoves),
		CastleDelay:        castleDelay,
		LongGameRate:       frac(a.LongGames, games),
		OpeningBreadth:     a.OpeningBreadth.Or(d.OpeningBreadth, d.MinSample),
		BookDeparture:      1 - bookDepth,
		BookDepth:          bookDepth,
		DevelopmentLag:     developmentLag,
		RepetitionRate:     frac(a.RepetitionGames, games),
		EndgameDrawRate:    a.EndgameDrawRate.Or(d.EndgameDrawRate, d.MinSample),
		EndgameQuietRate:   a.EndgameQuietRate.Or(d.EndgameQuietRate, d.MinSample),
		DrawRate:           frac(a.Draws, games),
		BrilliantRate:      frac(q.Brilliant, games),
	}
}

// frac returns k/n clamped to [0,1], or 0 when n is zero.
func frac(k, n int) float64 {
	if n <= 0 {
		return 0
	}
	return unit(float64(k) / float64(n))
}

func unit(x float64) float64 {
	switch {
	case x < 0:
		return 0
	case x > 1:
		return 1
	}
	return x
}
