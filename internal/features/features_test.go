package features

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/notnil/chess"

	"github.com/discochess/persona/internal/classify"
	"github.com/discochess/persona/internal/engine"
	"github.com/discochess/persona/internal/game"
)

var (
	quietGame = []string{
		"Nf3", "Nf6", "g3", "g6", "Bg2", "Bg7", "d3", "d6", "c3", "c6",
		"Nbd2", "Nbd7", "a3", "a6", "b3", "b6", "h3", "h6", "e3", "e6",
	}
	legallsMate = []string{
		"e4", "e5", "Nf3", "d6", "Bc4", "Bg4", "Nc3", "g6", "Nxe5", "Bxd1", "Bxf7+", "Ke7", "Nd5#",
	}
	controlGame = []string{
		"Nf3", "Nf6", "g3", "g6", "Bg2", "Bg7", "O-O", "O-O", "d3", "d6", "c3", "c6", "Nbd2",
	}
)

func newGame(t *testing.T, subject chess.Color, moves ...string) *game.Game {
	t.Helper()
	cg := chess.NewGame(chess.TagPairs([]*chess.TagPair{
		{Key: "White", Value: "white-player"},
		{Key: "Black", Value: "black-player"},
	}))
	for _, m := range moves {
		if err := cg.MoveStr(m); err != nil {
			t.Fatalf("MoveStr(%q) error = %v", m, err)
		}
	}
	g, err := game.New(cg, game.Key{User: "subject", Platform: "test", GameID: "g1"}, subject)
	if err != nil {
		t.Fatalf("game.New() error = %v", err)
	}
	return g
}

// steadyEvals scores every position at whiteCP from White's side and
// treats every played move as the engine's choice.
func steadyEvals(g *game.Game, whiteCP int) []PlyEval {
	moves := g.Chess.Moves()
	positions := g.Chess.Positions()
	evals := make([]PlyEval, len(moves))
	for i, m := range moves {
		before, after := positions[i], positions[i+1]
		ev := PlyEval{
			Status: StatusOK,
			Best: engine.Result{
				Eval:     engine.FromWhite(engine.Centipawn, whiteCP, before.Turn()),
				BestMove: m.String(),
			},
			Played:    engine.FromWhite(engine.Centipawn, whiteCP, after.Turn()),
			HasPlayed: true,
		}
		if after.Status() == chess.Checkmate {
			ev.Status = StatusTerminal
			ev.Played = engine.Checkmated(after.Turn())
		}
		evals[i] = ev
	}
	return evals
}

func extract(t *testing.T, g *game.Game, evals []PlyEval) Result {
	t.Helper()
	x, err := NewExtractor()
	if err != nil {
		t.Fatalf("NewExtractor() error = %v", err)
	}
	res, err := x.Extract(g, evals)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	return res
}

func TestExtract_QuietGame(t *testing.T) {
	g := newGame(t, chess.White, quietGame...)
	f := extract(t, g, steadyEvals(g, 20)).Features

	if f.ForcingRate != 0 {
		t.Errorf("ForcingRate = %v, want 0", f.ForcingRate)
	}
	if f.QuietRate != 1 {
		t.Errorf("QuietRate = %v, want 1", f.QuietRate)
	}
	if f.CastleMove.IsSet() {
		t.Errorf("CastleMove = %v, want never", f.CastleMove)
	}
	if f.CastledByMove10 {
		t.Error("CastledByMove10 = true, want false")
	}
	if f.SacEvents != 0 {
		t.Errorf("SacEvents = %d, want 0", f.SacEvents)
	}
	if f.TotalMoves != 10 || f.TotalPlies != 20 {
		t.Errorf("TotalMoves, TotalPlies = %d, %d, want 10, 20", f.TotalMoves, f.TotalPlies)
	}
	if f.QuietMoveStreaks != 1 {
		t.Errorf("QuietMoveStreaks = %d, want 1", f.QuietMoveStreaks)
	}
	// Only Nf3 and Bg2 fall inside the default eight-ply opening.
	if f.NonPawnDevelopments != 2 || f.MinorDevelopments != 2 {
		t.Errorf("developments = %d non-pawn, %d minor, want 2, 2", f.NonPawnDevelopments, f.MinorDevelopments)
	}
	if f.OpeningPly != 8 || f.QuietStreakLength != 5 {
		t.Errorf("OpeningPly, QuietStreakLength = %d, %d, want 8, 5", f.OpeningPly, f.QuietStreakLength)
	}
	if f.Quality.Best != 10 || f.RatedMoves != 10 {
		t.Errorf("Best, RatedMoves = %d, %d, want 10, 10", f.Quality.Best, f.RatedMoves)
	}
	if !strings.HasPrefix(f.ECO, "A") {
		t.Errorf("ECO = %q, want an A code", f.ECO)
	}
	if f.EndgameReach || f.Queenless || f.Repetition || f.LongGame {
		t.Errorf("unexpected phase flags: %+v", f)
	}
}

func TestExtract_SacrificeScenario(t *testing.T) {
	g := newGame(t, chess.White, legallsMate...)
	res := extract(t, g, steadyEvals(g, 300))
	f := res.Features

	if f.SacEvents != 1 {
		t.Fatalf("SacEvents = %d, want 1", f.SacEvents)
	}
	sac := res.Moves[8]
	if sac.SAN != "Nxe5" || !sac.Sacrifice {
		t.Errorf("Moves[8] = %s sacrifice=%v, want Nxe5 sacrifice", sac.SAN, sac.Sacrifice)
	}
	if !sac.Brilliant || f.Quality.Brilliant != 1 {
		t.Errorf("Brilliant = %v (count %d), want true (1)", sac.Brilliant, f.Quality.Brilliant)
	}
	if f.Outcome != game.Win {
		t.Errorf("Outcome = %v, want win", f.Outcome)
	}
	if !f.FirstToGiveCheck || f.ChecksGiven != 2 {
		t.Errorf("FirstToGiveCheck, ChecksGiven = %v, %d, want true, 2", f.FirstToGiveCheck, f.ChecksGiven)
	}
	if f.Captures != 2 {
		t.Errorf("Captures = %d, want 2", f.Captures)
	}
	if want := 3.0 / 7.0; f.ForcingRate != want {
		t.Errorf("ForcingRate = %v, want %v", f.ForcingRate, want)
	}
	if last := res.Moves[len(res.Moves)-1]; last.Status != StatusTerminal || last.Quality != classify.Best {
		t.Errorf("mating ply = %v/%v, want terminal/best", last.Status, last.Quality)
	}
}

func TestExtract_LosingSacrificeIsNotCounted(t *testing.T) {
	g := newGame(t, chess.White, legallsMate[:10]...)
	f := extract(t, g, steadyEvals(g, -300)).Features
	if f.SacEvents != 0 {
		t.Errorf("SacEvents = %d, want 0 when the evaluation falls below the floor", f.SacEvents)
	}
}

func TestExtract_ControlGame(t *testing.T) {
	g := newGame(t, chess.White, controlGame...)
	f := extract(t, g, steadyEvals(g, 0)).Features

	if f.SacEvents != 0 {
		t.Errorf("SacEvents = %d, want 0", f.SacEvents)
	}
	if ply, ok := f.CastleMove.Get(); !ok || ply != 7 {
		t.Errorf("CastleMove = %v, want 7", f.CastleMove)
	}
	if !f.CastledByMove10 {
		t.Error("CastledByMove10 = false, want true")
	}
	if f.OppositeCastle {
		t.Error("OppositeCastle = true for same-wing castling")
	}
}

func TestExtract_BlackSubject(t *testing.T) {
	g := newGame(t, chess.Black, quietGame...)
	f := extract(t, g, steadyEvals(g, 0)).Features
	if f.Subject != "black" || f.TotalMoves != 10 {
		t.Errorf("Subject, TotalMoves = %s, %d, want black, 10", f.Subject, f.TotalMoves)
	}
}

func TestExtract_EarlyTradeAndThreat(t *testing.T) {
	g := newGame(t, chess.White, "e4", "Nf6", "e5", "Nd5", "Nf3", "Nc6", "Bb5", "a6", "Bxc6", "dxc6")
	res := extract(t, g, steadyEvals(g, 0))

	if !res.Moves[2].Threat {
		t.Error("e5 attacking the f6 knight should be a threat")
	}
	if res.Moves[2].Quiet() {
		t.Error("a threat is not quiet")
	}
	// The bishop for knight trade lands on ply 10, past the opening.
	if got := res.Features.PieceTradesEarly; got != 0 {
		t.Errorf("PieceTradesEarly = %d, want 0", got)
	}
}

func TestExtract_TradeInsideOpening(t *testing.T) {
	g := newGame(t, chess.White, "e4", "e5", "Nc3", "Nf6", "Nd5", "Nxd5", "exd5")
	if got := extract(t, g, steadyEvals(g, 0)).Features.PieceTradesEarly; got != 1 {
		t.Errorf("PieceTradesEarly = %d, want 1", got)
	}
}

func TestExtract_EarlyQueen(t *testing.T) {
	g := newGame(t, chess.White, "e4", "e5", "Qh5", "Nc6")
	f := extract(t, g, steadyEvals(g, 0)).Features
	if ply, ok := f.EarlyQueen.Get(); !ok || ply != 3 {
		t.Errorf("EarlyQueen = %v, want 3", f.EarlyQueen)
	}
}

func TestExtract_Repetition(t *testing.T) {
	g := newGame(t, chess.White, "Nf3", "Nf6", "Ng1", "Ng8", "Nf3", "Nf6", "Ng1", "Ng8")
	f := extract(t, g, steadyEvals(g, 0)).Features
	if !f.Repetition {
		t.Error("Repetition = false, want true")
	}
}

func TestExtract_DegradedPly(t *testing.T) {
	g := newGame(t, chess.White, quietGame...)
	evals := steadyEvals(g, 0)
	evals[2] = PlyEval{Status: StatusTimeout}
	evals[4] = PlyEval{Status: StatusForced}

	res := extract(t, g, evals)
	if q := res.Moves[2].Quality; q != classify.Unknown {
		t.Errorf("timed out ply quality = %v, want unknown", q)
	}
	f := res.Features
	if f.RatedMoves != 8 || f.Quality.Unknown != 1 || f.TotalMoves != 10 {
		t.Errorf("RatedMoves, Unknown, TotalMoves = %d, %d, %d, want 8, 1, 10",
			f.RatedMoves, f.Quality.Unknown, f.TotalMoves)
	}
}

func TestExtract_RatesCountRatedMovesOnly(t *testing.T) {
	g := newGame(t, chess.White, quietGame...)
	evals := steadyEvals(g, 0)
	for i := 0; i < len(evals); i += 2 {
		evals[i] = PlyEval{Status: StatusNoBestMove}
	}
	f := extract(t, g, evals).Features
	if f.TotalMoves != 10 || f.RatedMoves != 0 {
		t.Errorf("TotalMoves, RatedMoves = %d, %d, want 10, 0", f.TotalMoves, f.RatedMoves)
	}
	if f.QuietMoves != 0 || f.QuietRate != 0 || f.QuietMoveStreaks != 0 {
		t.Errorf("QuietMoves, QuietRate, QuietMoveStreaks = %d, %v, %d, want 0, 0, 0",
			f.QuietMoves, f.QuietRate, f.QuietMoveStreaks)
	}
}

func TestExtract_ForcedAndUnratedPliesLeaveRates(t *testing.T) {
	g := newGame(t, chess.White, legallsMate...)
	evals := steadyEvals(g, 0)
	evals[8] = PlyEval{Status: StatusForced}      // Nxe5
	evals[10] = PlyEval{Status: StatusNoBestMove} // Bxf7+
	f := extract(t, g, evals).Features

	if f.TotalMoves != 7 || f.RatedMoves != 5 {
		t.Errorf("TotalMoves, RatedMoves = %d, %d, want 7, 5", f.TotalMoves, f.RatedMoves)
	}
	if f.ForcingMoves != 1 || f.ForcingRate != 1.0/5 {
		t.Errorf("ForcingMoves, ForcingRate = %d, %v, want 1, 0.2", f.ForcingMoves, f.ForcingRate)
	}
	if f.QuietMoves != 4 || f.QuietRate != 4.0/5 {
		t.Errorf("QuietMoves, QuietRate = %d, %v, want 4, 0.8", f.QuietMoves, f.QuietRate)
	}
	if f.Captures != 2 || f.ChecksGiven != 2 {
		t.Errorf("Captures, ChecksGiven = %d, %d, want 2, 2", f.Captures, f.ChecksGiven)
	}
}

func TestExtract_CustomStreakLength(t *testing.T) {
	cfg := DefaultConfig()
	cfg.QuietStreakLength = 3
	x, err := NewExtractor(WithConfig(cfg))
	if err != nil {
		t.Fatalf("NewExtractor() error = %v", err)
	}
	g := newGame(t, chess.White, quietGame...)
	res, err := x.Extract(g, steadyEvals(g, 0))
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if f := res.Features; f.QuietStreakLength != 3 || f.QuietMoveStreaks != 1 {
		t.Errorf("QuietStreakLength, QuietMoveStreaks = %d, %d, want 3, 1", f.QuietStreakLength, f.QuietMoveStreaks)
	}
}

func TestExtract_Blunder(t *testing.T) {
	g := newGame(t, chess.White, "e4", "e5")
	evals := steadyEvals(g, 0)
	evals[0].Best.BestMove = "d2d4"
	evals[0].Played = engine.Centipawns(250, chess.Black)

	res := extract(t, g, evals)
	if got := res.Moves[0]; got.Quality != classify.Blunder || got.Loss.Centipawns != 250 {
		t.Errorf("Moves[0] = %v loss %d, want blunder loss 250", got.Quality, got.Loss.Centipawns)
	}
	if res.Features.Quality.TotalLoss != 250 {
		t.Errorf("TotalLoss = %d, want 250", res.Features.Quality.TotalLoss)
	}
}

func TestExtract_EvalCountMismatch(t *testing.T) {
	g := newGame(t, chess.White, "e4", "e5")
	x, _ := NewExtractor()
	_, err := x.Extract(g, make([]PlyEval, 1))
	if !errors.Is(err, game.ErrMalformed) {
		t.Errorf("Extract() error = %v, want ErrMalformed", err)
	}
}

func TestExtract_EmptyGame(t *testing.T) {
	g := newGame(t, chess.White)
	f := extract(t, g, nil).Features
	if f.TotalMoves != 0 || f.ForcingRate != 0 || f.QuietRate != 0 {
		t.Errorf("empty game features = %+v", f)
	}
	if f.EndgameAt.IsSet() || f.QueenlessAt.IsSet() || f.CastleMove.IsSet() || f.EarlyQueen.IsSet() {
		t.Error("short game should leave every mark unset")
	}
}

func TestExtract_Deterministic(t *testing.T) {
	g := newGame(t, chess.White, legallsMate...)
	evals := steadyEvals(g, 150)

	a, err := json.Marshal(extract(t, g, evals).Features)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	b, err := json.Marshal(extract(t, g, evals).Features)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if !bytes.Equal(a, b) {
		t.Errorf("encodings differ:\n%s\n%s", a, b)
	}
}

func TestExtract_RatesInRange(t *testing.T) {
	for _, moves := range [][]string{quietGame, legallsMate, controlGame} {
		for _, subject := range []chess.Color{chess.White, chess.Black} {
			g := newGame(t, subject, moves...)
			f := extract(t, g, steadyEvals(g, 0)).Features
			if err := f.Validate(); err != nil {
				t.Errorf("Validate() error = %v", err)
			}
		}
	}
}

func TestMark_JSON(t *testing.T) {
	data, err := json.Marshal(struct {
		A Mark `json:"a"`
		B Mark `json:"b"`
	}{At(12), Mark{}})
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if string(data) != `{"a":12,"b":null}` {
		t.Errorf("Marshal() = %s", data)
	}

	var got struct {
		A Mark `json:"a"`
		B Mark `json:"b"`
	}
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if ply, ok := got.A.Get(); !ok || ply != 12 {
		t.Errorf("A = %v, want 12", got.A)
	}
	if got.B.IsSet() {
		t.Errorf("B = %v, want never", got.B)
	}
}

func TestConfig_Validate(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("DefaultConfig().Validate() error = %v", err)
	}
	if cfg.OpeningPly != 8 || cfg.EarlyQueenPlies != 16 {
		t.Errorf("OpeningPly, EarlyQueenPlies = %d, %d, want 8, 16", cfg.OpeningPly, cfg.EarlyQueenPlies)
	}
	for name, mutate := range map[string]func(*Config){
		"sacrifice window": func(c *Config) { c.SacrificeWindowPlies = 0 },
		"opening ply":      func(c *Config) { c.OpeningPly = 0 },
		"early queen":      func(c *Config) { c.EarlyQueenPlies = -1 },
	} {
		c := DefaultConfig()
		mutate(&c)
		if err := c.Validate(); err == nil {
			t.Errorf("Validate() with bad %s should fail", name)
		}
	}
}

func TestExtract_EarlyQueenAfterOpening(t *testing.T) {
	g := newGame(t, chess.White, "e4", "e5", "d3", "d6", "c3", "c6", "h3", "h6", "Qf3", "Nc6")
	f := extract(t, g, steadyEvals(g, 0)).Features
	if ply, ok := f.EarlyQueen.Get(); !ok || ply != 9 {
		t.Errorf("EarlyQueen = %v, want 9", f.EarlyQueen)
	}
}
