package micro

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/notnil/chess"

	"github.com/discochess/persona/internal/annotate"
	"github.com/discochess/persona/internal/blob/diskblob"
	"github.com/discochess/persona/internal/blob/memblob"
	"github.com/discochess/persona/internal/engine"
	"github.com/discochess/persona/internal/engine/evaldb"
	"github.com/discochess/persona/internal/engine/scripted"
	"github.com/discochess/persona/internal/features"
	"github.com/discochess/persona/internal/game"
	"github.com/discochess/persona/internal/scoring"
)

const moves = "e4 c5 Nf3 d6 d4 cxd4 Nxd4 Nf6 Nc3 a6 Be2 e5 Nb3 Be7 O-O O-O Be3 Be6 Qd2 Nbd7"

func sampleGame(b *testing.B) *game.Game {
	b.Helper()
	cg := chess.NewGame()
	for _, m := range strings.Fields(moves) {
		if err := cg.MoveStr(m); err != nil {
			b.Fatalf("MoveStr(%q): %v", m, err)
		}
	}
	g, err := game.New(cg, game.Key{User: "bench", Platform: "test", GameID: "1"}, chess.White)
	if err != nil {
		b.Fatalf("game.New: %v", err)
	}
	return g
}

// BenchmarkExtract measures feature extraction of one annotated game.
func BenchmarkExtract(b *testing.B) {
	g := sampleGame(b)
	ev := scripted.New(scripted.WithFallback(scripted.Material))
	plies, err := annotate.New(ev).Annotate(context.Background(), g)
	if err != nil {
		b.Fatalf("Annotate: %v", err)
	}
	x, err := features.NewExtractor()
	if err != nil {
		b.Fatalf("NewExtractor: %v", err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := x.Extract(g, plies); err != nil {
			b.Fatalf("Extract: %v", err)
		}
	}
}

// BenchmarkScore measures scoring a profile from stored features.
func BenchmarkScore(b *testing.B) {
	g := sampleGame(b)
	ev := scripted.New(scripted.WithFallback(scripted.Material))
	plies, _ := annotate.New(ev).Annotate(context.Background(), g)
	x, _ := features.NewExtractor()
	res, err := x.Extract(g, plies)
	if err != nil {
		b.Fatalf("Extract: %v", err)
	}
	fs := make([]features.GameFeatures, 200)
	for i := range fs {
		fs[i] = res.Features
	}
	s, err := scoring.NewScorer(scoring.DefaultWeights())
	if err != nil {
		b.Fatalf("NewScorer: %v", err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		s.ScoreFeatures(fs)
	}
}

// BenchmarkEvalDB_WarmCache measures lookups once the shard is decoded.
func BenchmarkEvalDB_WarmCache(b *testing.B) {
	ctx := context.Background()
	store := memblob.New()
	w := evaldb.NewWriter(store)
	pos := chess.NewGame().Position()
	w.Add(pos, engine.Result{Eval: engine.Centipawns(20, chess.White), BestMove: "e2e4", Depth: 30})
	if _, err := w.Flush(ctx); err != nil {
		b.Fatalf("Flush: %v", err)
	}
	db, err := evaldb.Open(ctx, store)
	if err != nil {
		b.Fatalf("Open: %v", err)
	}
	defer db.Close()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := db.Evaluate(ctx, pos, engine.Limits{}); err != nil {
			b.Fatalf("Evaluate: %v", err)
		}
	}
}

// BenchmarkEvalDB_Disk measures cold lookups against a built database.
// Requires EVAL_DIR pointing to an evaluation database directory.
func BenchmarkEvalDB_Disk(b *testing.B) {
	dir := os.Getenv("EVAL_DIR")
	if dir == "" {
		b.Skip("EVAL_DIR not set; skipping benchmark")
	}
	ctx := context.Background()
	store, err := diskblob.New(dir)
	if err != nil {
		b.Fatalf("opening store: %v", err)
	}
	db, err := evaldb.Open(ctx, store, evaldb.WithCacheSize(1))
	if err != nil {
		b.Fatalf("Open: %v", err)
	}
	defer db.Close()

	positions := sampleGame(b).Chess.Positions()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, err := db.Evaluate(ctx, positions[i%len(positions)], engine.Limits{})
		if err != nil && err != engine.ErrNotFound {
			b.Fatalf("Evaluate: %v", err)
		}
	}
}
