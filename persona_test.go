package persona

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/discochess/persona/internal/engine"
	"github.com/discochess/persona/internal/engine/scripted"
	"github.com/discochess/persona/internal/featurestore/memstore"
	"github.com/discochess/persona/internal/scoring"
	"github.com/discochess/persona/internal/stats"
)

const games = `[Event "Casual"]
[Site "https://lichess.org/abcd1234"]
[White "alice"]
[Black "bob"]
[Result "1-0"]

1. e4 e5 2. Nf3 d6 3. Bc4 Bg4 4. Nc3 g6 5. Nxe5 Bxd1 6. Bxf7+ Ke7 7. Nd5# 1-0

[Event "Casual"]
[Site "https://lichess.org/efgh5678"]
[White "bob"]
[Black "alice"]
[Result "1/2-1/2"]

1. d4 d5 2. c4 e6 3. Nc3 Nf6 4. Bg5 Be7 1/2-1/2

[Event "Broken"]
[White "alice"]
[Black "carol"]
[Result "*"]

1. e4 e5 2. Ke3 *
`

func writePGN(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "games.pgn")
	if err := os.WriteFile(path, []byte(games), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return path
}

func materialFactory(ctx context.Context) (engine.Evaluator, error) {
	return scripted.New(scripted.WithFallback(scripted.Material)), nil
}

func TestAnalyzer_RequiresEvaluator(t *testing.T) {
	a, err := New()
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer a.Close()

	if _, err := a.AnalyzePGN(context.Background(), writePGN(t), "alice", "lichess"); !errors.Is(err, ErrNoEvaluator) {
		t.Errorf("AnalyzePGN() error = %v, want ErrNoEvaluator", err)
	}
}

func TestAnalyzer_InvalidWeights(t *testing.T) {
	w := scoring.DefaultWeights()
	w.Version = ""
	if _, err := New(WithWeights(w)); err == nil {
		t.Error("New() with invalid weights should fail")
	}
}

func TestAnalyzer_AnalyzeAndProfile(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	collector := stats.NewMemory()
	a, err := New(
		WithEvaluatorFactory(materialFactory),
		WithFeatureStore(store),
		WithWorkers(2),
		WithEvalCache(256),
		WithStats(collector),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer a.Close()

	rep, err := a.AnalyzePGN(ctx, writePGN(t), "alice", "lichess")
	if err != nil {
		t.Fatalf("AnalyzePGN() error = %v", err)
	}
	if rep.Attempted != 3 || rep.Classified != 2 || rep.Skipped != 1 {
		t.Errorf("report = %+v, want 2 classified and 1 skipped", rep)
	}
	if store.Len() != 2 {
		t.Errorf("store holds %d records, want 2", store.Len())
	}

	p, err := a.Profile(ctx, "alice", "lichess")
	if err != nil {
		t.Fatalf("Profile() error = %v", err)
	}
	if p.Games != 2 || len(p.Traits) != len(scoring.Traits) {
		t.Errorf("Profile() = %d games, %d traits", p.Games, len(p.Traits))
	}
	for _, ts := range p.Traits {
		if ts.Score < 0 || ts.Score > 100 {
			t.Errorf("%s = %v out of range", ts.Trait, ts.Score)
		}
	}

	again, err := a.Profile(ctx, "alice", "")
	if err != nil {
		t.Fatalf("Profile() error = %v", err)
	}
	if again.Scores()[scoring.Tactical] != p.Scores()[scoring.Tactical] {
		t.Error("profiles of the same games differ")
	}

	if _, ok := a.CacheStats(); !ok {
		t.Error("CacheStats() should report the configured cache")
	}
	if got := collector.Counter(stats.MetricGamesClassified); got != 2 {
		t.Errorf("%s = %d, want 2", stats.MetricGamesClassified, got)
	}
}

func TestAnalyzer_ProfileWithoutGames(t *testing.T) {
	a, _ := New()
	defer a.Close()
	if _, err := a.Profile(context.Background(), "nobody", ""); !errors.Is(err, ErrNoGames) {
		t.Errorf("Profile() error = %v, want ErrNoGames", err)
	}
}

func TestAnalyzer_Close(t *testing.T) {
	a, _ := New(WithEvaluatorFactory(materialFactory))
	if err := a.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := a.Close(); !errors.Is(err, ErrClosed) {
		t.Errorf("second Close() error = %v, want ErrClosed", err)
	}
	if _, err := a.Profile(context.Background(), "alice", ""); !errors.Is(err, ErrClosed) {
		t.Errorf("Profile() after Close error = %v, want ErrClosed", err)
	}
}
