//go:build e2e

package persona_test

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/discochess/persona"
	"github.com/discochess/persona/internal/blob/diskblob"
	"github.com/discochess/persona/internal/engine"
	"github.com/discochess/persona/internal/engine/evaldb"
	"github.com/discochess/persona/internal/engine/uciengine"
	"github.com/discochess/persona/internal/featurestore/sqlitestore"
)

const e2eGames = `[Event "Legall"]
[White "alice"]
[Black "bob"]
[Result "1-0"]

1. e4 e5 2. Nf3 d6 3. Bc4 Bg4 4. Nc3 g6 5. Nxe5 Bxd1 6. Bxf7+ Ke7 7. Nd5# 1-0

[Event "QGD"]
[White "bob"]
[Black "alice"]
[Result "1/2-1/2"]

1. d4 d5 2. c4 e6 3. Nc3 Nf6 4. Bg5 Be7 5. e3 O-O 6. Nf3 h6 1/2-1/2
`

func enginePath(t *testing.T) string {
	t.Helper()
	if p := os.Getenv("PERSONA_ENGINE"); p != "" {
		return p
	}
	p, err := exec.LookPath("stockfish")
	if err != nil {
		t.Skip("Skipping: no UCI engine (set PERSONA_ENGINE or install stockfish)")
	}
	return p
}

func TestE2E_EngineToProfile(t *testing.T) {
	bin := enginePath(t)
	dir := t.TempDir()

	pgnPath := filepath.Join(dir, "games.pgn")
	if err := os.WriteFile(pgnPath, []byte(e2eGames), 0o644); err != nil {
		t.Fatal(err)
	}

	blobs, err := diskblob.New(filepath.Join(dir, "evals"))
	if err != nil {
		t.Fatalf("Error opening eval dir: %v", err)
	}
	writer := evaldb.NewWriter(blobs, evaldb.WithTotalShards(64))

	store, err := sqlitestore.Open(filepath.Join(dir, "features.db"))
	if err != nil {
		t.Fatalf("Error opening feature store: %v", err)
	}

	factory := func(ctx context.Context) (engine.Evaluator, error) {
		ev, err := uciengine.New(bin)
		if err != nil {
			return nil, err
		}
		return evaldb.NewRecorder(ev, writer), nil
	}

	a, err := persona.New(
		persona.WithEvaluatorFactory(factory),
		persona.WithFeatureStore(store),
		persona.WithWorkers(2),
		persona.WithLimits(engine.Limits{Depth: 8}),
		persona.WithTimeout(5*time.Second),
	)
	if err != nil {
		t.Fatalf("Error creating analyzer: %v", err)
	}
	defer a.Close()

	ctx := context.Background()
	start := time.Now()
	rep, err := a.AnalyzePGN(ctx, pgnPath, "alice", "e2e")
	if err != nil {
		t.Fatalf("AnalyzePGN() error = %v", err)
	}
	t.Logf("Analyzed %d games in %v (%d degraded plies)", rep.Classified, time.Since(start), rep.DegradedPlies)
	if rep.Classified != 2 {
		t.Errorf("Classified = %d, want 2", rep.Classified)
	}

	p, err := a.Profile(ctx, "alice", "e2e")
	if err != nil {
		t.Fatalf("Profile() error = %v", err)
	}
	for _, ts := range p.Traits {
		t.Logf("   %-10s %5.1f", ts.Trait, ts.Score)
	}

	m, err := writer.Flush(ctx)
	if err != nil {
		t.Fatalf("Flush() error = %v", err)
	}
	t.Logf("Recorded %d evaluations into %d shards", m.RecordCount, m.ShardCount)

	// A second pass answers from the recorded database alone.
	db, err := evaldb.Open(ctx, blobs)
	if err != nil {
		t.Fatalf("evaldb.Open() error = %v", err)
	}
	defer db.Close()

	replay, err := persona.New(
		persona.WithEvaluatorFactory(func(context.Context) (engine.Evaluator, error) { return evaldb.Shared(db), nil }),
		persona.WithLimits(engine.Limits{Depth: 8}),
	)
	if err != nil {
		t.Fatal(err)
	}
	defer replay.Close()
	rep, err = replay.AnalyzePGN(ctx, pgnPath, "alice", "e2e")
	if err != nil {
		t.Fatalf("replay AnalyzePGN() error = %v", err)
	}
	if rep.Classified != 2 || rep.DegradedPlies != 0 {
		t.Errorf("replay report = %+v, want 2 classified without degraded plies", rep)
	}
}
