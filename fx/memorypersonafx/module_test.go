package memorypersonafx

import (
	"context"
	"strings"
	"testing"

	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"
	"go.uber.org/zap"

	"github.com/discochess/persona"
	"github.com/discochess/persona/internal/featurestore/memstore"
	"github.com/discochess/persona/internal/pgn"
)

const game = `[Event "Casual"]
[Site "https://lichess.org/abcd1234"]
[White "alice"]
[Black "bob"]
[Result "1-0"]

1. e4 e5 2. Nf3 d6 3. Bc4 Bg4 4. Nc3 g6 5. Nxe5 Bxd1 6. Bxf7+ Ke7 7. Nd5# 1-0
`

func TestModule_AnalyzesIntoStore(t *testing.T) {
	var (
		a     *persona.Analyzer
		store *memstore.Store
	)
	app := fxtest.New(t,
		fx.Supply(zap.NewNop()),
		Module,
		fx.Populate(&a, &store),
	)
	app.RequireStart()
	defer app.RequireStop()

	ctx := context.Background()
	report, err := a.AnalyzeGames(ctx, pgn.NewReader(strings.NewReader(game), "alice", pgn.WithPlatform("lichess")))
	if err != nil {
		t.Fatalf("AnalyzeGames() error = %v", err)
	}
	if report.Classified != 1 {
		t.Errorf("Classified = %d, want 1", report.Classified)
	}
	if store.Len() != 1 {
		t.Errorf("store.Len() = %d, want 1", store.Len())
	}
	if _, err := a.Profile(ctx, "alice", "lichess"); err != nil {
		t.Errorf("Profile() error = %v", err)
	}
}
