package batch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/notnil/chess"

	"github.com/discochess/persona/internal/annotate"
	"github.com/discochess/persona/internal/engine"
	"github.com/discochess/persona/internal/engine/cached"
	"github.com/discochess/persona/internal/engine/scripted"
	"github.com/discochess/persona/internal/featurestore/memstore"
	"github.com/discochess/persona/internal/game"
	"github.com/discochess/persona/internal/pgn"
	"github.com/discochess/persona/internal/stats"
)

func newGame(t *testing.T, id string, moves ...string) *game.Game {
	t.Helper()
	cg := chess.NewGame()
	for _, m := range moves {
		if err := cg.MoveStr(m); err != nil {
			t.Fatalf("MoveStr(%q) error = %v", m, err)
		}
	}
	g, err := game.New(cg, game.Key{User: "u", Platform: "test", GameID: id}, chess.White)
	if err != nil {
		t.Fatalf("game.New() error = %v", err)
	}
	return g
}

func materialFactory(ctx context.Context) (engine.Evaluator, error) {
	return scripted.New(scripted.WithFallback(scripted.Material)), nil
}

// queue returns a closed, buffered channel holding gs.
func queue(gs ...*game.Game) <-chan *game.Game {
	ch := make(chan *game.Game, len(gs))
	for _, g := range gs {
		ch <- g
	}
	close(ch)
	return ch
}

func checkTotals(t *testing.T, rep *Report) {
	t.Helper()
	if rep.Attempted != rep.Classified+rep.Skipped {
		t.Errorf("attempted %d != classified %d + skipped %d", rep.Attempted, rep.Classified, rep.Skipped)
	}
	n := 0
	for _, v := range rep.Reasons {
		n += v
	}
	if n != rep.Skipped || len(rep.Skips) != rep.Skipped {
		t.Errorf("reasons %v and %d skips do not add up to %d", rep.Reasons, len(rep.Skips), rep.Skipped)
	}
}

func TestRun_ClassifiesEveryGame(t *testing.T) {
	store := memstore.New()
	collector := stats.NewMemory()
	r, err := New(materialFactory, store, WithWorkers(3), WithStats(collector))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	var gs []*game.Game
	for i := 0; i < 6; i++ {
		gs = append(gs, newGame(t, fmt.Sprint(i), "e4", "e5", "Nf3", "Nc6", "Bb5", "a6"))
	}
	rep, err := r.Run(context.Background(), queue(gs...))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if rep.Attempted != 6 || rep.Classified != 6 || rep.Skipped != 0 {
		t.Errorf("report = %+v, want 6 classified", rep)
	}
	checkTotals(t, rep)
	if _, err := uuid.Parse(rep.RunID); err != nil {
		t.Errorf("RunID %q is not a uuid: %v", rep.RunID, err)
	}
	if store.Len() != 6 {
		t.Errorf("store holds %d records, want 6", store.Len())
	}
	if got := collector.Counter(stats.MetricGamesClassified); got != 6 {
		t.Errorf("%s = %d, want 6", stats.MetricGamesClassified, got)
	}
	if got := collector.Gauge(stats.MetricActiveWorkers); got != 0 {
		t.Errorf("%s = %d after run, want 0", stats.MetricActiveWorkers, got)
	}
	if got := len(collector.Observations(stats.MetricGameSeconds)); got != 6 {
		t.Errorf("%d game timings, want 6", got)
	}
}

func TestRun_SkipsMalformed(t *testing.T) {
	good := newGame(t, "ok", "d4", "d5")
	noKey := newGame(t, "x", "d4")
	noKey.Key.GameID = ""
	noMoves := &game.Game{Key: game.Key{User: "u", Platform: "test", GameID: "empty"}, Subject: chess.White}

	r, err := New(materialFactory, nil, WithWorkers(1))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	rep, err := r.Run(context.Background(), queue(good, noKey, noMoves))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if rep.Classified != 1 || rep.Reasons[ReasonMalformed] != 2 {
		t.Errorf("report = %+v, want 1 classified and 2 malformed", rep)
	}
	checkTotals(t, rep)
}

func TestRun_UnavailableStopsBatch(t *testing.T) {
	factory := func(ctx context.Context) (engine.Evaluator, error) {
		ev := scripted.New()
		ev.SetUnavailable(true)
		return ev, nil
	}
	r, err := New(factory, nil, WithWorkers(2))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	gs := []*game.Game{newGame(t, "a", "e4"), newGame(t, "b", "e4"), newGame(t, "c", "e4")}

	rep, err := r.Run(context.Background(), queue(gs...))
	if !errors.Is(err, engine.ErrUnavailable) {
		t.Fatalf("Run() error = %v, want ErrUnavailable", err)
	}
	if rep == nil {
		t.Fatal("Run() returned no partial report")
	}
	if rep.Reasons[ReasonUnavailable] == 0 || rep.Classified != 0 {
		t.Errorf("report = %+v, want unavailable skips", rep)
	}
	checkTotals(t, rep)
}

func TestRun_FactoryError(t *testing.T) {
	factory := func(ctx context.Context) (engine.Evaluator, error) {
		return nil, fmt.Errorf("%w: no binary", engine.ErrUnavailable)
	}
	r, _ := New(factory, nil, WithWorkers(1))
	if _, err := r.Run(context.Background(), queue(newGame(t, "a", "e4"))); !errors.Is(err, engine.ErrUnavailable) {
		t.Errorf("Run() error = %v, want ErrUnavailable", err)
	}
}

// blocking parks every search until its context ends and reports, once,
// that a search started.
type blocking struct {
	once    sync.Once
	started chan struct{}
}

func (b *blocking) Evaluate(ctx context.Context, pos *chess.Position, limits engine.Limits) (engine.Result, error) {
	b.once.Do(func() { close(b.started) })
	<-ctx.Done()
	return engine.Result{}, ctx.Err()
}

func (b *blocking) Close() error { return nil }

func TestRun_CancelAbandonsGameInFlight(t *testing.T) {
	ev := &blocking{started: make(chan struct{})}
	factory := func(ctx context.Context) (engine.Evaluator, error) { return ev, nil }
	r, err := New(factory, nil, WithWorkers(1), WithAnnotateOptions(annotate.WithTimeout(0)))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-ev.started
		cancel()
	}()

	games := make(chan *game.Game, 1)
	games <- newGame(t, "slow", "e4", "e5")
	rep, err := r.Run(ctx, games)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run() error = %v, want context.Canceled", err)
	}
	if rep.Attempted != 1 || rep.Reasons[ReasonCancelled] != 1 {
		t.Errorf("report = %+v, want one cancelled game", rep)
	}
	checkTotals(t, rep)
}

func TestRun_SharedCache(t *testing.T) {
	shared := scripted.New(scripted.WithFallback(scripted.Material))
	factory := func(ctx context.Context) (engine.Evaluator, error) { return shared, nil }
	cache, err := cached.NewCache(64, nil)
	if err != nil {
		t.Fatalf("NewCache() error = %v", err)
	}
	r, _ := New(factory, nil, WithWorkers(1), WithCache(cache))

	moves := []string{"c4", "e5", "Nc3", "Nf6"}
	rep, err := r.Run(context.Background(), queue(newGame(t, "1", moves...), newGame(t, "2", moves...)))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if rep.Classified != 2 {
		t.Fatalf("Classified = %d, want 2", rep.Classified)
	}
	if shared.Calls() != 5 {
		t.Errorf("evaluator calls = %d, want 5 with the second game cached", shared.Calls())
	}
	if cache.Stats().Hits != 5 {
		t.Errorf("cache hits = %d, want 5", cache.Stats().Hits)
	}
}

const archive = `[Event "One"]
[White "alice"]
[Black "bob"]
[Result "0-1"]

1. f3 e5 2. g4 Qh4# 0-1

[Event "Broken"]
[White "alice"]
[Black "carol"]
[Result "*"]

1. e4 e5 2. Ke3 Ke6 *

[Event "Two"]
[GameId "xyz"]
[White "frank"]
[Black "alice"]
[Result "1-0"]

1. e4 e5 2. Qh5 Nc6 3. Bc4 Nf6 4. Qxf7# 1-0
`

func TestRunSource(t *testing.T) {
	store := memstore.New()
	r, err := New(materialFactory, store, WithWorkers(2))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	rep, err := r.RunSource(context.Background(), pgn.NewReader(strings.NewReader(archive), "alice"))
	if err != nil {
		t.Fatalf("RunSource() error = %v", err)
	}
	if rep.Attempted != 3 || rep.Classified != 2 || rep.Reasons[ReasonMalformed] != 1 {
		t.Errorf("report = %+v, want 2 classified and 1 malformed", rep)
	}
	checkTotals(t, rep)
	if store.Len() != 2 {
		t.Errorf("store holds %d records, want 2", store.Len())
	}
}

func TestNew_NoFactory(t *testing.T) {
	if _, err := New(nil, nil); !errors.Is(err, ErrNoFactory) {
		t.Errorf("New(nil) error = %v, want ErrNoFactory", err)
	}
}
