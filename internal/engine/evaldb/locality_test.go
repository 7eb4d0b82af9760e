package evaldb

import (
	"math"
	"testing"

	"github.com/notnil/chess"
)

func gamePositions(t *testing.T, moves ...string) []*chess.Position {
	t.Helper()
	g := chess.NewGame()
	for _, m := range moves {
		if err := g.MoveStr(m); err != nil {
			t.Fatalf("MoveStr(%q) error = %v", m, err)
		}
	}
	return g.Positions()
}

func TestSimulateLocality_Material(t *testing.T) {
	game := gamePositions(t, "e4", "e5", "Nf3", "Nc6")
	results, err := SimulateLocality([][]*chess.Position{game, game}, 32768, 2, Material{})
	if err != nil {
		t.Fatalf("SimulateLocality() error = %v", err)
	}
	got := results[0]

	// No captures: every position shares one material shard.
	want := Locality{
		Strategy:           "material",
		Games:              2,
		Lookups:            10,
		Switches:           2,
		UniqueShards:       1,
		AvgSwitchesPerGame: 1,
		MedianSwitches:     1,
		P90Switches:        1,
		Concentration:      0,
		CacheHitRate:       0.9,
	}
	if math.Abs(got.Concentration-want.Concentration) > 1e-9 {
		t.Errorf("Concentration = %v, want %v", got.Concentration, want.Concentration)
	}
	got.Concentration = want.Concentration
	if got != want {
		t.Errorf("SimulateLocality() = %+v, want %+v", got, want)
	}
}

func TestSimulateLocality_StrategiesInOrder(t *testing.T) {
	game := gamePositions(t, "d4", "d5", "c4", "dxc4")
	results, err := SimulateLocality([][]*chess.Position{game}, 1024, 16, Material{}, FNV{})
	if err != nil {
		t.Fatalf("SimulateLocality() error = %v", err)
	}
	if len(results) != 2 || results[0].Strategy != "material" || results[1].Strategy != "fnv32" {
		t.Fatalf("SimulateLocality() strategies = %+v", results)
	}
	for _, r := range results {
		if r.Lookups != 5 {
			t.Errorf("%s: Lookups = %d, want 5", r.Strategy, r.Lookups)
		}
		if r.UniqueShards > r.Lookups || r.Switches < r.UniqueShards {
			t.Errorf("%s: UniqueShards = %d, Switches = %d", r.Strategy, r.UniqueShards, r.Switches)
		}
	}
}

func TestSimulateLocality_InvalidSizes(t *testing.T) {
	if _, err := SimulateLocality(nil, 0, 4, FNV{}); err == nil {
		t.Error("SimulateLocality(totalShards=0) should fail")
	}
	if _, err := SimulateLocality(nil, 8, 0, FNV{}); err == nil {
		t.Error("SimulateLocality(cacheShards=0) should fail")
	}
}
