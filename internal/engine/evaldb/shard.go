package evaldb

import (
	"fmt"

	"github.com/notnil/chess"

	"github.com/discochess/persona/internal/engine"
)

// Strategy maps positions to shard IDs.
type Strategy interface {
	// Name is recorded in the manifest.
	Name() string

	// ShardID returns a value in [0, totalShards). Positions that differ
	// only in move counters map to the same shard.
	ShardID(pos *chess.Position, totalShards int) int
}

// StrategyByName returns the strategy recorded under name in a manifest.
func StrategyByName(name string) (Strategy, error) {
	switch name {
	case "material":
		return Material{}, nil
	case "fnv32":
		return FNV{}, nil
	}
	return nil, fmt.Errorf("evaldb: unknown shard strategy %q", name)
}

// Material groups positions by piece counts, so consecutive positions of
// a game tend to land in the same shard.
//
// The pre-modulo ID packs, three bits each, white and black queens, white
// and black rooks, white and black minor pieces, then the side to move in
// bit 18.
type Material struct{}

// Name returns "material".
func (Material) Name() string { return "material" }

// ShardID computes the material shard for pos.
func (Material) ShardID(pos *chess.Position, totalShards int) int {
	var counts [2][7]int
	for _, p := range pos.Board().SquareMap() {
		counts[colorIndex(p.Color())][p.Type()]++
	}

	field := func(n int) uint32 { return uint32(min(n, 7)) }
	w, b := counts[0], counts[1]

	var id uint32
	id |= field(w[chess.Queen]) << 0
	id |= field(b[chess.Queen]) << 3
	id |= field(w[chess.Rook]) << 6
	id |= field(b[chess.Rook]) << 9
	id |= field(w[chess.Bishop]+w[chess.Knight]) << 12
	id |= field(b[chess.Bishop]+b[chess.Knight]) << 15
	if pos.Turn() == chess.Black {
		id |= 1 << 18
	}
	return int(id % uint32(totalShards))
}

// FNV spreads positions uniformly by hashing the normalized FEN.
type FNV struct{}

// Name returns "fnv32".
func (FNV) Name() string { return "fnv32" }

// ShardID hashes the position key with FNV-1a.
func (FNV) ShardID(pos *chess.Position, totalShards int) int {
	return int(fnv1a32(engine.PositionKey(pos)) % uint32(totalShards))
}

func fnv1a32(s string) uint32 {
	h := uint32(2166136261)
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= 16777619
	}
	return h
}

func colorIndex(c chess.Color) int {
	if c == chess.Black {
		return 1
	}
	return 0
}
