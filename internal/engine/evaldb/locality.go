package evaldb

import (
	"fmt"
	"sort"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/notnil/chess"
	"gonum.org/v1/gonum/stat"
)

// Locality measures how well a strategy keeps the positions of one game
// in few shards, which decides how often a DB decodes a shard.
type Locality struct {
	Strategy           string  `json:"strategy"`
	Games              int     `json:"games"`
	Lookups            int     `json:"lookups"`
	Switches           int     `json:"switches"`
	UniqueShards       int     `json:"unique_shards"`
	AvgSwitchesPerGame float64 `json:"avg_switches_per_game"`
	MedianSwitches     float64 `json:"median_switches"`
	P90Switches        float64 `json:"p90_switches"`

	// Concentration is the Gini coefficient of shard usage.
	Concentration float64 `json:"concentration"`

	// CacheHitRate is the fraction of lookups served by an LRU of decoded
	// shards of the simulated size.
	CacheHitRate float64 `json:"cache_hit_rate"`
}

// SimulateLocality replays the positions of each game, in order, against
// every strategy with the given shard count and shard cache size.
func SimulateLocality(games [][]*chess.Position, totalShards, cacheShards int, strategies ...Strategy) ([]Locality, error) {
	if totalShards <= 0 || cacheShards <= 0 {
		return nil, fmt.Errorf("evaldb: locality needs positive shard and cache sizes, got %d and %d", totalShards, cacheShards)
	}
	out := make([]Locality, 0, len(strategies))
	for _, s := range strategies {
		cache, err := lru.New[int, struct{}](cacheShards)
		if err != nil {
			return nil, err
		}
		l := Locality{Strategy: s.Name(), Games: len(games)}
		hits := make(map[int]int)
		perGame := make([]float64, 0, len(games))
		cached := 0

		for _, g := range games {
			last, switches := -1, 0
			for _, pos := range g {
				id := s.ShardID(pos, totalShards)
				hits[id]++
				if id != last {
					switches++
					last = id
				}
				if _, ok := cache.Get(id); ok {
					cached++
				} else {
					cache.Add(id, struct{}{})
				}
			}
			l.Lookups += len(g)
			l.Switches += switches
			perGame = append(perGame, float64(switches))
		}

		l.UniqueShards = len(hits)
		if len(perGame) > 0 {
			l.AvgSwitchesPerGame = float64(l.Switches) / float64(len(perGame))
			sort.Float64s(perGame)
			l.MedianSwitches = stat.Quantile(0.5, stat.Empirical, perGame, nil)
			l.P90Switches = stat.Quantile(0.9, stat.Empirical, perGame, nil)
		}
		if l.Lookups > 0 {
			l.CacheHitRate = float64(cached) / float64(l.Lookups)
		}
		l.Concentration = gini(hits)
		out = append(out, l)
	}
	return out, nil
}

func gini(hits map[int]int) float64 {
	if len(hits) == 0 {
		return 0
	}
	values := make([]int, 0, len(hits))
	for _, v := range hits {
		values = append(values, v)
	}
	sort.Ints(values)

	n := float64(len(values))
	var sum, weighted float64
	for i, v := range values {
		sum += float64(v)
		weighted += float64(i+1) * float64(v)
	}
	if sum == 0 {
		return 0
	}
	return (2*weighted)/(n*sum) - (n+1)/n
}
