package calibration

import (
	"fmt"
	"math"

	"github.com/discochess/persona/internal/scoring"
)

// DefaultElasticityLimit is the largest tolerated trait delta, in score
// points, for a 10% perturbation of one input.
const DefaultElasticityLimit = 8.0

// MaxPerturbation bounds the relative change Sensitivity applies.
const MaxPerturbation = 0.5

// Row is the effect of perturbing one metric on one trait.
type Row struct {
	Metric  scoring.Metric `json:"metric"`
	Trait   scoring.Trait  `json:"trait"`
	Input   float64        `json:"input"`
	Shifted float64        `json:"shifted"`
	Before  float64        `json:"before"`
	After   float64        `json:"after"`
	Delta   float64        `json:"delta"`

	// Extreme marks a baseline score at or beyond 95 or 5, where
	// clamping distorts the delta.
	Extreme bool `json:"extreme"`
}

// Table is the result of a sensitivity sweep.
type Table struct {
	WeightsVersion string  `json:"weights_version"`
	Pct            float64 `json:"pct"`
	Rows           []Row   `json:"rows"`
}

// Violations returns the non-extreme rows whose delta exceeds limit in
// magnitude. A limit of zero or less uses DefaultElasticityLimit.
func (t Table) Violations(limit float64) []Row {
	if limit <= 0 {
		limit = DefaultElasticityLimit
	}
	var out []Row
	for _, r := range t.Rows {
		if !r.Extreme && math.Abs(r.Delta) > limit {
			out = append(out, r)
		}
	}
	return out
}

// MaxDelta returns the row with the largest absolute delta.
func (t Table) MaxDelta() (Row, bool) {
	var best Row
	found := false
	for _, r := range t.Rows {
		if !found || math.Abs(r.Delta) > math.Abs(best.Delta) {
			best, found = r, true
		}
	}
	return best, found
}

// Sensitivity perturbs each metric of baseline by pct, one at a time,
// and records the change of every trait fed by it. Perturbed values are
// clamped to [0,1]. An empty metrics list sweeps every metric.
func Sensitivity(baseline scoring.Metrics, w scoring.Weights, metrics []scoring.Metric, pct float64) (Table, error) {
	if math.IsNaN(pct) || math.Abs(pct) > MaxPerturbation {
		return Table{}, fmt.Errorf("calibration: perturbation %v outside ±%v", pct, MaxPerturbation)
	}
	if err := baseline.Validate(); err != nil {
		return Table{}, err
	}
	s, err := scoring.NewScorer(w)
	if err != nil {
		return Table{}, err
	}
	if len(metrics) == 0 {
		metrics = scoring.AllMetrics
	}

	// feeds maps each metric to the traits that read it.
	feeds := make(map[scoring.Metric][]scoring.Trait)
	for _, t := range scoring.Traits {
		seen := make(map[scoring.Metric]bool)
		for _, m := range s.Inputs(t) {
			if !seen[m] {
				feeds[m] = append(feeds[m], t)
				seen[m] = true
			}
		}
	}

	base := s.Score(baseline)
	table := Table{WeightsVersion: w.Version, Pct: pct}
	for _, m := range metrics {
		if !scoring.KnownMetric(m) {
			return Table{}, fmt.Errorf("calibration: unknown metric %q", m)
		}
		traits, ok := feeds[m]
		if !ok {
			continue
		}
		shifted := baseline.Clone()
		shifted[m] = math.Min(1, math.Max(0, baseline[m]*(1+pct)))

		for _, t := range traits {
			before := base.Score(t)
			after := s.ScoreTrait(t, shifted).Score
			table.Rows = append(table.Rows, Row{
				Metric:  m,
				Trait:   t,
				Input:   baseline[m],
				Shifted: shifted[m],
				Before:  before,
				After:   after,
				Delta:   after - before,
				Extreme: before >= 95 || before <= 5,
			})
		}
	}
	return table, nil
}
