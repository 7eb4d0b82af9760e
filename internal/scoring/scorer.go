// Package scoring turns aggregated game features into six bounded trait
// scores. Each trait is its own weighted formula with recorded
// provenance, so a coefficient edit to one trait never reaches another.
package scoring

import (
	"math"

	"github.com/discochess/persona/internal/aggregate"
	"github.com/discochess/persona/internal/features"
)

// Contribution records how one term moved a trait.
type Contribution struct {
	Metric    Metric    `json:"metric"`
	Value     float64   `json:"value"`
	Weight    float64   `json:"weight"`
	Transform Transform `json:"transform"`
	Points    float64   `json:"points"`
}

// TraitScore is one clamped trait with its provenance.
type TraitScore struct {
	Trait         Trait          `json:"trait"`
	Score         float64        `json:"score"`
	Raw           float64        `json:"raw"`
	Base          float64        `json:"base"`
	Contributions []Contribution `json:"contributions"`
}

// Profile holds the six trait scores of a player or a game.
type Profile struct {
	WeightsVersion string       `json:"weights_version"`
	Games          int          `json:"games"`
	Traits         []TraitScore `json:"traits"`
}

// Trait returns the score of t.
func (p Profile) Trait(t Trait) (TraitScore, bool) {
	for _, ts := range p.Traits {
		if ts.Trait == t {
			return ts, true
		}
	}
	return TraitScore{}, false
}

// Score returns the clamped score of t, or 0 if t is absent.
func (p Profile) Score(t Trait) float64 {
	ts, _ := p.Trait(t)
	return ts.Score
}

// Scores returns the clamped scores keyed by trait.
func (p Profile) Scores() map[Trait]float64 {
	out := make(map[Trait]float64, len(p.Traits))
	for _, ts := range p.Traits {
		out[ts.Trait] = ts.Score
	}
	return out
}

// Clamp bounds x to [0,100]. NaN maps to 0.
func Clamp(x float64) float64 {
	switch {
	case math.IsNaN(x), x < 0:
		return 0
	case x > 100:
		return 100
	}
	return x
}

// Scorer applies one version of the weights. It is immutable and safe for
// concurrent use.
type Scorer struct {
	weights Weights
}

// NewScorer validates w and returns a scorer for it.
func NewScorer(w Weights) (*Scorer, error) {
	if err := w.Validate(); err != nil {
		return nil, err
	}
	return &Scorer{weights: w}, nil
}

// Weights returns the weights in use.
func (s *Scorer) Weights() Weights {
	return s.weights
}

// Score computes every trait from m. Metrics missing from m count as 0.
func (s *Scorer) Score(m Metrics) Profile {
	p := Profile{
		WeightsVersion: s.weights.Version,
		Traits:         make([]TraitScore, 0, len(Traits)),
	}
	for _, t := range Traits {
		p.Traits = append(p.Traits, s.ScoreTrait(t, m))
	}
	return p
}

// ScoreTrait computes a single trait from m.
func (s *Scorer) ScoreTrait(t Trait, m Metrics) TraitScore {
	tw := s.weights.Traits[t]
	ts := TraitScore{
		Trait:         t,
		Base:          tw.Base,
		Raw:           tw.Base,
		Contributions: make([]Contribution, 0, len(tw.Terms)),
	}
	for _, term := range tw.Terms {
		v := m[term.Metric]
		tr := term.Transform
		if tr == "" {
			tr = Linear
		}
		points := term.Weight * tr.Apply(v, term.K)
		ts.Raw += points
		ts.Contributions = append(ts.Contributions, Contribution{
			Metric:    term.Metric,
			Value:     v,
			Weight:    term.Weight,
			Transform: tr,
			Points:    points,
		})
	}
	ts.Score = Clamp(ts.Raw)
	return ts
}

// Inputs returns the metrics feeding t, in formula order.
func (s *Scorer) Inputs(t Trait) []Metric {
	var out []Metric
	for _, term := range s.weights.Traits[t].Terms {
		out = append(out, term.Metric)
	}
	return out
}

// ScoreAggregate scores a folded aggregate.
func (s *Scorer) ScoreAggregate(a aggregate.Aggregate) Profile {
	p := s.Score(MetricsFrom(a, s.weights.Defaults))
	p.Games = a.Games
	return p
}

// ScoreFeatures folds fs and scores the result.
func (s *Scorer) ScoreFeatures(fs []features.GameFeatures) Profile {
	return s.ScoreAggregate(aggregate.Fold(fs))
}
