// Package calibration checks scoring weights against a roster of
// reference players with curated trait bands, and measures how strongly
// each trait reacts to small changes in its inputs. It only reads
// feature records; adjustments reach the scorer as reviewed weight edits.
package calibration

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/discochess/persona/internal/scoring"
)

// BandCheck compares one computed trait with its expected band.
type BandCheck struct {
	Trait    scoring.Trait `json:"trait"`
	Score    float64       `json:"score"`
	Low      float64       `json:"low"`
	High     float64       `json:"high"`
	Inside   bool          `json:"inside"`
	Distance float64       `json:"distance"`
}

// EntryResult is the outcome for one benchmark player.
type EntryResult struct {
	Name       string          `json:"name"`
	Confidence string          `json:"confidence"`
	Games      int             `json:"games"`
	Skipped    string          `json:"skipped,omitempty"`
	Profile    scoring.Profile `json:"profile"`
	Checks     []BandCheck     `json:"checks"`
}

// Inside returns how many checks fell inside their band.
func (e EntryResult) Inside() int {
	n := 0
	for _, c := range e.Checks {
		if c.Inside {
			n++
		}
	}
	return n
}

// Correlation is the population correlation of two traits.
type Correlation struct {
	A       scoring.Trait `json:"a"`
	B       scoring.Trait `json:"b"`
	R       float64       `json:"r"`
	N       int           `json:"n"`
	Defined bool          `json:"defined"`
}

// TraitSummary describes one trait across the scored roster.
type TraitSummary struct {
	Trait   scoring.Trait    `json:"trait"`
	Stats   DescriptiveStats `json:"stats"`
	Checked int              `json:"checked"`
	Inside  int              `json:"inside"`
}

// Report is the result of a harness run.
type Report struct {
	WeightsVersion string         `json:"weights_version"`
	RosterVersion  string         `json:"roster_version"`
	GeneratedAt    time.Time      `json:"generated_at"`
	Entries        []EntryResult  `json:"entries"`
	Correlations   []Correlation  `json:"correlations"`
	Traits         []TraitSummary `json:"traits"`
	Checked        int            `json:"checked"`
	Inside         int            `json:"inside"`
}

// HitRate returns the fraction of checks inside their band.
func (r *Report) HitRate() float64 {
	if r.Checked == 0 {
		return 0
	}
	return float64(r.Inside) / float64(r.Checked)
}

// Harness scores a roster with one version of the weights.
type Harness struct {
	scorer *scoring.Scorer
	logger *zap.Logger
	now    func() time.Time
}

// Option configures a Harness.
type Option func(*Harness)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(h *Harness) {
		h.logger = l
	}
}

// WithClock sets the time source used to stamp reports.
func WithClock(now func() time.Time) Option {
	return func(h *Harness) {
		h.now = now
	}
}

// NewHarness validates w and returns a harness for it.
func NewHarness(w scoring.Weights, opts ...Option) (*Harness, error) {
	s, err := scoring.NewScorer(w)
	if err != nil {
		return nil, err
	}
	h := &Harness{scorer: s, logger: zap.NewNop(), now: time.Now}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

// Run scores every roster entry from corpus and checks its bands.
func (h *Harness) Run(ctx context.Context, roster *Roster, corpus Corpus) (*Report, error) {
	rep := &Report{
		WeightsVersion: h.scorer.Weights().Version,
		RosterVersion:  roster.Version,
		GeneratedAt:    h.now().UTC(),
	}

	for _, entry := range roster.Entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		fs, err := corpus.Features(ctx, entry)
		if err != nil {
			return nil, fmt.Errorf("calibration: loading games of %s: %w", entry.Name, err)
		}

		res := EntryResult{Name: entry.Name, Confidence: entry.Confidence, Games: len(fs)}
		if len(fs) == 0 {
			res.Skipped = "no games"
			h.logger.Warn("benchmark player has no games", zap.String("name", entry.Name))
			rep.Entries = append(rep.Entries, res)
			continue
		}

		res.Profile = h.scorer.ScoreFeatures(fs)
		for _, t := range scoring.Traits {
			band, ok := entry.Bands[t]
			if !ok {
				continue
			}
			score := res.Profile.Score(t)
			res.Checks = append(res.Checks, BandCheck{
				Trait:    t,
				Score:    score,
				Low:      band.Low,
				High:     band.High,
				Inside:   band.Contains(score),
				Distance: band.Distance(score),
			})
		}
		rep.Checked += len(res.Checks)
		rep.Inside += res.Inside()
		rep.Entries = append(rep.Entries, res)

		h.logger.Debug("benchmark player scored",
			zap.String("name", entry.Name),
			zap.Int("games", len(fs)),
			zap.Int("inside", res.Inside()),
			zap.Int("checked", len(res.Checks)),
		)
	}

	rep.Traits = summarize(rep.Entries)
	rep.Correlations = correlate(rep.Entries)
	h.logger.Info("calibration run complete",
		zap.String("weights", rep.WeightsVersion),
		zap.Int("entries", len(rep.Entries)),
		zap.Float64("hit_rate", rep.HitRate()),
	)
	return rep, nil
}

// scores collects the trait scores of every scored entry.
func scores(entries []EntryResult, t scoring.Trait) []float64 {
	var out []float64
	for _, e := range entries {
		if e.Skipped == "" {
			out = append(out, e.Profile.Score(t))
		}
	}
	return out
}

func summarize(entries []EntryResult) []TraitSummary {
	out := make([]TraitSummary, 0, len(scoring.Traits))
	for _, t := range scoring.Traits {
		ts := TraitSummary{Trait: t, Stats: Describe(scores(entries, t))}
		for _, e := range entries {
			for _, c := range e.Checks {
				if c.Trait == t {
					ts.Checked++
					if c.Inside {
						ts.Inside++
					}
				}
			}
		}
		out = append(out, ts)
	}
	return out
}

func correlate(entries []EntryResult) []Correlation {
	var out []Correlation
	for _, pair := range scoring.OpposedPairs {
		x, y := scores(entries, pair[0]), scores(entries, pair[1])
		r, ok := Pearson(x, y)
		out = append(out, Correlation{A: pair[0], B: pair[1], R: r, N: len(x), Defined: ok})
	}
	return out
}

// TraitDelta compares one trait under two weight versions.
type TraitDelta struct {
	Trait      scoring.Trait `json:"trait"`
	BaseMean   float64       `json:"base_mean"`
	NewMean    float64       `json:"new_mean"`
	BaseInside int           `json:"base_inside"`
	NewInside  int           `json:"new_inside"`
	Effect     EffectSize    `json:"effect"`
}

// Comparison holds runs of the same roster under two weight versions.
type Comparison struct {
	Base      *Report      `json:"base"`
	Candidate *Report      `json:"candidate"`
	Traits    []TraitDelta `json:"traits"`
}

// Compare runs roster against corpus with base and candidate weights.
func Compare(ctx context.Context, roster *Roster, corpus Corpus, base, candidate scoring.Weights, opts ...Option) (*Comparison, error) {
	hb, err := NewHarness(base, opts...)
	if err != nil {
		return nil, err
	}
	hc, err := NewHarness(candidate, opts...)
	if err != nil {
		return nil, err
	}
	rb, err := hb.Run(ctx, roster, corpus)
	if err != nil {
		return nil, err
	}
	rc, err := hc.Run(ctx, roster, corpus)
	if err != nil {
		return nil, err
	}

	cmp := &Comparison{Base: rb, Candidate: rc}
	for i, t := range scoring.Traits {
		a, b := scores(rb.Entries, t), scores(rc.Entries, t)
		cmp.Traits = append(cmp.Traits, TraitDelta{
			Trait:      t,
			BaseMean:   rb.Traits[i].Stats.Mean,
			NewMean:    rc.Traits[i].Stats.Mean,
			BaseInside: rb.Traits[i].Inside,
			NewInside:  rc.Traits[i].Inside,
			Effect:     ComputeEffectSize(a, b),
		})
	}
	return cmp, nil
}
