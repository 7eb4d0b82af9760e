package scoring

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

var validate = validator.New()

// Transform shapes a metric before it is weighted.
type Transform string

const (
	Linear   Transform = "linear"
	Sqrt     Transform = "sqrt"
	Saturate Transform = "saturate"
)

// Apply maps x through the transform. Saturate computes x/(x+k).
func (t Transform) Apply(x, k float64) float64 {
	switch t {
	case Sqrt:
		return math.Sqrt(max(x, 0))
	case Saturate:
		if x+k <= 0 {
			return 0
		}
		return x / (x + k)
	}
	return x
}

// Term is one weighted input of a trait.
type Term struct {
	Metric    Metric    `yaml:"metric" json:"metric" validate:"required"`
	Weight    float64   `yaml:"weight" json:"weight"`
	Transform Transform `yaml:"transform,omitempty" json:"transform,omitempty" validate:"omitempty,oneof=linear sqrt saturate"`
	K         float64   `yaml:"k,omitempty" json:"k,omitempty" validate:"gte=0"`
}

// TraitWeights is the formula of one trait.
type TraitWeights struct {
	Base  float64 `yaml:"base" json:"base"`
	Terms []Term  `yaml:"terms" json:"terms" validate:"required,min=1,dive"`
}

// Defaults are the neutral values used for insufficient samples.
type Defaults struct {
	MinSample        int     `yaml:"min_sample" json:"min_sample" validate:"gte=1"`
	QueenlessConv    float64 `yaml:"queenless_conv" json:"queenless_conv" validate:"gte=0,lte=1"`
	EndgameDrawRate  float64 `yaml:"endgame_draw_rate" json:"endgame_draw_rate" validate:"gte=0,lte=1"`
	EndgameQuietRate float64 `yaml:"endgame_quiet_rate" json:"endgame_quiet_rate" validate:"gte=0,lte=1"`
	OpeningBreadth   float64 `yaml:"opening_breadth" json:"opening_breadth" validate:"gte=0,lte=1"`

	// CastleHorizon is the ply that counts as maximal castle delay.
	CastleHorizon int `yaml:"castle_horizon" json:"castle_horizon" validate:"gte=1"`

	// BookHorizon is the mean book length, in plies, that counts as
	// full book depth.
	BookHorizon int `yaml:"book_horizon" json:"book_horizon" validate:"gte=1"`
}

// Weights is a versioned scoring configuration. Scorers never share
// mutable weights, so two versions can be compared in one process.
type Weights struct {
	Version     string                 `yaml:"version" json:"version" validate:"required"`
	Description string                 `yaml:"description,omitempty" json:"description,omitempty"`
	Sources     []string               `yaml:"sources,omitempty" json:"sources,omitempty"`
	Defaults    Defaults               `yaml:"defaults" json:"defaults"`
	Traits      map[Trait]TraitWeights `yaml:"traits" json:"traits" validate:"required,dive"`
}

// Validate checks the struct tags, that every trait has a formula and
// that every term names a known metric.
func (w *Weights) Validate() error {
	if err := validate.Struct(w); err != nil {
		return fmt.Errorf("scoring: invalid weights: %w", err)
	}
	var errs []error
	for _, t := range Traits {
		if _, ok := w.Traits[t]; !ok {
			errs = append(errs, fmt.Errorf("scoring: weights %s: missing trait %s", w.Version, t))
		}
	}
	for t, tw := range w.Traits {
		if !KnownTrait(t) {
			errs = append(errs, fmt.Errorf("scoring: weights %s: unknown trait %q", w.Version, t))
		}
		for _, term := range tw.Terms {
			if !KnownMetric(term.Metric) {
				errs = append(errs, fmt.Errorf("scoring: weights %s: trait %s: unknown metric %q", w.Version, t, term.Metric))
			}
			if term.Transform == Saturate && term.K <= 0 {
				errs = append(errs, fmt.Errorf("scoring: weights %s: trait %s: saturate on %s needs k > 0", w.Version, t, term.Metric))
			}
		}
	}
	return errors.Join(errs...)
}

// ParseWeights decodes and validates YAML weights.
func ParseWeights(r io.Reader) (Weights, error) {
	var w Weights
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&w); err != nil {
		return Weights{}, fmt.Errorf("scoring: decoding weights: %w", err)
	}
	if err := w.Validate(); err != nil {
		return Weights{}, err
	}
	return w, nil
}

// LoadWeights reads weights from a YAML file.
func LoadWeights(path string) (Weights, error) {
	f, err := os.Open(path)
	if err != nil {
		return Weights{}, fmt.Errorf("scoring: %w", err)
	}
	defer f.Close()
	return ParseWeights(f)
}

// WriteYAML encodes w as YAML.
func (w Weights) WriteYAML(out io.Writer) error {
	enc := yaml.NewEncoder(out)
	enc.SetIndent(2)
	if err := enc.Encode(w); err != nil {
		return err
	}
	return enc.Close()
}

// DefaultDefaults returns the standard neutral values.
func DefaultDefaults() Defaults {
	return Defaults{
		MinSample:        3,
		QueenlessConv:    0.5,
		EndgameDrawRate:  0.5,
		EndgameQuietRate: 0.5,
		OpeningBreadth:   0.5,
		CastleHorizon:    40,
		BookHorizon:      16,
	}
}

// DefaultWeights returns the built-in weights.
func DefaultWeights() Weights {
	lin := func(m Metric, w float64) Term { return Term{Metric: m, Weight: w, Transform: Linear} }
	sat := func(m Metric, w, k float64) Term { return Term{Metric: m, Weight: w, Transform: Saturate, K: k} }

	return Weights{
		Version:     "v1",
		Description: "Initial hand-tuned coefficients.",
		Defaults:    DefaultDefaults(),
		Traits: map[Trait]TraitWeights{
			Tactical: {Base: 10, Terms: []Term{
				lin(BestRate, 40),
				lin(ErrorRate, -40),
				lin(BlunderRate, -20),
				lin(ForcingRate, 30),
				sat(BrilliantRate, 10, 0.2),
			}},
			Positional: {Base: 20, Terms: []Term{
				lin(QuietRate, 30),
				lin(MistakeRate, -30),
				sat(EarlyTradeRate, -10, 2),
				lin(EarlyQueenRate, -15),
				lin(QueenlessConv, 15),
				lin(BestRate, 10),
			}},
			Aggressive: {Base: 5, Terms: []Term{
				lin(ForcingRate, 45),
				lin(KingAttackRate, 25),
				sat(SacRate, 15, 0.5),
				sat(DoubleCheckRate, 5, 0.5),
				lin(FirstCheckRate, 10),
				lin(OppositeCastleRate, 5),
				lin(QuietStreakRate, -10),
			}},
			Patient: {Base: 15, Terms: []Term{
				lin(QuietRate, 35),
				lin(QuietStreakRate, 20),
				lin(CastleDelay, 10),
				lin(LongGameRate, 10),
				lin(EarlyQueenRate, -15),
				lin(KingAttackRate, -15),
				sat(SacRate, -10, 0.5),
			}},
			Novelty: {Base: 10, Terms: []Term{
				lin(OpeningBreadth, 35),
				lin(BookDeparture, 25),
				lin(EarlyQueenRate, 10),
				lin(DevelopmentLag, 15),
				lin(RepetitionRate, -10),
			}},
			Staleness: {Base: 10, Terms: []Term{
				lin(RepetitionRate, 30),
				lin(EndgameDrawRate, 25),
				lin(EndgameQuietRate, 20),
				lin(DrawRate, 10),
				lin(BookDepth, 10),
				lin(OpeningBreadth, -15),
			}},
		},
	}
}
