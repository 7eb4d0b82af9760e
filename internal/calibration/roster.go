package calibration

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/discochess/persona/internal/scoring"
)

var validate = validator.New()

// Band is an expected score range for one trait, inclusive.
type Band struct {
	Low  float64 `yaml:"low" json:"low" validate:"gte=0,lte=100"`
	High float64 `yaml:"high" json:"high" validate:"gte=0,lte=100,gtefield=Low"`
}

// Contains reports whether score lies inside the band.
func (b Band) Contains(score float64) bool {
	return score >= b.Low && score <= b.High
}

// Distance returns how far score lies outside the band, or 0 inside it.
func (b Band) Distance(score float64) float64 {
	switch {
	case score < b.Low:
		return b.Low - score
	case score > b.High:
		return score - b.High
	}
	return 0
}

// BenchmarkEntry is a reference player with curated trait bands.
type BenchmarkEntry struct {
	Name string `yaml:"name" json:"name" validate:"required"`

	// User and Platform locate the player's games in the corpus. User
	// defaults to Name.
	User     string `yaml:"user,omitempty" json:"user,omitempty"`
	Platform string `yaml:"platform,omitempty" json:"platform,omitempty"`

	Era         string `yaml:"era,omitempty" json:"era,omitempty"`
	SourceGames int    `yaml:"source_games" json:"source_games" validate:"gte=0"`
	Confidence  string `yaml:"confidence" json:"confidence" validate:"required,oneof=low medium high"`
	Style       string `yaml:"style,omitempty" json:"style,omitempty"`

	Bands map[scoring.Trait]Band `yaml:"bands" json:"bands" validate:"required,min=1,dive"`
}

// Username returns the corpus user of the entry.
func (e BenchmarkEntry) Username() string {
	if e.User != "" {
		return e.User
	}
	return e.Name
}

// Roster is a versioned list of benchmark players.
type Roster struct {
	Version string           `yaml:"version" json:"version" validate:"required"`
	Entries []BenchmarkEntry `yaml:"entries" json:"entries" validate:"required,min=1,dive"`
}

// Validate checks the struct tags, trait names and name uniqueness.
func (r *Roster) Validate() error {
	if err := validate.Struct(r); err != nil {
		return fmt.Errorf("calibration: invalid roster: %w", err)
	}
	var errs []error
	seen := make(map[string]bool, len(r.Entries))
	for _, e := range r.Entries {
		if seen[e.Name] {
			errs = append(errs, fmt.Errorf("calibration: roster %s: duplicate entry %q", r.Version, e.Name))
		}
		seen[e.Name] = true
		for t := range e.Bands {
			if !scoring.KnownTrait(t) {
				errs = append(errs, fmt.Errorf("calibration: roster %s: %s: unknown trait %q", r.Version, e.Name, t))
			}
		}
	}
	return errors.Join(errs...)
}

// ParseRoster decodes and validates a YAML roster.
func ParseRoster(r io.Reader) (*Roster, error) {
	var roster Roster
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&roster); err != nil {
		return nil, fmt.Errorf("calibration: decoding roster: %w", err)
	}
	if err := roster.Validate(); err != nil {
		return nil, err
	}
	return &roster, nil
}

// LoadRoster reads a roster file.
func LoadRoster(path string) (*Roster, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("calibration: %w", err)
	}
	defer f.Close()
	return ParseRoster(f)
}
