package scoring

// Trait names one of the six personality scores.
type Trait string

const (
	Tactical   Trait = "tactical"
	Positional Trait = "positional"
	Aggressive Trait = "aggressive"
	Patient    Trait = "patient"
	Novelty    Trait = "novelty"
	Staleness  Trait = "staleness"
)

// Traits lists every trait in display order.
var Traits = []Trait{Tactical, Positional, Aggressive, Patient, Novelty, Staleness}

// OpposedPairs are the trait pairs expected to anti-correlate across a
// population. Each side is scored independently.
var OpposedPairs = [][2]Trait{
	{Aggressive, Patient},
	{Novelty, Staleness},
}

// KnownTrait reports whether t is one of Traits.
func KnownTrait(t Trait) bool {
	for _, k := range Traits {
		if k == t {
			return true
		}
	}
	return false
}
