package calibration

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// DescriptiveStats summarizes a sample of trait scores.
type DescriptiveStats struct {
	N      int     `json:"n"`
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	StdDev float64 `json:"std_dev"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	P25    float64 `json:"p25"`
	P75    float64 `json:"p75"`
}

// Describe computes descriptive statistics for sample.
func Describe(sample []float64) DescriptiveStats {
	if len(sample) == 0 {
		return DescriptiveStats{}
	}

	sorted := append([]float64(nil), sample...)
	sort.Float64s(sorted)

	d := DescriptiveStats{
		N:      len(sorted),
		Mean:   stat.Mean(sorted, nil),
		Median: stat.Quantile(0.5, stat.Empirical, sorted, nil),
		Min:    sorted[0],
		Max:    sorted[len(sorted)-1],
		P25:    stat.Quantile(0.25, stat.Empirical, sorted, nil),
		P75:    stat.Quantile(0.75, stat.Empirical, sorted, nil),
	}
	if len(sorted) > 1 {
		d.StdDev = stat.StdDev(sorted, nil)
	}
	return d
}

// Pearson returns the correlation of x and y. ok is false when fewer than
// three pairs exist or either side has no variance.
func Pearson(x, y []float64) (r float64, ok bool) {
	if len(x) != len(y) || len(x) < 3 {
		return 0, false
	}
	r = stat.Correlation(x, y, nil)
	if math.IsNaN(r) || math.IsInf(r, 0) {
		return 0, false
	}
	return r, true
}

// EffectSize is Cohen's d between two samples.
type EffectSize struct {
	CohensD        float64 `json:"cohens_d"`
	Interpretation string  `json:"interpretation"`
}

// ComputeEffectSize computes Cohen's d of b relative to a.
func ComputeEffectSize(a, b []float64) EffectSize {
	if len(a) < 2 || len(b) < 2 {
		return EffectSize{Interpretation: "undefined"}
	}

	meanA, stdA := stat.MeanStdDev(a, nil)
	meanB, stdB := stat.MeanStdDev(b, nil)

	na, nb := float64(len(a)), float64(len(b))
	pooled := math.Sqrt(((na-1)*stdA*stdA + (nb-1)*stdB*stdB) / (na + nb - 2))

	var d float64
	if pooled > 0 {
		d = (meanB - meanA) / pooled
	}
	return EffectSize{CohensD: d, Interpretation: interpretCohensD(math.Abs(d))}
}

func interpretCohensD(d float64) string {
	switch {
	case d < 0.2:
		return "negligible"
	case d < 0.5:
		return "small"
	case d < 0.8:
		return "medium"
	default:
		return "large"
	}
}
