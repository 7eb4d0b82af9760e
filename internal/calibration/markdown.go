package calibration

import (
	"fmt"
	"io"
	"math"
	"time"
)

// mdWriter remembers the first write error.
type mdWriter struct {
	w   io.Writer
	err error
}

func (m *mdWriter) printf(format string, args ...any) {
	if m.err == nil {
		_, m.err = fmt.Fprintf(m.w, format, args...)
	}
}

func (m *mdWriter) println(s string) {
	m.printf("%s\n", s)
}

func mark(ok bool) string {
	if ok {
		return "yes"
	}
	return "**no**"
}

// WriteMarkdown renders a calibration report.
func WriteMarkdown(w io.Writer, r *Report) error {
	md := &mdWriter{w: w}
	md.printf("# Calibration Report\n\n")
	md.printf("- **Weights:** %s\n", r.WeightsVersion)
	md.printf("- **Roster:** %s\n", r.RosterVersion)
	md.printf("- **Generated:** %s\n", r.GeneratedAt.Format(time.RFC3339))
	md.printf("- **Bands inside:** %d / %d (%.1f%%)\n\n", r.Inside, r.Checked, 100*r.HitRate())

	md.println("## Players")
	md.println("")
	md.println("| Player | Confidence | Games | Trait | Score | Band | Inside | Distance |")
	md.println("|--------|------------|-------|-------|-------|------|--------|----------|")
	for _, e := range r.Entries {
		if e.Skipped != "" {
			md.printf("| %s | %s | %d | - | - | - | skipped: %s | - |\n", e.Name, e.Confidence, e.Games, e.Skipped)
			continue
		}
		for _, c := range e.Checks {
			md.printf("| %s | %s | %d | %s | %.1f | %.0f-%.0f | %s | %.1f |\n",
				e.Name, e.Confidence, e.Games, c.Trait, c.Score, c.Low, c.High, mark(c.Inside), c.Distance)
		}
	}
	md.println("")

	md.println("## Traits")
	md.println("")
	md.println("| Trait | N | Mean | Median | Std Dev | Min | Max | Inside |")
	md.println("|-------|---|------|--------|---------|-----|-----|--------|")
	for _, t := range r.Traits {
		md.printf("| %s | %d | %.1f | %.1f | %.1f | %.1f | %.1f | %d / %d |\n",
			t.Trait, t.Stats.N, t.Stats.Mean, t.Stats.Median, t.Stats.StdDev, t.Stats.Min, t.Stats.Max, t.Inside, t.Checked)
	}
	md.println("")

	md.println("## Opposed Pairs")
	md.println("")
	for _, c := range r.Correlations {
		if !c.Defined {
			md.printf("- %s / %s: undefined (n=%d)\n", c.A, c.B, c.N)
			continue
		}
		verdict := "negative"
		if c.R >= 0 {
			verdict = "**not negative**"
		}
		md.printf("- %s / %s: r=%.3f (n=%d, %s)\n", c.A, c.B, c.R, c.N, verdict)
	}
	md.println("")
	return md.err
}

// WriteSensitivityMarkdown renders a sensitivity table. Rows above limit
// are flagged; a limit of zero uses DefaultElasticityLimit.
func WriteSensitivityMarkdown(w io.Writer, t Table, limit float64) error {
	if limit <= 0 {
		limit = DefaultElasticityLimit
	}
	md := &mdWriter{w: w}
	md.printf("# Sensitivity (%+.0f%%, weights %s)\n\n", 100*t.Pct, t.WeightsVersion)
	md.println("| Metric | Trait | Input | Shifted | Before | After | Delta | Flag |")
	md.println("|--------|-------|-------|---------|--------|-------|-------|------|")
	for _, r := range t.Rows {
		flag := ""
		switch {
		case r.Extreme:
			flag = "extreme"
		case math.Abs(r.Delta) > limit:
			flag = "**over limit**"
		}
		md.printf("| %s | %s | %.3f | %.3f | %.1f | %.1f | %+.2f | %s |\n",
			r.Metric, r.Trait, r.Input, r.Shifted, r.Before, r.After, r.Delta, flag)
	}
	md.println("")
	md.printf("Violations: %d (limit %.1f points)\n", len(t.Violations(limit)), limit)
	return md.err
}

// WriteComparisonMarkdown renders two weight versions side by side.
func WriteComparisonMarkdown(w io.Writer, c *Comparison) error {
	md := &mdWriter{w: w}
	md.printf("# Weights %s vs %s\n\n", c.Base.WeightsVersion, c.Candidate.WeightsVersion)
	md.printf("- **Bands inside:** %d -> %d of %d\n\n", c.Base.Inside, c.Candidate.Inside, c.Base.Checked)
	md.println("| Trait | Mean | New Mean | Inside | New Inside | Cohen's d |")
	md.println("|-------|------|----------|--------|------------|-----------|")
	for _, t := range c.Traits {
		md.printf("| %s | %.1f | %.1f | %d | %d | %.2f (%s) |\n",
			t.Trait, t.BaseMean, t.NewMean, t.BaseInside, t.NewInside, t.Effect.CohensD, t.Effect.Interpretation)
	}
	md.println("")
	return md.err
}
