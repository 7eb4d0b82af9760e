package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/discochess/persona/internal/aggregate"
	"github.com/discochess/persona/internal/calibration"
	"github.com/discochess/persona/internal/featurestore"
	"github.com/discochess/persona/internal/scoring"
)

var sensitivityCmd = &cobra.Command{
	Use:   "sensitivity",
	Short: "Measure how far trait scores move when one metric shifts",
	Long: `Shift each metric of a baseline by --pct, one at a time, and report
the change of every trait that reads it. Rows whose change exceeds
--limit points are flagged unless the trait already sits at an extreme.

The baseline is the stored games of --user, or every metric at 0.5.

Examples:
  persona sensitivity --pct 0.1
  persona sensitivity --user alice --metrics sac_rate,king_attack_rate --strict`,
	RunE: runSensitivity,
}

var (
	sensUser     string
	sensPlatform string
	sensPct      float64
	sensLimit    float64
	sensMetrics  []string
	sensOut      string
	sensJSON     bool
	sensStrict   bool
)

func init() {
	sensitivityCmd.Flags().StringVarP(&sensUser, "user", "u", "", "use this player's stored games as the baseline")
	sensitivityCmd.Flags().StringVar(&sensPlatform, "platform", "", "only use games from this platform")
	sensitivityCmd.Flags().Float64Var(&sensPct, "pct", 0.1, "relative perturbation of each metric")
	sensitivityCmd.Flags().Float64Var(&sensLimit, "limit", calibration.DefaultElasticityLimit, "largest acceptable change in points")
	sensitivityCmd.Flags().StringSliceVar(&sensMetrics, "metrics", nil, "metrics to perturb (default: all)")
	sensitivityCmd.Flags().StringVarP(&sensOut, "out", "o", "-", "report output path")
	sensitivityCmd.Flags().BoolVar(&sensJSON, "json", false, "write the table as JSON instead of Markdown")
	sensitivityCmd.Flags().BoolVar(&sensStrict, "strict", false, "fail when any row exceeds the limit")
	rootCmd.AddCommand(sensitivityCmd)
}

func runSensitivity(cmd *cobra.Command, args []string) error {
	logger, err := newLogger()
	if err != nil {
		return err
	}
	defer logger.Sync()

	weights, err := loadWeights()
	if err != nil {
		return err
	}

	baseline := make(scoring.Metrics, len(scoring.AllMetrics))
	for _, m := range scoring.AllMetrics {
		baseline[m] = 0.5
	}
	if sensUser != "" {
		store, err := openStore(logger)
		if err != nil {
			return err
		}
		fs, err := store.List(cmd.Context(), featurestore.Query{User: sensUser, Platform: sensPlatform})
		store.Close()
		if err != nil {
			return err
		}
		if len(fs) == 0 {
			return fmt.Errorf("no stored games for %q", sensUser)
		}
		baseline = scoring.MetricsFrom(aggregate.Fold(fs), weights.Defaults)
	}

	metrics := make([]scoring.Metric, len(sensMetrics))
	for i, m := range sensMetrics {
		metrics[i] = scoring.Metric(m)
	}
	table, err := calibration.Sensitivity(baseline, weights, metrics, sensPct)
	if err != nil {
		return err
	}

	out, err := createOutput(sensOut)
	if err != nil {
		return err
	}
	defer out.Close()
	if sensJSON {
		err = printJSON(out, table)
	} else {
		err = calibration.WriteSensitivityMarkdown(out, table, sensLimit)
	}
	if err != nil {
		return err
	}

	if v := table.Violations(sensLimit); sensStrict && len(v) > 0 {
		return fmt.Errorf("%d rows exceed %.1f points", len(v), sensLimit)
	}
	return nil
}
