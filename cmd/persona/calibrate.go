package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/discochess/persona/internal/calibration"
	"github.com/discochess/persona/internal/scoring"
)

var calibrateCmd = &cobra.Command{
	Use:   "calibrate",
	Short: "Check trait scores against a benchmark roster",
	Long: `Score every roster player from their stored games and report which
traits land inside the expected bands, along with the correlation of
opposed traits across the roster.

With --compare the roster is scored twice, once with --weights (or the
built-in weights) and once with the candidate, and the per-trait change
in band hits is reported.

Examples:
  persona calibrate --roster roster.yaml

  # Compare a candidate weights file
  persona calibrate --roster roster.yaml --compare weights-v2.yaml --out compare.md`,
	RunE: runCalibrate,
}

var (
	rosterPath     string
	compareWeights string
	calibrateOut   string
	calibrateJSON  bool
)

func init() {
	calibrateCmd.Flags().StringVar(&rosterPath, "roster", "", "benchmark roster YAML (required)")
	calibrateCmd.Flags().StringVar(&compareWeights, "compare", "", "candidate weights YAML to compare against")
	calibrateCmd.Flags().StringVarP(&calibrateOut, "out", "o", "-", "report output path")
	calibrateCmd.Flags().BoolVar(&calibrateJSON, "json", false, "write the report as JSON instead of Markdown")
	_ = calibrateCmd.MarkFlagRequired("roster")
	rootCmd.AddCommand(calibrateCmd)
}

func runCalibrate(cmd *cobra.Command, args []string) error {
	logger, err := newLogger()
	if err != nil {
		return err
	}
	defer logger.Sync()

	roster, err := calibration.LoadRoster(rosterPath)
	if err != nil {
		return err
	}
	weights, err := loadWeights()
	if err != nil {
		return err
	}
	store, err := openStore(logger)
	if err != nil {
		return err
	}
	defer store.Close()

	corpus := calibration.NewStoreCorpus(store)
	opts := []calibration.Option{calibration.WithLogger(logger.Named("calibration"))}

	out, err := createOutput(calibrateOut)
	if err != nil {
		return err
	}
	defer out.Close()

	if compareWeights != "" {
		candidate, err := scoring.LoadWeights(compareWeights)
		if err != nil {
			return err
		}
		cmp, err := calibration.Compare(cmd.Context(), roster, corpus, weights, candidate, opts...)
		if err != nil {
			return err
		}
		if calibrateJSON {
			return printJSON(out, cmp)
		}
		return calibration.WriteComparisonMarkdown(out, cmp)
	}

	h, err := calibration.NewHarness(weights, opts...)
	if err != nil {
		return err
	}
	report, err := h.Run(cmd.Context(), roster, corpus)
	if err != nil {
		return err
	}
	if calibrateJSON {
		return printJSON(out, report)
	}
	if err := calibration.WriteMarkdown(out, report); err != nil {
		return err
	}
	if calibrateOut != "-" && calibrateOut != "" {
		fmt.Printf("%d of %d checks inside their band (%.0f%%)\n", report.Inside, report.Checked, 100*report.HitRate())
	}
	return nil
}
