package main

import (
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/discochess/persona"
	"github.com/discochess/persona/internal/scoring"
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Show a player's trait profile",
	Long: `Score the six traits from every stored game of a player.

Examples:
  persona profile --user alice

  # Show how each metric contributed
  persona profile --user alice --explain`,
	RunE: runProfile,
}

var (
	profileUser     string
	profilePlatform string
	profileJSON     bool
	profileExplain  bool
)

func init() {
	profileCmd.Flags().StringVarP(&profileUser, "user", "u", "", "player to profile (required)")
	profileCmd.Flags().StringVar(&profilePlatform, "platform", "", "only use games from this platform")
	profileCmd.Flags().BoolVar(&profileJSON, "json", false, "output the profile as JSON")
	profileCmd.Flags().BoolVar(&profileExplain, "explain", false, "show per-metric contributions")
	_ = profileCmd.MarkFlagRequired("user")
	rootCmd.AddCommand(profileCmd)
}

func runProfile(cmd *cobra.Command, args []string) error {
	logger, err := newLogger()
	if err != nil {
		return err
	}
	defer logger.Sync()

	weights, err := loadWeights()
	if err != nil {
		return err
	}
	store, err := openStore(logger)
	if err != nil {
		return err
	}
	a, err := persona.New(
		persona.WithFeatureStore(store),
		persona.WithWeights(weights),
		persona.WithLogger(logger),
	)
	if err != nil {
		store.Close()
		return err
	}
	defer a.Close()

	p, err := a.Profile(cmd.Context(), profileUser, profilePlatform)
	if errors.Is(err, persona.ErrNoGames) {
		return fmt.Errorf("no stored games for %q; run 'persona analyze' first", profileUser)
	}
	if err != nil {
		return err
	}

	if profileJSON {
		return printJSON(os.Stdout, p)
	}
	printProfile(p)
	return nil
}

func printProfile(p scoring.Profile) {
	fmt.Printf("Games:   %d\n", p.Games)
	fmt.Printf("Weights: %s\n\n", p.WeightsVersion)

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TRAIT\tSCORE\tRAW")
	for _, ts := range p.Traits {
		fmt.Fprintf(tw, "%s\t%.1f\t%.2f\n", ts.Trait, ts.Score, ts.Raw)
		if !profileExplain {
			continue
		}
		fmt.Fprintf(tw, "  base\t\t%+.2f\n", ts.Base)
		for _, c := range ts.Contributions {
			fmt.Fprintf(tw, "  %s = %.3f\t\t%+.2f\n", c.Metric, c.Value, c.Points)
		}
	}
	tw.Flush()
}
