package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/discochess/persona/internal/featurestore/sqlitestore"
	"github.com/discochess/persona/internal/scoring"
)

var (
	// Global flags.
	dbPath      string
	weightsPath string
	verbose     bool
)

var rootCmd = &cobra.Command{
	Use:   "persona",
	Short: "Score the playing style of a chess player from their games",
	Long: `Persona classifies every move of a player's games against an engine,
extracts per-game style features and scores six personality traits:
aggressive, tactical, positional, patient, novelty and staleness.

Examples:
  # Analyze a PGN archive with a local Stockfish
  persona analyze games.pgn.zst --user alice --engine stockfish

  # Show the trait profile from the stored games
  persona profile --user alice

  # Check the weights against a benchmark roster
  persona calibrate --roster roster.yaml`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "./persona.db", "feature database path")
	rootCmd.PersistentFlags().StringVarP(&weightsPath, "weights", "w", "", "scoring weights YAML (default: built-in weights)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
}

// newLogger returns a development logger when verbose is set.
func newLogger() (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	return cfg.Build()
}

// loadWeights returns the weights named by --weights, or the defaults.
func loadWeights() (scoring.Weights, error) {
	if weightsPath == "" {
		return scoring.DefaultWeights(), nil
	}
	return scoring.LoadWeights(weightsPath)
}

func openStore(logger *zap.Logger) (*sqlitestore.Store, error) {
	s, err := sqlitestore.Open(dbPath, sqlitestore.WithLogger(logger.Named("featurestore")))
	if err != nil {
		return nil, fmt.Errorf("opening feature database: %w", err)
	}
	return s, nil
}

// createOutput opens path for writing; "" and "-" mean stdout.
func createOutput(path string) (io.WriteCloser, error) {
	if path == "" || path == "-" {
		return nopCloser{os.Stdout}, nil
	}
	return os.Create(path)
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
