package main

import (
	"os"

	"github.com/spf13/cobra"
)

var weightsCmd = &cobra.Command{
	Use:   "weights",
	Short: "Print the scoring weights as YAML",
	Long: `Print the weights in effect: the file given with --weights after
validation, or the built-in weights. The output is a starting point for a
new weights version.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		w, err := loadWeights()
		if err != nil {
			return err
		}
		return w.WriteYAML(os.Stdout)
	},
}

func init() {
	rootCmd.AddCommand(weightsCmd)
}
