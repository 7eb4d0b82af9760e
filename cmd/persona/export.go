package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/discochess/persona/internal/codec"
	"github.com/discochess/persona/internal/featurestore"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export stored game features as JSON lines",
	Long: `Write stored feature records, one JSON object per line, ordered by
game key. Output files ending in .zst or .gz are compressed.

Examples:
  persona export --user alice --out alice.jsonl.zst
  persona export > everything.jsonl`,
	RunE: runExport,
}

var (
	exportUser     string
	exportPlatform string
	exportLimit    int
	exportOut      string
)

func init() {
	exportCmd.Flags().StringVarP(&exportUser, "user", "u", "", "only export this player")
	exportCmd.Flags().StringVar(&exportPlatform, "platform", "", "only export this platform")
	exportCmd.Flags().IntVar(&exportLimit, "limit", 0, "maximum records (0 for all)")
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "-", "output path")
	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	logger, err := newLogger()
	if err != nil {
		return err
	}
	defer logger.Sync()

	store, err := openStore(logger)
	if err != nil {
		return err
	}
	defer store.Close()

	out, err := createOutput(exportOut)
	if err != nil {
		return err
	}
	q := featurestore.Query{User: exportUser, Platform: exportPlatform, Limit: exportLimit}
	n, err := featurestore.Export(cmd.Context(), store, q, out, codec.ForPath(exportOut))
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}
	if exportOut != "-" {
		fmt.Fprintf(os.Stderr, "exported %d records to %s\n", n, exportOut)
	}
	return nil
}
