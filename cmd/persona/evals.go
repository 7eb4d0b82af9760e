package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/notnil/chess"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/discochess/persona/internal/blob"
	"github.com/discochess/persona/internal/blob/diskblob"
	"github.com/discochess/persona/internal/blob/gcsblob"
	"github.com/discochess/persona/internal/blob/s3blob"
	"github.com/discochess/persona/internal/codec"
	"github.com/discochess/persona/internal/engine"
	"github.com/discochess/persona/internal/engine/evaldb"
)

// DefaultSourceURL is the Lichess evaluation database export.
const DefaultSourceURL = "https://database.lichess.org/lichess_db_eval.jsonl.zst"

var evalsCmd = &cobra.Command{
	Use:   "evals",
	Short: "Manage precomputed evaluation databases",
	Long: `An evaluation database answers engine lookups from precomputed
searches, so analysis only starts the engine for positions it has not
seen. Databases live in a local directory, gs://bucket/prefix or
s3://bucket/prefix.`,
}

var evalsImportCmd = &cobra.Command{
	Use:   "import",
	Short: "Import a Lichess evaluation export into a database",
	Long: `Read evaluations in the Lichess export format (one JSON object per
line, optionally zstd or gzip compressed) and write them as a sharded
database. The whole import is collected in memory before it is written.

Examples:
  # Import a local sample
  persona evals import --source ./sample.jsonl.zst --output ./evals

  # Import straight from Lichess into a bucket
  persona evals import --output gs://my-bucket/evals`,
	RunE: runEvalsImport,
}

var evalsStatsCmd = &cobra.Command{
	Use:   "stats [LOCATION]",
	Short: "Show the manifest of an evaluation database",
	Args:  cobra.ExactArgs(1),
	RunE:  runEvalsStats,
}

var evalsLookupCmd = &cobra.Command{
	Use:   "lookup [LOCATION] [FEN]",
	Short: "Look up a position in an evaluation database",
	Long: `Look up the stored evaluation of a position given in FEN notation.
Move counters are optional.

Example:
  persona evals lookup ./evals "rnbqkbnr/pppppppp/8/8/4P3/8/PPPP1PPP/RNBQKBNR b KQkq -"`,
	Args: cobra.ExactArgs(2),
	RunE: runEvalsLookup,
}

var (
	importSource   string
	importOutput   string
	importShards   int
	importStrategy string
	importCodec    string

	s3Region   string
	s3Endpoint string
)

func init() {
	evalsImportCmd.Flags().StringVar(&importSource, "source", DefaultSourceURL, "source URL or local file path")
	evalsImportCmd.Flags().StringVarP(&importOutput, "output", "o", "./evals", "output location")
	evalsImportCmd.Flags().IntVar(&importShards, "shards", 32768, "number of shards to create")
	evalsImportCmd.Flags().StringVar(&importStrategy, "strategy", "material", "sharding strategy: material, fnv32")
	evalsImportCmd.Flags().StringVar(&importCodec, "codec", "zstd", "shard compression: zstd, gzip, none")

	rootCmd.PersistentFlags().StringVar(&s3Region, "s3-region", "", "AWS region for s3:// locations")
	rootCmd.PersistentFlags().StringVar(&s3Endpoint, "s3-endpoint", "", "custom endpoint for S3-compatible stores")

	evalsCmd.AddCommand(evalsImportCmd, evalsStatsCmd, evalsLookupCmd)
	rootCmd.AddCommand(evalsCmd)
}

// openBlobStore opens a local directory, a gs:// or an s3:// location.
func openBlobStore(ctx context.Context, location string) (blob.Store, error) {
	u, err := url.Parse(location)
	if err != nil || u.Scheme == "" || u.Scheme == "file" {
		path := location
		if err == nil && u.Scheme == "file" {
			path = u.Path
		}
		return diskblob.New(path)
	}
	prefix := strings.TrimPrefix(u.Path, "/")
	switch u.Scheme {
	case "gs":
		return gcsblob.New(ctx, u.Host, gcsblob.WithPrefix(prefix))
	case "s3":
		opts := []s3blob.Option{s3blob.WithPrefix(prefix)}
		if s3Region != "" {
			opts = append(opts, s3blob.WithRegion(s3Region))
		}
		if s3Endpoint != "" {
			opts = append(opts, s3blob.WithEndpoint(s3Endpoint))
		}
		return s3blob.New(ctx, u.Host, opts...)
	}
	return nil, fmt.Errorf("unsupported location scheme %q", u.Scheme)
}

// openSource opens a local file or downloads a URL, decompressing by
// extension.
func openSource(ctx context.Context, source string) (io.ReadCloser, error) {
	var body io.ReadCloser
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
		if err != nil {
			return nil, fmt.Errorf("creating request: %w", err)
		}
		client := &http.Client{Transport: &http.Transport{
			ResponseHeaderTimeout: 30 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
		}}
		resp, err := client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("downloading: %w", err)
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return nil, fmt.Errorf("unexpected status: %s", resp.Status)
		}
		body = resp.Body
	} else {
		f, err := os.Open(source)
		if err != nil {
			return nil, err
		}
		body = f
	}

	dec, err := codec.ForPath(source).Reader(body)
	if err != nil {
		body.Close()
		return nil, fmt.Errorf("decompressing %s: %w", source, err)
	}
	return readCloser{Reader: dec, closers: []io.Closer{dec, body}}, nil
}

type readCloser struct {
	io.Reader
	closers []io.Closer
}

func (r readCloser) Close() error {
	var errs []error
	for _, c := range r.closers {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}

func runEvalsImport(cmd *cobra.Command, args []string) error {
	logger, err := newLogger()
	if err != nil {
		return err
	}
	defer logger.Sync()

	strategy, err := evaldb.StrategyByName(importStrategy)
	if err != nil {
		return err
	}
	c, err := codec.ByName(importCodec)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out, err := openBlobStore(ctx, importOutput)
	if err != nil {
		return fmt.Errorf("opening output: %w", err)
	}
	defer out.Close()

	src, err := openSource(ctx, importSource)
	if err != nil {
		return fmt.Errorf("opening source: %w", err)
	}
	defer src.Close()

	fmt.Printf("Importing evaluations\n")
	fmt.Printf("  Source:     %s\n", importSource)
	fmt.Printf("  Output:     %s\n", importOutput)
	fmt.Printf("  Shards:     %d\n", importShards)
	fmt.Printf("  Strategy:   %s\n", strategy.Name())
	fmt.Printf("  Codec:      %s\n", codec.Name(c))
	fmt.Println()

	w := evaldb.NewWriter(out,
		evaldb.WithCodec(c),
		evaldb.WithStrategy(strategy),
		evaldb.WithTotalShards(importShards),
		evaldb.WithSource(importSource),
		evaldb.WithLogger(logger.Named("evaldb")),
	)
	start := time.Now()
	st, err := w.Import(ctx, src, func(lines int64) {
		fmt.Printf("\r[Import] %d lines (%s)", lines, time.Since(start).Round(time.Second))
	})
	fmt.Println()
	if err != nil {
		return err
	}
	logger.Info("import read", zap.Int64("imported", st.Imported), zap.Int64("rejected", st.Rejected))

	m, err := w.Flush(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("[Import] %d positions in %d shards, %d lines rejected\n", m.RecordCount, m.ShardCount, st.Rejected)
	return nil
}

func runEvalsStats(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	s, err := openBlobStore(ctx, args[0])
	if err != nil {
		return err
	}
	defer s.Close()

	m, err := evaldb.ReadManifest(ctx, s)
	if err != nil {
		return fmt.Errorf("database %q: %w", args[0], err)
	}
	fmt.Printf("Location:     %s\n", args[0])
	fmt.Printf("Positions:    %d\n", m.RecordCount)
	fmt.Printf("Shards:       %d of %d\n", m.ShardCount, m.TotalShards)
	fmt.Printf("Strategy:     %s\n", m.Strategy)
	fmt.Printf("Compression:  %s\n", m.Compression)
	fmt.Printf("Built:        %s\n", m.BuiltAt.Format(time.RFC3339))
	if m.SourceURL != "" {
		fmt.Printf("Source:       %s\n", m.SourceURL)
	}
	return nil
}

func runEvalsLookup(cmd *cobra.Command, args []string) error {
	fen := args[1]
	if len(strings.Fields(fen)) == 4 {
		fen += " 0 1"
	}
	opt, err := chess.FEN(fen)
	if err != nil {
		return fmt.Errorf("invalid FEN: %w", err)
	}
	pos := chess.NewGame(opt).Position()

	ctx := cmd.Context()
	s, err := openBlobStore(ctx, args[0])
	if err != nil {
		return err
	}
	db, err := evaldb.Open(ctx, s)
	if err != nil {
		s.Close()
		return err
	}
	defer db.Close()

	res, err := db.Evaluate(ctx, pos, engine.Limits{})
	if errors.Is(err, engine.ErrNotFound) {
		return fmt.Errorf("position not found in database")
	}
	if err != nil {
		return fmt.Errorf("lookup failed: %w", err)
	}
	fmt.Printf("FEN:   %s\n", engine.PositionKey(pos))
	fmt.Printf("Score: %s\n", res.Eval)
	fmt.Printf("Depth: %d\n", res.Depth)
	if len(res.PV) > 0 {
		fmt.Printf("PV:    %s\n", strings.Join(res.PV, " "))
	}
	return nil
}
