package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/discochess/persona"
	"github.com/discochess/persona/internal/batch"
	"github.com/discochess/persona/internal/blob"
	"github.com/discochess/persona/internal/engine"
	"github.com/discochess/persona/internal/engine/evaldb"
	"github.com/discochess/persona/internal/engine/uciengine"
	"github.com/discochess/persona/internal/stats"
	statslogger "github.com/discochess/persona/internal/stats/logger"
	promstats "github.com/discochess/persona/internal/stats/prometheus"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze [PGN]",
	Short: "Classify a player's games and store their features",
	Long: `Classify every move the player made in a PGN archive against an engine
and store one feature record per game in the feature database. Archives
ending in .zst or .gz are decompressed.

Evaluations are taken from --eval-db first when given; positions it does
not hold are searched by the --engine binary. With --record-evals the
engine's results are written to a new evaluation database for later runs.

Examples:
  # Analyze with a local Stockfish
  persona analyze games.pgn --user alice --engine stockfish

  # Reuse precomputed evaluations and export metrics
  persona analyze games.pgn.zst --user alice --engine stockfish \
      --eval-db gs://my-bucket/evals --metrics-addr :9090`,
	Args: cobra.ExactArgs(1),
	RunE: runAnalyze,
}

var (
	analyzeUser     string
	analyzePlatform string
	enginePath      string
	evalDB          string
	recordEvals     string
	analyzeWorkers  int
	searchDepth     int
	moveTimeout     time.Duration
	evalCacheSize   int
	metricsAddr     string
	analyzeJSON     bool
)

func init() {
	analyzeCmd.Flags().StringVarP(&analyzeUser, "user", "u", "", "player whose games are analyzed (required)")
	analyzeCmd.Flags().StringVar(&analyzePlatform, "platform", "lichess", "platform recorded in game keys")
	analyzeCmd.Flags().StringVar(&enginePath, "engine", "", "UCI engine binary")
	analyzeCmd.Flags().StringVar(&evalDB, "eval-db", "", "evaluation database location to consult first")
	analyzeCmd.Flags().StringVar(&recordEvals, "record-evals", "", "evaluation database location to record engine results to")
	analyzeCmd.Flags().IntVar(&analyzeWorkers, "workers", 4, "number of parallel engine workers")
	analyzeCmd.Flags().IntVar(&searchDepth, "depth", 18, "engine search depth")
	analyzeCmd.Flags().DurationVar(&moveTimeout, "timeout", 10*time.Second, "per-position evaluation deadline")
	analyzeCmd.Flags().IntVar(&evalCacheSize, "cache", 100_000, "shared evaluation cache entries (0 disables)")
	analyzeCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	analyzeCmd.Flags().BoolVar(&analyzeJSON, "json", false, "output the report as JSON")
	_ = analyzeCmd.MarkFlagRequired("user")
	rootCmd.AddCommand(analyzeCmd)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	if enginePath == "" && evalDB == "" {
		return errors.New("one of --engine or --eval-db is required")
	}
	if recordEvals != "" && enginePath == "" {
		return errors.New("--record-evals needs --engine")
	}

	logger, err := newLogger()
	if err != nil {
		return err
	}
	defer logger.Sync()

	weights, err := loadWeights()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	collector, shutdown := newCollector(logger)
	defer shutdown()

	store, err := openStore(logger)
	if err != nil {
		return err
	}

	evals, err := newEvaluators(ctx, collector, logger)
	if err != nil {
		store.Close()
		return err
	}
	defer evals.close()

	a, err := persona.New(
		persona.WithEvaluatorFactory(evals.factory),
		persona.WithWorkers(analyzeWorkers),
		persona.WithFeatureStore(store),
		persona.WithWeights(weights),
		persona.WithLimits(engine.Limits{Depth: searchDepth}),
		persona.WithTimeout(moveTimeout),
		persona.WithEvalCache(evalCacheSize),
		persona.WithStats(collector),
		persona.WithLogger(logger),
	)
	if err != nil {
		store.Close()
		return err
	}
	defer a.Close()

	report, runErr := a.AnalyzePGN(ctx, args[0], analyzeUser, analyzePlatform)
	if report != nil {
		if analyzeJSON {
			if err := printJSON(os.Stdout, report); err != nil {
				return err
			}
		} else {
			printReport(report)
			if cs, ok := a.CacheStats(); ok {
				fmt.Printf("Cache:       %d hits, %d misses (%.1f%%)\n", cs.Hits, cs.Misses, 100*cs.HitRate())
			}
		}
	}

	// Evaluations already computed are worth keeping even after a failure.
	if err := evals.flush(context.WithoutCancel(ctx)); err != nil {
		return errors.Join(runErr, err)
	}
	return runErr
}

func printReport(r *batch.Report) {
	fmt.Printf("Run:         %s\n", r.RunID)
	fmt.Printf("Games:       %d attempted, %d classified, %d skipped\n", r.Attempted, r.Classified, r.Skipped)
	fmt.Printf("Degraded:    %d plies\n", r.DegradedPlies)
	fmt.Printf("Duration:    %s\n", r.Duration.Round(time.Millisecond))
	for reason, n := range r.Reasons {
		fmt.Printf("  %-12s %d\n", reason+":", n)
	}
	if verbose {
		for _, s := range r.Skips {
			fmt.Printf("  skipped %s (%s): %s\n", s.Game, s.Reason, s.Error)
		}
	}
}

// newCollector serves Prometheus metrics when --metrics-addr is set and
// otherwise logs them at debug level.
func newCollector(logger *zap.Logger) (stats.Collector, func()) {
	if metricsAddr == "" {
		return statslogger.New(logger.Named("stats"), statslogger.WithLevel(zapcore.DebugLevel)), func() {}
	}

	registry := prometheus.NewRegistry()
	collector := promstats.New(registry,
		promstats.WithBuckets(stats.MetricGameSeconds, prometheus.ExponentialBuckets(0.5, 2, 10)),
	)
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: metricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", zap.Error(err))
		}
	}()
	logger.Info("serving metrics", zap.String("addr", metricsAddr))

	return collector, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}

// evaluators builds one evaluator per worker from the configured database,
// engine and recorder.
type evaluators struct {
	db     *evaldb.DB
	out    blob.Store
	writer *evaldb.Writer
	live   engine.Factory
	logger *zap.Logger
}

func newEvaluators(ctx context.Context, collector stats.Collector, logger *zap.Logger) (*evaluators, error) {
	e := &evaluators{logger: logger}
	if evalDB != "" {
		s, err := openBlobStore(ctx, evalDB)
		if err != nil {
			return nil, fmt.Errorf("opening eval database: %w", err)
		}
		e.db, err = evaldb.Open(ctx, s,
			evaldb.WithMinDepth(searchDepth),
			evaldb.WithStats(collector),
			evaldb.WithLogger(logger.Named("evaldb")),
		)
		if err != nil {
			s.Close()
			return nil, err
		}
	}
	if enginePath != "" {
		e.live = uciengine.Factory(enginePath,
			uciengine.WithStats(collector),
			uciengine.WithLogger(logger.Named("uci")),
		)
	}
	if recordEvals != "" {
		s, err := openBlobStore(ctx, recordEvals)
		if err != nil {
			e.close()
			return nil, fmt.Errorf("opening record database: %w", err)
		}
		e.out = s
		e.writer = evaldb.NewWriter(s, evaldb.WithSource(enginePath), evaldb.WithLogger(logger.Named("evaldb")))
	}
	return e, nil
}

func (e *evaluators) factory(ctx context.Context) (engine.Evaluator, error) {
	var chain []engine.Evaluator
	if e.db != nil {
		chain = append(chain, evaldb.Shared(e.db))
	}
	if e.live != nil {
		live, err := e.live(ctx)
		if err != nil {
			return nil, err
		}
		if e.writer != nil {
			live = evaldb.NewRecorder(live, e.writer)
		}
		chain = append(chain, live)
	}
	if len(chain) == 1 {
		return chain[0], nil
	}
	return engine.NewChain(chain...), nil
}

// flush writes the recorded evaluations, if any.
func (e *evaluators) flush(ctx context.Context) error {
	if e.writer == nil || e.writer.Len() == 0 {
		return nil
	}
	m, err := e.writer.Flush(ctx)
	if err != nil {
		return fmt.Errorf("writing recorded evaluations: %w", err)
	}
	e.logger.Info("recorded evaluations", zap.Int64("positions", m.RecordCount), zap.String("location", recordEvals))
	return nil
}

func (e *evaluators) close() {
	if e.db != nil {
		_ = e.db.Close()
	}
	if e.out != nil {
		_ = e.out.Close()
	}
}
