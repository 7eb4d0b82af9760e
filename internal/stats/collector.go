// Package stats provides a unified interface for collecting metrics.
package stats

// Metric names used throughout the library.
const (
	// Batch metrics.
	MetricGamesAttempted  = "persona_games_attempted_total"
	MetricGamesClassified = "persona_games_classified_total"
	MetricGamesSkipped    = "persona_games_skipped_total"
	MetricDegradedPlies   = "persona_degraded_plies_total"
	MetricActiveWorkers   = "persona_active_workers"
	MetricGameSeconds     = "persona_game_analysis_seconds"

	// Evaluator metrics.
	MetricEvaluations        = "persona_evaluations_total"
	MetricEvaluationTimeouts = "persona_evaluation_timeouts_total"
	MetricEvaluationSeconds  = "persona_evaluation_seconds"

	// Evaluation cache metrics.
	MetricCacheHits   = "persona_eval_cache_hits_total"
	MetricCacheMisses = "persona_eval_cache_misses_total"
	MetricCacheSize   = "persona_eval_cache_size"

	// Evaluation database metrics.
	MetricLookups      = "persona_evaldb_lookups_total"
	MetricLookupHits   = "persona_evaldb_hits_total"
	MetricLookupMisses = "persona_evaldb_misses_total"
	MetricShardFetches = "persona_evaldb_shard_fetches_total"

	// Feature store metrics.
	MetricFeaturesStored = "persona_features_stored_total"
)

// Collector defines the interface for collecting metrics.
type Collector interface {
	// IncCounter increments a counter metric by delta.
	IncCounter(name string, delta int64)

	// SetGauge sets a gauge metric to value.
	SetGauge(name string, value int64)

	// ObserveHistogram records a value in a histogram metric.
	ObserveHistogram(name string, value float64)
}
