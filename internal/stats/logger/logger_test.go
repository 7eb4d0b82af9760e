package logger

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/discochess/persona/internal/stats"
)

func TestCollector_LogsAtConfiguredLevel(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	c := New(zap.New(core), WithLevel(zapcore.InfoLevel))

	c.IncCounter(stats.MetricGamesClassified, 3)
	c.SetGauge(stats.MetricActiveWorkers, 2)
	c.ObserveHistogram(stats.MetricGameSeconds, 1.5)

	if got := logs.Len(); got != 3 {
		t.Fatalf("logged %d entries, want 3", got)
	}
	first := logs.All()[0]
	if first.Message != "counter" {
		t.Errorf("Message = %q, want counter", first.Message)
	}
	if got := first.ContextMap()["metric"]; got != stats.MetricGamesClassified {
		t.Errorf("metric field = %v, want %s", got, stats.MetricGamesClassified)
	}
}

func TestCollector_DebugSuppressedAtInfo(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	c := New(zap.New(core))

	c.IncCounter(stats.MetricGamesClassified, 1)

	if logs.Len() != 0 {
		t.Errorf("logged %d entries at debug level, want 0", logs.Len())
	}
}

func TestNew_NilLogger(t *testing.T) {
	c := New(nil)
	c.IncCounter("x", 1)
}
