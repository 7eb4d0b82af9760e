package stats

import (
	"sync"
	"testing"
)

func TestMemory_Counters(t *testing.T) {
	m := NewMemory()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.IncCounter(MetricGamesAttempted, 2)
		}()
	}
	wg.Wait()

	if got := m.Counter(MetricGamesAttempted); got != 20 {
		t.Errorf("Counter() = %d, want 20", got)
	}
	if got := m.Counter(MetricGamesSkipped); got != 0 {
		t.Errorf("Counter() of unknown metric = %d, want 0", got)
	}
}

func TestMemory_GaugeAndHistogram(t *testing.T) {
	m := NewMemory()
	m.SetGauge(MetricActiveWorkers, 4)
	m.SetGauge(MetricActiveWorkers, 3)
	m.ObserveHistogram(MetricEvaluationSeconds, 0.25)
	m.ObserveHistogram(MetricEvaluationSeconds, 0.75)

	if got := m.Gauge(MetricActiveWorkers); got != 3 {
		t.Errorf("Gauge() = %d, want 3", got)
	}
	obs := m.Observations(MetricEvaluationSeconds)
	if len(obs) != 2 || obs[0] != 0.25 || obs[1] != 0.75 {
		t.Errorf("Observations() = %v, want [0.25 0.75]", obs)
	}
}
