package batch

import (
	"sort"
	"sync"
	"time"
)

// Skip reasons.
const (
	ReasonMalformed   = "malformed"
	ReasonCancelled   = "cancelled"
	ReasonUnavailable = "unavailable"
	ReasonFailed      = "failed"
)

// Skip records one game left out of the results.
type Skip struct {
	Game   string `json:"game"`
	Reason string `json:"reason"`
	Error  string `json:"error,omitempty"`
}

// Report summarizes a batch run. Attempted always equals Classified plus
// Skipped.
type Report struct {
	RunID         string         `json:"run_id"`
	Started       time.Time      `json:"started"`
	Duration      time.Duration  `json:"duration"`
	Workers       int            `json:"workers"`
	Attempted     int            `json:"attempted"`
	Classified    int            `json:"classified"`
	Skipped       int            `json:"skipped"`
	Reasons       map[string]int `json:"reasons"`
	Skips         []Skip         `json:"skips"`
	DegradedPlies int            `json:"degraded_plies"`
}

// tally accumulates a report from concurrent workers.
type tally struct {
	mu  sync.Mutex
	rep Report
}

func newTally(runID string, workers int, started time.Time) *tally {
	return &tally{rep: Report{
		RunID:   runID,
		Started: started,
		Workers: workers,
		Reasons: make(map[string]int),
	}}
}

func (t *tally) classified(degraded int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rep.Attempted++
	t.rep.Classified++
	t.rep.DegradedPlies += degraded
}

func (t *tally) skip(s Skip) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rep.Attempted++
	t.rep.Skipped++
	t.rep.Reasons[s.Reason]++
	t.rep.Skips = append(t.rep.Skips, s)
}

// report returns a copy with skips in a stable order.
func (t *tally) report(elapsed time.Duration) *Report {
	t.mu.Lock()
	defer t.mu.Unlock()
	rep := t.rep
	rep.Duration = elapsed
	rep.Reasons = make(map[string]int, len(t.rep.Reasons))
	for k, v := range t.rep.Reasons {
		rep.Reasons[k] = v
	}
	rep.Skips = append([]Skip(nil), t.rep.Skips...)
	sort.SliceStable(rep.Skips, func(i, j int) bool {
		return rep.Skips[i].Game < rep.Skips[j].Game
	})
	return &rep
}
