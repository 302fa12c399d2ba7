// Package metrics implements the process-wide profiler singleton described
// in spec.md §9: "the profiler is process-wide with init-on-first-use and no
// teardown; treat as a passive sink owned by the driver; the core only
// calls start/end(tick)". Ticks are exported as a prometheus summary so a
// driver can scrape percentile latencies per pipeline stage without the
// core knowing anything about prometheus.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Profiler records tick durations keyed by name (e.g. "SI_PRUNE",
// "SI_SOLVER_SOLVE"), mirroring original_source's util.Profiler.
type Profiler struct {
	summary *prometheus.SummaryVec
}

var (
	instance     *Profiler
	instanceOnce sync.Once
)

// Get returns the process-wide profiler, constructing it (and registering
// its collector with the default registry) on first use.
func Get() *Profiler {
	instanceOnce.Do(func() {
		instance = &Profiler{
			summary: prometheus.NewSummaryVec(prometheus.SummaryOpts{
				Namespace:  "siverify",
				Name:       "tick_duration_seconds",
				Help:       "Duration of named verification pipeline ticks.",
				Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
			}, []string{"tick"}),
		}
		prometheus.MustRegister(instance.summary)
	})
	return instance
}

// Start begins timing tick and returns a function that ends it. Call sites
// look like the original's paired startTick/endTick:
//
//	defer metrics.Get().Start("SI_PRUNE")()
func (p *Profiler) Start(tick string) func() {
	if p == nil {
		return func() {}
	}
	begin := time.Now()
	return func() {
		p.summary.WithLabelValues(tick).Observe(time.Since(begin).Seconds())
	}
}
