// Package metrics exposes Prometheus collectors for the simulator's unstall
// loop: stall throughput, deadlocks, and FIFO occupancy. This package only
// registers collectors — scraping them over HTTP (promhttp.Handler, as
// Chapter13/prom_http does) is the embedding service's concern, outside this
// module's scope.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collectors bundles the hlscosim_* metrics, so a single value can be
// threaded through runner.RunMany without a package-level registry. RunMany
// records StallEventsTotal, DeadlocksTotal and FifoObservedDepth; nothing in
// this module observes BatchDuration.
type Collectors struct {
	StallEventsTotal  prometheus.Counter
	DeadlocksTotal    prometheus.Counter
	FifoObservedDepth *prometheus.GaugeVec
	BatchDuration     prometheus.Histogram
}

// New registers a fresh set of collectors against reg, named hlscosim_*. A
// nil reg registers against prometheus.DefaultRegisterer, the shape
// Chapter13/prom_http's package-level promauto.NewCounter calls use; tests
// and anything constructing more than one Collectors per process should pass
// a fresh prometheus.NewRegistry() to avoid duplicate-registration panics.
func New(reg prometheus.Registerer) *Collectors {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Collectors{
		StallEventsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "hlscosim_stall_events_total",
			Help: "Total number of stall events unstalled across all simulation runs.",
		}),
		DeadlocksTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "hlscosim_deadlocks_total",
			Help: "Total number of simulation runs that ended in DeadlockError.",
		}),
		FifoObservedDepth: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "hlscosim_fifo_observed_depth",
			Help: "Maximum occupancy observed on a FIFO stream during its run.",
		}, []string{"run_id", "stream"}),
		BatchDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "hlscosim_batch_duration_seconds",
			Help:    "Wall-clock duration of one cooperative simulation batch.",
			Buckets: prometheus.DefBuckets,
		}),
	}
}
