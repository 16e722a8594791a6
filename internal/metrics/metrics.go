package metrics

import "github.com/prometheus/client_golang/prometheus"

var SweepRunsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "sweep_runs_total",
		Help: "Total number of reconciliation sweep runs",
	},
	[]string{"job", "status"},
)

var SweepDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "sweep_duration_seconds",
		Help:    "Duration of reconciliation sweep runs in seconds",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"job"},
)

var SweepReclaimedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "sweep_reclaimed_items_total",
		Help: "Total number of items reclaimed by reconciliation sweeps",
	},
	[]string{"job"},
)

var SweepItemFailuresTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "sweep_item_failures_total",
		Help: "Total number of individual item failures during sweeps",
	},
	[]string{"job"},
)

var SweepSkippedLockedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "sweep_skipped_locked_total",
		Help: "Total number of sweep runs skipped because another instance holds the lock",
	},
	[]string{"job"},
)

func InitSweepMetrics() {
	prometheus.MustRegister(SweepRunsTotal)
	prometheus.MustRegister(SweepDuration)
	prometheus.MustRegister(SweepReclaimedTotal)
	prometheus.MustRegister(SweepItemFailuresTotal)
	prometheus.MustRegister(SweepSkippedLockedTotal)
}
