package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "tron_router"

// ── HTTP request metrics (RED method) ──────────────────────────────────

var (
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total number of HTTP requests.",
	}, []string{"method", "path", "status_code"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path"})

	HTTPRequestsInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "requests_in_flight",
		Help:      "Number of HTTP requests currently being processed.",
	})
)

// ── Backend attempts ───────────────────────────────────────────────────

var (
	AttemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "router",
		Name:      "attempts_total",
		Help:      "Backend attempts per operation, source and outcome.",
	}, []string{"operation", "source", "outcome"})

	AttemptDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "router",
		Name:      "attempt_duration_seconds",
		Help:      "Latency of a single backend attempt in seconds.",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	}, []string{"operation", "source"})

	FallbacksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "router",
		Name:      "fallbacks_total",
		Help:      "Requests served by a source other than the first candidate.",
	}, []string{"operation", "source"})

	AllSourcesFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "router",
		Name:      "all_sources_failed_total",
		Help:      "Requests for which every candidate failed.",
	}, []string{"operation"})

	HeuristicEstimatesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "router",
		Name:      "heuristic_estimates_total",
		Help:      "Energy estimates answered from the heuristic table.",
	})

	// PrimaryAvailability is 1 available, 0 unavailable, -1 unknown.
	PrimaryAvailability = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "router",
		Name:      "primary_availability",
		Help:      "Latched availability of the primary node client.",
	})
)

// ── Chain watcher ──────────────────────────────────────────────────────

var (
	WatchTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "watch",
		Name:      "refresh_total",
		Help:      "Chain watcher refreshes by status.",
	}, []string{"status"})

	HeadBlock = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "watch",
		Name:      "head_block",
		Help:      "Latest block number seen by the chain watcher.",
	})

	EnergyFeeSun = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "watch",
		Name:      "energy_fee_sun",
		Help:      "Current getEnergyFee chain parameter in SUN.",
	})

	WatchLastSuccess = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "watch",
		Name:      "last_success_timestamp",
		Help:      "Unix timestamp of the last successful refresh.",
	})
)

// ── Side stores ────────────────────────────────────────────────────────

var (
	BroadcastsDeduplicatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "broadcast",
		Name:      "deduplicated_total",
		Help:      "Broadcasts refused because the transaction was already sent.",
	})

	JournalWriteErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "journal",
		Name:      "write_errors_total",
		Help:      "Call journal inserts that failed.",
	})
)
