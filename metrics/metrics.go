package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	// ProviderCallsTotal counts vision provider calls by provider, operation and result.
	ProviderCallsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gepp",
		Subsystem: "audit",
		Name:      "provider_calls_total",
		Help:      "Total number of vision provider calls, labeled by provider, operation and result.",
	}, []string{"provider", "op", "result"})

	// ProviderCallDurationSeconds is per-call latency measured around the provider request.
	ProviderCallDurationSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "gepp",
		Subsystem: "audit",
		Name:      "provider_call_duration_seconds",
		Help:      "Vision provider call latency.",
		// Keep buckets fairly coarse to avoid high-cardinality time series.
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 20, 30, 60},
	}, []string{"op", "result"})

	// ProviderRetriesTotal counts transient provider failures that triggered a retry.
	ProviderRetriesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gepp",
		Subsystem: "audit",
		Name:      "provider_retries_total",
		Help:      "Total number of retried vision provider calls, labeled by operation.",
	}, []string{"op"})

	// ProviderDegradedTotal counts calls that exhausted retries and degraded to unknown.
	ProviderDegradedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gepp",
		Subsystem: "audit",
		Name:      "provider_degraded_total",
		Help:      "Total number of provider calls that degraded to an unknown result after exhausting retries.",
	}, []string{"op"})

	// AuditsProcessedTotal counts audited transactions by outcome.
	AuditsProcessedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gepp",
		Subsystem: "audit",
		Name:      "transactions_processed_total",
		Help:      "Total number of transactions audited, labeled by result.",
	}, []string{"result"})

	// EntriesTotal counts per-material verdicts by status.
	EntriesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gepp",
		Subsystem: "audit",
		Name:      "material_entries_total",
		Help:      "Total number of per-material audit entries, labeled by status.",
	}, []string{"status"})

	// WorkerInFlight is the current number of transactions being audited.
	WorkerInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "gepp",
		Subsystem: "audit",
		Name:      "worker_in_flight",
		Help:      "Current number of transactions being audited by worker goroutines.",
	})

	// AuditDurationSeconds is end-to-end time per transaction audit.
	AuditDurationSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "gepp",
		Subsystem: "audit",
		Name:      "transaction_duration_seconds",
		Help:      "End-to-end time to audit a single transaction.",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 20, 60, 120},
	}, []string{"result"})

	// PublishErrorTotal counts failed verdict publishes to RabbitMQ.
	PublishErrorTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "gepp",
		Subsystem: "audit",
		Name:      "publish_error_total",
		Help:      "Total number of verdict publish errors.",
	})
)

// Register registers audit engine metrics with the default Prometheus registry.
// Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			ProviderCallsTotal,
			ProviderCallDurationSeconds,
			ProviderRetriesTotal,
			ProviderDegradedTotal,
			AuditsProcessedTotal,
			EntriesTotal,
			WorkerInFlight,
			AuditDurationSeconds,
			PublishErrorTotal,
		)
	})
}
