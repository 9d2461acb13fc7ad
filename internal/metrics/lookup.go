package metrics

import "github.com/prometheus/client_golang/prometheus"

// Lookup outcome label values.
const (
	OutcomeOK       = "ok"
	OutcomeError    = "error"
	OutcomeRejected = "rejected"
	OutcomeCacheHit = "cache_hit"
)

// Lookup coordinator Prometheus metrics.
var (
	LookupQueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "enrichd",
			Name:      "lookup_queue_depth",
			Help:      "Number of lookups waiting in the coordinator queue",
		},
	)

	LookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "enrichd",
			Name:      "lookups_total",
			Help:      "Total lookups by outcome",
		},
		[]string{"outcome"}, // "ok" / "error" / "rejected" / "cache_hit"
	)

	LookupBatchSize = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "enrichd",
			Name:      "lookup_batch_size",
			Help:      "Number of lookups coalesced into one store round trip",
			Buckets:   []float64{1, 2, 4, 8, 16, 32, 64, 128},
		},
	)

	LookupDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "enrichd",
			Name:      "lookup_duration_seconds",
			Help:      "Store round trip duration for one lookup batch",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
	)
)

var lookupMetricsRegistered bool

// RegisterLookupMetrics registers Prometheus lookup metrics. Must be called once from main.
func RegisterLookupMetrics() {
	if lookupMetricsRegistered {
		return
	}
	prometheus.MustRegister(LookupQueueDepth)
	prometheus.MustRegister(LookupsTotal)
	prometheus.MustRegister(LookupBatchSize)
	prometheus.MustRegister(LookupDuration)
	lookupMetricsRegistered = true
}
