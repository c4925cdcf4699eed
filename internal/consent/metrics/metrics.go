package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus collectors for consent operations.
type Metrics struct {
	ConsentCheckPassed *prometheus.CounterVec
	ConsentCheckFailed *prometheus.CounterVec
	ConsentUpdates     prometheus.Counter
	ConsentRevocations prometheus.Counter
	CacheHits          prometheus.Counter
	CacheMisses        prometheus.Counter

	StoreOperationLatency *prometheus.HistogramVec
	ShardLockWait         prometheus.Histogram
}

// New registers consent collectors on reg. Pass prometheus.DefaultRegisterer
// in production and a fresh registry in tests.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		ConsentCheckPassed: f.NewCounterVec(prometheus.CounterOpts{
			Name: "consentlake_consent_checks_passed_total",
			Help: "Consent checks that allowed processing, labeled by purpose",
		}, []string{"purpose"}),
		ConsentCheckFailed: f.NewCounterVec(prometheus.CounterOpts{
			Name: "consentlake_consent_checks_failed_total",
			Help: "Consent checks that denied processing, labeled by purpose and reason",
		}, []string{"purpose", "reason"}),
		ConsentUpdates: f.NewCounter(prometheus.CounterOpts{
			Name: "consentlake_consent_updates_total",
			Help: "Consent snapshots written by updates",
		}),
		ConsentRevocations: f.NewCounter(prometheus.CounterOpts{
			Name: "consentlake_consent_revocations_total",
			Help: "Full consent revocations",
		}),
		CacheHits: f.NewCounter(prometheus.CounterOpts{
			Name: "consentlake_consent_cache_hits_total",
			Help: "Consent reads served from cache",
		}),
		CacheMisses: f.NewCounter(prometheus.CounterOpts{
			Name: "consentlake_consent_cache_misses_total",
			Help: "Consent reads that went to the store",
		}),
		StoreOperationLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "consentlake_consent_store_operation_latency_seconds",
			Help:    "Latency of consent store operations in seconds",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		}, []string{"operation"}),
		ShardLockWait: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "consentlake_consent_shard_lock_wait_seconds",
			Help:    "Time spent waiting for the per-user update lock",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		}),
	}
}

func (m *Metrics) IncrementConsentCheckPassed(purpose string) {
	m.ConsentCheckPassed.WithLabelValues(purpose).Inc()
}

func (m *Metrics) IncrementConsentCheckFailed(purpose, reason string) {
	m.ConsentCheckFailed.WithLabelValues(purpose, reason).Inc()
}

func (m *Metrics) IncrementUpdates() {
	m.ConsentUpdates.Inc()
}

func (m *Metrics) IncrementRevocations() {
	m.ConsentRevocations.Inc()
}

func (m *Metrics) ObserveCacheLookup(hit bool) {
	if hit {
		m.CacheHits.Inc()
		return
	}
	m.CacheMisses.Inc()
}

// ObserveStoreOperationLatency records the latency of a store operation.
func (m *Metrics) ObserveStoreOperationLatency(operation string, durationSeconds float64) {
	m.StoreOperationLatency.WithLabelValues(operation).Observe(durationSeconds)
}

func (m *Metrics) ObserveShardLockWait(durationSeconds float64) {
	m.ShardLockWait.Observe(durationSeconds)
}
