package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Drop reasons.
const (
	ReasonNoConsent  = "no_consent"
	ReasonOverflow   = "overflow"
	ReasonValidation = "validation"
)

// Flush results.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
	ResultSkipped = "skipped"
)

// Metrics holds Prometheus collectors for the ingestor.
type Metrics struct {
	EntriesLogged  *prometheus.CounterVec
	EntriesDropped *prometheus.CounterVec
	Flushes        *prometheus.CounterVec
	UploadDuration prometheus.Histogram
	UploadBytes    prometheus.Histogram
	BufferSize     prometheus.Gauge
	DeadLettered   prometheus.Counter
	BreakerOpen    prometheus.Gauge
}

// New registers ingest collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		EntriesLogged: f.NewCounterVec(prometheus.CounterOpts{
			Name: "consentlake_ingest_entries_logged_total",
			Help: "Entries accepted into the buffer or sent directly, labeled by service",
		}, []string{"service"}),
		EntriesDropped: f.NewCounterVec(prometheus.CounterOpts{
			Name: "consentlake_ingest_entries_dropped_total",
			Help: "Entries not written to the lake, labeled by reason",
		}, []string{"reason"}),
		Flushes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "consentlake_ingest_flushes_total",
			Help: "Buffer flushes, labeled by result",
		}, []string{"result"}),
		UploadDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "consentlake_ingest_upload_duration_seconds",
			Help:    "Time to upload one lake object including retries",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		UploadBytes: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "consentlake_ingest_upload_bytes",
			Help:    "Size of uploaded lake objects after compression and encryption",
			Buckets: prometheus.ExponentialBuckets(256, 4, 8),
		}),
		BufferSize: f.NewGauge(prometheus.GaugeOpts{
			Name: "consentlake_ingest_buffer_entries",
			Help: "Entries currently buffered",
		}),
		DeadLettered: f.NewCounter(prometheus.CounterOpts{
			Name: "consentlake_ingest_dead_lettered_total",
			Help: "Entries evicted from the buffer to the dead-letter sink",
		}),
		BreakerOpen: f.NewGauge(prometheus.GaugeOpts{
			Name: "consentlake_ingest_breaker_open",
			Help: "1 while the upload circuit breaker is open",
		}),
	}
}
