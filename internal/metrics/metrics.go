// Package metrics exposes the engine's prometheus instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the engine's prometheus collectors.
type Metrics struct {
	DetectionsTotal    *prometheus.CounterVec
	RedactionsTotal    *prometheus.CounterVec
	StreamingFallbacks prometheus.Counter
	ProcessingSeconds  prometheus.Histogram
}

// New registers the engine collectors with reg. Pass
// prometheus.DefaultRegisterer in production; tests use a fresh registry to
// avoid duplicate registration.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		DetectionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "veil",
			Name:      "detections_total",
			Help:      "PII detections by category.",
		}, []string{"category"}),
		RedactionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "veil",
			Name:      "redactions_total",
			Help:      "Applied redactions by strategy.",
		}, []string{"strategy"}),
		StreamingFallbacks: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "veil",
			Name:      "streaming_fallbacks_total",
			Help:      "Chunked-path failures that fell back to a single pass.",
		}),
		ProcessingSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "veil",
			Name:      "processing_seconds",
			Help:      "End-to-end redaction latency.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
}

// RegisterCacheSize exposes the pattern cache entry count as a gauge.
func (m *Metrics) RegisterCacheSize(reg prometheus.Registerer, size func() int) {
	promauto.With(reg).NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "veil",
		Name:      "pattern_cache_entries",
		Help:      "Compiled patterns currently cached.",
	}, func() float64 { return float64(size()) })
}
