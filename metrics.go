package etag

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Results recorded in the etag_responses_total counter.
const (
	ResultHit         = "hit"
	ResultMiss        = "miss"
	ResultSmall       = "small"
	ResultPassthrough = "passthrough"
	ResultEscaped     = "escaped"
)

// Metrics tracks how responses were handled by the middleware.
//
// Metrics:
//   - <namespace>_etag_responses_total: responses by result (hit, miss, small, passthrough, escaped)
//   - <namespace>_etag_fingerprinted_bytes: sizes of the bodies that were fingerprinted
//
// A nil *Metrics records nothing.
type Metrics struct {
	responsesTotal    *prometheus.CounterVec
	fingerprintedSize prometheus.Histogram
}

// NewMetrics creates the middleware metrics and registers them with registerer.
// If registerer is nil, the default Prometheus registerer is used.
func NewMetrics(namespace string, registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		responsesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "etag",
				Name:      "responses_total",
				Help:      "Total number of GET responses seen by the ETag middleware",
			},
			[]string{"result"},
		),

		fingerprintedSize: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "etag",
				Name:      "fingerprinted_bytes",
				Help:      "Size of response bodies that were fingerprinted",
				Buckets:   prometheus.ExponentialBuckets(64, 4, 8),
			},
		),
	}

	registerer.MustRegister(
		m.responsesTotal,
		m.fingerprintedSize,
	)

	return m
}

func (m *Metrics) record(result string) {
	if m == nil {
		return
	}
	m.responsesTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) observeSize(size int) {
	if m == nil {
		return
	}
	m.fingerprintedSize.Observe(float64(size))
}
