package queries

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts routed queries by operation and outcome.
type Metrics struct {
	total    *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewMetrics registers query metrics on the default registry.
func NewMetrics() *Metrics {
	return &Metrics{
		total: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "substrate",
			Subsystem: "queries",
			Name:      "total",
			Help:      "Routed queries by operation and outcome.",
		}, []string{"operation", "status"}),
		duration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "substrate",
			Subsystem: "queries",
			Name:      "duration_seconds",
			Help:      "Query latency by operation.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
	}
}

func (m *Metrics) observe(operation, status string, seconds float64) {
	m.total.WithLabelValues(operation, status).Inc()
	m.duration.WithLabelValues(operation).Observe(seconds)
}
