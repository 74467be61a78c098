package mutations

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts routed mutations by operation and outcome.
type Metrics struct {
	total    *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewMetrics registers mutation metrics on the default registry.
func NewMetrics() *Metrics {
	return &Metrics{
		total: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "substrate",
			Subsystem: "mutations",
			Name:      "total",
			Help:      "Routed mutations by operation and outcome.",
		}, []string{"operation", "status"}),
		duration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "substrate",
			Subsystem: "mutations",
			Name:      "duration_seconds",
			Help:      "Mutation latency by operation.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
	}
}

func (m *Metrics) observe(operation, status string, seconds float64) {
	m.total.WithLabelValues(operation, status).Inc()
	m.duration.WithLabelValues(operation).Observe(seconds)
}
