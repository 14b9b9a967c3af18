package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	DecisionsTotal   *prometheus.CounterVec
	ValidateDuration prometheus.Histogram
}

// New registers the validator metrics with reg. A nil reg builds unregistered
// collectors, which tests use to avoid duplicate registration.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		DecisionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "travelguard_decisions_total",
			Help: "Validation decisions by result code",
		}, []string{"code"}),
		ValidateDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "travelguard_validate_duration_ms",
			Help:    "Latency of a single validation in milliseconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 25, 50, 100},
		}),
	}
}

func (m *Metrics) RecordDecision(code string, elapsed time.Duration) {
	m.DecisionsTotal.WithLabelValues(code).Inc()
	m.ValidateDuration.Observe(float64(elapsed.Microseconds()) / 1000.0)
}
