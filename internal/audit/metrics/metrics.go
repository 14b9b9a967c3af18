package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Published *prometheus.CounterVec
	Failed    *prometheus.CounterVec
	Dropped   prometheus.Counter
}

// New registers the publisher metrics with reg; nil leaves them unregistered.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Published: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "travelguard_audit_published_total",
			Help: "Records delivered to a sink, by category",
		}, []string{"category"}),
		Failed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "travelguard_audit_failed_total",
			Help: "Records a sink rejected, by category",
		}, []string{"category"}),
		Dropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "travelguard_audit_dropped_total",
			Help: "Decisions dropped because the async buffer was full",
		}),
	}
}
