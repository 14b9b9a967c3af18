package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// NewRegistry returns a registry for per-component metrics and the gatherer
// /metrics should serve. The default registry already carries the Go runtime
// and process collectors plus the state store's package-level metrics, so it
// is chained in rather than duplicated.
func NewRegistry() (*prometheus.Registry, prometheus.Gatherer) {
	reg := prometheus.NewRegistry()
	return reg, prometheus.Gatherers{reg, prometheus.DefaultGatherer}
}
