package ingest

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	resultDecided   = "decided"
	resultMalformed = "malformed"
)

type Metrics struct {
	Records *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		Records: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "travelguard_ingest_records_total",
			Help: "Consumed location event records, by result",
		}, []string{"result"}),
	}
}
