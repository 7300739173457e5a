package export

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type exportMetrics struct {
	events *prometheus.CounterVec
}

func newExportMetrics(reg prometheus.Registerer) *exportMetrics {
	promautoFactory := promauto.With(reg)
	return &exportMetrics{
		events: promautoFactory.NewCounterVec(prometheus.CounterOpts{
			Name: "relay_export_events_total",
			Help: "export events by outcome",
		}, []string{"result"}),
	}
}
