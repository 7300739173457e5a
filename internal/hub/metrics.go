package hub

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type hubMetrics struct {
	connections prometheus.Gauge
	accepted    prometheus.Counter
	superseded  prometheus.Counter
}

func newHubMetrics(reg prometheus.Registerer) *hubMetrics {
	promautoFactory := promauto.With(reg)
	return &hubMetrics{
		connections: promautoFactory.NewGauge(prometheus.GaugeOpts{
			Name: "relay_connections",
			Help: "number of live client connections",
		}),
		accepted: promautoFactory.NewCounter(prometheus.CounterOpts{
			Name: "relay_connections_accepted_total",
			Help: "connections accepted after a valid handshake",
		}),
		superseded: promautoFactory.NewCounter(prometheus.CounterOpts{
			Name: "relay_connections_superseded_total",
			Help: "connections closed because the same client connected again",
		}),
	}
}
