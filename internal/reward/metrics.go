package reward

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type catalogMetrics struct {
	operations *prometheus.CounterVec
	rejected   *prometheus.CounterVec
}

func newCatalogMetrics(reg prometheus.Registerer) *catalogMetrics {
	promautoFactory := promauto.With(reg)
	return &catalogMetrics{
		operations: promautoFactory.NewCounterVec(prometheus.CounterOpts{
			Name: "relay_reward_operations_total",
			Help: "reward catalog operations applied",
		}, []string{"op"}),
		rejected: promautoFactory.NewCounterVec(prometheus.CounterOpts{
			Name: "relay_reward_rejected_total",
			Help: "reward requests rejected by reason",
		}, []string{"reason"}),
	}
}
