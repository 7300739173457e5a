package poll

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type pollMetrics struct {
	active    prometheus.Gauge
	created   prometheus.Counter
	finalized prometheus.Counter
	updates   prometheus.Counter
	rejected  *prometheus.CounterVec
}

func newPollMetrics(reg prometheus.Registerer) *pollMetrics {
	promautoFactory := promauto.With(reg)
	return &pollMetrics{
		active: promautoFactory.NewGauge(prometheus.GaugeOpts{
			Name: "relay_polls_active",
			Help: "polls waiting for their deadline",
		}),
		created: promautoFactory.NewCounter(prometheus.CounterOpts{
			Name: "relay_polls_created_total",
			Help: "polls accepted",
		}),
		finalized: promautoFactory.NewCounter(prometheus.CounterOpts{
			Name: "relay_polls_finalized_total",
			Help: "polls finalized at their deadline",
		}),
		updates: promautoFactory.NewCounter(prometheus.CounterOpts{
			Name: "relay_poll_updates_total",
			Help: "contributor vote snapshots recorded",
		}),
		rejected: promautoFactory.NewCounterVec(prometheus.CounterOpts{
			Name: "relay_poll_rejected_total",
			Help: "poll requests rejected by reason",
		}, []string{"reason"}),
	}
}
