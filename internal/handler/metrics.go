package handler

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type handlerMetrics struct {
	handshakeRejected prometheus.Counter
	received          *prometheus.CounterVec
	dropped           *prometheus.CounterVec
}

func newHandlerMetrics(reg prometheus.Registerer) *handlerMetrics {
	promautoFactory := promauto.With(reg)
	return &handlerMetrics{
		handshakeRejected: promautoFactory.NewCounter(prometheus.CounterOpts{
			Name: "relay_handshakes_rejected_total",
			Help: "connections refused for missing or invalid headers",
		}),
		received: promautoFactory.NewCounterVec(prometheus.CounterOpts{
			Name: "relay_messages_received_total",
			Help: "decoded inbound messages by type",
		}, []string{"type"}),
		dropped: promautoFactory.NewCounterVec(prometheus.CounterOpts{
			Name: "relay_messages_dropped_total",
			Help: "inbound messages dropped by reason",
		}, []string{"reason"}),
	}
}
