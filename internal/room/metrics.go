package room

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type directoryMetrics struct {
	rooms      prometheus.Gauge
	broadcasts *prometheus.CounterVec
	frames     prometheus.Counter
}

func newDirectoryMetrics(reg prometheus.Registerer) *directoryMetrics {
	promautoFactory := promauto.With(reg)
	return &directoryMetrics{
		rooms: promautoFactory.NewGauge(prometheus.GaugeOpts{
			Name: "relay_rooms",
			Help: "number of rooms known to the relay",
		}),
		broadcasts: promautoFactory.NewCounterVec(prometheus.CounterOpts{
			Name: "relay_room_broadcasts_total",
			Help: "room broadcasts by message type",
		}, []string{"type"}),
		frames: promautoFactory.NewCounter(prometheus.CounterOpts{
			Name: "relay_frames_sent_total",
			Help: "frames handed to client mailboxes",
		}),
	}
}
