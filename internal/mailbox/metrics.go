package mailbox

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type mailboxMetrics struct {
	mailboxes     prometheus.Gauge
	pending       prometheus.Gauge
	enqueued      prometheus.Counter
	delivered     prometheus.Counter
	writeFailures prometheus.Counter
	evictions     prometheus.Counter
	dropped       prometheus.Counter
}

func newMailboxMetrics(reg prometheus.Registerer) *mailboxMetrics {
	promautoFactory := promauto.With(reg)
	return &mailboxMetrics{
		mailboxes: promautoFactory.NewGauge(prometheus.GaugeOpts{
			Name: "relay_mailboxes",
			Help: "number of live client mailboxes",
		}),
		pending: promautoFactory.NewGauge(prometheus.GaugeOpts{
			Name: "relay_mailbox_pending_frames",
			Help: "frames queued across all mailboxes",
		}),
		enqueued: promautoFactory.NewCounter(prometheus.CounterOpts{
			Name: "relay_mailbox_enqueued_total",
			Help: "frames accepted into a mailbox",
		}),
		delivered: promautoFactory.NewCounter(prometheus.CounterOpts{
			Name: "relay_mailbox_delivered_total",
			Help: "frames handed to a live connection",
		}),
		writeFailures: promautoFactory.NewCounter(prometheus.CounterOpts{
			Name: "relay_mailbox_write_failures_total",
			Help: "flushes stopped by a failed connection write",
		}),
		evictions: promautoFactory.NewCounter(prometheus.CounterOpts{
			Name: "relay_mailbox_evictions_total",
			Help: "mailboxes discarded after their TTL",
		}),
		dropped: promautoFactory.NewCounter(prometheus.CounterOpts{
			Name: "relay_mailbox_dropped_frames_total",
			Help: "undelivered frames discarded on eviction",
		}),
	}
}
