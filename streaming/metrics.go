package streaming

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/bonfire-networks/bonfire-notify/metric"
)

// Metrics holds the streaming server's prometheus collectors. A nil
// *Metrics disables collection; every recording method is nil-safe.
type Metrics struct {
	ConnectionsActive   prometheus.Gauge
	ConnectionsTotal    prometheus.Counter
	AuthFailures        prometheus.Counter
	SubscriptionsActive prometheus.Gauge
	FramesSent          *prometheus.CounterVec
	FramesSkipped       prometheus.Counter
	MailboxDropped      prometheus.Counter
}

// NewMetrics creates and registers the streaming collectors. Returns nil
// when the registry is nil, disabling collection.
func NewMetrics(registry *metric.MetricsRegistry) (*Metrics, error) {
	if registry == nil {
		return nil, nil
	}

	m := &Metrics{
		ConnectionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metric.Namespace,
			Name:      "connections_active",
			Help:      "Number of currently open streaming connections",
		}),
		ConnectionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metric.Namespace,
			Name:      "connections_total",
			Help:      "Total streaming connections accepted",
		}),
		AuthFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metric.Namespace,
			Name:      "auth_failures_total",
			Help:      "Connection attempts rejected at authentication",
		}),
		SubscriptionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metric.Namespace,
			Name:      "subscriptions_active",
			Help:      "Number of active stream subscriptions across connections",
		}),
		FramesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metric.Namespace,
			Name:      "frames_sent_total",
			Help:      "Wire frames pushed to clients by event type",
		}, []string{"event"}),
		FramesSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metric.Namespace,
			Name:      "frames_skipped_total",
			Help:      "Domain events skipped because no frame could be built",
		}),
		MailboxDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metric.Namespace,
			Name:      "mailbox_dropped_total",
			Help:      "Bus events dropped from full connection mailboxes",
		}),
	}

	registrations := []struct {
		name      string
		collector prometheus.Collector
	}{
		{"connections_active", m.ConnectionsActive},
		{"connections_total", m.ConnectionsTotal},
		{"auth_failures_total", m.AuthFailures},
		{"subscriptions_active", m.SubscriptionsActive},
		{"frames_sent_total", m.FramesSent},
		{"frames_skipped_total", m.FramesSkipped},
		{"mailbox_dropped_total", m.MailboxDropped},
	}
	for _, reg := range registrations {
		if err := registry.RegisterCollector("streaming", reg.name, reg.collector); err != nil {
			return nil, err
		}
	}

	return m, nil
}

func (m *Metrics) connectionOpened() {
	if m == nil {
		return
	}
	m.ConnectionsTotal.Inc()
	m.ConnectionsActive.Inc()
}

func (m *Metrics) connectionClosed() {
	if m == nil {
		return
	}
	m.ConnectionsActive.Dec()
}

func (m *Metrics) authFailure() {
	if m == nil {
		return
	}
	m.AuthFailures.Inc()
}

func (m *Metrics) subscriptionAdded() {
	if m == nil {
		return
	}
	m.SubscriptionsActive.Inc()
}

func (m *Metrics) subscriptionRemoved(n int) {
	if m == nil {
		return
	}
	m.SubscriptionsActive.Sub(float64(n))
}

func (m *Metrics) frameSent(event string) {
	if m == nil {
		return
	}
	m.FramesSent.WithLabelValues(event).Inc()
}

func (m *Metrics) frameSkipped() {
	if m == nil {
		return
	}
	m.FramesSkipped.Inc()
}

func (m *Metrics) mailboxDropped() {
	if m == nil {
		return
	}
	m.MailboxDropped.Inc()
}
