package metric

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Namespace is the prometheus namespace for all gateway metrics.
const Namespace = "bonfire_notify"

// Metrics contains platform-level metrics shared across components
// (domain-specific metrics live with the components that own them).
type Metrics struct {
	ComponentStatus *prometheus.GaugeVec
	ErrorsTotal     *prometheus.CounterVec

	// NATS metrics
	NATSConnected  prometheus.Gauge
	NATSRTT        prometheus.Gauge
	NATSReconnects prometheus.Counter
}

// NewMetrics creates a new Metrics instance with all platform metrics
func NewMetrics() *Metrics {
	return &Metrics{
		ComponentStatus: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: Namespace,
				Subsystem: "component",
				Name:      "status",
				Help:      "Component status (0=stopped, 1=running)",
			},
			[]string{"component"},
		),

		ErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: "errors",
				Name:      "total",
				Help:      "Total number of errors",
			},
			[]string{"component", "type"},
		),

		NATSConnected: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: Namespace,
				Subsystem: "nats",
				Name:      "connected",
				Help:      "NATS connection status (0=disconnected, 1=connected)",
			},
		),

		NATSRTT: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: Namespace,
				Subsystem: "nats",
				Name:      "rtt_milliseconds",
				Help:      "NATS round-trip time in milliseconds",
			},
		),

		NATSReconnects: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: "nats",
				Name:      "reconnects_total",
				Help:      "Total number of NATS reconnections",
			},
		),
	}
}
