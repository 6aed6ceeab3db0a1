// Package metric provides prometheus metrics registration and the ops HTTP
// endpoint for the streaming gateway.
//
// The MetricsRegistry wraps a private prometheus.Registry with Go runtime
// collectors plus core platform metrics (component status, error totals,
// NATS connection health). Components create their own Metrics structs and
// register them against the registry; a nil registry disables metrics
// entirely (nil input = nil feature pattern).
//
// Server exposes the registry on /metrics alongside a plain /health check.
package metric
