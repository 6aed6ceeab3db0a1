// Package component defines the Discoverable interface and related types
package component

import (
	"time"
)

// Discoverable defines the interface for components that can be discovered
// and inspected by the management layer.
//
// The streaming server is the gateway's discoverable component; the SSE
// fallback is served through it and has no surface of its own.
type Discoverable interface {
	// Meta returns basic component information
	Meta() Metadata

	// InputPorts returns the ports this component accepts data on
	InputPorts() []Port

	// OutputPorts returns the ports this component produces data on
	OutputPorts() []Port

	// Health returns current health status
	Health() HealthStatus

	// DataFlow returns current data flow metrics
	DataFlow() FlowMetrics
}

// Metadata describes what a component is
type Metadata struct {
	Name        string `json:"name"`
	Type        string `json:"type"` // "gateway", "output"
	Description string `json:"description"`
	Version     string `json:"version"`
}

// Direction indicates whether a port consumes or produces data
type Direction string

const (
	// DirectionInput marks a port the component consumes data on
	DirectionInput Direction = "input"
	// DirectionOutput marks a port the component produces data on
	DirectionOutput Direction = "output"
)

// Port describes a single data connection point of a component
type Port struct {
	Name        string    `json:"name"`
	Direction   Direction `json:"direction"`
	Required    bool      `json:"required"`
	Description string    `json:"description"`
	Config      any       `json:"config,omitempty"`
}

// NATSPort describes a NATS subject binding
type NATSPort struct {
	Subject string `json:"subject"`
}

// NetworkPort describes a network listener binding
type NetworkPort struct {
	Protocol string `json:"protocol"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
}

// HealthStatus describes the current health state of a component
type HealthStatus struct {
	Healthy    bool          `json:"healthy"`
	LastCheck  time.Time     `json:"last_check"`
	ErrorCount int           `json:"error_count"`
	LastError  string        `json:"last_error,omitempty"`
	Uptime     time.Duration `json:"uptime"`
}

// FlowMetrics describes the current data flow through a component
type FlowMetrics struct {
	MessagesPerSecond float64   `json:"messages_per_second"`
	BytesPerSecond    float64   `json:"bytes_per_second"`
	ErrorRate         float64   `json:"error_rate"`
	LastActivity      time.Time `json:"last_activity"`
}
