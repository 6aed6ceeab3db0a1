package natsclient

import (
	"fmt"
	"log"
	"time"
)

// Logger interface for client logging
type Logger interface {
	Printf(format string, v ...any)
	Debugf(format string, v ...any)
	Errorf(format string, v ...any)
}

// defaultLogger uses the standard library log package
type defaultLogger struct{}

func (l *defaultLogger) Printf(format string, v ...any) {
	log.Printf("[NATS] "+format, v...)
}

func (l *defaultLogger) Debugf(_ string, _ ...any) {
	// Debug logging disabled by default
}

func (l *defaultLogger) Errorf(format string, v ...any) {
	log.Printf("[NATS ERROR] "+format, v...)
}

// ClientOption configures a Client
type ClientOption func(*Client) error

// WithLogger sets the logger for the client
func WithLogger(logger Logger) ClientOption {
	return func(c *Client) error {
		if logger == nil {
			return fmt.Errorf("logger cannot be nil")
		}
		c.logger = logger
		return nil
	}
}

// WithMaxReconnects sets the maximum number of reconnection attempts.
// Use -1 for infinite reconnects.
func WithMaxReconnects(max int) ClientOption {
	return func(c *Client) error {
		if max < -1 {
			return fmt.Errorf("max reconnects must be >= -1, got %d", max)
		}
		c.maxReconnects = max
		return nil
	}
}

// WithReconnectWait sets the wait time between reconnection attempts
func WithReconnectWait(wait time.Duration) ClientOption {
	return func(c *Client) error {
		if wait < 0 {
			return fmt.Errorf("reconnect wait must be non-negative, got %v", wait)
		}
		c.reconnectWait = wait
		return nil
	}
}

// WithPingInterval sets the interval for NATS protocol pings
func WithPingInterval(interval time.Duration) ClientOption {
	return func(c *Client) error {
		if interval <= 0 {
			return fmt.Errorf("ping interval must be positive, got %v", interval)
		}
		c.pingInterval = interval
		return nil
	}
}

// WithTimeout sets the connection and request timeout
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) error {
		if timeout <= 0 {
			return fmt.Errorf("timeout must be positive, got %v", timeout)
		}
		c.timeout = timeout
		return nil
	}
}

// WithDrainTimeout sets the timeout for draining subscriptions on close
func WithDrainTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) error {
		if timeout <= 0 {
			return fmt.Errorf("drain timeout must be positive, got %v", timeout)
		}
		c.drainTimeout = timeout
		return nil
	}
}

// WithToken sets the authentication token
func WithToken(token string) ClientOption {
	return func(c *Client) error {
		c.token = token
		return nil
	}
}

// WithName sets the client connection name reported to the server
func WithName(name string) ClientOption {
	return func(c *Client) error {
		c.clientName = name
		return nil
	}
}

// WithCircuitThreshold sets the number of failures before the circuit opens
func WithCircuitThreshold(threshold int32) ClientOption {
	return func(c *Client) error {
		if threshold <= 0 {
			return fmt.Errorf("circuit threshold must be positive, got %d", threshold)
		}
		c.circuitThreshold = threshold
		return nil
	}
}

// WithHealthInterval sets the health check interval. Zero disables health
// monitoring.
func WithHealthInterval(interval time.Duration) ClientOption {
	return func(c *Client) error {
		if interval < 0 {
			return fmt.Errorf("health interval must be non-negative, got %v", interval)
		}
		c.healthInterval = interval
		return nil
	}
}

// WithDisconnectHandler sets a callback invoked when the connection drops
func WithDisconnectHandler(fn func(error)) ClientOption {
	return func(c *Client) error {
		c.onDisconnect = fn
		return nil
	}
}

// WithReconnectHandler sets a callback invoked after a successful reconnect
func WithReconnectHandler(fn func()) ClientOption {
	return func(c *Client) error {
		c.onReconnect = fn
		return nil
	}
}
