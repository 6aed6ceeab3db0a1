// Package config defines the gateway's configuration, its defaults, and
// validation. Values load from an optional JSON file and are overridden by
// flags and environment in the command entrypoint.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/bonfire-networks/bonfire-notify/errors"
)

// NATSConfig holds bus connection settings.
type NATSConfig struct {
	URL           string        `json:"url"`
	Name          string        `json:"name"`
	MaxReconnects int           `json:"max_reconnects"`
	ReconnectWait time.Duration `json:"reconnect_wait"`
	Timeout       time.Duration `json:"timeout"`
}

// ServerConfig holds the streaming listener settings.
type ServerConfig struct {
	Host              string        `json:"host"`
	Port              int           `json:"port"`
	Path              string        `json:"path"`
	HeartbeatInterval time.Duration `json:"heartbeat_interval"`
	WriteTimeout      time.Duration `json:"write_timeout"`
	PongTimeout       time.Duration `json:"pong_timeout"`
	MailboxCapacity   int           `json:"mailbox_capacity"`
	QueueCapacity     int           `json:"queue_capacity"`
}

// AuthConfig holds token authority settings.
type AuthConfig struct {
	Subject string        `json:"subject"`
	Timeout time.Duration `json:"timeout"`
}

// DirectoryConfig holds feed directory settings. Mode selects between the
// bus-backed directory ("nats") and the convention-based one ("static").
type DirectoryConfig struct {
	Mode    string        `json:"mode"`
	Subject string        `json:"subject"`
	Prefix  string        `json:"prefix"`
	Timeout time.Duration `json:"timeout"`
}

// MetricsConfig holds the operational endpoint settings.
type MetricsConfig struct {
	Enabled bool   `json:"enabled"`
	Port    int    `json:"port"`
	Path    string `json:"path"`
}

// Config is the complete gateway configuration.
type Config struct {
	NATS      NATSConfig      `json:"nats"`
	Server    ServerConfig    `json:"server"`
	Auth      AuthConfig      `json:"auth"`
	Directory DirectoryConfig `json:"directory"`
	Metrics   MetricsConfig   `json:"metrics"`
}

// Default returns the configuration defaults.
func Default() *Config {
	return &Config{
		NATS: NATSConfig{
			URL:           "nats://localhost:4222",
			Name:          "bonfire-notify",
			MaxReconnects: -1,
			ReconnectWait: 2 * time.Second,
			Timeout:       5 * time.Second,
		},
		Server: ServerConfig{
			Host:              "0.0.0.0",
			Port:              4000,
			Path:              "/api/v1/streaming",
			HeartbeatInterval: 30 * time.Second,
			WriteTimeout:      10 * time.Second,
			PongTimeout:       60 * time.Second,
			MailboxCapacity:   256,
			QueueCapacity:     64,
		},
		Auth: AuthConfig{
			Subject: "bonfire.auth.verify",
			Timeout: 5 * time.Second,
		},
		Directory: DirectoryConfig{
			Mode:    "nats",
			Subject: "bonfire.directory.resolve",
			Prefix:  "bonfire",
			Timeout: 5 * time.Second,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
			Path:    "/metrics",
		},
	}
}

// Load reads a JSON config file over the defaults. An empty path returns
// the defaults unchanged.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WrapFatal(err, "Config", "Load", "read config file")
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, errors.WrapInvalid(err, "Config", "Load", "parse config file")
	}
	return cfg, nil
}

// Validate checks the configuration for values the gateway cannot run
// with.
func (c *Config) Validate() error {
	if c.NATS.URL == "" {
		return errors.WrapInvalid(fmt.Errorf("nats url is required"), "Config", "Validate", "check nats")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return errors.WrapInvalid(fmt.Errorf("invalid server port %d", c.Server.Port), "Config", "Validate", "check server")
	}
	if c.Server.Path == "" || c.Server.Path[0] != '/' {
		return errors.WrapInvalid(fmt.Errorf("server path must start with /"), "Config", "Validate", "check server")
	}
	if c.Auth.Subject == "" {
		return errors.WrapInvalid(fmt.Errorf("auth subject is required"), "Config", "Validate", "check auth")
	}
	switch c.Directory.Mode {
	case "nats":
		if c.Directory.Subject == "" {
			return errors.WrapInvalid(fmt.Errorf("directory subject is required in nats mode"), "Config", "Validate", "check directory")
		}
	case "static":
		if c.Directory.Prefix == "" {
			return errors.WrapInvalid(fmt.Errorf("directory prefix is required in static mode"), "Config", "Validate", "check directory")
		}
	default:
		return errors.WrapInvalid(fmt.Errorf("unknown directory mode %q", c.Directory.Mode), "Config", "Validate", "check directory")
	}
	if c.Metrics.Enabled {
		if c.Metrics.Port <= 0 || c.Metrics.Port > 65535 {
			return errors.WrapInvalid(fmt.Errorf("invalid metrics port %d", c.Metrics.Port), "Config", "Validate", "check metrics")
		}
		if c.Metrics.Port == c.Server.Port {
			return errors.WrapInvalid(fmt.Errorf("metrics port conflicts with server port"), "Config", "Validate", "check metrics")
		}
	}
	return nil
}
