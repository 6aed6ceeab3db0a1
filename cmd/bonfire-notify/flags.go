package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
)

// options holds command-line settings. Every flag falls back to a
// BONFIRE_NOTIFY_* environment variable, then to the built-in default;
// explicit flags win over both.
type options struct {
	configPath    string
	natsURL       string
	host          string
	port          int
	metricsPort   int
	directoryMode string
	logLevel      string
	logFormat     string
}

func envOr(key, fallback string) string {
	if v := os.Getenv("BONFIRE_NOTIFY_" + key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv("BONFIRE_NOTIFY_" + key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func parseFlags(args []string) (*options, error) {
	opts := &options{}

	fs := flag.NewFlagSet("bonfire-notify", flag.ContinueOnError)
	fs.StringVar(&opts.configPath, "config", envOr("CONFIG", ""), "path to JSON config file")
	fs.StringVar(&opts.natsURL, "nats-url", envOr("NATS_URL", ""), "NATS server URL")
	fs.StringVar(&opts.host, "host", envOr("HOST", ""), "streaming listen host")
	fs.IntVar(&opts.port, "port", envIntOr("PORT", 0), "streaming listen port")
	fs.IntVar(&opts.metricsPort, "metrics-port", envIntOr("METRICS_PORT", 0), "metrics listen port")
	fs.StringVar(&opts.directoryMode, "directory-mode", envOr("DIRECTORY_MODE", ""), "feed directory mode (nats or static)")
	fs.StringVar(&opts.logLevel, "log-level", envOr("LOG_LEVEL", "info"), "log level (debug, info, warn, error)")
	fs.StringVar(&opts.logFormat, "log-format", envOr("LOG_FORMAT", "json"), "log format (json or text)")

	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("parse flags: %w", err)
	}
	return opts, nil
}
