package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bonfire-networks/bonfire-notify/config"
)

func TestParseFlagsDefaults(t *testing.T) {
	opts, err := parseFlags(nil)
	require.NoError(t, err)

	assert.Empty(t, opts.natsURL)
	assert.Zero(t, opts.port)
	assert.Equal(t, "info", opts.logLevel)
	assert.Equal(t, "json", opts.logFormat)
}

func TestParseFlagsExplicit(t *testing.T) {
	opts, err := parseFlags([]string{
		"-nats-url", "nats://bus:4222",
		"-port", "5000",
		"-log-level", "debug",
	})
	require.NoError(t, err)

	assert.Equal(t, "nats://bus:4222", opts.natsURL)
	assert.Equal(t, 5000, opts.port)
	assert.Equal(t, "debug", opts.logLevel)
}

func TestParseFlagsEnvFallback(t *testing.T) {
	t.Setenv("BONFIRE_NOTIFY_NATS_URL", "nats://env:4222")
	t.Setenv("BONFIRE_NOTIFY_PORT", "6000")

	opts, err := parseFlags(nil)
	require.NoError(t, err)
	assert.Equal(t, "nats://env:4222", opts.natsURL)
	assert.Equal(t, 6000, opts.port)

	// Explicit flags still win over the environment
	opts, err = parseFlags([]string{"-port", "7000"})
	require.NoError(t, err)
	assert.Equal(t, 7000, opts.port)
}

func TestParseFlagsUnknownFlag(t *testing.T) {
	_, err := parseFlags([]string{"-definitely-not-a-flag"})
	assert.Error(t, err)
}

func TestApplyOverrides(t *testing.T) {
	cfg := config.Default()
	applyOverrides(cfg, &options{
		natsURL:       "nats://flag:4222",
		port:          5000,
		directoryMode: "static",
	})

	assert.Equal(t, "nats://flag:4222", cfg.NATS.URL)
	assert.Equal(t, 5000, cfg.Server.Port)
	assert.Equal(t, "static", cfg.Directory.Mode)
	// Untouched fields keep config values
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 9090, cfg.Metrics.Port)
}
