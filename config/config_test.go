package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultValidates(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "nats://localhost:4222", cfg.NATS.URL)
	assert.Equal(t, "/api/v1/streaming", cfg.Server.Path)
	assert.Equal(t, 30*time.Second, cfg.Server.HeartbeatInterval)
}

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	content := `{
		"nats": {"url": "nats://bus:4222"},
		"server": {"port": 5000},
		"directory": {"mode": "static", "prefix": "myinstance"}
	}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "nats://bus:4222", cfg.NATS.URL)
	assert.Equal(t, 5000, cfg.Server.Port)
	assert.Equal(t, "static", cfg.Directory.Mode)
	assert.Equal(t, "myinstance", cfg.Directory.Prefix)
	// Untouched sections keep their defaults
	assert.Equal(t, "/api/v1/streaming", cfg.Server.Path)
	assert.Equal(t, "bonfire.auth.verify", cfg.Auth.Subject)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	assert.Error(t, err)
}

func TestLoadMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidateRejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty nats url", func(c *Config) { c.NATS.URL = "" }},
		{"zero server port", func(c *Config) { c.Server.Port = 0 }},
		{"server port too large", func(c *Config) { c.Server.Port = 70000 }},
		{"relative server path", func(c *Config) { c.Server.Path = "streaming" }},
		{"empty auth subject", func(c *Config) { c.Auth.Subject = "" }},
		{"unknown directory mode", func(c *Config) { c.Directory.Mode = "ldap" }},
		{"nats mode without subject", func(c *Config) { c.Directory.Subject = "" }},
		{"static mode without prefix", func(c *Config) {
			c.Directory.Mode = "static"
			c.Directory.Prefix = ""
		}},
		{"metrics port conflict", func(c *Config) { c.Metrics.Port = c.Server.Port }},
		{"invalid metrics port", func(c *Config) { c.Metrics.Port = -1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestValidateMetricsDisabledSkipsPortChecks(t *testing.T) {
	cfg := Default()
	cfg.Metrics.Enabled = false
	cfg.Metrics.Port = -1
	assert.NoError(t, cfg.Validate())
}
