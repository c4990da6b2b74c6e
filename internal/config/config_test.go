package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 2*time.Second, cfg.Dispatch.PollInterval)
	assert.Equal(t, 7*time.Second, cfg.Dispatch.SocketTimeout)
	assert.Equal(t, 5, cfg.Dispatch.MaxAttempts)
	assert.Equal(t, []time.Duration{
		2 * time.Second, 5 * time.Second, 15 * time.Second, 30 * time.Second, 60 * time.Second,
	}, cfg.Dispatch.Backoff)
	assert.Equal(t, 90, cfg.Security.RateLimitMax)
	assert.Equal(t, time.Minute, cfg.Security.RateLimitWindow)
	assert.Equal(t, 10, cfg.Monitor.FailureThreshold)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
server:
  port: 9090
security:
  signing_secret: file-secret
  rate_limit_max: 30
dispatch:
  max_attempts: 3
logging:
  level: debug
  format: text
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "file-secret", cfg.Security.SigningSecret)
	assert.Equal(t, 30, cfg.Security.RateLimitMax)
	assert.Equal(t, 3, cfg.Dispatch.MaxAttempts)
	assert.Equal(t, "debug", cfg.Logging.Level)
	// Untouched keys keep their defaults.
	assert.Equal(t, "./data/labelrelay.db", cfg.Database.Path)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("LABELRELAY_PORT", "7070")
	t.Setenv("LABELRELAY_SIGNING_SECRET", "env-secret")
	t.Setenv("LABELRELAY_DB_PATH", "/tmp/relay.db")
	t.Setenv("LABELRELAY_LOG_LEVEL", "warn")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, "env-secret", cfg.Security.SigningSecret)
	assert.Equal(t, "/tmp/relay.db", cfg.Database.Path)
	assert.Equal(t, "warn", cfg.Logging.Level)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := defaults()
		cfg.Security.SigningSecret = "secret"
		return cfg
	}

	require.NoError(t, valid().Validate())

	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing secret", func(c *Config) { c.Security.SigningSecret = "" }},
		{"bad port", func(c *Config) { c.Server.Port = 0 }},
		{"empty db path", func(c *Config) { c.Database.Path = "" }},
		{"zero rate limit", func(c *Config) { c.Security.RateLimitMax = 0 }},
		{"zero poll interval", func(c *Config) { c.Dispatch.PollInterval = 0 }},
		{"zero max attempts", func(c *Config) { c.Dispatch.MaxAttempts = 0 }},
		{"empty backoff", func(c *Config) { c.Dispatch.Backoff = nil }},
		{"negative backoff entry", func(c *Config) { c.Dispatch.Backoff = []time.Duration{-time.Second} }},
		{"zero monitor window", func(c *Config) { c.Monitor.Window = 0 }},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := valid()
			tc.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
