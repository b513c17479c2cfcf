package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	require.NoError(t, cfg.Validate())
	assert.Equal(t, ":8080", cfg.Server.Address)
	assert.Equal(t, ":8081", cfg.Realtime.Address)
	assert.Equal(t, 30*time.Second, cfg.Auth.IdentityTTL)
	assert.True(t, cfg.Recording.Enabled)
	assert.False(t, cfg.Redis.Enabled)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoad_MissingFileFallsBackToDefaults(t *testing.T) {
	cfg, err := Load("/nonexistent/config.yaml")

	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Server.Address, cfg.Server.Address)
}

func TestLoad_YAMLOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  address: ":9090"
realtime:
  ping_interval: 15s
  messages_per_second: 5
auth:
  jwt_secret: "file-secret"
redis:
  enabled: true
  address: "redis:6379"
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Address)
	assert.Equal(t, 15*time.Second, cfg.Realtime.PingInterval)
	assert.Equal(t, 5.0, cfg.Realtime.MessagesPerSecond)
	assert.Equal(t, "file-secret", cfg.Auth.JWTSecret)
	assert.True(t, cfg.Redis.Enabled)

	// untouched sections keep defaults
	assert.Equal(t, 60*time.Second, cfg.Realtime.PongTimeout)
	assert.Equal(t, 10, cfg.Redis.PoolSize)
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [not a mapping"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_InvalidValuesRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
realtime:
  message_burst: -1
`), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "message_burst")
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("LIVEGATE_SERVER_ADDRESS", ":7070")
	t.Setenv("LIVEGATE_JWT_SECRET", "env-secret")
	t.Setenv("LIVEGATE_LOG_LEVEL", "debug")

	cfg, err := Load("/nonexistent/config.yaml")
	require.NoError(t, err)

	assert.Equal(t, ":7070", cfg.Server.Address)
	assert.Equal(t, "env-secret", cfg.Auth.JWTSecret)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		errSub string
	}{
		{"empty server address", func(c *Config) { c.Server.Address = "" }, "server.address"},
		{"zero auth timeout", func(c *Config) { c.Auth.Timeout = 0 }, "auth.timeout"},
		{"empty jwt secret", func(c *Config) { c.Auth.JWTSecret = "" }, "jwt_secret"},
		{"zero ping interval", func(c *Config) { c.Realtime.PingInterval = 0 }, "ping_interval"},
		{"redis enabled without address", func(c *Config) {
			c.Redis.Enabled = true
			c.Redis.Address = ""
		}, "redis.address"},
		{"recording delays inverted", func(c *Config) {
			c.Recording.InitialDelay = time.Second
			c.Recording.MaxDelay = time.Millisecond
		}, "max_delay"},
		{"tracing enabled without url", func(c *Config) {
			c.Tracing.Enabled = true
			c.Tracing.JaegerURL = ""
		}, "jaeger_url"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errSub)
		})
	}
}
