package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/robalyx/roprofile/internal/setup/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadConfigFile(t *testing.T) {
	path := writeConfig(t, `
version = 1

[server]
port = 9090
admin_token = "secret"

[cache]
backend = "redis"
ttl = 120000

[queue]
batch_size = 3
batch_delay = 250
`)

	cfg, used, err := config.LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, path, used)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "secret", cfg.Server.AdminToken)
	assert.Equal(t, "redis", cfg.Cache.Backend)
	assert.Equal(t, 2*time.Minute, config.Milliseconds(cfg.Cache.TTL))
	assert.Equal(t, 3, cfg.Queue.BatchSize)
	assert.Equal(t, 250*time.Millisecond, config.Milliseconds(cfg.Queue.BatchDelay))

	// Untouched keys keep their defaults
	assert.Equal(t, "https://users.roblox.com", cfg.Upstream.BaseURLs.Users)
	assert.Equal(t, 5000, cfg.Upstream.OptionalTimeout)
	assert.Equal(t, "info", cfg.Debug.LogLevel)
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	path := writeConfig(t, "version = 1\n[server]\nport = 9090\n")

	t.Setenv("ROPROFILE_SERVER__PORT", "7070")
	t.Setenv("ROPROFILE_SERVER__RATE_LIMIT__BURST_SIZE", "42")
	t.Setenv("ROPROFILE_CACHE__BACKEND", "redis")

	cfg, _, err := config.LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, 42, cfg.Server.RateLimit.BurstSize)
	assert.Equal(t, "redis", cfg.Cache.Backend)
}

func TestLoadConfigVersion(t *testing.T) {
	t.Run("missing", func(t *testing.T) {
		path := writeConfig(t, "[server]\nport = 9090\n")

		_, _, err := config.LoadConfig(path)
		require.ErrorIs(t, err, config.ErrConfigVersionMissing)
	})

	t.Run("mismatch", func(t *testing.T) {
		path := writeConfig(t, "version = 99\n")

		_, _, err := config.LoadConfig(path)
		require.ErrorIs(t, err, config.ErrConfigVersionMismatch)
	})
}

func TestLoadConfigMissingExplicitFile(t *testing.T) {
	_, _, err := config.LoadConfig(filepath.Join(t.TempDir(), "absent.toml"))
	require.ErrorIs(t, err, config.ErrConfigFileNotFound)
}

func TestLoadConfigInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "unknown backend", content: "version = 1\n[cache]\nbackend = \"disk\"\n"},
		{name: "zero batch size", content: "version = 1\n[queue]\nbatch_size = 0\n"},
		{name: "zero ttl", content: "version = 1\n[cache]\nttl = 0\n"},
		{name: "bad port", content: "version = 1\n[server]\nport = 70000\n"},
		{name: "zero burst", content: "version = 1\n[server.rate_limit]\nburst_size = 0\n"},
		{name: "zero rate", content: "version = 1\n[server.rate_limit]\nrequests_per_second = 0\n"},
		{name: "negative block", content: "version = 1\n[server.rate_limit]\nblock_duration = -1\n"},
		{name: "negative strikes", content: "version = 1\n[server.rate_limit]\nstrike_limit = -1\n"},
		{name: "zero half-open requests", content: "version = 1\n[circuit_breaker]\nmax_requests = 0\n"},
		{name: "zero breaker timeout", content: "version = 1\n[circuit_breaker]\ntimeout = 0\n"},
		{name: "negative breaker interval", content: "version = 1\n[circuit_breaker]\ninterval = -1\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := config.LoadConfig(writeConfig(t, tt.content))
			require.ErrorIs(t, err, config.ErrInvalidConfig)
		})
	}
}

func TestLoadConfigDisabledSectionsSkipChecks(t *testing.T) {
	path := writeConfig(t, "version = 1\n"+
		"[server.rate_limit]\nenabled = false\nburst_size = 0\nblock_duration = 0\n"+
		"[circuit_breaker]\nenabled = false\nmax_requests = 0\ntimeout = 0\n")

	cfg, _, err := config.LoadConfig(path)
	require.NoError(t, err)
	assert.False(t, cfg.Server.RateLimit.Enabled)
	assert.False(t, cfg.CircuitBreaker.Enabled)
}

func TestLoadConfigZeroBlockDurationAllowed(t *testing.T) {
	path := writeConfig(t, "version = 1\n[server.rate_limit]\nblock_duration = 0\n")

	cfg, _, err := config.LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 0, cfg.Server.RateLimit.BlockDuration)
}
