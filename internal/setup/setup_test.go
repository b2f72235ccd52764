package setup

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/robalyx/roprofile/internal/cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("version = 1\n"+body), 0o600))

	return path
}

func TestInitializeAppMemory(t *testing.T) {
	path := writeConfig(t, "[debug]\nlog_to_stderr = false\n")

	app, err := InitializeApp(t.Context(), path, t.TempDir(), "test", "dev")
	require.NoError(t, err)
	t.Cleanup(func() { app.Cleanup(t.Context()) })

	assert.Nil(t, app.RedisManager)
	assert.NotNil(t, app.Service)

	stats, err := app.Cache.Stats(t.Context())
	require.NoError(t, err)
	assert.Equal(t, cache.BackendMemory, stats.Backend)
}

func TestInitializeAppRedis(t *testing.T) {
	mr := miniredis.RunT(t)

	path := writeConfig(t, "[debug]\nlog_to_stderr = false\n"+
		"[cache]\nbackend = \"redis\"\n"+
		"[redis]\nhost = \""+mr.Host()+"\"\nport = "+mr.Port()+"\n")

	app, err := InitializeApp(t.Context(), path, t.TempDir(), "test", "dev")
	require.NoError(t, err)
	t.Cleanup(func() { app.Cleanup(t.Context()) })

	require.NotNil(t, app.RedisManager)

	stats, err := app.Cache.Stats(t.Context())
	require.NoError(t, err)
	assert.Equal(t, cache.BackendRedis, stats.Backend)
}

func TestInitializeAppMissingConfig(t *testing.T) {
	_, err := InitializeApp(t.Context(), filepath.Join(t.TempDir(), "missing.toml"), t.TempDir(), "test", "dev")
	require.Error(t, err)
}

func TestInitializeAppCacheFailureReleasesLogging(t *testing.T) {
	mr := miniredis.RunT(t)
	host, port := mr.Host(), mr.Port()
	mr.Close()

	logDir := t.TempDir()
	path := writeConfig(t, "[debug]\nlog_to_stderr = false\n"+
		"[cache]\nbackend = \"redis\"\n"+
		"[redis]\nhost = \""+host+"\"\nport = "+port+"\n")

	_, err := InitializeApp(t.Context(), path, logDir, "test", "dev")
	require.Error(t, err)

	logs, err := filepath.Glob(filepath.Join(logDir, "*", "test.log"))
	require.NoError(t, err)
	require.Len(t, logs, 1)

	content, err := os.ReadFile(logs[0])
	require.NoError(t, err)
	assert.Contains(t, string(content), "Failed to initialize cache")
}
