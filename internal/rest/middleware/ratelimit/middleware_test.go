package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/robalyx/roprofile/internal/setup/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bunrouter"
	"go.uber.org/zap"
)

func TestCheckRateLimit(t *testing.T) {
	t.Parallel()

	m := New(&config.RateLimit{
		Enabled:           true,
		RequestsPerSecond: 0.01,
		BurstSize:         2,
		StrikeLimit:       2,
		BlockDuration:     60,
	}, zap.NewNop())
	t.Cleanup(m.Close)

	// Burst allows two requests
	for range 2 {
		allowed, _, _ := m.checkRateLimit("198.51.100.1")
		require.True(t, allowed)
	}

	// First violation reports the wait until the next token
	allowed, retryAfter, message := m.checkRateLimit("198.51.100.1")
	assert.False(t, allowed)
	assert.Positive(t, retryAfter)
	assert.Equal(t, errRateLimit, message)

	// Second violation reaches the strike limit
	allowed, retryAfter, message = m.checkRateLimit("198.51.100.1")
	assert.False(t, allowed)
	assert.InDelta(t, 60, retryAfter.Seconds(), 1)
	assert.Equal(t, errBlocked, message)

	// Still blocked
	allowed, _, message = m.checkRateLimit("198.51.100.1")
	assert.False(t, allowed)
	assert.Equal(t, errBlocked, message)

	// Other clients are unaffected
	allowed, _, _ = m.checkRateLimit("198.51.100.2")
	assert.True(t, allowed)
}

func TestMiddlewareResponds429(t *testing.T) {
	t.Parallel()

	m := New(&config.RateLimit{RequestsPerSecond: 0.01, BurstSize: 1, StrikeLimit: 10, BlockDuration: 1}, zap.NewNop())
	t.Cleanup(m.Close)

	router := bunrouter.New(bunrouter.Use(m.AsRESTMiddleware))
	router.GET("/", func(w http.ResponseWriter, req bunrouter.Request) error {
		w.WriteHeader(http.StatusNoContent)
		return nil
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Contains(t, rec.Body.String(), `"kind":"RateLimited"`)

	seconds, err := strconv.Atoi(rec.Header().Get("Retry-After"))
	require.NoError(t, err)
	assert.Positive(t, seconds)
}

func TestNewWithZeroWindows(t *testing.T) {
	t.Parallel()

	m := New(&config.RateLimit{Enabled: true, RequestsPerSecond: 1, BurstSize: 0, BlockDuration: 0}, zap.NewNop())
	t.Cleanup(m.Close)

	m.limiters.Set("127.0.0.1", &limiterState{})
	assert.Equal(t, 1, m.limiters.Len())
}
