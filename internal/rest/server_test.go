package rest_test

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/robalyx/roprofile/internal/cache"
	"github.com/robalyx/roprofile/internal/profile"
	"github.com/robalyx/roprofile/internal/rest"
	restTypes "github.com/robalyx/roprofile/internal/rest/types"
	"github.com/robalyx/roprofile/internal/setup/config"
	"github.com/robalyx/roprofile/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeService struct {
	mu          sync.Mutex
	profiles    map[string]*types.Profile
	err         error
	invalidated []string
	cleared     bool
}

func (f *fakeService) GetProfile(_ context.Context, username string) (*types.Profile, bool, error) {
	if _, err := types.NewQuery(username); err != nil {
		return nil, false, err
	}
	if f.err != nil {
		return nil, false, f.err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	p, ok := f.profiles[strings.ToLower(username)]
	if !ok {
		return nil, false, types.NewError(types.KindUserNotFound, "user not found", nil)
	}
	return p, true, nil
}

func (f *fakeService) Stats(context.Context) (profile.Stats, error) {
	return profile.Stats{Cache: cache.Stats{Backend: cache.BackendMemory, Entries: 1, Hits: 3}}, nil
}

func (f *fakeService) Keys(context.Context) ([]string, error) {
	return []string{"builderman"}, nil
}

func (f *fakeService) Clear(context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.cleared = true
	return 1, nil
}

func (f *fakeService) Invalidate(_ context.Context, username string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.invalidated = append(f.invalidated, username)
	return true, nil
}

func newServerConfig() *config.Server {
	return &config.Server{
		Host:            "127.0.0.1",
		ReadTimeout:     1000,
		WriteTimeout:    1000,
		ShutdownTimeout: 1000,
		AdminToken:      "secret",
		AllowedOrigins:  []string{"https://example.com"},
		IP:              config.IPConfig{AllowLocalIPs: true},
		RateLimit:       config.RateLimit{Enabled: true, RequestsPerSecond: 100, BurstSize: 100, StrikeLimit: 5, BlockDuration: 1},
	}
}

func newTestServer(t *testing.T, svc *fakeService, cfg *config.Server) http.Handler {
	t.Helper()

	if svc.profiles == nil {
		svc.profiles = map[string]*types.Profile{
			"builderman": {ID: 156, Username: "builderman", DisplayName: "builderman", Status: types.ActivityStatusActive},
		}
	}

	return rest.NewServer(svc, cfg, "test", zap.NewNop()).Handler()
}

func do(t *testing.T, h http.Handler, method, path string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, path, nil)
	req.RemoteAddr = "127.0.0.1:40000"
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestGetProfile(t *testing.T) {
	t.Parallel()

	h := newTestServer(t, &fakeService{}, newServerConfig())
	rec := do(t, h, http.MethodGet, "/v1/users/Builderman", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json; charset=utf-8", rec.Header().Get("Content-Type"))

	var resp restTypes.ProfileResponse
	require.NoError(t, sonic.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.True(t, resp.Cached)
	require.NotNil(t, resp.Data)
	assert.Equal(t, uint64(156), resp.Data.ID)
}

func TestGetProfileErrors(t *testing.T) {
	t.Parallel()

	limited := types.NewError(types.KindRateLimited, "upstream rate limited", nil)
	limited.RetryAfter = 7 * time.Second

	tests := []struct {
		name       string
		svc        *fakeService
		path       string
		wantStatus int
		wantKind   types.ErrorKind
		wantRetry  string
	}{
		{"invalid username", &fakeService{}, "/v1/users/a!", http.StatusBadRequest, types.KindInvalidInput, ""},
		{"unknown user", &fakeService{}, "/v1/users/nobody_here", http.StatusNotFound, types.KindUserNotFound, ""},
		{"rate limited", &fakeService{err: limited}, "/v1/users/builderman", http.StatusTooManyRequests, types.KindRateLimited, "7"},
		{
			"upstream down",
			&fakeService{err: types.NewError(types.KindUpstreamUnavailable, "down", nil)},
			"/v1/users/builderman", http.StatusBadGateway, types.KindUpstreamUnavailable, "",
		},
		{
			"internal",
			&fakeService{err: types.NewError(types.KindInternal, "boom", nil)},
			"/v1/users/builderman", http.StatusInternalServerError, types.KindInternal, "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			rec := do(t, newTestServer(t, tt.svc, newServerConfig()), http.MethodGet, tt.path, nil)
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantRetry, rec.Header().Get("Retry-After"))

			var resp restTypes.ErrorResponse
			require.NoError(t, sonic.Unmarshal(rec.Body.Bytes(), &resp))
			assert.False(t, resp.Success)
			assert.Equal(t, tt.wantKind, resp.Error.Kind)
			assert.NotEmpty(t, resp.Error.Message)
		})
	}
}

func TestCacheRoutes(t *testing.T) {
	t.Parallel()

	svc := &fakeService{}
	h := newTestServer(t, svc, newServerConfig())
	auth := map[string]string{"Authorization": "Bearer secret"}

	rec := do(t, h, http.MethodGet, "/v1/cache/stats", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, h, http.MethodGet, "/v1/cache/stats", auth)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"backend":"memory"`)

	rec = do(t, h, http.MethodGet, "/v1/cache/keys", auth)
	require.Equal(t, http.StatusOK, rec.Code)

	var keys restTypes.KeysResponse
	require.NoError(t, sonic.Unmarshal(rec.Body.Bytes(), &keys))
	assert.Equal(t, []string{"builderman"}, keys.Keys)
	assert.Equal(t, 1, keys.Count)

	rec = do(t, h, http.MethodDelete, "/v1/cache/Builderman", auth)
	require.Equal(t, http.StatusOK, rec.Code)

	var invalidated restTypes.InvalidateResponse
	require.NoError(t, sonic.Unmarshal(rec.Body.Bytes(), &invalidated))
	assert.Equal(t, "builderman", invalidated.Key)
	assert.True(t, invalidated.Removed)

	rec = do(t, h, http.MethodDelete, "/v1/cache/a!", auth)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodDelete, "/v1/cache", auth)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true,"removed":1}`, rec.Body.String())

	svc.mu.Lock()
	defer svc.mu.Unlock()
	assert.Equal(t, []string{"Builderman"}, svc.invalidated)
	assert.True(t, svc.cleared)
}

func TestCacheRoutesDisabledWithoutToken(t *testing.T) {
	t.Parallel()

	cfg := newServerConfig()
	cfg.AdminToken = ""

	rec := do(t, newTestServer(t, &fakeService{}, cfg), http.MethodGet, "/v1/cache/stats",
		map[string]string{"Authorization": "Bearer "})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), `"kind":"NotFound"`)
}

func TestHealth(t *testing.T) {
	t.Parallel()

	rec := do(t, newTestServer(t, &fakeService{}, newServerConfig()), http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp restTypes.HealthResponse
	require.NoError(t, sonic.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "test", resp.Version)
}

func TestRateLimitAndCORS(t *testing.T) {
	t.Parallel()

	cfg := newServerConfig()
	cfg.RateLimit = config.RateLimit{Enabled: true, RequestsPerSecond: 0.01, BurstSize: 1, StrikeLimit: 10, BlockDuration: 1}
	h := newTestServer(t, &fakeService{}, cfg)

	origin := map[string]string{"Origin": "https://example.com"}

	rec := do(t, h, http.MethodGet, "/v1/users/builderman", origin)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "https://example.com", rec.Header().Get("Access-Control-Allow-Origin"))

	rec = do(t, h, http.MethodGet, "/v1/users/builderman", origin)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	// Health is not rate limited
	rec = do(t, h, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestGzip(t *testing.T) {
	t.Parallel()

	svc := &fakeService{profiles: map[string]*types.Profile{
		"builderman": {ID: 156, Username: "builderman", Description: strings.Repeat("a long description ", 200)},
	}}

	rec := do(t, newTestServer(t, svc, newServerConfig()), http.MethodGet, "/v1/users/builderman",
		map[string]string{"Accept-Encoding": "gzip"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "gzip", rec.Header().Get("Content-Encoding"))
}

func TestServeShutsDownOnCancel(t *testing.T) {
	t.Parallel()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	server := rest.NewServer(&fakeService{}, newServerConfig(), "test", zap.NewNop())

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan error, 1)
	go func() { done <- server.Serve(ctx, listener) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + listener.Addr().String() + "/health")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("server did not shut down")
	}
}
