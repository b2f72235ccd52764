package ip_test

import (
	"net"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/robalyx/roprofile/internal/rest/middleware/header"
	"github.com/robalyx/roprofile/internal/rest/middleware/ip"
	"github.com/robalyx/roprofile/internal/setup/config"
	"github.com/stretchr/testify/assert"
	"github.com/uptrace/bunrouter"
	"go.uber.org/zap"
)

func newRouter(cfg *config.IPConfig, got *string) *bunrouter.Router {
	logger := zap.NewNop()
	router := bunrouter.New(bunrouter.Use(
		header.New(logger).AsRESTMiddleware,
		ip.New(logger, cfg).AsRESTMiddleware,
	))
	router.GET("/", func(w http.ResponseWriter, req bunrouter.Request) error {
		*got = ip.FromContext(req.Context())
		return nil
	})
	return router
}

func TestMiddleware(t *testing.T) {
	t.Parallel()

	proxied := &config.IPConfig{
		EnableHeaderCheck: true,
		TrustedProxies:    []string{"10.0.0.0/8", "192.0.2.1"},
		CustomHeaders:     []string{"X-Forwarded-For", "X-Real-IP"},
	}

	tests := []struct {
		name       string
		cfg        *config.IPConfig
		remoteAddr string
		headers    map[string]string
		wantIP     string
		wantStatus int
	}{
		{
			name:       "remote address used when header check disabled",
			cfg:        &config.IPConfig{CustomHeaders: []string{"X-Forwarded-For"}},
			remoteAddr: "203.0.113.5:1234",
			headers:    map[string]string{"X-Forwarded-For": "198.51.100.9"},
			wantIP:     "203.0.113.5",
			wantStatus: http.StatusOK,
		},
		{
			name:       "forwarded header from trusted proxy",
			cfg:        proxied,
			remoteAddr: "10.1.2.3:1234",
			headers:    map[string]string{"X-Forwarded-For": "198.51.100.9, 10.0.0.7"},
			wantIP:     "198.51.100.9",
			wantStatus: http.StatusOK,
		},
		{
			name:       "single trusted proxy address",
			cfg:        proxied,
			remoteAddr: "192.0.2.1:1234",
			headers:    map[string]string{"X-Real-IP": "198.51.100.10"},
			wantIP:     "198.51.100.10",
			wantStatus: http.StatusOK,
		},
		{
			name:       "headers ignored from untrusted peer",
			cfg:        proxied,
			remoteAddr: "203.0.113.5:1234",
			headers:    map[string]string{"X-Forwarded-For": "198.51.100.9"},
			wantIP:     "203.0.113.5",
			wantStatus: http.StatusOK,
		},
		{
			name:       "private peer rejected",
			cfg:        &config.IPConfig{},
			remoteAddr: "127.0.0.1:1234",
			wantIP:     "",
			wantStatus: http.StatusForbidden,
		},
		{
			name:       "private peer allowed",
			cfg:        &config.IPConfig{AllowLocalIPs: true},
			remoteAddr: "127.0.0.1:1234",
			wantIP:     "127.0.0.1",
			wantStatus: http.StatusOK,
		},
		{
			name:       "garbage remote address",
			cfg:        &config.IPConfig{AllowLocalIPs: true},
			remoteAddr: "not-an-ip",
			wantStatus: http.StatusForbidden,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var got string
			router := newRouter(tt.cfg, &got)

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}

			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantIP, got)
		})
	}
}

func TestChecker(t *testing.T) {
	t.Parallel()

	checker := ip.NewChecker(zap.NewNop(), &config.IPConfig{
		TrustedProxies: []string{"10.0.0.0/8", "bogus", "2001:db8::1"},
	})

	assert.True(t, checker.IsTrustedProxy(net.ParseIP("10.20.30.40")))
	assert.True(t, checker.IsTrustedProxy(net.ParseIP("2001:db8::1")))
	assert.False(t, checker.IsTrustedProxy(net.ParseIP("11.0.0.1")))

	assert.Equal(t, "198.51.100.1", checker.ValidateIP(" 198.51.100.1 "))
	assert.Equal(t, ip.UnknownIP, checker.ValidateIP("0.0.0.0"))
	assert.Equal(t, ip.UnknownIP, checker.ValidateIP("192.168.1.1"))
	assert.Equal(t, ip.UnknownIP, checker.ValidateIP("nope"))
}
