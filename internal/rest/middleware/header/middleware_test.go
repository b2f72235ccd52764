package header_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/robalyx/roprofile/internal/rest/middleware/header"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bunrouter"
	"go.uber.org/zap"
)

func TestMiddlewareStoresRequestData(t *testing.T) {
	t.Parallel()

	var (
		gotAddr    string
		gotHeaders http.Header
		found      bool
	)

	router := bunrouter.New(bunrouter.Use(header.New(zap.NewNop()).AsRESTMiddleware))
	router.GET("/", func(w http.ResponseWriter, req bunrouter.Request) error {
		gotAddr = header.FromRemoteAddr(req.Context())
		gotHeaders, found = header.FromHeaders(req.Context())
		return nil
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "203.0.113.7:5555"
	req.Header.Set("X-Forwarded-For", "198.51.100.1")
	router.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, "203.0.113.7:5555", gotAddr)
	require.True(t, found)
	assert.Equal(t, "198.51.100.1", gotHeaders.Get("X-Forwarded-For"))
}

func TestFromContextEmpty(t *testing.T) {
	t.Parallel()

	assert.Empty(t, header.FromRemoteAddr(t.Context()))

	_, ok := header.FromHeaders(t.Context())
	assert.False(t, ok)
}
