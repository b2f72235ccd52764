package auth_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/robalyx/roprofile/internal/rest/middleware/auth"
	"github.com/stretchr/testify/assert"
	"github.com/uptrace/bunrouter"
	"go.uber.org/zap"
)

func TestMiddleware(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		token  string
		header string
		want   int
	}{
		{"valid token", "secret", "Bearer secret", http.StatusNoContent},
		{"wrong token", "secret", "Bearer nope", http.StatusUnauthorized},
		{"missing header", "secret", "", http.StatusUnauthorized},
		{"wrong scheme", "secret", "Basic secret", http.StatusUnauthorized},
		{"unset token", "", "Bearer ", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			router := bunrouter.New(bunrouter.Use(auth.New(tt.token, zap.NewNop()).AsRESTMiddleware))
			router.GET("/", func(w http.ResponseWriter, req bunrouter.Request) error {
				w.WriteHeader(http.StatusNoContent)
				return nil
			})

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}

			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			assert.Equal(t, tt.want, rec.Code)
			if tt.want == http.StatusUnauthorized {
				assert.Contains(t, rec.Body.String(), `"kind":"Unauthorized"`)
			}
		})
	}
}
