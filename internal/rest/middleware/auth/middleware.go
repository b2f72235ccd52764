package auth

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/robalyx/roprofile/internal/rest/middleware/ip"
	"github.com/robalyx/roprofile/internal/rest/respond"
	"github.com/uptrace/bunrouter"
	"go.uber.org/zap"
)

// Middleware requires a bearer token on administrative routes.
type Middleware struct {
	token  []byte
	logger *zap.Logger
}

// New creates an admin token middleware.
func New(token string, logger *zap.Logger) *Middleware {
	return &Middleware{
		token:  []byte(token),
		logger: logger.Named("auth_middleware"),
	}
}

// AsRESTMiddleware returns a bunrouter middleware rejecting requests
// without the configured bearer token.
func (m *Middleware) AsRESTMiddleware(next bunrouter.HandlerFunc) bunrouter.HandlerFunc {
	return func(w http.ResponseWriter, req bunrouter.Request) error {
		provided, ok := strings.CutPrefix(req.Header.Get("Authorization"), "Bearer ")
		if !ok || len(m.token) == 0 || subtle.ConstantTimeCompare([]byte(provided), m.token) != 1 {
			m.logger.Warn("Rejected admin request",
				zap.String("ip", ip.FromContext(req.Context())),
				zap.String("path", req.URL.Path))
			w.Header().Set("WWW-Authenticate", `Bearer realm="roprofile"`)
			return respond.Reject(w, http.StatusUnauthorized, respond.KindUnauthorized, "a valid admin token is required")
		}

		return next(w, req)
	}
}
