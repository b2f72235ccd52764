package ip

import (
	"context"
	"net"
	"net/http"
	"strings"

	"github.com/robalyx/roprofile/internal/rest/middleware/header"
	"github.com/robalyx/roprofile/internal/rest/respond"
	"github.com/robalyx/roprofile/internal/setup/config"
	"github.com/uptrace/bunrouter"
	"go.uber.org/zap"
)

type (
	ipCtxKey struct{}
)

// UnknownIP is returned when no valid IP can be determined.
const UnknownIP = "unknown"

// FromContext retrieves the client IP from the context.
func FromContext(ctx context.Context) string {
	if ip, ok := ctx.Value(ipCtxKey{}).(string); ok {
		return ip
	}
	return UnknownIP
}

// Middleware handles IP detection and stores it in the context.
type Middleware struct {
	checker *Checker
	logger  *zap.Logger
	config  *config.IPConfig
}

// New creates a new IP middleware.
func New(logger *zap.Logger, config *config.IPConfig) *Middleware {
	logger = logger.Named("ip_middleware")

	return &Middleware{
		checker: NewChecker(logger, config),
		logger:  logger,
		config:  config,
	}
}

// AsRESTMiddleware returns a bunrouter middleware handler for IP validation in REST server.
// It must run after the header middleware.
func (m *Middleware) AsRESTMiddleware(next bunrouter.HandlerFunc) bunrouter.HandlerFunc {
	return func(w http.ResponseWriter, req bunrouter.Request) error {
		ip := m.getClientIP(req.Context())
		if ip == UnknownIP {
			m.logger.Warn("No valid client IP found in request")
			return respond.Reject(w, http.StatusForbidden, respond.KindForbidden,
				"request must come from a valid IP address")
		}

		// Store IP in context for handlers
		ctx := context.WithValue(req.Context(), ipCtxKey{}, ip)

		return next(w, req.WithContext(ctx))
	}
}

// getClientIP extracts the client IP from the request context.
func (m *Middleware) getClientIP(ctx context.Context) string {
	remoteIP := m.getRemoteIP(ctx)
	if remoteIP == nil {
		m.logger.Debug("Failed to get valid remote IP")
		return UnknownIP
	}

	// If header checking is disabled, use remote address directly
	if !m.config.EnableHeaderCheck {
		return m.useRemoteIP(remoteIP, "Header checking is disabled")
	}

	// Only trusted proxies may supply the client address
	if m.checker.IsTrustedProxy(remoteIP) {
		if headers, ok := header.FromHeaders(ctx); ok {
			if ip := m.getIPFromHeaders(headers); ip != UnknownIP {
				m.logger.Debug("Found valid IP in headers", zap.String("ip", ip))
				return ip
			}
		}
		m.logger.Debug("No valid IP found in headers")
	}

	return m.useRemoteIP(remoteIP, "Using remote IP")
}

// useRemoteIP validates and returns the remote IP with appropriate logging.
func (m *Middleware) useRemoteIP(remoteIP net.IP, reason string) string {
	if m.checker.IsValidPublicIP(remoteIP) {
		m.logger.Debug(reason, zap.String("ip", remoteIP.String()))
		return remoteIP.String()
	}
	m.logger.Debug("Remote IP is not a valid public IP", zap.String("ip", remoteIP.String()))
	return UnknownIP
}

// getRemoteIP parses the remote address stored by the header middleware.
func (m *Middleware) getRemoteIP(ctx context.Context) net.IP {
	remoteAddr := header.FromRemoteAddr(ctx)
	if remoteAddr == "" {
		m.logger.Debug("No remote address in context")
		return nil
	}

	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		// Some listeners report a bare address
		host = remoteAddr
	}

	parsedIP := net.ParseIP(host)
	if parsedIP == nil {
		m.logger.Debug("Invalid remote IP", zap.String("addr", remoteAddr))
		return nil
	}

	return parsedIP
}

// getIPFromHeaders attempts to get a valid IP from the configured headers.
func (m *Middleware) getIPFromHeaders(headers http.Header) string {
	for _, h := range m.config.CustomHeaders {
		value := headers.Get(h)
		if value == "" {
			continue
		}

		// Forwarded headers may carry a chain of addresses
		if strings.Contains(h, "Forward") {
			if validated := m.getForwardedIP(value); validated != UnknownIP {
				return validated
			}
		} else if validated := m.checker.ValidateIP(value); validated != UnknownIP {
			return validated
		}

		m.logger.Debug("IP validation failed",
			zap.String("header", h),
			zap.String("ip", value))
	}
	return UnknownIP
}

// getForwardedIP returns the right-most valid address that is not itself a
// trusted proxy.
func (m *Middleware) getForwardedIP(forwarded string) string {
	ips := strings.Split(forwarded, ",")
	for i := len(ips) - 1; i >= 0; i-- {
		candidate := net.ParseIP(strings.TrimSpace(ips[i]))
		if candidate == nil || m.checker.IsTrustedProxy(candidate) {
			continue
		}
		if m.checker.IsValidPublicIP(candidate) {
			return candidate.String()
		}
	}
	return UnknownIP
}
