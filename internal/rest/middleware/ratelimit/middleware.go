package ratelimit

import (
	"net/http"
	"sync"
	"time"

	"github.com/robalyx/roprofile/internal/rest/middleware/ip"
	"github.com/robalyx/roprofile/internal/rest/respond"
	"github.com/robalyx/roprofile/internal/setup/config"
	"github.com/robalyx/roprofile/internal/types"
	"github.com/robalyx/roprofile/pkg/utils"
	"github.com/uptrace/bunrouter"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	errBlocked   = "temporarily blocked for repeated rate limit violations"
	errRateLimit = "rate limit exceeded"
)

type limiterState struct {
	mu           sync.Mutex
	limiter      *rate.Limiter
	strikes      int       // Number of times client has violated rate limit
	blockedUntil time.Time // Time until client is blocked for repeated violations
}

// Middleware implements per-client rate limiting for API requests.
type Middleware struct {
	limiters *utils.TTLMap[string, *limiterState]
	config   *config.RateLimit
	logger   *zap.Logger
}

// New creates a new rate limiting middleware.
func New(config *config.RateLimit, logger *zap.Logger) *Middleware {
	// Use the longer of block duration or burst window * 2 for TTL
	ttl := time.Second * time.Duration(config.BurstSize*2)
	if blockTTL := time.Second * time.Duration(config.BlockDuration*2); blockTTL > ttl {
		ttl = blockTTL
	}

	return &Middleware{
		limiters: utils.NewTTLMap[string, *limiterState](ttl),
		config:   config,
		logger:   logger.Named("ratelimit_middleware"),
	}
}

// Close stops the limiter cleanup goroutine.
func (m *Middleware) Close() {
	m.limiters.Close()
}

// AsRESTMiddleware returns a bunrouter middleware handler for rate limiting in REST server.
// It must run after the IP middleware.
func (m *Middleware) AsRESTMiddleware(next bunrouter.HandlerFunc) bunrouter.HandlerFunc {
	return func(w http.ResponseWriter, req bunrouter.Request) error {
		clientIP := ip.FromContext(req.Context())
		if allowed, retryAfter, message := m.checkRateLimit(clientIP); !allowed {
			respond.SetRetryAfter(w, retryAfter)
			return respond.Reject(w, http.StatusTooManyRequests, types.KindRateLimited, message)
		}
		return next(w, req)
	}
}

// getLimiter returns the limiter state for the specified IP.
func (m *Middleware) getLimiter(clientIP string) *limiterState {
	return m.limiters.GetOrCreate(clientIP, func() *limiterState {
		return &limiterState{
			limiter: rate.NewLimiter(rate.Limit(m.config.RequestsPerSecond), m.config.BurstSize),
		}
	})
}

// handleStrikes blocks the client once strikes reach the limit.
func (m *Middleware) handleStrikes(state *limiterState, clientIP string, now time.Time) (bool, time.Duration) {
	if m.config.StrikeLimit <= 0 || state.strikes < m.config.StrikeLimit {
		return true, 0
	}

	blockDuration := time.Duration(m.config.BlockDuration) * time.Second
	state.blockedUntil = now.Add(blockDuration)
	state.strikes = 0

	m.logger.Debug("Client exceeded strike limit and is now blocked",
		zap.String("ip", clientIP),
		zap.Int("strikes", m.config.StrikeLimit),
		zap.Duration("block_duration", blockDuration))

	return false, blockDuration
}

// checkRateLimit checks if the request should be allowed and updates violation tracking.
func (m *Middleware) checkRateLimit(clientIP string) (bool, time.Duration, string) {
	state := m.getLimiter(clientIP)

	state.mu.Lock()
	defer state.mu.Unlock()

	now := time.Now()

	// Check if client is blocked
	if now.Before(state.blockedUntil) {
		retryAfter := state.blockedUntil.Sub(now)
		m.logger.Debug("Client is temporarily blocked",
			zap.String("ip", clientIP),
			zap.Duration("retry_after", retryAfter))
		return false, retryAfter, errBlocked
	}

	// Try to reserve a token
	reservation := state.limiter.ReserveN(now, 1)
	if !reservation.OK() {
		state.strikes++
		if allowed, retryAfter := m.handleStrikes(state, clientIP, now); !allowed {
			return false, retryAfter, errBlocked
		}

		m.logger.Debug("Rate limit exceeded",
			zap.String("ip", clientIP),
			zap.Int("strikes", state.strikes))
		return false, 0, errRateLimit
	}

	if delay := reservation.DelayFrom(now); delay > 0 {
		state.strikes++
		reservation.CancelAt(now)

		if allowed, retryAfter := m.handleStrikes(state, clientIP, now); !allowed {
			return false, retryAfter, errBlocked
		}

		m.logger.Debug("Rate limit delay required",
			zap.String("ip", clientIP),
			zap.Duration("delay", delay),
			zap.Int("strikes", state.strikes))
		return false, delay, errRateLimit
	}

	// Reset strikes on successful request
	state.strikes = 0

	return true, 0, ""
}
