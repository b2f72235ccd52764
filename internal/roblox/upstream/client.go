package upstream

import (
	"context"
	"errors"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/jaxron/axonet/middleware/circuitbreaker"
	"github.com/jaxron/axonet/pkg/client"
	"github.com/jaxron/axonet/pkg/client/middleware"
	"github.com/jaxron/roapi.go/pkg/api"
	"github.com/robalyx/roprofile/internal/setup/telemetry/logger"
	"go.uber.org/zap"
)

// MaxResponseSize caps how much of an upstream response body is read.
const MaxResponseSize = 4 << 20

// DefaultUserAgent identifies this service to the upstream.
const DefaultUserAgent = "roprofile/1.0 (+https://github.com/robalyx/roprofile)"

// BreakerSettings configures the circuit breaker middleware.
type BreakerSettings struct {
	Enabled     bool
	MaxRequests uint32        // Requests allowed through while half-open
	Interval    time.Duration // Closed-state period after which counts reset
	Timeout     time.Duration // Open-state period before going half-open
}

// Options configures a Client.
type Options struct {
	UserAgent       string
	RequiredTimeout time.Duration
	OptionalTimeout time.Duration
	Breaker         BreakerSettings
	BaseURLs        BaseURLs
}

// Client performs single, non-retried calls against the Roblox APIs.
// Typed calls go through roapi; endpoints roapi lacks are raw axonet requests.
type Client struct {
	roAPI           *api.API
	requiredTimeout time.Duration
	optionalTimeout time.Duration
	logger          *zap.Logger
}

// New creates an upstream client.
func New(opts Options, zapLogger *zap.Logger) *Client {
	userAgent := opts.UserAgent
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}

	// Build middleware chain - order matters!
	middlewares := []middleware.Middleware{newOutcomeMiddleware()}
	if opts.Breaker.Enabled {
		middlewares = append(middlewares, circuitbreaker.New(
			opts.Breaker.MaxRequests,
			opts.Breaker.Interval,
			opts.Breaker.Timeout,
		))
	}
	middlewares = append(middlewares, newTransportMiddleware(userAgent, opts.BaseURLs.WithDefaults()))

	roAPI := api.New(nil,
		client.WithMarshalFunc(sonic.Marshal),
		client.WithUnmarshalFunc(sonic.Unmarshal),
		client.WithLogger(logger.New(zapLogger.Named("axonet"))),
		client.WithTimeout(max(opts.RequiredTimeout, opts.OptionalTimeout)),
		client.WithMiddleware(middlewares...),
	)

	return &Client{
		roAPI:           roAPI,
		requiredTimeout: opts.RequiredTimeout,
		optionalTimeout: opts.OptionalTimeout,
		logger:          zapLogger.Named("upstream"),
	}
}

// Call runs a typed roapi call under the endpoint's timeout.
// Any failure is returned as a *Failure.
func (c *Client) Call(ctx context.Context, endpoint Endpoint, fn func(ctx context.Context, roAPI *api.API) error) error {
	return c.run(ctx, endpoint, nil, func(ctx context.Context) error {
		return fn(ctx, c.roAPI)
	})
}

// Do performs the raw call described by endpoint and decodes a 2xx JSON response into out.
func (c *Client) Do(ctx context.Context, endpoint Endpoint, out any) error {
	var payload []byte
	if endpoint.Body != nil {
		var err error
		if payload, err = sonic.Marshal(endpoint.Body); err != nil {
			return &Failure{Reason: ReasonNetwork, Endpoint: endpoint.Name, Err: err}
		}
	}

	method := endpoint.Method
	if method == "" {
		method = http.MethodGet
	}

	return c.run(ctx, endpoint, payload, func(ctx context.Context) error {
		req := c.roAPI.GetClient().NewRequest().
			Method(method).
			URL(endpoint.URL)
		for key, values := range endpoint.Query {
			for _, value := range values {
				req = req.Query(key, value)
			}
		}

		resp, err := req.Do(ctx)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}

		if out == nil {
			return nil
		}

		if err := sonic.Unmarshal(body, out); err != nil {
			return &Failure{Reason: ReasonDecode, Err: err}
		}

		return nil
	})
}

// run applies the timeout budget and turns whatever fn returned into a *Failure.
func (c *Client) run(ctx context.Context, endpoint Endpoint, body []byte, fn func(ctx context.Context) error) error {
	timeout := c.optionalTimeout
	if endpoint.Required {
		timeout = c.requiredTimeout
	}

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	state := &callState{body: body}
	start := time.Now()

	err := fn(withCallState(ctx, state))
	if err == nil {
		return nil
	}

	failure := state.resolve(ctx, err)
	failure.Endpoint = endpoint.Name

	c.logger.Debug("Upstream call failed",
		zap.String("endpoint", endpoint.Name),
		zap.String("reason", string(failure.Reason)),
		zap.Int("status", failure.StatusCode),
		zap.Duration("elapsed", time.Since(start)))

	return failure
}

type callStateKey struct{}

// callState travels with one call through the middleware chain.
type callState struct {
	mu      sync.Mutex
	body    []byte   // JSON body for raw POST requests
	sent    bool     // The transport performed the exchange
	failure *Failure // Outcome recorded by the transport
}

func withCallState(ctx context.Context, state *callState) context.Context {
	return context.WithValue(ctx, callStateKey{}, state)
}

// callStateFrom returns the call state, attaching a fresh one when missing.
func callStateFrom(ctx context.Context) (context.Context, *callState) {
	if state, ok := ctx.Value(callStateKey{}).(*callState); ok {
		return ctx, state
	}
	state := &callState{}
	return withCallState(ctx, state), state
}

func (s *callState) record(failure *Failure) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sent = true
	s.failure = failure
}

func (s *callState) recorded() (bool, *Failure) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.sent, s.failure
}

// resolve picks the most precise failure for err. The recorded transport
// outcome wins so classification does not depend on how layers wrap errors.
func (s *callState) resolve(ctx context.Context, err error) *Failure {
	sent, recorded := s.recorded()
	if recorded != nil {
		copied := *recorded
		return &copied
	}

	var failure *Failure
	if errors.As(err, &failure) {
		copied := *failure
		return &copied
	}

	switch {
	case ctx.Err() != nil:
		return contextFailure(ctx.Err())
	case !sent:
		// The breaker rejected the call before it reached the transport
		return &Failure{Reason: ReasonCircuitOpen, Err: err}
	default:
		// A 2xx payload that roapi could not decode or validate
		return &Failure{Reason: ReasonDecode, Err: err}
	}
}
