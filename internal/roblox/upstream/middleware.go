package upstream

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/jaxron/axonet/pkg/client/logger"
	"github.com/jaxron/axonet/pkg/client/middleware"
)

// outcomeMiddleware is the outermost layer. It refuses work once the call's
// context is done and turns client-error responses into failures after they
// have passed the breaker.
type outcomeMiddleware struct {
	logger logger.Logger
}

func newOutcomeMiddleware() *outcomeMiddleware {
	return &outcomeMiddleware{logger: &logger.NoOpLogger{}}
}

// Process implements middleware.Middleware.
func (m *outcomeMiddleware) Process(
	ctx context.Context, httpClient *http.Client, req *http.Request, next middleware.NextFunc,
) (*http.Response, error) {
	ctx, state := callStateFrom(ctx)

	// A caller that already gave up must not count against the breaker
	if err := ctx.Err(); err != nil {
		return nil, contextFailure(err)
	}

	resp, err := next(ctx, httpClient, req)
	if err != nil {
		return nil, err
	}

	if _, failure := state.recorded(); failure != nil {
		if resp != nil {
			resp.Body.Close()
		}
		return nil, failure
	}

	return resp, nil
}

// SetLogger sets the logger for the middleware.
func (m *outcomeMiddleware) SetLogger(l logger.Logger) {
	m.logger = l
}

// statusClientClosedRequest marks a call the caller abandoned mid-flight.
const statusClientClosedRequest = 499

// transportMiddleware is the innermost layer and performs the exchange itself.
// It points requests at the configured hosts, sets the identifying headers and
// records the classified outcome on the call state.
type transportMiddleware struct {
	userAgent string
	urls      BaseURLs
	logger    logger.Logger
}

func newTransportMiddleware(userAgent string, urls BaseURLs) *transportMiddleware {
	return &transportMiddleware{
		userAgent: userAgent,
		urls:      urls,
		logger:    &logger.NoOpLogger{},
	}
}

// Process implements middleware.Middleware.
func (m *transportMiddleware) Process(
	ctx context.Context, httpClient *http.Client, req *http.Request, _ middleware.NextFunc,
) (*http.Response, error) {
	ctx, state := callStateFrom(ctx)

	outReq := req.Clone(ctx)
	outReq.URL = m.urls.rewrite(req.URL)
	outReq.Host = ""

	if state.body != nil {
		outReq.Body = io.NopCloser(bytes.NewReader(state.body))
		outReq.ContentLength = int64(len(state.body))
		outReq.GetBody = func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(state.body)), nil
		}
		outReq.Header.Set("Content-Type", "application/json")
	}

	outReq.Header.Set("User-Agent", m.userAgent)
	outReq.Header.Set("Accept", "application/json")
	if outReq.ContentLength > 0 && outReq.Header.Get("Content-Type") == "" {
		outReq.Header.Set("Content-Type", "application/json")
	}

	resp, err := httpClient.Do(outReq)
	if err != nil {
		failure := classifyTransportError(ctx, err)
		state.record(failure)

		m.logger.WithFields(
			logger.String("url", outReq.URL.String()),
			logger.String("error", err.Error()),
		).Debug("Upstream request failed")

		if failure.CountsAgainstHost() {
			return nil, failure
		}

		// Abandoned calls leave the breaker as an empty response
		return &http.Response{
			Status:     "499 Client Closed Request",
			StatusCode: statusClientClosedRequest,
			Header:     make(http.Header),
			Body:       http.NoBody,
			Request:    outReq,
		}, nil
	}

	if resp.StatusCode >= 200 && resp.StatusCode <= 299 {
		state.record(nil)
		resp.Body = limitBody(resp.Body)
		return resp, nil
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize))
	resp.Body.Close()

	failure := &Failure{
		Reason:     ReasonStatus,
		StatusCode: resp.StatusCode,
		Body:       body,
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		failure.RetryAfter = parseRetryAfter(resp.Header.Get("Retry-After"), time.Now())
	}
	state.record(failure)

	m.logger.WithFields(
		logger.String("url", outReq.URL.String()),
		logger.Int("status_code", resp.StatusCode),
	).Debug("Upstream returned an error status")

	if failure.CountsAgainstHost() {
		return nil, failure
	}

	// Client errors leave the breaker as plain responses
	resp.Body = io.NopCloser(bytes.NewReader(body))
	return resp, nil
}

// SetLogger sets the logger for the middleware.
func (m *transportMiddleware) SetLogger(l logger.Logger) {
	m.logger = l
}

// classifyTransportError separates deadline expiry and cancellation from other network errors.
func classifyTransportError(ctx context.Context, err error) *Failure {
	if ctxErr := ctx.Err(); ctxErr != nil {
		failure := contextFailure(ctxErr)
		failure.Err = err
		return failure
	}

	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return &Failure{Reason: ReasonTimeout, Err: err}
	}

	return &Failure{Reason: ReasonNetwork, Err: err}
}

// limitBody caps how much of a successful response is read.
func limitBody(body io.ReadCloser) io.ReadCloser {
	return struct {
		io.Reader
		io.Closer
	}{io.LimitReader(body, MaxResponseSize), body}
}

// parseRetryAfter reads a Retry-After header given in seconds or as an HTTP date.
func parseRetryAfter(value string, now time.Time) time.Duration {
	if value == "" {
		return 0
	}

	if seconds, err := strconv.Atoi(value); err == nil {
		if seconds < 0 {
			return 0
		}
		return time.Duration(seconds) * time.Second
	}

	if at, err := http.ParseTime(value); err == nil {
		if wait := at.Sub(now); wait > 0 {
			return wait.Round(time.Second)
		}
	}

	return 0
}
