// Package fetcher wraps the individual Roblox API calls behind typed methods.
package fetcher

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/jaxron/roapi.go/pkg/api"
	"github.com/robalyx/roprofile/internal/roblox/upstream"
	"github.com/robalyx/roprofile/internal/types"
	"go.uber.org/zap"
)

// DefaultRetryAfter is suggested to callers when a 429 carries no Retry-After header.
const DefaultRetryAfter = 30 * time.Second

// ErrUnexpectedShape indicates a 2xx response whose payload lacked the expected data.
var ErrUnexpectedShape = errors.New("unexpected response shape")

// Caller performs single upstream calls, either typed through roapi or raw.
type Caller interface {
	Call(ctx context.Context, endpoint upstream.Endpoint, fn func(ctx context.Context, roAPI *api.API) error) error
	Do(ctx context.Context, endpoint upstream.Endpoint, out any) error
}

// Roblox bundles every fetcher the aggregation path needs.
type Roblox struct {
	*UserFetcher
	*FollowFetcher
	*FriendFetcher
	*GroupFetcher
	*ThumbnailFetcher
	*HistoryFetcher
	*PresenceFetcher
}

// New creates all fetchers over the given client.
func New(client Caller, historyPages int, logger *zap.Logger) *Roblox {
	return &Roblox{
		UserFetcher:      NewUserFetcher(client, logger),
		FollowFetcher:    NewFollowFetcher(client, logger),
		FriendFetcher:    NewFriendFetcher(client, logger),
		GroupFetcher:     NewGroupFetcher(client, logger),
		ThumbnailFetcher: NewThumbnailFetcher(client, logger),
		HistoryFetcher:   NewHistoryFetcher(client, historyPages, logger),
		PresenceFetcher:  NewPresenceFetcher(client, logger),
	}
}

// classify converts a failed required call into a request-level error.
// notFoundStatus is the upstream status that means the user does not exist, or 0.
func classify(err error, message string, notFoundStatus int) *types.Error {
	var failure *upstream.Failure
	if !errors.As(err, &failure) {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return types.NewError(types.KindUpstreamUnavailable, message, err)
		}
		return types.NewError(types.KindInternal, message, err)
	}

	detail := map[string]any{
		"endpoint": failure.Endpoint,
		"reason":   string(failure.Reason),
	}
	if failure.StatusCode != 0 {
		detail["status"] = failure.StatusCode
	}

	var e *types.Error
	switch {
	case failure.IsRateLimited():
		e = types.NewError(types.KindRateLimited, "Roblox is rate limiting requests", err)
		e.RetryAfter = failure.RetryAfter
		if e.RetryAfter <= 0 {
			e.RetryAfter = DefaultRetryAfter
		}
	case notFoundStatus != 0 && failure.StatusCode == notFoundStatus:
		e = types.NewError(types.KindUserNotFound, "user not found", err)
	case failure.Reason == upstream.ReasonStatus && failure.StatusCode == http.StatusBadRequest:
		e = types.NewError(types.KindInvalidInput, "Roblox rejected the request", err)
	default:
		e = types.NewError(types.KindUpstreamUnavailable, message, err)
	}

	e.StatusCode = failure.StatusCode
	e.Detail = detail
	return e
}
