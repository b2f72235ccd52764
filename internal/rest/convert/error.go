package convert

import (
	"errors"
	"math"
	"time"

	restTypes "github.com/robalyx/roprofile/internal/rest/types"
	"github.com/robalyx/roprofile/internal/types"
)

// DefaultRetryAfter is suggested for rate limited errors that carry no delay.
const DefaultRetryAfter = 30 * time.Second

// Error converts a service error into its HTTP status, response body and
// suggested retry delay. Unclassified errors become Internal and their
// message is not exposed.
func Error(err error) (int, restTypes.ErrorResponse, time.Duration) {
	var classified *types.Error
	if !errors.As(err, &classified) {
		classified = types.NewError(types.KindInternal, "internal error", err)
	}

	var retryAfter time.Duration
	if classified.Kind == types.KindRateLimited {
		retryAfter = classified.RetryAfter
		if retryAfter <= 0 {
			retryAfter = DefaultRetryAfter
		}
	}

	return classified.HTTPStatus(), restTypes.ErrorResponse{
		Error: restTypes.ErrorBody{
			Kind:    classified.Kind,
			Message: classified.Message,
			Details: classified.Detail,
		},
	}, retryAfter
}

// RetryAfterSeconds formats a delay for the Retry-After header, rounding up
// to at least one second.
func RetryAfterSeconds(d time.Duration) int {
	return max(1, int(math.Ceil(d.Seconds())))
}

// Profile wraps a profile in the lookup response envelope.
func Profile(profile *types.Profile, cached bool) restTypes.ProfileResponse {
	return restTypes.ProfileResponse{
		Success: true,
		Cached:  cached,
		Data:    profile,
	}
}
