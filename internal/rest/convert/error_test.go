package convert_test

import (
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/robalyx/roprofile/internal/rest/convert"
	"github.com/robalyx/roprofile/internal/types"
	"github.com/stretchr/testify/assert"
)

func TestError(t *testing.T) {
	t.Parallel()

	limited := types.NewError(types.KindRateLimited, "slow down", nil)
	limited.RetryAfter = 12 * time.Second

	notFound := types.NewError(types.KindUserNotFound, "user not found", nil)
	notFound.Detail = map[string]any{"endpoint": "lookup"}

	tests := []struct {
		name      string
		err       error
		status    int
		kind      types.ErrorKind
		message   string
		retry     time.Duration
		hasDetail bool
	}{
		{"invalid", types.NewError(types.KindInvalidInput, "bad name", nil), http.StatusBadRequest, types.KindInvalidInput, "bad name", 0, false},
		{"not found", notFound, http.StatusNotFound, types.KindUserNotFound, "user not found", 0, true},
		{"upstream", types.NewError(types.KindUpstreamUnavailable, "down", nil), http.StatusBadGateway, types.KindUpstreamUnavailable, "down", 0, false},
		{"rate limited", limited, http.StatusTooManyRequests, types.KindRateLimited, "slow down", 12 * time.Second, false},
		{"rate limited default", types.NewError(types.KindRateLimited, "slow", nil), http.StatusTooManyRequests, types.KindRateLimited, "slow", convert.DefaultRetryAfter, false},
		{"unclassified", errors.New("secret detail"), http.StatusInternalServerError, types.KindInternal, "internal error", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			status, body, retry := convert.Error(tt.err)
			assert.Equal(t, tt.status, status)
			assert.False(t, body.Success)
			assert.Equal(t, tt.kind, body.Error.Kind)
			assert.Equal(t, tt.message, body.Error.Message)
			assert.Equal(t, tt.retry, retry)
			assert.Equal(t, tt.hasDetail, body.Error.Details != nil)
		})
	}
}

func TestRetryAfterSeconds(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 1, convert.RetryAfterSeconds(100*time.Millisecond))
	assert.Equal(t, 2, convert.RetryAfterSeconds(1500*time.Millisecond))
	assert.Equal(t, 30, convert.RetryAfterSeconds(30*time.Second))
}

func TestProfile(t *testing.T) {
	t.Parallel()

	p := &types.Profile{ID: 1, Username: "builderman"}
	resp := convert.Profile(p, true)

	assert.True(t, resp.Success)
	assert.True(t, resp.Cached)
	assert.Same(t, p, resp.Data)
}
