package respond

import (
	"net/http"
	"strconv"
	"time"

	"github.com/bytedance/sonic"
	"github.com/robalyx/roprofile/internal/rest/convert"
	restTypes "github.com/robalyx/roprofile/internal/rest/types"
	"github.com/robalyx/roprofile/internal/types"
)

// Kinds used only by the HTTP layer.
const (
	KindUnauthorized types.ErrorKind = "Unauthorized"
	KindForbidden    types.ErrorKind = "Forbidden"
	KindNotFound     types.ErrorKind = "NotFound"
)

const headerRetryAfter = "Retry-After"

// JSON writes v with the given status code.
func JSON(w http.ResponseWriter, status int, v any) error {
	data, err := sonic.Marshal(v)
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return err
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, err = w.Write(data)

	return err
}

// Error writes an error envelope for a classified service error.
func Error(w http.ResponseWriter, err error) error {
	status, body, retryAfter := convert.Error(err)
	if status == http.StatusTooManyRequests {
		SetRetryAfter(w, retryAfter)
	}

	return JSON(w, status, body)
}

// Reject writes an error envelope without a service error behind it.
func Reject(w http.ResponseWriter, status int, kind types.ErrorKind, message string) error {
	return JSON(w, status, restTypes.ErrorResponse{
		Error: restTypes.ErrorBody{Kind: kind, Message: message},
	})
}

// SetRetryAfter sets the Retry-After header in whole seconds.
func SetRetryAfter(w http.ResponseWriter, d time.Duration) {
	if d <= 0 {
		return
	}
	w.Header().Set(headerRetryAfter, strconv.Itoa(convert.RetryAfterSeconds(d)))
}
