package llm

import (
	"errors"
	"fmt"
	"net/http"
)

// StatusError is a non-2xx answer from a model API.
type StatusError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s error: status %d, body: %s", e.Provider, e.StatusCode, e.Body)
}

// Retryable is true for throttling, request timeouts and server-side failures.
// Other 4xx answers fail the same way on every attempt.
func (e *StatusError) Retryable() bool {
	switch {
	case e.StatusCode == http.StatusTooManyRequests, e.StatusCode == http.StatusRequestTimeout:
		return true
	case e.StatusCode >= http.StatusInternalServerError:
		return true
	default:
		return false
	}
}

// IsRetryable reports whether another attempt of the same call can succeed.
// Errors without a status (network, decoding) are treated as transport failures.
func IsRetryable(err error) bool {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Retryable()
	}
	return true
}
