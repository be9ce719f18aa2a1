package remote

import (
	"errors"
	"fmt"
	"net/http"
)

// StatusError is a non-2xx response from the cloud API.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("http status %d", e.StatusCode)
	}
	return fmt.Sprintf("http status %d: %s", e.StatusCode, e.Body)
}

// RequestError marks an operation that can never succeed as stated, such
// as an update with no resource id.
type RequestError struct {
	Reason string
}

func (e *RequestError) Error() string {
	return e.Reason
}

// Temporary reports whether a failure is worth retrying. Network faults,
// server-side errors, and rate limiting are temporary. Requests the cloud
// rejected outright, and requests that are malformed locally, are not:
// replaying them verbatim can never succeed.
func Temporary(err error) bool {
	if err == nil {
		return false
	}

	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		return false
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode >= 500 || statusErr.StatusCode == http.StatusTooManyRequests
	}

	return true
}
