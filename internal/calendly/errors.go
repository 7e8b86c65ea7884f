package calendly

import (
	"errors"
	"fmt"
	"net"
	"net/http"
)

// APIError is a non-2xx response from the scheduling provider.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("calendly: status %d: %s", e.StatusCode, e.Body)
}

// IsTransient reports whether an error from the provider is worth retrying.
// Network timeouts, request timeouts, rate limits, and server errors are
// transient; client errors (bad request, auth, not found, validation) are
// terminal and retrying them cannot help.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.StatusCode == http.StatusRequestTimeout:
			return true
		case apiErr.StatusCode == http.StatusTooManyRequests:
			return true
		case apiErr.StatusCode >= 500:
			return true
		default:
			return false
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	// Connection-level failures surface as *net.OpError without a status.
	var opErr *net.OpError
	return errors.As(err, &opErr)
}
