package retry

import "net/http"

// IsRetryableStatus reports whether an HTTP status is worth another
// attempt: timeouts, throttling, and server errors.
func IsRetryableStatus(status int) bool {
	switch status {
	case http.StatusRequestTimeout, http.StatusTooManyRequests:
		return true
	}
	return status >= http.StatusInternalServerError
}
