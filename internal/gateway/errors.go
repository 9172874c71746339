package gateway

import (
	"errors"
	"fmt"
	"strings"
)

// ErrRejected marks a definitive refusal by the ledger backend (for
// example an invalid amount). Rejections are never retried.
var ErrRejected = errors.New("trade rejected by gateway")

// APIError represents a gateway HTTP error with status code and body.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("gateway API error %d: %s", e.Status, e.Body)
}

// IsTransient reports whether err is a timeout/availability-class
// failure worth retrying. Definitive rejections and caller bugs are
// not transient.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrRejected) {
		return false
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		// 429 and 5xx come back healthy on their own; other 4xx never do.
		return apiErr.Status == 429 || apiErr.Status >= 500
	}

	errStr := strings.ToLower(err.Error())
	transientPatterns := []string{
		"timeout",
		"deadline exceeded",
		"connection refused",
		"connection reset",
		"temporary failure",
		"server error",
		"rate limit",
		"circuit breaker",
		"network",
		"dns",
		"tcp",
		"eof",
	}
	for _, pattern := range transientPatterns {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}
	return false
}
