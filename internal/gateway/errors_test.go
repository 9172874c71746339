package gateway

import (
	"errors"
	"fmt"
	"testing"
)

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"rejection", ErrRejected, false},
		{"wrapped rejection", fmt.Errorf("deposit of 0.05: %w: bad amount", ErrRejected), false},
		{"rate limited", &APIError{Status: 429, Body: "too many requests"}, true},
		{"server error", &APIError{Status: 503, Body: "unavailable"}, true},
		{"wrapped server error", fmt.Errorf("fetching price: %w", &APIError{Status: 500, Body: "boom"}), true},
		{"bad request", &APIError{Status: 400, Body: "invalid netuid"}, false},
		{"not found", &APIError{Status: 404, Body: "no such route"}, false},
		{"timeout string", errors.New("context deadline exceeded"), true},
		{"connection refused", errors.New("dial tcp 127.0.0.1:9944: connection refused"), true},
		{"circuit breaker open", errors.New("circuit breaker is open"), true},
		{"unexpected eof", errors.New("unexpected EOF"), true},
		{"plain failure", errors.New("invalid state"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsTransient(tt.err); got != tt.want {
				t.Errorf("IsTransient(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
