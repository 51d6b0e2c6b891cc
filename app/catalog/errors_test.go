package catalog

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorTypeLabel(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{name: "nil", err: nil, expected: "none"},
		{name: "network", err: &NetworkError{URL: "http://x", Err: errors.New("refused")}, expected: "network"},
		{name: "wrapped network", err: fmt.Errorf("fetch: %w", &NetworkError{URL: "http://x", Err: errors.New("refused")}), expected: "network"},
		{name: "http", err: &HTTPError{URL: "http://x", Status: 502}, expected: "http"},
		{name: "parse", err: &ParseError{URL: "http://x", Err: errors.New("bad xml")}, expected: "parse"},
		{name: "too large", err: fmt.Errorf("fetching: %w", ErrTooLarge), expected: "too_large"},
		{name: "cancelled", err: ErrCancelled, expected: "cancelled"},
		{name: "other", err: errors.New("something else"), expected: "other"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := errorTypeLabel(tt.err); got != tt.expected {
				t.Errorf("Expected %q, got %q", tt.expected, got)
			}
		})
	}
}

func TestIsTransient(t *testing.T) {
	if !IsTransient(&NetworkError{URL: "http://x", Err: errors.New("timeout")}) {
		t.Error("Expected network errors to be transient")
	}
	if IsTransient(&HTTPError{URL: "http://x", Status: 404}) {
		t.Error("Expected HTTP errors not to be transient")
	}
	if IsTransient(&ParseError{URL: "http://x", Err: errors.New("bad")}) {
		t.Error("Expected parse errors not to be transient")
	}
}
