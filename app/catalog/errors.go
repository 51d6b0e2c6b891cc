package catalog

import (
	"errors"
	"fmt"
)

// ErrBusy is returned when a frame already has a fetch in flight.
var ErrBusy = errors.New("busy: operation already in progress")

// ErrCancelled marks a fetch result that arrived for a superseded request.
// It is discarded silently, never shown to the user.
var ErrCancelled = errors.New("cancelled: stale result discarded")

// ErrNoMorePages is returned by LoadMore when the current frame has no next
// page link.
var ErrNoMorePages = errors.New("no more pages")

// ErrTooLarge indicates a response body over the configured safety cap.
var ErrTooLarge = errors.New("response exceeds size limit")

// NetworkError indicates a connection, DNS, or timeout failure. Transient;
// eligible for a single retry by the caller.
type NetworkError struct {
	URL string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error fetching %s: %v", e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// HTTPError indicates a non-2xx response. Fatal for the request, no retry.
type HTTPError struct {
	URL    string
	Status int
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d fetching %s", e.Status, e.URL)
}

// ParseError indicates a structurally undecodable document.
type ParseError struct {
	URL string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse feed from %s: %v", e.URL, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// IsTransient reports whether err is worth one retry.
func IsTransient(err error) bool {
	var netErr *NetworkError
	return errors.As(err, &netErr)
}

func errorTypeLabel(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, ErrTooLarge):
		return "too_large"
	case errors.Is(err, ErrCancelled):
		return "cancelled"
	default:
	}
	var netErr *NetworkError
	if errors.As(err, &netErr) {
		return "network"
	}
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return "http"
	}
	var parseErr *ParseError
	if errors.As(err, &parseErr) {
		return "parse"
	}
	return "other"
}
