package tailnet

import (
	"errors"
	"fmt"
)

var (
	// ErrUpstreamAuth indicates credentials are missing or were rejected
	ErrUpstreamAuth = errors.New("tailnet: authentication failed")

	// ErrUpstream indicates the provider API failed or returned an unusable response
	ErrUpstream = errors.New("tailnet: upstream error")
)

// APIError carries the raw provider response for a non-2xx status.
// It matches ErrUpstream with errors.Is.
type APIError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: HTTP %d - %s", e.Op, e.StatusCode, e.Body)
}

func (e *APIError) Unwrap() error {
	return ErrUpstream
}
