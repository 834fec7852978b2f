package qtsp

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrUnavailable  = errors.New("provider unavailable")
	ErrUnauthorized = errors.New("unauthorized")
	ErrNotFound     = errors.New("resource not found")
	ErrRejected     = errors.New("request rejected")
	ErrBadResponse  = errors.New("bad provider response")
)

// ProviderError is a non-2xx answer relayed by the intermediary. Details is
// the provider's own message, passed through verbatim.
type ProviderError struct {
	Op         string
	StatusCode int
	Details    string
	kind       error
}

func (e *ProviderError) Error() string {
	if e.Details == "" {
		return fmt.Sprintf("%s: status %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("%s: status %d: %s", e.Op, e.StatusCode, e.Details)
}

func (e *ProviderError) Unwrap() error {
	return e.kind
}

// kindForStatus maps an HTTP status to a transport sentinel.
func kindForStatus(code int) error {
	switch {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return ErrUnauthorized
	case code == http.StatusNotFound:
		return ErrNotFound
	case code == http.StatusTooManyRequests || code == http.StatusRequestTimeout || code >= 500:
		return ErrUnavailable
	default:
		return ErrRejected
	}
}

// NewProviderError classifies code into one of the transport sentinels.
func NewProviderError(op string, code int, details string) *ProviderError {
	return &ProviderError{Op: op, StatusCode: code, Details: details, kind: kindForStatus(code)}
}
