package members

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is matched by errors.Is for 404 responses.
	ErrNotFound = errors.New("members: not found")

	// ErrEmptyID is returned when a member id is required but missing.
	ErrEmptyID = errors.New("members: member id required")
)

// APIError represents an error response from the member API.
type APIError struct {
	StatusCode int
	Message    string
	Path       string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("members: API error %d on %s: %s", e.StatusCode, e.Path, e.Message)
}

// Is lets errors.Is(err, ErrNotFound) match 404 responses.
func (e *APIError) Is(target error) bool {
	return target == ErrNotFound && e.IsNotFound()
}

// IsNotFound returns true if the member does not exist (HTTP 404).
func (e *APIError) IsNotFound() bool {
	return e.StatusCode == 404
}

// IsRateLimited returns true if this is a rate limit error (HTTP 429).
func (e *APIError) IsRateLimited() bool {
	return e.StatusCode == 429
}

// IsServerError returns true if this is a server-side error (HTTP 5xx).
func (e *APIError) IsServerError() bool {
	return e.StatusCode >= 500 && e.StatusCode < 600
}

// IsRetryable returns true if the request should be retried.
func (e *APIError) IsRetryable() bool {
	return e.IsRateLimited() || e.IsServerError()
}

// RequestError wraps a transport-level failure with the request path.
type RequestError struct {
	Path string
	Err  error
}

// Error implements the error interface.
func (e *RequestError) Error() string {
	return fmt.Sprintf("members: request %s: %v", e.Path, e.Err)
}

// Unwrap returns the underlying error.
func (e *RequestError) Unwrap() error {
	return e.Err
}
