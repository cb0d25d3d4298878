package siera

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrNotConfigured indicates a credential is empty or still holds the
	// NotFound placeholder.
	ErrNotConfigured = errors.New("siera: credentials not configured")

	// ErrBatchTooLarge indicates more articles than the API accepts per call.
	ErrBatchTooLarge = errors.New("siera: batch exceeds maximum size")
)

// TransportError wraps a failure to complete the HTTP round trip.
type TransportError struct {
	Op       string
	Endpoint string
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("siera: %s %s: %v", e.Op, e.Endpoint, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// APIError is a non-200 response other than 401.
type APIError struct {
	StatusCode int
	Body       string
	Endpoint   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("siera: API error %d on %s: %s", e.StatusCode, e.Endpoint, e.Body)
}

// TokenRefreshError means the renewal endpoint rejected the refresh token.
type TokenRefreshError struct {
	StatusCode int
	Body       string
}

func (e *TokenRefreshError) Error() string {
	return fmt.Sprintf("siera: failed to generate new token (%d): %s", e.StatusCode, e.Body)
}

// AuthRetryExhaustedError is returned when the service keeps answering 401
// after the configured number of token renewals.
type AuthRetryExhaustedError struct {
	Endpoint string
	Attempts int
}

func (e *AuthRetryExhaustedError) Error() string {
	return fmt.Sprintf("siera: %s still unauthorized after %d token renewal(s)", e.Endpoint, e.Attempts)
}

// MissingFieldError means a 200 response lacked an expected field.
type MissingFieldError struct {
	Field    string
	Endpoint string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("siera: response from %s has no %q field", e.Endpoint, e.Field)
}

// DecodeError means a 200 response body was not valid JSON.
type DecodeError struct {
	Endpoint string
	Err      error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("siera: decode response from %s: %v", e.Endpoint, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// IsUnauthorized reports whether err ends in an authentication failure that
// token renewal could not fix.
func IsUnauthorized(err error) bool {
	var exhausted *AuthRetryExhaustedError
	if errors.As(err, &exhausted) {
		return true
	}
	var refreshErr *TokenRefreshError
	return errors.As(err, &refreshErr)
}

// IsForbidden checks if the error is a 403 from the API.
func IsForbidden(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusForbidden
	}
	return false
}

// IsTransport checks if the error came from the network layer.
func IsTransport(err error) bool {
	var transportErr *TransportError
	return errors.As(err, &transportErr)
}
