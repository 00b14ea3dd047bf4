package ocr

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// APIError is a rejection reported inside Response.Error.
type APIError struct {
	Code      string
	Message   string
	RequestID string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Retryable reports whether the code signals throttling, a timeout or a
// server-side fault. Every other code is a terminal client error.
func (e *APIError) Retryable() bool {
	switch {
	case strings.HasPrefix(e.Code, "RequestLimitExceeded"),
		strings.HasPrefix(e.Code, "InternalError"),
		strings.HasPrefix(e.Code, "ResourceUnavailable"),
		strings.Contains(e.Code, "Timeout"):
		return true
	}
	return false
}

// StatusError is a non-2xx HTTP response without a parseable API error.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected HTTP status %d (body: %s)", e.StatusCode, e.Body)
}

// Retryable reports whether the status signals throttling, a timeout or a
// server-side fault.
func (e *StatusError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests ||
		e.StatusCode == http.StatusRequestTimeout ||
		e.StatusCode >= 500
}

// transportError wraps failures to reach the endpoint or read its reply.
type transportError struct {
	err error
}

func (e *transportError) Error() string { return e.err.Error() }
func (e *transportError) Unwrap() error { return e.err }

// shouldRetry classifies an attempt failure.
func shouldRetry(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Retryable()
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Retryable()
	}
	var tErr *transportError
	return errors.As(err, &tErr)
}
