// Package gapi provides HTTP clients for the Google APIs the case-file
// workflow talks to: OAuth2 identity, the Sheets values API (the index) and
// the Drive v3 files API (the store). Every call is a single authenticated
// REST request; failures are classified into typed errors that carry the
// HTTP status and response body.
package gapi

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors for HTTP status code classification.
// Use errors.Is(err, gapi.ErrUnauthorized) to check.
var (
	ErrBadRequest   = errors.New("gapi: bad request")
	ErrUnauthorized = errors.New("gapi: unauthorized")
	ErrForbidden    = errors.New("gapi: forbidden")
	ErrNotFound     = errors.New("gapi: not found")
	ErrConflict     = errors.New("gapi: conflict")
	ErrThrottled    = errors.New("gapi: throttled")
	ErrServerError  = errors.New("gapi: server error")
)

// APIError is a non-2xx response from a Google API. Message is the
// human-readable message from Google's JSON error envelope when present;
// Body is always the raw response body.
type APIError struct {
	StatusCode int
	Message    string
	Body       string
	Err        error // sentinel, for errors.Is()
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
	}

	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Body)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// IndexReadError is returned when reading the index range fails.
type IndexReadError struct {
	*APIError
}

func (e *IndexReadError) Error() string {
	return "gapi: reading index: " + e.APIError.Error()
}

func (e *IndexReadError) Unwrap() error {
	return e.APIError
}

// IndexWriteError is returned when appending a row to the index fails.
type IndexWriteError struct {
	*APIError
}

func (e *IndexWriteError) Error() string {
	return "gapi: appending to index: " + e.APIError.Error()
}

func (e *IndexWriteError) Unwrap() error {
	return e.APIError
}

// StoreError is returned when a folder or file operation against Drive fails.
// Op names the operation ("create folder", "upload", "delete").
type StoreError struct {
	Op string
	*APIError
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("gapi: store %s: %s", e.Op, e.APIError.Error())
}

func (e *StoreError) Unwrap() error {
	return e.APIError
}

// AuthError is returned when the identity provider does not yield a token:
// the user denied consent, the callback was malformed, the exchange failed or
// the flow was canceled.
type AuthError struct {
	Reason string
	Err    error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("gapi: authorization failed: %s: %v", e.Reason, e.Err)
	}

	return "gapi: authorization failed: " + e.Reason
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// classifyStatus maps an HTTP status code to a sentinel error.
// Returns nil for codes without a dedicated sentinel.
func classifyStatus(code int) error {
	switch code {
	case http.StatusBadRequest:
		return ErrBadRequest
	case http.StatusUnauthorized:
		return ErrUnauthorized
	case http.StatusForbidden:
		return ErrForbidden
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusConflict:
		return ErrConflict
	case http.StatusTooManyRequests:
		return ErrThrottled
	default:
		if code >= http.StatusInternalServerError {
			return ErrServerError
		}

		return nil
	}
}

// isRetryable reports whether a failed read may be retried. 429 is not
// retried; it surfaces to the caller as ErrThrottled.
func isRetryable(code int) bool {
	switch code {
	case http.StatusRequestTimeout,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}
