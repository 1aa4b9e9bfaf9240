// Package graph provides an HTTP client for the Microsoft Graph API:
// token lifecycle, sharing-URL resolution, folder listing with delta
// cursors, and content download. Requests are single-shot: transient
// failures surface to the caller and the next scheduled run is the retry
// mechanism.
package graph

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors for HTTP status classification.
// Use errors.Is(err, graph.ErrGone) to check.
var (
	ErrBadRequest   = errors.New("graph: bad request")
	ErrUnauthorized = errors.New("graph: unauthorized")
	ErrForbidden    = errors.New("graph: forbidden")
	ErrNotFound     = errors.New("graph: not found")
	ErrGone         = errors.New("graph: resource gone")
	ErrThrottled    = errors.New("graph: throttled")
	ErrServerError  = errors.New("graph: server error")
)

// ErrNotAuthenticated is returned by the token manager when no usable
// token exists and refresh is impossible. The user must log in again.
var ErrNotAuthenticated = errors.New("graph: not authenticated")

// AuthError reports a credential failure: a rejected token request or an
// unauthorized API call with no usable refresh path. Fatal for the whole
// run; no cursor is touched once one of these surfaces.
type AuthError struct {
	Description string
}

func (e *AuthError) Error() string {
	if e.Description == "" {
		return "graph: authentication failed"
	}

	return fmt.Sprintf("graph: authentication failed: %s", e.Description)
}

func (e *AuthError) Unwrap() error {
	return ErrUnauthorized
}

// APIError wraps a sentinel error with the HTTP status code, request ID,
// and the API error message body for debugging.
type APIError struct {
	StatusCode int
	RequestID  string
	Message    string
	Err        error // sentinel, for errors.Is()
}

func (e *APIError) Error() string {
	if e.RequestID != "" {
		return fmt.Sprintf("graph: HTTP %d (request-id: %s): %s", e.StatusCode, e.RequestID, e.Message)
	}

	return fmt.Sprintf("graph: HTTP %d: %s", e.StatusCode, e.Message)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// classifyStatus maps an HTTP status code to a sentinel error.
// Returns nil for 2xx success codes.
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
	case http.StatusGone:
		return ErrGone
	case http.StatusTooManyRequests:
		return ErrThrottled
	default:
		if code >= http.StatusInternalServerError {
			return ErrServerError
		}

		return nil
	}
}
