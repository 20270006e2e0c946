package api

import (
	"errors"
	"fmt"
	"net/http"
)

// Error is a structured error response from the chat backend. Callers
// use errors.As to reach the structured fields:
//
//	var apiErr *api.Error
//	if errors.As(err, &apiErr) {
//	    if apiErr.StatusCode == http.StatusForbidden { ... }
//	}
type Error struct {
	// StatusCode is the HTTP status of the response.
	StatusCode int `json:"-"`
	// Code is the machine-readable error code, when the server sends one.
	Code string `json:"code,omitempty"`
	// Message is the human-readable description from the server.
	Message string `json:"error"`
}

func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api: %s (%d): %s", e.Code, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("api: status %d: %s", e.StatusCode, e.Message)
}

// ErrAuthExpired marks a request that failed authorization even after a
// credential renewal and single replay. The session has been cleared;
// the user must sign in again.
var ErrAuthExpired = errors.New("api: authorization expired")

// IsAuthStatus reports whether the error is a 401/403 response, the
// statuses that trigger renew-and-replay for non-auth endpoints.
func IsAuthStatus(err error) bool {
	var apiErr *Error
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusForbidden
}

// IsForbidden reports a permission error: renewal does not help, the
// caller no longer has access to the resource.
func IsForbidden(err error) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusForbidden
}

// IsNotFound reports that the referenced entity no longer exists.
func IsNotFound(err error) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}
