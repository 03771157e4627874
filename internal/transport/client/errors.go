package client

import (
	"errors"
	"fmt"
)

// Generic notification texts for failures without a server message
const (
	MessageRetry   = "service error, please retry"
	MessageGeneric = "request failed"
)

// TransportError means the request could not be sent or no response was
// received
type TransportError struct {
	Method string
	Path   string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("failed to make request: %s %s: %v", e.Method, e.Path, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// APIError means the service answered with a non-success status
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("server returned status %d: %s", e.StatusCode, e.Message)
}

// IsStatus reports whether err is an APIError with the given status
func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == status
}

// UserMessage maps err to the text shown to the user: a retry prompt for
// transport failures, the server's message for application failures when it
// sent one, and fallback otherwise.
func UserMessage(err error, fallback string) string {
	if err == nil {
		return ""
	}

	var transportErr *TransportError
	if errors.As(err, &transportErr) {
		return MessageRetry
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}

	if fallback == "" {
		return MessageGeneric
	}
	return fallback
}
