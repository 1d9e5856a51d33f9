package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// Domain errors can be checked with errors.Is.
var (
	// ErrNotFound is returned by key-value stores when a key has no record.
	ErrNotFound = errors.New("reqguard: not found")

	// ErrOffline is wrapped by every OfflineError.
	ErrOffline = errors.New("reqguard: offline, request queued")

	// ErrAlreadyRunning is returned when Start() is called on a running client.
	ErrAlreadyRunning = errors.New("reqguard: already running")

	// ErrNotRunning is returned when Stop() is called on a stopped client.
	ErrNotRunning = errors.New("reqguard: not running")

	// ErrShutdownTimeout is returned when background workers do not stop in time.
	ErrShutdownTimeout = errors.New("reqguard: shutdown timeout")

	// ErrInvalidConfig is returned when configuration validation fails.
	ErrInvalidConfig = errors.New("reqguard: invalid configuration")
)

// Failure is the error a transport returns for a call that did not succeed.
// Response is set when the server answered with a non-2xx status.
type Failure struct {
	// Response holds the server's answer, nil when none was received.
	Response *Response

	// RequestSent is true when the request was dispatched but the connection
	// failed before any response arrived.
	RequestSent bool

	// Aborted is true when the call was cut off by a timeout or cancellation.
	Aborted bool

	// Err is the underlying transport error, if any.
	Err error
}

// Error implements the error interface.
func (f *Failure) Error() string {
	switch {
	case f.Response != nil:
		return fmt.Sprintf("request failed with status %d", f.Response.StatusCode)
	case f.Err != nil:
		return f.Err.Error()
	case f.Aborted:
		return "request aborted: timeout"
	default:
		return "request failed"
	}
}

// Unwrap returns the underlying transport error.
func (f *Failure) Unwrap() error { return f.Err }

// Status returns the response status code, or 0 when no response was received.
func (f *Failure) Status() int {
	if f.Response == nil {
		return 0
	}
	return f.Response.StatusCode
}

// OfflineError is returned for a mutating call that was queued for later delivery.
type OfflineError struct {
	// Original is the failure that caused the call to be queued.
	Original error

	// QueueID identifies the queued item.
	QueueID string
}

// Error implements the error interface.
func (e *OfflineError) Error() string {
	return fmt.Sprintf("offline: request queued for later delivery (%s)", e.QueueID)
}

// IsOfflineError is always true; it lets callers tell a queued call from a hard failure.
func (e *OfflineError) IsOfflineError() bool { return true }

// Unwrap exposes both the offline sentinel and the original failure.
func (e *OfflineError) Unwrap() []error {
	if e.Original == nil {
		return []error{ErrOffline}
	}
	return []error{ErrOffline, e.Original}
}

// APIError is the normalized error callers receive from the pipeline.
type APIError struct {
	Message string `json:"message"`
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Details any    `json:"details,omitempty"`

	// Offline is true when the call was queued instead of failing.
	Offline bool `json:"offline,omitempty"`

	// Handled is true when authentication recovery already dealt with the failure.
	Handled bool `json:"handled,omitempty"`

	cause error
}

// NewAPIError builds a normalized error around its cause.
func NewAPIError(message string, status int, code string, details any, cause error) *APIError {
	return &APIError{Message: message, Status: status, Code: code, Details: details, cause: cause}
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("%s: %s (status %d)", e.Code, e.Message, e.Status)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the original failure.
func (e *APIError) Unwrap() error { return e.cause }

// StatusText returns the canonical text for a status code, or "" for 0.
func StatusText(code int) string {
	if code == 0 {
		return ""
	}
	return http.StatusText(code)
}
