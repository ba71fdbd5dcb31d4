package gateway

import (
	"errors"
	"fmt"
)

// ErrorKind classifies provider errors for retry decisions.
type ErrorKind string

const (
	// KindConfiguration marks missing credentials or URLs. Retrying is
	// pointless until an operator fixes the record.
	KindConfiguration ErrorKind = "configuration"

	// KindAuthentication marks a failed or rejected token exchange.
	KindAuthentication ErrorKind = "authentication"

	// KindIntegration marks transport or remote-API failures. Retryable.
	KindIntegration ErrorKind = "integration"

	// KindValidation marks payloads that fail pre-submission rules. Not
	// retryable without data correction.
	KindValidation ErrorKind = "validation"
)

// Error represents an error from a provider integration.
type Error struct {
	Provider   string
	Kind       ErrorKind
	Message    string
	StatusCode int
	Cause      error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s %s error: %s: %v", e.Provider, e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s %s error: %s", e.Provider, e.Kind, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches errors of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// NewError creates a new provider error.
func NewError(provider string, kind ErrorKind, message string) *Error {
	return &Error{Provider: provider, Kind: kind, Message: message}
}

// WithCause adds a cause to the error.
func (e *Error) WithCause(err error) *Error {
	e.Cause = err
	return e
}

// WithStatusCode adds an HTTP status code to the error.
func (e *Error) WithStatusCode(code int) *Error {
	e.StatusCode = code
	return e
}

// ErrProviderNotFound indicates the requested provider code is not
// registered.
var ErrProviderNotFound = errors.New("provider not found")

// IsRetryable reports whether retrying the operation may succeed. Only
// transport/remote failures qualify; configuration and validation failures
// need human intervention first.
func IsRetryable(err error) bool {
	var gwErr *Error
	if errors.As(err, &gwErr) {
		return gwErr.Kind == KindIntegration || gwErr.Kind == KindAuthentication
	}
	return false
}

// IsValidation reports whether the error came from pre-submission
// validation.
func IsValidation(err error) bool {
	var gwErr *Error
	return errors.As(err, &gwErr) && gwErr.Kind == KindValidation
}
