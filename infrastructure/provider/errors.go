// Package provider implements frame and text embedding backends that talk to
// model servers or run models in process.
package provider

import (
	"errors"
	"fmt"
)

// ErrUnsupportedProtocol indicates an endpoint protocol this package cannot speak.
var ErrUnsupportedProtocol = errors.New("unsupported endpoint protocol")

// errEmbeddingCountMismatch indicates the server returned fewer vectors than
// inputs. Treated as retryable: overloaded servers can return partial bodies.
var errEmbeddingCountMismatch = errors.New("embedding response count mismatch")

// ProviderError wraps provider errors with additional context.
type ProviderError struct {
	operation  string
	statusCode int
	message    string
	cause      error
}

// NewProviderError creates a new ProviderError.
func NewProviderError(operation string, statusCode int, message string, cause error) *ProviderError {
	return &ProviderError{
		operation:  operation,
		statusCode: statusCode,
		message:    message,
		cause:      cause,
	}
}

// Error implements the error interface.
func (e *ProviderError) Error() string {
	msg := e.operation + ": " + e.message
	if e.statusCode != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.statusCode)
	}
	if e.cause != nil && e.cause.Error() != e.message {
		return msg + ": " + e.cause.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *ProviderError) Unwrap() error { return e.cause }

// Operation returns the failed operation.
func (e *ProviderError) Operation() string { return e.operation }

// StatusCode returns the HTTP status code, or 0 when none was received.
func (e *ProviderError) StatusCode() int { return e.statusCode }
