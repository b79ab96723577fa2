package embedding

import (
	"errors"
	"fmt"
)

// Error taxonomy shared by encoders, stores and the pipeline.
var (
	// ErrConfiguration marks unknown identifiers and malformed parameters.
	// These fail before any resource is opened.
	ErrConfiguration = errors.New("configuration error")

	// ErrUnavailable marks missing model weights, unreachable model servers
	// and unreachable stores. These are fatal at construction.
	ErrUnavailable = errors.New("resource unavailable")

	// ErrEmptyClip indicates a clip with zero frames was passed to a model.
	ErrEmptyClip = errors.New("clip has no frames")

	// ErrDimensionMismatch indicates an embedding disagrees with the shape its
	// encoder declared.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)

// Configurationf builds an error wrapping ErrConfiguration.
func Configurationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConfiguration, fmt.Sprintf(format, args...))
}

// Unavailable wraps cause with ErrUnavailable, keeping cause reachable via errors.Is/As.
func Unavailable(what string, cause error) error {
	return fmt.Errorf("%w: %s: %w", ErrUnavailable, what, cause)
}
