package provider

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"
)

// retrier runs calls with exponential backoff.
type retrier struct {
	maxRetries    int
	initialDelay  time.Duration
	backoffFactor float64
}

func newRetrier(cfg Config) retrier {
	return retrier{
		maxRetries:    cfg.MaxRetries,
		initialDelay:  cfg.InitialDelay,
		backoffFactor: cfg.BackoffFactor,
	}
}

// do executes fn until it succeeds, returns a non-retryable error, or the
// retry budget is spent.
func (r retrier) do(ctx context.Context, fn func() error, retryable func(error) bool) error {
	delay := r.initialDelay
	var lastErr error

	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}

		if !retryable(lastErr) {
			return lastErr
		}

		if attempt < r.maxRetries {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
				delay = time.Duration(float64(delay) * r.backoffFactor)
			}
		}
	}

	return fmt.Errorf("max retries exceeded: %w", lastErr)
}

// retryableStatus reports whether an HTTP status is worth retrying.
func retryableStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

// retryableTransport reports whether err is a transient transport failure.
func retryableTransport(err error) bool {
	if errors.Is(err, errEmbeddingCountMismatch) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var pErr *ProviderError
	if errors.As(err, &pErr) {
		return retryableStatus(pErr.statusCode)
	}
	return false
}
