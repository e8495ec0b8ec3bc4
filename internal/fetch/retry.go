package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"syscall"
	"time"

	"github.com/wbt-web-support/video-compress/internal/logging"
)

// Observer receives fetch operation and retry events for instrumentation.
// The metrics package provides an implementation backed by Prometheus.
type Observer interface {
	ObserveOperation(operation string, durationSeconds float64, err error)
	ObserveRetryAttempt(operation string)
	ObserveRetrySuccess(operation string)
	ObserveRetryFailure(operation string)
	ObserveRetryDuration(operation string, durationSeconds float64)
	ObserveThrottle(operation string)
}

type noopObserver struct{}

func (noopObserver) ObserveOperation(string, float64, error) {}
func (noopObserver) ObserveRetryAttempt(string)              {}
func (noopObserver) ObserveRetrySuccess(string)              {}
func (noopObserver) ObserveRetryFailure(string)              {}
func (noopObserver) ObserveRetryDuration(string, float64)    {}
func (noopObserver) ObserveThrottle(string)                  {}

// defaultObserver is the package-level observer set at startup
var defaultObserver Observer = noopObserver{}

// SetDefaultObserver sets the package-level observer.
// Call this once at startup before any downloads run.
func SetDefaultObserver(o Observer) {
	if o == nil {
		defaultObserver = noopObserver{}
		return
	}
	defaultObserver = o
}

// RetryConfig configures retry behavior for fetch operations
type RetryConfig struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// DefaultRetryConfig returns sensible defaults for transient network failures
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:     3,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     5 * time.Second,
	}
}

// statusError reports a non-2xx HTTP response so the retry loop can
// distinguish transient upstream failures from permanent ones.
type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("unexpected HTTP status %d", e.code)
}

// isThrottleError checks if an error is a rate-limit response from the remote
func isThrottleError(err error) bool {
	var se *statusError
	if errors.As(err, &se) {
		return se.code == http.StatusTooManyRequests || se.code == http.StatusServiceUnavailable
	}
	return false
}

// isRetryableError checks if an error is worth retrying: transient upstream
// statuses and transient network failures. Context cancellation and size-cap
// violations are never retried.
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}

	// The caller gave up or the deadline passed; retrying is futile.
	// Checked first because context.DeadlineExceeded also satisfies net.Error.
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var se *statusError
	if errors.As(err, &se) {
		switch se.code {
		case http.StatusTooManyRequests,
			http.StatusBadGateway,
			http.StatusServiceUnavailable,
			http.StatusGatewayTimeout:
			return true
		}
		return false
	}

	if errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}

	var errno syscall.Errno
	if errors.As(err, &errno) {
		return errno == syscall.ECONNRESET || errno == syscall.EPIPE
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}

	return false
}

// withRetry runs fn with exponential backoff for retryable errors
func (f *Fetcher) withRetry(ctx context.Context, operation string, fn func() error) error {
	start := time.Now()
	var lastErr error
	backoff := f.retry.InitialBackoff

	for attempt := 0; attempt <= f.retry.MaxRetries; attempt++ {
		err := fn()
		if err == nil {
			if attempt > 0 {
				logging.Info("Fetch %s succeeded on retry %d", operation, attempt)
				defaultObserver.ObserveRetrySuccess(operation)
			}
			defaultObserver.ObserveRetryDuration(operation, time.Since(start).Seconds())
			return nil
		}

		lastErr = err

		if !isRetryableError(err) {
			defaultObserver.ObserveRetryDuration(operation, time.Since(start).Seconds())
			return err
		}

		if isThrottleError(err) {
			defaultObserver.ObserveThrottle(operation)
		}

		// Don't sleep after the last attempt
		if attempt < f.retry.MaxRetries {
			defaultObserver.ObserveRetryAttempt(operation)
			logging.Debug("Fetch %s failed (%v), retrying in %v (attempt %d/%d)",
				operation, err, backoff, attempt+1, f.retry.MaxRetries)

			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}

			// Exponential backoff with cap
			backoff *= 2
			if backoff > f.retry.MaxBackoff {
				backoff = f.retry.MaxBackoff
			}
		}
	}

	logging.Warn("Fetch %s failed after %d retries: %v", operation, f.retry.MaxRetries, lastErr)
	defaultObserver.ObserveRetryFailure(operation)
	defaultObserver.ObserveRetryDuration(operation, time.Since(start).Seconds())
	return lastErr
}
