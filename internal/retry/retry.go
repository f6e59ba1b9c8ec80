package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"time"

	"github.com/amishk599/searchradar/internal/model"
)

// Backoff returns the delay before retry number attempt (1-based), given the
// error that triggered it.
type Backoff func(attempt int, err error) time.Duration

// Policy describes how a call is retried.
type Policy struct {
	MaxRetries int              // additional attempts after the first failure
	Backoff    Backoff          // delay schedule
	Retryable  func(error) bool // defaults to IsRetryable
}

// Linear waits step*attempt: step, 2*step, 3*step...
func Linear(step time.Duration) Backoff {
	return func(attempt int, _ error) time.Duration {
		return step * time.Duration(attempt)
	}
}

// Exponential doubles base on each attempt with ±30% jitter.
// A Retry-After from an HTTP 429 takes precedence.
func Exponential(base time.Duration) Backoff {
	return func(attempt int, err error) time.Duration {
		var httpErr *model.HTTPError
		if errors.As(err, &httpErr) && httpErr.RetryAfter > 0 {
			return httpErr.RetryAfter
		}

		delay := base
		for i := 1; i < attempt; i++ {
			delay *= 2
		}

		jitter := float64(delay) * 0.3
		return time.Duration(float64(delay) + (rand.Float64()*2-1)*jitter)
	}
}

// Do calls fn until it succeeds, returns a non-retryable error, or the policy
// runs out of retries. The last error is returned.
func Do(ctx context.Context, p Policy, logger *slog.Logger, fn func(ctx context.Context) error) error {
	retryable := p.Retryable
	if retryable == nil {
		retryable = IsRetryable
	}

	err := fn(ctx)
	if err == nil || !retryable(err) {
		return err
	}

	lastErr := err
	for attempt := 1; attempt <= p.MaxRetries; attempt++ {
		delay := time.Duration(0)
		if p.Backoff != nil {
			delay = p.Backoff(attempt, lastErr)
		}

		logger.Warn("retrying after transient error",
			"attempt", attempt,
			"max_retries", p.MaxRetries,
			"delay", delay,
			"error", lastErr,
		)

		select {
		case <-ctx.Done():
			return fmt.Errorf("retry cancelled: %w", ctx.Err())
		case <-time.After(delay):
		}

		err = fn(ctx)
		if err == nil {
			return nil
		}
		if !retryable(err) {
			return err
		}
		lastErr = err
	}

	return lastErr
}

// IsRetryable reports whether err is a transient failure worth retrying:
// HTTP 429, HTTP 5xx, or a non-HTTP (transport) error.
func IsRetryable(err error) bool {
	if err == nil || isCancellation(err) {
		return false
	}

	var httpErr *model.HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode == http.StatusTooManyRequests || httpErr.StatusCode >= 500
	}

	return true
}

// IsServerOrTransport is stricter than IsRetryable: only HTTP 5xx and
// transport errors qualify. Every 4xx, 429 included, is final.
func IsServerOrTransport(err error) bool {
	if err == nil || isCancellation(err) {
		return false
	}

	var httpErr *model.HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode >= 500
	}

	return true
}

func isCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
