package common

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

var (
	// ErrRateLimit indicates that the API rate limit has been exceeded.
	ErrRateLimit = errors.New("rate limit exceeded")
	// ErrMaxRetries indicates that all retry attempts have been exhausted.
	ErrMaxRetries = errors.New("max retries exceeded")
)

// RetryOptions configures WithRetry. Zero fields take the defaults below.
type RetryOptions struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

// DefaultRetryOptions is used for idempotent marketplace reads and feed
// downloads.
func DefaultRetryOptions() RetryOptions {
	return RetryOptions{
		MaxAttempts:  3,
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     5 * time.Second,
		Multiplier:   2.0,
	}
}

func (o RetryOptions) withDefaults() RetryOptions {
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 3
	}
	if o.InitialDelay <= 0 {
		o.InitialDelay = 100 * time.Millisecond
	}
	if o.MaxDelay <= 0 {
		o.MaxDelay = 30 * time.Second
	}
	if o.Multiplier <= 0 {
		o.Multiplier = 2.0
	}
	return o
}

// RetryableError classifies an error for WithRetry. RetryAfter, when set,
// overrides the computed backoff for the next attempt.
type RetryableError struct {
	Err        error
	RetryAfter time.Duration
	Retryable  bool
}

func (e *RetryableError) Error() string {
	return e.Err.Error()
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}

type backoff struct {
	opts RetryOptions
	next time.Duration
}

// delay returns how long to wait after err and advances the schedule.
func (b *backoff) delay(err error) time.Duration {
	current := b.next
	b.next = min(time.Duration(float64(b.next)*b.opts.Multiplier), b.opts.MaxDelay)

	var re *RetryableError
	switch {
	case errors.As(err, &re) && re.RetryAfter > 0:
		return min(re.RetryAfter, b.opts.MaxDelay)
	case errors.Is(err, ErrRateLimit):
		return b.opts.MaxDelay
	default:
		return current
	}
}

// WithRetry runs operation until it succeeds, returns a non-retryable
// RetryableError, the attempts run out, or ctx is done. Plain errors are
// retried.
func WithRetry(ctx context.Context, operation func() error, opts RetryOptions) error {
	opts = opts.withDefaults()
	b := backoff{opts: opts, next: opts.InitialDelay}

	for attempt := 1; ; attempt++ {
		err := operation()
		if err == nil {
			return nil
		}

		var re *RetryableError
		if errors.As(err, &re) && !re.Retryable {
			return err
		}
		if attempt == opts.MaxAttempts {
			return fmt.Errorf("%w after %d attempts: %w", ErrMaxRetries, opts.MaxAttempts, err)
		}

		wait := b.delay(err)
		slog.Warn("Operation failed, retrying",
			"attempt", attempt,
			"max_attempts", opts.MaxAttempts,
			"delay", wait,
			"error", err)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
