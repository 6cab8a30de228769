// Package retry wraps fallible remote calls with bounded attempts and
// backoff. Every failed attempt is reported through an injected hook so
// operators (and tests) can observe failures without relying on ambient
// logging state.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// DefaultMaxAttempts matches the attempt cap used by the generation tools.
const DefaultMaxAttempts = 3

// DefaultBackoffBase is the first retry delay; each further retry doubles it.
const DefaultBackoffBase = 5 * time.Second

// Reporter observes each failed attempt before the policy decides whether to
// retry.
type Reporter interface {
	ReportFailure(ctx context.Context, op string, attempt int, err error)
}

// ReporterFunc adapts a function to the Reporter interface.
type ReporterFunc func(ctx context.Context, op string, attempt int, err error)

func (f ReporterFunc) ReportFailure(ctx context.Context, op string, attempt int, err error) {
	f(ctx, op, attempt, err)
}

// Policy retries an operation up to MaxAttempts times, waiting
// Backoff(attempt) between failures. All operation errors are retried
// uniformly, transient network failures and malformed-output validation
// failures alike. Context cancellation and PermanentError both stop the loop
// at once. After the attempts are exhausted the last failure is propagated.
type Policy struct {
	MaxAttempts int
	Backoff     func(attempt int) time.Duration
	Reporter    Reporter

	// sleep is a test seam; nil means a real timer.
	sleep func(ctx context.Context, d time.Duration) error
}

// PermanentError marks a failure that retrying cannot help, such as a disk
// fault while loading an already-produced artifact. Do returns the wrapped
// error immediately instead of burning the remaining attempts.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }

func (e *PermanentError) Unwrap() error { return e.Err }

// Permanent wraps err so the policy stops on it. Permanent(nil) is nil.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

// ExponentialBackoff doubles the delay on every retry: base, 2*base, 4*base.
func ExponentialBackoff(base time.Duration) func(int) time.Duration {
	return func(attempt int) time.Duration {
		return base << attempt
	}
}

// Do runs fn under the policy. op names the operation in failure reports.
func (p Policy) Do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	maxAttempts := p.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	backoff := p.Backoff
	if backoff == nil {
		backoff = ExponentialBackoff(DefaultBackoffBase)
	}
	sleep := p.sleep
	if sleep == nil {
		sleep = sleepFor
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if errors.Is(lastErr, context.Canceled) || errors.Is(lastErr, context.DeadlineExceeded) {
			return lastErr
		}
		var perm *PermanentError
		if errors.As(lastErr, &perm) {
			return perm.Err
		}
		if p.Reporter != nil {
			p.Reporter.ReportFailure(ctx, op, attempt, lastErr)
		}
		if attempt == maxAttempts {
			break
		}
		if err := sleep(ctx, backoff(attempt-1)); err != nil {
			return err
		}
	}
	return fmt.Errorf("%s failed after %d attempts: %w", op, maxAttempts, lastErr)
}

func sleepFor(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
