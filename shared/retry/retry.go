package retry

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

var (
	// ErrTimeout is returned when a single attempt exceeds the per-attempt timeout.
	ErrTimeout = errors.New("remote call timed out")
	// ErrMaxAttemptsExceeded is returned when every attempt was consumed without a recorded error.
	ErrMaxAttemptsExceeded = errors.New("reached max attempts")
)

// Policy configures how a remote call is retried. The backoff between failed
// attempts is InitialBackoff * 2^attempt, with the attempt count starting at 0.
type Policy struct {
	MaxAttempts       int
	PerAttemptTimeout time.Duration
	InitialBackoff    time.Duration
}

// DefaultPolicy mirrors the defaults the downstream services are provisioned for.
var DefaultPolicy = Policy{
	MaxAttempts:       10,
	PerAttemptTimeout: 30 * time.Second,
	InitialBackoff:    time.Second,
}

type result[T any] struct {
	value T
	err   error
}

// Do invokes op until it succeeds, up to policy.MaxAttempts times. Each attempt
// races op against a timer of policy.PerAttemptTimeout; a timed-out attempt is
// treated as failed but op itself is not cancelled, only abandoned. Downstream
// idempotency keys make a late-arriving duplicate side effect harmless.
//
// Do returns the first successful value, or the most recent error once all
// attempts are exhausted. A cancelled ctx stops the loop immediately.
func Do[T any](ctx context.Context, policy Policy, op func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error

	for attempt := 0; attempt < policy.MaxAttempts; attempt++ {
		done := make(chan result[T], 1)
		go func() {
			value, err := op(ctx)
			done <- result[T]{value: value, err: err}
		}()

		timer := time.NewTimer(policy.PerAttemptTimeout)
		select {
		case res := <-done:
			timer.Stop()
			if res.err == nil {
				return res.value, nil
			}
			lastErr = res.err
		case <-timer.C:
			lastErr = ErrTimeout
		case <-ctx.Done():
			timer.Stop()
			return zero, errors.Wrap(ctx.Err(), "remote call aborted")
		}

		if attempt == policy.MaxAttempts-1 {
			break
		}
		if err := sleep(ctx, policy.InitialBackoff<<uint(attempt)); err != nil {
			return zero, err
		}
	}

	if lastErr != nil {
		return zero, lastErr
	}
	return zero, ErrMaxAttemptsExceeded
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return errors.Wrap(ctx.Err(), "remote call aborted")
	}
}
