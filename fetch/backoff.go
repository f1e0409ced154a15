package fetch

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/cockroachdb/errors"
)

// Policy is a bounded exponential retry policy. The k-th wait (1-based) is
// min(Base * 2^(k-1), Cap) and at most MaxAttempts calls are made.
type Policy struct {
	MaxAttempts int
	Base        time.Duration
	Cap         time.Duration
}

// DefaultPolicy matches the upstream's tolerance: five tries, one second
// doubling up to ten minutes.
var DefaultPolicy = Policy{MaxAttempts: 5, Base: time.Second, Cap: 600 * time.Second}

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Sleep is the real SleepFunc.
func Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (p Policy) backOff() *backoff.ExponentialBackOff {
	b := &backoff.ExponentialBackOff{
		InitialInterval:     p.Base,
		RandomizationFactor: 0,
		Multiplier:          2,
		MaxInterval:         p.Cap,
	}
	b.Reset()
	return b
}

// Delay returns the wait before attempt k+1, i.e. after the k-th failure.
func (p Policy) Delay(k int) time.Duration {
	if k < 1 {
		return 0
	}
	b := p.backOff()
	var d time.Duration
	for i := 0; i < k; i++ {
		d = b.NextBackOff()
	}
	return min(d, p.Cap)
}

// Retry calls op until it succeeds, returns an error marked Permanent, runs
// out of attempts, or ctx is cancelled. onRetry, if set, sees every failure
// that will be retried together with the wait that follows it. Retry returns
// the number of attempts made. Exhaustion is reported as an error marked with
// both ErrRetriesExhausted and ErrPermanent; cancellation returns ctx.Err().
func (p Policy) Retry(ctx context.Context, sleep SleepFunc, op func(ctx context.Context, attempt int) error, onRetry func(attempt int, delay time.Duration, err error)) (int, error) {
	if sleep == nil {
		sleep = Sleep
	}
	maxAttempts := max(p.MaxAttempts, 1)
	b := p.backOff()
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return attempt - 1, err
		}
		err := op(ctx, attempt)
		if err == nil {
			return attempt, nil
		}
		if ctx.Err() != nil {
			return attempt, ctx.Err()
		}
		if errors.Is(err, ErrPermanent) {
			return attempt, err
		}
		if attempt >= maxAttempts {
			err = errors.Wrapf(err, "giving up after %d attempts", attempt)
			return attempt, errors.Mark(errors.Mark(err, ErrRetriesExhausted), ErrPermanent)
		}
		delay := min(b.NextBackOff(), p.Cap)
		if onRetry != nil {
			onRetry(attempt, delay, err)
		}
		if err := sleep(ctx, delay); err != nil {
			return attempt, err
		}
	}
}
