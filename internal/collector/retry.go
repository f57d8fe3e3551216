package collector

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryPolicy retries transient failures with exponential backoff. One
// policy value is shared by every collector implementation; permanent
// errors stop immediately.
type RetryPolicy struct {
	MaxAttempts    int           // total attempts, including the first
	BaseDelay      time.Duration // initial delay, doubling per attempt
	RateLimitDelay time.Duration // extra pause after an HTTP 429
}

// DefaultRetryPolicy matches the provider retry settings of the collectors:
// 3 attempts, 1s base delay, 10s rate-limit pause.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, BaseDelay: time.Second, RateLimitDelay: 10 * time.Second}
}

// WithAttempts returns a copy of the policy with a different attempt bound.
func (p RetryPolicy) WithAttempts(n int) RetryPolicy {
	if n > 0 {
		p.MaxAttempts = n
	}
	return p
}

// Do runs op, retrying transient CollectionErrors until the attempt bound is
// reached or ctx is cancelled.
func (p RetryPolicy) Do(ctx context.Context, op func() error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.BaseDelay
	b.Multiplier = 2
	b.MaxElapsedTime = 0 // bounded by attempts, not wall time

	wrapped := func() error {
		err := op()
		if err == nil {
			return nil
		}
		if IsPermanent(err) {
			return backoff.Permanent(err)
		}
		if IsRateLimit(err) && p.RateLimitDelay > 0 {
			select {
			case <-time.After(p.RateLimitDelay):
			case <-ctx.Done():
				return backoff.Permanent(ctx.Err())
			}
		}
		return err
	}

	return backoff.Retry(wrapped, backoff.WithMaxRetries(backoff.WithContext(b, ctx), uint64(attempts-1)))
}
