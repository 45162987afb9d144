package aigen

import (
	"context"
	"errors"
	"time"

	"github.com/starpath-app/starpath/internal/domain"
)

// RetryPolicy bounds retries of transient failures.
type RetryPolicy struct {
	Attempts  int           // total tries, including the first
	BaseDelay time.Duration // doubles each retry
	MaxDelay  time.Duration // cap on one wait
}

// DefaultRetryPolicy is 3 attempts, 1s doubling, capped at 30s.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{Attempts: 3, BaseDelay: time.Second, MaxDelay: 30 * time.Second}
}

// Delay returns the wait before retry number n (1-based).
func (p RetryPolicy) Delay(n int) time.Duration {
	delay := p.BaseDelay
	for i := 1; i < n; i++ {
		delay *= 2
		if delay > p.MaxDelay {
			return p.MaxDelay
		}
	}
	if delay > p.MaxDelay {
		return p.MaxDelay
	}
	return delay
}

// IsTransient reports whether err is worth retrying.
func IsTransient(err error) bool {
	return errors.Is(err, domain.ErrTransient) || errors.Is(err, domain.ErrRateLimited)
}

// Retry runs fn until it succeeds, fails with a non-transient error, or the
// attempts run out. The last error is returned unchanged.
func Retry(ctx context.Context, p RetryPolicy, fn func(ctx context.Context) error) error {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for n := 1; ; n++ {
		if err = fn(ctx); err == nil || !IsTransient(err) || n >= attempts {
			return err
		}
		timer := time.NewTimer(p.Delay(n))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
