// Package retry implements the bounded retry policy shared by the sync
// engine and the responder worker: capped exponential backoff, applied
// only to failures the caller classifies as transient.
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

type Policy struct {
	MaxAttempts int           // total attempts, including the first
	Base        time.Duration // first backoff delay
	Cap         time.Duration // backoff ceiling
}

func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		Base:        1 * time.Second,
		Cap:         30 * time.Second,
	}
}

// Do runs op, re-attempting on failures for which retryable returns true.
// Non-retryable failures are surfaced immediately. The context cancels
// both the in-flight op and the backoff sleep.
func (p Policy) Do(ctx context.Context, op func(ctx context.Context) error, retryable func(error) bool) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.Base
	b.MaxInterval = p.Cap
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0

	wrapped := func() error {
		err := op(ctx)
		if err == nil {
			return nil
		}
		if !retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	return backoff.Retry(wrapped,
		backoff.WithContext(backoff.WithMaxRetries(b, uint64(attempts-1)), ctx))
}
