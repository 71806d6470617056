// Package retry bounds retryable operations with exponential backoff and
// jitter, gated on the error taxonomy's recoverable flag (spec.md §4.7, §7).
package retry

import (
	"context"
	"math"
	"math/rand/v2"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/nullbridge/testforge/internal/errs"
)

const (
	baseInterval = 1 * time.Second
	maxInterval  = 60 * time.Second
)

// Policy bounds how many attempts an operation gets.
type Policy struct {
	MaxAttempts int // total attempts including the first; <1 behaves as 1
}

// Do runs fn up to policy.MaxAttempts times. Between attempts it backs off
// for base*2^(attempt-1) capped at 60s, scaled by a multiplicative jitter
// factor in [0.5, 1.0). It stops early, without retrying, when fn's error
// is classified non-recoverable (errs.IsRecoverable).
func Do(ctx context.Context, policy Policy, fn func(ctx context.Context) error) error {
	attempts := policy.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	operation := func() (struct{}, error) {
		err := fn(ctx)
		if err == nil {
			return struct{}{}, nil
		}
		if !errs.IsRecoverable(err) {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	}

	_, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(&jitteredBackOff{}),
		backoff.WithMaxTries(uint(attempts)),
	)
	return err
}

// jitteredBackOff implements backoff.BackOff with the base*2^(n-1), cap-60s,
// [0.5,1.0)-multiplicative-jitter schedule spec.md §7 calls for, which the
// library's own RandomizationFactor (a symmetric +/- spread) does not
// express directly.
type jitteredBackOff struct {
	attempt int
}

func (j *jitteredBackOff) NextBackOff() (time.Duration, error) {
	j.attempt++
	interval := float64(baseInterval) * math.Pow(2, float64(j.attempt-1))
	if interval > float64(maxInterval) {
		interval = float64(maxInterval)
	}
	jitter := 0.5 + rand.Float64()*0.5
	return time.Duration(interval * jitter), nil
}

func (j *jitteredBackOff) Reset() {
	j.attempt = 0
}
