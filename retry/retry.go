// Package retry runs remote calls with exponential backoff on transient failures.
package retry

import (
	"context"
	"time"

	"github.com/kent-id/athenaq/clock"
	"github.com/kent-id/athenaq/logging"
	"github.com/kent-id/athenaq/metrics"
)

const (
	defaultMaxAttempts = 3
	defaultBaseDelay   = 1 * time.Second
)

// Policy computes backoff delays. No jitter is added.
type Policy struct {
	// MaxAttempts is the total number of attempts, including the first one.
	MaxAttempts int
	BaseDelay   time.Duration
}

// DefaultPolicy returns 3 attempts with a 1s base delay.
func DefaultPolicy() Policy {
	return Policy{MaxAttempts: defaultMaxAttempts, BaseDelay: defaultBaseDelay}
}

// NextDelay returns BaseDelay * 2^attempt for a zero-indexed attempt.
func (p Policy) NextDelay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	return p.BaseDelay * time.Duration(int64(1)<<uint(attempt))
}

// ShouldRetry reports whether another attempt may follow the zero-indexed attempt that just failed.
func (p Policy) ShouldRetry(attempt int) bool {
	return attempt+1 < p.attempts()
}

func (p Policy) attempts() int {
	if p.MaxAttempts <= 0 {
		return 1
	}
	return p.MaxAttempts
}

// Retrier bundles a Policy with the classifier and sleeper it runs with.
type Retrier struct {
	Policy   Policy
	Classify Classifier
	Sleep    clock.Sleeper
}

// NewRetrier creates a Retrier using Classify and a real, context-aware sleep.
func NewRetrier(p Policy) *Retrier {
	return &Retrier{
		Policy:   p,
		Classify: Classify,
		Sleep:    clock.Sleep,
	}
}

// Do runs fn until it succeeds, fails permanently, or attempts run out. The error returned
// after a failed attempt is the one fn produced, unchanged. If ctx ends during a backoff
// sleep, ctx.Err() is returned.
func Do[T any](ctx context.Context, r *Retrier, op string, fn func(context.Context) (T, error)) (T, error) {
	classify := r.Classify
	if classify == nil {
		classify = Classify
	}
	sleep := r.Sleep
	if sleep == nil {
		sleep = clock.Sleep
	}

	var zero T
	for attempt := 0; ; attempt++ {
		metrics.RemoteCalls.WithLabelValues(op).Inc()
		v, err := fn(ctx)
		if err == nil {
			return v, nil
		}

		if classify(err) == Permanent {
			return zero, err
		}
		if !r.Policy.ShouldRetry(attempt) {
			logging.Logger().Warn().Str("op", op).Int("attempts", attempt+1).Err(err).Msg("retries exhausted")
			return zero, err
		}

		delay := r.Policy.NextDelay(attempt)
		logging.Logger().Warn().
			Str("op", op).
			Int("attempt", attempt+1).
			Int("max_attempts", r.Policy.attempts()).
			Dur("backoff", delay).
			Err(err).
			Msg("transient error, retrying")
		metrics.RemoteRetries.WithLabelValues(op).Inc()

		if sleepErr := sleep(ctx, delay); sleepErr != nil {
			return zero, sleepErr
		}
	}
}
