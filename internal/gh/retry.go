package gh

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/h0rv/ghp-dashboard/internal/apperr"
)

// RetryPolicy retries retryable errors with exponential backoff and jitter.
// Rate limit errors are never retried here; callers wait them out instead.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration // Delay before the second attempt, doubled for each one after
	MaxJitter   time.Duration // Upper bound (exclusive) of random delay added to each wait

	// Sleep and Jitter are replaceable for tests.
	Sleep  func(ctx context.Context, d time.Duration) error
	Jitter func(limit time.Duration) time.Duration
}

// DefaultRetryPolicy makes 3 attempts waiting 1s then 2s, each plus up to 1s of jitter.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   time.Second,
		MaxJitter:   time.Second,
		Sleep:       sleepContext,
		Jitter:      randomJitter,
	}
}

// Delay returns the wait after the given zero-based failed attempt.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	d := p.BaseDelay << attempt
	if p.Jitter != nil && p.MaxJitter > 0 {
		d += p.Jitter(p.MaxJitter)
	}
	return d
}

// Do calls fn until it succeeds, returns a non-retryable or rate limit error,
// or attempts run out. The returned error is always an *apperr.Error.
func (p RetryPolicy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	attempts := max(p.MaxAttempts, 1)
	sleep := p.Sleep
	if sleep == nil {
		sleep = sleepContext
	}

	var last *apperr.Error
	for attempt := 0; attempt < attempts; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		last = apperr.Classify(err)
		if !last.Retryable || last.Kind == apperr.KindRateLimit || attempt == attempts-1 {
			return last
		}
		if err := sleep(ctx, p.Delay(attempt)); err != nil {
			return apperr.Classify(err)
		}
	}
	return last
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func randomJitter(limit time.Duration) time.Duration {
	return rand.N(limit)
}
