// Package resilience provides the backoff policy used by transport
// adapters. Retry timing lives here so the orchestration loop itself
// stays free of sleeps and timers.
package resilience

import (
	"context"
	"math"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"
)

// Growth selects how the delay grows between attempts.
type Growth int

const (
	// GrowthLinear produces (attempt+1) * BaseDelay. This matches the
	// rate-limit handling contract for search transports.
	GrowthLinear Growth = iota
	// GrowthExponential produces BaseDelay * Multiplier^attempt.
	GrowthExponential
)

// BackoffPolicy controls retry behavior for a transport adapter.
type BackoffPolicy struct {
	// MaxAttempts is the total number of attempts including the first.
	// A value of 1 means no retries. Default: 3.
	MaxAttempts int

	// BaseDelay is the delay unit before the first retry. Default: 2s.
	BaseDelay time.Duration

	// Growth selects linear or exponential delay growth.
	Growth Growth

	// Multiplier scales exponential growth. Default: 2.0.
	Multiplier float64

	// MaxDelay caps any single sleep. Default: 30s.
	MaxDelay time.Duration

	// JitterFraction adds random jitter as a fraction of the computed
	// delay (0 = none). Default: 0.
	JitterFraction float64

	// ShouldRetry overrides the default transient-error check.
	// If nil, IsTransient is used.
	ShouldRetry func(err error) bool

	// OnRetry is called before each retry sleep.
	OnRetry func(attempt int, err error)
}

// RateLimitPolicy returns the policy used against rate-limited search
// transports: linear (attempt+1)*base delays, retrying only rate-limit
// and transient failures.
func RateLimitPolicy(maxAttempts int, base time.Duration) BackoffPolicy {
	return BackoffPolicy{
		MaxAttempts: maxAttempts,
		BaseDelay:   base,
		Growth:      GrowthLinear,
	}
}

// Do executes fn under the policy, retrying transient failures.
// Context cancellation stops retries immediately.
func Do(ctx context.Context, p BackoffPolicy, fn func(ctx context.Context) error) error {
	_, err := DoVal(ctx, p, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// DoVal executes fn returning a value under the policy. The zero value
// is returned alongside the last error when all attempts fail.
func DoVal[T any](ctx context.Context, p BackoffPolicy, fn func(ctx context.Context) (T, error)) (T, error) {
	p = p.withDefaults()

	shouldRetry := p.ShouldRetry
	if shouldRetry == nil {
		shouldRetry = IsTransient
	}

	var zero T
	var lastErr error
	for attempt := 0; attempt < p.MaxAttempts; attempt++ {
		val, err := fn(ctx)
		if err == nil {
			return val, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return zero, lastErr
		}
		if !shouldRetry(lastErr) {
			return zero, lastErr
		}
		if attempt >= p.MaxAttempts-1 {
			break
		}

		if p.OnRetry != nil {
			p.OnRetry(attempt+1, lastErr)
		}

		timer := time.NewTimer(p.delay(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, lastErr
		case <-timer.C:
		}
	}

	return zero, lastErr
}

func (p BackoffPolicy) withDefaults() BackoffPolicy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 3
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = 2 * time.Second
	}
	if p.Multiplier <= 0 {
		p.Multiplier = 2.0
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = 30 * time.Second
	}
	if p.JitterFraction < 0 {
		p.JitterFraction = 0
	}
	return p
}

// delay computes the sleep before retrying after the given zero-based
// attempt index.
func (p BackoffPolicy) delay(attempt int) time.Duration {
	var d float64
	switch p.Growth {
	case GrowthExponential:
		d = float64(p.BaseDelay) * math.Pow(p.Multiplier, float64(attempt))
	default:
		d = float64(p.BaseDelay) * float64(attempt+1)
	}
	if d > float64(p.MaxDelay) {
		d = float64(p.MaxDelay)
	}
	if p.JitterFraction > 0 {
		jitterRange := d * p.JitterFraction
		d += (rand.Float64()*2 - 1) * jitterRange
	}
	if d < 0 {
		d = 0
	}
	return time.Duration(d)
}

// RetryLogger returns an OnRetry callback that logs each retry attempt.
func RetryLogger(service, operation string) func(int, error) {
	return func(attempt int, err error) {
		zap.L().Warn("retrying operation",
			zap.String("service", service),
			zap.String("operation", operation),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
	}
}
