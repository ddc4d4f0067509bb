// Package retry provides bounded retry with exponential backoff and jitter
// for remote calls. Callers supply an explicit predicate separating
// retryable from terminal errors.
package retry

import (
	"context"
	"math"
	"math/rand/v2"
	"time"
)

// Default configuration values.
const (
	DefaultMaxAttempts    = 3
	DefaultInitialBackoff = 100 * time.Millisecond
	DefaultMaxBackoff     = 2 * time.Second
	DefaultMultiplier     = 2.0
	DefaultJitterFactor   = 0.25
)

// Config bounds a retry loop.
type Config struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int

	// InitialBackoff is the delay before the first retry.
	InitialBackoff time.Duration

	// MaxBackoff caps the growth of the backoff.
	MaxBackoff time.Duration

	// Multiplier is the backoff growth factor per attempt.
	Multiplier float64

	// JitterFactor randomizes each delay by ±factor to avoid thundering
	// herds. Clamped to [0, 1].
	JitterFactor float64
}

// DefaultConfig returns the default retry configuration.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:    DefaultMaxAttempts,
		InitialBackoff: DefaultInitialBackoff,
		MaxBackoff:     DefaultMaxBackoff,
		Multiplier:     DefaultMultiplier,
		JitterFactor:   DefaultJitterFactor,
	}
}

func (c Config) maxAttempts() int {
	if c.MaxAttempts <= 0 {
		return 1
	}
	return c.MaxAttempts
}

func (c Config) backoff(attempt int) time.Duration {
	initial := c.InitialBackoff
	if initial <= 0 {
		initial = DefaultInitialBackoff
	}
	multiplier := c.Multiplier
	if multiplier < 1 {
		multiplier = DefaultMultiplier
	}
	maxBackoff := c.MaxBackoff
	if maxBackoff <= 0 {
		maxBackoff = DefaultMaxBackoff
	}

	d := time.Duration(float64(initial) * math.Pow(multiplier, float64(attempt)))
	if d > maxBackoff {
		d = maxBackoff
	}

	jitter := c.JitterFactor
	if jitter < 0 {
		jitter = 0
	}
	if jitter > 1 {
		jitter = 1
	}
	if jitter > 0 {
		// Uniform in [d*(1-jitter), d*(1+jitter)].
		d = time.Duration(float64(d) * (1 - jitter + 2*jitter*rand.Float64()))
	}
	return d
}

// Do runs fn up to cfg.MaxAttempts times, sleeping with exponential backoff
// between attempts. Only errors for which shouldRetry returns true are
// retried; terminal errors and context cancellation return immediately. The
// last error is returned when attempts are exhausted.
func Do[T any](ctx context.Context, cfg Config, shouldRetry func(error) bool, fn func() (T, error)) (T, error) {
	var zero T
	var lastErr error

	for attempt := 0; attempt < cfg.maxAttempts(); attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return zero, ctx.Err()
			case <-time.After(cfg.backoff(attempt - 1)):
			}
		}

		result, err := fn()
		if err == nil {
			return result, nil
		}
		lastErr = err

		if shouldRetry != nil && !shouldRetry(err) {
			return zero, err
		}
	}

	return zero, lastErr
}
