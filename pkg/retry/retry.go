// Package retry runs an operation with bounded attempts and jittered
// exponential backoff between them.
package retry

import (
	"context"
	"math"
	"math/rand"
	"time"

	"go.uber.org/zap"
)

type Config struct {
	MaxAttempts    int
	InitialDelay   time.Duration
	MaxDelay       time.Duration
	Multiplier     float64
	JitterFraction float64
	// RetryIf decides whether a failure is worth another attempt.
	// Errors it rejects surface immediately. Nil retries everything.
	RetryIf func(error) bool
	Logger  *zap.Logger
}

func (c *Config) normalize() {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.InitialDelay <= 0 {
		c.InitialDelay = 100 * time.Millisecond
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = 10 * time.Second
	}
	if c.Multiplier <= 0 {
		c.Multiplier = 2.0
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
}

// Do runs operation until it succeeds, exhausts the attempt budget, or
// fails non-retryably. The last error is returned; context
// cancellation wins over everything.
func Do(ctx context.Context, cfg Config, operation func() error) error {
	cfg.normalize()

	var lastErr error
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := operation()
		if err == nil {
			if attempt > 1 {
				cfg.Logger.Info("Operation succeeded after retry",
					zap.Int("attempt", attempt),
				)
			}
			return nil
		}
		lastErr = err

		if cfg.RetryIf != nil && !cfg.RetryIf(err) {
			cfg.Logger.Debug("Error not retryable",
				zap.Error(err),
				zap.Int("attempt", attempt),
			)
			return err
		}
		if attempt == cfg.MaxAttempts {
			break
		}

		delay := cfg.backoff(attempt)
		cfg.Logger.Warn("Operation failed, retrying",
			zap.Error(err),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", cfg.MaxAttempts),
			zap.Duration("delay", delay),
		)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}

	return lastErr
}

// DoWithResult is Do for operations that produce a value.
func DoWithResult[T any](ctx context.Context, cfg Config, operation func() (T, error)) (T, error) {
	var result T
	err := Do(ctx, cfg, func() error {
		var err error
		result, err = operation()
		return err
	})
	return result, err
}

// backoff is the jittered delay after the given 1-based attempt.
func (c *Config) backoff(attempt int) time.Duration {
	d := float64(c.InitialDelay) * math.Pow(c.Multiplier, float64(attempt-1))
	d = math.Min(d, float64(c.MaxDelay))

	if c.JitterFraction > 0 {
		jitter := rand.Float64() * d * c.JitterFraction
		if rand.Intn(2) == 0 {
			jitter = -jitter
		}
		d += jitter
	}

	return time.Duration(d)
}
