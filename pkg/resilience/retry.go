package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"time"
)

// Backoff is an exponential delay schedule with symmetric jitter. Zero fields
// take defaults.
type Backoff struct {
	InitialDelay   time.Duration
	MaxDelay       time.Duration
	Multiplier     float64
	JitterFraction float64
}

func (b Backoff) withDefaults() Backoff {
	if b.InitialDelay <= 0 {
		b.InitialDelay = 100 * time.Millisecond
	}
	if b.MaxDelay <= 0 {
		b.MaxDelay = 10 * time.Second
	}
	if b.Multiplier <= 0 {
		b.Multiplier = 2
	}
	if b.JitterFraction <= 0 {
		b.JitterFraction = 0.1
	}
	return b
}

// Delay returns the wait before retry number attempt, counting from 1. The
// result never exceeds MaxDelay.
func (b Backoff) Delay(attempt int) time.Duration {
	b = b.withDefaults()
	if attempt < 1 {
		attempt = 1
	}
	d := float64(b.InitialDelay) * math.Pow(b.Multiplier, float64(attempt-1))
	d += d * b.JitterFraction * (2*rand.Float64() - 1)
	d = min(d, float64(b.MaxDelay))
	if d <= 0 {
		return b.InitialDelay
	}
	return time.Duration(d)
}

// RetryConfig bounds a Retry call. MaxAttempts defaults to 3; the delay
// fields follow Backoff.
type RetryConfig struct {
	MaxAttempts    int
	InitialDelay   time.Duration
	MaxDelay       time.Duration
	Multiplier     float64
	JitterFraction float64
}

func (c RetryConfig) backoff() Backoff {
	return Backoff{
		InitialDelay:   c.InitialDelay,
		MaxDelay:       c.MaxDelay,
		Multiplier:     c.Multiplier,
		JitterFraction: c.JitterFraction,
	}
}

type permanentError struct{ err error }

func (p *permanentError) Error() string { return p.err.Error() }

func (p *permanentError) Unwrap() error { return p.err }

// Permanent marks err as not worth retrying. Retry returns it unwrapped.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// Retry calls fn until it succeeds, returns a Permanent error, the attempts
// run out or ctx is done.
func Retry(ctx context.Context, name string, cfg RetryConfig, fn func() error) error {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	backoff := cfg.backoff()
	logger := slog.Default().With("component", "retry", "operation", name)
	var err error
	for attempt := 1; ; attempt++ {
		if err = fn(); err == nil {
			if attempt > 1 {
				logger.Info("succeeded after retry", "attempt", attempt)
			}
			return nil
		}
		var perm *permanentError
		if errors.As(err, &perm) {
			return perm.err
		}
		if attempt >= cfg.MaxAttempts {
			return fmt.Errorf("all %d attempts failed for %s: %w", cfg.MaxAttempts, name, err)
		}
		delay := backoff.Delay(attempt)
		logger.Warn("operation failed, retrying",
			"attempt", attempt,
			"max_attempts", cfg.MaxAttempts,
			"next_delay", delay,
			"error", err,
		)
		if err := Sleep(ctx, delay); err != nil {
			return fmt.Errorf("retry %s aborted: %w", name, err)
		}
	}
}

// Sleep waits for d or until ctx is done, whichever comes first.
func Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
