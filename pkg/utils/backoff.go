package utils

import (
	"context"
	"fmt"
	"math"
	"time"
)

// BackoffStrategy represents a polling backoff strategy
type BackoffStrategy interface {
	// NextDelay returns the delay for the given attempt number (0-indexed)
	NextDelay(attempt int) time.Duration
}

// ExponentialBackoff implements an exponential backoff strategy
type ExponentialBackoff struct {
	BaseDelay  time.Duration
	Multiplier float64
	MaxDelay   time.Duration
	Jitter     bool
}

// NewExponentialBackoff creates a new exponential backoff strategy
func NewExponentialBackoff(baseDelay, maxDelay time.Duration, multiplier float64, jitter bool) *ExponentialBackoff {
	if multiplier <= 0 {
		multiplier = 2.0
	}
	return &ExponentialBackoff{
		BaseDelay:  baseDelay,
		Multiplier: multiplier,
		MaxDelay:   maxDelay,
		Jitter:     jitter,
	}
}

// NextDelay returns the exponentially increasing delay
func (eb *ExponentialBackoff) NextDelay(attempt int) time.Duration {
	delay := float64(eb.BaseDelay) * math.Pow(eb.Multiplier, float64(attempt))

	if delay > float64(eb.MaxDelay) {
		delay = float64(eb.MaxDelay)
	}

	if eb.Jitter {
		// Add jitter: random value between 0.5*delay and 1.5*delay
		jitterFactor := 0.5 + Float64()
		delay *= jitterFactor
	}

	return time.Duration(delay)
}

// PollUntil calls check until it reports done, sleeping between attempts according
// to backoff. It gives up after maxAttempts and returns the last check error.
func PollUntil(ctx context.Context, clock Clock, backoff BackoffStrategy, maxAttempts int, check func() (bool, error)) error {
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		done, err := check()
		if done {
			return nil
		}
		lastErr = err
		if attempt == maxAttempts-1 {
			break
		}
		if err := clock.Sleep(ctx, backoff.NextDelay(attempt)); err != nil {
			return err
		}
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("condition not met")
	}
	return fmt.Errorf("gave up after %d attempts: %w", maxAttempts, lastErr)
}
