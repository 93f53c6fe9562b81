package retry

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/spawn-mcp/tripsynth/pkg/errors"
)

// Strategy defines retry strategy interface
type Strategy interface {
	NextDelay(attempt int) time.Duration
	ShouldRetry(attempt int, err error) bool
}

// Config defines retry configuration
type Config struct {
	MaxAttempts int
	Strategy    Strategy
	Jitter      float64
	OnRetry     func(attempt int, err error)
}

// ExponentialBackoff implements exponential backoff strategy
type ExponentialBackoff struct {
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

// NextDelay calculates next delay for exponential backoff
func (e *ExponentialBackoff) NextDelay(attempt int) time.Duration {
	delay := float64(e.InitialDelay) * math.Pow(e.Multiplier, float64(attempt))
	if delay > float64(e.MaxDelay) {
		return e.MaxDelay
	}
	return time.Duration(delay)
}

// ShouldRetry defers to the error's own retry classification
func (e *ExponentialBackoff) ShouldRetry(attempt int, err error) bool {
	return errors.IsRetryable(err)
}

// LinearBackoff implements constant-delay retries
type LinearBackoff struct {
	Delay       time.Duration
	MaxAttempts int
}

// NextDelay returns constant delay for linear backoff
func (l *LinearBackoff) NextDelay(attempt int) time.Duration {
	return l.Delay
}

// ShouldRetry determines if retry should continue
func (l *LinearBackoff) ShouldRetry(attempt int, err error) bool {
	if l.MaxAttempts > 0 && attempt+1 >= l.MaxAttempts {
		return false
	}
	return errors.IsRetryable(err)
}

// ExecuteWithRetry executes operation with retry logic
func ExecuteWithRetry[T any](
	ctx context.Context,
	operation func(context.Context) (T, error),
	config Config,
) (T, error) {
	var zero T
	var lastErr error

	attempts := config.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	for attempt := 0; attempt < attempts; attempt++ {
		result, err := operation(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		// Last attempt or non-retryable error
		if attempt == attempts-1 || config.Strategy == nil || !config.Strategy.ShouldRetry(attempt, err) {
			return zero, err
		}

		delay := config.Strategy.NextDelay(attempt)
		if config.Jitter > 0 {
			delay = applyJitter(delay, config.Jitter)
		}

		if config.OnRetry != nil {
			config.OnRetry(attempt, err)
		}

		// Wait with context cancellation check
		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return zero, fmt.Errorf("retry cancelled: %w", ctx.Err())
		}
	}

	return zero, lastErr
}

// Do is ExecuteWithRetry for operations without a result
func Do(ctx context.Context, operation func(context.Context) error, config Config) error {
	_, err := ExecuteWithRetry(ctx, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, operation(ctx)
	}, config)
	return err
}

// applyJitter adds random jitter to delay
func applyJitter(delay time.Duration, jitterFactor float64) time.Duration {
	jitter := float64(delay) * jitterFactor
	randomJitter := (rand.Float64() - 0.5) * 2 * jitter
	finalDelay := float64(delay) + randomJitter

	if finalDelay < 0 {
		return 0
	}

	return time.Duration(finalDelay)
}

// DefaultConfigs provides pre-configured retry configurations
var DefaultConfigs = struct {
	Fast     Config
	Standard Config
}{
	Fast: Config{
		MaxAttempts: 3,
		Strategy: &LinearBackoff{
			Delay:       100 * time.Millisecond,
			MaxAttempts: 3,
		},
		Jitter: 0.1,
	},
	Standard: Config{
		MaxAttempts: 5,
		Strategy: &ExponentialBackoff{
			InitialDelay: 100 * time.Millisecond,
			MaxDelay:     10 * time.Second,
			Multiplier:   2,
		},
		Jitter: 0.2,
	},
}
