package common

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/pulseboard/surveykpi/internal/service"
)

// sleepFn pauses between attempts. Overridden in tests.
var sleepFn = sleepContext

func sleepContext(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

// WithRetry executes an operation, retrying with exponential backoff while it
// keeps hitting upstream rate limits. Any other error is returned immediately
// without consuming a retry slot. When every attempt is rate limited, the
// returned error wraps ErrRateLimitExhausted.
func WithRetry(ctx context.Context, operation func() error, opts service.RetryOptions) error {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 3
	}
	if opts.InitialDelay <= 0 {
		opts.InitialDelay = 2 * time.Second
	}
	if opts.MaxDelay <= 0 {
		opts.MaxDelay = 30 * time.Second
	}
	if opts.Multiplier <= 0 {
		opts.Multiplier = 2.0
	}

	delay := opts.InitialDelay

	for attempt := 1; ; attempt++ {
		err := operation()
		if err == nil {
			return nil
		}

		if !IsRateLimit(err) {
			return err
		}

		if attempt == opts.MaxAttempts {
			return fmt.Errorf("%w after %d attempts: %v", ErrRateLimitExhausted, opts.MaxAttempts, err)
		}

		slog.Warn("Rate limited, retrying",
			"attempt", attempt,
			"max_attempts", opts.MaxAttempts,
			"wait", delay,
			"error", err)

		if sleepErr := sleepFn(ctx, delay); sleepErr != nil {
			return sleepErr
		}

		delay = time.Duration(float64(delay) * opts.Multiplier)
		if delay > opts.MaxDelay {
			delay = opts.MaxDelay
		}
	}
}
