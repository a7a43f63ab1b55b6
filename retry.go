package catmig

import (
	"context"
	"errors"
	log "log/slog"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"
)

// Retry executes task with Fibonacci backoff starting at baseDelay, up to maxRetries.
// If retries are exhausted, gaveUpTask is invoked (when not nil) and the final error is returned.
func Retry(ctx context.Context, maxRetries int, baseDelay time.Duration, task func(ctx context.Context) error, gaveUpTask func(ctx context.Context)) error {
	if maxRetries <= 0 {
		maxRetries = 5
	}
	if baseDelay <= 0 {
		baseDelay = 1 * time.Second
	}
	b := retry.NewFibonacci(baseDelay)
	if err := retry.Do(ctx, retry.WithMaxRetries(uint64(maxRetries), b), task); err != nil {
		log.Warn(err.Error() + ", gave up")
		if gaveUpTask != nil {
			gaveUpTask(ctx)
		}
		return err
	}
	return nil
}

// ShouldRetry reports whether the error is retryable (non-nil and not a known permanent failure).
func ShouldRetry(err error) bool {
	if err == nil {
		return false
	}
	// Context cancellations/timeouts are permanent from the caller's POV.
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	switch CodeOf(err) {
	case ConfigurationError, ReferenceMissing, SourceDataMalformed, TargetWriteConflict:
		return false
	case TransientStoreError, CoordinationUnavailable:
		return true
	}
	// Last-resort heuristics for driver-level transient failures.
	msg := err.Error()
	if strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "timeout") ||
		strings.Contains(msg, "too many connections") {
		return true
	}
	return false
}
