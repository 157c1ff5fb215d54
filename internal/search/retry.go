package search

import (
	"context"
	"fmt"
	"time"
)

// retryPolicy bounds repeated search attempts. Backoff grows linearly with
// the attempt number.
type retryPolicy struct {
	maxAttempts int
	baseDelay   time.Duration
}

// delay returns the wait before the attempt following `attempt` (1-based).
func (p retryPolicy) delay(attempt int) time.Duration {
	return time.Duration(attempt) * p.baseDelay
}

// sleeper suspends for d or until ctx ends. Injected so tests run on a fake
// clock.
type sleeper func(ctx context.Context, d time.Duration) error

func realSleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("sleep interrupted: %w", ctx.Err())
	}
}
