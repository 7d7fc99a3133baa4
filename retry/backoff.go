package retry

import (
	"context"
	"fmt"
	"time"
)

const (
	// initialBackoff is the first delay applied after a retryable failure.
	// The shared backoff resets to it whenever a server wait hint is honored.
	initialBackoff = 3 * time.Second

	// maxBackoff is the ceiling for the doubling backoff.
	maxBackoff = time.Hour
)

// growBackoff doubles the delay up to the ceiling.
func growBackoff(d time.Duration) time.Duration {
	d += d
	if d > maxBackoff {
		return maxBackoff
	}
	return d
}

// sleep pauses for d or returns early when ctx is cancelled. The timer is
// released on both paths.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("wait interrupted: %w", ctx.Err())
	}
}
