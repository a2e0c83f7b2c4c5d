package utils

import (
	"context"
	"time"
)

var sleep = time.Sleep

// WaitFor sleeps for d or until ctx is done, whichever comes first.
func WaitFor(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		sleep(d)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}

// Backoff doubles base for every attempt after the first and caps it at limit.
func Backoff(attempt int, base, limit time.Duration) time.Duration {
	if attempt <= 1 || base <= 0 {
		return max(base, 0)
	}

	d := base
	for i := 1; i < attempt; i++ {
		d *= 2
		if limit > 0 && d >= limit {
			return limit
		}
	}
	return d
}
