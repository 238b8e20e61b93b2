// Package wait provides a bounded "block until condition or budget spent"
// primitive.
package wait

import (
	"context"
	"time"
)

// Until sleeps in increments of interval, checking cond after each one, for
// at most attempts increments. It returns true as soon as cond holds and
// false once the budget is spent or ctx is done. cond is not checked before
// the first increment.
func Until(ctx context.Context, interval time.Duration, attempts int, cond func() bool) bool {
	if attempts <= 0 {
		return false
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for i := 0; i < attempts; i++ {
		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
		}
		if cond() {
			return true
		}
	}
	return false
}

// Sleep blocks for d or until ctx is done. It reports whether the full
// duration elapsed.
func Sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
