package stream

import (
	"context"
	"math"
	"time"
)

// ReconnectWait returns the delay before reconnect attempt n:
// jitter * min(maxWait, 2^n - 1) + 1 seconds, with jitter in [0, 1).
func ReconnectWait(attempts int, maxWait time.Duration, jitter float64) time.Duration {
	expo := math.Pow(2, float64(attempts)) - 1
	ceiling := math.Min(maxWait.Seconds(), expo)
	return time.Duration((jitter*ceiling + 1) * float64(time.Second))
}

// sleepCtx waits for d or until ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
