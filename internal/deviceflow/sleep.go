package deviceflow

import (
	"context"
	"time"

	"k8s.io/utils/clock"
)

// SleepFunc suspends for d or until ctx is done, returning ctx.Err() in the latter case
type SleepFunc func(ctx context.Context, d time.Duration) error

// sleeper returns a SleepFunc backed by the timers of c.
// The context is checked before and after every wait.
func sleeper(c clock.Clock) SleepFunc {
	return func(ctx context.Context, d time.Duration) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if d <= 0 {
			return nil
		}
		timer := c.NewTimer(d)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C():
			return ctx.Err()
		}
	}
}
