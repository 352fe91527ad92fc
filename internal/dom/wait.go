package dom

import (
	"context"
	"time"
)

// Sleep waits for d or until ctx is done. It is the fixed settle delay the
// console forces on us wherever it renders no detectable marker.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Poll evaluates cond every interval until it reports true, it fails, or
// timeout elapses. cond always runs at least once. Timing out is reported as
// (false, nil).
func Poll(ctx context.Context, interval, timeout time.Duration, cond func(context.Context) (bool, error)) (bool, error) {
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	deadline := time.Now().Add(timeout)
	for {
		ok, err := cond(ctx)
		if err != nil || ok {
			return ok, err
		}
		if !time.Now().Before(deadline) {
			return false, nil
		}
		wait := interval
		if left := time.Until(deadline); left < wait {
			wait = left
		}
		if err := Sleep(ctx, wait); err != nil {
			return false, err
		}
	}
}
