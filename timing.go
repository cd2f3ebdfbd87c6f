package shelf

import (
	"context"
	"math/rand/v2"
	"time"
)

// FailureDelay inserts a uniformly random pause before a sign-in failure is
// returned, so response latency does not reveal which failure branch was
// taken. The wait is a timer-backed suspend, never a busy loop, and it does
// not block other concurrent requests.
type FailureDelay struct {
	Min time.Duration
	Max time.Duration
}

// DefaultFailureDelay is the window applied to every login failure path.
func DefaultFailureDelay() FailureDelay {
	return FailureDelay{Min: 100 * time.Millisecond, Max: 300 * time.Millisecond}
}

// Wait suspends for a random duration inside the window, or until the
// context is done, whichever comes first.
func (d FailureDelay) Wait(ctx context.Context) {
	if d.Max < d.Min {
		d.Min, d.Max = d.Max, d.Min
	}

	wait := d.Min
	if span := d.Max - d.Min; span > 0 {
		wait += time.Duration(rand.Int64N(int64(span)))
	}

	if wait <= 0 {
		return
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}
