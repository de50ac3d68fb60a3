// Package poll holds the clock shared by the sleep-capture-test loops.
//
// Every wait in tmx is a bounded poll: there is no completion signal from the
// multiplexer, so callers sleep between captures and give up at a deadline.
// Injecting the clock keeps those loops testable without real waiting.
package poll

import (
	"context"
	"time"
)

// Clock supplies the current time and an interruptible sleep.
type Clock interface {
	Now() time.Time
	// Sleep pauses for d or until ctx is done, whichever comes first.
	// It returns ctx.Err() when interrupted.
	Sleep(ctx context.Context, d time.Duration) error
}

// System is the wall clock.
type System struct{}

// Now returns time.Now().
func (System) Now() time.Time {
	return time.Now()
}

// Sleep waits on a timer, returning early if ctx is cancelled.
func (System) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// OrSystem returns c, or System when c is nil.
func OrSystem(c Clock) Clock {
	if c == nil {
		return System{}
	}
	return c
}
