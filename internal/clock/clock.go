// Package clock provides the scheduler abstraction injected into a
// Connection, replacing bare calls to the reactor/timer machinery with an
// explicit capability. This is the concrete form of Design Notes' "reactor
// as shared mutable global" redesign: the core schedules and cancels
// timers through this narrow interface instead of touching process-wide
// timer state directly.
package clock

import "time"

// Timer is a handle to a scheduled callback.
type Timer interface {
	// Stop prevents the timer from firing, if it hasn't already. It
	// reports whether the stop was effective.
	Stop() bool
	// Reset reschedules the timer to fire after d, as if newly created.
	Reset(d time.Duration) bool
}

// Clock schedules delayed callbacks. RealClock is the production
// implementation; FakeClock (test-only) drives callbacks manually so
// retransmission and bare-ACK timing can be tested without sleeping in
// wall-clock time.
type Clock interface {
	AfterFunc(d time.Duration, f func()) Timer
}

// RealClock schedules callbacks on the Go runtime's timer wheel, exactly
// the mechanism the teacher's Connection used directly via time.AfterFunc.
type RealClock struct{}

// NewRealClock returns a Clock backed by the standard library timer.
func NewRealClock() RealClock {
	return RealClock{}
}

// AfterFunc schedules f to run after d and returns its timer handle.
func (RealClock) AfterFunc(d time.Duration, f func()) Timer {
	return realTimer{t: time.AfterFunc(d, f)}
}

type realTimer struct {
	t *time.Timer
}

func (r realTimer) Stop() bool               { return r.t.Stop() }
func (r realTimer) Reset(d time.Duration) bool { return r.t.Reset(d) }
