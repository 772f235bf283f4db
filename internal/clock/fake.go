package clock

import (
	"sort"
	"sync"
	"time"
)

// FakeClock is a manually-driven Clock for tests. Nothing fires on its
// own; call Advance to move time forward and run any callbacks whose
// deadline has passed, in deadline order.
type FakeClock struct {
	mu      sync.Mutex
	now     time.Duration
	pending []*fakeTimer
	seq     int
}

// NewFakeClock returns a FakeClock starting at time zero.
func NewFakeClock() *FakeClock {
	return &FakeClock{}
}

type fakeTimer struct {
	deadline time.Duration
	f        func()
	active   bool
	seq      int
}

func (t *fakeTimer) Stop() bool {
	wasActive := t.active
	t.active = false
	return wasActive
}

// AfterFunc schedules f to run once the clock has advanced by at least d.
func (c *FakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.seq++
	t := &fakeTimer{
		deadline: c.now + d,
		f:        f,
		active:   true,
		seq:      c.seq,
	}
	c.pending = append(c.pending, t)
	return &fakeClockTimer{clock: c, t: t}
}

// fakeClockTimer wraps fakeTimer so Reset can reschedule it, putting it
// back on the clock's pending list if it has already fired, while keeping
// Timer's interface contract.
type fakeClockTimer struct {
	clock *FakeClock
	t     *fakeTimer
}

func (t *fakeClockTimer) Stop() bool {
	return t.t.Stop()
}

func (t *fakeClockTimer) Reset(d time.Duration) bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	wasActive := t.t.active
	t.t.active = true
	t.t.deadline = t.clock.now + d
	for _, p := range t.clock.pending {
		if p == t.t {
			return wasActive
		}
	}
	t.clock.pending = append(t.clock.pending, t.t)
	return wasActive
}

// Advance moves the clock forward by d, running (synchronously, in
// deadline order) every active timer whose deadline has been reached.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now += d
	deadline := c.now

	var due []*fakeTimer
	var remaining []*fakeTimer
	for _, t := range c.pending {
		if t.active && t.deadline <= deadline {
			due = append(due, t)
		} else {
			remaining = append(remaining, t)
		}
	}
	c.pending = remaining
	c.mu.Unlock()

	sort.Slice(due, func(i, j int) bool {
		if due[i].deadline != due[j].deadline {
			return due[i].deadline < due[j].deadline
		}
		return due[i].seq < due[j].seq
	})

	for _, t := range due {
		if t.active {
			t.active = false
			t.f()
		}
	}
}

// Now returns the clock's current virtual time.
func (c *FakeClock) Now() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}
