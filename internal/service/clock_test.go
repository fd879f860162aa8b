package service

import (
	"sync"
	"time"
)

// fakeClock is a synthetic clock for scheduler tests: time moves only
// through Advance, and timers fire synchronously in deadline order.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

type fakeTimer struct {
	clk      *fakeClock
	deadline time.Time
	fn       func()
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clk: c, deadline: c.now.Add(d), fn: f}
	c.timers = append(c.timers, t)
	return t
}

func (t *fakeTimer) Stop() bool {
	t.clk.mu.Lock()
	defer t.clk.mu.Unlock()
	for i, pending := range t.clk.timers {
		if pending == t {
			t.clk.timers = append(t.clk.timers[:i], t.clk.timers[i+1:]...)
			return true
		}
	}
	return false
}

// Advance moves time forward, firing due timers one at a time in
// deadline order. Callbacks run without the clock lock held, so they may
// arm new timers; a timer armed inside the window fires in the same
// Advance call.
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)
	for {
		var next *fakeTimer
		idx := -1
		for i, t := range c.timers {
			if t.deadline.After(target) {
				continue
			}
			if next == nil || t.deadline.Before(next.deadline) {
				next = t
				idx = i
			}
		}
		if next == nil {
			break
		}
		c.timers = append(c.timers[:idx], c.timers[idx+1:]...)
		c.now = next.deadline
		c.mu.Unlock()
		next.fn()
		c.mu.Lock()
	}
	c.now = target
	c.mu.Unlock()
}

// PendingCount reports how many timers are armed.
func (c *fakeClock) PendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.timers)
}

// deferredClock mirrors time.AfterFunc semantics more closely than
// fakeClock: expiring a timer hands its callback back to the test instead
// of running it, and Stop on an expired timer reports false. That lets a
// test interleave work between a timer's expiry and its callback running,
// the window where a real fired callback races the lock.
type deferredClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*deferredTimer
}

type deferredTimer struct {
	clk      *deferredClock
	deadline time.Time
	fn       func()
	expired  bool
	stopped  bool
}

func newDeferredClock() *deferredClock {
	return &deferredClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *deferredClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *deferredClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &deferredTimer{clk: c, deadline: c.now.Add(d), fn: f}
	c.timers = append(c.timers, t)
	return t
}

func (t *deferredTimer) Stop() bool {
	t.clk.mu.Lock()
	defer t.clk.mu.Unlock()
	if t.expired || t.stopped {
		return false
	}
	t.stopped = true
	return true
}

// ExpireNext advances to the earliest armed timer's deadline and marks it
// expired, returning its callback for the caller to invoke whenever it
// chooses. Returns nil when nothing is armed.
func (c *deferredClock) ExpireNext() func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	var next *deferredTimer
	for _, t := range c.timers {
		if t.expired || t.stopped {
			continue
		}
		if next == nil || t.deadline.Before(next.deadline) {
			next = t
		}
	}
	if next == nil {
		return nil
	}
	next.expired = true
	c.now = next.deadline
	return next.fn
}

// Armed reports how many timers are live: neither stopped nor expired.
func (c *deferredClock) Armed() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.timers {
		if !t.expired && !t.stopped {
			n++
		}
	}
	return n
}
