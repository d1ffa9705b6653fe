// Package clock abstracts timers so the poll loop can be driven
// deterministically in tests. Use RealClock in production and MockClock in
// tests.
package clock

import (
	"sort"
	"sync"
	"time"
)

// Clock is the subset of the time package the poller needs
type Clock interface {
	// Now returns the current time
	Now() time.Time

	// AfterFunc waits for the duration to elapse and then calls f.
	// The returned Timer cancels the call.
	AfterFunc(d time.Duration, f func()) Timer

	// Since returns the time elapsed since t
	Since(t time.Time) time.Duration
}

// Timer represents a single scheduled call
type Timer interface {
	// Stop prevents the Timer from firing. Returns true if the call stops the timer,
	// false if the timer has already expired or been stopped.
	Stop() bool
}

// RealClock implements Clock using the standard time package
type RealClock struct{}

// NewRealClock creates a new RealClock instance
func NewRealClock() *RealClock {
	return &RealClock{}
}

// Now returns the current time
func (c *RealClock) Now() time.Time {
	return time.Now()
}

// AfterFunc calls f in its own goroutine after d
func (c *RealClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// Since returns the time elapsed since t
func (c *RealClock) Since(t time.Time) time.Duration {
	return time.Since(t)
}

// MockClock only moves when Advance is called. Expired timers run
// synchronously inside Advance, in deadline order.
type MockClock struct {
	mu      sync.Mutex
	current time.Time
	timers  []*mockTimer
}

type mockTimer struct {
	deadline time.Time
	f        func()
	stopped  bool
	mu       sync.Mutex
}

// NewMockClock creates a new MockClock starting at the given time
func NewMockClock(start time.Time) *MockClock {
	return &MockClock{current: start}
}

// Now returns the mock current time
func (c *MockClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// AfterFunc schedules f to be called once the clock reaches now+d
func (c *MockClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()

	timer := &mockTimer{deadline: c.current.Add(d), f: f}
	c.timers = append(c.timers, timer)
	return timer
}

// Since returns the time elapsed since t using the mock current time
func (c *MockClock) Since(t time.Time) time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current.Sub(t)
}

// Pending returns the number of timers that have not fired or been stopped
func (c *MockClock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for _, timer := range c.timers {
		timer.mu.Lock()
		if !timer.stopped {
			n++
		}
		timer.mu.Unlock()
	}
	return n
}

// Advance moves the clock forward by d and fires every timer that expired.
// Timers scheduled by a firing callback only run if they also fall within
// the advanced window.
func (c *MockClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.current.Add(d)
	c.mu.Unlock()

	for {
		timer := c.nextExpired(target)
		if timer == nil {
			break
		}

		c.mu.Lock()
		if timer.deadline.After(c.current) {
			c.current = timer.deadline
		}
		c.mu.Unlock()

		timer.mu.Lock()
		if timer.stopped {
			timer.mu.Unlock()
			continue
		}
		timer.stopped = true
		f := timer.f
		timer.mu.Unlock()

		// outside all locks, f may schedule new timers
		f()
	}

	c.mu.Lock()
	c.current = target
	c.mu.Unlock()
}

// nextExpired removes and returns the earliest live timer due at or before
// target
func (c *MockClock) nextExpired(target time.Time) *mockTimer {
	c.mu.Lock()
	defer c.mu.Unlock()

	live := c.timers[:0]
	for _, timer := range c.timers {
		timer.mu.Lock()
		stopped := timer.stopped
		timer.mu.Unlock()
		if !stopped {
			live = append(live, timer)
		}
	}
	c.timers = live

	sort.SliceStable(c.timers, func(i, j int) bool {
		return c.timers[i].deadline.Before(c.timers[j].deadline)
	})
	if len(c.timers) == 0 || c.timers[0].deadline.After(target) {
		return nil
	}

	timer := c.timers[0]
	c.timers = c.timers[1:]
	return timer
}

// Stop prevents the timer from firing
func (t *mockTimer) Stop() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	wasActive := !t.stopped
	t.stopped = true
	return wasActive
}
