package mocks

import (
	"sort"
	"sync"
	"time"

	"github.com/mcoot/accessgate/internal/dependencies/clock"
)

// MockClock is a mock implementation of Clock for testing.
// Time only moves when Advance or Set is called; timers and tickers whose
// deadline is reached fire during that call, in deadline order.
type MockClock struct {
	mu      sync.Mutex
	current time.Time
	waiters []*waiter
	changed *sync.Cond
}

type waiter struct {
	deadline time.Time
	ch       chan time.Time
	fn       func()
	interval time.Duration
	stopped  bool
	fired    bool
}

// Ensure MockClock implements Clock
var _ clock.Clock = (*MockClock)(nil)

// NewMockClock creates a MockClock set to the given time
func NewMockClock(t time.Time) *MockClock {
	c := &MockClock{current: t}
	c.changed = sync.NewCond(&c.mu)
	return c
}

// Now returns the mocked current time
func (c *MockClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// After registers a one-shot channel waiter
func (c *MockClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	ch := make(chan time.Time, 1)
	if d <= 0 {
		ch <- c.current
		return ch
	}
	c.add(&waiter{deadline: c.current.Add(d), ch: ch})
	return ch
}

// AfterFunc registers a callback. Callbacks run synchronously inside Advance.
func (c *MockClock) AfterFunc(d time.Duration, f func()) clock.Timer {
	c.mu.Lock()
	w := &waiter{deadline: c.current.Add(d), fn: f}
	c.add(w)
	c.mu.Unlock()

	if d <= 0 {
		c.Advance(0)
	}
	return &mockTimer{clock: c, w: w}
}

// NewTicker registers a repeating waiter
func (c *MockClock) NewTicker(d time.Duration) clock.Ticker {
	if d <= 0 {
		panic("mocks: non-positive ticker interval")
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	w := &waiter{deadline: c.current.Add(d), ch: make(chan time.Time, 1), interval: d}
	c.add(w)
	return &mockTicker{clock: c, w: w}
}

// Advance moves the clock forward by the given duration
func (c *MockClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.current = c.current.Add(d)
	target := c.current
	c.mu.Unlock()

	c.fire(target)
}

// Set sets the clock to the given time
func (c *MockClock) Set(t time.Time) {
	c.mu.Lock()
	c.current = t
	c.mu.Unlock()

	c.fire(t)
}

// Pending returns the number of timers and tickers that have not fired or been stopped
func (c *MockClock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pendingLocked()
}

// WaitForWaiters blocks until at least n waiters are pending. Use it to make sure a
// goroutine has reached its sleep before advancing the clock.
func (c *MockClock) WaitForWaiters(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for c.pendingLocked() < n {
		c.changed.Wait()
	}
}

func (c *MockClock) pendingLocked() int {
	n := 0
	for _, w := range c.waiters {
		if !w.stopped && !w.fired {
			n++
		}
	}
	return n
}

// add must be called with c.mu held
func (c *MockClock) add(w *waiter) {
	c.waiters = append(c.waiters, w)
	c.changed.Broadcast()
}

func (c *MockClock) fire(target time.Time) {
	for {
		due := c.collect(target)
		if len(due) == 0 {
			return
		}
		for _, w := range due {
			if w.fn != nil {
				w.fn()
				continue
			}
			select {
			case w.ch <- target:
			default:
			}
		}
	}
}

func (c *MockClock) collect(target time.Time) []*waiter {
	c.mu.Lock()
	defer c.mu.Unlock()

	var due, remaining []*waiter
	for _, w := range c.waiters {
		switch {
		case w.stopped || w.fired:
		case !w.deadline.After(target):
			due = append(due, w)
			if w.interval > 0 {
				w.deadline = w.deadline.Add(w.interval)
				remaining = append(remaining, w)
			} else {
				w.fired = true
			}
		default:
			remaining = append(remaining, w)
		}
	}
	c.waiters = remaining
	sort.SliceStable(due, func(i, j int) bool {
		return due[i].deadline.Before(due[j].deadline)
	})
	c.changed.Broadcast()
	return due
}

type mockTimer struct {
	clock *MockClock
	w     *waiter
}

func (t *mockTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.w.stopped || t.w.fired {
		return false
	}
	t.w.stopped = true
	t.clock.changed.Broadcast()
	return true
}

type mockTicker struct {
	clock *MockClock
	w     *waiter
}

func (t *mockTicker) C() <-chan time.Time { return t.w.ch }

func (t *mockTicker) Stop() {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	t.w.stopped = true
	t.clock.changed.Broadcast()
}
