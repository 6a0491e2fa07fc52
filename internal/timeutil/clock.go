// Package timeutil lets the pulse settle timer and the session sweeper run
// against either the wall clock or a clock driven by tests.
package timeutil

import (
	"sync"
	"time"
)

// Clock is the subset of the time package the lab depends on.
type Clock interface {
	Now() time.Time
	Since(t time.Time) time.Duration
	NewTicker(d time.Duration) Ticker
}

// Ticker delivers ticks on C until stopped.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// RealClock reads the wall clock.
type RealClock struct{}

func (RealClock) Now() time.Time                  { return time.Now() }
func (RealClock) Since(t time.Time) time.Duration { return time.Since(t) }

func (RealClock) NewTicker(d time.Duration) Ticker {
	return stdTicker{time.NewTicker(d)}
}

type stdTicker struct{ t *time.Ticker }

func (s stdTicker) C() <-chan time.Time { return s.t.C }
func (s stdTicker) Stop()               { s.t.Stop() }

// MockClock only moves when Advance or Set is called. Tickers created from
// it fire during those calls.
type MockClock struct {
	mu      sync.Mutex
	now     time.Time
	tickers []*MockTicker
}

// NewMockClock returns a MockClock reading start.
func NewMockClock(start time.Time) *MockClock {
	return &MockClock{now: start}
}

func (c *MockClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *MockClock) Since(t time.Time) time.Duration {
	return c.Now().Sub(t)
}

// Advance moves the clock forward by d.
func (c *MockClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.setLocked(c.now.Add(d))
	c.mu.Unlock()
}

// Set jumps the clock to t. Moving backwards never fires a ticker.
func (c *MockClock) Set(t time.Time) {
	c.mu.Lock()
	c.setLocked(t)
	c.mu.Unlock()
}

func (c *MockClock) setLocked(t time.Time) {
	c.now = t
	live := c.tickers[:0]
	for _, tk := range c.tickers {
		if tk.stopped {
			continue
		}
		live = append(live, tk)
		if t.Before(tk.next) {
			continue
		}
		// One buffered slot: a reader that falls behind drops ticks the
		// same way time.Ticker does.
		select {
		case tk.ch <- t:
		default:
		}
		tk.next = t.Add(tk.every)
	}
	c.tickers = live
}

func (c *MockClock) NewTicker(d time.Duration) Ticker {
	if d <= 0 {
		panic("timeutil: non-positive interval for NewTicker")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	tk := &MockTicker{
		clock: c,
		ch:    make(chan time.Time, 1),
		every: d,
		next:  c.now.Add(d),
	}
	c.tickers = append(c.tickers, tk)
	return tk
}

// MockTicker is a Ticker owned by a MockClock. Its fields are guarded by the
// clock's mutex.
type MockTicker struct {
	clock   *MockClock
	ch      chan time.Time
	every   time.Duration
	next    time.Time
	stopped bool
}

func (t *MockTicker) C() <-chan time.Time { return t.ch }

func (t *MockTicker) Stop() {
	t.clock.mu.Lock()
	t.stopped = true
	t.clock.mu.Unlock()
}
