// Package timeutil lets time-driven code swap the wall clock out in tests.
package timeutil

import (
	"sync"
	"time"
)

// Clock is the subset of the time package the daemon depends on: reading
// the current time and running periodic tickers. Production code uses
// RealClock; tests crank a MockClock by hand instead of sleeping.
type Clock interface {
	Now() time.Time
	NewTicker(d time.Duration) Ticker
}

// Ticker delivers periodic ticks on C until stopped.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// RealClock delegates to the time package.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

func (RealClock) NewTicker(d time.Duration) Ticker {
	return realTicker{t: time.NewTicker(d)}
}

type realTicker struct {
	t *time.Ticker
}

func (rt realTicker) C() <-chan time.Time { return rt.t.C }
func (rt realTicker) Stop()               { rt.t.Stop() }

// MockClock is a hand-cranked Clock. Time stands still until the test
// calls Advance, which also fires any tickers whose deadlines passed.
type MockClock struct {
	mu      sync.Mutex
	current time.Time
	tickers []*MockTicker
}

// NewMockClock returns a MockClock frozen at start.
func NewMockClock(start time.Time) *MockClock {
	return &MockClock{current: start}
}

func (c *MockClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Advance moves the clock forward by d. Every ticker fires once per
// interval boundary the new time has passed.
func (c *MockClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = c.current.Add(d)
	for _, t := range c.tickers {
		t.fireUpTo(c.current)
	}
}

// NewTicker registers a ticker driven by Advance rather than real time.
func (c *MockClock) NewTicker(d time.Duration) Ticker {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &MockTicker{
		ch:   make(chan time.Time, 1),
		next: c.current.Add(d),
		step: d,
	}
	c.tickers = append(c.tickers, t)
	return t
}

// MockTicker is the Ticker handed out by MockClock. Like time.Ticker it
// buffers a single tick; ticks nobody is reading are dropped.
type MockTicker struct {
	mu      sync.Mutex
	ch      chan time.Time
	next    time.Time
	step    time.Duration
	stopped bool
}

func (t *MockTicker) C() <-chan time.Time { return t.ch }

func (t *MockTicker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopped = true
}

func (t *MockTicker) fireUpTo(now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return
	}
	for !t.next.After(now) {
		select {
		case t.ch <- t.next:
		default:
		}
		t.next = t.next.Add(t.step)
	}
}
