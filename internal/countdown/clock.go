package countdown

import (
	"sync"
	"time"
)

// Clock is the time source of a Controller.
type Clock interface {
	Now() time.Time
	NewTicker(d time.Duration) Ticker
	NewTimer(d time.Duration) Timer
}

type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type Timer interface {
	C() <-chan time.Time
	Stop() bool
}

// SystemClock reads the wall clock. time.Now carries a monotonic reading, so
// durations measured against it ignore wall clock jumps.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

func (SystemClock) NewTicker(d time.Duration) Ticker {
	return systemTicker{time.NewTicker(d)}
}

func (SystemClock) NewTimer(d time.Duration) Timer {
	return systemTimer{time.NewTimer(d)}
}

type systemTicker struct{ t *time.Ticker }

func (s systemTicker) C() <-chan time.Time { return s.t.C }
func (s systemTicker) Stop()               { s.t.Stop() }

type systemTimer struct{ t *time.Timer }

func (s systemTimer) C() <-chan time.Time { return s.t.C }
func (s systemTimer) Stop() bool          { return s.t.Stop() }

// ManualClock only moves when Advance or Set is called. Tickers and timers
// created from it fire synchronously inside Advance; like the runtime's,
// their channels hold one pending value and drop the rest.
type ManualClock struct {
	mu      sync.Mutex
	now     time.Time
	waiters []*manualWaiter
}

func NewManualClock(now time.Time) *ManualClock {
	return &ManualClock{now: now}
}

type manualWaiter struct {
	clock   *ManualClock
	at      time.Time
	period  time.Duration
	ch      chan time.Time
	stopped bool
}

func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *ManualClock) NewTicker(d time.Duration) Ticker {
	return manualTicker{c.add(d, d)}
}

func (c *ManualClock) NewTimer(d time.Duration) Timer {
	return c.add(d, 0)
}

func (c *ManualClock) add(after, period time.Duration) *manualWaiter {
	c.mu.Lock()
	defer c.mu.Unlock()
	w := &manualWaiter{
		clock:  c,
		at:     c.now.Add(after),
		period: period,
		ch:     make(chan time.Time, 1),
	}
	c.waiters = append(c.waiters, w)
	return w
}

// Advance moves the clock forward by d and fires everything that came due.
func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	c.fireLocked()
}

// Set jumps the clock to t.
func (c *ManualClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
	c.fireLocked()
}

// Waiters reports how many tickers and timers are still armed.
func (c *ManualClock) Waiters() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.waiters)
}

func (c *ManualClock) fireLocked() {
	live := c.waiters[:0]
	for _, w := range c.waiters {
		for !w.stopped && !w.at.After(c.now) {
			select {
			case w.ch <- w.at:
			default:
			}
			if w.period == 0 {
				w.stopped = true
				break
			}
			w.at = w.at.Add(w.period)
		}
		if !w.stopped {
			live = append(live, w)
		}
	}
	c.waiters = live
}

func (w *manualWaiter) C() <-chan time.Time { return w.ch }

func (w *manualWaiter) Stop() bool {
	w.clock.mu.Lock()
	defer w.clock.mu.Unlock()
	if w.stopped {
		return false
	}
	w.stopped = true
	for i, other := range w.clock.waiters {
		if other == w {
			w.clock.waiters = append(w.clock.waiters[:i], w.clock.waiters[i+1:]...)
			break
		}
	}
	return true
}

type manualTicker struct{ *manualWaiter }

func (t manualTicker) Stop() { t.manualWaiter.Stop() }
