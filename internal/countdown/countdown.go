package countdown

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

const (
	// Unlimited is the duration sentinel for exams without a time limit.
	Unlimited = 0

	// LowTimeThreshold marks the final stretch shown with urgency.
	LowTimeThreshold = 5 * time.Minute

	defaultCadence = time.Second
)

// Remaining is the time left split for display.
type Remaining struct {
	Total   time.Duration
	Hours   int
	Minutes int
	Seconds int
}

func split(d time.Duration) Remaining {
	if d < 0 {
		d = 0
	}
	secs := int(d / time.Second)
	return Remaining{
		Total:   d,
		Hours:   secs / 3600,
		Minutes: (secs % 3600) / 60,
		Seconds: secs % 60,
	}
}

// String formats as HH:MM:SS.
func (r Remaining) String() string {
	return fmt.Sprintf("%02d:%02d:%02d", r.Hours, r.Minutes, r.Seconds)
}

// Controller counts down to a fixed deadline and fires onExpire once.
type Controller struct {
	clock     Clock
	log       zerolog.Logger
	deadline  time.Time
	unlimited bool
	cadence   time.Duration
	onTick    func(Remaining)
	onExpire  func()

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
	done    chan struct{}

	once    sync.Once
	expired atomic.Bool
}

// Option configures a Controller.
type Option func(*Controller)

func WithClock(c Clock) Option {
	return func(ctl *Controller) { ctl.clock = c }
}

// WithCadence sets the tick interval. Values outside (0, 1s] are ignored.
func WithCadence(d time.Duration) Option {
	return func(ctl *Controller) {
		if d > 0 && d <= time.Second {
			ctl.cadence = d
		}
	}
}

// WithTick registers a callback invoked on every tick. It runs on the
// controller goroutine and must not call Stop.
func WithTick(fn func(Remaining)) Option {
	return func(ctl *Controller) { ctl.onTick = fn }
}

func WithLogger(log zerolog.Logger) Option {
	return func(ctl *Controller) {
		ctl.log = log.With().Str("component", "Countdown").Logger()
	}
}

// New computes the deadline startedAt + durationMinutes. A durationMinutes
// of zero or less yields an unlimited controller that never runs.
func New(startedAt time.Time, durationMinutes int, onExpire func(), opts ...Option) *Controller {
	c := &Controller{
		clock:     SystemClock{},
		log:       zerolog.Nop(),
		cadence:   defaultCadence,
		onExpire:  onExpire,
		unlimited: durationMinutes <= Unlimited,
	}
	for _, opt := range opts {
		opt(c)
	}
	if !c.unlimited {
		c.deadline = startedAt.Add(time.Duration(durationMinutes) * time.Minute)
	}
	return c
}

func (c *Controller) Unlimited() bool { return c.unlimited }

// Deadline returns the absolute expiry instant; ok is false when unlimited.
func (c *Controller) Deadline() (deadline time.Time, ok bool) {
	return c.deadline, !c.unlimited
}

// Remaining reports the time left, zero when unlimited or past the deadline.
func (c *Controller) Remaining() Remaining {
	if c.unlimited {
		return Remaining{}
	}
	return split(c.deadline.Sub(c.clock.Now()))
}

// LowTime reports whether the deadline is less than LowTimeThreshold away.
func (c *Controller) LowTime() bool {
	if c.unlimited {
		return false
	}
	left := c.Remaining().Total
	return left > 0 && left < LowTimeThreshold
}

// Expired reports whether onExpire has been dispatched.
func (c *Controller) Expired() bool { return c.expired.Load() }

// Start begins ticking. It is a no-op for unlimited controllers and on any
// call after the first. A deadline already in the past expires immediately.
func (c *Controller) Start(ctx context.Context) {
	if c.unlimited {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started {
		return
	}
	c.started = true
	c.done = make(chan struct{})

	wait := c.deadline.Sub(c.clock.Now())
	if wait <= 0 {
		c.log.Info().Time("deadline", c.deadline).Msg("Deadline already passed at start")
		c.tick(Remaining{})
		c.expire()
		close(c.done)
		return
	}

	ctx, c.cancel = context.WithCancel(ctx)
	ticker := c.clock.NewTicker(c.cadence)
	timer := c.clock.NewTimer(wait)

	c.log.Debug().
		Time("deadline", c.deadline).
		Dur("remaining", wait).
		Msg("Countdown started")

	go c.run(ctx, ticker, timer)
}

func (c *Controller) run(ctx context.Context, ticker Ticker, timer Timer) {
	defer close(c.done)
	defer ticker.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			rem := c.Remaining()
			c.tick(rem)
			if rem.Total <= 0 {
				c.expire()
				return
			}
		case <-timer.C():
			c.tick(Remaining{})
			c.expire()
			return
		}
	}
}

// Stop cancels the countdown and waits for its goroutine to exit. An
// already dispatched onExpire is not recalled.
func (c *Controller) Stop() {
	c.mu.Lock()
	if !c.started {
		c.mu.Unlock()
		return
	}
	if c.cancel != nil {
		c.cancel()
	}
	done := c.done
	c.mu.Unlock()

	<-done
}

func (c *Controller) tick(r Remaining) {
	if c.onTick != nil {
		c.onTick(r)
	}
}

func (c *Controller) expire() {
	c.once.Do(func() {
		c.expired.Store(true)
		c.log.Info().Time("deadline", c.deadline).Msg("Countdown expired")
		if c.onExpire != nil {
			go c.onExpire()
		}
	})
}
