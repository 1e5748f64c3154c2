// Package debounce collapses bursts of calls into one trailing invocation.
package debounce

import (
	"sync"
	"time"
)

// Timer is the handle returned by a Clock. Stop reports whether it prevented the call.
type Timer interface {
	Stop() bool
}

// Clock schedules f after d. The real clock is time.AfterFunc.
type Clock interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type realClock struct{}

func (realClock) AfterFunc(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }

// RealClock is the wall clock used when no other clock is configured.
var RealClock Clock = realClock{}

type Option func(*config)

type config struct {
	clock Clock
}

func WithClock(c Clock) Option {
	return func(cfg *config) {
		if c != nil {
			cfg.clock = c
		}
	}
}

// Debouncer delivers only the last argument of a burst, delay after the last call.
// It is safe for concurrent use; fn runs on the clock's goroutine.
type Debouncer[T any] struct {
	mu    sync.Mutex
	clock Clock
	delay time.Duration
	fn    func(T)
	timer Timer
	gen   uint64
}

func New[T any](delay time.Duration, fn func(T), opts ...Option) *Debouncer[T] {
	cfg := config{clock: RealClock}
	for _, o := range opts {
		o(&cfg)
	}
	return &Debouncer[T]{clock: cfg.clock, delay: delay, fn: fn}
}

// Call replaces any pending invocation with fn(arg). The returned func cancels
// this call's invocation; it does nothing once the call fired or was superseded.
func (d *Debouncer[T]) Call(arg T) (cancel func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
	}
	d.gen++
	gen := d.gen
	d.timer = d.clock.AfterFunc(d.delay, func() {
		d.mu.Lock()
		if d.gen != gen {
			// superseded between the timer firing and taking the lock
			d.mu.Unlock()
			return
		}
		d.timer = nil
		d.mu.Unlock()
		d.fn(arg)
	})

	return func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		if d.gen == gen && d.timer != nil {
			d.timer.Stop()
			d.timer = nil
			d.gen++
		}
	}
}

// Stop cancels whatever invocation is pending.
func (d *Debouncer[T]) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.gen++
}

// Pending reports whether an invocation is scheduled.
func (d *Debouncer[T]) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.timer != nil
}
