// Package sched provides small cancellable timer helpers so per-session
// timer state stays owned by the component that created it.
package sched

import (
	"sync"
	"time"
)

// Debouncer fires fn once the interval elapses with no further Touch.
// Every Touch re-arms the timer, so a stream of touches closer together
// than the interval produces a single trailing fire.
type Debouncer struct {
	mu       sync.Mutex
	interval time.Duration
	fn       func()
	timer    *time.Timer
	armed    bool
}

func NewDebouncer(interval time.Duration, fn func()) *Debouncer {
	return &Debouncer{interval: interval, fn: fn}
}

// Touch arms the debouncer, cancelling any pending fire.
func (d *Debouncer) Touch() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
	}
	d.armed = true
	d.timer = time.AfterFunc(d.interval, d.fire)
}

// Flush fires immediately if a fire is pending, cancelling the timer.
func (d *Debouncer) Flush() {
	d.mu.Lock()
	if !d.armed {
		d.mu.Unlock()
		return
	}
	if d.timer != nil {
		d.timer.Stop()
	}
	d.armed = false
	d.mu.Unlock()

	d.fn()
}

// Stop cancels any pending fire without running it.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
	}
	d.armed = false
}

// Pending reports whether a fire is scheduled.
func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.armed
}

func (d *Debouncer) fire() {
	d.mu.Lock()
	if !d.armed {
		d.mu.Unlock()
		return
	}
	d.armed = false
	d.mu.Unlock()

	d.fn()
}
