package orchestrator

import (
	"sync"
	"time"
)

// Timer is a pending call scheduled by a Clock.
type Timer interface {
	Stop() bool
}

// Clock schedules the debounced updates.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

type systemClock struct{}

func (systemClock) Now() time.Time {
	return time.Now()
}

func (systemClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// Debouncer collapses bursts of Trigger calls into one trailing call of fn,
// interval after the last trigger.
type Debouncer struct {
	mu       sync.Mutex
	clock    Clock
	interval time.Duration
	fn       func()
	timer    Timer
}

func NewDebouncer(clock Clock, interval time.Duration, fn func()) *Debouncer {
	if clock == nil {
		clock = systemClock{}
	}
	return &Debouncer{
		clock:    clock,
		interval: interval,
		fn:       fn,
	}
}

func (d *Debouncer) Trigger() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = d.clock.AfterFunc(d.interval, d.fn)
}

// Cancel drops the pending call, if any. A call already running is not affected.
func (d *Debouncer) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
