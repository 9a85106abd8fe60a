package debounce

import (
	"sync"
	"time"
)

// DefaultInterval is the quiet period used when none is configured.
const DefaultInterval = 500 * time.Millisecond

// Debouncer coalesces bursts of triggers into a single call of the wrapped action, fired once the interval
// elapses without further triggers. Only the latest value is delivered.
type Debouncer[T any] struct {
	interval time.Duration
	action   func(T)

	mu         sync.Mutex
	timer      *time.Timer // single outstanding timer
	generation uint64      // bumped on every restart, a timer only fires for its own generation
	value      T
	pending    bool
	stopped    bool
}

// New returns a Debouncer for the given action. A non-positive interval means DefaultInterval.
func New[T any](interval time.Duration, action func(T)) *Debouncer[T] {
	if interval <= 0 {
		interval = DefaultInterval
	}

	return &Debouncer[T]{
		interval: interval,
		action:   action,
	}
}

// Trigger records value and restarts the quiet period.
func (d *Debouncer[T]) Trigger(value T) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}

	d.value = value
	d.pending = true

	if d.timer != nil {
		d.timer.Stop()
	}

	d.generation++
	generation := d.generation
	d.timer = time.AfterFunc(d.interval, func() {
		d.fire(generation)
	})
}

// Flush runs the pending action immediately, if any.
func (d *Debouncer[T]) Flush() {
	d.mu.Lock()
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.generation++
	generation := d.generation
	d.mu.Unlock()

	d.fire(generation)
}

// Stop cancels the pending action and ignores later triggers.
func (d *Debouncer[T]) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopped = true
	d.pending = false
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}

// Pending reports whether a call is scheduled.
func (d *Debouncer[T]) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.pending
}

func (d *Debouncer[T]) fire(generation uint64) {
	if value, ok := d.take(generation); ok {
		d.action(value)
	}
}

func (d *Debouncer[T]) take(generation uint64) (value T, ok bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if generation != d.generation || !d.pending || d.stopped {
		return value, false
	}

	value = d.value
	d.pending = false
	d.timer = nil

	return value, true
}
