package progress

import (
	"context"
	"sync"
	"time"
)

// debouncer runs the most recently scheduled function once the delay has
// passed without another Schedule call.
type debouncer struct {
	mu    sync.Mutex
	delay time.Duration
	timer *time.Timer
	fn    func(context.Context)
	seq   uint64
}

func newDebouncer(delay time.Duration) *debouncer {
	return &debouncer{delay: delay}
}

// Schedule replaces any pending function and restarts the timer
func (d *debouncer) Schedule(fn func(context.Context)) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
	}
	d.seq++
	seq := d.seq
	d.fn = fn
	d.timer = time.AfterFunc(d.delay, func() { d.fire(seq) })
}

func (d *debouncer) fire(seq uint64) {
	d.mu.Lock()
	// Stop can lose the race with an already started callback
	if seq != d.seq || d.fn == nil {
		d.mu.Unlock()
		return
	}
	fn := d.take()
	d.mu.Unlock()

	fn(context.Background())
}

// Cancel drops the pending function and reports whether there was one
func (d *debouncer) Cancel() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.take() != nil
}

// Flush runs the pending function now, if any
func (d *debouncer) Flush(ctx context.Context) bool {
	d.mu.Lock()
	fn := d.take()
	d.mu.Unlock()

	if fn == nil {
		return false
	}
	fn(ctx)
	return true
}

// Pending reports whether a function is waiting for its timer
func (d *debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.fn != nil
}

// take must be called with mu held
func (d *debouncer) take() func(context.Context) {
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.seq++
	fn := d.fn
	d.fn = nil
	return fn
}
