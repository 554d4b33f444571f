// Package debounce runs keyed tasks after a quiet period. Scheduling a
// task for a key that already has a pending task replaces it.
package debounce

import (
	"sync"
	"time"
)

type entry struct {
	timer *time.Timer
}

// Debouncer holds at most one pending task per key.
type Debouncer struct {
	wait time.Duration

	mu      sync.Mutex
	pending map[string]*entry
	stopped bool
}

// New creates a Debouncer with the given quiet period.
func New(wait time.Duration) *Debouncer {
	return &Debouncer{
		wait:    wait,
		pending: make(map[string]*entry),
	}
}

// Do schedules fn to run after the quiet period, replacing any task
// pending for key. fn runs on its own goroutine.
func (d *Debouncer) Do(key string, fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	if prev, ok := d.pending[key]; ok {
		prev.timer.Stop()
	}
	e := &entry{}
	e.timer = time.AfterFunc(d.wait, func() {
		d.mu.Lock()
		if d.pending[key] != e {
			// Replaced or cancelled after the timer already fired.
			d.mu.Unlock()
			return
		}
		delete(d.pending, key)
		d.mu.Unlock()
		fn()
	})
	d.pending[key] = e
}

// Cancel drops the task pending for key and reports whether one existed.
func (d *Debouncer) Cancel(key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	e, ok := d.pending[key]
	if ok {
		e.timer.Stop()
		delete(d.pending, key)
	}
	return ok
}

// Pending reports whether a task is scheduled for key.
func (d *Debouncer) Pending(key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.pending[key]
	return ok
}

// Stop cancels every pending task. Later calls to Do are ignored.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	for k, e := range d.pending {
		e.timer.Stop()
		delete(d.pending, k)
	}
}
