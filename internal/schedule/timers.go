// Package schedule provides named one-shot timers with deterministic
// cancellation. Every settle delay, guard window, and retry in the engine is
// scheduled here so that tearing down a pane cancels the lot in one call and a
// stale callback against a torn-down map handle becomes a no-op.
package schedule

import (
	"sync"
	"time"
)

type entry struct {
	timer *time.Timer
	gen   uint64
}

// Timers manages a set of named one-shot timers. Scheduling a name that is
// already pending replaces the previous timer. Safe for concurrent use.
type Timers struct {
	mu     sync.Mutex
	active map[string]*entry
	gen    uint64
	closed bool
}

// NewTimers creates an empty timer set
func NewTimers() *Timers {
	return &Timers{active: make(map[string]*entry)}
}

// After schedules fn to run once after d, replacing any pending timer with the
// same name. The callback is dropped if the name is rescheduled, cancelled, or
// the set is closed before it fires.
func (t *Timers) After(name string, d time.Duration, fn func()) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	if prev, ok := t.active[name]; ok {
		prev.timer.Stop()
	}
	t.gen++
	gen := t.gen
	e := &entry{gen: gen}
	e.timer = time.AfterFunc(d, func() {
		t.mu.Lock()
		cur, ok := t.active[name]
		if !ok || cur.gen != gen || t.closed {
			t.mu.Unlock()
			return
		}
		delete(t.active, name)
		t.mu.Unlock()
		fn()
	})
	t.active[name] = e
	t.mu.Unlock()
}

// Cancel stops a pending timer by name; unknown names are a no-op
func (t *Timers) Cancel(name string) {
	t.mu.Lock()
	if e, ok := t.active[name]; ok {
		e.timer.Stop()
		delete(t.active, name)
	}
	t.mu.Unlock()
}

// Pending reports whether a timer with the given name is still scheduled
func (t *Timers) Pending(name string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.active[name]
	return ok
}

// CancelAll stops every pending timer but keeps the set usable
func (t *Timers) CancelAll() {
	t.mu.Lock()
	for name, e := range t.active {
		e.timer.Stop()
		delete(t.active, name)
	}
	t.mu.Unlock()
}

// Close cancels everything and rejects any further scheduling
func (t *Timers) Close() {
	t.mu.Lock()
	t.closed = true
	for name, e := range t.active {
		e.timer.Stop()
		delete(t.active, name)
	}
	t.mu.Unlock()
}
