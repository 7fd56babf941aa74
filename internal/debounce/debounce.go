// Package debounce coalesces bursts of work per key.
//
// For each key at most one function runs at a time. A schedule that arrives
// while the key's function is running is held and goes through the normal
// delay once the run completes, so the latest request always executes.
package debounce

import (
	"sync"
	"time"
)

// Keyed debounces functions by key. It is safe for concurrent use.
type Keyed[K comparable] struct {
	delay time.Duration

	mu    sync.Mutex
	idle  *sync.Cond
	slots map[K]*slot
}

type slot struct {
	gen     uint64
	timer   *time.Timer
	pending func()
	running bool
	held    func()
}

func (s *slot) quiet() bool {
	return !s.running && s.pending == nil && s.held == nil
}

// New returns a debouncer that waits delay after the last schedule for a
// key before running it.
func New[K comparable](delay time.Duration) *Keyed[K] {
	d := &Keyed[K]{delay: delay, slots: make(map[K]*slot)}
	d.idle = sync.NewCond(&d.mu)
	return d
}

// ByKey returns the curried form: ByKey(delay)(key)(fn) schedules fn and
// returns its cancel function.
func ByKey[K comparable](delay time.Duration) func(K) func(func()) func() {
	d := New[K](delay)
	return func(key K) func(func()) func() {
		return func(fn func()) func() {
			return d.Schedule(key, fn)
		}
	}
}

// Schedule (re)starts the delay for key with fn as the function to run.
// The returned cancel aborts fn if it has not started yet and has not been
// superseded by a later schedule.
func (d *Keyed[K]) Schedule(key K, fn func()) (cancel func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	s, ok := d.slots[key]
	if !ok {
		s = &slot{}
		d.slots[key] = s
	}
	s.gen++
	gen := s.gen

	if s.running {
		s.held = fn
	} else {
		s.pending = fn
		d.arm(key, s)
	}

	return func() { d.cancel(key, s, gen) }
}

// arm starts the timer for the slot's current generation. Caller holds mu.
func (d *Keyed[K]) arm(key K, s *slot) {
	if s.timer != nil {
		s.timer.Stop()
	}
	gen := s.gen
	s.timer = time.AfterFunc(d.delay, func() { d.fire(key, s, gen) })
}

func (d *Keyed[K]) cancel(key K, s *slot, gen uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.slots[key] != s || s.gen != gen {
		return
	}
	if s.held != nil {
		s.held = nil
	} else if s.pending != nil {
		s.pending = nil
		if s.timer != nil {
			s.timer.Stop()
			s.timer = nil
		}
	}
	d.release(key, s)
}

func (d *Keyed[K]) fire(key K, s *slot, gen uint64) {
	d.mu.Lock()
	if d.slots[key] != s || s.gen != gen || s.pending == nil || s.running {
		d.mu.Unlock()
		return
	}
	fn := s.pending
	s.pending = nil
	s.timer = nil
	s.running = true
	d.mu.Unlock()

	defer d.finish(key, s)
	fn()
}

func (d *Keyed[K]) finish(key K, s *slot) {
	d.mu.Lock()
	defer d.mu.Unlock()

	s.running = false
	if s.held != nil {
		s.pending, s.held = s.held, nil
		d.arm(key, s)
		return
	}
	d.release(key, s)
}

// release drops an idle slot and wakes Wait. Caller holds mu.
func (d *Keyed[K]) release(key K, s *slot) {
	if !s.quiet() || d.slots[key] != s {
		return
	}
	delete(d.slots, key)
	d.idle.Broadcast()
}

// Pending reports how many keys have scheduled, held or running work.
func (d *Keyed[K]) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.slots)
}

// Wait blocks until every key is idle, including work scheduled while
// waiting.
func (d *Keyed[K]) Wait() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for len(d.slots) > 0 {
		d.idle.Wait()
	}
}

// Stop cancels every pending and held function. Running functions finish.
func (d *Keyed[K]) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for key, s := range d.slots {
		s.gen++
		s.held = nil
		s.pending = nil
		if s.timer != nil {
			s.timer.Stop()
			s.timer = nil
		}
		d.release(key, s)
	}
}
