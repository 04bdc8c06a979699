package quest

import (
	"sort"
	"time"
)

// Timer is a pending scheduled callback.
type Timer interface {
	Stop() bool
}

// Scheduler runs a callback after a delay. The callback must be delivered on
// the goroutine that owns the PlayerQuestLog; a bare time.AfterFunc does not
// qualify. There is no default.
type Scheduler interface {
	AfterFunc(d time.Duration, fn func()) Timer
}

// SchedulerFunc adapts a function to the Scheduler interface.
type SchedulerFunc func(d time.Duration, fn func()) Timer

// AfterFunc calls f(d, fn)
func (f SchedulerFunc) AfterFunc(d time.Duration, fn func()) Timer {
	return f(d, fn)
}

// debouncer collapses repeated touches of a key into one flush that fires
// once the key has been quiet for delay.
type debouncer struct {
	sched   Scheduler
	delay   time.Duration
	flush   func(key string)
	pending map[string]Timer
	gen     map[string]uint64
}

func newDebouncer(sched Scheduler, delay time.Duration, flush func(key string)) *debouncer {
	return &debouncer{
		sched:   sched,
		delay:   delay,
		flush:   flush,
		pending: make(map[string]Timer),
		gen:     make(map[string]uint64),
	}
}

// touch (re)starts the quiet period for key.
func (d *debouncer) touch(key string) {
	if t, ok := d.pending[key]; ok {
		t.Stop()
	}
	d.gen[key]++
	g := d.gen[key]
	d.pending[key] = d.sched.AfterFunc(d.delay, func() {
		// A superseded timer may still be delivered if Stop lost the race.
		if d.gen[key] != g {
			return
		}
		d.fire(key)
	})
}

func (d *debouncer) fire(key string) {
	if _, ok := d.pending[key]; !ok {
		return
	}
	delete(d.pending, key)
	d.gen[key]++
	d.flush(key)
}

// flushAll fires every pending key immediately, in sorted order.
func (d *debouncer) flushAll() {
	keys := d.keys()
	for _, key := range keys {
		d.pending[key].Stop()
		d.fire(key)
	}
}

// stop drops every pending key without flushing.
func (d *debouncer) stop() {
	for key, t := range d.pending {
		t.Stop()
		delete(d.pending, key)
		d.gen[key]++
	}
}

// keys returns the pending keys, sorted.
func (d *debouncer) keys() []string {
	keys := make([]string, 0, len(d.pending))
	for key := range d.pending {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
