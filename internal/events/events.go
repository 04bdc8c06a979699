// Package events implements the per-player bus that quest setup hooks use
// to observe in-world activity.
package events

import "sync"

// Common event kinds published by the host.
const (
	KindGather  = "gather"  // Item gathered from the world
	KindDeliver = "deliver" // Item handed to an NPC
	KindTalk    = "talk"    // Player spoke to an NPC
	KindCraft   = "craft"   // Item crafted
)

// Event is one in-world occurrence relevant to quest progress.
type Event struct {
	Kind     string `json:"kind"`
	Target   string `json:"target"`   // Item, NPC or place involved
	Quantity int    `json:"quantity"` // How many, 0 means one
}

// Count returns the quantity, treating zero as one
func (e Event) Count() int {
	if e.Quantity == 0 {
		return 1
	}
	return e.Quantity
}

// Handler receives published events.
type Handler func(Event)

type subscription struct {
	fn     Handler
	active bool
}

// Bus fans events out to subscribers by kind. Handlers run outside the
// bus lock in subscription order and may subscribe or unsubscribe freely.
type Bus struct {
	mu   sync.Mutex
	subs map[string][]*subscription
}

// NewBus creates an empty bus
func NewBus() *Bus {
	return &Bus{subs: make(map[string][]*subscription)}
}

// Subscribe registers fn for events of the given kind. The returned
// function removes the subscription; calling it more than once is harmless.
func (b *Bus) Subscribe(kind string, fn Handler) func() {
	sub := &subscription{fn: fn, active: true}

	b.mu.Lock()
	b.subs[kind] = append(b.subs[kind], sub)
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()

		if !sub.active {
			return
		}
		sub.active = false
		list := b.subs[kind]
		for i, s := range list {
			if s == sub {
				b.subs[kind] = append(list[:i:i], list[i+1:]...)
				break
			}
		}
		if len(b.subs[kind]) == 0 {
			delete(b.subs, kind)
		}
	}
}

// Publish delivers e to every current subscriber of its kind and returns
// how many handlers ran.
func (b *Bus) Publish(e Event) int {
	b.mu.Lock()
	snapshot := make([]*subscription, len(b.subs[e.Kind]))
	copy(snapshot, b.subs[e.Kind])
	b.mu.Unlock()

	delivered := 0
	for _, sub := range snapshot {
		b.mu.Lock()
		active := sub.active
		b.mu.Unlock()
		if !active {
			continue
		}
		sub.fn(e)
		delivered++
	}
	return delivered
}

// Len returns the number of subscribers for a kind
func (b *Bus) Len(kind string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[kind])
}
