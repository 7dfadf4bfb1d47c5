// Package bus delivers "collection changed" events. Local subscribers get
// synchronous dispatch in subscription order; remote contexts are reached
// through the store's own change notifications and, optionally, through a
// RabbitMQ fanout relay. Consumers must treat every event as a cue to
// re-list the collection, never as an incremental diff.
package bus

import "sync"

type Event struct {
	Name    string
	Payload any
}

type Handler func(Event)

type Bus struct {
	mu   sync.Mutex
	next uint64
	subs map[string][]subscriber
}

type subscriber struct {
	id uint64
	fn Handler
}

func New() *Bus {
	return &Bus{subs: make(map[string][]subscriber)}
}

// Subscribe registers fn for the named event and returns its cancel func.
// Subscribing the same handler twice yields two invocations per event;
// callers must cancel on teardown.
func (b *Bus) Subscribe(event string, fn Handler) (cancel func()) {
	b.mu.Lock()
	id := b.next
	b.next++
	b.subs[event] = append(b.subs[event], subscriber{id: id, fn: fn})
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		list := b.subs[event]
		for i, s := range list {
			if s.id == id {
				b.subs[event] = append(list[:i:i], list[i+1:]...)
				return
			}
		}
	}
}

// Publish invokes every handler for the event, in subscription order,
// before returning.
func (b *Bus) Publish(event string, payload any) {
	b.mu.Lock()
	list := b.subs[event]
	snapshot := make([]subscriber, len(list))
	copy(snapshot, list)
	b.mu.Unlock()

	ev := Event{Name: event, Payload: payload}
	for _, s := range snapshot {
		s.fn(ev)
	}
}
