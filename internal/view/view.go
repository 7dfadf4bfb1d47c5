// Package view implements the subscriber surfaces: each one lists its
// collection for the initial render, subscribes to the change bus, re-lists
// and fully re-renders on every notification, and unsubscribes on teardown.
// Renders go to the structured logger.
package view

import (
	"github.com/Braavos-Developer/diner-design/internal/bus"
)

// subscribeRefresh coalesces bus events into a single refresh signal.
// Bursts collapse into one pending refresh; the view re-lists anyway.
func subscribeRefresh(b *bus.Bus, events ...string) (<-chan struct{}, func()) {
	kick := make(chan struct{}, 1)
	cancels := make([]func(), 0, len(events))
	for _, event := range events {
		cancels = append(cancels, b.Subscribe(event, func(bus.Event) {
			select {
			case kick <- struct{}{}:
			default:
			}
		}))
	}
	return kick, func() {
		for _, c := range cancels {
			c()
		}
	}
}
