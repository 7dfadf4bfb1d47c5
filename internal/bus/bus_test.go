package bus

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPublishDispatchesInSubscriptionOrder(t *testing.T) {
	b := New()
	var calls []string

	cancelA := b.Subscribe("orders_updated", func(Event) { calls = append(calls, "A") })
	cancelB := b.Subscribe("orders_updated", func(Event) { calls = append(calls, "B") })
	defer cancelA()
	defer cancelB()

	b.Publish("orders_updated", nil)

	// Both handlers ran synchronously, A before B, before Publish returned.
	assert.Equal(t, []string{"A", "B"}, calls)
}

func TestDoubleSubscribeYieldsTwoInvocations(t *testing.T) {
	b := New()
	count := 0
	handler := func(Event) { count++ }

	cancel1 := b.Subscribe("calls_updated", handler)
	cancel2 := b.Subscribe("calls_updated", handler)
	defer cancel1()
	defer cancel2()

	b.Publish("calls_updated", nil)
	assert.Equal(t, 2, count)
}

func TestCancelStopsDelivery(t *testing.T) {
	b := New()
	var calls []string

	cancelA := b.Subscribe("tables_updated", func(Event) { calls = append(calls, "A") })
	cancelB := b.Subscribe("tables_updated", func(Event) { calls = append(calls, "B") })

	cancelA()
	b.Publish("tables_updated", nil)
	assert.Equal(t, []string{"B"}, calls)

	cancelB()
	b.Publish("tables_updated", nil)
	assert.Equal(t, []string{"B"}, calls)

	// Cancelling twice is harmless.
	cancelA()
}

func TestPublishCarriesPayloadAndName(t *testing.T) {
	b := New()
	var got Event
	cancel := b.Subscribe("orders_updated", func(ev Event) { got = ev })
	defer cancel()

	b.Publish("orders_updated", 42)
	assert.Equal(t, "orders_updated", got.Name)
	assert.Equal(t, 42, got.Payload)
}

func TestEventsAreIndependent(t *testing.T) {
	b := New()
	orders, calls := 0, 0
	defer b.Subscribe("orders_updated", func(Event) { orders++ })()
	defer b.Subscribe("calls_updated", func(Event) { calls++ })()

	b.Publish("orders_updated", nil)
	b.Publish("orders_updated", nil)
	b.Publish("calls_updated", nil)

	assert.Equal(t, 2, orders)
	assert.Equal(t, 1, calls)
}
