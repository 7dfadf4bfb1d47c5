package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Braavos-Developer/diner-design/internal/bus"
	"github.com/Braavos-Developer/diner-design/internal/common/logger"
	"github.com/Braavos-Developer/diner-design/internal/domain"
	"github.com/Braavos-Developer/diner-design/internal/store"
)

// Two contexts over one backend: a write in A must surface in B as a change
// notification, after which B's re-list sees the record.
func TestWriteInOneContextReachesTheOther(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	backend := store.NewMemory()
	a := openEnv(backend, 0.10)
	b := openEnv(backend, 0.10)

	require.NoError(t, bus.Bridge(ctx, b.store, b.bus, logger.New("test")))

	notified := make(chan struct{}, 1)
	cancelSub := b.bus.Subscribe(domain.EventOrdersUpdated, func(bus.Event) {
		select {
		case notified <- struct{}{}:
		default:
		}
	})
	defer cancelSub()

	created, err := a.orders.Create(ctx, twoItemInput(7))
	require.NoError(t, err)

	select {
	case <-notified:
	case <-time.After(2 * time.Second):
		t.Fatal("context B never heard about the write")
	}

	orders, err := b.orders.List(ctx)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, created.ID, orders[0].ID)
	assert.True(t, created.CreatedAt.Equal(orders[0].CreatedAt))
}

// Concurrent appends from two contexts must both survive; the revision
// check turns the lost-update race into a retry.
func TestConcurrentAppendsAreNotLost(t *testing.T) {
	ctx := context.Background()
	backend := store.NewMemory()
	a := openEnv(backend, 0.10)
	b := openEnv(backend, 0.10)

	const perWriter = 5
	var wg sync.WaitGroup
	for _, e := range []*env{a, b} {
		wg.Add(1)
		go func(e *env) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				_, err := e.orders.Create(ctx, twoItemInput(i+1))
				assert.NoError(t, err)
			}
		}(e)
	}
	wg.Wait()

	orders, err := a.orders.List(ctx)
	require.NoError(t, err)
	assert.Len(t, orders, 2*perWriter)

	seen := make(map[string]bool, len(orders))
	for _, o := range orders {
		assert.False(t, seen[o.ID], "duplicate id %s", o.ID)
		seen[o.ID] = true
	}
}

// Corrupt persisted data reads as an empty collection and the next write
// repairs it.
func TestCorruptCollectionRecoversAsEmpty(t *testing.T) {
	ctx := context.Background()
	e := newEnv(0.10)

	_, err := e.store.Save(ctx, domain.OrdersKey, []byte(`{not json`), 0)
	require.NoError(t, err)

	orders, err := e.orders.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, orders)

	created, err := e.orders.Create(ctx, twoItemInput(1))
	require.NoError(t, err)

	orders, err = e.orders.List(ctx)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, created.ID, orders[0].ID)
}
