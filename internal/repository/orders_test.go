package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Braavos-Developer/diner-design/internal/bus"
	"github.com/Braavos-Developer/diner-design/internal/domain"
)

func twoItemInput(table int) CreateOrderInput {
	return CreateOrderInput{
		TableNumber: table,
		Station:     domain.StationKitchen,
		Items: []OrderItemInput{
			{ProductID: "prod-1", Name: "Burger", Quantity: 1, UnitPrice: 10.00},
			{ProductID: "prod-2", Name: "Soda", Quantity: 1, UnitPrice: 5.00},
		},
	}
}

func TestCreateOrderComputesTotals(t *testing.T) {
	e := newEnv(0.10)
	order, err := e.orders.Create(context.Background(), twoItemInput(3))
	require.NoError(t, err)

	assert.Equal(t, 15.00, order.Subtotal)
	assert.Equal(t, 1.50, order.ServiceCharge)
	assert.Equal(t, 16.50, order.Total)
	assert.Equal(t, 10.00, order.Items[0].LineTotal)
	assert.Equal(t, domain.OrderPending, order.Status)
	assert.Equal(t, domain.PriorityNormal, order.Priority)
}

func TestCreateOrderWithoutServiceCharge(t *testing.T) {
	e := newEnv(0)
	order, err := e.orders.Create(context.Background(), twoItemInput(3))
	require.NoError(t, err)
	assert.Equal(t, 15.00, order.Total)
}

func TestCreatedOrdersAreListedWithUniqueIdentity(t *testing.T) {
	ctx := context.Background()
	e := newEnv(0.10)

	first, err := e.orders.Create(ctx, twoItemInput(1))
	require.NoError(t, err)
	second, err := e.orders.Create(ctx, twoItemInput(2))
	require.NoError(t, err)

	assert.NotEqual(t, first.ID, second.ID)
	assert.True(t, first.UpdatedAt.Equal(first.CreatedAt))

	orders, err := e.orders.List(ctx)
	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Equal(t, first.ID, orders[0].ID)
	assert.Equal(t, second.ID, orders[1].ID)
}

func TestTimestampsSurviveSerialization(t *testing.T) {
	ctx := context.Background()
	e := newEnv(0.10)

	created, err := e.orders.Create(ctx, twoItemInput(4))
	require.NoError(t, err)

	// List reads back through the store, so this exercises the full
	// serialize/deserialize round trip.
	orders, err := e.orders.List(ctx)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.True(t, created.CreatedAt.Equal(orders[0].CreatedAt))
	assert.True(t, created.UpdatedAt.Equal(orders[0].UpdatedAt))
}

func TestUpdateRefreshesUpdatedAt(t *testing.T) {
	ctx := context.Background()
	e := newEnv(0.10)

	order, err := e.orders.Create(ctx, twoItemInput(5))
	require.NoError(t, err)

	status := domain.OrderPreparing
	updated, err := e.orders.Update(ctx, order.ID, UpdateOrderInput{Status: &status})
	require.NoError(t, err)

	assert.True(t, updated.UpdatedAt.After(order.UpdatedAt))
	assert.True(t, updated.CreatedAt.Equal(order.CreatedAt))
}

func TestUpdateUnknownOrderFailsWithoutMutating(t *testing.T) {
	ctx := context.Background()
	e := newEnv(0.10)
	_, err := e.orders.Create(ctx, twoItemInput(1))
	require.NoError(t, err)

	status := domain.OrderPreparing
	_, err = e.orders.Update(ctx, "order-0-missing", UpdateOrderInput{Status: &status})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	err = e.orders.Delete(ctx, "order-0-missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	orders, err := e.orders.List(ctx)
	require.NoError(t, err)
	assert.Len(t, orders, 1)
	assert.Equal(t, domain.OrderPending, orders[0].Status)
}

func TestStatusMachineIsForwardOnly(t *testing.T) {
	ctx := context.Background()
	e := newEnv(0.10)
	order, err := e.orders.Create(ctx, twoItemInput(2))
	require.NoError(t, err)

	ready := domain.OrderReady
	_, err = e.orders.Update(ctx, order.ID, UpdateOrderInput{Status: &ready})
	assert.ErrorIs(t, err, domain.ErrConflict)

	preparing := domain.OrderPreparing
	updated, err := e.orders.Update(ctx, order.ID, UpdateOrderInput{Status: &preparing})
	require.NoError(t, err)
	require.NotNil(t, updated.StartedAt)
	startedAt := *updated.StartedAt

	// Writing the current status again is a harmless no-op and does not
	// move the set-once timestamp.
	again, err := e.orders.Update(ctx, order.ID, UpdateOrderInput{Status: &preparing})
	require.NoError(t, err)
	require.NotNil(t, again.StartedAt)
	assert.True(t, startedAt.Equal(*again.StartedAt))

	cancelled := domain.OrderCancelled
	_, err = e.orders.Update(ctx, order.ID, UpdateOrderInput{Status: &cancelled})
	require.NoError(t, err)

	delivered := domain.OrderDelivered
	_, err = e.orders.Update(ctx, order.ID, UpdateOrderInput{Status: &delivered})
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestLifecycleTimestampsAreSetOnce(t *testing.T) {
	ctx := context.Background()
	e := newEnv(0.10)
	order, err := e.orders.Create(ctx, twoItemInput(2))
	require.NoError(t, err)

	for _, status := range []domain.OrderStatus{domain.OrderPreparing, domain.OrderReady, domain.OrderDelivered} {
		s := status
		_, err = e.orders.Update(ctx, order.ID, UpdateOrderInput{Status: &s})
		require.NoError(t, err)
	}

	final, err := e.orders.Get(ctx, order.ID)
	require.NoError(t, err)
	require.NotNil(t, final.StartedAt)
	require.NotNil(t, final.ReadyAt)
	require.NotNil(t, final.DeliveredAt)
	assert.False(t, final.StartedAt.Before(final.CreatedAt))
	assert.False(t, final.ReadyAt.Before(*final.StartedAt))
	assert.False(t, final.DeliveredAt.Before(*final.ReadyAt))
}

func TestCreateValidatesInput(t *testing.T) {
	ctx := context.Background()
	e := newEnv(0.10)

	_, err := e.orders.Create(ctx, CreateOrderInput{TableNumber: 1})
	assert.ErrorIs(t, err, domain.ErrInvalid)

	in := twoItemInput(1)
	in.Items[0].Quantity = 0
	_, err = e.orders.Create(ctx, in)
	assert.ErrorIs(t, err, domain.ErrInvalid)

	in = twoItemInput(1)
	in.Station = "garage"
	_, err = e.orders.Create(ctx, in)
	assert.ErrorIs(t, err, domain.ErrInvalid)

	orders, err := e.orders.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, orders)
}

func TestCreatePublishesBeforeReturning(t *testing.T) {
	ctx := context.Background()
	e := newEnv(0.10)

	notified := false
	cancel := e.bus.Subscribe(domain.EventOrdersUpdated, func(bus.Event) { notified = true })
	defer cancel()

	_, err := e.orders.Create(ctx, twoItemInput(1))
	require.NoError(t, err)
	assert.True(t, notified)
}

func TestReadyOrderRaisesWaiterCall(t *testing.T) {
	ctx := context.Background()
	e := newEnv(0.10)

	order, err := e.orders.Create(ctx, twoItemInput(6))
	require.NoError(t, err)

	preparing := domain.OrderPreparing
	_, err = e.orders.Update(ctx, order.ID, UpdateOrderInput{Status: &preparing})
	require.NoError(t, err)

	ready := domain.OrderReady
	_, err = e.orders.Update(ctx, order.ID, UpdateOrderInput{Status: &ready})
	require.NoError(t, err)

	calls, err := e.calls.List(ctx)
	require.NoError(t, err)
	require.Len(t, calls, 1)
	assert.Equal(t, domain.CallOrderReady, calls[0].Reason)
	assert.Equal(t, 6, calls[0].TableNumber)
	assert.Equal(t, domain.PriorityHigh, calls[0].Priority)
}

func TestOrderLifecycleDrivesTableState(t *testing.T) {
	ctx := context.Background()
	e := newEnv(0.10)
	require.NoError(t, e.tables.Seed(ctx))

	order, err := e.orders.Create(ctx, twoItemInput(2))
	require.NoError(t, err)

	tables, err := e.tables.List(ctx)
	require.NoError(t, err)
	var table2 domain.Table
	for _, tb := range tables {
		if tb.Number == 2 {
			table2 = tb
		}
	}
	assert.Equal(t, domain.TableOccupied, table2.Status)
	assert.Equal(t, order.ID, table2.CurrentOrderID)

	for _, status := range []domain.OrderStatus{domain.OrderPreparing, domain.OrderReady, domain.OrderDelivered} {
		s := status
		_, err = e.orders.Update(ctx, order.ID, UpdateOrderInput{Status: &s})
		require.NoError(t, err)
	}

	refreshed, err := e.tables.Get(ctx, table2.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TableNeedsService, refreshed.Status)
	assert.Empty(t, refreshed.CurrentOrderID)
}

func TestUpdateItemsRecomputesTotals(t *testing.T) {
	ctx := context.Background()
	e := newEnv(0.10)
	order, err := e.orders.Create(ctx, twoItemInput(1))
	require.NoError(t, err)

	updated, err := e.orders.Update(ctx, order.ID, UpdateOrderInput{
		Items:         []OrderItemInput{{ProductID: "prod-3", Name: "Pizza", Quantity: 2, UnitPrice: 45.00}},
		CustomerNotes: strPtr("no basil"),
	})
	require.NoError(t, err)
	assert.Equal(t, 90.00, updated.Subtotal)
	assert.Equal(t, 9.00, updated.ServiceCharge)
	assert.Equal(t, 99.00, updated.Total)
	assert.Equal(t, "no basil", updated.CustomerNotes)
}

func TestDeleteRemovesOrder(t *testing.T) {
	ctx := context.Background()
	e := newEnv(0.10)
	order, err := e.orders.Create(ctx, twoItemInput(1))
	require.NoError(t, err)

	require.NoError(t, e.orders.Delete(ctx, order.ID))
	orders, err := e.orders.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, orders)

	_, err = e.orders.Get(ctx, order.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
