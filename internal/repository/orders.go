package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Braavos-Developer/diner-design/internal/bus"
	"github.com/Braavos-Developer/diner-design/internal/common/logger"
	"github.com/Braavos-Developer/diner-design/internal/domain"
	"github.com/Braavos-Developer/diner-design/internal/store"
)

// Orders owns the restaurant_orders collection: identity, totals, the
// forward-only status machine and its set-once timestamps.
type Orders struct {
	c                 collection[domain.Order]
	relay             Broadcaster
	calls             *Calls
	tables            *Tables
	serviceChargeRate float64
	lg                *logger.Logger
}

// NewOrders wires the orders repository. relay, calls and tables may be nil;
// calls enables the order-ready waiter call, tables keeps the floor board in
// step with order lifecycles.
func NewOrders(st store.Store, b *bus.Bus, relay Broadcaster, calls *Calls, tables *Tables, serviceChargeRate float64, lg *logger.Logger) *Orders {
	return &Orders{
		c: collection[domain.Order]{
			st: st, bus: b, lg: lg,
			key:   domain.OrdersKey,
			event: domain.EventOrdersUpdated,
		},
		relay:             relay,
		calls:             calls,
		tables:            tables,
		serviceChargeRate: serviceChargeRate,
		lg:                lg,
	}
}

type OrderItemInput struct {
	ProductID string   `json:"productId"`
	Name      string   `json:"name"`
	Quantity  int      `json:"quantity"`
	UnitPrice float64  `json:"unitPrice"`
	Notes     string   `json:"notes,omitempty"`
	Allergens []string `json:"allergens,omitempty"`
}

type CreateOrderInput struct {
	TableNumber   int              `json:"tableNumber"`
	Station       domain.Station   `json:"station"`
	Priority      domain.Priority  `json:"priority"`
	Items         []OrderItemInput `json:"items"`
	CustomerNotes string           `json:"customerNotes,omitempty"`
}

type UpdateOrderInput struct {
	Status        *domain.OrderStatus `json:"status,omitempty"`
	Station       *domain.Station     `json:"station,omitempty"`
	Priority      *domain.Priority    `json:"priority,omitempty"`
	Items         []OrderItemInput    `json:"items,omitempty"`
	CustomerNotes *string             `json:"customerNotes,omitempty"`
}

func (o *Orders) List(ctx context.Context) ([]domain.Order, error) {
	records, _, err := o.c.list(ctx)
	return records, err
}

func (o *Orders) Get(ctx context.Context, id string) (domain.Order, error) {
	records, _, err := o.c.list(ctx)
	if err != nil {
		return domain.Order{}, err
	}
	for _, r := range records {
		if r.ID == id {
			return r, nil
		}
	}
	return domain.Order{}, fmt.Errorf("order %s: %w", id, domain.ErrNotFound)
}

func (o *Orders) Create(ctx context.Context, in CreateOrderInput) (domain.Order, error) {
	if err := validateOrderInput(in); err != nil {
		return domain.Order{}, err
	}
	station := in.Station
	if station == "" {
		station = domain.StationKitchen
	}
	priority := in.Priority
	if priority == "" {
		priority = domain.PriorityNormal
	}

	now := time.Now().UTC()
	order := domain.Order{
		ID:            newID("order"),
		TableNumber:   in.TableNumber,
		Items:         buildItems(in.Items),
		Status:        domain.OrderPending,
		Station:       station,
		Priority:      priority,
		CustomerNotes: in.CustomerNotes,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	order.Recalculate(o.serviceChargeRate)

	if _, err := o.c.mutate(ctx, func(records []domain.Order) ([]domain.Order, error) {
		return append(records, order), nil
	}); err != nil {
		return domain.Order{}, err
	}

	o.c.notify(order)
	o.broadcast(order)
	if o.tables != nil {
		if err := o.tables.MarkOccupied(ctx, order.TableNumber, order.ID); err != nil {
			o.lg.Error("table_link_failed", err, map[string]any{"order_id": order.ID, "table": order.TableNumber})
		}
	}
	o.lg.Info("order_created", map[string]any{"order_id": order.ID, "table": order.TableNumber, "total": order.Total})
	return order, nil
}

func (o *Orders) Update(ctx context.Context, id string, in UpdateOrderInput) (domain.Order, error) {
	if in.Status != nil && !in.Status.Valid() {
		return domain.Order{}, fmt.Errorf("%w: unknown status %q", domain.ErrInvalid, *in.Status)
	}
	if in.Station != nil && !in.Station.Valid() {
		return domain.Order{}, fmt.Errorf("%w: unknown station %q", domain.ErrInvalid, *in.Station)
	}
	if in.Priority != nil && !in.Priority.Valid() {
		return domain.Order{}, fmt.Errorf("%w: unknown priority %q", domain.ErrInvalid, *in.Priority)
	}
	if in.Items != nil {
		if err := validateItems(in.Items); err != nil {
			return domain.Order{}, err
		}
	}

	var updated domain.Order
	var previous domain.OrderStatus
	if _, err := o.c.mutate(ctx, func(records []domain.Order) ([]domain.Order, error) {
		idx := -1
		for i, r := range records {
			if r.ID == id {
				idx = i
				break
			}
		}
		if idx < 0 {
			return nil, fmt.Errorf("order %s: %w", id, domain.ErrNotFound)
		}
		rec := records[idx]
		previous = rec.Status
		now := time.Now().UTC()

		if in.Status != nil && *in.Status != rec.Status {
			if !rec.Status.CanTransitionTo(*in.Status) {
				return nil, fmt.Errorf("%w: order %s cannot go %s -> %s", domain.ErrConflict, id, rec.Status, *in.Status)
			}
			rec.Status = *in.Status
			// Lifecycle timestamps are set exactly once, on first entry.
			switch rec.Status {
			case domain.OrderPreparing:
				if rec.StartedAt == nil {
					rec.StartedAt = &now
				}
			case domain.OrderReady:
				if rec.ReadyAt == nil {
					rec.ReadyAt = &now
				}
			case domain.OrderDelivered:
				if rec.DeliveredAt == nil {
					rec.DeliveredAt = &now
				}
			}
		}
		if in.Station != nil {
			rec.Station = *in.Station
		}
		if in.Priority != nil {
			rec.Priority = *in.Priority
		}
		if in.CustomerNotes != nil {
			rec.CustomerNotes = *in.CustomerNotes
		}
		if in.Items != nil {
			rec.Items = buildItems(in.Items)
			rec.Recalculate(o.serviceChargeRate)
		}
		rec.UpdatedAt = now

		records[idx] = rec
		updated = rec
		return records, nil
	}); err != nil {
		return domain.Order{}, err
	}

	o.c.notify(updated)
	o.broadcast(updated)
	o.afterStatusChange(ctx, previous, updated)
	return updated, nil
}

func (o *Orders) Delete(ctx context.Context, id string) error {
	var removed domain.Order
	if _, err := o.c.mutate(ctx, func(records []domain.Order) ([]domain.Order, error) {
		for i, r := range records {
			if r.ID == id {
				removed = r
				return append(records[:i:i], records[i+1:]...), nil
			}
		}
		return nil, fmt.Errorf("order %s: %w", id, domain.ErrNotFound)
	}); err != nil {
		return err
	}
	o.c.notify(removed)
	o.broadcast(removed)
	return nil
}

// ClearAll wipes the collection. Demo reset only.
func (o *Orders) ClearAll(ctx context.Context) error {
	if _, err := o.c.mutate(ctx, func([]domain.Order) ([]domain.Order, error) {
		return []domain.Order{}, nil
	}); err != nil {
		return err
	}
	o.c.notify(nil)
	return nil
}

func (o *Orders) broadcast(order domain.Order) {
	if o.relay == nil {
		return
	}
	if err := o.relay.Broadcast(domain.UpdateOrder, order); err != nil {
		// The store notification still reaches other contexts.
		o.lg.Error("broadcast_failed", err, map[string]any{"order_id": order.ID})
	}
}

// afterStatusChange applies the cross-entity effects of a committed status
// transition. Failures here are logged, never bubbled: the order mutation
// already succeeded.
func (o *Orders) afterStatusChange(ctx context.Context, previous domain.OrderStatus, order domain.Order) {
	if previous == order.Status {
		return
	}
	switch order.Status {
	case domain.OrderReady:
		if o.calls == nil {
			return
		}
		_, err := o.calls.Create(ctx, CreateCallInput{
			TableNumber: order.TableNumber,
			Reason:      domain.CallOrderReady,
			Priority:    domain.PriorityHigh,
			Message:     fmt.Sprintf("Order %s is ready for table %d", order.ID, order.TableNumber),
		})
		if errors.Is(err, domain.ErrConflict) {
			// The table already has staff on the way.
			o.lg.Debug("order_ready_call_skipped", map[string]any{"order_id": order.ID, "table": order.TableNumber})
		} else if err != nil {
			o.lg.Error("order_ready_call_failed", err, map[string]any{"order_id": order.ID})
		}
	case domain.OrderDelivered:
		o.release(ctx, order, domain.TableNeedsService)
	case domain.OrderCancelled:
		o.release(ctx, order, domain.TableAvailable)
	}
}

func (o *Orders) release(ctx context.Context, order domain.Order, status domain.TableStatus) {
	if o.tables == nil {
		return
	}
	if err := o.tables.ReleaseOrder(ctx, order.TableNumber, order.ID, status); err != nil {
		o.lg.Error("table_release_failed", err, map[string]any{"order_id": order.ID, "table": order.TableNumber})
	}
}

func validateOrderInput(in CreateOrderInput) error {
	if in.TableNumber <= 0 {
		return fmt.Errorf("%w: table number is required", domain.ErrInvalid)
	}
	if in.Station != "" && !in.Station.Valid() {
		return fmt.Errorf("%w: unknown station %q", domain.ErrInvalid, in.Station)
	}
	if in.Priority != "" && !in.Priority.Valid() {
		return fmt.Errorf("%w: unknown priority %q", domain.ErrInvalid, in.Priority)
	}
	return validateItems(in.Items)
}

func validateItems(items []OrderItemInput) error {
	if len(items) == 0 {
		return fmt.Errorf("%w: at least one item is required", domain.ErrInvalid)
	}
	for _, item := range items {
		if item.Name == "" {
			return fmt.Errorf("%w: item name is required", domain.ErrInvalid)
		}
		if item.Quantity <= 0 {
			return fmt.Errorf("%w: invalid quantity for item %s", domain.ErrInvalid, item.Name)
		}
		if item.UnitPrice < 0 {
			return fmt.Errorf("%w: invalid price for item %s", domain.ErrInvalid, item.Name)
		}
	}
	return nil
}

func buildItems(inputs []OrderItemInput) []domain.OrderItem {
	items := make([]domain.OrderItem, 0, len(inputs))
	for _, in := range inputs {
		items = append(items, domain.OrderItem{
			ID:        newID("item"),
			ProductID: in.ProductID,
			Name:      in.Name,
			Quantity:  in.Quantity,
			UnitPrice: in.UnitPrice,
			Notes:     in.Notes,
			Allergens: in.Allergens,
		})
	}
	return items
}
