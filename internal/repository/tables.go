package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/Braavos-Developer/diner-design/internal/bus"
	"github.com/Braavos-Developer/diner-design/internal/common/logger"
	"github.com/Braavos-Developer/diner-design/internal/domain"
	"github.com/Braavos-Developer/diner-design/internal/store"
)

// Tables owns the restaurant_tables collection. Table numbers are unique.
type Tables struct {
	c     collection[domain.Table]
	relay Broadcaster
	lg    *logger.Logger
}

func NewTables(st store.Store, b *bus.Bus, relay Broadcaster, lg *logger.Logger) *Tables {
	return &Tables{
		c: collection[domain.Table]{
			st: st, bus: b, lg: lg,
			key:   domain.TablesKey,
			event: domain.EventTablesUpdated,
		},
		relay: relay,
		lg:    lg,
	}
}

type CreateTableInput struct {
	Number   int    `json:"number"`
	Capacity int    `json:"capacity"`
	Section  string `json:"section,omitempty"`
}

type UpdateTableInput struct {
	Status   *domain.TableStatus `json:"status,omitempty"`
	Capacity *int                `json:"capacity,omitempty"`
	Section  *string             `json:"section,omitempty"`
}

func (t *Tables) List(ctx context.Context) ([]domain.Table, error) {
	records, _, err := t.c.list(ctx)
	return records, err
}

func (t *Tables) Get(ctx context.Context, id string) (domain.Table, error) {
	records, _, err := t.c.list(ctx)
	if err != nil {
		return domain.Table{}, err
	}
	for _, r := range records {
		if r.ID == id {
			return r, nil
		}
	}
	return domain.Table{}, fmt.Errorf("table %s: %w", id, domain.ErrNotFound)
}

func (t *Tables) Create(ctx context.Context, in CreateTableInput) (domain.Table, error) {
	if in.Number <= 0 {
		return domain.Table{}, fmt.Errorf("%w: table number is required", domain.ErrInvalid)
	}
	if in.Capacity <= 0 {
		return domain.Table{}, fmt.Errorf("%w: capacity is required", domain.ErrInvalid)
	}

	now := time.Now().UTC()
	table := domain.Table{
		ID:        newID("table"),
		Number:    in.Number,
		Capacity:  in.Capacity,
		Section:   in.Section,
		Status:    domain.TableAvailable,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if _, err := t.c.mutate(ctx, func(records []domain.Table) ([]domain.Table, error) {
		for _, r := range records {
			if r.Number == in.Number {
				return nil, fmt.Errorf("%w: table number %d already exists", domain.ErrConflict, in.Number)
			}
		}
		return append(records, table), nil
	}); err != nil {
		return domain.Table{}, err
	}

	t.c.notify(table)
	t.broadcast(table)
	return table, nil
}

func (t *Tables) Update(ctx context.Context, id string, in UpdateTableInput) (domain.Table, error) {
	if in.Status != nil && !in.Status.Valid() {
		return domain.Table{}, fmt.Errorf("%w: unknown table status %q", domain.ErrInvalid, *in.Status)
	}
	if in.Capacity != nil && *in.Capacity <= 0 {
		return domain.Table{}, fmt.Errorf("%w: capacity must be positive", domain.ErrInvalid)
	}

	var updated domain.Table
	if _, err := t.c.mutate(ctx, func(records []domain.Table) ([]domain.Table, error) {
		idx := -1
		for i, r := range records {
			if r.ID == id {
				idx = i
				break
			}
		}
		if idx < 0 {
			return nil, fmt.Errorf("table %s: %w", id, domain.ErrNotFound)
		}
		rec := records[idx]
		if in.Status != nil {
			rec.Status = *in.Status
		}
		if in.Capacity != nil {
			rec.Capacity = *in.Capacity
		}
		if in.Section != nil {
			rec.Section = *in.Section
		}
		rec.UpdatedAt = time.Now().UTC()
		records[idx] = rec
		updated = rec
		return records, nil
	}); err != nil {
		return domain.Table{}, err
	}

	t.c.notify(updated)
	t.broadcast(updated)
	return updated, nil
}

func (t *Tables) Delete(ctx context.Context, id string) error {
	var removed domain.Table
	if _, err := t.c.mutate(ctx, func(records []domain.Table) ([]domain.Table, error) {
		for i, r := range records {
			if r.ID == id {
				removed = r
				return append(records[:i:i], records[i+1:]...), nil
			}
		}
		return nil, fmt.Errorf("table %s: %w", id, domain.ErrNotFound)
	}); err != nil {
		return err
	}
	t.c.notify(removed)
	t.broadcast(removed)
	return nil
}

// MarkOccupied links an open order to its table. Unknown table numbers are
// tolerated: walk-in demos create orders for tables nobody registered.
func (t *Tables) MarkOccupied(ctx context.Context, number int, orderID string) error {
	var updated *domain.Table
	if _, err := t.c.mutate(ctx, func(records []domain.Table) ([]domain.Table, error) {
		updated = nil
		for i, r := range records {
			if r.Number == number {
				r.Status = domain.TableOccupied
				r.CurrentOrderID = orderID
				r.UpdatedAt = time.Now().UTC()
				records[i] = r
				updated = &records[i]
				break
			}
		}
		return records, nil
	}); err != nil {
		return err
	}
	if updated != nil {
		t.c.notify(*updated)
		t.broadcast(*updated)
	}
	return nil
}

// ReleaseOrder clears the table's link to orderID and moves the table to
// the given status. A table already linked to a different order is left
// alone.
func (t *Tables) ReleaseOrder(ctx context.Context, number int, orderID string, status domain.TableStatus) error {
	var updated *domain.Table
	if _, err := t.c.mutate(ctx, func(records []domain.Table) ([]domain.Table, error) {
		updated = nil
		for i, r := range records {
			if r.Number == number && r.CurrentOrderID == orderID {
				r.CurrentOrderID = ""
				r.Status = status
				r.UpdatedAt = time.Now().UTC()
				records[i] = r
				updated = &records[i]
				break
			}
		}
		return records, nil
	}); err != nil {
		return err
	}
	if updated != nil {
		t.c.notify(*updated)
		t.broadcast(*updated)
	}
	return nil
}

// ClearAll wipes the collection. Demo reset only.
func (t *Tables) ClearAll(ctx context.Context) error {
	if _, err := t.c.mutate(ctx, func([]domain.Table) ([]domain.Table, error) {
		return []domain.Table{}, nil
	}); err != nil {
		return err
	}
	t.c.notify(nil)
	return nil
}

// Seed creates the default 12-table floor once, when the collection is
// still empty. Safe to call on every boot.
func (t *Tables) Seed(ctx context.Context) error {
	existing, err := t.List(ctx)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return nil
	}
	for i := 1; i <= 12; i++ {
		capacity := 2
		if i > 4 {
			capacity = 4
		}
		if i > 8 {
			capacity = 6
		}
		section := "A"
		if i > 4 {
			section = "B"
		}
		if i > 8 {
			section = "C"
		}
		if _, err := t.Create(ctx, CreateTableInput{Number: i, Capacity: capacity, Section: section}); err != nil {
			return fmt.Errorf("seed table %d: %w", i, err)
		}
	}
	t.lg.Info("tables_seeded", map[string]any{"count": 12})
	return nil
}

func (t *Tables) broadcast(table domain.Table) {
	if t.relay == nil {
		return
	}
	if err := t.relay.Broadcast(domain.UpdateTable, table); err != nil {
		t.lg.Error("broadcast_failed", err, map[string]any{"table_id": table.ID})
	}
}
