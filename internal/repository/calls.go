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

// Calls owns the restaurant_calls collection. One open call per table is
// enforced on every create; accepted/resolved timestamps are set once.
type Calls struct {
	c     collection[domain.WaiterCall]
	relay Broadcaster
	lg    *logger.Logger
}

func NewCalls(st store.Store, b *bus.Bus, relay Broadcaster, lg *logger.Logger) *Calls {
	return &Calls{
		c: collection[domain.WaiterCall]{
			st: st, bus: b, lg: lg,
			key:   domain.CallsKey,
			event: domain.EventCallsUpdated,
		},
		relay: relay,
		lg:    lg,
	}
}

type CreateCallInput struct {
	TableNumber int               `json:"tableNumber"`
	Reason      domain.CallReason `json:"reason"`
	Message     string            `json:"message,omitempty"`
	Priority    domain.Priority   `json:"priority,omitempty"`
}

type UpdateCallInput struct {
	Status   *domain.CallStatus `json:"status,omitempty"`
	Message  *string            `json:"message,omitempty"`
	Priority *domain.Priority   `json:"priority,omitempty"`
}

func (c *Calls) List(ctx context.Context) ([]domain.WaiterCall, error) {
	records, _, err := c.c.list(ctx)
	return records, err
}

func (c *Calls) Get(ctx context.Context, id string) (domain.WaiterCall, error) {
	records, _, err := c.c.list(ctx)
	if err != nil {
		return domain.WaiterCall{}, err
	}
	for _, r := range records {
		if r.ID == id {
			return r, nil
		}
	}
	return domain.WaiterCall{}, fmt.Errorf("call %s: %w", id, domain.ErrNotFound)
}

func (c *Calls) Create(ctx context.Context, in CreateCallInput) (domain.WaiterCall, error) {
	if in.TableNumber <= 0 {
		return domain.WaiterCall{}, fmt.Errorf("%w: table number is required", domain.ErrInvalid)
	}
	if !in.Reason.Valid() {
		return domain.WaiterCall{}, fmt.Errorf("%w: unknown reason %q", domain.ErrInvalid, in.Reason)
	}
	priority := in.Priority
	if priority == "" {
		priority = domain.PriorityNormal
	}
	if !priority.Valid() {
		return domain.WaiterCall{}, fmt.Errorf("%w: unknown priority %q", domain.ErrInvalid, priority)
	}

	call := domain.WaiterCall{
		ID:          newID("call"),
		TableNumber: in.TableNumber,
		Reason:      in.Reason,
		Message:     in.Message,
		Priority:    priority,
		Status:      domain.CallPending,
		CreatedAt:   time.Now().UTC(),
	}

	if _, err := c.c.mutate(ctx, func(records []domain.WaiterCall) ([]domain.WaiterCall, error) {
		// The duplicate check runs inside the optimistic loop so a racing
		// create from another context cannot slip a second open call in.
		for _, r := range records {
			if r.TableNumber == in.TableNumber && r.Status.Open() {
				return nil, fmt.Errorf("%w: table %d already has an open call", domain.ErrConflict, in.TableNumber)
			}
		}
		return append(records, call), nil
	}); err != nil {
		return domain.WaiterCall{}, err
	}

	c.c.notify(call)
	c.broadcast(call)
	c.lg.Info("call_created", map[string]any{"call_id": call.ID, "table": call.TableNumber, "reason": string(call.Reason)})
	return call, nil
}

func (c *Calls) Update(ctx context.Context, id string, in UpdateCallInput) (domain.WaiterCall, error) {
	if in.Status != nil && !in.Status.Valid() {
		return domain.WaiterCall{}, fmt.Errorf("%w: unknown status %q", domain.ErrInvalid, *in.Status)
	}
	if in.Priority != nil && !in.Priority.Valid() {
		return domain.WaiterCall{}, fmt.Errorf("%w: unknown priority %q", domain.ErrInvalid, *in.Priority)
	}

	var updated domain.WaiterCall
	if _, err := c.c.mutate(ctx, func(records []domain.WaiterCall) ([]domain.WaiterCall, error) {
		idx := -1
		for i, r := range records {
			if r.ID == id {
				idx = i
				break
			}
		}
		if idx < 0 {
			return nil, fmt.Errorf("call %s: %w", id, domain.ErrNotFound)
		}
		rec := records[idx]
		now := time.Now().UTC()

		if in.Status != nil && *in.Status != rec.Status {
			if !rec.Status.CanTransitionTo(*in.Status) {
				return nil, fmt.Errorf("%w: call %s cannot go %s -> %s", domain.ErrConflict, id, rec.Status, *in.Status)
			}
			rec.Status = *in.Status
			switch rec.Status {
			case domain.CallAttending:
				if rec.AcceptedAt == nil {
					rec.AcceptedAt = &now
				}
			case domain.CallResolved:
				if rec.ResolvedAt == nil {
					rec.ResolvedAt = &now
				}
			}
		}
		if in.Message != nil {
			rec.Message = *in.Message
		}
		if in.Priority != nil {
			rec.Priority = *in.Priority
		}

		records[idx] = rec
		updated = rec
		return records, nil
	}); err != nil {
		return domain.WaiterCall{}, err
	}

	c.c.notify(updated)
	c.broadcast(updated)
	return updated, nil
}

func (c *Calls) Delete(ctx context.Context, id string) error {
	var removed domain.WaiterCall
	if _, err := c.c.mutate(ctx, func(records []domain.WaiterCall) ([]domain.WaiterCall, error) {
		for i, r := range records {
			if r.ID == id {
				removed = r
				return append(records[:i:i], records[i+1:]...), nil
			}
		}
		return nil, fmt.Errorf("call %s: %w", id, domain.ErrNotFound)
	}); err != nil {
		return err
	}
	c.c.notify(removed)
	c.broadcast(removed)
	return nil
}

// ClearAll wipes the collection. Demo reset only.
func (c *Calls) ClearAll(ctx context.Context) error {
	if _, err := c.c.mutate(ctx, func([]domain.WaiterCall) ([]domain.WaiterCall, error) {
		return []domain.WaiterCall{}, nil
	}); err != nil {
		return err
	}
	c.c.notify(nil)
	return nil
}

func (c *Calls) broadcast(call domain.WaiterCall) {
	if c.relay == nil {
		return
	}
	if err := c.relay.Broadcast(domain.UpdateCall, call); err != nil {
		c.lg.Error("broadcast_failed", err, map[string]any{"call_id": call.ID})
	}
}
