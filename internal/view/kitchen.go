package view

import (
	"context"
	"sort"
	"time"

	"github.com/Braavos-Developer/diner-design/internal/bus"
	"github.com/Braavos-Developer/diner-design/internal/common/logger"
	"github.com/Braavos-Developer/diner-design/internal/domain"
	"github.com/Braavos-Developer/diner-design/internal/repository"
)

// Kitchen renders the ticket queue for one station, oldest first.
type Kitchen struct {
	orders  *repository.Orders
	bus     *bus.Bus
	station domain.Station
	lg      *logger.Logger
}

func NewKitchen(orders *repository.Orders, b *bus.Bus, station domain.Station, lg *logger.Logger) *Kitchen {
	return &Kitchen{orders: orders, bus: b, station: station, lg: lg.With(map[string]any{"station": string(station)})}
}

func (k *Kitchen) Run(ctx context.Context) error {
	refresh, cancel := subscribeRefresh(k.bus, domain.EventOrdersUpdated)
	defer cancel()

	k.render(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-refresh:
			k.render(ctx)
		}
	}
}

func (k *Kitchen) render(ctx context.Context) {
	orders, err := k.orders.List(ctx)
	if err != nil {
		k.lg.Error("render_failed", err, nil)
		return
	}

	tickets := orders[:0:0]
	for _, o := range orders {
		if o.Station == k.station && o.Status.Active() {
			tickets = append(tickets, o)
		}
	}
	sort.Slice(tickets, func(i, j int) bool {
		if tickets[i].Priority.Rank() != tickets[j].Priority.Rank() {
			return tickets[i].Priority.Rank() < tickets[j].Priority.Rank()
		}
		return tickets[i].CreatedAt.Before(tickets[j].CreatedAt)
	})

	k.lg.Info("kds_board", map[string]any{"tickets": len(tickets)})
	now := time.Now().UTC()
	for _, t := range tickets {
		k.lg.Info("kds_ticket", map[string]any{
			"order_id":    t.ID,
			"table":       t.TableNumber,
			"status":      string(t.Status),
			"priority":    string(t.Priority),
			"items":       len(t.Items),
			"age_seconds": int(now.Sub(t.CreatedAt).Seconds()),
		})
	}
}
