package view

import (
	"context"

	"github.com/Braavos-Developer/diner-design/internal/bus"
	"github.com/Braavos-Developer/diner-design/internal/common/logger"
	"github.com/Braavos-Developer/diner-design/internal/domain"
	"github.com/Braavos-Developer/diner-design/internal/repository"
)

// Client renders one table's own orders, the guest-facing status screen.
type Client struct {
	orders      *repository.Orders
	bus         *bus.Bus
	tableNumber int
	lg          *logger.Logger
}

func NewClient(orders *repository.Orders, b *bus.Bus, tableNumber int, lg *logger.Logger) *Client {
	return &Client{
		orders:      orders,
		bus:         b,
		tableNumber: tableNumber,
		lg:          lg.With(map[string]any{"table": tableNumber}),
	}
}

func (c *Client) Run(ctx context.Context) error {
	refresh, cancel := subscribeRefresh(c.bus, domain.EventOrdersUpdated)
	defer cancel()

	c.render(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-refresh:
			c.render(ctx)
		}
	}
}

func (c *Client) render(ctx context.Context) {
	orders, err := c.orders.List(ctx)
	if err != nil {
		c.lg.Error("render_failed", err, nil)
		return
	}
	mine := orders[:0:0]
	for _, o := range orders {
		if o.TableNumber == c.tableNumber {
			mine = append(mine, o)
		}
	}
	c.lg.Info("my_orders", map[string]any{"count": len(mine)})
	for _, o := range mine {
		c.lg.Info("order_status", map[string]any{
			"order_id": o.ID,
			"status":   string(o.Status),
			"items":    len(o.Items),
			"total":    o.Total,
		})
	}
}
