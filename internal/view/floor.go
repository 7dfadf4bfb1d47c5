package view

import (
	"context"
	"sort"

	"github.com/Braavos-Developer/diner-design/internal/bus"
	"github.com/Braavos-Developer/diner-design/internal/common/logger"
	"github.com/Braavos-Developer/diner-design/internal/domain"
	"github.com/Braavos-Developer/diner-design/internal/repository"
)

// Floor renders the waiter console: open calls by priority and age, plus
// the table board summary.
type Floor struct {
	calls  *repository.Calls
	tables *repository.Tables
	bus    *bus.Bus
	lg     *logger.Logger
}

func NewFloor(calls *repository.Calls, tables *repository.Tables, b *bus.Bus, lg *logger.Logger) *Floor {
	return &Floor{calls: calls, tables: tables, bus: b, lg: lg}
}

func (f *Floor) Run(ctx context.Context) error {
	refresh, cancel := subscribeRefresh(f.bus, domain.EventCallsUpdated, domain.EventTablesUpdated)
	defer cancel()

	f.render(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-refresh:
			f.render(ctx)
		}
	}
}

func (f *Floor) render(ctx context.Context) {
	calls, err := f.calls.List(ctx)
	if err != nil {
		f.lg.Error("render_failed", err, nil)
		return
	}
	open := calls[:0:0]
	for _, c := range calls {
		if c.Status.Open() {
			open = append(open, c)
		}
	}
	sort.Slice(open, func(i, j int) bool {
		if open[i].Priority.Rank() != open[j].Priority.Rank() {
			return open[i].Priority.Rank() < open[j].Priority.Rank()
		}
		return open[i].CreatedAt.Before(open[j].CreatedAt)
	})
	f.lg.Info("open_calls", map[string]any{"count": len(open)})
	for _, c := range open {
		f.lg.Info("waiter_call", map[string]any{
			"call_id":  c.ID,
			"table":    c.TableNumber,
			"reason":   string(c.Reason),
			"priority": string(c.Priority),
			"status":   string(c.Status),
		})
	}

	tables, err := f.tables.List(ctx)
	if err != nil {
		f.lg.Error("render_failed", err, nil)
		return
	}
	byStatus := make(map[string]int, 6)
	for _, t := range tables {
		byStatus[string(t.Status)]++
	}
	f.lg.Info("table_board", map[string]any{"tables": len(tables), "by_status": byStatus})
}
