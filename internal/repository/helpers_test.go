package repository

import (
	"github.com/Braavos-Developer/diner-design/internal/bus"
	"github.com/Braavos-Developer/diner-design/internal/common/logger"
	"github.com/Braavos-Developer/diner-design/internal/store"
)

type env struct {
	backend *store.Memory
	store   store.Store
	bus     *bus.Bus
	orders  *Orders
	calls   *Calls
	tables  *Tables
}

// newEnv builds one isolated context: its own store handle, bus and repos.
func newEnv(rate float64) *env {
	backend := store.NewMemory()
	return openEnv(backend, rate)
}

// openEnv builds an extra context over an existing backend, simulating a
// second tab of the same origin.
func openEnv(backend *store.Memory, rate float64) *env {
	st := backend.Open()
	b := bus.New()
	lg := logger.New("test")
	tables := NewTables(st, b, nil, lg)
	calls := NewCalls(st, b, nil, lg)
	orders := NewOrders(st, b, nil, calls, tables, rate, lg)
	return &env{backend: backend, store: st, bus: b, orders: orders, calls: calls, tables: tables}
}

func strPtr(s string) *string { return &s }
