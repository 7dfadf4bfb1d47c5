package domain

import "encoding/json"

// Collection keys under which each entity set persists, shared by every
// context of the same deployment.
const (
	OrdersKey = "restaurant_orders"
	CallsKey  = "restaurant_calls"
	TablesKey = "restaurant_tables"
)

// Change-bus event names. Every event means "re-list the collection";
// payloads are advisory, never a diff to apply.
const (
	EventOrdersUpdated = "orders_updated"
	EventCallsUpdated  = "calls_updated"
	EventTablesUpdated = "tables_updated"
)

// EventForKey maps a storage notification back to its bus event.
func EventForKey(key string) (string, bool) {
	switch key {
	case OrdersKey:
		return EventOrdersUpdated, true
	case CallsKey:
		return EventCallsUpdated, true
	case TablesKey:
		return EventTablesUpdated, true
	}
	return "", false
}

// Broadcast payload types carried on the relay fanout.
const (
	UpdateOrder = "ORDER_UPDATE"
	UpdateCall  = "CALL_UPDATE"
	UpdateTable = "TABLE_UPDATE"
)

// Update is the record-level notification published to other contexts.
type Update struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// EventForUpdate maps a relay message type back to its bus event.
func EventForUpdate(updateType string) (string, bool) {
	switch updateType {
	case UpdateOrder:
		return EventOrdersUpdated, true
	case UpdateCall:
		return EventCallsUpdated, true
	case UpdateTable:
		return EventTablesUpdated, true
	}
	return "", false
}
