// Package domain holds the restaurant entities shared by every surface:
// orders, waiter calls and tables, plus their status machines and the
// change-event vocabulary that keeps the views in sync.
package domain

import (
	"math"
	"time"
)

type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderPreparing OrderStatus = "preparing"
	OrderReady     OrderStatus = "ready"
	OrderDelivered OrderStatus = "delivered"
	OrderCancelled OrderStatus = "cancelled"
)

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderPending, OrderPreparing, OrderReady, OrderDelivered, OrderCancelled:
		return true
	}
	return false
}

// Active reports whether the order still needs kitchen attention.
func (s OrderStatus) Active() bool {
	return s == OrderPending || s == OrderPreparing || s == OrderReady
}

// CanTransitionTo enforces the forward-only lifecycle; cancellation is the
// only side exit and is allowed from pending and preparing.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	switch s {
	case OrderPending:
		return next == OrderPreparing || next == OrderCancelled
	case OrderPreparing:
		return next == OrderReady || next == OrderCancelled
	case OrderReady:
		return next == OrderDelivered
	}
	return false
}

type Station string

const (
	StationKitchen Station = "kitchen"
	StationBar     Station = "bar"
	StationDessert Station = "dessert"
)

func (s Station) Valid() bool {
	return s == StationKitchen || s == StationBar || s == StationDessert
}

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

func (p Priority) Valid() bool {
	return p == PriorityLow || p == PriorityNormal || p == PriorityHigh || p == PriorityUrgent
}

// Rank orders priorities for display, urgent first.
func (p Priority) Rank() int {
	switch p {
	case PriorityUrgent:
		return 0
	case PriorityHigh:
		return 1
	case PriorityNormal:
		return 2
	default:
		return 3
	}
}

type OrderItem struct {
	ID        string   `json:"id"`
	ProductID string   `json:"productId"`
	Name      string   `json:"name"`
	Quantity  int      `json:"quantity"`
	UnitPrice float64  `json:"unitPrice"`
	LineTotal float64  `json:"lineTotal"`
	Notes     string   `json:"notes,omitempty"`
	Allergens []string `json:"allergens,omitempty"`
}

type Order struct {
	ID            string      `json:"id"`
	TableNumber   int         `json:"tableNumber"`
	Items         []OrderItem `json:"items"`
	Status        OrderStatus `json:"status"`
	Station       Station     `json:"station"`
	Priority      Priority    `json:"priority"`
	Subtotal      float64     `json:"subtotal"`
	ServiceCharge float64     `json:"serviceCharge"`
	Total         float64     `json:"total"`
	CustomerNotes string      `json:"customerNotes,omitempty"`
	CreatedAt     time.Time   `json:"createdAt"`
	UpdatedAt     time.Time   `json:"updatedAt"`
	StartedAt     *time.Time  `json:"startedAt,omitempty"`
	ReadyAt       *time.Time  `json:"readyAt,omitempty"`
	DeliveredAt   *time.Time  `json:"deliveredAt,omitempty"`
}

// Recalculate derives line totals, the subtotal, the service charge at the
// given rate, and the grand total. Amounts are rounded to cents.
func (o *Order) Recalculate(serviceChargeRate float64) {
	subtotal := 0.0
	for i := range o.Items {
		o.Items[i].LineTotal = roundCents(float64(o.Items[i].Quantity) * o.Items[i].UnitPrice)
		subtotal += o.Items[i].LineTotal
	}
	o.Subtotal = roundCents(subtotal)
	o.ServiceCharge = roundCents(o.Subtotal * serviceChargeRate)
	o.Total = roundCents(o.Subtotal + o.ServiceCharge)
}

func roundCents(v float64) float64 { return math.Round(v*100) / 100 }

type CallReason string

const (
	CallWater      CallReason = "water"
	CallUtensils   CallReason = "utensils"
	CallBill       CallReason = "bill"
	CallAssistance CallReason = "assistance"
	CallComplaint  CallReason = "complaint"
	CallOrderReady CallReason = "order_ready"
)

func (r CallReason) Valid() bool {
	switch r {
	case CallWater, CallUtensils, CallBill, CallAssistance, CallComplaint, CallOrderReady:
		return true
	}
	return false
}

type CallStatus string

const (
	CallPending   CallStatus = "pending"
	CallAttending CallStatus = "attending"
	CallResolved  CallStatus = "resolved"
)

func (s CallStatus) Valid() bool {
	return s == CallPending || s == CallAttending || s == CallResolved
}

// Open reports whether the call still demands staff attention.
func (s CallStatus) Open() bool { return s == CallPending || s == CallAttending }

// CanTransitionTo allows pending→attending→resolved; staff may also resolve
// a pending call directly.
func (s CallStatus) CanTransitionTo(next CallStatus) bool {
	switch s {
	case CallPending:
		return next == CallAttending || next == CallResolved
	case CallAttending:
		return next == CallResolved
	}
	return false
}

type WaiterCall struct {
	ID          string     `json:"id"`
	TableNumber int        `json:"tableNumber"`
	Reason      CallReason `json:"reason"`
	Message     string     `json:"message,omitempty"`
	Priority    Priority   `json:"priority"`
	Status      CallStatus `json:"status"`
	CreatedAt   time.Time  `json:"createdAt"`
	AcceptedAt  *time.Time `json:"acceptedAt,omitempty"`
	ResolvedAt  *time.Time `json:"resolvedAt,omitempty"`
}

type TableStatus string

const (
	TableAvailable     TableStatus = "available"
	TableOccupied      TableStatus = "occupied"
	TableReserved      TableStatus = "reserved"
	TableNeedsService  TableStatus = "needs_service"
	TableNeedsCleaning TableStatus = "needs_cleaning"
	TableOutOfOrder    TableStatus = "out_of_order"
)

func (s TableStatus) Valid() bool {
	switch s {
	case TableAvailable, TableOccupied, TableReserved, TableNeedsService, TableNeedsCleaning, TableOutOfOrder:
		return true
	}
	return false
}

type Table struct {
	ID             string      `json:"id"`
	Number         int         `json:"number"`
	Capacity       int         `json:"capacity"`
	Section        string      `json:"section,omitempty"`
	Status         TableStatus `json:"status"`
	CurrentOrderID string      `json:"currentOrderId,omitempty"`
	CreatedAt      time.Time   `json:"createdAt"`
	UpdatedAt      time.Time   `json:"updatedAt"`
}
