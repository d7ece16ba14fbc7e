package domain

import "time"

type OrderStatus string

const (
	StatusPending   OrderStatus = "PENDENTE"
	StatusConfirmed OrderStatus = "CONFIRMADO"
	StatusPreparing OrderStatus = "PREPARANDO"
	StatusShipped   OrderStatus = "ENVIADO"
	StatusDelivered OrderStatus = "ENTREGUE"
	StatusCancelled OrderStatus = "CANCELADO"
)

// statusRank orders the forward path PENDENTE -> ... -> ENTREGUE.
// CANCELADO sits outside the path and is handled separately.
var statusRank = map[OrderStatus]int{
	StatusPending:   0,
	StatusConfirmed: 1,
	StatusPreparing: 2,
	StatusShipped:   3,
	StatusDelivered: 4,
}

// ParseStatus maps a persisted label to an OrderStatus.
func ParseStatus(s string) (OrderStatus, bool) {
	switch OrderStatus(s) {
	case StatusPending, StatusConfirmed, StatusPreparing, StatusShipped, StatusDelivered, StatusCancelled:
		return OrderStatus(s), true
	}
	return "", false
}

func (s OrderStatus) IsTerminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

// CanTransitionTo enforces the forward-only lifecycle: each status may advance
// one step along the path, CANCELADO is reachable from any non-terminal status,
// and repeating the current status is allowed (idempotent update).
func (s OrderStatus) CanTransitionTo(target OrderStatus) bool {
	if s == target {
		return true
	}
	if s.IsTerminal() {
		return false
	}
	if target == StatusCancelled {
		return true
	}
	from, okFrom := statusRank[s]
	to, okTo := statusRank[target]
	return okFrom && okTo && to == from+1
}

type Order struct {
	ID            string
	StoreID       string
	CustomerName  string
	CustomerPhone string
	CustomerEmail string // empty when not provided
	Status        OrderStatus
	Total         int64 // minor currency units
	Notes         string
	Items         []OrderItem
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type OrderItem struct {
	ID                 string
	OrderID            string
	ProductVariationID string
	Quantity           int
	UnitPrice          int64 // snapshot at purchase time, minor currency units
}

// Line is one requested (variation, quantity) pair of a placement.
type Line struct {
	VariationID string
	Quantity    int
}

// OrderDraft is a placement request after upstream shape validation.
// Lines must not contain duplicate variation ids.
type OrderDraft struct {
	StoreID       string
	CustomerName  string
	CustomerPhone string
	CustomerEmail string
	Notes         string
	Lines         []Line
}

// OrderCreatedEvent is the fact handed off to the notification channel
// after a placement commits.
type OrderCreatedEvent struct {
	OrderID   string    `json:"order_id"`
	StoreID   string    `json:"store_id"`
	Total     int64     `json:"total"`
	ItemCount int       `json:"item_count"`
	CreatedAt time.Time `json:"created_at"`
}
