package port

import (
	"context"

	"github.com/mvribeiro/zapstore/internal/core/domain"
)

// ListFilter narrows and pages a store's order listing. Zero values mean
// "no filter"; Page and Limit are normalized by the service.
type ListFilter struct {
	Status        domain.OrderStatus
	CustomerName  string
	CustomerPhone string
	Page          int
	Limit         int
}

type OrderRepository interface {
	// CreateOrder runs the whole placement inside one transaction:
	// stock reservation, aggregate assembly, and row inserts commit or
	// roll back together.
	CreateOrder(ctx context.Context, draft domain.OrderDraft) (domain.Order, error)

	// FindByID loads an order with its items.
	FindByID(ctx context.Context, id string) (domain.Order, error)

	// ListByStore returns one page of a store's orders (without items)
	// plus the total match count.
	ListByStore(ctx context.Context, storeID string, filter ListFilter) ([]domain.Order, int, error)

	// UpdateStatus sets the order's status and bumps updated_at.
	UpdateStatus(ctx context.Context, id string, status domain.OrderStatus) (domain.Order, error)
}
