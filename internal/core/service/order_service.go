package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mvribeiro/zapstore/internal/core/domain"
	"github.com/mvribeiro/zapstore/internal/core/inventory"
	"github.com/mvribeiro/zapstore/internal/port"
)

var (
	ErrDuplicateRequest = errors.New("duplicate request")
	ErrEmptyOrder       = errors.New("order has no items")
)

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
)

type PlaceOrderInput struct {
	StoreID       string
	CustomerName  string
	CustomerPhone string
	CustomerEmail string
	Notes         string
	Items         []domain.Line

	// IdempotencyKey is optional. When set, a repeated placement with the
	// same key is rejected with ErrDuplicateRequest instead of creating a
	// second order.
	IdempotencyKey string
}

type OrderService struct {
	repo       port.OrderRepository
	cache      port.CacheRepository
	logger     *slog.Logger
	eventQueue chan domain.OrderCreatedEvent
}

func NewOrderService(repo port.OrderRepository, cache port.CacheRepository, logger *slog.Logger, queueSize int) *OrderService {
	return &OrderService{
		repo:       repo,
		cache:      cache,
		logger:     logger,
		eventQueue: make(chan domain.OrderCreatedEvent, queueSize),
	}
}

// PlaceOrder creates an order for a store: it merges duplicate lines,
// guards the optional idempotency key, and delegates the transactional
// stock-reservation-plus-insert to the repository. On success an
// order-created event is queued for asynchronous notification delivery.
func (s *OrderService) PlaceOrder(ctx context.Context, input PlaceOrderInput) (domain.Order, error) {
	if len(input.Items) == 0 {
		return domain.Order{}, ErrEmptyOrder
	}
	for _, line := range input.Items {
		if line.Quantity < 1 {
			return domain.Order{}, fmt.Errorf("%w: variation %s requested %d",
				inventory.ErrInvalidQuantity, line.VariationID, line.Quantity)
		}
	}

	if input.IdempotencyKey != "" {
		ok, err := s.cache.SetIdempotency(ctx, "order:idem:"+input.IdempotencyKey)
		if err != nil {
			return domain.Order{}, fmt.Errorf("idempotency check failed: %w", err)
		}
		if !ok {
			return domain.Order{}, ErrDuplicateRequest
		}
	}

	draft := domain.OrderDraft{
		StoreID:       input.StoreID,
		CustomerName:  input.CustomerName,
		CustomerPhone: input.CustomerPhone,
		CustomerEmail: input.CustomerEmail,
		Notes:         input.Notes,
		Lines:         inventory.MergeLines(input.Items),
	}

	order, err := s.repo.CreateOrder(ctx, draft)
	if err != nil {
		return domain.Order{}, err
	}

	event := domain.OrderCreatedEvent{
		OrderID:   order.ID,
		StoreID:   order.StoreID,
		Total:     order.Total,
		ItemCount: len(order.Items),
		CreatedAt: order.CreatedAt,
	}
	select {
	case s.eventQueue <- event:
	default:
		// Notification is best-effort; a full queue must not block or
		// fail a committed placement.
		s.logger.Warn("event queue full, dropping order-created event", "order_id", order.ID)
	}

	return order, nil
}

// UpdateOrderStatus moves an order along its lifecycle. Repeating the
// current status is allowed and only bumps updated_at. Inventory is never
// touched here: stock was spent at placement, and cancellation does not
// restock.
func (s *OrderService) UpdateOrderStatus(ctx context.Context, orderID string, target domain.OrderStatus) (domain.Order, error) {
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}

	if !order.Status.CanTransitionTo(target) {
		return domain.Order{}, &domain.InvalidTransitionError{From: order.Status, To: target}
	}

	return s.repo.UpdateStatus(ctx, orderID, target)
}

func (s *OrderService) GetOrder(ctx context.Context, orderID string) (domain.Order, error) {
	return s.repo.FindByID(ctx, orderID)
}

// ListOrders pages through a store's orders, newest first.
func (s *OrderService) ListOrders(ctx context.Context, storeID string, filter port.ListFilter) ([]domain.Order, int, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Limit < 1 {
		filter.Limit = defaultPageLimit
	}
	if filter.Limit > maxPageLimit {
		filter.Limit = maxPageLimit
	}
	return s.repo.ListByStore(ctx, storeID, filter)
}

// Events exposes the order-created queue for the notification workers.
func (s *OrderService) Events() <-chan domain.OrderCreatedEvent {
	return s.eventQueue
}

func (s *OrderService) Close() {
	close(s.eventQueue)
}
