package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/mvribeiro/zapstore/internal/core/domain"
	"github.com/mvribeiro/zapstore/internal/core/inventory"
	"github.com/mvribeiro/zapstore/internal/port"
)

// Mock OrderRepository
type mockOrderRepo struct {
	orders     map[string]domain.Order
	lastDraft  domain.OrderDraft
	createErr  error
	lastFilter port.ListFilter
	mu         sync.Mutex
}

func newMockOrderRepo() *mockOrderRepo {
	return &mockOrderRepo{orders: make(map[string]domain.Order)}
}

func (m *mockOrderRepo) CreateOrder(ctx context.Context, draft domain.OrderDraft) (domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.lastDraft = draft
	if m.createErr != nil {
		return domain.Order{}, m.createErr
	}

	now := time.Now()
	order := domain.Order{
		ID:            "order-1",
		StoreID:       draft.StoreID,
		CustomerName:  draft.CustomerName,
		CustomerPhone: draft.CustomerPhone,
		Status:        domain.StatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	for _, line := range draft.Lines {
		order.Items = append(order.Items, domain.OrderItem{
			OrderID:            order.ID,
			ProductVariationID: line.VariationID,
			Quantity:           line.Quantity,
			UnitPrice:          100,
		})
		order.Total += 100 * int64(line.Quantity)
	}
	m.orders[order.ID] = order
	return order, nil
}

func (m *mockOrderRepo) FindByID(ctx context.Context, id string) (domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	order, ok := m.orders[id]
	if !ok {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	return order, nil
}

func (m *mockOrderRepo) ListByStore(ctx context.Context, storeID string, filter port.ListFilter) ([]domain.Order, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.lastFilter = filter
	var orders []domain.Order
	for _, order := range m.orders {
		if order.StoreID == storeID {
			orders = append(orders, order)
		}
	}
	return orders, len(orders), nil
}

func (m *mockOrderRepo) UpdateStatus(ctx context.Context, id string, status domain.OrderStatus) (domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	order, ok := m.orders[id]
	if !ok {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	order.Status = status
	order.UpdatedAt = time.Now()
	m.orders[id] = order
	return order, nil
}

// Mock CacheRepository
type mockCacheRepo struct {
	idempotencySet map[string]bool
	mu             sync.Mutex
}

func newMockCacheRepo() *mockCacheRepo {
	return &mockCacheRepo{idempotencySet: make(map[string]bool)}
}

func (m *mockCacheRepo) SetIdempotency(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.idempotencySet[key] {
		return false, nil
	}
	m.idempotencySet[key] = true
	return true, nil
}

func newTestService(repo *mockOrderRepo, cache *mockCacheRepo) *OrderService {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewOrderService(repo, cache, log, 100)
}

func placeInput(items ...domain.Line) PlaceOrderInput {
	return PlaceOrderInput{
		StoreID:       "store-1",
		CustomerName:  "Ana",
		CustomerPhone: "+5511977776666",
		Items:         items,
	}
}

func TestPlaceOrder_Success(t *testing.T) {
	repo := newMockOrderRepo()
	svc := newTestService(repo, newMockCacheRepo())
	defer svc.Close()

	order, err := svc.PlaceOrder(context.Background(), placeInput(
		domain.Line{VariationID: "v1", Quantity: 3},
	))
	if err != nil {
		t.Fatalf("expected success, got: %v", err)
	}
	if order.Total != 300 {
		t.Errorf("expected total 300, got %d", order.Total)
	}

	// Order-created event must be queued for the notifier.
	select {
	case event := <-svc.Events():
		if event.OrderID != order.ID {
			t.Errorf("expected event for order %s, got %s", order.ID, event.OrderID)
		}
		if event.ItemCount != 1 {
			t.Errorf("expected item count 1, got %d", event.ItemCount)
		}
	default:
		t.Error("expected an order-created event on the queue")
	}
}

func TestPlaceOrder_MergesDuplicateLines(t *testing.T) {
	repo := newMockOrderRepo()
	svc := newTestService(repo, newMockCacheRepo())
	defer svc.Close()

	_, err := svc.PlaceOrder(context.Background(), placeInput(
		domain.Line{VariationID: "v1", Quantity: 1},
		domain.Line{VariationID: "v1", Quantity: 2},
	))
	if err != nil {
		t.Fatalf("expected success, got: %v", err)
	}

	if len(repo.lastDraft.Lines) != 1 {
		t.Fatalf("expected 1 merged line, got %d", len(repo.lastDraft.Lines))
	}
	if repo.lastDraft.Lines[0].Quantity != 3 {
		t.Errorf("expected merged quantity 3, got %d", repo.lastDraft.Lines[0].Quantity)
	}
}

func TestPlaceOrder_EmptyItems(t *testing.T) {
	svc := newTestService(newMockOrderRepo(), newMockCacheRepo())
	defer svc.Close()

	_, err := svc.PlaceOrder(context.Background(), placeInput())
	if !errors.Is(err, ErrEmptyOrder) {
		t.Errorf("expected ErrEmptyOrder, got: %v", err)
	}
}

func TestPlaceOrder_BadQuantity(t *testing.T) {
	svc := newTestService(newMockOrderRepo(), newMockCacheRepo())
	defer svc.Close()

	_, err := svc.PlaceOrder(context.Background(), placeInput(
		domain.Line{VariationID: "v1", Quantity: 0},
	))
	if !errors.Is(err, inventory.ErrInvalidQuantity) {
		t.Errorf("expected ErrInvalidQuantity, got: %v", err)
	}
}

func TestPlaceOrder_IdempotencyKey(t *testing.T) {
	repo := newMockOrderRepo()
	svc := newTestService(repo, newMockCacheRepo())
	defer svc.Close()

	input := placeInput(domain.Line{VariationID: "v1", Quantity: 1})
	input.IdempotencyKey = "key-1"

	if _, err := svc.PlaceOrder(context.Background(), input); err != nil {
		t.Fatalf("first placement failed: %v", err)
	}

	_, err := svc.PlaceOrder(context.Background(), input)
	if !errors.Is(err, ErrDuplicateRequest) {
		t.Errorf("expected ErrDuplicateRequest, got: %v", err)
	}
}

func TestPlaceOrder_NoKeyNoDeduplication(t *testing.T) {
	repo := newMockOrderRepo()
	svc := newTestService(repo, newMockCacheRepo())
	defer svc.Close()

	input := placeInput(domain.Line{VariationID: "v1", Quantity: 1})
	if _, err := svc.PlaceOrder(context.Background(), input); err != nil {
		t.Fatalf("first placement failed: %v", err)
	}
	if _, err := svc.PlaceOrder(context.Background(), input); err != nil {
		t.Errorf("expected repeated placement without key to succeed, got: %v", err)
	}
}

func TestPlaceOrder_InsufficientStockPropagates(t *testing.T) {
	repo := newMockOrderRepo()
	repo.createErr = &domain.InsufficientStockError{
		Shortages: []domain.StockShortage{{VariationID: "v1", Requested: 2, Available: 0}},
	}
	svc := newTestService(repo, newMockCacheRepo())
	defer svc.Close()

	_, err := svc.PlaceOrder(context.Background(), placeInput(
		domain.Line{VariationID: "v1", Quantity: 2},
	))

	var stockErr *domain.InsufficientStockError
	if !errors.As(err, &stockErr) {
		t.Fatalf("expected InsufficientStockError, got: %v", err)
	}

	// No event for a failed placement.
	select {
	case event := <-svc.Events():
		t.Errorf("unexpected event for failed placement: %+v", event)
	default:
	}
}

func TestUpdateOrderStatus_Forward(t *testing.T) {
	repo := newMockOrderRepo()
	svc := newTestService(repo, newMockCacheRepo())
	defer svc.Close()

	order, err := svc.PlaceOrder(context.Background(), placeInput(
		domain.Line{VariationID: "v1", Quantity: 1},
	))
	if err != nil {
		t.Fatalf("placement failed: %v", err)
	}

	updated, err := svc.UpdateOrderStatus(context.Background(), order.ID, domain.StatusConfirmed)
	if err != nil {
		t.Fatalf("expected transition to succeed, got: %v", err)
	}
	if updated.Status != domain.StatusConfirmed {
		t.Errorf("expected status CONFIRMADO, got %s", updated.Status)
	}
}

func TestUpdateOrderStatus_InvalidTransition(t *testing.T) {
	repo := newMockOrderRepo()
	svc := newTestService(repo, newMockCacheRepo())
	defer svc.Close()

	order, err := svc.PlaceOrder(context.Background(), placeInput(
		domain.Line{VariationID: "v1", Quantity: 1},
	))
	if err != nil {
		t.Fatalf("placement failed: %v", err)
	}

	_, err = svc.UpdateOrderStatus(context.Background(), order.ID, domain.StatusDelivered)

	var transErr *domain.InvalidTransitionError
	if !errors.As(err, &transErr) {
		t.Fatalf("expected InvalidTransitionError, got: %v", err)
	}
	if transErr.From != domain.StatusPending || transErr.To != domain.StatusDelivered {
		t.Errorf("unexpected transition detail: %+v", transErr)
	}
}

func TestUpdateOrderStatus_NotFound(t *testing.T) {
	svc := newTestService(newMockOrderRepo(), newMockCacheRepo())
	defer svc.Close()

	_, err := svc.UpdateOrderStatus(context.Background(), "missing", domain.StatusConfirmed)
	if !errors.Is(err, domain.ErrOrderNotFound) {
		t.Errorf("expected ErrOrderNotFound, got: %v", err)
	}
}

func TestListOrders_NormalizesPaging(t *testing.T) {
	repo := newMockOrderRepo()
	svc := newTestService(repo, newMockCacheRepo())
	defer svc.Close()

	if _, _, err := svc.ListOrders(context.Background(), "store-1", port.ListFilter{}); err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if repo.lastFilter.Page != 1 || repo.lastFilter.Limit != defaultPageLimit {
		t.Errorf("expected page 1 limit %d, got page %d limit %d",
			defaultPageLimit, repo.lastFilter.Page, repo.lastFilter.Limit)
	}

	if _, _, err := svc.ListOrders(context.Background(), "store-1", port.ListFilter{Limit: 5000}); err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if repo.lastFilter.Limit != maxPageLimit {
		t.Errorf("expected limit capped at %d, got %d", maxPageLimit, repo.lastFilter.Limit)
	}
}
