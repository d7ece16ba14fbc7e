package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrStoreNotFound = errors.New("store not found")
	ErrOrderNotFound = errors.New("order not found")
)

// StockShortage describes one under-stocked line of a rejected placement.
type StockShortage struct {
	VariationID string
	Requested   int
	Available   int
}

// InsufficientStockError rejects an entire placement. It carries every
// under-stocked line, not just the first, so the caller can render a
// precise message per line.
type InsufficientStockError struct {
	Shortages []StockShortage
}

func (e *InsufficientStockError) Error() string {
	parts := make([]string, len(e.Shortages))
	for i, s := range e.Shortages {
		parts[i] = fmt.Sprintf("variation %s: requested %d, available %d", s.VariationID, s.Requested, s.Available)
	}
	return "insufficient stock: " + strings.Join(parts, "; ")
}

// VariationNotFoundError means a requested variation does not exist in the
// target store's catalog, so the order cannot be priced.
type VariationNotFoundError struct {
	VariationID string
	StoreID     string
}

func (e *VariationNotFoundError) Error() string {
	return fmt.Sprintf("variation %s not found in store %s", e.VariationID, e.StoreID)
}

// InvalidTransitionError rejects a status change not allowed by the
// order lifecycle.
type InvalidTransitionError struct {
	From OrderStatus
	To   OrderStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid status transition: %s -> %s", e.From, e.To)
}
