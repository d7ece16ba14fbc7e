package inventory

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/mvribeiro/zapstore/internal/core/domain"
)

var (
	ErrNoLines         = errors.New("no lines to reserve")
	ErrInvalidQuantity = errors.New("quantity must be at least 1")
	ErrDuplicateLine   = errors.New("duplicate variation in lines")
)

// StockStore applies a single conditional decrement against one variation's
// stock counter. It must decrement only when the current stock covers qty,
// reporting ok=false plus the available amount otherwise.
type StockStore interface {
	TryDecrement(ctx context.Context, variationID string, qty int) (ok bool, available int, err error)
}

// MergeLines collapses duplicate variation ids by summing their quantities,
// preserving first-seen order. Callers must merge before invoking
// ReserveAndDecrement.
func MergeLines(lines []domain.Line) []domain.Line {
	merged := make([]domain.Line, 0, len(lines))
	index := make(map[string]int, len(lines))
	for _, l := range lines {
		if i, seen := index[l.VariationID]; seen {
			merged[i].Quantity += l.Quantity
			continue
		}
		index[l.VariationID] = len(merged)
		merged = append(merged, l)
	}
	return merged
}

// ReserveAndDecrement decrements stock for every line as one logical unit.
// Lines are processed in ascending variation-id order so that two batches
// touching the same variations always lock rows in the same sequence.
//
// Every line is attempted even after a shortage is found, so the returned
// InsufficientStockError names all under-stocked lines. Partial decrements
// performed along the way are discarded by the caller's transaction rollback.
func ReserveAndDecrement(ctx context.Context, store StockStore, lines []domain.Line) error {
	if len(lines) == 0 {
		return ErrNoLines
	}

	seen := make(map[string]struct{}, len(lines))
	for _, l := range lines {
		if l.Quantity < 1 {
			return fmt.Errorf("%w: variation %s requested %d", ErrInvalidQuantity, l.VariationID, l.Quantity)
		}
		if _, dup := seen[l.VariationID]; dup {
			return fmt.Errorf("%w: %s", ErrDuplicateLine, l.VariationID)
		}
		seen[l.VariationID] = struct{}{}
	}

	ordered := make([]domain.Line, len(lines))
	copy(ordered, lines)
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].VariationID < ordered[j].VariationID
	})

	var shortages []domain.StockShortage
	for _, l := range ordered {
		ok, available, err := store.TryDecrement(ctx, l.VariationID, l.Quantity)
		if err != nil {
			return fmt.Errorf("decrement stock for %s: %w", l.VariationID, err)
		}
		if !ok {
			shortages = append(shortages, domain.StockShortage{
				VariationID: l.VariationID,
				Requested:   l.Quantity,
				Available:   available,
			})
		}
	}

	if len(shortages) > 0 {
		return &domain.InsufficientStockError{Shortages: shortages}
	}
	return nil
}
