package checkout

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/mvribeiro/zapstore/internal/core/domain"
)

var ErrEmptyDraft = errors.New("draft has no lines")

// Build assembles the Order aggregate for a draft. Unit prices are copied
// out of the given variations at this moment — the snapshot that later
// catalog changes must never touch — and the total is the sum of
// unitPrice*quantity over all lines, in integer minor currency units.
//
// variations must be the store-scoped catalog rows for the draft's lines;
// a line whose variation is absent cannot be priced and aborts the build.
// Build does not look at stock — availability is the inventory ledger's
// concern, checked by the repository inside the same transaction.
func Build(draft domain.OrderDraft, variations map[string]domain.ProductVariation) (domain.Order, error) {
	if len(draft.Lines) == 0 {
		return domain.Order{}, ErrEmptyDraft
	}

	now := time.Now()
	order := domain.Order{
		ID:            uuid.NewString(),
		StoreID:       draft.StoreID,
		CustomerName:  draft.CustomerName,
		CustomerPhone: draft.CustomerPhone,
		CustomerEmail: draft.CustomerEmail,
		Status:        domain.StatusPending,
		Notes:         draft.Notes,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	var total int64
	items := make([]domain.OrderItem, 0, len(draft.Lines))
	for _, line := range draft.Lines {
		v, ok := variations[line.VariationID]
		if !ok {
			return domain.Order{}, &domain.VariationNotFoundError{
				VariationID: line.VariationID,
				StoreID:     draft.StoreID,
			}
		}

		unit := v.UnitPrice()
		total += unit * int64(line.Quantity)
		items = append(items, domain.OrderItem{
			ID:                 uuid.NewString(),
			OrderID:            order.ID,
			ProductVariationID: v.ID,
			Quantity:           line.Quantity,
			UnitPrice:          unit,
		})
	}

	order.Total = total
	order.Items = items
	return order, nil
}
