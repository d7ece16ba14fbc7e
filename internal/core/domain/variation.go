package domain

import "time"

type ProductVariation struct {
	ID            string
	ProductID     string
	Color         string
	Size          string
	Price         int64  // minor currency units
	DiscountPrice *int64 // nil when no discount; must be < Price when set
	Stock         int
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// UnitPrice returns the price a buyer pays right now: the discount price
// when one is set, the base price otherwise.
func (v ProductVariation) UnitPrice() int64 {
	if v.DiscountPrice != nil {
		return *v.DiscountPrice
	}
	return v.Price
}
