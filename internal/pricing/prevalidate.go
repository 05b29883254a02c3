package pricing

import (
	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/Kyle-Pantig/e-commerce-admin-v2-sub001/internal/models"
)

// Prevalidation is the client side pre-check of a manually entered code. The
// applicable subtotal, not the cart subtotal, is what gets sent to the
// authoritative validator, so unrelated items never satisfy a minimum.
type Prevalidation struct {
	ApplicableItems    []models.LineItem `json:"applicable_items"`
	ApplicableSubtotal decimal.Decimal   `json:"applicable_subtotal"`
	ProductIDs         []string          `json:"product_ids"`
	// Indeterminate is set when at least one line could only be matched by the server.
	Indeterminate bool `json:"indeterminate"`
}

// Prevalidate keeps the lines d may apply to. Indeterminate lines are kept
// and left for the server to decide.
func Prevalidate(d *models.DiscountCode, items []models.LineItem) Prevalidation {
	pv := Prevalidation{ApplicableSubtotal: decimal.Zero}
	for _, it := range items {
		switch Resolve(d, it) {
		case Applies:
		case Indeterminate:
			pv.Indeterminate = true
		default:
			continue
		}
		pv.ApplicableItems = append(pv.ApplicableItems, it)
		pv.ApplicableSubtotal = pv.ApplicableSubtotal.Add(it.LineSubtotal())
	}
	pv.ProductIDs = lo.Uniq(lo.Map(pv.ApplicableItems, func(it models.LineItem, _ int) string {
		return it.ProductID
	}))
	return pv
}

// Empty reports whether the code applies to nothing in the cart.
func (p Prevalidation) Empty() bool {
	return len(p.ApplicableItems) == 0
}

// AggregateAmount is the discount of d over items as a whole. Percentage
// discounts are taken on the combined subtotal so MaximumDiscount caps the
// cart once. Fixed discounts are summed per line, each clamped to its line.
func AggregateAmount(d *models.DiscountCode, items []models.LineItem) decimal.Decimal {
	if d == nil {
		return decimal.Zero
	}
	if d.DiscountType == models.DiscountTypePercentage {
		return DiscountAmount(d, models.Subtotal(items))
	}
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(LineDiscount(d, it))
	}
	return total
}
