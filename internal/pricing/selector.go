package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/Kyle-Pantig/e-commerce-admin-v2-sub001/internal/models"
)

// DiscountNeeded describes how far a cart is from a discount's minimum.
type DiscountNeeded struct {
	MinimumOrderAmount decimal.Decimal `json:"minimum_order_amount"`
	CurrentSubtotal    decimal.Decimal `json:"current_subtotal"`
	AmountNeeded       decimal.Decimal `json:"amount_needed"`
}

// Evaluation is one discount measured against a cart.
type Evaluation struct {
	ApplicableItems    []models.LineItem `json:"-"`
	RestrictedSubtotal decimal.Decimal   `json:"restricted_subtotal"`
	Amount             decimal.Decimal   `json:"amount"`
}

// Selection is the outcome of SelectBest. A non-nil Needed means the
// discount applies but the cart is below its minimum, and Amount is zero.
type Selection struct {
	Discount           *models.DiscountCode `json:"discount"`
	Amount             decimal.Decimal      `json:"amount"`
	RestrictedSubtotal decimal.Decimal      `json:"restricted_subtotal"`
	Needed             *DiscountNeeded      `json:"discount_needed_info,omitempty"`
}

// BelowMinimum reports whether the selection is gated by a minimum order amount.
func (s *Selection) BelowMinimum() bool {
	return s != nil && s.Needed != nil
}

// Evaluate measures d against items, counting only lines that resolve to
// Applies. Indeterminate lines are left out of optimistic totals.
func Evaluate(d *models.DiscountCode, items []models.LineItem) Evaluation {
	ev := Evaluation{RestrictedSubtotal: decimal.Zero}
	for _, it := range items {
		if Resolve(d, it) != Applies {
			continue
		}
		ev.ApplicableItems = append(ev.ApplicableItems, it)
		ev.RestrictedSubtotal = ev.RestrictedSubtotal.Add(it.LineSubtotal())
	}
	ev.Amount = AggregateAmount(d, ev.ApplicableItems)
	return ev
}

// Needed returns the spend-more info when restricted is below d's minimum.
func Needed(d *models.DiscountCode, restricted decimal.Decimal) *DiscountNeeded {
	if d == nil || !d.HasMinimum() || !restricted.LessThan(*d.MinimumOrderAmount) {
		return nil
	}
	return &DiscountNeeded{
		MinimumOrderAmount: *d.MinimumOrderAmount,
		CurrentSubtotal:    restricted,
		AmountNeeded:       d.MinimumOrderAmount.Sub(restricted),
	}
}

// SelectBest picks the candidate with the strictly greatest aggregate
// discount over items; ties keep the earlier candidate. Candidates that apply
// to no line are skipped and nil is returned when none apply. When the winner
// is below its minimum order amount the selection carries Amount zero and
// the spend-more info instead of being dropped.
func SelectBest(candidates []models.DiscountCode, items []models.LineItem) *Selection {
	var (
		best     *models.DiscountCode
		bestEval Evaluation
	)

	for i := range candidates {
		ev := Evaluate(&candidates[i], items)
		if len(ev.ApplicableItems) == 0 {
			continue
		}
		if best == nil || ev.Amount.GreaterThan(bestEval.Amount) {
			d := candidates[i]
			best = &d
			bestEval = ev
		}
	}

	if best == nil {
		return nil
	}

	sel := &Selection{
		Discount:           best,
		Amount:             bestEval.Amount,
		RestrictedSubtotal: bestEval.RestrictedSubtotal,
	}
	if needed := Needed(best, bestEval.RestrictedSubtotal); needed != nil {
		sel.Amount = decimal.Zero
		sel.Needed = needed
	}
	return sel
}
