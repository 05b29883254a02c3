package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/Kyle-Pantig/e-commerce-admin-v2-sub001/internal/models"
)

// MoneyPlaces is the number of decimal places amounts are rounded to.
const MoneyPlaces = 2

var hundred = decimal.NewFromInt(100)

// DiscountAmount is the discount on a single unit priced at subtotal.
func DiscountAmount(d *models.DiscountCode, subtotal decimal.Decimal) decimal.Decimal {
	return Amount(d, subtotal, 1)
}

// Amount computes the discount on subtotal spread over units units.
//
// Percentage discounts take value% of subtotal, capped by MaximumDiscount.
// Fixed discounts are per unit: value * units. The result is rounded and then
// clamped into [0, subtotal].
func Amount(d *models.DiscountCode, subtotal decimal.Decimal, units int) decimal.Decimal {
	if d == nil || !subtotal.IsPositive() {
		return decimal.Zero
	}
	if units < 1 {
		units = 1
	}

	var raw decimal.Decimal
	switch d.DiscountType {
	case models.DiscountTypePercentage:
		pct := clamp(d.DiscountValue, decimal.Zero, hundred)
		raw = subtotal.Mul(pct).Div(hundred)
		if d.MaximumDiscount != nil && !d.MaximumDiscount.IsNegative() {
			raw = decimal.Min(raw, *d.MaximumDiscount)
		}
	case models.DiscountTypeFixedAmount:
		raw = d.DiscountValue.Mul(decimal.NewFromInt(int64(units)))
	default:
		return decimal.Zero
	}

	return clamp(raw.Round(MoneyPlaces), decimal.Zero, subtotal)
}

// Totals is the priced view of a cart.
type Totals struct {
	Subtotal decimal.Decimal `json:"subtotal"`
	Discount decimal.Decimal `json:"discount"`
	Total    decimal.Decimal `json:"total"`
}

// CartTotals subtracts discount from the cart subtotal, never going below zero.
func CartTotals(items []models.LineItem, discount decimal.Decimal) Totals {
	subtotal := models.Subtotal(items)
	discount = clamp(discount, decimal.Zero, subtotal)
	return Totals{
		Subtotal: subtotal,
		Discount: discount,
		Total:    subtotal.Sub(discount),
	}
}

// LineDiscount is the discount for a whole line, quantity included.
func LineDiscount(d *models.DiscountCode, item models.LineItem) decimal.Decimal {
	return Amount(d, item.LineSubtotal(), item.Quantity)
}

// DiscountedUnitPrice is the unit price after the discount, never negative.
func DiscountedUnitPrice(d *models.DiscountCode, unitPrice decimal.Decimal) decimal.Decimal {
	if !unitPrice.IsPositive() {
		return decimal.Zero
	}
	return unitPrice.Sub(DiscountAmount(d, unitPrice))
}

func clamp(v, lower, upper decimal.Decimal) decimal.Decimal {
	if v.LessThan(lower) {
		return lower
	}
	if v.GreaterThan(upper) {
		return upper
	}
	return v
}
