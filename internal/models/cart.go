package models

import "github.com/shopspring/decimal"

// LineItem is one product/variant entry of a cart. It is rebuilt from cart
// or product data on every pricing call and never persisted here.
type LineItem struct {
	ProductID     string           `json:"product_id" validate:"required"`
	VariantID     *string          `json:"variant_id,omitempty"`
	CategoryID    *string          `json:"category_id,omitempty"`
	Name          string           `json:"name,omitempty"`
	SKU           *string          `json:"sku,omitempty"`
	UnitBasePrice decimal.Decimal  `json:"unit_base_price"`
	UnitSalePrice *decimal.Decimal `json:"unit_sale_price,omitempty"`
	Quantity      int              `json:"quantity" validate:"required,min=1"`
}

// EffectiveUnitPrice is the sale price when it is set, positive and below the
// base price; otherwise the base price.
func (i LineItem) EffectiveUnitPrice() decimal.Decimal {
	if i.UnitSalePrice != nil &&
		i.UnitSalePrice.IsPositive() &&
		i.UnitSalePrice.LessThan(i.UnitBasePrice) {
		return *i.UnitSalePrice
	}
	return i.UnitBasePrice
}

func (i LineItem) LineSubtotal() decimal.Decimal {
	return i.EffectiveUnitPrice().Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Subtotal sums the line subtotals of items.
func Subtotal(items []LineItem) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.LineSubtotal())
	}
	return total
}
