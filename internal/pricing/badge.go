package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/Kyle-Pantig/e-commerce-admin-v2-sub001/internal/models"
)

// ProductBadge is what the product page shows for one product/variant.
type ProductBadge struct {
	Discounts           []models.DiscountCode `json:"discounts"`
	Best                *models.DiscountCode  `json:"best,omitempty"`
	EffectiveUnitPrice  decimal.Decimal       `json:"effective_unit_price"`
	DiscountedUnitPrice decimal.Decimal       `json:"discounted_unit_price"`
}

// ProductDiscounts lists the candidates that certainly apply to item and the
// one giving the lowest unit price. Ties keep the earlier candidate.
func ProductDiscounts(candidates []models.DiscountCode, item models.LineItem) ProductBadge {
	unit := item.EffectiveUnitPrice()
	badge := ProductBadge{
		Discounts:           []models.DiscountCode{},
		EffectiveUnitPrice:  unit,
		DiscountedUnitPrice: unit,
	}

	for i := range candidates {
		d := candidates[i]
		if Resolve(&d, item) != Applies {
			continue
		}
		badge.Discounts = append(badge.Discounts, d)
		price := DiscountedUnitPrice(&d, unit)
		if badge.Best == nil || price.LessThan(badge.DiscountedUnitPrice) {
			best := d
			badge.Best = &best
			badge.DiscountedUnitPrice = price
		}
	}
	return badge
}
