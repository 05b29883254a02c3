// Package pricing holds the discount applicability and price arithmetic
// shared by the product page, cart and checkout. Every function is pure;
// callers pass in the line items and candidate discounts they already hold.
package pricing

import (
	"github.com/samber/lo"

	"github.com/Kyle-Pantig/e-commerce-admin-v2-sub001/internal/models"
)

// Applicability is the outcome of matching one discount against one line.
type Applicability int

const (
	DoesNotApply Applicability = iota
	Applies
	// Indeterminate means only the server can decide, because the discount is
	// restricted to categories and the line carries no category.
	Indeterminate
)

func (a Applicability) String() string {
	switch a {
	case Applies:
		return "applies"
	case Indeterminate:
		return "indeterminate"
	default:
		return "does_not_apply"
	}
}

// Resolve matches a discount against a line item.
//
// A variant restriction is decisive for lines that carry a variant: a miss
// does not fall through to the product rule, so sibling variants of a listed
// product are never matched.
func Resolve(d *models.DiscountCode, item models.LineItem) Applicability {
	if d == nil {
		return DoesNotApply
	}
	if d.Unrestricted() {
		return Applies
	}

	if item.VariantID != nil && len(d.ApplicableVariants) > 0 {
		if lo.Contains(d.ApplicableVariants, *item.VariantID) {
			return Applies
		}
		return DoesNotApply
	}

	if lo.Contains(d.ApplicableProducts, item.ProductID) {
		return Applies
	}

	if len(d.ApplicableCategories) > 0 {
		if item.CategoryID != nil {
			if lo.Contains(d.ApplicableCategories, *item.CategoryID) {
				return Applies
			}
			return DoesNotApply
		}
		if len(d.ApplicableProducts) == 0 && len(d.ApplicableVariants) == 0 {
			return Indeterminate
		}
	}

	return DoesNotApply
}

// AppliesTo is the permissive boolean view of Resolve: indeterminate lines
// count as applicable and the backend has the final say.
func AppliesTo(d *models.DiscountCode, item models.LineItem) bool {
	return Resolve(d, item) != DoesNotApply
}
