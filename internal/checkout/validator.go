package checkout

import (
	"context"
	"time"

	"github.com/samber/lo"

	ierr "github.com/Kyle-Pantig/e-commerce-admin-v2-sub001/internal/errors"
	"github.com/Kyle-Pantig/e-commerce-admin-v2-sub001/internal/models"
	"github.com/Kyle-Pantig/e-commerce-admin-v2-sub001/internal/pricing"
)

// Catalog serves discount lookups. It is usually a cache in front of the
// authority.
type Catalog interface {
	ListAutoApply(ctx context.Context) ([]models.DiscountCode, error)
	GetByCode(ctx context.Context, code string) (*models.DiscountCode, error)
}

// Authority is the source of truth for validation and order creation.
type Authority interface {
	Validate(ctx context.Context, req models.ValidationRequest) (*models.ValidationResponse, error)
	CreateOrder(ctx context.Context, req models.OrderRequest) (*models.Order, error)
}

// Validator runs the manual code check: lookup, local applicability
// filter, then authoritative validation of the applicable subtotal.
type Validator struct {
	catalog   Catalog
	authority Authority
	now       func() time.Time
}

func NewValidator(catalog Catalog, authority Authority) *Validator {
	return &Validator{catalog: catalog, authority: authority, now: time.Now}
}

// Prevalidate looks code up and keeps the lines it may apply to. A code that
// applies to nothing in the cart is rejected without asking the authority.
func (v *Validator) Prevalidate(ctx context.Context, code string, items []models.LineItem) (*models.DiscountCode, pricing.Prevalidation, error) {
	code = models.CanonicalCode(code)
	if code == "" {
		return nil, pricing.Prevalidation{}, ierr.NewError("empty discount code").
			WithHint("Please enter a discount code").
			Mark(ierr.ErrValidation)
	}

	d, err := v.catalog.GetByCode(ctx, code)
	if err != nil {
		return nil, pricing.Prevalidation{}, err
	}
	if d == nil {
		return nil, pricing.Prevalidation{}, ierr.NewError("discount code not found").
			WithHint(pricing.MsgInvalidCode).
			Mark(ierr.ErrNotFound)
	}

	pv := pricing.Prevalidate(d, items)
	if pv.Empty() {
		return d, pv, ierr.NewError("discount matches no cart line").
			WithHint(pricing.MsgNotApplicable).
			WithReportableDetails(map[string]any{"code": d.Code}).
			Mark(ierr.ErrRejected)
	}
	return d, pv, nil
}

// Validate prevalidates code and asks the authority to accept it. The
// authority's amount wins over the local estimate.
func (v *Validator) Validate(ctx context.Context, code string, userID *string, items []models.LineItem) (*Applied, error) {
	d, pv, err := v.Prevalidate(ctx, code, items)
	if err != nil {
		return nil, err
	}

	categoryIDs := lo.Uniq(lo.FilterMap(pv.ApplicableItems, func(it models.LineItem, _ int) (string, bool) {
		if it.CategoryID == nil {
			return "", false
		}
		return *it.CategoryID, true
	}))

	resp, err := v.authority.Validate(ctx, models.ValidationRequest{
		Code:          d.Code,
		OrderSubtotal: pv.ApplicableSubtotal,
		UserID:        userID,
		ProductIDs:    pv.ProductIDs,
		CategoryIDs:   categoryIDs,
		Items:         pv.ApplicableItems,
	})
	if err != nil {
		return nil, err
	}

	applied := &Applied{
		DiscountID:         d.ID,
		Code:               d.Code,
		Discount:           *d,
		Amount:             pricing.AggregateAmount(d, pv.ApplicableItems),
		ApplicableSubtotal: pv.ApplicableSubtotal,
		AppliedAt:          v.now().UTC(),
	}
	if resp.DiscountID != nil && *resp.DiscountID != "" {
		applied.DiscountID = *resp.DiscountID
	}
	if resp.DiscountAmount != nil {
		applied.Amount = *resp.DiscountAmount
	}
	return applied, nil
}
