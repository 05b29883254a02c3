package pricing

import (
	"time"

	"github.com/shopspring/decimal"

	ierr "github.com/Kyle-Pantig/e-commerce-admin-v2-sub001/internal/errors"
	"github.com/Kyle-Pantig/e-commerce-admin-v2-sub001/internal/models"
)

// Shopper facing rejection reasons.
const (
	MsgInvalidCode      = "Invalid discount code"
	MsgInactive         = "This discount code is no longer active"
	MsgNotYetActive     = "This discount code is not yet active"
	MsgExpired          = "This discount code has expired"
	MsgUsageLimit       = "This discount code has reached its usage limit"
	MsgUserUsageLimit   = "You have already used this discount code the maximum number of times"
	MsgNotApplicable    = "This discount code does not apply to the items in your cart"
	MsgMinimumNotMetFmt = "Minimum order amount of %s required"
)

// CheckEligibility applies the server side gates in order: active flag, start
// date, end date, global usage, per-user usage. userUsage is nil when the
// shopper is anonymous.
func CheckEligibility(d *models.DiscountCode, now time.Time, userUsage *int) error {
	if d == nil {
		return rejected("discount not found", MsgInvalidCode, ierr.ErrNotFound)
	}
	if !d.IsActive {
		return rejected("discount inactive", MsgInactive, ierr.ErrRejected)
	}
	if d.StartDate != nil && d.StartDate.After(now) {
		return rejected("discount not started", MsgNotYetActive, ierr.ErrRejected)
	}
	if d.EndDate != nil && d.EndDate.Before(now) {
		return rejected("discount expired", MsgExpired, ierr.ErrRejected)
	}
	if d.UsageLimit != nil && *d.UsageLimit > 0 && d.UsageCount >= *d.UsageLimit {
		return rejected("discount usage exhausted", MsgUsageLimit, ierr.ErrRejected)
	}
	if userUsage != nil && d.UsageLimitPerUser != nil && *d.UsageLimitPerUser > 0 &&
		*userUsage >= *d.UsageLimitPerUser {
		return rejected("discount per-user usage exhausted", MsgUserUsageLimit, ierr.ErrRejected)
	}
	return nil
}

// InWindow reports whether d is active and inside its date window at now.
func InWindow(d *models.DiscountCode, now time.Time) bool {
	if !d.IsActive {
		return false
	}
	if d.StartDate != nil && d.StartDate.After(now) {
		return false
	}
	if d.EndDate != nil && d.EndDate.Before(now) {
		return false
	}
	return true
}

// CheckMinimum rejects a subtotal below d's minimum order amount.
func CheckMinimum(d *models.DiscountCode, subtotal decimal.Decimal) error {
	if d.HasMinimum() && subtotal.LessThan(*d.MinimumOrderAmount) {
		return ierr.NewError("minimum order amount not met").
			WithHintf(MsgMinimumNotMetFmt, d.MinimumOrderAmount.StringFixed(MoneyPlaces)).
			WithReportableDetails(map[string]any{
				"minimum_order_amount": d.MinimumOrderAmount.String(),
				"subtotal":             subtotal.String(),
			}).
			Mark(ierr.ErrRejected)
	}
	return nil
}

func rejected(msg, hint string, sentinel error) error {
	return ierr.NewError(msg).WithHint(hint).Mark(sentinel)
}
