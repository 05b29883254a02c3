package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type DiscountType string

const (
	DiscountTypePercentage  DiscountType = "PERCENTAGE"
	DiscountTypeFixedAmount DiscountType = "FIXED_AMOUNT"
)

func (t DiscountType) Valid() bool {
	return t == DiscountTypePercentage || t == DiscountTypeFixedAmount
}

// DiscountCode is a discount as served by the catalog. Restriction sets that
// are nil or empty mean "no restriction on that dimension".
type DiscountCode struct {
	ID                   string           `json:"id"`
	Code                 string           `json:"code"`
	Description          *string          `json:"description,omitempty"`
	DiscountType         DiscountType     `json:"discount_type"`
	DiscountValue        decimal.Decimal  `json:"discount_value"`
	MaximumDiscount      *decimal.Decimal `json:"maximum_discount,omitempty"`
	MinimumOrderAmount   *decimal.Decimal `json:"minimum_order_amount,omitempty"`
	UsageLimit           *int             `json:"usage_limit,omitempty"`
	UsageLimitPerUser    *int             `json:"usage_limit_per_user,omitempty"`
	UsageCount           int              `json:"usage_count"`
	IsActive             bool             `json:"is_active"`
	StartDate            *time.Time       `json:"start_date,omitempty"`
	EndDate              *time.Time       `json:"end_date,omitempty"`
	AutoApply            bool             `json:"auto_apply"`
	ShowBadge            bool             `json:"show_badge"`
	ApplicableProducts   []string         `json:"applicable_products,omitempty"`
	ApplicableVariants   []string         `json:"applicable_variants,omitempty"`
	ApplicableCategories []string         `json:"applicable_categories,omitempty"`
	CreatedAt            *time.Time       `json:"created_at,omitempty"`
	UpdatedAt            *time.Time       `json:"updated_at,omitempty"`
	CreatedBy            *string          `json:"created_by,omitempty"`
}

// Unrestricted reports whether the discount applies to every line item.
func (d *DiscountCode) Unrestricted() bool {
	return len(d.ApplicableProducts) == 0 &&
		len(d.ApplicableVariants) == 0 &&
		len(d.ApplicableCategories) == 0
}

// HasMinimum reports whether a positive minimum order amount gates the discount.
func (d *DiscountCode) HasMinimum() bool {
	return d.MinimumOrderAmount != nil && d.MinimumOrderAmount.IsPositive()
}

// CanonicalCode upper-cases a user supplied code and strips all whitespace.
func CanonicalCode(code string) string {
	return strings.Join(strings.Fields(strings.ToUpper(code)), "")
}

// CreateDiscountRequest is the admin payload for a new discount.
type CreateDiscountRequest struct {
	Code                 string           `json:"code" validate:"required,min=3,max=50"`
	Description          *string          `json:"description,omitempty"`
	DiscountType         DiscountType     `json:"discount_type" validate:"required,oneof=PERCENTAGE FIXED_AMOUNT"`
	DiscountValue        decimal.Decimal  `json:"discount_value"`
	MinimumOrderAmount   *decimal.Decimal `json:"minimum_order_amount,omitempty"`
	MaximumDiscount      *decimal.Decimal `json:"maximum_discount,omitempty"`
	UsageLimit           *int             `json:"usage_limit,omitempty" validate:"omitempty,gt=0"`
	UsageLimitPerUser    *int             `json:"usage_limit_per_user,omitempty" validate:"omitempty,gt=0"`
	IsActive             *bool            `json:"is_active,omitempty"`
	StartDate            *time.Time       `json:"start_date,omitempty"`
	EndDate              *time.Time       `json:"end_date,omitempty"`
	AutoApply            bool             `json:"auto_apply"`
	ShowBadge            *bool            `json:"show_badge,omitempty"`
	ApplicableProducts   []string         `json:"applicable_products,omitempty"`
	ApplicableVariants   []string         `json:"applicable_variants,omitempty"`
	ApplicableCategories []string         `json:"applicable_categories,omitempty"`
	CreatedBy            *string          `json:"-"`
}

// UpdateDiscountRequest is the admin patch for an existing discount. Nil
// fields are left unchanged. An empty applicability list clears it.
type UpdateDiscountRequest struct {
	Code                 *string          `json:"code,omitempty" validate:"omitempty,min=3,max=50"`
	Description          *string          `json:"description,omitempty"`
	DiscountType         *DiscountType    `json:"discount_type,omitempty" validate:"omitempty,oneof=PERCENTAGE FIXED_AMOUNT"`
	DiscountValue        *decimal.Decimal `json:"discount_value,omitempty"`
	MinimumOrderAmount   *decimal.Decimal `json:"minimum_order_amount,omitempty"`
	MaximumDiscount      *decimal.Decimal `json:"maximum_discount,omitempty"`
	UsageLimit           *int             `json:"usage_limit,omitempty" validate:"omitempty,gt=0"`
	UsageLimitPerUser    *int             `json:"usage_limit_per_user,omitempty" validate:"omitempty,gt=0"`
	IsActive             *bool            `json:"is_active,omitempty"`
	StartDate            *time.Time       `json:"start_date,omitempty"`
	EndDate              *time.Time       `json:"end_date,omitempty"`
	AutoApply            *bool            `json:"auto_apply,omitempty"`
	ShowBadge            *bool            `json:"show_badge,omitempty"`
	ApplicableProducts   []string         `json:"applicable_products,omitempty"`
	ApplicableVariants   []string         `json:"applicable_variants,omitempty"`
	ApplicableCategories []string         `json:"applicable_categories,omitempty"`
}

// DiscountFilter narrows the admin listing. Search matches code or
// description, case-insensitively.
type DiscountFilter struct {
	Search   string
	IsActive *bool
	Page     int
	PerPage  int
}

// Offset is the number of rows before Page.
func (f DiscountFilter) Offset() int {
	return (f.Page - 1) * f.PerPage
}

type DiscountList struct {
	Items      []DiscountCode `json:"items"`
	Total      int            `json:"total"`
	Page       int            `json:"page"`
	PerPage    int            `json:"per_page"`
	TotalPages int            `json:"total_pages"`
}
