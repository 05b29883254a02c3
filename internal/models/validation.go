package models

import "github.com/shopspring/decimal"

// ValidationRequest is the body of the authoritative validate call. The
// subtotal covers only the items the discount applies to.
type ValidationRequest struct {
	Code          string          `json:"code" validate:"required"`
	OrderSubtotal decimal.Decimal `json:"order_subtotal"`
	UserID        *string         `json:"user_id,omitempty"`
	ProductIDs    []string        `json:"product_ids,omitempty"`
	CategoryIDs   []string        `json:"category_ids,omitempty"`
	// Items lets the validator price FIXED_AMOUNT discounts per unit.
	Items []LineItem `json:"items,omitempty"`
}

type ValidationResponse struct {
	Valid          bool             `json:"valid"`
	Code           *string          `json:"code,omitempty"`
	DiscountID     *string          `json:"discount_id,omitempty"`
	DiscountType   *DiscountType    `json:"discount_type,omitempty"`
	DiscountValue  *decimal.Decimal `json:"discount_value,omitempty"`
	DiscountAmount *decimal.Decimal `json:"discount_amount,omitempty"`
	Message        string           `json:"message"`
}
