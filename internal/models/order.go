package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderItemRequest struct {
	ProductID   *string         `json:"product_id,omitempty"`
	VariantID   *string         `json:"variant_id,omitempty"`
	ProductName string          `json:"product_name" validate:"required"`
	ProductSKU  *string         `json:"product_sku,omitempty"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Quantity    int             `json:"quantity" validate:"required,min=1"`
}

// OrderRequest mirrors the backend order creation body. DiscountAmount is
// advisory; the authoritative side recomputes it.
type OrderRequest struct {
	UserID          *string            `json:"user_id,omitempty"`
	CustomerName    string             `json:"customer_name" validate:"required"`
	CustomerEmail   string             `json:"customer_email" validate:"required,email"`
	CustomerPhone   *string            `json:"customer_phone,omitempty"`
	ShippingAddress string             `json:"shipping_address" validate:"required"`
	ShippingCity    string             `json:"shipping_city" validate:"required"`
	ShippingState   *string            `json:"shipping_state,omitempty"`
	ShippingZip     *string            `json:"shipping_zip,omitempty"`
	ShippingCountry string             `json:"shipping_country"`
	PaymentMethod   *string            `json:"payment_method,omitempty"`
	ShippingCost    decimal.Decimal    `json:"shipping_cost"`
	TaxAmount       decimal.Decimal    `json:"tax_amount"`
	DiscountAmount  decimal.Decimal    `json:"discount_amount"`
	DiscountCodeID  *string            `json:"discount_code_id,omitempty"`
	Notes           *string            `json:"notes,omitempty"`
	Items           []OrderItemRequest `json:"items" validate:"required,min=1,dive"`
}

type Order struct {
	ID             string          `json:"id"`
	OrderNumber    string          `json:"order_number"`
	UserID         *string         `json:"user_id,omitempty"`
	Status         string          `json:"status"`
	Subtotal       decimal.Decimal `json:"subtotal"`
	ShippingCost   decimal.Decimal `json:"shipping_cost"`
	TaxAmount      decimal.Decimal `json:"tax_amount"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	DiscountCodeID *string         `json:"discount_code_id,omitempty"`
	Total          decimal.Decimal `json:"total"`
	CreatedAt      time.Time       `json:"created_at"`
}
