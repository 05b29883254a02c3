package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Kyle-Pantig/e-commerce-admin-v2-sub001/internal/models"
)

const OrderStatusPending = "PENDING"

type OrderRepo struct {
	db *sql.DB
}

func NewOrderRepo(db *sql.DB) *OrderRepo {
	return &OrderRepo{db: db}
}

// NewOrderNumber formats ORD-YYYYMMDD-XXXXXX.
func NewOrderNumber(now time.Time) string {
	random := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))[:6]
	return fmt.Sprintf("ORD-%s-%s", now.Format("20060102"), random)
}

// Create inserts the order header and its items inside tx and fills the
// order's id and creation time.
func (r *OrderRepo) Create(ctx context.Context, tx *sql.Tx, o *models.Order, req models.OrderRequest) error {
	insertOrder := `
		INSERT INTO orders
		(order_number, user_id, status, customer_name, customer_email, customer_phone,
		 shipping_address, shipping_city, shipping_state, shipping_zip, shipping_country,
		 payment_method, subtotal, shipping_cost, tax_amount, discount_amount,
		 discount_code_id, total, notes, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,NOW(),NOW())
		RETURNING id, created_at
	`

	err := tx.QueryRowContext(ctx, insertOrder,
		o.OrderNumber,
		o.UserID,
		o.Status,
		req.CustomerName,
		req.CustomerEmail,
		req.CustomerPhone,
		req.ShippingAddress,
		req.ShippingCity,
		req.ShippingState,
		req.ShippingZip,
		req.ShippingCountry,
		req.PaymentMethod,
		o.Subtotal,
		o.ShippingCost,
		o.TaxAmount,
		o.DiscountAmount,
		o.DiscountCodeID,
		o.Total,
		req.Notes,
	).Scan(&o.ID, &o.CreatedAt)
	if err != nil {
		return dbError(err, "create order")
	}

	stmt := `
		INSERT INTO order_items
		(order_id, product_id, variant_id, product_name, product_sku, unit_price, quantity, subtotal)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`
	for _, it := range req.Items {
		lineSubtotal := it.UnitPrice.Mul(decimalFromInt(it.Quantity))
		if _, err := tx.ExecContext(ctx, stmt,
			o.ID,
			it.ProductID,
			it.VariantID,
			it.ProductName,
			it.ProductSKU,
			it.UnitPrice,
			it.Quantity,
			lineSubtotal,
		); err != nil {
			return dbError(err, "create order item")
		}
	}
	return nil
}
