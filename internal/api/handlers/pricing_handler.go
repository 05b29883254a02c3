package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/Kyle-Pantig/e-commerce-admin-v2-sub001/internal/checkout"
	ierr "github.com/Kyle-Pantig/e-commerce-admin-v2-sub001/internal/errors"
	"github.com/Kyle-Pantig/e-commerce-admin-v2-sub001/internal/logger"
	"github.com/Kyle-Pantig/e-commerce-admin-v2-sub001/internal/models"
	"github.com/Kyle-Pantig/e-commerce-admin-v2-sub001/internal/pricing"
)

// --- Request / Response DTOs ---

// QuoteRequest prices a cart. Without candidates the current auto-apply
// discounts are used.
type QuoteRequest struct {
	Items      []models.LineItem     `json:"items" validate:"required,min=1,dive"`
	Candidates []models.DiscountCode `json:"candidates,omitempty"`
}

type QuoteResponse struct {
	pricing.Totals
	Selection *pricing.Selection `json:"selection,omitempty"`
}

type DiscountAmountRequest struct {
	Discount models.DiscountCode `json:"discount"`
	Subtotal decimal.Decimal     `json:"subtotal"`
	Quantity int                 `json:"quantity" validate:"min=0"`
}

type DiscountAmountResponse struct {
	Amount decimal.Decimal `json:"amount"`
}

// --- Handler struct & constructor ---

type PricingHandler struct {
	catalog  checkout.Catalog
	validate *validator.Validate
	log      *logger.Logger
	now      func() time.Time
}

func NewPricingHandler(catalog checkout.Catalog, log *logger.Logger) *PricingHandler {
	return &PricingHandler{
		catalog:  catalog,
		validate: validator.New(),
		log:      log,
		now:      time.Now,
	}
}

// --- Handlers ---

// Quote handles POST /pricing/quote
func (h *PricingHandler) Quote(w http.ResponseWriter, r *http.Request) {
	var req QuoteRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.log, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, h.log, ierr.WithError(err).WithHint("Please check the cart items").Mark(ierr.ErrValidation))
		return
	}

	candidates := req.Candidates
	if candidates == nil {
		var err error
		candidates, err = h.autoApply(r)
		if err != nil {
			writeError(w, h.log, err)
			return
		}
	}

	sel := pricing.SelectBest(candidates, req.Items)
	discount := decimal.Zero
	if sel != nil {
		discount = sel.Amount
	}
	writeJSON(w, http.StatusOK, QuoteResponse{
		Totals:    pricing.CartTotals(req.Items, discount),
		Selection: sel,
	})
}

// DiscountAmount handles POST /pricing/discount-amount
func (h *PricingHandler) DiscountAmount(w http.ResponseWriter, r *http.Request) {
	var req DiscountAmountRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.log, err)
		return
	}
	if err := h.validate.Struct(req); err != nil || !req.Discount.DiscountType.Valid() {
		writeError(w, h.log, ierr.NewError("invalid discount amount request").
			WithHint("A discount type of PERCENTAGE or FIXED_AMOUNT and a quantity are required").
			Mark(ierr.ErrValidation))
		return
	}

	writeJSON(w, http.StatusOK, DiscountAmountResponse{
		Amount: pricing.Amount(&req.Discount, req.Subtotal, req.Quantity),
	})
}

// ProductBadge handles GET /pricing/products/{productID}
// query: variant_id, category_id, price (required), sale_price
func (h *PricingHandler) ProductBadge(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	price, err := decimal.NewFromString(q.Get("price"))
	if err != nil {
		writeError(w, h.log, ierr.WithError(err).WithHint("A valid price is required").Mark(ierr.ErrValidation))
		return
	}
	item := models.LineItem{
		ProductID:     chi.URLParam(r, "productID"),
		VariantID:     optional(q.Get("variant_id")),
		CategoryID:    optional(q.Get("category_id")),
		UnitBasePrice: price,
		Quantity:      1,
	}
	if raw := q.Get("sale_price"); raw != "" {
		sale, err := decimal.NewFromString(raw)
		if err != nil {
			writeError(w, h.log, ierr.WithError(err).WithHint("Sale price must be a number").Mark(ierr.ErrValidation))
			return
		}
		item.UnitSalePrice = &sale
	}

	candidates, err := h.autoApply(r)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	candidates = lo.Filter(candidates, func(d models.DiscountCode, _ int) bool { return d.ShowBadge })

	writeJSON(w, http.StatusOK, pricing.ProductDiscounts(candidates, item))
}

// autoApply returns the cached auto-apply discounts that are live now.
func (h *PricingHandler) autoApply(r *http.Request) ([]models.DiscountCode, error) {
	list, err := h.catalog.ListAutoApply(r.Context())
	if err != nil {
		return nil, err
	}
	now := h.now()
	return lo.Filter(list, func(d models.DiscountCode, _ int) bool {
		return d.AutoApply && pricing.InWindow(&d, now)
	}), nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
