package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/Kyle-Pantig/e-commerce-admin-v2-sub001/internal/checkout"
	ierr "github.com/Kyle-Pantig/e-commerce-admin-v2-sub001/internal/errors"
	"github.com/Kyle-Pantig/e-commerce-admin-v2-sub001/internal/logger"
	"github.com/Kyle-Pantig/e-commerce-admin-v2-sub001/internal/models"
)

type UpdateItemsRequest struct {
	Items []models.LineItem `json:"items" validate:"dive"`
}

type ApplyCodeRequest struct {
	Code string `json:"code"`
}

// SubmitOrderRequest carries the customer and shipping details. Items and
// the discount are taken from the session.
type SubmitOrderRequest struct {
	CustomerName    string  `json:"customer_name" validate:"required"`
	CustomerEmail   string  `json:"customer_email" validate:"required,email"`
	CustomerPhone   *string `json:"customer_phone,omitempty"`
	ShippingAddress string  `json:"shipping_address" validate:"required"`
	ShippingCity    string  `json:"shipping_city" validate:"required"`
	ShippingState   *string `json:"shipping_state,omitempty"`
	ShippingZip     *string `json:"shipping_zip,omitempty"`
	ShippingCountry string  `json:"shipping_country"`
	PaymentMethod   *string `json:"payment_method,omitempty"`
	Notes           *string `json:"notes,omitempty"`

	ShippingCost decimal.Decimal `json:"shipping_cost"`
	TaxAmount    decimal.Decimal `json:"tax_amount"`
}

type CheckoutHandler struct {
	manager  *checkout.Manager
	validate *validator.Validate
	log      *logger.Logger
}

func NewCheckoutHandler(manager *checkout.Manager, log *logger.Logger) *CheckoutHandler {
	return &CheckoutHandler{manager: manager, validate: validator.New(), log: log}
}

// CreateSession handles POST /checkout/sessions
func (h *CheckoutHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req checkout.CreateParams
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.log, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, h.log, invalidItems(err))
		return
	}

	res, err := h.manager.Create(r.Context(), req)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

// GetSession handles GET /checkout/sessions/{id}
func (h *CheckoutHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	q, err := h.manager.Quote(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, checkout.Result{Quote: q})
}

// UpdateItems handles PUT /checkout/sessions/{id}/items
func (h *CheckoutHandler) UpdateItems(w http.ResponseWriter, r *http.Request) {
	var req UpdateItemsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.log, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, h.log, invalidItems(err))
		return
	}

	res, err := h.manager.UpdateItems(r.Context(), chi.URLParam(r, "id"), req.Items)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// ApplyCode handles POST /checkout/sessions/{id}/discount. A rejected code
// is a normal outcome and is reported in the notification with 200.
func (h *CheckoutHandler) ApplyCode(w http.ResponseWriter, r *http.Request) {
	var req ApplyCodeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.log, err)
		return
	}

	res, err := h.manager.ApplyCode(r.Context(), chi.URLParam(r, "id"), req.Code)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// RemoveCode handles DELETE /checkout/sessions/{id}/discount
func (h *CheckoutHandler) RemoveCode(w http.ResponseWriter, r *http.Request) {
	res, err := h.manager.RemoveCode(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// SubmitOrder handles POST /checkout/sessions/{id}/orders
func (h *CheckoutHandler) SubmitOrder(w http.ResponseWriter, r *http.Request) {
	var req SubmitOrderRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.log, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, h.log, ierr.WithError(err).
			WithHint("Please check the customer and shipping details").
			Mark(ierr.ErrValidation))
		return
	}

	order, err := h.manager.SubmitOrder(r.Context(), chi.URLParam(r, "id"), models.OrderRequest{
		CustomerName:    req.CustomerName,
		CustomerEmail:   req.CustomerEmail,
		CustomerPhone:   req.CustomerPhone,
		ShippingAddress: req.ShippingAddress,
		ShippingCity:    req.ShippingCity,
		ShippingState:   req.ShippingState,
		ShippingZip:     req.ShippingZip,
		ShippingCountry: req.ShippingCountry,
		PaymentMethod:   req.PaymentMethod,
		Notes:           req.Notes,
		ShippingCost:    req.ShippingCost,
		TaxAmount:       req.TaxAmount,
	})
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, order)
}

func invalidItems(err error) error {
	return ierr.WithError(err).
		WithHint("Every item needs a product id and a quantity of at least 1").
		Mark(ierr.ErrValidation)
}
