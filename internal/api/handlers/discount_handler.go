package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	ierr "github.com/Kyle-Pantig/e-commerce-admin-v2-sub001/internal/errors"
	"github.com/Kyle-Pantig/e-commerce-admin-v2-sub001/internal/logger"
	"github.com/Kyle-Pantig/e-commerce-admin-v2-sub001/internal/models"
	"github.com/Kyle-Pantig/e-commerce-admin-v2-sub001/internal/service"
)

// DiscountHandler serves the authoritative discount surface in local mode.
// Its routes and bodies match the store backend so a remote mode instance
// can point at it.
type DiscountHandler struct {
	service *service.DiscountService
	log     *logger.Logger
}

func NewDiscountHandler(svc *service.DiscountService, log *logger.Logger) *DiscountHandler {
	return &DiscountHandler{service: svc, log: log}
}

// ListAutoApply handles GET /discounts/auto-apply/all
func (h *DiscountHandler) ListAutoApply(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.ListAutoApply(r.Context())
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	if list == nil {
		list = []models.DiscountCode{}
	}
	writeJSON(w, http.StatusOK, list)
}

// GetByCode handles GET /discounts/code/{code}
func (h *DiscountHandler) GetByCode(w http.ResponseWriter, r *http.Request) {
	d, err := h.service.GetByCode(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// Validate handles POST /discounts/validate. Business rule failures are
// answered with 200 and valid=false.
func (h *DiscountHandler) Validate(w http.ResponseWriter, r *http.Request) {
	var req models.ValidationRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.log, err)
		return
	}

	resp, err := h.service.Validate(r.Context(), req)
	if err != nil {
		if ierr.IsNotFound(err) || ierr.IsRejected(err) {
			writeJSON(w, http.StatusOK, models.ValidationResponse{
				Valid:   false,
				Message: ierr.Reason(err),
			})
			return
		}
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// CreateOrder handles POST /orders
func (h *DiscountHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req models.OrderRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.log, err)
		return
	}

	order, err := h.service.CreateOrder(r.Context(), req)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, order)
}

// ListDiscounts handles GET /admin/discounts
// query: page, per_page, search, is_active
func (h *DiscountHandler) ListDiscounts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := models.DiscountFilter{Search: q.Get("search")}

	var err error
	if f.Page, err = intParam(q.Get("page")); err != nil {
		writeError(w, h.log, err)
		return
	}
	if f.PerPage, err = intParam(q.Get("per_page")); err != nil {
		writeError(w, h.log, err)
		return
	}
	if raw := q.Get("is_active"); raw != "" {
		active, err := strconv.ParseBool(raw)
		if err != nil {
			writeError(w, h.log, ierr.WithError(err).WithHint("is_active must be true or false").Mark(ierr.ErrValidation))
			return
		}
		f.IsActive = &active
	}

	list, err := h.service.ListDiscounts(r.Context(), f)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// CreateDiscount handles POST /admin/discounts
func (h *DiscountHandler) CreateDiscount(w http.ResponseWriter, r *http.Request) {
	var req models.CreateDiscountRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.log, err)
		return
	}

	d, err := h.service.CreateDiscount(r.Context(), req)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, d)
}

// GetDiscount handles GET /admin/discounts/{id}
func (h *DiscountHandler) GetDiscount(w http.ResponseWriter, r *http.Request) {
	d, err := h.service.GetDiscount(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// UpdateDiscount handles PATCH /admin/discounts/{id}
func (h *DiscountHandler) UpdateDiscount(w http.ResponseWriter, r *http.Request) {
	var req models.UpdateDiscountRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.log, err)
		return
	}

	d, err := h.service.UpdateDiscount(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// DeleteDiscount handles DELETE /admin/discounts/{id}
func (h *DiscountHandler) DeleteDiscount(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteDiscount(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ToggleDiscount handles POST /admin/discounts/{id}/toggle
func (h *DiscountHandler) ToggleDiscount(w http.ResponseWriter, r *http.Request) {
	d, err := h.service.ToggleDiscount(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// intParam parses an optional integer query value. Blank is zero.
func intParam(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, ierr.WithError(err).WithHintf("%q is not a number", raw).Mark(ierr.ErrValidation)
	}
	return n, nil
}
