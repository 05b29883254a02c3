package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/Kyle-Pantig/e-commerce-admin-v2-sub001/internal/api/handlers"
	"github.com/Kyle-Pantig/e-commerce-admin-v2-sub001/internal/api/middleware"
	"github.com/Kyle-Pantig/e-commerce-admin-v2-sub001/internal/checkout"
	"github.com/Kyle-Pantig/e-commerce-admin-v2-sub001/internal/logger"
	"github.com/Kyle-Pantig/e-commerce-admin-v2-sub001/internal/service"
)

type Handlers struct {
	Pricing  *handlers.PricingHandler
	Checkout *handlers.CheckoutHandler
	// Discount is nil in remote mode.
	Discount *handlers.DiscountHandler
}

func NewHandlers(catalog checkout.Catalog, manager *checkout.Manager, discounts *service.DiscountService, log *logger.Logger) Handlers {
	h := Handlers{
		Pricing:  handlers.NewPricingHandler(catalog, log),
		Checkout: handlers.NewCheckoutHandler(manager, log),
	}
	if discounts != nil {
		h.Discount = handlers.NewDiscountHandler(discounts, log)
	}
	return h
}

// NewRouter builds the HTTP router for the pricing-service
func NewRouter(h Handlers, log *logger.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(middleware.Logger(log))
	r.Use(chimw.Recoverer)

	r.Route("/pricing", func(r chi.Router) {
		r.Post("/quote", h.Pricing.Quote)
		r.Post("/discount-amount", h.Pricing.DiscountAmount)
		r.Get("/products/{productID}", h.Pricing.ProductBadge)
	})

	r.Route("/checkout/sessions", func(r chi.Router) {
		r.Post("/", h.Checkout.CreateSession)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.Checkout.GetSession)
			r.Put("/items", h.Checkout.UpdateItems)
			r.Post("/discount", h.Checkout.ApplyCode)
			r.Delete("/discount", h.Checkout.RemoveCode)
			r.Post("/orders", h.Checkout.SubmitOrder)
		})
	})

	// Authoritative endpoints, local mode only
	if h.Discount != nil {
		r.Route("/discounts", func(r chi.Router) {
			r.Get("/auto-apply/all", h.Discount.ListAutoApply)
			r.Get("/code/{code}", h.Discount.GetByCode)
			r.Post("/validate", h.Discount.Validate)
		})
		r.Post("/orders", h.Discount.CreateOrder)

		r.Route("/admin", func(r chi.Router) {
			r.Get("/discounts", h.Discount.ListDiscounts)
			r.Post("/discounts", h.Discount.CreateDiscount)
			r.Get("/discounts/{id}", h.Discount.GetDiscount)
			r.Patch("/discounts/{id}", h.Discount.UpdateDiscount)
			r.Delete("/discounts/{id}", h.Discount.DeleteDiscount)
			r.Post("/discounts/{id}/toggle", h.Discount.ToggleDiscount)
		})
	}

	// health
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	return r
}
