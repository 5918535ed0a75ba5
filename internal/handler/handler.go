// Package handler exposes the storefront over HTTP.
package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/xenking/storefront-checkout/internal/domain/cart"
	"github.com/xenking/storefront-checkout/internal/domain/checkout"
	"github.com/xenking/storefront-checkout/internal/domain/product"
	"github.com/xenking/storefront-checkout/pkg/httpmiddleware"
)

// HandlerConfig holds non-dependency configuration for the Handler.
type HandlerConfig struct {
	// ImageBaseURL is prepended to relative image paths in product responses.
	ImageBaseURL string
	// SecureCookies marks the cart cookie Secure.
	SecureCookies bool
	// CartCookieTTL is the lifetime of the anonymous cart cookie.
	CartCookieTTL time.Duration
}

// Handler serves the storefront API.
type Handler struct {
	products product.Repository
	carts    *cart.Service
	checkout *checkout.Service
	cfg      HandlerConfig
}

// NewHandler constructs a Handler with the required domain dependencies.
func NewHandler(
	cfg HandlerConfig,
	products product.Repository,
	carts *cart.Service,
	checkoutSvc *checkout.Service,
) *Handler {
	if cfg.CartCookieTTL <= 0 {
		cfg.CartCookieTTL = 30 * 24 * time.Hour
	}
	return &Handler{
		products: products,
		carts:    carts,
		checkout: checkoutSvc,
		cfg:      cfg,
	}
}

// Router mounts the API under /api. Middlewares run inside the router so they
// can see the matched route pattern.
func (h *Handler) Router(sec *SecurityHandler, middlewares ...httpmiddleware.Middleware) *chi.Mux {
	r := chi.NewRouter()
	for _, mw := range middlewares {
		r.Use(mw)
	}
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		httpmiddleware.WriteError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		httpmiddleware.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(sec.Authenticate)

		r.Get("/products", h.ListProducts)
		r.Get("/products/{id}", h.GetProduct)

		r.Get("/cart", h.GetCart)
		r.Post("/cart/items/{productId}", h.AddCartItem)
		r.Delete("/cart/items/{itemId}", h.RemoveCartItem)

		r.Group(func(r chi.Router) {
			r.Use(RequireIdentity)
			r.Get("/checkout", h.BeginCheckout)
			r.Post("/checkout", h.SubmitOrder)
			r.Get("/orders", h.ListOrders)
			r.Get("/orders/{id}", h.GetOrder)
		})
	})
	return r
}
