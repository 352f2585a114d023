// Package handler exposes the storefront over HTTP.
package handler

import (
	"net/http"
	"time"

	"github.com/xenking/phoneplace/internal/domain/cart"
	"github.com/xenking/phoneplace/internal/domain/identity"
	"github.com/xenking/phoneplace/internal/domain/order"
)

// Config holds non-dependency configuration for the Handler.
type Config struct {
	// ImageBaseURL is prepended to relative image paths. When empty, image
	// paths are returned as stored in the database.
	ImageBaseURL string
	// AuthCookie carries the signed user token.
	AuthCookie string
	// SessionCookie carries the anonymous session id.
	SessionCookie string
	// SessionLifetime is the session cookie Max-Age.
	SessionLifetime time.Duration
	// SecureCookies marks issued cookies Secure.
	SecureCookies bool
}

func (c *Config) setDefaults() {
	if c.AuthCookie == "" {
		c.AuthCookie = "auth_token"
	}
	if c.SessionCookie == "" {
		c.SessionCookie = "session_id"
	}
	if c.SessionLifetime <= 0 {
		c.SessionLifetime = identity.SessionLifetime
	}
}

// Handler serves the cart, checkout, order and admin endpoints.
type Handler struct {
	cfg      Config
	resolver *identity.Resolver
	carts    *cart.Service
	orders   *order.Service
}

// New constructs a Handler with the required domain dependencies.
func New(cfg Config, resolver *identity.Resolver, carts *cart.Service, orders *order.Service) *Handler {
	cfg.setDefaults()
	return &Handler{
		cfg:      cfg,
		resolver: resolver,
		carts:    carts,
		orders:   orders,
	}
}

// Register mounts every API route on mux behind identity resolution.
func (h *Handler) Register(mux *http.ServeMux) {
	route := func(pattern string, fn http.HandlerFunc) {
		mux.Handle(pattern, h.Identify(fn))
	}

	route("GET /api/cart", h.GetCart)
	route("POST /api/cart/add", h.AddToCart)
	route("PUT /api/cart/update", h.UpdateCartItem)
	route("DELETE /api/cart", h.RemoveCartItem)

	route("POST /api/orders", h.PlaceOrder)
	route("GET /api/orders", h.ListOrders)
	route("GET /api/orders/{id}", h.GetOrder)

	route("GET /api/admin/orders", h.AdminListOrders)
	route("PUT /api/admin/orders", h.AdminSetStatus)
	route("GET /api/admin/stats", h.AdminStats)

	route("GET /api/auth/me", h.Me)
}
