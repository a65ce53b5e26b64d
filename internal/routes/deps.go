// Package routes wires handlers onto the router. Registration is grouped by
// audience: storefront (customers), admin (back office) and system
// (health, metrics).
package routes

import (
	"context"

	"github.com/tranvu/mercato/internal/handler/admin"
	"github.com/tranvu/mercato/internal/handler/storefront"
	"github.com/tranvu/mercato/internal/middleware"
)

// StorefrontDeps contains dependencies for the customer-facing API routes.
type StorefrontDeps struct {
	Session  *storefront.SessionHandler
	Cart     *storefront.CartHandler
	Checkout *storefront.CheckoutHandler
	Orders   *storefront.OrderHandler
	Address  *storefront.AddressHandler

	// CheckoutLimiter throttles checkout submission per client IP.
	CheckoutLimiter *middleware.RateLimiter
}

// AdminDeps contains dependencies for the back-office API routes.
type AdminDeps struct {
	Orders   *admin.OrderHandler
	Stock    *admin.StockHandler
	Payments *admin.PaymentHandler
}

// SystemDeps contains dependencies for the operational endpoints.
type SystemDeps struct {
	Metrics *middleware.Metrics

	// PingDB reports database reachability for the health endpoint.
	PingDB func(ctx context.Context) error
}
