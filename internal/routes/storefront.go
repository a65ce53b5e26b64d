package routes

import (
	"github.com/tranvu/mercato/internal/middleware"
	"github.com/tranvu/mercato/internal/router"
)

// RegisterStorefrontRoutes registers the customer-facing API routes.
// Everything here requires a signed-in customer; anonymous callers get 401
// before the handler runs.
func RegisterStorefrontRoutes(r *router.Router, deps StorefrontDeps) {
	api := r.Group(middleware.RequireAuth)

	// Session. The identity provider issues sessions; these endpoints read,
	// refresh, and clear them. Logout works without a session so stale
	// clients can always sign out.
	api.Get("/api/auth/me", deps.Session.Me)
	r.Post("/api/auth/logout", deps.Session.Logout)

	// Shopping cart
	api.Get("/api/cart", deps.Cart.GetCart)
	api.Post("/api/cart/items", deps.Cart.AddItem)
	api.Patch("/api/cart/items/{productID}", deps.Cart.UpdateItem)
	api.Delete("/api/cart/items/{productID}", deps.Cart.RemoveItem)
	api.Post("/api/cart/items/{productID}/select", deps.Cart.SelectItem)
	api.Post("/api/cart/select-all", deps.Cart.SelectAll)

	// Checkout flow. Submission is rate limited per client IP on top of the
	// per-cart in-flight guard inside the orchestrator.
	if deps.CheckoutLimiter != nil {
		api.Post("/api/checkout", deps.Checkout.Submit, deps.CheckoutLimiter.Middleware)
	} else {
		api.Post("/api/checkout", deps.Checkout.Submit)
	}
	api.Get("/api/checkout/success", deps.Checkout.CheckoutSuccess)

	// Orders
	api.Get("/api/orders", deps.Orders.ListOrders)
	api.Get("/api/orders/{orderID}", deps.Orders.GetOrder)
	api.Post("/api/orders/{orderID}/cancel", deps.Orders.CancelOrder)
	api.Post("/api/orders/{orderID}/retry-payment", deps.Checkout.RetryPayment)

	// Shipping address hierarchy for the checkout form selects. Read-only
	// reference data, no sign-in required.
	r.Get("/api/address/provinces", deps.Address.ListProvinces)
	r.Get("/api/address/provinces/{provinceID}/districts", deps.Address.ListDistricts)
	r.Get("/api/address/districts/{districtID}/wards", deps.Address.ListWards)
}
