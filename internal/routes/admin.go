package routes

import (
	"github.com/tranvu/mercato/internal/middleware"
	"github.com/tranvu/mercato/internal/router"
)

// RegisterAdminRoutes registers the back-office API routes.
// All routes require the admin role.
func RegisterAdminRoutes(r *router.Router, deps AdminDeps) {
	admin := r.Group(middleware.RequireAuth, middleware.RequireAdmin)

	// Order console
	admin.Get("/api/admin/orders", deps.Orders.ListOrders)
	admin.Patch("/api/admin/orders/{orderID}/status", deps.Orders.UpdateStatus)

	// Stock ledger console
	admin.Get("/api/admin/stock", deps.Stock.ListStock)
	admin.Get("/api/admin/stock/{stockID}", deps.Stock.GetStock)
	admin.Post("/api/admin/stock/{stockID}/adjust", deps.Stock.AdjustStock)
	admin.Get("/api/admin/stock/{stockID}/movements", deps.Stock.ListMovements)

	// Refunds
	admin.Post("/api/admin/payments/{paymentID}/refund", deps.Payments.Refund)
}
