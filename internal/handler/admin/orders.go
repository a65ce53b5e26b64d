// Package admin holds the back-office JSON API handlers. Routes mounted
// with these handlers sit behind the admin-role middleware.
package admin

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgtype"

	"github.com/tranvu/mercato/internal/domain"
	"github.com/tranvu/mercato/internal/handler"
)

// OrderHandler serves the back-office order console.
type OrderHandler struct {
	orders domain.OrderService
	logger *slog.Logger
}

func NewOrderHandler(orders domain.OrderService, logger *slog.Logger) *OrderHandler {
	return &OrderHandler{orders: orders, logger: logger}
}

type orderRow struct {
	ID              string   `json:"id"`
	UserEmail       string   `json:"userEmail"`
	Address         string   `json:"address"`
	Phone           string   `json:"phone"`
	TotalPriceCents int64    `json:"totalPriceCents"`
	Method          string   `json:"method"`
	PaymentStatus   string   `json:"paymentStatus"`
	Status          string   `json:"status"`
	NextStatuses    []string `json:"nextStatuses"`
	CreatedAt       string   `json:"createdAt,omitempty"`
}

func timestampString(ts pgtype.Timestamptz) string {
	if !ts.Valid {
		return ""
	}
	return ts.Time.Format(time.RFC3339)
}

func newOrderRow(order *domain.Order) orderRow {
	successors := order.Status.AllowedSuccessors()
	next := make([]string, 0, len(successors))
	for _, s := range successors {
		next = append(next, string(s))
	}
	return orderRow{
		ID:              domain.UUIDString(order.ID),
		UserEmail:       order.UserEmail,
		Address:         order.Address,
		Phone:           order.Phone,
		TotalPriceCents: order.TotalPriceCents,
		Method:          string(order.Method),
		PaymentStatus:   string(order.PaymentStatus),
		Status:          string(order.Status),
		NextStatuses:    next,
		CreatedAt:       timestampString(order.CreatedAt),
	}
}

// ListOrders lists orders for the console, optionally filtered by status.
func (h *OrderHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	var filter *domain.OrderStatus
	if raw := r.URL.Query().Get("status"); raw != "" {
		status := domain.OrderStatus(raw)
		if !status.IsValid() {
			handler.ErrorResponse(w, r, domain.Invalid("admin.orders", "unknown order status: "+raw))
			return
		}
		filter = &status
	}

	orders, err := h.orders.ListOrders(r.Context(), filter)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	rows := make([]orderRow, 0, len(orders))
	for i := range orders {
		rows = append(rows, newOrderRow(&orders[i]))
	}
	handler.RespondJSON(w, http.StatusOK, map[string]any{"orders": rows})
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

// UpdateStatus moves an order along the lifecycle. Transitions outside the
// allowed-successor table come back as conflicts; the CANCELLED and
// DELIVERED side effects on the stock ledger ride along in the service.
func (h *OrderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req updateStatusRequest
	if err := handler.DecodeJSON(r, &req); err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	status := domain.OrderStatus(req.Status)
	if !status.IsValid() {
		handler.ErrorResponse(w, r, domain.Invalid("admin.orders", "unknown order status: "+req.Status))
		return
	}

	order, err := h.orders.UpdateStatus(r.Context(), r.PathValue("orderID"), status)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	handler.RespondJSON(w, http.StatusOK, newOrderRow(order))
}
