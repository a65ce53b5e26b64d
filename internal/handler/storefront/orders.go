package storefront

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgtype"

	"github.com/tranvu/mercato/internal/domain"
	"github.com/tranvu/mercato/internal/handler"
)

// OrderHandler serves the customer's own orders.
type OrderHandler struct {
	orders domain.OrderService
	logger *slog.Logger
}

func NewOrderHandler(orders domain.OrderService, logger *slog.Logger) *OrderHandler {
	return &OrderHandler{orders: orders, logger: logger}
}

type orderView struct {
	ID              string `json:"id"`
	UserEmail       string `json:"userEmail"`
	Address         string `json:"address"`
	Phone           string `json:"phone"`
	Note            string `json:"note,omitempty"`
	TotalPriceCents int64  `json:"totalPriceCents"`
	Method          string `json:"method"`
	PaymentStatus   string `json:"paymentStatus"`
	Status          string `json:"status"`
	CreatedAt       string `json:"createdAt,omitempty"`
}

type orderItemView struct {
	ProductID       string `json:"productId"`
	VariationID     string `json:"variationId,omitempty"`
	ProductName     string `json:"productName"`
	ProductImage    string `json:"productImage,omitempty"`
	Quantity        int32  `json:"quantity"`
	UnitPriceCents  int64  `json:"unitPriceCents"`
	TotalPriceCents int64  `json:"totalPriceCents"`
}

type paymentView struct {
	ID            string `json:"id"`
	AmountCents   int64  `json:"amountCents"`
	Currency      string `json:"currency"`
	Method        string `json:"method"`
	Status        string `json:"status"`
	TransactionID string `json:"transactionId,omitempty"`
	CreatedAt     string `json:"createdAt,omitempty"`
}

type orderDetailView struct {
	Order    orderView       `json:"order"`
	Items    []orderItemView `json:"items"`
	Payments []paymentView   `json:"payments"`
}

func timestampString(ts pgtype.Timestamptz) string {
	if !ts.Valid {
		return ""
	}
	return ts.Time.Format(time.RFC3339)
}

func newOrderView(order *domain.Order) orderView {
	return orderView{
		ID:              domain.UUIDString(order.ID),
		UserEmail:       order.UserEmail,
		Address:         order.Address,
		Phone:           order.Phone,
		Note:            order.Note,
		TotalPriceCents: order.TotalPriceCents,
		Method:          string(order.Method),
		PaymentStatus:   string(order.PaymentStatus),
		Status:          string(order.Status),
		CreatedAt:       timestampString(order.CreatedAt),
	}
}

func newOrderDetailView(detail *domain.OrderDetail) orderDetailView {
	view := orderDetailView{
		Order:    newOrderView(&detail.Order),
		Items:    make([]orderItemView, 0, len(detail.Items)),
		Payments: make([]paymentView, 0, len(detail.Payments)),
	}
	for _, item := range detail.Items {
		view.Items = append(view.Items, orderItemView{
			ProductID:       domain.UUIDString(item.ProductID),
			VariationID:     domain.UUIDString(item.VariationID),
			ProductName:     item.ProductName,
			ProductImage:    item.ProductImage,
			Quantity:        item.Quantity,
			UnitPriceCents:  item.UnitPriceCents,
			TotalPriceCents: item.TotalPriceCents,
		})
	}
	for _, p := range detail.Payments {
		view.Payments = append(view.Payments, paymentView{
			ID:            domain.UUIDString(p.ID),
			AmountCents:   p.AmountCents,
			Currency:      p.Currency,
			Method:        string(p.Method),
			Status:        string(p.Status),
			TransactionID: p.TransactionID,
			CreatedAt:     timestampString(p.CreatedAt),
		})
	}
	return view
}

// ListOrders returns the caller's orders, newest first.
func (h *OrderHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	user, err := domain.RequireUser(r.Context())
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	orders, err := h.orders.ListOrdersByUser(r.Context(), user.ID.String())
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	views := make([]orderView, 0, len(orders))
	for i := range orders {
		views = append(views, newOrderView(&orders[i]))
	}
	handler.RespondJSON(w, http.StatusOK, map[string]any{"orders": views})
}

// GetOrder returns one of the caller's orders with items and payment
// attempts. Another customer's order is reported as forbidden, not hidden:
// the id has already leaked if they hold it.
func (h *OrderHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	user, err := domain.RequireUser(r.Context())
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	detail, err := h.orders.GetOrder(r.Context(), r.PathValue("orderID"))
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	if domain.UUIDString(detail.Order.UserID) != user.ID.String() {
		handler.ErrorResponse(w, r, domain.ErrOrderNotOwned)
		return
	}

	handler.RespondJSON(w, http.StatusOK, newOrderDetailView(detail))
}

// CancelOrder cancels one of the caller's orders, releasing its stock
// reservation and closing any open payment attempt.
func (h *OrderHandler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	user, err := domain.RequireUser(r.Context())
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	order, err := h.orders.Cancel(r.Context(), r.PathValue("orderID"), user.ID.String())
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	handler.RespondJSON(w, http.StatusOK, newOrderView(order))
}
