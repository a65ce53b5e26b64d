package domain

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgtype"
)

// OrderStatus is the closed set of states an order moves through.
type OrderStatus string

const (
	OrderPendingPayment OrderStatus = "PENDING_PAYMENT"
	OrderPaid           OrderStatus = "PAID"
	OrderConfirmed      OrderStatus = "CONFIRMED"
	OrderProcessing     OrderStatus = "PROCESSING"
	OrderShipped        OrderStatus = "SHIPPED"
	OrderDelivered      OrderStatus = "DELIVERED"
	OrderCancelled      OrderStatus = "CANCELLED"
	OrderPaymentFailed  OrderStatus = "PAYMENT_FAILED"
)

// orderTransitions is the single authoritative allowed-successor table.
// Every status-mutating entry point (user cancellation, admin update,
// payment callback) consults it; nothing infers transitions ad hoc.
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderPendingPayment: {OrderPaid, OrderCancelled, OrderPaymentFailed},
	OrderPaid:           {OrderConfirmed, OrderCancelled},
	OrderConfirmed:      {OrderProcessing, OrderCancelled},
	OrderProcessing:     {OrderShipped, OrderCancelled},
	OrderShipped:        {OrderDelivered},
	OrderPaymentFailed:  {OrderPendingPayment, OrderCancelled},
	OrderDelivered:      {},
	OrderCancelled:      {},
}

// IsValid reports whether s is a known order status.
func (s OrderStatus) IsValid() bool {
	_, ok := orderTransitions[s]
	return ok
}

// IsTerminal reports whether s has no outbound transitions.
func (s OrderStatus) IsTerminal() bool {
	next, ok := orderTransitions[s]
	return ok && len(next) == 0
}

// CanTransitionTo reports whether to is in the allowed-successor set of s.
func (s OrderStatus) CanTransitionTo(to OrderStatus) bool {
	for _, next := range orderTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// AllowedSuccessors returns a copy of the allowed-successor set of s.
func (s OrderStatus) AllowedSuccessors() []OrderStatus {
	next := orderTransitions[s]
	out := make([]OrderStatus, len(next))
	copy(out, next)
	return out
}

// InvalidTransitionError reports an attempted status change outside the
// transition table. It names both statuses so integrity bugs are loggable.
type InvalidTransitionError struct {
	Entity string // "order" or "payment"
	From   string
	To     string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("illegal %s status transition: %s -> %s", e.Entity, e.From, e.To)
}

// ValidateOrderTransition checks a proposed order status change against the
// transition table. Illegal transitions are integrity errors, not user input
// errors: they are rejected outright, never coerced.
func ValidateOrderTransition(from, to OrderStatus) error {
	if !from.IsValid() {
		return Errorf(EINVALID, "order.transition", "unknown order status: %s", from)
	}
	if !to.IsValid() {
		return Errorf(EINVALID, "order.transition", "unknown order status: %s", to)
	}
	if !from.CanTransitionTo(to) {
		return &Error{
			Code:    ECONFLICT,
			Op:      "order.transition",
			Message: fmt.Sprintf("cannot change order status from %s to %s", from, to),
			Err:     &InvalidTransitionError{Entity: "order", From: string(from), To: string(to)},
		}
	}
	return nil
}

// Order-related domain errors.
var (
	ErrOrderNotFound    = &Error{Code: ENOTFOUND, Message: "Order not found"}
	ErrEmptyCart        = &Error{Code: EINVALID, Message: "No items selected for checkout"}
	ErrOrderNotOwned    = &Error{Code: EFORBIDDEN, Message: "Order belongs to another customer"}
	ErrOrderTerminal    = &Error{Code: ECONFLICT, Message: "Order is in a terminal status"}
	ErrTotalMismatch    = &Error{Code: EINTERNAL, Message: "Order total does not match item totals"}
	ErrSubmitInFlight   = &Error{Code: ECONFLICT, Message: "A submission for this cart is already in progress"}
)

// OrderService provides business logic for order operations.
type OrderService interface {
	// CreateOrder persists an order from a selected cart snapshot.
	// Stock reservation happens inside the same unit of work: if any item
	// cannot be reserved, no order is persisted.
	CreateOrder(ctx context.Context, params CreateOrderParams) (*OrderDetail, error)

	// GetOrder retrieves a single order with its items and payments.
	GetOrder(ctx context.Context, orderID string) (*OrderDetail, error)

	// ListOrdersByUser retrieves a user's order history, newest first.
	ListOrdersByUser(ctx context.Context, userID string) ([]Order, error)

	// ListOrders retrieves orders for the admin console, optionally
	// filtered by status.
	ListOrders(ctx context.Context, status *OrderStatus) ([]Order, error)

	// UpdateStatus transitions an order, consulting the transition table.
	// Entering CANCELLED releases the order's stock reservation; entering
	// DELIVERED commits it.
	UpdateStatus(ctx context.Context, orderID string, to OrderStatus) (*Order, error)

	// Cancel is the customer-facing cancellation entry point. It routes
	// through UpdateStatus after verifying ownership.
	Cancel(ctx context.Context, orderID, userID string) (*Order, error)
}

// CreateOrderParams carries everything needed to persist an order.
type CreateOrderParams struct {
	UserID     string
	UserEmail  string
	Address    string // composed: street, ward, district, province
	Phone      string
	Note       string
	Items      []OrderItemInput
	Method     PaymentMethod
}

// OrderItemInput is one line captured from the cart at submission time.
type OrderItemInput struct {
	ProductID      string
	VariationID    string // empty when the product has no variations
	ProductName    string
	ProductImage   string
	Quantity       int32
	UnitPriceCents int64
}

// Order is the order view model.
type Order struct {
	ID              pgtype.UUID
	UserID          pgtype.UUID
	UserEmail       string
	Address         string
	Phone           string
	Note            string
	TotalPriceCents int64
	Method          PaymentMethod
	PaymentStatus   PaymentStatus
	Status          OrderStatus
	CreatedAt       pgtype.Timestamptz
	UpdatedAt       pgtype.Timestamptz
}

// OrderItem is an immutable order line. Product name and image are captured
// at order time and do not follow later product edits.
type OrderItem struct {
	ID              pgtype.UUID
	OrderID         pgtype.UUID
	ProductID       pgtype.UUID
	VariationID     pgtype.UUID // invalid UUID when absent
	ProductName     string
	ProductImage    string
	Quantity        int32
	UnitPriceCents  int64
	TotalPriceCents int64
}

// OrderDetail aggregates an order with its items and payment attempts.
type OrderDetail struct {
	Order    Order
	Items    []OrderItem
	Payments []Payment
}

// ValidateTotals enforces the order total invariant:
// totalPrice == sum of item totals and each item total == price * quantity.
// A violation is an integrity error, not user input.
func (d *OrderDetail) ValidateTotals() error {
	var sum int64
	for _, item := range d.Items {
		if item.TotalPriceCents != item.UnitPriceCents*int64(item.Quantity) {
			return WrapError(ErrTotalMismatch, EINTERNAL, "order.validate",
				fmt.Sprintf("item %s total %d != %d x %d", item.ProductName,
					item.TotalPriceCents, item.UnitPriceCents, item.Quantity))
		}
		sum += item.TotalPriceCents
	}
	if sum != d.Order.TotalPriceCents {
		return WrapError(ErrTotalMismatch, EINTERNAL, "order.validate",
			fmt.Sprintf("order total %d != item sum %d", d.Order.TotalPriceCents, sum))
	}
	return nil
}
