// Package repository defines the storage seam for Mercato.
//
// Services depend on the Querier interface; Postgres backs it in
// production and Memory backs it in tests and local development. Both
// implementations enforce the same ledger invariants: stock counters never
// go negative, reservation batches apply all-or-nothing, and movements are
// append-only.
package repository

import (
	"context"
	"errors"

	"github.com/tranvu/mercato/internal/domain"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("repository: not found")

// ErrNegativeStock is returned when an operation would drive a stock
// counter below zero. Callers treat it as an integrity violation.
var ErrNegativeStock = errors.New("repository: stock counter would go negative")

// StockShortfall names one SKU a reservation batch could not cover.
type StockShortfall struct {
	SKU       domain.SKURef
	Requested int32
	Available int32
}

// InsertOrderParams carries one order plus its lines for atomic creation.
type InsertOrderParams struct {
	UserID    string
	UserEmail string
	Address   string
	Phone     string
	Note      string
	Method    domain.PaymentMethod
	Items     []domain.OrderItemInput
}

// InsertPaymentParams carries one payment attempt.
type InsertPaymentParams struct {
	OrderID     string
	AmountCents int64
	Currency    string
	Method      domain.PaymentMethod
	Status      domain.PaymentStatus
}

// InsertRefundParams carries one refund record.
type InsertRefundParams struct {
	PaymentID   string
	AmountCents int64
	Reason      string
}

// AdjustStockParams carries one manual stock correction.
type AdjustStockParams struct {
	StockItemID string
	Delta       int32
	Type        domain.MovementType
	Reason      string
	Reference   string
	ActorID     string
}

// UpsertCartItemParams adds a line to a cart or bumps its quantity.
type UpsertCartItemParams struct {
	CartID         string
	SKU            domain.SKURef
	ProductName    string
	ProductImage   string
	Quantity       int32
	UnitPriceCents int64
}

// Querier is the storage interface the services are written against.
type Querier interface {
	// --- Orders ---

	// CreateOrderWithReservation inserts the order and its items and
	// reserves stock for every line in one unit of work. If any line is
	// short, nothing is applied and the shortfalls are returned with a nil
	// detail.
	CreateOrderWithReservation(ctx context.Context, params InsertOrderParams) (*domain.OrderDetail, []StockShortfall, error)

	GetOrderByID(ctx context.Context, orderID string) (domain.Order, error)
	GetOrderItems(ctx context.Context, orderID string) ([]domain.OrderItem, error)
	ListOrdersByUser(ctx context.Context, userID string) ([]domain.Order, error)
	ListOrders(ctx context.Context, status *domain.OrderStatus) ([]domain.Order, error)
	UpdateOrderStatus(ctx context.Context, orderID string, status domain.OrderStatus) (domain.Order, error)
	UpdateOrderPaymentStatus(ctx context.Context, orderID string, status domain.PaymentStatus) (domain.Order, error)

	// --- Payments ---

	InsertPayment(ctx context.Context, params InsertPaymentParams) (domain.Payment, error)
	GetPaymentByID(ctx context.Context, paymentID string) (domain.Payment, error)
	// GetOpenPaymentByOrder returns the order's single non-terminal payment,
	// or ErrNotFound when every attempt is settled.
	GetOpenPaymentByOrder(ctx context.Context, orderID string) (domain.Payment, error)
	ListPaymentsByOrder(ctx context.Context, orderID string) ([]domain.Payment, error)
	UpdatePaymentStatus(ctx context.Context, paymentID string, status domain.PaymentStatus, transactionID string) (domain.Payment, error)
	InsertRefund(ctx context.Context, params InsertRefundParams) (domain.Refund, error)
	SumRefundsByPayment(ctx context.Context, paymentID string) (int64, error)

	// --- Stock ledger ---

	GetStockBySKU(ctx context.Context, sku domain.SKURef) (domain.StockItem, error)
	GetStockItem(ctx context.Context, stockItemID string) (domain.StockItem, error)
	ListStockItems(ctx context.Context) ([]domain.StockItem, error)
	ListStockMovements(ctx context.Context, stockItemID string) ([]domain.StockMovement, error)

	// ReserveStock atomically moves quantity from available to reserved
	// for every item, recording RESERVED movements referencing orderID.
	// All-or-nothing: on any shortfall nothing is applied.
	ReserveStock(ctx context.Context, orderID string, items []domain.ReserveItem) ([]StockShortfall, error)

	// ReleaseStock reverses the order's active reservation, recording
	// RELEASED movements. No-op when no active reservation exists.
	ReleaseStock(ctx context.Context, orderID string) error

	// CommitStock consumes the order's reservation on fulfillment,
	// recording OUT movements. No-op when no active reservation exists.
	CommitStock(ctx context.Context, orderID string) error

	// AdjustStock applies a signed delta to available stock, recording a
	// movement. Returns ErrNegativeStock without applying anything if the
	// delta would drive the counter negative.
	AdjustStock(ctx context.Context, params AdjustStockParams) (domain.StockItem, error)

	// --- Users ---

	// GetUserByEmail resolves an identity reference by email.
	GetUserByEmail(ctx context.Context, email string) (domain.User, error)

	// UpsertUser records an identity reference, updating the role when the
	// email is already known.
	UpsertUser(ctx context.Context, email, role string) (domain.User, error)

	// --- Carts ---

	GetOrCreateCartByUser(ctx context.Context, userID string) (domain.Cart, error)
	GetCartByID(ctx context.Context, cartID string) (domain.Cart, error)
	GetCartItems(ctx context.Context, cartID string) ([]domain.CartItem, error)
	UpsertCartItem(ctx context.Context, params UpsertCartItemParams) error
	UpdateCartItemQuantity(ctx context.Context, cartID string, sku domain.SKURef, quantity int32) error
	DeleteCartItem(ctx context.Context, cartID string, sku domain.SKURef) error
	SetCartItemSelected(ctx context.Context, cartID string, sku domain.SKURef, selected bool) error
	SetAllCartItemsSelected(ctx context.Context, cartID string, selected bool) error
	DeleteSelectedCartItems(ctx context.Context, cartID string) error
	ClearCart(ctx context.Context, cartID string) error
}
