// Package events defines the integration events Mercato publishes and the
// publisher seam used to emit them. Downstream consumers (notifications,
// fulfillment, analytics) subscribe over NATS; services never block on them.
package events

import (
	"encoding/json"
	"time"
)

const (
	EventOrderCreated       = "OrderCreated"
	EventOrderStatusChanged = "OrderStatusChanged"
	EventPaymentInitiated   = "PaymentInitiated"
	EventPaymentSucceeded   = "PaymentSucceeded"
	EventPaymentFailed      = "PaymentFailed"
	EventPaymentRefunded    = "PaymentRefunded"
	EventStockReserved      = "StockReserved"
	EventStockReleased      = "StockReleased"
	EventStockAdjusted      = "StockAdjusted"
	EventLowStock           = "LowStock"
)

// Subjects, one per event type. Every event for one order carries the
// order id as correlation id so consumers can maintain per-order ordering.
const (
	SubjectOrderCreated       = "mercato.order.created"
	SubjectOrderStatusChanged = "mercato.order.status"
	SubjectPaymentInitiated   = "mercato.payment.initiated"
	SubjectPaymentSucceeded   = "mercato.payment.succeeded"
	SubjectPaymentFailed      = "mercato.payment.failed"
	SubjectPaymentRefunded    = "mercato.payment.refunded"
	SubjectStockReserved      = "mercato.stock.reserved"
	SubjectStockReleased      = "mercato.stock.released"
	SubjectStockAdjusted      = "mercato.stock.adjusted"
	SubjectLowStock           = "mercato.stock.low"
)

// Envelope wraps every published event with identity and provenance.
type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Payload       json.RawMessage `json:"payload"`
}

type ItemQty struct {
	ProductID   string `json:"product_id"`
	VariationID string `json:"variation_id,omitempty"`
	Qty         int32  `json:"qty"`
}

type OrderCreatedPayload struct {
	OrderID       string    `json:"order_id"`
	UserID        string    `json:"user_id"`
	Items         []ItemQty `json:"items"`
	TotalCents    int64     `json:"total_cents"`
	PaymentMethod string    `json:"payment_method"`
}

type OrderStatusChangedPayload struct {
	OrderID string `json:"order_id"`
	From    string `json:"from"`
	To      string `json:"to"`
}

type PaymentInitiatedPayload struct {
	OrderID     string `json:"order_id"`
	PaymentID   string `json:"payment_id"`
	Method      string `json:"method"`
	AmountCents int64  `json:"amount_cents"`
}

type PaymentSucceededPayload struct {
	OrderID       string `json:"order_id"`
	PaymentID     string `json:"payment_id"`
	TransactionID string `json:"transaction_id,omitempty"`
	AmountCents   int64  `json:"amount_cents"`
}

type PaymentFailedPayload struct {
	OrderID   string `json:"order_id"`
	PaymentID string `json:"payment_id"`
	Reason    string `json:"reason"`
}

type PaymentRefundedPayload struct {
	OrderID     string `json:"order_id"`
	PaymentID   string `json:"payment_id"`
	AmountCents int64  `json:"amount_cents"`
	Partial     bool   `json:"partial"`
}

type StockReservedPayload struct {
	OrderID string    `json:"order_id"`
	Items   []ItemQty `json:"items"`
}

type StockReleasedPayload struct {
	OrderID string `json:"order_id"`
}

type StockAdjustedPayload struct {
	StockItemID string `json:"stock_item_id"`
	Delta       int32  `json:"delta"`
	Type        string `json:"type"`
	Reason      string `json:"reason,omitempty"`
	ActorID     string `json:"actor_id,omitempty"`
}

type LowStockPayload struct {
	StockItemID string `json:"stock_item_id"`
	ProductID   string `json:"product_id"`
	Available   int32  `json:"available"`
	MinLevel    int32  `json:"min_level"`
}
