package domain

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgtype"
)

// PaymentMethod is how an order is settled.
type PaymentMethod string

const (
	// MethodCOD settles in cash on delivery; no gateway call is made and
	// the payment stays PENDING until the courier collects.
	MethodCOD PaymentMethod = "COD"

	// MethodWallet settles through the third-party wallet gateway.
	MethodWallet PaymentMethod = "WALLET"
)

// RedirectStyle is how control is handed to the wallet gateway.
type RedirectStyle string

const (
	RedirectWeb      RedirectStyle = "WEB"
	RedirectQR       RedirectStyle = "QR"
	RedirectDeeplink RedirectStyle = "DEEPLINK"
)

// PaymentSelection is the resolved {method, redirect style} pair behind a
// user-facing payment option. The two axes are independent: COD has no
// redirect style, and the three wallet options differ only in style.
type PaymentSelection struct {
	Method PaymentMethod
	Style  RedirectStyle
}

// paymentOptions maps the four selectable option identifiers to their
// selection. A single lookup table instead of if/else chains at call sites.
var paymentOptions = map[string]PaymentSelection{
	"cod":             {Method: MethodCOD},
	"wallet":          {Method: MethodWallet, Style: RedirectWeb},
	"wallet_qr":       {Method: MethodWallet, Style: RedirectQR},
	"wallet_deeplink": {Method: MethodWallet, Style: RedirectDeeplink},
}

// ResolvePaymentOption maps a user-selected option identifier to its
// PaymentSelection. Unknown identifiers are a validation error.
func ResolvePaymentOption(option string) (PaymentSelection, error) {
	sel, ok := paymentOptions[option]
	if !ok {
		return PaymentSelection{}, Errorf(EINVALID, "payment.resolve", "unknown payment option: %s", option)
	}
	return sel, nil
}

// PaymentOptions returns the selectable option identifiers.
func PaymentOptions() []string {
	return []string{"cod", "wallet", "wallet_qr", "wallet_deeplink"}
}

// PaymentStatus is the closed set of states a payment moves through,
// independent of but referenced by the order.
type PaymentStatus string

const (
	PaymentPending           PaymentStatus = "PENDING"
	PaymentProcessing        PaymentStatus = "PROCESSING"
	PaymentSuccessful        PaymentStatus = "SUCCESSFUL"
	PaymentFailed            PaymentStatus = "FAILED"
	PaymentCancelled         PaymentStatus = "CANCELLED"
	PaymentRefunded          PaymentStatus = "REFUNDED"
	PaymentPartiallyRefunded PaymentStatus = "PARTIALLY_REFUNDED"
)

var paymentTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentPending:           {PaymentProcessing, PaymentSuccessful, PaymentFailed, PaymentCancelled},
	PaymentProcessing:        {PaymentSuccessful, PaymentFailed, PaymentCancelled},
	PaymentSuccessful:        {PaymentRefunded, PaymentPartiallyRefunded},
	PaymentPartiallyRefunded: {PaymentRefunded, PaymentPartiallyRefunded},
	PaymentFailed:            {},
	PaymentCancelled:         {},
	PaymentRefunded:          {},
}

// IsValid reports whether s is a known payment status.
func (s PaymentStatus) IsValid() bool {
	_, ok := paymentTransitions[s]
	return ok
}

// IsTerminal reports whether no further transitions are possible.
func (s PaymentStatus) IsTerminal() bool {
	next, ok := paymentTransitions[s]
	return ok && len(next) == 0
}

// CanTransitionTo reports whether to is an allowed successor of s.
func (s PaymentStatus) CanTransitionTo(to PaymentStatus) bool {
	for _, next := range paymentTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// Refundable reports whether a refund may be requested against this status.
func (s PaymentStatus) Refundable() bool {
	return s == PaymentSuccessful || s == PaymentPartiallyRefunded
}

// ValidatePaymentTransition checks a proposed payment status change against
// the transition table.
func ValidatePaymentTransition(from, to PaymentStatus) error {
	if !from.IsValid() {
		return Errorf(EINVALID, "payment.transition", "unknown payment status: %s", from)
	}
	if !to.IsValid() {
		return Errorf(EINVALID, "payment.transition", "unknown payment status: %s", to)
	}
	if !from.CanTransitionTo(to) {
		return &Error{
			Code:    ECONFLICT,
			Op:      "payment.transition",
			Message: fmt.Sprintf("cannot change payment status from %s to %s", from, to),
			Err:     &InvalidTransitionError{Entity: "payment", From: string(from), To: string(to)},
		}
	}
	return nil
}

// Payment-related domain errors.
var (
	ErrPaymentNotFound      = &Error{Code: ENOTFOUND, Message: "Payment not found"}
	ErrPaymentOpenExists    = &Error{Code: ECONFLICT, Message: "Order already has a payment attempt in progress"}
	ErrPaymentNotRefundable = &Error{Code: EINVALID, Message: "Payment is not in a refundable status"}
	ErrRefundExceedsAmount  = &Error{Code: EINVALID, Message: "Refund would exceed the remaining payment amount"}
)

// Payment is one settlement attempt for an order. Exactly one order per
// payment; an order may carry a sequence of attempts, but at most one
// non-terminal payment at a time.
type Payment struct {
	ID            pgtype.UUID
	OrderID       pgtype.UUID
	AmountCents   int64
	Currency      string
	Method        PaymentMethod
	Status        PaymentStatus
	TransactionID string // external gateway reference, empty until the gateway responds
	CreatedAt     pgtype.Timestamptz
}

// Refund is a separate record referencing a payment.
type Refund struct {
	ID          pgtype.UUID
	PaymentID   pgtype.UUID
	AmountCents int64
	Reason      string
	CreatedAt   pgtype.Timestamptz
}

// ValidateRefund checks a refund request against the payment's status and
// the cumulative refunded amount. Exceeding the cap is a validation error,
// not a state-machine error, and is rejected rather than clamped: clamping
// would hide a consistency bug.
func ValidateRefund(p *Payment, refundedCents, amountCents int64) error {
	if !p.Status.Refundable() {
		return WrapError(ErrPaymentNotRefundable, EINVALID, "payment.refund",
			fmt.Sprintf("payment status is %s", p.Status))
	}
	if amountCents <= 0 {
		return Invalid("payment.refund", "refund amount must be positive")
	}
	if refundedCents+amountCents > p.AmountCents {
		return WrapError(ErrRefundExceedsAmount, EINVALID, "payment.refund",
			fmt.Sprintf("refunded %d + requested %d exceeds payment amount %d",
				refundedCents, amountCents, p.AmountCents))
	}
	return nil
}

// PaymentService provides business logic for the payment lifecycle.
type PaymentService interface {
	// CreateAttempt opens a payment attempt for an order. The amount must
	// equal the order's total; at most one non-terminal attempt may exist.
	CreateAttempt(ctx context.Context, orderID string, method PaymentMethod) (*Payment, error)

	// GetOpenPayment returns the order's current non-terminal payment, if any.
	GetOpenPayment(ctx context.Context, orderID string) (*Payment, error)

	// MarkProcessing records that the gateway accepted the payment.
	MarkProcessing(ctx context.Context, paymentID, transactionID string) (*Payment, error)

	// MarkSuccessful settles the payment and moves the order to PAID.
	MarkSuccessful(ctx context.Context, paymentID, transactionID string) (*Payment, error)

	// MarkFailed fails the payment and moves the order to PAYMENT_FAILED.
	MarkFailed(ctx context.Context, paymentID, reason string) (*Payment, error)

	// CancelPayment cancels a non-terminal payment without touching the order.
	CancelPayment(ctx context.Context, paymentID string) (*Payment, error)

	// Refund records a refund against a successful payment and updates the
	// payment status to REFUNDED or PARTIALLY_REFUNDED.
	Refund(ctx context.Context, paymentID string, amountCents int64, reason string) (*Refund, error)
}
