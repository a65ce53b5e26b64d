package domain

import (
	"context"
	"fmt"
	"strings"
)

// Checkout domain errors.
var (
	ErrUnauthenticated = &Error{Code: EUNAUTHORIZED, Message: "Sign in to place an order"}
	ErrDispatchFailed  = &Error{Code: EPAYMENT, Message: "Could not start the payment. Your order is saved; please retry."}
)

// CheckoutService is the top-level checkout orchestrator.
type CheckoutService interface {
	// Submit turns the cart's selected items into an order and dispatches
	// the payment. Preconditions are checked in a fixed sequence before any
	// mutation; a second call for the same cart while one is unresolved is
	// rejected, not interleaved.
	Submit(ctx context.Context, params SubmitParams) (*SubmitResult, error)

	// RetryPayment re-dispatches payment for an order stuck in
	// PENDING_PAYMENT or PAYMENT_FAILED without creating a new order.
	RetryPayment(ctx context.Context, orderID, option string) (*SubmitResult, error)
}

// SubmitParams carries one logical checkout submission.
type SubmitParams struct {
	CartID        string
	Form          CheckoutForm
	PaymentOption string // one of PaymentOptions()
}

// CheckoutForm is the shipping form. Province, district and ward arrive as
// identifiers resolved against the address hierarchy; Street is free text.
type CheckoutForm struct {
	Street     string `json:"street" validate:"required,min=3"`
	ProvinceID string `json:"provinceId" validate:"required"`
	DistrictID string `json:"districtId" validate:"required"`
	WardID     string `json:"wardId" validate:"required"`
	Phone      string `json:"phone" validate:"required,min=8,max=15"`
	Note       string `json:"note" validate:"max=500"`
}

// ComposeAddress builds the single shipping address line stored on the
// order: street, then ward, district and province names.
func ComposeAddress(street, ward, district, province string) string {
	parts := make([]string, 0, 4)
	for _, p := range []string{street, ward, district, province} {
		if s := strings.TrimSpace(p); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, ", ")
}

// InstructionKind tags a RedirectInstruction.
type InstructionKind string

const (
	// InstructionNavigate sends the user to an external URL (wallet web
	// page or app deep link).
	InstructionNavigate InstructionKind = "NAVIGATE"

	// InstructionShowQR routes to the QR display screen with the raw code
	// payload; no external navigation occurs.
	InstructionShowQR InstructionKind = "SHOW_QR"

	// InstructionSuccess proceeds directly to the success screen.
	InstructionSuccess InstructionKind = "SUCCESS"

	// InstructionError surfaces a retryable dispatch failure.
	InstructionError InstructionKind = "ERROR"
)

// RedirectInstruction tells the caller where to send the user after
// payment dispatch. Exactly one of URL/QRCode is meaningful per kind.
type RedirectInstruction struct {
	Kind    InstructionKind
	URL     string // NAVIGATE target
	QRCode  string // SHOW_QR payload
	Message string // human message for SUCCESS, SHOW_QR and ERROR
	OrderID string
}

// SuccessPath returns the confirmation screen path for an order, shared by
// every payment variant so the gateway callback lands on one experience.
func SuccessPath(orderID, message string) string {
	return fmt.Sprintf("/checkout/success?orderId=%s&message=%s", orderID, message)
}

// SubmitResult is the orchestrator's answer to one submission.
type SubmitResult struct {
	Order       *Order
	Instruction RedirectInstruction
}

// InvalidItem names one offending cart line and why it cannot be checked out.
type InvalidItem struct {
	SKU       SKURef
	Name      string
	Reason    string
	Available int32
}

// InvalidItemsError aborts checkout naming each offending item. It covers
// both the pre-submission validation pass and reservation failures, so the
// user sees one error shape either way.
type InvalidItemsError struct {
	Items []InvalidItem
}

func (e *InvalidItemsError) Error() string {
	if len(e.Items) == 1 {
		it := e.Items[0]
		return fmt.Sprintf("item %q cannot be ordered: %s", it.Name, it.Reason)
	}
	return fmt.Sprintf("%d items cannot be ordered", len(e.Items))
}
