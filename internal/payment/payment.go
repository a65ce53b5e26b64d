// Package payment wraps the external wallet gateway and resolves each
// payment attempt into a redirect instruction for the storefront.
package payment

import (
	"context"
)

// ReturnType selects which artifact the gateway should produce for one
// initiation. It mirrors the gateway's own contract: a hosted web page, a
// raw QR payload, or an app deep link.
type ReturnType string

const (
	ReturnWeb      ReturnType = "WEB"
	ReturnQR       ReturnType = "QR"
	ReturnDeeplink ReturnType = "DEEPLINK"
)

// Gateway defines the interface for the wallet payment provider.
// Implementations can target any hosted-checkout wallet; COD never
// touches it.
type Gateway interface {
	// Initiate opens a payment session at the gateway for one order.
	// A declined or malformed initiation is reported through
	// InitiateResult.Success, not an error; errors are reserved for
	// transport and contract failures.
	Initiate(ctx context.Context, params InitiateParams) (*InitiateResult, error)
}

// InitiateParams carries one payment initiation.
type InitiateParams struct {
	OrderID     string
	AmountCents int64
	Currency    string
	ReturnType  ReturnType
	// ReturnURL is where the gateway sends the user after settling.
	// Every variant shares the same confirmation screen.
	ReturnURL string
}

// InitiateResult is the gateway's answer to one initiation. Which artifact
// is populated depends on the requested ReturnType.
type InitiateResult struct {
	Success       bool
	TransactionID string
	PayURL        string // WEB
	Deeplink      string // DEEPLINK
	QRCode        string // QR, raw payload for client-side rendering
	Message       string // gateway-provided failure detail
}
