package payment

import "errors"

// Gateway failure causes. All of them surface to callers wrapped in a
// retryable payment error; they exist so logs and tests can tell transport
// problems apart from the gateway saying no.
var (
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")
	ErrGatewayTimeout     = errors.New("payment gateway timed out")
	ErrDeclined           = errors.New("payment declined by gateway")
)
