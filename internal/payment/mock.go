package payment

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// MockGateway is a mock wallet gateway for testing. Simulates successful
// initiations without calling the provider.
type MockGateway struct {
	// InitiateFunc allows customizing initiation behavior
	InitiateFunc func(ctx context.Context, params InitiateParams) (*InitiateResult, error)

	// CallLog tracks method calls for test assertions
	CallLog []string
}

// NewMockGateway creates a new mock wallet gateway.
func NewMockGateway() *MockGateway {
	return &MockGateway{CallLog: []string{}}
}

// Initiate returns a successful session carrying the artifact matching the
// requested return type.
func (m *MockGateway) Initiate(ctx context.Context, params InitiateParams) (*InitiateResult, error) {
	m.CallLog = append(m.CallLog, fmt.Sprintf("Initiate(%s, %d, %s)", params.OrderID, params.AmountCents, params.ReturnType))

	if m.InitiateFunc != nil {
		return m.InitiateFunc(ctx, params)
	}

	result := &InitiateResult{
		Success:       true,
		TransactionID: "txn_" + uuid.NewString(),
	}
	switch params.ReturnType {
	case ReturnQR:
		result.QRCode = "mockqr://" + params.OrderID
	case ReturnDeeplink:
		result.Deeplink = "mockwallet://pay/" + params.OrderID
	default:
		result.PayURL = "https://mock.wallet.test/pay/" + params.OrderID
	}
	return result, nil
}

var _ Gateway = (*MockGateway)(nil)
