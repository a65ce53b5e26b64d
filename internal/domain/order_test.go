package domain

import (
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgtype"
)

var allOrderStatuses = []OrderStatus{
	OrderPendingPayment, OrderPaid, OrderConfirmed, OrderProcessing,
	OrderShipped, OrderDelivered, OrderCancelled, OrderPaymentFailed,
}

func TestOrderStatus_CanTransitionTo_HappyPath(t *testing.T) {
	path := []OrderStatus{
		OrderPendingPayment, OrderPaid, OrderConfirmed,
		OrderProcessing, OrderShipped, OrderDelivered,
	}
	for i := 0; i < len(path)-1; i++ {
		if !path[i].CanTransitionTo(path[i+1]) {
			t.Errorf("expected %s -> %s to be allowed", path[i], path[i+1])
		}
	}
}

func TestOrderStatus_CancellableStatuses(t *testing.T) {
	cancellable := []OrderStatus{
		OrderPendingPayment, OrderPaid, OrderConfirmed,
		OrderProcessing, OrderPaymentFailed,
	}
	for _, from := range cancellable {
		if !from.CanTransitionTo(OrderCancelled) {
			t.Errorf("expected %s -> CANCELLED to be allowed", from)
		}
	}

	for _, from := range []OrderStatus{OrderShipped, OrderDelivered, OrderCancelled} {
		if from.CanTransitionTo(OrderCancelled) {
			t.Errorf("expected %s -> CANCELLED to be rejected", from)
		}
	}
}

func TestOrderStatus_PaymentFailedRetry(t *testing.T) {
	if !OrderPaymentFailed.CanTransitionTo(OrderPendingPayment) {
		t.Error("expected PAYMENT_FAILED -> PENDING_PAYMENT (retry) to be allowed")
	}
	if !OrderPendingPayment.CanTransitionTo(OrderPaymentFailed) {
		t.Error("expected PENDING_PAYMENT -> PAYMENT_FAILED to be allowed")
	}
	for _, from := range []OrderStatus{OrderPaid, OrderConfirmed, OrderProcessing, OrderShipped} {
		if from.CanTransitionTo(OrderPaymentFailed) {
			t.Errorf("expected %s -> PAYMENT_FAILED to be rejected", from)
		}
	}
}

func TestOrderStatus_TerminalStatuses(t *testing.T) {
	for _, s := range allOrderStatuses {
		terminal := s == OrderDelivered || s == OrderCancelled
		if s.IsTerminal() != terminal {
			t.Errorf("IsTerminal(%s) = %v, want %v", s, s.IsTerminal(), terminal)
		}
	}
}

// TestValidateOrderTransition_Closure exercises every (from, to) pair:
// anything outside the allowed-successor table must be rejected with an
// InvalidTransitionError naming both statuses.
func TestValidateOrderTransition_Closure(t *testing.T) {
	for _, from := range allOrderStatuses {
		allowed := map[OrderStatus]bool{}
		for _, to := range from.AllowedSuccessors() {
			allowed[to] = true
		}

		for _, to := range allOrderStatuses {
			err := ValidateOrderTransition(from, to)
			if allowed[to] {
				if err != nil {
					t.Errorf("ValidateOrderTransition(%s, %s) = %v, want nil", from, to, err)
				}
				continue
			}

			if err == nil {
				t.Errorf("ValidateOrderTransition(%s, %s) = nil, want error", from, to)
				continue
			}
			var ite *InvalidTransitionError
			if !errors.As(err, &ite) {
				t.Errorf("ValidateOrderTransition(%s, %s): expected InvalidTransitionError, got %v", from, to, err)
				continue
			}
			if ite.From != string(from) || ite.To != string(to) {
				t.Errorf("InvalidTransitionError names %s -> %s, want %s -> %s", ite.From, ite.To, from, to)
			}
			if ErrorCode(err) != ECONFLICT {
				t.Errorf("expected ECONFLICT for %s -> %s, got %s", from, to, ErrorCode(err))
			}
		}
	}
}

func TestValidateOrderTransition_UnknownStatus(t *testing.T) {
	if err := ValidateOrderTransition("BOGUS", OrderPaid); err == nil {
		t.Error("expected error for unknown from-status")
	}
	if err := ValidateOrderTransition(OrderPaid, "BOGUS"); err == nil {
		t.Error("expected error for unknown to-status")
	}
}

func TestOrderDetail_ValidateTotals(t *testing.T) {
	item := func(qty int32, unit, total int64) OrderItem {
		return OrderItem{Quantity: qty, UnitPriceCents: unit, TotalPriceCents: total, ProductName: "Test"}
	}

	tests := []struct {
		name    string
		total   int64
		items   []OrderItem
		wantErr bool
	}{
		{
			name:  "consistent totals",
			total: 5000,
			items: []OrderItem{item(2, 1500, 3000), item(1, 2000, 2000)},
		},
		{
			name:    "order total mismatch",
			total:   9999,
			items:   []OrderItem{item(2, 1500, 3000)},
			wantErr: true,
		},
		{
			name:    "item total mismatch",
			total:   3001,
			items:   []OrderItem{item(2, 1500, 3001)},
			wantErr: true,
		},
		{
			name:  "empty order sums to zero",
			total: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			detail := &OrderDetail{
				Order: Order{TotalPriceCents: tt.total},
				Items: tt.items,
			}
			err := detail.ValidateTotals()
			if tt.wantErr && err == nil {
				t.Error("expected error, got nil")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if tt.wantErr && ErrorCode(err) != EINTERNAL {
				t.Errorf("total mismatch should be EINTERNAL, got %s", ErrorCode(err))
			}
		})
	}
}

func TestUUIDString(t *testing.T) {
	var id pgtype.UUID
	if err := id.Scan("11111111-2222-3333-4444-555555555555"); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if got := UUIDString(id); got != "11111111-2222-3333-4444-555555555555" {
		t.Errorf("UUIDString = %q", got)
	}
	if got := UUIDString(pgtype.UUID{}); got != "" {
		t.Errorf("UUIDString(invalid) = %q, want empty", got)
	}
}
