package migrations

import (
	"strings"
	"testing"

	"github.com/tranvu/mercato/internal/domain"
)

func readMigration(t *testing.T, name string) string {
	t.Helper()
	raw, err := MigrationsFS.ReadFile(name)
	if err != nil {
		t.Fatalf("ReadFile(%s): %v", name, err)
	}
	return string(raw)
}

// The status CHECK constraints must admit every value the domain state
// machines can write, or legal transitions fail on Postgres while the
// memory repository lets them pass.

func TestOrdersCheckCoversOrderStatuses(t *testing.T) {
	sql := readMigration(t, "00004_create_orders.sql")
	for _, status := range []domain.OrderStatus{
		domain.OrderPendingPayment,
		domain.OrderPaid,
		domain.OrderConfirmed,
		domain.OrderProcessing,
		domain.OrderShipped,
		domain.OrderDelivered,
		domain.OrderCancelled,
		domain.OrderPaymentFailed,
	} {
		if !strings.Contains(sql, "'"+string(status)+"'") {
			t.Errorf("orders.status CHECK is missing %s", status)
		}
	}
}

func TestStockMovementsCheckCoversMovementTypes(t *testing.T) {
	sql := readMigration(t, "00003_create_stock.sql")
	for _, mt := range []domain.MovementType{
		domain.MovementIn,
		domain.MovementOut,
		domain.MovementReserved,
		domain.MovementReleased,
		domain.MovementAdjustment,
		domain.MovementDamaged,
		domain.MovementReturned,
	} {
		if !strings.Contains(sql, "'"+string(mt)+"'") {
			t.Errorf("stock_movements.type CHECK is missing %s", mt)
		}
	}
}

func TestPaymentsCheckCoversPaymentStatuses(t *testing.T) {
	sql := readMigration(t, "00005_create_payments.sql")
	for _, status := range []domain.PaymentStatus{
		domain.PaymentPending,
		domain.PaymentProcessing,
		domain.PaymentSuccessful,
		domain.PaymentFailed,
		domain.PaymentCancelled,
		domain.PaymentRefunded,
		domain.PaymentPartiallyRefunded,
	} {
		if !strings.Contains(sql, "'"+string(status)+"'") {
			t.Errorf("payments.status CHECK is missing %s", status)
		}
	}
}
