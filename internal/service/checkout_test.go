package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/tranvu/mercato/internal/address"
	"github.com/tranvu/mercato/internal/domain"
	"github.com/tranvu/mercato/internal/events"
	"github.com/tranvu/mercato/internal/payment"
	"github.com/tranvu/mercato/internal/repository"
)

// ============================================================================
// Fixture
// ============================================================================

// checkoutFixture wires the full service stack over the in-memory
// repository and a mock gateway, the same shape main assembles.
type checkoutFixture struct {
	repo     *repository.Memory
	carts    domain.CartService
	orders   domain.OrderService
	payments domain.PaymentService
	gateway  *payment.MockGateway
	checkout domain.CheckoutService
	cartID   string
	ctx      context.Context
}

func makeCheckout(t *testing.T) *checkoutFixture {
	t.Helper()
	repo := repository.NewMemory()
	logger := testLogger()

	stock, err := NewStockService(repo, logger, events.NoopPublisher{}, nil)
	if err != nil {
		t.Fatalf("NewStockService: %v", err)
	}
	carts, err := NewCartService(repo, stock, logger, nil)
	if err != nil {
		t.Fatalf("NewCartService: %v", err)
	}
	orders, err := NewOrderService(repo, stock, logger, events.NoopPublisher{}, nil)
	if err != nil {
		t.Fatalf("NewOrderService: %v", err)
	}
	payments, err := NewPaymentService(repo, logger, events.NoopPublisher{}, nil)
	if err != nil {
		t.Fatalf("NewPaymentService: %v", err)
	}

	gateway := payment.NewMockGateway()
	dispatcher, err := payment.NewDispatcher(gateway, "https://shop.example.com", logger, nil)
	if err != nil {
		t.Fatalf("NewDispatcher: %v", err)
	}

	checkout, err := NewCheckoutService(CheckoutDeps{
		Carts:      carts,
		Orders:     orders,
		Payments:   payments,
		Stock:      stock,
		Dispatcher: dispatcher,
		Addresses:  address.NewMockSource(),
		Logger:     logger,
	})
	if err != nil {
		t.Fatalf("NewCheckoutService: %v", err)
	}

	ctx := domain.NewContextWithUser(context.Background(), &domain.User{
		ID:    uuid.MustParse(testUserID),
		Email: "an@example.com",
		Role:  "customer",
	})

	cart, err := carts.GetOrCreateCart(ctx, testUserID)
	if err != nil {
		t.Fatalf("GetOrCreateCart: %v", err)
	}

	f := &checkoutFixture{
		repo:     repo,
		carts:    carts,
		orders:   orders,
		payments: payments,
		gateway:  gateway,
		checkout: checkout,
		cartID:   domain.UUIDString(cart.ID),
		ctx:      ctx,
	}

	// Two units of coffee in the cart, selected, with ten in stock.
	repo.SeedStock(domain.SKURef{ProductID: skuCoffee}, 10, 2)
	if _, err := carts.AddItem(ctx, domain.AddCartItemParams{
		CartID:         f.cartID,
		SKU:            domain.SKURef{ProductID: skuCoffee},
		ProductName:    "House Blend Coffee",
		Quantity:       2,
		UnitPriceCents: 120000,
	}); err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	return f
}

func validForm() domain.CheckoutForm {
	return domain.CheckoutForm{
		Street:     "12 Nguyen Trai",
		ProvinceID: "p1",
		DistrictID: "d1",
		WardID:     "w1",
		Phone:      "0901234567",
	}
}

func (f *checkoutFixture) submit(option string) (*domain.SubmitResult, error) {
	return f.checkout.Submit(f.ctx, domain.SubmitParams{
		CartID:        f.cartID,
		Form:          validForm(),
		PaymentOption: option,
	})
}

func (f *checkoutFixture) ledger(t *testing.T) domain.StockItem {
	t.Helper()
	item, err := f.repo.GetStockBySKU(context.Background(), domain.SKURef{ProductID: skuCoffee})
	if err != nil {
		t.Fatalf("GetStockBySKU: %v", err)
	}
	return item
}

// ============================================================================
// Happy paths per payment option
// ============================================================================

func TestSubmitCOD(t *testing.T) {
	f := makeCheckout(t)

	result, err := f.submit("cod")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	if result.Instruction.Kind != domain.InstructionSuccess {
		t.Errorf("instruction = %s, want SUCCESS", result.Instruction.Kind)
	}
	if result.Order.Status != domain.OrderPendingPayment {
		t.Errorf("order status = %s, want PENDING_PAYMENT", result.Order.Status)
	}
	if result.Order.Address != "12 Nguyen Trai, Phuc Xa, Ba Dinh, Ha Noi" {
		t.Errorf("shipping address = %q", result.Order.Address)
	}

	// No gateway involvement for cash on delivery.
	if len(f.gateway.CallLog) != 0 {
		t.Errorf("COD must not call the gateway: %v", f.gateway.CallLog)
	}

	// Payment stays PENDING until the courier collects.
	open, err := f.payments.GetOpenPayment(f.ctx, domain.UUIDString(result.Order.ID))
	if err != nil {
		t.Fatalf("GetOpenPayment: %v", err)
	}
	if open.Status != domain.PaymentPending {
		t.Errorf("COD payment status = %s, want PENDING", open.Status)
	}
	if open.Method != domain.MethodCOD {
		t.Errorf("payment method = %s, want COD", open.Method)
	}

	ledger := f.ledger(t)
	if ledger.AvailableStock != 8 || ledger.ReservedStock != 2 {
		t.Errorf("ledger = %d/%d, want 8 available 2 reserved", ledger.AvailableStock, ledger.ReservedStock)
	}

	// Checked-out lines left the cart.
	summary, _ := f.carts.GetCartSummary(f.ctx, f.cartID)
	if len(summary.Items) != 0 {
		t.Errorf("cart still holds %d lines after checkout", len(summary.Items))
	}
}

func TestSubmitWalletWebNavigates(t *testing.T) {
	f := makeCheckout(t)
	f.gateway.InitiateFunc = func(ctx context.Context, params payment.InitiateParams) (*payment.InitiateResult, error) {
		if params.ReturnType != payment.ReturnWeb {
			t.Errorf("return type = %s, want WEB", params.ReturnType)
		}
		if !strings.HasPrefix(params.ReturnURL, "https://shop.example.com/checkout/success") {
			t.Errorf("return URL = %q", params.ReturnURL)
		}
		return &payment.InitiateResult{
			Success:       true,
			TransactionID: "txn-web-1",
			PayURL:        "https://wallet.example.com/pay/abc",
		}, nil
	}

	result, err := f.submit("wallet")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if result.Instruction.Kind != domain.InstructionNavigate {
		t.Errorf("instruction = %s, want NAVIGATE", result.Instruction.Kind)
	}
	if result.Instruction.URL != "https://wallet.example.com/pay/abc" {
		t.Errorf("navigate URL = %q", result.Instruction.URL)
	}

	// The accepted attempt carries the gateway reference.
	open, err := f.payments.GetOpenPayment(f.ctx, domain.UUIDString(result.Order.ID))
	if err != nil {
		t.Fatalf("GetOpenPayment: %v", err)
	}
	if open.Status != domain.PaymentProcessing {
		t.Errorf("payment status = %s, want PROCESSING", open.Status)
	}
	if open.TransactionID != "txn-web-1" {
		t.Errorf("transaction id = %q", open.TransactionID)
	}
}

func TestSubmitWalletQRShowsCode(t *testing.T) {
	f := makeCheckout(t)
	f.gateway.InitiateFunc = func(ctx context.Context, params payment.InitiateParams) (*payment.InitiateResult, error) {
		return &payment.InitiateResult{Success: true, TransactionID: "txn-qr-1", QRCode: "XYZ"}, nil
	}

	result, err := f.submit("wallet_qr")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if result.Instruction.Kind != domain.InstructionShowQR {
		t.Errorf("instruction = %s, want SHOW_QR", result.Instruction.Kind)
	}
	if result.Instruction.QRCode != "XYZ" {
		t.Errorf("QR payload = %q, want XYZ", result.Instruction.QRCode)
	}
	if result.Instruction.URL != "" {
		t.Errorf("SHOW_QR must not navigate, got URL %q", result.Instruction.URL)
	}
}

func TestSubmitWalletDeeplinkFallsBackToSuccess(t *testing.T) {
	f := makeCheckout(t)
	f.gateway.InitiateFunc = func(ctx context.Context, params payment.InitiateParams) (*payment.InitiateResult, error) {
		// Accepted, but no deep link produced.
		return &payment.InitiateResult{Success: true, TransactionID: "txn-dl-1"}, nil
	}

	result, err := f.submit("wallet_deeplink")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if result.Instruction.Kind != domain.InstructionSuccess {
		t.Errorf("instruction = %s, want SUCCESS fallback", result.Instruction.Kind)
	}
}

// ============================================================================
// Gateway decline is recoverable
// ============================================================================

func TestSubmitWalletDeclineKeepsOrderAndReservation(t *testing.T) {
	f := makeCheckout(t)
	f.gateway.InitiateFunc = func(ctx context.Context, params payment.InitiateParams) (*payment.InitiateResult, error) {
		return &payment.InitiateResult{Success: false, Message: "issuer declined"}, nil
	}

	result, err := f.submit("wallet")
	if err != nil {
		t.Fatalf("a decline must not fail the submission: %v", err)
	}
	if result.Instruction.Kind != domain.InstructionError {
		t.Errorf("instruction = %s, want ERROR", result.Instruction.Kind)
	}
	if result.Instruction.Message == "" {
		t.Error("error instruction needs a user-facing message")
	}

	orderID := domain.UUIDString(result.Order.ID)
	order, _ := f.repo.GetOrderByID(context.Background(), orderID)
	if order.Status != domain.OrderPendingPayment {
		t.Errorf("order status = %s, want PENDING_PAYMENT held for retry", order.Status)
	}

	ledger := f.ledger(t)
	if ledger.ReservedStock != 2 {
		t.Errorf("reservation lost on decline: reserved = %d", ledger.ReservedStock)
	}

	// The attempt is closed so the retry can open a fresh one.
	if _, err := f.payments.GetOpenPayment(f.ctx, orderID); !errors.Is(err, ErrPaymentNotFound) {
		t.Errorf("expected no open payment after decline, got %v", err)
	}
}

// ============================================================================
// Submission guard
// ============================================================================

func TestSubmitRejectsConcurrentResubmission(t *testing.T) {
	f := makeCheckout(t)

	entered := make(chan struct{})
	proceed := make(chan struct{})
	f.gateway.InitiateFunc = func(ctx context.Context, params payment.InitiateParams) (*payment.InitiateResult, error) {
		close(entered)
		<-proceed
		return &payment.InitiateResult{Success: true, TransactionID: "txn-slow", PayURL: "https://wallet.example.com/pay/slow"}, nil
	}

	type outcome struct {
		result *domain.SubmitResult
		err    error
	}
	first := make(chan outcome, 1)
	go func() {
		r, err := f.submit("wallet")
		first <- outcome{r, err}
	}()

	// Wait until the first submission holds the cart, then double-click.
	<-entered
	if _, err := f.submit("wallet"); !errors.Is(err, ErrSubmitInFlight) {
		t.Errorf("expected ErrSubmitInFlight, got %v", err)
	}
	close(proceed)

	got := <-first
	if got.err != nil {
		t.Fatalf("first submission failed: %v", got.err)
	}

	// Exactly one order came out of the double submit.
	orders, err := f.repo.ListOrdersByUser(context.Background(), testUserID)
	if err != nil {
		t.Fatalf("ListOrdersByUser: %v", err)
	}
	if len(orders) != 1 {
		t.Errorf("double submit produced %d orders, want 1", len(orders))
	}
}

// ============================================================================
// Precondition failures
// ============================================================================

func TestSubmitPreconditions(t *testing.T) {
	t.Run("unauthenticated", func(t *testing.T) {
		f := makeCheckout(t)
		_, err := f.checkout.Submit(context.Background(), domain.SubmitParams{
			CartID:        f.cartID,
			Form:          validForm(),
			PaymentOption: "cod",
		})
		if domain.ErrorCode(err) != domain.EUNAUTHORIZED {
			t.Errorf("expected EUNAUTHORIZED, got %v", err)
		}
	})

	t.Run("unknown payment option", func(t *testing.T) {
		f := makeCheckout(t)
		_, err := f.checkout.Submit(f.ctx, domain.SubmitParams{
			CartID:        f.cartID,
			Form:          validForm(),
			PaymentOption: "bank_transfer",
		})
		if domain.ErrorCode(err) != domain.EINVALID {
			t.Errorf("expected EINVALID, got %v", err)
		}
	})

	t.Run("missing phone", func(t *testing.T) {
		f := makeCheckout(t)
		form := validForm()
		form.Phone = ""
		_, err := f.checkout.Submit(f.ctx, domain.SubmitParams{
			CartID:        f.cartID,
			Form:          form,
			PaymentOption: "cod",
		})
		fields := domain.GetValidationFields(err)
		if fields == nil {
			t.Fatalf("expected field validation error, got %v", err)
		}
		if _, ok := fields["Phone"]; !ok {
			t.Errorf("expected Phone field error, got %v", fields)
		}
	})

	t.Run("ward outside district", func(t *testing.T) {
		f := makeCheckout(t)
		form := validForm()
		form.WardID = "w3" // belongs to d3, not d1
		_, err := f.checkout.Submit(f.ctx, domain.SubmitParams{
			CartID:        f.cartID,
			Form:          form,
			PaymentOption: "cod",
		})
		if !domain.IsValidationError(err) {
			t.Errorf("expected validation error, got %v", err)
		}
	})

	t.Run("nothing selected", func(t *testing.T) {
		f := makeCheckout(t)
		if _, err := f.carts.SelectAll(f.ctx, f.cartID, false); err != nil {
			t.Fatalf("SelectAll: %v", err)
		}
		if _, err := f.submit("cod"); !errors.Is(err, ErrEmptyCart) {
			t.Errorf("expected ErrEmptyCart, got %v", err)
		}
	})

	t.Run("cart owned by someone else", func(t *testing.T) {
		f := makeCheckout(t)
		other := domain.NewContextWithUser(context.Background(), &domain.User{
			ID:    uuid.New(),
			Email: "intruder@example.com",
			Role:  "customer",
		})
		_, err := f.checkout.Submit(other, domain.SubmitParams{
			CartID:        f.cartID,
			Form:          validForm(),
			PaymentOption: "cod",
		})
		if domain.ErrorCode(err) != domain.EFORBIDDEN {
			t.Errorf("expected EFORBIDDEN, got %v", err)
		}
	})

	t.Run("stock gone between cart and checkout", func(t *testing.T) {
		f := makeCheckout(t)
		// Another customer drains the coffee after it was carted.
		item := f.ledger(t)
		shortfalls, err := f.repo.ReserveStock(context.Background(), "rival-order", []domain.ReserveItem{
			{SKU: domain.SKURef{ProductID: skuCoffee}, Quantity: item.AvailableStock - 1},
		})
		if err != nil || len(shortfalls) != 0 {
			t.Fatalf("ReserveStock: %v, shortfalls %v", err, shortfalls)
		}

		_, err = f.submit("cod")
		if domain.ErrorCode(err) != domain.ECONFLICT {
			t.Fatalf("expected ECONFLICT, got %v", err)
		}
		var invalid *domain.InvalidItemsError
		if !errors.As(err, &invalid) {
			t.Fatalf("expected InvalidItemsError, got %v", err)
		}
		if len(invalid.Items) != 1 || invalid.Items[0].Name != "House Blend Coffee" {
			t.Errorf("unexpected offending items: %+v", invalid.Items)
		}
		// Nothing was created.
		orders, _ := f.repo.ListOrdersByUser(context.Background(), testUserID)
		if len(orders) != 0 {
			t.Errorf("failed submit created %d orders", len(orders))
		}
	})
}

// ============================================================================
// RetryPayment
// ============================================================================

func TestRetryPaymentAfterDecline(t *testing.T) {
	f := makeCheckout(t)
	f.gateway.InitiateFunc = func(ctx context.Context, params payment.InitiateParams) (*payment.InitiateResult, error) {
		return &payment.InitiateResult{Success: false, Message: "issuer declined"}, nil
	}
	result, err := f.submit("wallet")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	orderID := domain.UUIDString(result.Order.ID)

	// The gateway recovers; the retry succeeds against the same order.
	f.gateway.InitiateFunc = func(ctx context.Context, params payment.InitiateParams) (*payment.InitiateResult, error) {
		return &payment.InitiateResult{Success: true, TransactionID: "txn-retry", PayURL: "https://wallet.example.com/pay/retry"}, nil
	}

	retried, err := f.checkout.RetryPayment(f.ctx, orderID, "wallet")
	if err != nil {
		t.Fatalf("RetryPayment: %v", err)
	}
	if retried.Instruction.Kind != domain.InstructionNavigate {
		t.Errorf("instruction = %s, want NAVIGATE", retried.Instruction.Kind)
	}
	if domain.UUIDString(retried.Order.ID) != orderID {
		t.Error("retry created a different order")
	}

	// Still one order, one reservation.
	orders, _ := f.repo.ListOrdersByUser(context.Background(), testUserID)
	if len(orders) != 1 {
		t.Errorf("retry produced %d orders, want 1", len(orders))
	}
	ledger := f.ledger(t)
	if ledger.ReservedStock != 2 {
		t.Errorf("reserved = %d after retry, want 2", ledger.ReservedStock)
	}
}

func TestRetryPaymentGuards(t *testing.T) {
	f := makeCheckout(t)
	result, err := f.submit("wallet")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	orderID := domain.UUIDString(result.Order.ID)

	t.Run("method cannot change", func(t *testing.T) {
		if _, err := f.checkout.RetryPayment(f.ctx, orderID, "cod"); domain.ErrorCode(err) != domain.EINVALID {
			t.Errorf("expected EINVALID, got %v", err)
		}
	})

	t.Run("style may change within the method", func(t *testing.T) {
		f.gateway.InitiateFunc = func(ctx context.Context, params payment.InitiateParams) (*payment.InitiateResult, error) {
			return &payment.InitiateResult{Success: true, TransactionID: "txn-qr-2", QRCode: "QR2"}, nil
		}
		retried, err := f.checkout.RetryPayment(f.ctx, orderID, "wallet_qr")
		if err != nil {
			t.Fatalf("RetryPayment: %v", err)
		}
		if retried.Instruction.Kind != domain.InstructionShowQR {
			t.Errorf("instruction = %s, want SHOW_QR", retried.Instruction.Kind)
		}
	})

	t.Run("not the owner", func(t *testing.T) {
		other := domain.NewContextWithUser(context.Background(), &domain.User{
			ID:    uuid.New(),
			Email: "intruder@example.com",
			Role:  "customer",
		})
		if _, err := f.checkout.RetryPayment(other, orderID, "wallet"); !errors.Is(err, ErrOrderNotOwned) {
			t.Errorf("expected ErrOrderNotOwned, got %v", err)
		}
	})

	t.Run("settled order cannot retry", func(t *testing.T) {
		open, err := f.payments.GetOpenPayment(f.ctx, orderID)
		if err != nil {
			t.Fatalf("GetOpenPayment: %v", err)
		}
		if _, err := f.payments.MarkSuccessful(f.ctx, domain.UUIDString(open.ID), "txn-done"); err != nil {
			t.Fatalf("MarkSuccessful: %v", err)
		}
		if _, err := f.checkout.RetryPayment(f.ctx, orderID, "wallet"); domain.ErrorCode(err) != domain.ECONFLICT {
			t.Errorf("expected ECONFLICT, got %v", err)
		}
	})
}

func TestRetryPaymentFromFailedState(t *testing.T) {
	f := makeCheckout(t)
	result, err := f.submit("wallet")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	orderID := domain.UUIDString(result.Order.ID)

	// Gateway callback reports the attempt failed.
	open, err := f.payments.GetOpenPayment(f.ctx, orderID)
	if err != nil {
		t.Fatalf("GetOpenPayment: %v", err)
	}
	if _, err := f.payments.MarkFailed(f.ctx, domain.UUIDString(open.ID), "expired"); err != nil {
		t.Fatalf("MarkFailed: %v", err)
	}
	order, _ := f.repo.GetOrderByID(context.Background(), orderID)
	if order.Status != domain.OrderPaymentFailed {
		t.Fatalf("order status = %s, want PAYMENT_FAILED", order.Status)
	}

	retried, err := f.checkout.RetryPayment(f.ctx, orderID, "wallet")
	if err != nil {
		t.Fatalf("RetryPayment: %v", err)
	}
	if retried.Order.Status != domain.OrderPendingPayment {
		t.Errorf("order status = %s, want PENDING_PAYMENT after retry", retried.Order.Status)
	}
}
