package service

import (
	"context"
	"errors"
	"testing"

	"github.com/tranvu/mercato/internal/domain"
	"github.com/tranvu/mercato/internal/events"
	"github.com/tranvu/mercato/internal/repository"
)

const testUserID = "7f1c3c2a-52c4-4a5e-9f0d-6a3b8e4d2c10"

func makeTestOrders(t *testing.T) (*repository.Memory, domain.OrderService, domain.StockService) {
	t.Helper()
	repo := repository.NewMemory()
	stock, err := NewStockService(repo, testLogger(), events.NoopPublisher{}, nil)
	if err != nil {
		t.Fatalf("NewStockService: %v", err)
	}
	orders, err := NewOrderService(repo, stock, testLogger(), events.NoopPublisher{}, nil)
	if err != nil {
		t.Fatalf("NewOrderService: %v", err)
	}
	return repo, orders, stock
}

func coffeeOrderParams(quantity int32) domain.CreateOrderParams {
	return domain.CreateOrderParams{
		UserID:    testUserID,
		UserEmail: "an@example.com",
		Address:   "12 Hang Bac, Hang Bac, Hoan Kiem, Ha Noi",
		Phone:     "0901234567",
		Method:    domain.MethodCOD,
		Items: []domain.OrderItemInput{
			{
				ProductID:      skuCoffee,
				ProductName:    "House Blend 250g",
				Quantity:       quantity,
				UnitPriceCents: 120000,
			},
		},
	}
}

// ============================================================================
// CreateOrder
// ============================================================================

func TestCreateOrderReservesStock(t *testing.T) {
	repo, orders, _ := makeTestOrders(t)
	stockID := repo.SeedStock(domain.SKURef{ProductID: skuCoffee}, 5, 2)
	ctx := context.Background()

	detail, err := orders.CreateOrder(ctx, coffeeOrderParams(2))
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}

	if detail.Order.Status != domain.OrderPendingPayment {
		t.Errorf("new order must be PENDING_PAYMENT, got %s", detail.Order.Status)
	}
	if detail.Order.PaymentStatus != domain.PaymentPending {
		t.Errorf("new order payment status must be PENDING, got %s", detail.Order.PaymentStatus)
	}
	if detail.Order.TotalPriceCents != 240000 {
		t.Errorf("expected total 240000, got %d", detail.Order.TotalPriceCents)
	}
	if err := detail.ValidateTotals(); err != nil {
		t.Errorf("totals invariant violated: %v", err)
	}

	item, _ := repo.GetStockItem(ctx, stockID)
	if item.AvailableStock != 3 || item.ReservedStock != 2 {
		t.Errorf("expected 3/2 after reservation, got %d/%d", item.AvailableStock, item.ReservedStock)
	}
}

// Cart holds 2 units of an in-stock SKU and 1 unit of an empty one. The
// submission must fail naming the empty SKU and leave both ledgers alone.
func TestCreateOrderShortfallCreatesNothing(t *testing.T) {
	repo, orders, _ := makeTestOrders(t)
	coffeeID := repo.SeedStock(domain.SKURef{ProductID: skuCoffee}, 5, 2)
	repo.SeedStock(domain.SKURef{ProductID: skuFilter}, 0, 2)
	ctx := context.Background()

	params := coffeeOrderParams(2)
	params.Items = append(params.Items, domain.OrderItemInput{
		ProductID:      skuFilter,
		ProductName:    "Paper Filters",
		Quantity:       1,
		UnitPriceCents: 30000,
	})

	_, err := orders.CreateOrder(ctx, params)
	if domain.ErrorCode(err) != domain.ECONFLICT {
		t.Fatalf("expected ECONFLICT, got %v", err)
	}

	var invalid *domain.InvalidItemsError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidItemsError, got %T", err)
	}
	if len(invalid.Items) != 1 {
		t.Fatalf("expected 1 invalid item, got %d", len(invalid.Items))
	}
	if invalid.Items[0].SKU.ProductID != skuFilter || invalid.Items[0].Name != "Paper Filters" {
		t.Errorf("wrong item flagged: %+v", invalid.Items[0])
	}

	coffee, _ := repo.GetStockItem(ctx, coffeeID)
	if coffee.AvailableStock != 5 || coffee.ReservedStock != 0 {
		t.Errorf("in-stock SKU ledger touched: %+v", coffee)
	}

	all, _ := orders.ListOrders(ctx, nil)
	if len(all) != 0 {
		t.Errorf("expected no order persisted, found %d", len(all))
	}
}

func TestCreateOrderEmptyItems(t *testing.T) {
	_, orders, _ := makeTestOrders(t)

	params := coffeeOrderParams(1)
	params.Items = nil
	if _, err := orders.CreateOrder(context.Background(), params); !errors.Is(err, ErrEmptyCart) {
		t.Errorf("expected ErrEmptyCart, got %v", err)
	}
}

// ============================================================================
// UpdateStatus side effects
// ============================================================================

func TestCancelReleasesStockExactlyOnce(t *testing.T) {
	repo, orders, _ := makeTestOrders(t)
	stockID := repo.SeedStock(domain.SKURef{ProductID: skuCoffee}, 5, 2)
	ctx := context.Background()

	detail, err := orders.CreateOrder(ctx, coffeeOrderParams(2))
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	orderID := domain.UUIDString(detail.Order.ID)

	updated, err := orders.UpdateStatus(ctx, orderID, domain.OrderCancelled)
	if err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	if updated.Status != domain.OrderCancelled {
		t.Errorf("expected CANCELLED, got %s", updated.Status)
	}

	item, _ := repo.GetStockItem(ctx, stockID)
	if item.AvailableStock != 5 || item.ReservedStock != 0 {
		t.Errorf("cancellation must restore pre-reservation ledger, got %d/%d",
			item.AvailableStock, item.ReservedStock)
	}

	// A second transition into CANCELLED is illegal, so release cannot run
	// twice through this path.
	if _, err := orders.UpdateStatus(ctx, orderID, domain.OrderCancelled); domain.ErrorCode(err) != domain.ECONFLICT {
		t.Errorf("expected ECONFLICT on repeat cancel, got %v", err)
	}
	item, _ = repo.GetStockItem(ctx, stockID)
	if item.AvailableStock != 5 {
		t.Errorf("repeat cancel changed ledger: %d", item.AvailableStock)
	}
}

func TestCancelClosesOpenPayment(t *testing.T) {
	repo, orders, _ := makeTestOrders(t)
	repo.SeedStock(domain.SKURef{ProductID: skuCoffee}, 5, 2)
	ctx := context.Background()

	payments, err := NewPaymentService(repo, testLogger(), events.NoopPublisher{}, nil)
	if err != nil {
		t.Fatalf("NewPaymentService: %v", err)
	}

	detail, err := orders.CreateOrder(ctx, coffeeOrderParams(1))
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	orderID := domain.UUIDString(detail.Order.ID)

	attempt, err := payments.CreateAttempt(ctx, orderID, domain.MethodWallet)
	if err != nil {
		t.Fatalf("CreateAttempt: %v", err)
	}

	if _, err := orders.UpdateStatus(ctx, orderID, domain.OrderCancelled); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	got, err := repo.GetPaymentByID(ctx, domain.UUIDString(attempt.ID))
	if err != nil {
		t.Fatalf("GetPaymentByID: %v", err)
	}
	if got.Status != domain.PaymentCancelled {
		t.Errorf("open payment must be cancelled with the order, got %s", got.Status)
	}
}

func TestDeliveredCommitsStock(t *testing.T) {
	repo, orders, _ := makeTestOrders(t)
	stockID := repo.SeedStock(domain.SKURef{ProductID: skuCoffee}, 5, 2)
	ctx := context.Background()

	detail, err := orders.CreateOrder(ctx, coffeeOrderParams(2))
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	orderID := domain.UUIDString(detail.Order.ID)

	for _, status := range []domain.OrderStatus{
		domain.OrderPaid, domain.OrderConfirmed, domain.OrderProcessing,
		domain.OrderShipped, domain.OrderDelivered,
	} {
		if _, err := orders.UpdateStatus(ctx, orderID, status); err != nil {
			t.Fatalf("UpdateStatus(%s): %v", status, err)
		}
	}

	item, _ := repo.GetStockItem(ctx, stockID)
	if item.AvailableStock != 3 || item.ReservedStock != 0 {
		t.Errorf("delivery must drain reserved without restoring available, got %d/%d",
			item.AvailableStock, item.ReservedStock)
	}
}

func TestUpdateStatusRejectsIllegalTransition(t *testing.T) {
	repo, orders, _ := makeTestOrders(t)
	repo.SeedStock(domain.SKURef{ProductID: skuCoffee}, 5, 2)
	ctx := context.Background()

	detail, err := orders.CreateOrder(ctx, coffeeOrderParams(1))
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	orderID := domain.UUIDString(detail.Order.ID)

	_, err = orders.UpdateStatus(ctx, orderID, domain.OrderShipped)
	if domain.ErrorCode(err) != domain.ECONFLICT {
		t.Fatalf("expected ECONFLICT, got %v", err)
	}
	var transition *domain.InvalidTransitionError
	if !errors.As(err, &transition) {
		t.Fatalf("expected InvalidTransitionError, got %T", err)
	}
	if transition.From != string(domain.OrderPendingPayment) || transition.To != string(domain.OrderShipped) {
		t.Errorf("transition error names wrong statuses: %+v", transition)
	}

	order, _ := repo.GetOrderByID(ctx, orderID)
	if order.Status != domain.OrderPendingPayment {
		t.Errorf("rejected transition still applied: %s", order.Status)
	}
}

// ============================================================================
// Cancel (customer entry point)
// ============================================================================

func TestCancelOwnership(t *testing.T) {
	repo, orders, _ := makeTestOrders(t)
	repo.SeedStock(domain.SKURef{ProductID: skuCoffee}, 5, 2)
	ctx := context.Background()

	detail, err := orders.CreateOrder(ctx, coffeeOrderParams(1))
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	orderID := domain.UUIDString(detail.Order.ID)

	if _, err := orders.Cancel(ctx, orderID, "2f000000-0000-0000-0000-000000000000"); !errors.Is(err, ErrOrderNotOwned) {
		t.Errorf("expected ErrOrderNotOwned, got %v", err)
	}

	if _, err := orders.Cancel(ctx, orderID, testUserID); err != nil {
		t.Fatalf("owner cancel: %v", err)
	}

	if _, err := orders.Cancel(ctx, orderID, testUserID); !errors.Is(err, ErrOrderTerminal) {
		t.Errorf("expected ErrOrderTerminal on cancelled order, got %v", err)
	}
}

// ============================================================================
// Listings
// ============================================================================

func TestListOrders(t *testing.T) {
	repo, orders, _ := makeTestOrders(t)
	repo.SeedStock(domain.SKURef{ProductID: skuCoffee}, 10, 2)
	ctx := context.Background()

	first, err := orders.CreateOrder(ctx, coffeeOrderParams(1))
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	if _, err := orders.CreateOrder(ctx, coffeeOrderParams(2)); err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	if _, err := orders.UpdateStatus(ctx, domain.UUIDString(first.Order.ID), domain.OrderCancelled); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}

	byUser, err := orders.ListOrdersByUser(ctx, testUserID)
	if err != nil {
		t.Fatalf("ListOrdersByUser: %v", err)
	}
	if len(byUser) != 2 {
		t.Errorf("expected 2 orders for user, got %d", len(byUser))
	}

	cancelled := domain.OrderCancelled
	filtered, err := orders.ListOrders(ctx, &cancelled)
	if err != nil {
		t.Fatalf("ListOrders: %v", err)
	}
	if len(filtered) != 1 {
		t.Errorf("expected 1 cancelled order, got %d", len(filtered))
	}

	bogus := domain.OrderStatus("EXPLODED")
	if _, err := orders.ListOrders(ctx, &bogus); domain.ErrorCode(err) != domain.EINVALID {
		t.Errorf("expected EINVALID for unknown status filter, got %v", err)
	}
}
