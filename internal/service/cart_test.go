package service

import (
	"context"
	"errors"
	"testing"

	"github.com/tranvu/mercato/internal/domain"
	"github.com/tranvu/mercato/internal/events"
	"github.com/tranvu/mercato/internal/repository"
)

func makeTestCart(t *testing.T) (*repository.Memory, domain.CartService, string) {
	t.Helper()
	repo := repository.NewMemory()
	stock, err := NewStockService(repo, testLogger(), events.NoopPublisher{}, nil)
	if err != nil {
		t.Fatalf("NewStockService: %v", err)
	}
	carts, err := NewCartService(repo, stock, testLogger(), nil)
	if err != nil {
		t.Fatalf("NewCartService: %v", err)
	}
	cart, err := carts.GetOrCreateCart(context.Background(), testUserID)
	if err != nil {
		t.Fatalf("GetOrCreateCart: %v", err)
	}
	return repo, carts, domain.UUIDString(cart.ID)
}

func coffeeCartParams(cartID string, quantity int32) domain.AddCartItemParams {
	return domain.AddCartItemParams{
		CartID:         cartID,
		SKU:            domain.SKURef{ProductID: skuCoffee},
		ProductName:    "House Blend Coffee",
		Quantity:       quantity,
		UnitPriceCents: 120000,
	}
}

// ============================================================================
// AddItem
// ============================================================================

func TestAddItem(t *testing.T) {
	repo, carts, cartID := makeTestCart(t)
	repo.SeedStock(domain.SKURef{ProductID: skuCoffee}, 10, 2)
	ctx := context.Background()

	summary, err := carts.AddItem(ctx, coffeeCartParams(cartID, 2))
	if err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	if len(summary.Items) != 1 {
		t.Fatalf("expected 1 line, got %d", len(summary.Items))
	}
	if summary.Subtotal != 240000 {
		t.Errorf("subtotal = %d, want 240000", summary.Subtotal)
	}
	if !summary.Items[0].Selected {
		t.Error("new lines start selected")
	}

	// Adding the same SKU again merges into the existing line.
	summary, err = carts.AddItem(ctx, coffeeCartParams(cartID, 3))
	if err != nil {
		t.Fatalf("AddItem again: %v", err)
	}
	if len(summary.Items) != 1 {
		t.Fatalf("expected merged line, got %d lines", len(summary.Items))
	}
	if summary.Items[0].Quantity != 5 {
		t.Errorf("merged quantity = %d, want 5", summary.Items[0].Quantity)
	}
}

func TestAddItemValidation(t *testing.T) {
	repo, carts, cartID := makeTestCart(t)
	repo.SeedStock(domain.SKURef{ProductID: skuCoffee}, 1, 0)
	ctx := context.Background()

	t.Run("zero quantity rejected", func(t *testing.T) {
		if _, err := carts.AddItem(ctx, coffeeCartParams(cartID, 0)); !errors.Is(err, ErrInvalidQuantity) {
			t.Errorf("expected ErrInvalidQuantity, got %v", err)
		}
	})

	t.Run("insufficient stock rejected", func(t *testing.T) {
		if _, err := carts.AddItem(ctx, coffeeCartParams(cartID, 5)); domain.ErrorCode(err) != domain.ECONFLICT {
			t.Errorf("expected ECONFLICT, got %v", err)
		}
	})

	t.Run("unknown cart", func(t *testing.T) {
		params := coffeeCartParams("1ae0c7a2-1111-4e8f-9c55-000000000000", 1)
		if _, err := carts.AddItem(ctx, params); !errors.Is(err, ErrCartNotFound) {
			t.Errorf("expected ErrCartNotFound, got %v", err)
		}
	})
}

// ============================================================================
// Quantity updates and removal
// ============================================================================

func TestUpdateItemQuantity(t *testing.T) {
	repo, carts, cartID := makeTestCart(t)
	repo.SeedStock(domain.SKURef{ProductID: skuCoffee}, 10, 2)
	ctx := context.Background()
	sku := domain.SKURef{ProductID: skuCoffee}

	if _, err := carts.AddItem(ctx, coffeeCartParams(cartID, 2)); err != nil {
		t.Fatalf("AddItem: %v", err)
	}

	summary, err := carts.UpdateItemQuantity(ctx, cartID, sku, 4)
	if err != nil {
		t.Fatalf("UpdateItemQuantity: %v", err)
	}
	if summary.Items[0].Quantity != 4 {
		t.Errorf("quantity = %d, want 4", summary.Items[0].Quantity)
	}
	if summary.Subtotal != 480000 {
		t.Errorf("subtotal = %d, want 480000", summary.Subtotal)
	}

	// A quantity the ledger cannot cover is rejected and the line keeps
	// its old quantity.
	if _, err := carts.UpdateItemQuantity(ctx, cartID, sku, 11); domain.ErrorCode(err) != domain.ECONFLICT {
		t.Errorf("expected ECONFLICT, got %v", err)
	}
	summary, _ = carts.GetCartSummary(ctx, cartID)
	if summary.Items[0].Quantity != 4 {
		t.Errorf("rejected update changed quantity to %d", summary.Items[0].Quantity)
	}

	// Zero removes the line.
	summary, err = carts.UpdateItemQuantity(ctx, cartID, sku, 0)
	if err != nil {
		t.Fatalf("UpdateItemQuantity(0): %v", err)
	}
	if len(summary.Items) != 0 {
		t.Errorf("expected empty cart, got %d lines", len(summary.Items))
	}
}

func TestRemoveItemUnknownLine(t *testing.T) {
	_, carts, cartID := makeTestCart(t)
	sku := domain.SKURef{ProductID: skuFilter}
	if _, err := carts.RemoveItem(context.Background(), cartID, sku); !errors.Is(err, ErrCartItemNotFound) {
		t.Errorf("expected ErrCartItemNotFound, got %v", err)
	}
}

// ============================================================================
// Selection
// ============================================================================

func TestSelectionDrivesCheckoutTotals(t *testing.T) {
	repo, carts, cartID := makeTestCart(t)
	repo.SeedStock(domain.SKURef{ProductID: skuCoffee}, 10, 2)
	repo.SeedStock(domain.SKURef{ProductID: skuFilter}, 10, 2)
	ctx := context.Background()

	if _, err := carts.AddItem(ctx, coffeeCartParams(cartID, 2)); err != nil {
		t.Fatalf("AddItem coffee: %v", err)
	}
	if _, err := carts.AddItem(ctx, domain.AddCartItemParams{
		CartID:         cartID,
		SKU:            domain.SKURef{ProductID: skuFilter},
		ProductName:    "Paper Filters",
		Quantity:       1,
		UnitPriceCents: 30000,
	}); err != nil {
		t.Fatalf("AddItem filters: %v", err)
	}

	summary, err := carts.SelectItem(ctx, cartID, domain.SKURef{ProductID: skuFilter}, false)
	if err != nil {
		t.Fatalf("SelectItem: %v", err)
	}
	if summary.Subtotal != 270000 {
		t.Errorf("subtotal = %d, want 270000", summary.Subtotal)
	}
	if summary.SelectedSubtotal != 240000 {
		t.Errorf("selected subtotal = %d, want 240000", summary.SelectedSubtotal)
	}
	if got := len(summary.SelectedItems()); got != 1 {
		t.Errorf("selected lines = %d, want 1", got)
	}

	// Deselect everything, then reselect everything.
	summary, err = carts.SelectAll(ctx, cartID, false)
	if err != nil {
		t.Fatalf("SelectAll(false): %v", err)
	}
	if summary.SelectedCount != 0 {
		t.Errorf("selected count = %d after deselect all", summary.SelectedCount)
	}
	summary, err = carts.SelectAll(ctx, cartID, true)
	if err != nil {
		t.Fatalf("SelectAll(true): %v", err)
	}
	if summary.SelectedSubtotal != summary.Subtotal {
		t.Errorf("select all: selected %d != subtotal %d", summary.SelectedSubtotal, summary.Subtotal)
	}
}

func TestClearSelectedKeepsUnselected(t *testing.T) {
	repo, carts, cartID := makeTestCart(t)
	repo.SeedStock(domain.SKURef{ProductID: skuCoffee}, 10, 2)
	repo.SeedStock(domain.SKURef{ProductID: skuFilter}, 10, 2)
	ctx := context.Background()

	if _, err := carts.AddItem(ctx, coffeeCartParams(cartID, 2)); err != nil {
		t.Fatalf("AddItem coffee: %v", err)
	}
	if _, err := carts.AddItem(ctx, domain.AddCartItemParams{
		CartID:         cartID,
		SKU:            domain.SKURef{ProductID: skuFilter},
		ProductName:    "Paper Filters",
		Quantity:       1,
		UnitPriceCents: 30000,
	}); err != nil {
		t.Fatalf("AddItem filters: %v", err)
	}
	if _, err := carts.SelectItem(ctx, cartID, domain.SKURef{ProductID: skuFilter}, false); err != nil {
		t.Fatalf("SelectItem: %v", err)
	}

	if err := carts.ClearSelected(ctx, cartID); err != nil {
		t.Fatalf("ClearSelected: %v", err)
	}
	summary, _ := carts.GetCartSummary(ctx, cartID)
	if len(summary.Items) != 1 {
		t.Fatalf("expected 1 surviving line, got %d", len(summary.Items))
	}
	if summary.Items[0].ProductName != "Paper Filters" {
		t.Errorf("wrong line survived: %s", summary.Items[0].ProductName)
	}
}
