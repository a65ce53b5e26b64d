package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/tranvu/mercato/internal/domain"
	"github.com/tranvu/mercato/internal/repository"
	"github.com/tranvu/mercato/internal/telemetry"
)

type cartService struct {
	repo    repository.Querier
	stock   domain.StockService
	logger  *slog.Logger
	metrics *telemetry.BusinessMetrics
}

// NewCartService creates a new CartService instance
func NewCartService(repo repository.Querier, stock domain.StockService, logger *slog.Logger, metrics *telemetry.BusinessMetrics) (domain.CartService, error) {
	if repo == nil {
		return nil, fmt.Errorf("repository is required")
	}
	if stock == nil {
		return nil, fmt.Errorf("stock service is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &cartService{
		repo:    repo,
		stock:   stock,
		logger:  logger,
		metrics: metrics,
	}, nil
}

// GetOrCreateCart retrieves the user's cart or creates one.
func (s *cartService) GetOrCreateCart(ctx context.Context, userID string) (*domain.Cart, error) {
	cart, err := s.repo.GetOrCreateCartByUser(ctx, userID)
	if err != nil {
		return nil, domain.Internal(err, "cart.getOrCreate", "failed to load cart")
	}
	return &cart, nil
}

// AddItem adds a product to the cart after checking availability. Quantity
// is validated against current stock but not reserved; reservation happens
// at checkout.
func (s *cartService) AddItem(ctx context.Context, params domain.AddCartItemParams) (*domain.CartSummary, error) {
	if params.Quantity <= 0 {
		return nil, ErrInvalidQuantity
	}
	if params.UnitPriceCents < 0 {
		return nil, domain.Invalid("cart.addItem", "unit price must not be negative")
	}

	cart, err := s.repo.GetCartByID(ctx, params.CartID)
	if err != nil {
		return nil, s.cartErr(err, "cart.addItem")
	}

	validation, err := s.stock.Validate(ctx, params.SKU, params.Quantity)
	if err != nil {
		return nil, err
	}
	if !validation.Available {
		return nil, domain.Errorf(domain.ECONFLICT, "cart.addItem",
			"cannot add %d of %s: %s", params.Quantity, params.SKU, validation.Message)
	}

	if err := s.repo.UpsertCartItem(ctx, repository.UpsertCartItemParams{
		CartID:         domain.UUIDString(cart.ID),
		SKU:            params.SKU,
		ProductName:    params.ProductName,
		ProductImage:   params.ProductImage,
		Quantity:       params.Quantity,
		UnitPriceCents: params.UnitPriceCents,
	}); err != nil {
		return nil, domain.Internal(err, "cart.addItem", "failed to add item")
	}

	if s.metrics != nil {
		s.metrics.CartUpdated.WithLabelValues("add").Inc()
		s.metrics.CartItemsAdd.Add(float64(params.Quantity))
	}

	return s.GetCartSummary(ctx, params.CartID)
}

// UpdateItemQuantity updates a line's quantity. Zero removes the line.
func (s *cartService) UpdateItemQuantity(ctx context.Context, cartID string, sku domain.SKURef, quantity int32) (*domain.CartSummary, error) {
	if quantity < 0 {
		return nil, ErrInvalidQuantity
	}
	if quantity == 0 {
		return s.RemoveItem(ctx, cartID, sku)
	}

	validation, err := s.stock.Validate(ctx, sku, quantity)
	if err != nil {
		return nil, err
	}
	if !validation.Available {
		return nil, domain.Errorf(domain.ECONFLICT, "cart.updateQuantity",
			"cannot set quantity %d for %s: %s", quantity, sku, validation.Message)
	}

	if err := s.repo.UpdateCartItemQuantity(ctx, cartID, sku, quantity); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrCartItemNotFound
		}
		return nil, domain.Internal(err, "cart.updateQuantity", "failed to update quantity")
	}

	if s.metrics != nil {
		s.metrics.CartUpdated.WithLabelValues("update").Inc()
	}
	return s.GetCartSummary(ctx, cartID)
}

// RemoveItem removes a line from the cart.
func (s *cartService) RemoveItem(ctx context.Context, cartID string, sku domain.SKURef) (*domain.CartSummary, error) {
	if err := s.repo.DeleteCartItem(ctx, cartID, sku); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrCartItemNotFound
		}
		return nil, domain.Internal(err, "cart.removeItem", "failed to remove item")
	}
	if s.metrics != nil {
		s.metrics.CartUpdated.WithLabelValues("remove").Inc()
	}
	return s.GetCartSummary(ctx, cartID)
}

// SelectItem marks or unmarks a line for checkout.
func (s *cartService) SelectItem(ctx context.Context, cartID string, sku domain.SKURef, selected bool) (*domain.CartSummary, error) {
	if err := s.repo.SetCartItemSelected(ctx, cartID, sku, selected); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrCartItemNotFound
		}
		return nil, domain.Internal(err, "cart.selectItem", "failed to update selection")
	}
	if s.metrics != nil {
		s.metrics.CartUpdated.WithLabelValues("select").Inc()
	}
	return s.GetCartSummary(ctx, cartID)
}

// SelectAll marks or unmarks every line for checkout.
func (s *cartService) SelectAll(ctx context.Context, cartID string, selected bool) (*domain.CartSummary, error) {
	if err := s.repo.SetAllCartItemsSelected(ctx, cartID, selected); err != nil {
		return nil, domain.Internal(err, "cart.selectAll", "failed to update selection")
	}
	if s.metrics != nil {
		s.metrics.CartUpdated.WithLabelValues("select").Inc()
	}
	return s.GetCartSummary(ctx, cartID)
}

// GetCartSummary retrieves the cart with items and calculated totals.
func (s *cartService) GetCartSummary(ctx context.Context, cartID string) (*domain.CartSummary, error) {
	cart, err := s.repo.GetCartByID(ctx, cartID)
	if err != nil {
		return nil, s.cartErr(err, "cart.summary")
	}

	items, err := s.repo.GetCartItems(ctx, cartID)
	if err != nil {
		return nil, domain.Internal(err, "cart.summary", "failed to load cart items")
	}

	summary := &domain.CartSummary{Cart: cart, Items: items}
	for _, item := range items {
		summary.Subtotal += item.LineSubtotal
		summary.ItemCount += int(item.Quantity)
		if item.Selected {
			summary.SelectedSubtotal += item.LineSubtotal
			summary.SelectedCount += int(item.Quantity)
		}
	}
	return summary, nil
}

// ClearSelected removes the checked-out lines after order submission.
// Unselected lines stay in the cart.
func (s *cartService) ClearSelected(ctx context.Context, cartID string) error {
	if err := s.repo.DeleteSelectedCartItems(ctx, cartID); err != nil {
		return domain.Internal(err, "cart.clearSelected", "failed to clear selected items")
	}
	if s.metrics != nil {
		s.metrics.CartUpdated.WithLabelValues("clear").Inc()
	}
	return nil
}

// ClearCart removes all lines.
func (s *cartService) ClearCart(ctx context.Context, cartID string) error {
	if err := s.repo.ClearCart(ctx, cartID); err != nil {
		return domain.Internal(err, "cart.clear", "failed to clear cart")
	}
	if s.metrics != nil {
		s.metrics.CartUpdated.WithLabelValues("clear").Inc()
	}
	return nil
}

func (s *cartService) cartErr(err error, op string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return ErrCartNotFound
	}
	return domain.Internal(err, op, "failed to load cart")
}
