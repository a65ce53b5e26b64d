package domain

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

// Cart domain errors.
var (
	ErrCartNotFound     = &Error{Code: ENOTFOUND, Message: "Cart not found"}
	ErrCartItemNotFound = &Error{Code: ENOTFOUND, Message: "Cart item not found"}
	ErrInvalidQuantity  = &Error{Code: EINVALID, Message: "Quantity must be greater than 0"}
)

// CartService provides business logic for shopping cart operations.
type CartService interface {
	// GetOrCreateCart retrieves the user's cart or creates one.
	GetOrCreateCart(ctx context.Context, userID string) (*Cart, error)

	// AddItem adds a product to the cart or bumps quantity if present.
	// Newly added items start selected.
	AddItem(ctx context.Context, params AddCartItemParams) (*CartSummary, error)

	// UpdateItemQuantity updates a line's quantity; 0 removes the line.
	UpdateItemQuantity(ctx context.Context, cartID string, sku SKURef, quantity int32) (*CartSummary, error)

	// RemoveItem removes a line from the cart.
	RemoveItem(ctx context.Context, cartID string, sku SKURef) (*CartSummary, error)

	// SelectItem marks or unmarks a line for checkout.
	SelectItem(ctx context.Context, cartID string, sku SKURef, selected bool) (*CartSummary, error)

	// SelectAll marks or unmarks every line for checkout.
	SelectAll(ctx context.Context, cartID string, selected bool) (*CartSummary, error)

	// GetCartSummary retrieves the cart with items and totals.
	GetCartSummary(ctx context.Context, cartID string) (*CartSummary, error)

	// ClearSelected removes the checked-out lines after order submission.
	ClearSelected(ctx context.Context, cartID string) error

	// ClearCart removes all lines.
	ClearCart(ctx context.Context, cartID string) error
}

// AddCartItemParams carries one add-to-cart action. Name, image and price
// are snapshotted from the catalog at add time.
type AddCartItemParams struct {
	CartID         string
	SKU            SKURef
	ProductName    string
	ProductImage   string
	Quantity       int32
	UnitPriceCents int64
}

// Cart is a lightweight cart view model.
type Cart struct {
	ID        pgtype.UUID
	UserID    pgtype.UUID
	CreatedAt pgtype.Timestamptz
	UpdatedAt pgtype.Timestamptz
}

// CartSummary aggregates cart information with items and calculated totals.
// SelectedSubtotal and SelectedCount cover only lines marked for checkout.
type CartSummary struct {
	Cart             Cart
	Items            []CartItem
	Subtotal         int64
	ItemCount        int
	SelectedSubtotal int64
	SelectedCount    int
}

// SelectedItems returns the lines marked for checkout.
func (s *CartSummary) SelectedItems() []CartItem {
	var out []CartItem
	for _, item := range s.Items {
		if item.Selected {
			out = append(out, item)
		}
	}
	return out
}

// CartItem is a cart line with product details and calculated totals.
type CartItem struct {
	ID             pgtype.UUID
	ProductID      pgtype.UUID
	VariationID    pgtype.UUID // invalid UUID when absent
	ProductName    string
	ProductImage   string
	Quantity       int32
	UnitPriceCents int64
	LineSubtotal   int64
	Selected       bool
}

// SKU returns the stockable-unit reference for this line.
func (i CartItem) SKU() SKURef {
	ref := SKURef{ProductID: uuidString(i.ProductID)}
	if i.VariationID.Valid {
		ref.VariationID = uuidString(i.VariationID)
	}
	return ref
}
