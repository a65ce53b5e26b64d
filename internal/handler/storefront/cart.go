// Package storefront holds the customer-facing JSON API handlers.
package storefront

import (
	"log/slog"
	"net/http"

	"github.com/tranvu/mercato/internal/domain"
	"github.com/tranvu/mercato/internal/handler"
)

// CartHandler serves the shopping cart endpoints. Every endpoint operates on
// the calling user's own cart; the cart id never crosses the API boundary.
type CartHandler struct {
	carts  domain.CartService
	logger *slog.Logger
}

func NewCartHandler(carts domain.CartService, logger *slog.Logger) *CartHandler {
	return &CartHandler{carts: carts, logger: logger}
}

type cartItemView struct {
	ProductID      string `json:"productId"`
	VariationID    string `json:"variationId,omitempty"`
	ProductName    string `json:"productName"`
	ProductImage   string `json:"productImage,omitempty"`
	Quantity       int32  `json:"quantity"`
	UnitPriceCents int64  `json:"unitPriceCents"`
	LineSubtotal   int64  `json:"lineSubtotal"`
	Selected       bool   `json:"selected"`
}

type cartView struct {
	Items            []cartItemView `json:"items"`
	Subtotal         int64          `json:"subtotal"`
	ItemCount        int            `json:"itemCount"`
	SelectedSubtotal int64          `json:"selectedSubtotal"`
	SelectedCount    int            `json:"selectedCount"`
}

func newCartView(summary *domain.CartSummary) cartView {
	view := cartView{
		Items:            make([]cartItemView, 0, len(summary.Items)),
		Subtotal:         summary.Subtotal,
		ItemCount:        summary.ItemCount,
		SelectedSubtotal: summary.SelectedSubtotal,
		SelectedCount:    summary.SelectedCount,
	}
	for _, item := range summary.Items {
		view.Items = append(view.Items, cartItemView{
			ProductID:      domain.UUIDString(item.ProductID),
			VariationID:    domain.UUIDString(item.VariationID),
			ProductName:    item.ProductName,
			ProductImage:   item.ProductImage,
			Quantity:       item.Quantity,
			UnitPriceCents: item.UnitPriceCents,
			LineSubtotal:   item.LineSubtotal,
			Selected:       item.Selected,
		})
	}
	return view
}

// cartID resolves the caller's cart, creating it on first touch.
func (h *CartHandler) cartID(r *http.Request) (string, error) {
	user, err := domain.RequireUser(r.Context())
	if err != nil {
		return "", err
	}
	cart, err := h.carts.GetOrCreateCart(r.Context(), user.ID.String())
	if err != nil {
		return "", err
	}
	return domain.UUIDString(cart.ID), nil
}

// GetCart returns the caller's cart with line totals.
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	cartID, err := h.cartID(r)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	summary, err := h.carts.GetCartSummary(r.Context(), cartID)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	handler.RespondJSON(w, http.StatusOK, newCartView(summary))
}

type addItemRequest struct {
	ProductID      string `json:"productId"`
	VariationID    string `json:"variationId"`
	ProductName    string `json:"productName"`
	ProductImage   string `json:"productImage"`
	Quantity       int32  `json:"quantity"`
	UnitPriceCents int64  `json:"unitPriceCents"`
}

// AddItem adds a product to the caller's cart, merging quantity when the
// line already exists.
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	cartID, err := h.cartID(r)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	var req addItemRequest
	if err := handler.DecodeJSON(r, &req); err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	if req.ProductID == "" {
		handler.ErrorResponse(w, r, domain.Invalid("cart.add", "productId is required"))
		return
	}

	summary, err := h.carts.AddItem(r.Context(), domain.AddCartItemParams{
		CartID:         cartID,
		SKU:            domain.SKURef{ProductID: req.ProductID, VariationID: req.VariationID},
		ProductName:    req.ProductName,
		ProductImage:   req.ProductImage,
		Quantity:       req.Quantity,
		UnitPriceCents: req.UnitPriceCents,
	})
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	handler.RespondJSON(w, http.StatusOK, newCartView(summary))
}

type updateItemRequest struct {
	VariationID string `json:"variationId"`
	Quantity    int32  `json:"quantity"`
}

// UpdateItem changes a line's quantity. Quantity zero removes the line.
func (h *CartHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	cartID, err := h.cartID(r)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	var req updateItemRequest
	if err := handler.DecodeJSON(r, &req); err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	sku := domain.SKURef{ProductID: r.PathValue("productID"), VariationID: req.VariationID}
	summary, err := h.carts.UpdateItemQuantity(r.Context(), cartID, sku, req.Quantity)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	handler.RespondJSON(w, http.StatusOK, newCartView(summary))
}

// RemoveItem deletes a line from the caller's cart. The variation, when the
// product has one, arrives as a query parameter.
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	cartID, err := h.cartID(r)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	sku := domain.SKURef{
		ProductID:   r.PathValue("productID"),
		VariationID: r.URL.Query().Get("variationId"),
	}
	summary, err := h.carts.RemoveItem(r.Context(), cartID, sku)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	handler.RespondJSON(w, http.StatusOK, newCartView(summary))
}

type selectItemRequest struct {
	VariationID string `json:"variationId"`
	Selected    bool   `json:"selected"`
}

// SelectItem marks or unmarks one line for checkout.
func (h *CartHandler) SelectItem(w http.ResponseWriter, r *http.Request) {
	cartID, err := h.cartID(r)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	var req selectItemRequest
	if err := handler.DecodeJSON(r, &req); err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	sku := domain.SKURef{ProductID: r.PathValue("productID"), VariationID: req.VariationID}
	summary, err := h.carts.SelectItem(r.Context(), cartID, sku, req.Selected)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	handler.RespondJSON(w, http.StatusOK, newCartView(summary))
}

type selectAllRequest struct {
	Selected bool `json:"selected"`
}

// SelectAll marks or unmarks every line for checkout.
func (h *CartHandler) SelectAll(w http.ResponseWriter, r *http.Request) {
	cartID, err := h.cartID(r)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	var req selectAllRequest
	if err := handler.DecodeJSON(r, &req); err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	summary, err := h.carts.SelectAll(r.Context(), cartID, req.Selected)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	handler.RespondJSON(w, http.StatusOK, newCartView(summary))
}
