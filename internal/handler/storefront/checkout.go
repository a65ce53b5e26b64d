package storefront

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/tranvu/mercato/internal/domain"
	"github.com/tranvu/mercato/internal/handler"
)

// CheckoutHandler serves checkout submission, payment retry and the
// post-payment return landing.
type CheckoutHandler struct {
	carts    domain.CartService
	checkout domain.CheckoutService
	orders   domain.OrderService
	payments domain.PaymentService
	logger   *slog.Logger
}

func NewCheckoutHandler(carts domain.CartService, checkout domain.CheckoutService,
	orders domain.OrderService, payments domain.PaymentService, logger *slog.Logger) *CheckoutHandler {
	return &CheckoutHandler{carts: carts, checkout: checkout, orders: orders, payments: payments, logger: logger}
}

type submitRequest struct {
	Street        string `json:"street"`
	ProvinceID    string `json:"provinceId"`
	DistrictID    string `json:"districtId"`
	WardID        string `json:"wardId"`
	Phone         string `json:"phone"`
	Note          string `json:"note"`
	PaymentOption string `json:"paymentOption"`
}

type instructionView struct {
	Kind    string `json:"kind"`
	URL     string `json:"url,omitempty"`
	QRCode  string `json:"qrCode,omitempty"`
	Message string `json:"message,omitempty"`
	OrderID string `json:"orderId"`
}

type submitResponse struct {
	Order       orderView       `json:"order"`
	Instruction instructionView `json:"instruction"`
}

type invalidItemView struct {
	ProductID   string `json:"productId"`
	VariationID string `json:"variationId,omitempty"`
	Name        string `json:"name"`
	Reason      string `json:"reason"`
	Available   int32  `json:"available"`
}

func newSubmitResponse(result *domain.SubmitResult) submitResponse {
	return submitResponse{
		Order: newOrderView(result.Order),
		Instruction: instructionView{
			Kind:    string(result.Instruction.Kind),
			URL:     result.Instruction.URL,
			QRCode:  result.Instruction.QRCode,
			Message: result.Instruction.Message,
			OrderID: result.Instruction.OrderID,
		},
	}
}

// Submit turns the cart's selected lines into an order and dispatches the
// payment. Invalid-item failures carry the offending lines in the payload so
// the client can point at them.
func (h *CheckoutHandler) Submit(w http.ResponseWriter, r *http.Request) {
	user, err := domain.RequireUser(r.Context())
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	var req submitRequest
	if err := handler.DecodeJSON(r, &req); err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	cart, err := h.carts.GetOrCreateCart(r.Context(), user.ID.String())
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	result, err := h.checkout.Submit(r.Context(), domain.SubmitParams{
		CartID: domain.UUIDString(cart.ID),
		Form: domain.CheckoutForm{
			Street:     req.Street,
			ProvinceID: req.ProvinceID,
			DistrictID: req.DistrictID,
			WardID:     req.WardID,
			Phone:      req.Phone,
			Note:       req.Note,
		},
		PaymentOption: req.PaymentOption,
	})
	if err != nil {
		h.checkoutError(w, r, err)
		return
	}

	handler.RespondJSON(w, http.StatusOK, newSubmitResponse(result))
}

type retryPaymentRequest struct {
	PaymentOption string `json:"paymentOption"`
}

// RetryPayment re-dispatches payment for an existing order.
func (h *CheckoutHandler) RetryPayment(w http.ResponseWriter, r *http.Request) {
	if _, err := domain.RequireUser(r.Context()); err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	var req retryPaymentRequest
	if err := handler.DecodeJSON(r, &req); err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	result, err := h.checkout.RetryPayment(r.Context(), r.PathValue("orderID"), req.PaymentOption)
	if err != nil {
		h.checkoutError(w, r, err)
		return
	}

	handler.RespondJSON(w, http.StatusOK, newSubmitResponse(result))
}

// CheckoutSuccess backs the confirmation screen the gateway return URL
// lands on. When the wallet redirect carries a settlement result it is
// applied to the order's open payment before the order is rendered;
// without one (COD, or a plain revisit) the current state is reported
// as is.
func (h *CheckoutHandler) CheckoutSuccess(w http.ResponseWriter, r *http.Request) {
	user, err := domain.RequireUser(r.Context())
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	query := r.URL.Query()
	orderID := query.Get("orderId")
	if orderID == "" {
		handler.ErrorResponse(w, r, domain.Invalid("checkout.success", "orderId is required"))
		return
	}

	detail, err := h.orders.GetOrder(r.Context(), orderID)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	if domain.UUIDString(detail.Order.UserID) != user.ID.String() {
		handler.ErrorResponse(w, r, domain.ErrOrderNotOwned)
		return
	}

	if resultCode := query.Get("resultCode"); resultCode != "" {
		if err := h.settleReturn(r, orderID, resultCode, query.Get("transId")); err != nil {
			handler.ErrorResponse(w, r, err)
			return
		}
		// Re-read: settlement moves both the payment and the order.
		detail, err = h.orders.GetOrder(r.Context(), orderID)
		if err != nil {
			handler.ErrorResponse(w, r, err)
			return
		}
	}

	handler.RespondJSON(w, http.StatusOK, map[string]any{
		"order":   newOrderDetailView(detail),
		"message": query.Get("message"),
	})
}

// settleReturn applies a wallet redirect result to the order's open payment.
// A missing open payment means a duplicate redirect already settled it; that
// is not an error.
func (h *CheckoutHandler) settleReturn(r *http.Request, orderID, resultCode, transactionID string) error {
	open, err := h.payments.GetOpenPayment(r.Context(), orderID)
	if err != nil {
		if errors.Is(err, domain.ErrPaymentNotFound) {
			return nil
		}
		return err
	}

	paymentID := domain.UUIDString(open.ID)
	if resultCode == "0" {
		_, err = h.payments.MarkSuccessful(r.Context(), paymentID, transactionID)
	} else {
		_, err = h.payments.MarkFailed(r.Context(), paymentID, "gateway result "+resultCode)
	}
	if err != nil {
		h.logger.Warn("failed to settle returned payment",
			"order_id", orderID, "payment_id", paymentID, "result_code", resultCode, "error", err)
	}
	return err
}

// checkoutError renders checkout failures, giving field-level validation and
// invalid-item errors a richer payload than the generic envelope.
func (h *CheckoutHandler) checkoutError(w http.ResponseWriter, r *http.Request, err error) {
	if domain.IsValidationError(err) {
		handler.ValidationErrorResponse(w, r, err)
		return
	}

	var invalid *domain.InvalidItemsError
	if errors.As(err, &invalid) {
		items := make([]invalidItemView, 0, len(invalid.Items))
		for _, it := range invalid.Items {
			items = append(items, invalidItemView{
				ProductID:   it.SKU.ProductID,
				VariationID: it.SKU.VariationID,
				Name:        it.Name,
				Reason:      it.Reason,
				Available:   it.Available,
			})
		}
		handler.RespondJSON(w, http.StatusConflict, map[string]any{
			"error": map[string]any{
				"code":         domain.ECONFLICT,
				"message":      invalid.Error(),
				"invalidItems": items,
			},
		})
		return
	}

	handler.ErrorResponse(w, r, err)
}
