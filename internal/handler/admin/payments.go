package admin

import (
	"log/slog"
	"net/http"

	"github.com/tranvu/mercato/internal/domain"
	"github.com/tranvu/mercato/internal/handler"
)

// PaymentHandler serves the back-office refund console.
type PaymentHandler struct {
	payments domain.PaymentService
	logger   *slog.Logger
}

func NewPaymentHandler(payments domain.PaymentService, logger *slog.Logger) *PaymentHandler {
	return &PaymentHandler{payments: payments, logger: logger}
}

type refundRequest struct {
	AmountCents int64  `json:"amountCents"`
	Reason      string `json:"reason"`
}

type refundView struct {
	ID          string `json:"id"`
	PaymentID   string `json:"paymentId"`
	AmountCents int64  `json:"amountCents"`
	Reason      string `json:"reason,omitempty"`
	CreatedAt   string `json:"createdAt,omitempty"`
}

// Refund records a refund against a settled payment. The cumulative amount
// may never exceed the payment; the payment flips to PARTIALLY_REFUNDED or
// REFUNDED accordingly.
func (h *PaymentHandler) Refund(w http.ResponseWriter, r *http.Request) {
	var req refundRequest
	if err := handler.DecodeJSON(r, &req); err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	refund, err := h.payments.Refund(r.Context(), r.PathValue("paymentID"), req.AmountCents, req.Reason)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	handler.RespondJSON(w, http.StatusCreated, refundView{
		ID:          domain.UUIDString(refund.ID),
		PaymentID:   domain.UUIDString(refund.PaymentID),
		AmountCents: refund.AmountCents,
		Reason:      refund.Reason,
		CreatedAt:   timestampString(refund.CreatedAt),
	})
}
