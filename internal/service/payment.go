package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/tranvu/mercato/internal/domain"
	"github.com/tranvu/mercato/internal/events"
	"github.com/tranvu/mercato/internal/repository"
	"github.com/tranvu/mercato/internal/telemetry"
)

type paymentService struct {
	repo      repository.Querier
	logger    *slog.Logger
	publisher events.Publisher
	metrics   *telemetry.BusinessMetrics
}

// NewPaymentService creates a new PaymentService instance
func NewPaymentService(repo repository.Querier, logger *slog.Logger, publisher events.Publisher, metrics *telemetry.BusinessMetrics) (domain.PaymentService, error) {
	if repo == nil {
		return nil, fmt.Errorf("repository is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}
	return &paymentService{
		repo:      repo,
		logger:    logger,
		publisher: publisher,
		metrics:   metrics,
	}, nil
}

// CreateAttempt opens a payment attempt for an order. The amount always
// equals the order total; one open attempt per order at a time.
func (s *paymentService) CreateAttempt(ctx context.Context, orderID string, method domain.PaymentMethod) (*domain.Payment, error) {
	order, err := s.repo.GetOrderByID(ctx, orderID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, domain.Internal(err, "payment.createAttempt", "failed to load order")
	}

	if order.Status != domain.OrderPendingPayment && order.Status != domain.OrderPaymentFailed {
		return nil, domain.Conflict("payment.createAttempt",
			fmt.Sprintf("order is %s, not awaiting payment", order.Status))
	}

	if _, err := s.repo.GetOpenPaymentByOrder(ctx, orderID); err == nil {
		return nil, ErrPaymentOpenExists
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, domain.Internal(err, "payment.createAttempt", "failed to check open payments")
	}

	payment, err := s.repo.InsertPayment(ctx, repository.InsertPaymentParams{
		OrderID:     orderID,
		AmountCents: order.TotalPriceCents,
		Currency:    "VND",
		Method:      method,
		Status:      domain.PaymentPending,
	})
	if err != nil {
		return nil, domain.Internal(err, "payment.createAttempt", "failed to create payment")
	}

	paymentID := domain.UUIDString(payment.ID)
	s.logger.Info("payment attempt opened",
		"order_id", orderID, "payment_id", paymentID, "method", method, "amount_cents", payment.AmountCents)

	events.LogOnFailure(ctx, s.publisher, s.logger,
		events.SubjectPaymentInitiated, events.EventPaymentInitiated, orderID,
		events.PaymentInitiatedPayload{
			OrderID:     orderID,
			PaymentID:   paymentID,
			Method:      string(method),
			AmountCents: payment.AmountCents,
		})

	return &payment, nil
}

func (s *paymentService) GetOpenPayment(ctx context.Context, orderID string) (*domain.Payment, error) {
	payment, err := s.repo.GetOpenPaymentByOrder(ctx, orderID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrPaymentNotFound
	}
	if err != nil {
		return nil, domain.Internal(err, "payment.getOpen", "failed to load payment")
	}
	return &payment, nil
}

// MarkProcessing records that the gateway accepted the payment and issued
// a transaction reference.
func (s *paymentService) MarkProcessing(ctx context.Context, paymentID, transactionID string) (*domain.Payment, error) {
	return s.transition(ctx, paymentID, domain.PaymentProcessing, transactionID)
}

// MarkSuccessful settles the payment and moves the order to PAID.
func (s *paymentService) MarkSuccessful(ctx context.Context, paymentID, transactionID string) (*domain.Payment, error) {
	payment, err := s.transition(ctx, paymentID, domain.PaymentSuccessful, transactionID)
	if err != nil {
		return nil, err
	}

	orderID := domain.UUIDString(payment.OrderID)
	if _, err := s.repo.UpdateOrderPaymentStatus(ctx, orderID, domain.PaymentSuccessful); err != nil {
		return nil, domain.Internal(err, "payment.markSuccessful", "failed to update order payment status")
	}
	if err := s.advanceOrder(ctx, orderID, domain.OrderPaid); err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.PaymentSucceeded.WithLabelValues(string(payment.Method)).Inc()
	}
	events.LogOnFailure(ctx, s.publisher, s.logger,
		events.SubjectPaymentSucceeded, events.EventPaymentSucceeded, orderID,
		events.PaymentSucceededPayload{
			OrderID:       orderID,
			PaymentID:     paymentID,
			TransactionID: payment.TransactionID,
			AmountCents:   payment.AmountCents,
		})

	return payment, nil
}

// MarkFailed fails the payment and moves the order to PAYMENT_FAILED so
// the customer can retry. The stock reservation stays in place.
func (s *paymentService) MarkFailed(ctx context.Context, paymentID, reason string) (*domain.Payment, error) {
	payment, err := s.transition(ctx, paymentID, domain.PaymentFailed, "")
	if err != nil {
		return nil, err
	}

	orderID := domain.UUIDString(payment.OrderID)
	if _, err := s.repo.UpdateOrderPaymentStatus(ctx, orderID, domain.PaymentFailed); err != nil {
		return nil, domain.Internal(err, "payment.markFailed", "failed to update order payment status")
	}
	if err := s.advanceOrder(ctx, orderID, domain.OrderPaymentFailed); err != nil {
		return nil, err
	}

	s.logger.Warn("payment failed", "order_id", orderID, "payment_id", paymentID, "reason", reason)
	if s.metrics != nil {
		s.metrics.PaymentFailed.WithLabelValues(string(payment.Method)).Inc()
	}
	events.LogOnFailure(ctx, s.publisher, s.logger,
		events.SubjectPaymentFailed, events.EventPaymentFailed, orderID,
		events.PaymentFailedPayload{OrderID: orderID, PaymentID: paymentID, Reason: reason})

	return payment, nil
}

// CancelPayment closes a non-terminal attempt without touching the order.
func (s *paymentService) CancelPayment(ctx context.Context, paymentID string) (*domain.Payment, error) {
	return s.transition(ctx, paymentID, domain.PaymentCancelled, "")
}

// Refund records a refund against a settled payment. The cumulative
// refunded amount can never exceed the payment amount.
func (s *paymentService) Refund(ctx context.Context, paymentID string, amountCents int64, reason string) (*domain.Refund, error) {
	payment, err := s.get(ctx, paymentID, "payment.refund")
	if err != nil {
		return nil, err
	}

	refunded, err := s.repo.SumRefundsByPayment(ctx, paymentID)
	if err != nil {
		return nil, domain.Internal(err, "payment.refund", "failed to sum refunds")
	}
	if err := domain.ValidateRefund(payment, refunded, amountCents); err != nil {
		return nil, err
	}

	refund, err := s.repo.InsertRefund(ctx, repository.InsertRefundParams{
		PaymentID:   paymentID,
		AmountCents: amountCents,
		Reason:      reason,
	})
	if err != nil {
		return nil, domain.Internal(err, "payment.refund", "failed to record refund")
	}

	next := domain.PaymentPartiallyRefunded
	kind := "partial"
	if refunded+amountCents == payment.AmountCents {
		next = domain.PaymentRefunded
		kind = "full"
	}
	if _, err := s.transition(ctx, paymentID, next, ""); err != nil {
		return nil, err
	}

	orderID := domain.UUIDString(payment.OrderID)
	if _, err := s.repo.UpdateOrderPaymentStatus(ctx, orderID, next); err != nil {
		return nil, domain.Internal(err, "payment.refund", "failed to update order payment status")
	}

	s.logger.Info("refund recorded",
		"order_id", orderID, "payment_id", paymentID, "amount_cents", amountCents, "kind", kind)
	if s.metrics != nil {
		s.metrics.RefundsIssued.WithLabelValues(kind).Inc()
		s.metrics.RefundAmount.WithLabelValues(kind).Add(float64(amountCents))
	}
	events.LogOnFailure(ctx, s.publisher, s.logger,
		events.SubjectPaymentRefunded, events.EventPaymentRefunded, orderID,
		events.PaymentRefundedPayload{
			OrderID:     orderID,
			PaymentID:   paymentID,
			AmountCents: amountCents,
			Partial:     next == domain.PaymentPartiallyRefunded,
		})

	return &refund, nil
}

// transition applies one validated payment status change.
func (s *paymentService) transition(ctx context.Context, paymentID string, to domain.PaymentStatus, transactionID string) (*domain.Payment, error) {
	payment, err := s.get(ctx, paymentID, "payment.transition")
	if err != nil {
		return nil, err
	}
	if err := domain.ValidatePaymentTransition(payment.Status, to); err != nil {
		return nil, err
	}

	updated, err := s.repo.UpdatePaymentStatus(ctx, paymentID, to, transactionID)
	if err != nil {
		return nil, domain.Internal(err, "payment.transition", "failed to update payment")
	}
	return &updated, nil
}

// advanceOrder moves the order when the transition table allows it. A
// late gateway callback against an already cancelled order updates the
// payment record but leaves the order alone.
func (s *paymentService) advanceOrder(ctx context.Context, orderID string, to domain.OrderStatus) error {
	order, err := s.repo.GetOrderByID(ctx, orderID)
	if errors.Is(err, repository.ErrNotFound) {
		return ErrOrderNotFound
	}
	if err != nil {
		return domain.Internal(err, "payment.advanceOrder", "failed to load order")
	}
	if !order.Status.CanTransitionTo(to) {
		s.logger.Warn("payment settled but order cannot advance",
			"order_id", orderID, "order_status", order.Status, "target", to)
		return nil
	}
	if _, err := s.repo.UpdateOrderStatus(ctx, orderID, to); err != nil {
		return domain.Internal(err, "payment.advanceOrder", "failed to update order")
	}
	if s.metrics != nil {
		s.metrics.OrderStatusTransitions.WithLabelValues(string(order.Status), string(to)).Inc()
	}
	events.LogOnFailure(ctx, s.publisher, s.logger,
		events.SubjectOrderStatusChanged, events.EventOrderStatusChanged, orderID,
		events.OrderStatusChangedPayload{OrderID: orderID, From: string(order.Status), To: string(to)})
	return nil
}

func (s *paymentService) get(ctx context.Context, paymentID, op string) (*domain.Payment, error) {
	payment, err := s.repo.GetPaymentByID(ctx, paymentID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrPaymentNotFound
	}
	if err != nil {
		return nil, domain.Internal(err, op, "failed to load payment")
	}
	return &payment, nil
}
