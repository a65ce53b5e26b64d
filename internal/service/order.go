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

type orderService struct {
	repo      repository.Querier
	stock     domain.StockService
	logger    *slog.Logger
	publisher events.Publisher
	metrics   *telemetry.BusinessMetrics
}

// NewOrderService creates a new OrderService instance
func NewOrderService(repo repository.Querier, stock domain.StockService, logger *slog.Logger, publisher events.Publisher, metrics *telemetry.BusinessMetrics) (domain.OrderService, error) {
	if repo == nil {
		return nil, fmt.Errorf("repository is required")
	}
	if stock == nil {
		return nil, fmt.Errorf("stock service is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}
	return &orderService{
		repo:      repo,
		stock:     stock,
		logger:    logger,
		publisher: publisher,
		metrics:   metrics,
	}, nil
}

// CreateOrder persists an order and reserves stock for every line in one
// unit of work. A shortfall on any line persists nothing and reports every
// offending item.
func (s *orderService) CreateOrder(ctx context.Context, params domain.CreateOrderParams) (*domain.OrderDetail, error) {
	if len(params.Items) == 0 {
		return nil, ErrEmptyCart
	}
	for _, item := range params.Items {
		if item.Quantity <= 0 {
			return nil, domain.Invalid("order.create", "item quantity must be greater than 0")
		}
		if item.UnitPriceCents < 0 {
			return nil, domain.Invalid("order.create", "item price must not be negative")
		}
	}

	detail, shortfalls, err := s.repo.CreateOrderWithReservation(ctx, repository.InsertOrderParams{
		UserID:    params.UserID,
		UserEmail: params.UserEmail,
		Address:   params.Address,
		Phone:     params.Phone,
		Note:      params.Note,
		Method:    params.Method,
		Items:     params.Items,
	})
	if err != nil {
		return nil, domain.Internal(err, "order.create", "failed to create order")
	}
	if len(shortfalls) > 0 {
		if s.metrics != nil {
			s.metrics.StockConflicts.WithLabelValues("reserve").Inc()
		}
		invalid := &domain.InvalidItemsError{}
		for _, sf := range shortfalls {
			invalid.Items = append(invalid.Items, domain.InvalidItem{
				SKU:       sf.SKU,
				Name:      itemName(params.Items, sf.SKU),
				Reason:    fmt.Sprintf("only %d left in stock", sf.Available),
				Available: sf.Available,
			})
		}
		return nil, domain.WrapError(invalid, domain.ECONFLICT, "order.create",
			"Some items in your order are no longer available")
	}

	orderID := domain.UUIDString(detail.Order.ID)
	s.logger.Info("order created",
		"order_id", orderID,
		"user_id", params.UserID,
		"total_cents", detail.Order.TotalPriceCents,
		"method", params.Method)

	if s.metrics != nil {
		method := string(params.Method)
		s.metrics.OrdersCreated.WithLabelValues(method).Inc()
		s.metrics.OrderValue.WithLabelValues(method).Observe(float64(detail.Order.TotalPriceCents))
		s.metrics.OrderItemCount.WithLabelValues(method).Observe(float64(len(detail.Items)))
	}

	created := events.OrderCreatedPayload{
		OrderID:       orderID,
		UserID:        params.UserID,
		TotalCents:    detail.Order.TotalPriceCents,
		PaymentMethod: string(params.Method),
	}
	for _, item := range params.Items {
		created.Items = append(created.Items, events.ItemQty{
			ProductID:   item.ProductID,
			VariationID: item.VariationID,
			Qty:         item.Quantity,
		})
	}
	events.LogOnFailure(ctx, s.publisher, s.logger,
		events.SubjectOrderCreated, events.EventOrderCreated, orderID, created)
	events.LogOnFailure(ctx, s.publisher, s.logger,
		events.SubjectStockReserved, events.EventStockReserved, orderID,
		events.StockReservedPayload{OrderID: orderID, Items: created.Items})

	return detail, nil
}

func itemName(items []domain.OrderItemInput, sku domain.SKURef) string {
	for _, item := range items {
		if item.ProductID == sku.ProductID && item.VariationID == sku.VariationID {
			return item.ProductName
		}
	}
	return sku.String()
}

// GetOrder retrieves an order with items and payment attempts, verifying
// the total invariant on the way out.
func (s *orderService) GetOrder(ctx context.Context, orderID string) (*domain.OrderDetail, error) {
	order, err := s.repo.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, s.orderErr(err, "order.get")
	}
	items, err := s.repo.GetOrderItems(ctx, orderID)
	if err != nil {
		return nil, domain.Internal(err, "order.get", "failed to load order items")
	}
	payments, err := s.repo.ListPaymentsByOrder(ctx, orderID)
	if err != nil {
		return nil, domain.Internal(err, "order.get", "failed to load payments")
	}

	detail := &domain.OrderDetail{Order: order, Items: items, Payments: payments}
	if err := detail.ValidateTotals(); err != nil {
		s.logger.Error("order total invariant violated", "order_id", orderID, "error", err)
		return nil, err
	}
	return detail, nil
}

func (s *orderService) ListOrdersByUser(ctx context.Context, userID string) ([]domain.Order, error) {
	orders, err := s.repo.ListOrdersByUser(ctx, userID)
	if err != nil {
		return nil, domain.Internal(err, "order.listByUser", "failed to list orders")
	}
	return orders, nil
}

func (s *orderService) ListOrders(ctx context.Context, status *domain.OrderStatus) ([]domain.Order, error) {
	if status != nil && !status.IsValid() {
		return nil, domain.Errorf(domain.EINVALID, "order.list", "unknown order status: %s", *status)
	}
	orders, err := s.repo.ListOrders(ctx, status)
	if err != nil {
		return nil, domain.Internal(err, "order.list", "failed to list orders")
	}
	return orders, nil
}

// UpdateStatus transitions an order through the allowed-successor table.
// Entering CANCELLED releases the reservation and cancels any open payment;
// entering DELIVERED commits the reservation.
func (s *orderService) UpdateStatus(ctx context.Context, orderID string, to domain.OrderStatus) (*domain.Order, error) {
	order, err := s.repo.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, s.orderErr(err, "order.updateStatus")
	}

	from := order.Status
	if err := domain.ValidateOrderTransition(from, to); err != nil {
		return nil, err
	}

	updated, err := s.repo.UpdateOrderStatus(ctx, orderID, to)
	if err != nil {
		return nil, domain.Internal(err, "order.updateStatus", "failed to update order")
	}

	s.logger.Info("order status changed", "order_id", orderID, "from", from, "to", to)
	if s.metrics != nil {
		s.metrics.OrderStatusTransitions.WithLabelValues(string(from), string(to)).Inc()
	}
	events.LogOnFailure(ctx, s.publisher, s.logger,
		events.SubjectOrderStatusChanged, events.EventOrderStatusChanged, orderID,
		events.OrderStatusChangedPayload{OrderID: orderID, From: string(from), To: string(to)})

	switch to {
	case domain.OrderCancelled:
		if err := s.stock.Release(ctx, orderID); err != nil {
			return nil, err
		}
		if err := s.cancelOpenPayment(ctx, orderID); err != nil {
			return nil, err
		}
	case domain.OrderDelivered:
		if err := s.stock.Commit(ctx, orderID); err != nil {
			return nil, err
		}
	}

	return &updated, nil
}

// cancelOpenPayment closes a PENDING or PROCESSING attempt when the order
// is cancelled, so the gateway callback cannot settle a dead order.
func (s *orderService) cancelOpenPayment(ctx context.Context, orderID string) error {
	payment, err := s.repo.GetOpenPaymentByOrder(ctx, orderID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil
	}
	if err != nil {
		return domain.Internal(err, "order.updateStatus", "failed to load open payment")
	}

	paymentID := domain.UUIDString(payment.ID)
	if _, err := s.repo.UpdatePaymentStatus(ctx, paymentID, domain.PaymentCancelled, ""); err != nil {
		return domain.Internal(err, "order.updateStatus", "failed to cancel payment")
	}
	if _, err := s.repo.UpdateOrderPaymentStatus(ctx, orderID, domain.PaymentCancelled); err != nil {
		return domain.Internal(err, "order.updateStatus", "failed to update order payment status")
	}
	s.logger.Info("open payment cancelled with order", "order_id", orderID, "payment_id", paymentID)
	return nil
}

// Cancel is the customer cancellation entry point.
func (s *orderService) Cancel(ctx context.Context, orderID, userID string) (*domain.Order, error) {
	order, err := s.repo.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, s.orderErr(err, "order.cancel")
	}
	if domain.UUIDString(order.UserID) != userID {
		return nil, ErrOrderNotOwned
	}
	if order.Status.IsTerminal() {
		return nil, ErrOrderTerminal
	}
	return s.UpdateStatus(ctx, orderID, domain.OrderCancelled)
}

func (s *orderService) orderErr(err error, op string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return ErrOrderNotFound
	}
	return domain.Internal(err, op, "failed to load order")
}
