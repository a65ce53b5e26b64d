package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/tranvu/mercato/internal/address"
	"github.com/tranvu/mercato/internal/domain"
	"github.com/tranvu/mercato/internal/payment"
	"github.com/tranvu/mercato/internal/telemetry"
)

type checkoutService struct {
	carts      domain.CartService
	orders     domain.OrderService
	payments   domain.PaymentService
	stock      domain.StockService
	dispatcher *payment.Dispatcher
	addresses  address.Source
	validate   *validator.Validate
	logger     *slog.Logger
	metrics    *telemetry.BusinessMetrics

	// inFlight tracks carts with an unresolved submission. A second submit
	// for the same cart is rejected, never interleaved.
	mu       sync.Mutex
	inFlight map[string]struct{}
}

// CheckoutDeps collects the orchestrator's collaborators.
type CheckoutDeps struct {
	Carts      domain.CartService
	Orders     domain.OrderService
	Payments   domain.PaymentService
	Stock      domain.StockService
	Dispatcher *payment.Dispatcher
	Addresses  address.Source
	Logger     *slog.Logger
	Metrics    *telemetry.BusinessMetrics
}

// NewCheckoutService creates a new CheckoutService instance
func NewCheckoutService(deps CheckoutDeps) (domain.CheckoutService, error) {
	if deps.Carts == nil || deps.Orders == nil || deps.Payments == nil || deps.Stock == nil {
		return nil, fmt.Errorf("cart, order, payment and stock services are required")
	}
	if deps.Dispatcher == nil {
		return nil, fmt.Errorf("payment dispatcher is required")
	}
	if deps.Addresses == nil {
		return nil, fmt.Errorf("address source is required")
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &checkoutService{
		carts:      deps.Carts,
		orders:     deps.Orders,
		payments:   deps.Payments,
		stock:      deps.Stock,
		dispatcher: deps.Dispatcher,
		addresses:  deps.Addresses,
		validate:   validator.New(),
		logger:     deps.Logger,
		metrics:    deps.Metrics,
		inFlight:   make(map[string]struct{}),
	}, nil
}

// Submit turns the cart's selected items into an order and dispatches the
// payment. Preconditions run in a fixed sequence before any mutation:
// identity, submission guard, payment option, form, cart contents, stock.
func (s *checkoutService) Submit(ctx context.Context, params domain.SubmitParams) (*domain.SubmitResult, error) {
	user, err := domain.RequireUser(ctx)
	if err != nil {
		return nil, err
	}

	if !s.acquire(params.CartID) {
		s.countFailure("conflict")
		return nil, ErrSubmitInFlight
	}
	defer s.release(params.CartID)

	if s.metrics != nil {
		s.metrics.CheckoutStarted.WithLabelValues(params.PaymentOption).Inc()
	}

	sel, err := domain.ResolvePaymentOption(params.PaymentOption)
	if err != nil {
		s.countFailure("validation")
		return nil, err
	}

	if err := s.validateForm(params.Form); err != nil {
		s.countFailure("validation")
		return nil, err
	}

	shippingAddress, err := s.resolveAddress(ctx, params.Form)
	if err != nil {
		s.countFailure("validation")
		return nil, err
	}

	summary, err := s.carts.GetCartSummary(ctx, params.CartID)
	if err != nil {
		s.countFailure("validation")
		return nil, err
	}
	if domain.UUIDString(summary.Cart.UserID) != user.ID.String() {
		s.countFailure("validation")
		return nil, domain.Forbidden("checkout.submit", "Cart belongs to another customer")
	}

	selected := summary.SelectedItems()
	if len(selected) == 0 {
		s.countFailure("validation")
		return nil, ErrEmptyCart
	}

	if err := s.validateStock(ctx, selected); err != nil {
		s.countFailure("stock")
		return nil, err
	}

	items := make([]domain.OrderItemInput, 0, len(selected))
	for _, line := range selected {
		sku := line.SKU()
		items = append(items, domain.OrderItemInput{
			ProductID:      sku.ProductID,
			VariationID:    sku.VariationID,
			ProductName:    line.ProductName,
			ProductImage:   line.ProductImage,
			Quantity:       line.Quantity,
			UnitPriceCents: line.UnitPriceCents,
		})
	}

	detail, err := s.orders.CreateOrder(ctx, domain.CreateOrderParams{
		UserID:    user.ID.String(),
		UserEmail: user.Email,
		Address:   shippingAddress,
		Phone:     params.Form.Phone,
		Note:      params.Form.Note,
		Items:     items,
		Method:    sel.Method,
	})
	if err != nil {
		if domain.ErrorCode(err) == domain.ECONFLICT {
			s.countFailure("stock")
		} else {
			s.countFailure("internal")
		}
		return nil, err
	}

	orderID := domain.UUIDString(detail.Order.ID)

	// The order owns the reserved stock now. Checked-out lines leave the
	// cart; unselected lines stay.
	if err := s.carts.ClearSelected(ctx, params.CartID); err != nil {
		s.logger.Error("failed to clear checked-out cart lines",
			"cart_id", params.CartID, "order_id", orderID, "error", err)
	}

	instruction, err := s.dispatch(ctx, &detail.Order, sel)
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.CheckoutCompleted.WithLabelValues(params.PaymentOption).Inc()
	}
	return &domain.SubmitResult{Order: &detail.Order, Instruction: *instruction}, nil
}

// RetryPayment re-dispatches payment for an order stuck before settlement.
// No new order, no new reservation.
func (s *checkoutService) RetryPayment(ctx context.Context, orderID, option string) (*domain.SubmitResult, error) {
	user, err := domain.RequireUser(ctx)
	if err != nil {
		return nil, err
	}

	sel, err := domain.ResolvePaymentOption(option)
	if err != nil {
		return nil, err
	}

	detail, err := s.orders.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	order := &detail.Order

	if domain.UUIDString(order.UserID) != user.ID.String() {
		return nil, ErrOrderNotOwned
	}
	if order.Status != domain.OrderPendingPayment && order.Status != domain.OrderPaymentFailed {
		return nil, domain.Conflict("checkout.retry",
			fmt.Sprintf("order is %s, not awaiting payment", order.Status))
	}
	if sel.Method != order.Method {
		return nil, domain.Invalid("checkout.retry", "payment method cannot change on retry")
	}

	// A failed order re-enters PENDING_PAYMENT for the new attempt.
	if order.Status == domain.OrderPaymentFailed {
		updated, err := s.orders.UpdateStatus(ctx, orderID, domain.OrderPendingPayment)
		if err != nil {
			return nil, err
		}
		order = updated
	}

	// Close a stale open attempt before opening the next one.
	if open, err := s.payments.GetOpenPayment(ctx, orderID); err == nil {
		if _, err := s.payments.CancelPayment(ctx, domain.UUIDString(open.ID)); err != nil {
			return nil, err
		}
	} else if !errors.Is(err, ErrPaymentNotFound) {
		return nil, err
	}

	instruction, err := s.dispatch(ctx, order, sel)
	if err != nil {
		return nil, err
	}
	return &domain.SubmitResult{Order: order, Instruction: *instruction}, nil
}

// dispatch opens the payment attempt and routes it. A gateway failure is
// recoverable: the attempt is marked failed, the order and its reservation
// stay put, and the caller gets an error instruction to surface a retry.
func (s *checkoutService) dispatch(ctx context.Context, order *domain.Order, sel domain.PaymentSelection) (*domain.RedirectInstruction, error) {
	orderID := domain.UUIDString(order.ID)

	attempt, err := s.payments.CreateAttempt(ctx, orderID, sel.Method)
	if err != nil {
		return nil, err
	}
	paymentID := domain.UUIDString(attempt.ID)

	result, err := s.dispatcher.Dispatch(ctx, order, sel)
	if err != nil {
		s.countFailure("payment")
		s.logger.Warn("payment dispatch failed, order awaits retry",
			"order_id", orderID, "payment_id", paymentID, "error", err)
		// Close the attempt without touching the order: it stays
		// PENDING_PAYMENT with its reservation held, and the user retries.
		if _, cancelErr := s.payments.CancelPayment(ctx, paymentID); cancelErr != nil {
			s.logger.Error("failed to close payment attempt after dispatch failure",
				"order_id", orderID, "payment_id", paymentID, "error", cancelErr)
		}
		return &domain.RedirectInstruction{
			Kind:    domain.InstructionError,
			Message: domain.ErrorMessage(err),
			OrderID: orderID,
		}, nil
	}

	if result.TransactionID != "" {
		if _, err := s.payments.MarkProcessing(ctx, paymentID, result.TransactionID); err != nil {
			return nil, err
		}
	}
	return &result.Instruction, nil
}

// validateForm maps struct tag failures onto field-level validation errors.
func (s *checkoutService) validateForm(form domain.CheckoutForm) error {
	err := s.validate.Struct(form)
	if err == nil {
		return nil
	}

	var invalid validator.ValidationErrors
	if !errors.As(err, &invalid) {
		return domain.Internal(err, "checkout.submit", "form validation failed")
	}

	ve := &domain.ValidationError{Op: "checkout.submit", Fields: make(map[string]string)}
	for _, fe := range invalid {
		switch fe.Tag() {
		case "required":
			ve.Fields[fe.Field()] = "This field is required"
		case "min":
			ve.Fields[fe.Field()] = fmt.Sprintf("Must be at least %s characters", fe.Param())
		case "max":
			ve.Fields[fe.Field()] = fmt.Sprintf("Must be at most %s characters", fe.Param())
		default:
			ve.Fields[fe.Field()] = "Invalid value"
		}
	}
	return ve
}

// resolveAddress resolves the three division ids, verifies the hierarchy
// links, and composes the single shipping address line.
func (s *checkoutService) resolveAddress(ctx context.Context, form domain.CheckoutForm) (string, error) {
	province, err := s.addresses.Province(ctx, form.ProvinceID)
	if errors.Is(err, address.ErrNotFound) {
		return "", domain.NewValidationError("checkout.submit", "provinceId", "Unknown province")
	}
	if err != nil {
		return "", domain.Internal(err, "checkout.submit", "failed to resolve province")
	}

	district, err := s.addresses.District(ctx, form.DistrictID)
	if errors.Is(err, address.ErrNotFound) {
		return "", domain.NewValidationError("checkout.submit", "districtId", "Unknown district")
	}
	if err != nil {
		return "", domain.Internal(err, "checkout.submit", "failed to resolve district")
	}
	if district.ProvinceID != province.ID {
		return "", domain.NewValidationError("checkout.submit", "districtId", "District is not in the selected province")
	}

	ward, err := s.addresses.Ward(ctx, form.WardID)
	if errors.Is(err, address.ErrNotFound) {
		return "", domain.NewValidationError("checkout.submit", "wardId", "Unknown ward")
	}
	if err != nil {
		return "", domain.Internal(err, "checkout.submit", "failed to resolve ward")
	}
	if ward.DistrictID != district.ID {
		return "", domain.NewValidationError("checkout.submit", "wardId", "Ward is not in the selected district")
	}

	return domain.ComposeAddress(form.Street, ward.Name, district.Name, province.Name), nil
}

// validateStock runs the read-only availability pass over every selected
// line and reports all offenders at once.
func (s *checkoutService) validateStock(ctx context.Context, items []domain.CartItem) error {
	invalid := &domain.InvalidItemsError{}
	for _, line := range items {
		v, err := s.stock.Validate(ctx, line.SKU(), line.Quantity)
		if err != nil {
			return err
		}
		if !v.Available {
			invalid.Items = append(invalid.Items, domain.InvalidItem{
				SKU:       line.SKU(),
				Name:      line.ProductName,
				Reason:    v.Message,
				Available: v.AvailableQuantity,
			})
		}
	}
	if len(invalid.Items) > 0 {
		return domain.WrapError(invalid, domain.ECONFLICT, "checkout.submit",
			"Some items in your cart are no longer available")
	}
	return nil
}

func (s *checkoutService) acquire(cartID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.inFlight[cartID]; busy {
		return false
	}
	s.inFlight[cartID] = struct{}{}
	return true
}

func (s *checkoutService) release(cartID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inFlight, cartID)
}

func (s *checkoutService) countFailure(reason string) {
	if s.metrics != nil {
		s.metrics.CheckoutFailed.WithLabelValues(reason).Inc()
	}
}
