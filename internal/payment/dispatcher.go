package payment

import (
	"context"
	"log/slog"

	"github.com/tranvu/mercato/internal/domain"
	"github.com/tranvu/mercato/internal/telemetry"
)

// Dispatcher routes a freshly created order to its payment flow and
// produces the redirect instruction the storefront acts on. Each supported
// {method, style} pair has one handler in a lookup table; adding a payment
// variant means adding a table entry, not another branch at call sites.
type Dispatcher struct {
	gateway Gateway
	baseURL string
	logger  *slog.Logger
	metrics *telemetry.BusinessMetrics

	handlers map[domain.PaymentSelection]dispatchFunc
}

type dispatchFunc func(ctx context.Context, order *domain.Order) (*DispatchResult, error)

// DispatchResult is the dispatcher's answer for one order.
type DispatchResult struct {
	Instruction   domain.RedirectInstruction
	TransactionID string
}

// NewDispatcher creates a Dispatcher. baseURL is the public storefront
// origin used to build the shared payment return URL.
func NewDispatcher(gateway Gateway, baseURL string, logger *slog.Logger, metrics *telemetry.BusinessMetrics) (*Dispatcher, error) {
	if gateway == nil {
		return nil, domain.Errorf(domain.EINVALID, "payment.NewDispatcher", "gateway is required")
	}
	if baseURL == "" {
		return nil, domain.Errorf(domain.EINVALID, "payment.NewDispatcher", "base URL is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	d := &Dispatcher{
		gateway: gateway,
		baseURL: baseURL,
		logger:  logger,
		metrics: metrics,
	}
	d.handlers = map[domain.PaymentSelection]dispatchFunc{
		{Method: domain.MethodCOD}:                                    d.dispatchCOD,
		{Method: domain.MethodWallet, Style: domain.RedirectWeb}:      d.dispatchWalletWeb,
		{Method: domain.MethodWallet, Style: domain.RedirectQR}:       d.dispatchWalletQR,
		{Method: domain.MethodWallet, Style: domain.RedirectDeeplink}: d.dispatchWalletDeeplink,
	}
	return d, nil
}

// Dispatch resolves the order's payment flow. A non-nil error is always a
// recoverable gateway failure: the order is already persisted and the
// caller surfaces a retry, never a rollback.
func (d *Dispatcher) Dispatch(ctx context.Context, order *domain.Order, sel domain.PaymentSelection) (*DispatchResult, error) {
	handler, ok := d.handlers[sel]
	if !ok {
		return nil, domain.Errorf(domain.EINVALID, "payment.Dispatch",
			"no payment flow for method %s style %s", sel.Method, sel.Style)
	}

	result, err := handler(ctx, order)
	d.observe(sel, err)
	return result, err
}

func (d *Dispatcher) observe(sel domain.PaymentSelection, err error) {
	if d.metrics == nil {
		return
	}
	style := string(sel.Style)
	if sel.Method == domain.MethodCOD {
		style = "cod"
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	d.metrics.PaymentDispatch.WithLabelValues(style, outcome).Inc()
}

// dispatchCOD settles nothing up front: the order proceeds straight to the
// confirmation screen and payment stays pending until delivery.
func (d *Dispatcher) dispatchCOD(ctx context.Context, order *domain.Order) (*DispatchResult, error) {
	orderID := domain.UUIDString(order.ID)
	return &DispatchResult{
		Instruction: domain.RedirectInstruction{
			Kind:    domain.InstructionSuccess,
			Message: "Order placed. Pay the courier on delivery.",
			OrderID: orderID,
		},
	}, nil
}

func (d *Dispatcher) dispatchWalletWeb(ctx context.Context, order *domain.Order) (*DispatchResult, error) {
	result, err := d.initiate(ctx, order, ReturnWeb)
	if err != nil {
		return nil, err
	}
	orderID := domain.UUIDString(order.ID)
	if result.PayURL == "" {
		// Accepted without a hosted page. Land on the confirmation screen
		// and let the user settle from their wallet.
		return &DispatchResult{
			Instruction: domain.RedirectInstruction{
				Kind:    domain.InstructionSuccess,
				Message: "Payment accepted. Complete it in your wallet app.",
				OrderID: orderID,
			},
			TransactionID: result.TransactionID,
		}, nil
	}
	return &DispatchResult{
		Instruction: domain.RedirectInstruction{
			Kind:    domain.InstructionNavigate,
			URL:     result.PayURL,
			OrderID: orderID,
		},
		TransactionID: result.TransactionID,
	}, nil
}

func (d *Dispatcher) dispatchWalletQR(ctx context.Context, order *domain.Order) (*DispatchResult, error) {
	result, err := d.initiate(ctx, order, ReturnQR)
	if err != nil {
		return nil, err
	}
	if result.QRCode == "" {
		return nil, d.declined(order, "gateway returned no QR payload")
	}
	return &DispatchResult{
		Instruction: domain.RedirectInstruction{
			Kind:    domain.InstructionShowQR,
			QRCode:  result.QRCode,
			Message: "Scan the code with your wallet app to pay.",
			OrderID: domain.UUIDString(order.ID),
		},
		TransactionID: result.TransactionID,
	}, nil
}

// dispatchWalletDeeplink opens the wallet app directly. When the gateway
// accepted but produced no link, the user is asked to open the app
// themselves.
func (d *Dispatcher) dispatchWalletDeeplink(ctx context.Context, order *domain.Order) (*DispatchResult, error) {
	result, err := d.initiate(ctx, order, ReturnDeeplink)
	if err != nil {
		return nil, err
	}
	orderID := domain.UUIDString(order.ID)
	if result.Deeplink == "" {
		return &DispatchResult{
			Instruction: domain.RedirectInstruction{
				Kind:    domain.InstructionSuccess,
				Message: "Payment accepted. Open your wallet app to finish paying.",
				OrderID: orderID,
			},
			TransactionID: result.TransactionID,
		}, nil
	}
	return &DispatchResult{
		Instruction: domain.RedirectInstruction{
			Kind:    domain.InstructionNavigate,
			URL:     result.Deeplink,
			OrderID: orderID,
		},
		TransactionID: result.TransactionID,
	}, nil
}

// initiate calls the gateway with the shared return URL. Declines and
// transport failures both map to the recoverable dispatch error.
func (d *Dispatcher) initiate(ctx context.Context, order *domain.Order, rt ReturnType) (*InitiateResult, error) {
	orderID := domain.UUIDString(order.ID)
	result, err := d.gateway.Initiate(ctx, InitiateParams{
		OrderID:     orderID,
		AmountCents: order.TotalPriceCents,
		Currency:    defaultCurrency,
		ReturnType:  rt,
		ReturnURL:   d.baseURL + domain.SuccessPath(orderID, "paid"),
	})
	if err != nil {
		d.logger.Error("wallet initiation failed",
			"order_id", orderID, "return_type", rt, "error", err)
		return nil, domain.WrapError(err, domain.EPAYMENT, "payment.Dispatch", domain.ErrDispatchFailed.Message)
	}
	if !result.Success {
		return nil, d.declined(order, result.Message)
	}
	return result, nil
}

func (d *Dispatcher) declined(order *domain.Order, detail string) error {
	orderID := domain.UUIDString(order.ID)
	d.logger.Warn("wallet initiation declined", "order_id", orderID, "detail", detail)
	return domain.WrapError(ErrDeclined, domain.EPAYMENT, "payment.Dispatch", domain.ErrDispatchFailed.Message)
}

// Orders do not carry a currency column; the store settles in VND.
const defaultCurrency = "VND"
