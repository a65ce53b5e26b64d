// Package worker runs background maintenance loops alongside the server.
package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/tranvu/mercato/internal/domain"
)

// ExpirerConfig configures the unpaid-order sweep.
type ExpirerConfig struct {
	// Interval is how often to sweep.
	Interval time.Duration

	// MaxAge is how long an order may sit in PENDING_PAYMENT before it is
	// cancelled and its stock reservation returned to the pool.
	MaxAge time.Duration
}

// OrderExpirer cancels orders whose payment never arrived. Cancellation
// goes through the order service, so the stock release and open-payment
// cleanup side effects ride along.
type OrderExpirer struct {
	orders domain.OrderService
	config ExpirerConfig
	logger *slog.Logger
}

// NewOrderExpirer creates an expirer. Zero config fields get defaults:
// a five minute sweep and a 24 hour payment window.
func NewOrderExpirer(orders domain.OrderService, config ExpirerConfig, logger *slog.Logger) *OrderExpirer {
	if config.Interval == 0 {
		config.Interval = 5 * time.Minute
	}
	if config.MaxAge == 0 {
		config.MaxAge = 24 * time.Hour
	}
	return &OrderExpirer{orders: orders, config: config, logger: logger}
}

// Start sweeps until the context is cancelled.
func (e *OrderExpirer) Start(ctx context.Context) {
	e.logger.Info("order expirer starting",
		"interval", e.config.Interval, "max_age", e.config.MaxAge)

	ticker := time.NewTicker(e.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			e.logger.Info("order expirer stopping")
			return
		case <-ticker.C:
			if n, err := e.Sweep(ctx); err != nil {
				e.logger.Error("order expiry sweep failed", "error", err)
			} else if n > 0 {
				e.logger.Info("expired unpaid orders", "count", n)
			}
		}
	}
}

// Sweep cancels every PENDING_PAYMENT order older than MaxAge and reports
// how many were cancelled. A single order failing to cancel does not stop
// the sweep; someone else may have just paid or cancelled it.
func (e *OrderExpirer) Sweep(ctx context.Context) (int, error) {
	pending := domain.OrderPendingPayment
	orders, err := e.orders.ListOrders(ctx, &pending)
	if err != nil {
		return 0, err
	}

	cutoff := time.Now().Add(-e.config.MaxAge)
	expired := 0
	for i := range orders {
		order := &orders[i]
		if !order.CreatedAt.Valid || order.CreatedAt.Time.After(cutoff) {
			continue
		}
		orderID := domain.UUIDString(order.ID)
		if _, err := e.orders.UpdateStatus(ctx, orderID, domain.OrderCancelled); err != nil {
			e.logger.Warn("failed to expire order", "order_id", orderID, "error", err)
			continue
		}
		expired++
	}
	return expired, nil
}
