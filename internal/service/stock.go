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

type stockService struct {
	repo      repository.Querier
	logger    *slog.Logger
	publisher events.Publisher
	metrics   *telemetry.BusinessMetrics
}

// NewStockService creates a new StockService instance
func NewStockService(repo repository.Querier, logger *slog.Logger, publisher events.Publisher, metrics *telemetry.BusinessMetrics) (domain.StockService, error) {
	if repo == nil {
		return nil, fmt.Errorf("repository is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}
	return &stockService{
		repo:      repo,
		logger:    logger,
		publisher: publisher,
		metrics:   metrics,
	}, nil
}

// Validate checks availability without mutating the ledger. An unknown SKU
// reads as unavailable rather than an error so cart validation can report
// every offending line in one pass.
func (s *stockService) Validate(ctx context.Context, sku domain.SKURef, quantity int32) (*domain.StockValidation, error) {
	if quantity <= 0 {
		return nil, domain.Invalid("stock.validate", "quantity must be greater than 0")
	}

	item, err := s.repo.GetStockBySKU(ctx, sku)
	if errors.Is(err, repository.ErrNotFound) {
		return &domain.StockValidation{
			SKU:     sku,
			Message: "Product is no longer available",
		}, nil
	}
	if err != nil {
		return nil, domain.Internal(err, "stock.validate", "failed to load stock")
	}

	v := &domain.StockValidation{
		SKU:               sku,
		Available:         item.AvailableStock >= quantity,
		AvailableQuantity: item.AvailableStock,
		LowStock:          item.LowStock(),
	}
	if !v.Available {
		v.Message = fmt.Sprintf("Only %d left in stock", item.AvailableStock)
		if s.metrics != nil {
			s.metrics.StockConflicts.WithLabelValues("validate").Inc()
		}
	}
	return v, nil
}

// Reserve moves quantity from available to reserved for every item in the
// batch. All-or-nothing: a shortfall on any line applies nothing.
func (s *stockService) Reserve(ctx context.Context, orderID string, items []domain.ReserveItem) error {
	if len(items) == 0 {
		return domain.Invalid("stock.reserve", "nothing to reserve")
	}
	for _, it := range items {
		if it.Quantity <= 0 {
			return domain.Invalid("stock.reserve", "quantity must be greater than 0")
		}
	}

	shortfalls, err := s.repo.ReserveStock(ctx, orderID, items)
	if err != nil {
		return domain.Internal(err, "stock.reserve", "failed to reserve stock")
	}
	if len(shortfalls) > 0 {
		if s.metrics != nil {
			s.metrics.StockConflicts.WithLabelValues("reserve").Inc()
		}
		sf := shortfalls[0]
		return domain.WrapError(&domain.InsufficientStockError{
			SKU:       sf.SKU,
			Requested: sf.Requested,
			Available: sf.Available,
		}, domain.ECONFLICT, "stock.reserve", "Insufficient stock for one or more items")
	}

	payload := events.StockReservedPayload{OrderID: orderID}
	for _, it := range items {
		payload.Items = append(payload.Items, events.ItemQty{
			ProductID:   it.SKU.ProductID,
			VariationID: it.SKU.VariationID,
			Qty:         it.Quantity,
		})
	}
	events.LogOnFailure(ctx, s.publisher, s.logger,
		events.SubjectStockReserved, events.EventStockReserved, orderID, payload)

	return nil
}

// Release reverses an order's reservation. Idempotent.
func (s *stockService) Release(ctx context.Context, orderID string) error {
	if err := s.repo.ReleaseStock(ctx, orderID); err != nil {
		if errors.Is(err, repository.ErrNegativeStock) {
			s.logger.Error("reserved counter below recorded reservation", "order_id", orderID)
			return domain.WrapError(err, domain.EINTERNAL, "stock.release", ErrLedgerCorruption.Message)
		}
		return domain.Internal(err, "stock.release", "failed to release stock")
	}

	events.LogOnFailure(ctx, s.publisher, s.logger,
		events.SubjectStockReleased, events.EventStockReleased, orderID,
		events.StockReleasedPayload{OrderID: orderID})
	return nil
}

// Commit consumes an order's reservation on fulfillment. Idempotent.
func (s *stockService) Commit(ctx context.Context, orderID string) error {
	if err := s.repo.CommitStock(ctx, orderID); err != nil {
		if errors.Is(err, repository.ErrNegativeStock) {
			s.logger.Error("reserved counter below recorded reservation", "order_id", orderID)
			return domain.WrapError(err, domain.EINTERNAL, "stock.commit", ErrLedgerCorruption.Message)
		}
		return domain.Internal(err, "stock.commit", "failed to commit stock")
	}
	return nil
}

// Adjust applies a manual correction to available stock.
func (s *stockService) Adjust(ctx context.Context, stockID string, delta int32, movement domain.MovementType, reason, reference, actorID string) (*domain.StockItem, error) {
	if delta == 0 {
		return nil, domain.Invalid("stock.adjust", "adjustment delta must be non-zero")
	}
	if movement == "" {
		movement = domain.MovementAdjustment
	}
	if !movement.Manual() {
		return nil, domain.Invalid("stock.adjust", "movement type must be ADJUSTMENT, DAMAGED or RETURNED")
	}

	item, err := s.repo.AdjustStock(ctx, repository.AdjustStockParams{
		StockItemID: stockID,
		Delta:       delta,
		Type:        movement,
		Reason:      reason,
		Reference:   reference,
		ActorID:     actorID,
	})
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrStockItemNotFound
	}
	if errors.Is(err, repository.ErrNegativeStock) {
		return nil, ErrInvalidAdjustment
	}
	if err != nil {
		return nil, domain.Internal(err, "stock.adjust", "failed to adjust stock")
	}

	if s.metrics != nil {
		s.metrics.StockAdjustments.WithLabelValues(string(movement)).Inc()
		if item.LowStock() {
			s.metrics.LowStockSignals.WithLabelValues("adjust").Inc()
		}
	}

	events.LogOnFailure(ctx, s.publisher, s.logger,
		events.SubjectStockAdjusted, events.EventStockAdjusted, stockID,
		events.StockAdjustedPayload{
			StockItemID: stockID,
			Delta:       delta,
			Type:        string(movement),
			Reason:      reason,
			ActorID:     actorID,
		})
	if item.LowStock() {
		events.LogOnFailure(ctx, s.publisher, s.logger,
			events.SubjectLowStock, events.EventLowStock, stockID,
			events.LowStockPayload{
				StockItemID: stockID,
				ProductID:   domain.UUIDString(item.ProductID),
				Available:   item.AvailableStock,
				MinLevel:    item.MinStockLevel,
			})
	}

	return &item, nil
}

func (s *stockService) GetStockItem(ctx context.Context, stockID string) (*domain.StockItem, error) {
	item, err := s.repo.GetStockItem(ctx, stockID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrStockItemNotFound
	}
	if err != nil {
		return nil, domain.Internal(err, "stock.get", "failed to load stock item")
	}
	return &item, nil
}

func (s *stockService) ListStockItems(ctx context.Context) ([]domain.StockItem, error) {
	items, err := s.repo.ListStockItems(ctx)
	if err != nil {
		return nil, domain.Internal(err, "stock.list", "failed to list stock items")
	}
	return items, nil
}

func (s *stockService) ListMovements(ctx context.Context, stockID string) ([]domain.StockMovement, error) {
	if _, err := s.repo.GetStockItem(ctx, stockID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrStockItemNotFound
		}
		return nil, domain.Internal(err, "stock.movements", "failed to load stock item")
	}
	movements, err := s.repo.ListStockMovements(ctx, stockID)
	if err != nil {
		return nil, domain.Internal(err, "stock.movements", "failed to list movements")
	}
	return movements, nil
}
