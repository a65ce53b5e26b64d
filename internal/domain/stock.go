package domain

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgtype"
)

// SKURef identifies a stockable unit: a product plus an optional variation.
type SKURef struct {
	ProductID   string
	VariationID string // empty when the product has no variations
}

func (r SKURef) String() string {
	if r.VariationID == "" {
		return r.ProductID
	}
	return r.ProductID + "/" + r.VariationID
}

// MovementType classifies a stock movement in the append-only audit trail.
type MovementType string

const (
	MovementIn         MovementType = "IN"
	MovementOut        MovementType = "OUT"
	MovementReserved   MovementType = "RESERVED"
	MovementReleased   MovementType = "RELEASED"
	MovementAdjustment MovementType = "ADJUSTMENT"
	MovementDamaged    MovementType = "DAMAGED"
	MovementReturned   MovementType = "RETURNED"
)

// Manual reports whether t is a kind an operator may record directly.
// Order-flow kinds are written only by the ledger itself.
func (t MovementType) Manual() bool {
	switch t {
	case MovementAdjustment, MovementDamaged, MovementReturned:
		return true
	}
	return false
}

// StockItem tracks sellable vs. committed quantity for one SKU.
// Invariant: availableStock >= 0 and reservedStock >= 0 at all times.
type StockItem struct {
	ID             pgtype.UUID
	ProductID      pgtype.UUID
	VariationID    pgtype.UUID // invalid UUID when absent
	AvailableStock int32
	ReservedStock  int32
	MinStockLevel  int32
	UpdatedAt      pgtype.Timestamptz
}

// LowStock reports whether available stock has fallen to the signaling
// threshold.
func (s *StockItem) LowStock() bool {
	return s.AvailableStock <= s.MinStockLevel
}

// StockMovement is one immutable audit record. Append-only; never mutated
// or deleted.
type StockMovement struct {
	ID          pgtype.UUID
	StockItemID pgtype.UUID
	Type        MovementType
	Quantity    int32
	Reason      string
	Reference   string // e.g. order id
	ActorID     string
	CreatedAt   pgtype.Timestamptz
}

// InsufficientStockError is the recoverable, user-facing reservation
// failure. It names the offending SKU and the shortfall so checkout can
// surface which item failed and how many are left.
type InsufficientStockError struct {
	SKU       SKURef
	Requested int32
	Available int32
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s: requested %d, available %d",
		e.SKU, e.Requested, e.Available)
}

// Stock-related domain errors.
var (
	ErrStockItemNotFound = &Error{Code: ENOTFOUND, Message: "Stock item not found"}
	ErrInvalidAdjustment = &Error{Code: EINVALID, Message: "Adjustment would drive available stock negative"}
	ErrLedgerCorruption  = &Error{Code: EINTERNAL, Message: "Stock ledger invariant violated"}
)

// StockValidation is the result of a read-only availability check.
type StockValidation struct {
	SKU               SKURef
	Available         bool
	AvailableQuantity int32
	LowStock          bool
	Message           string
}

// ReserveItem is one line of a reservation batch.
type ReserveItem struct {
	SKU      SKURef
	Quantity int32
}

// StockService is the stock reservation ledger.
type StockService interface {
	// Validate is a read-only check against available stock. Never mutates.
	Validate(ctx context.Context, sku SKURef, quantity int32) (*StockValidation, error)

	// Reserve atomically moves quantity from available to reserved for every
	// item in the batch, recording one RESERVED movement per item with the
	// order id as reference. All-or-nothing: if any item is short, nothing
	// is applied and the error names the first shortfall.
	Reserve(ctx context.Context, orderID string, items []ReserveItem) error

	// Release reverses a prior Reserve for the order, recording RELEASED
	// movements. Idempotent: releasing an order with no active reservation
	// is a no-op.
	Release(ctx context.Context, orderID string) error

	// Commit reduces reserved stock on fulfillment without returning it to
	// available (the goods have left), recording OUT movements.
	Commit(ctx context.Context, orderID string) error

	// Adjust applies a manual correction outside the order flow, recording
	// a movement of the given manual kind (ADJUSTMENT when empty). Fails
	// if it would drive available stock negative.
	Adjust(ctx context.Context, stockID string, delta int32, movement MovementType, reason, reference, actorID string) (*StockItem, error)

	// GetStockItem fetches one ledger row.
	GetStockItem(ctx context.Context, stockID string) (*StockItem, error)

	// ListStockItems lists ledger rows for the admin console.
	ListStockItems(ctx context.Context) ([]StockItem, error)

	// ListMovements lists the audit trail for one stock item, newest first.
	ListMovements(ctx context.Context, stockID string) ([]StockMovement, error)
}
