package service

import (
	"github.com/tranvu/mercato/internal/domain"
)

// Cart errors - use domain.ENOTFOUND / domain.EINVALID
var (
	ErrCartNotFound     = domain.ErrCartNotFound
	ErrCartItemNotFound = domain.ErrCartItemNotFound
	ErrInvalidQuantity  = domain.ErrInvalidQuantity
)

// Order-related errors
var (
	ErrOrderNotFound  = domain.ErrOrderNotFound
	ErrEmptyCart      = domain.ErrEmptyCart
	ErrOrderNotOwned  = domain.ErrOrderNotOwned
	ErrOrderTerminal  = domain.ErrOrderTerminal
	ErrSubmitInFlight = domain.ErrSubmitInFlight
)

// Payment-related errors
var (
	ErrPaymentNotFound      = domain.ErrPaymentNotFound
	ErrPaymentOpenExists    = domain.ErrPaymentOpenExists
	ErrPaymentNotRefundable = domain.ErrPaymentNotRefundable
	ErrRefundExceedsAmount  = domain.ErrRefundExceedsAmount
	ErrDispatchFailed       = domain.ErrDispatchFailed
)

// Stock ledger errors
var (
	ErrStockItemNotFound = domain.ErrStockItemNotFound
	ErrInvalidAdjustment = domain.ErrInvalidAdjustment
	ErrLedgerCorruption  = domain.ErrLedgerCorruption
)
