package admin

import (
	"log/slog"
	"net/http"

	"github.com/tranvu/mercato/internal/domain"
	"github.com/tranvu/mercato/internal/handler"
)

// StockHandler serves the back-office stock ledger console.
type StockHandler struct {
	stock  domain.StockService
	logger *slog.Logger
}

func NewStockHandler(stock domain.StockService, logger *slog.Logger) *StockHandler {
	return &StockHandler{stock: stock, logger: logger}
}

type stockRow struct {
	ID             string `json:"id"`
	ProductID      string `json:"productId"`
	VariationID    string `json:"variationId,omitempty"`
	AvailableStock int32  `json:"availableStock"`
	ReservedStock  int32  `json:"reservedStock"`
	MinStockLevel  int32  `json:"minStockLevel"`
	LowStock       bool   `json:"lowStock"`
	UpdatedAt      string `json:"updatedAt,omitempty"`
}

func newStockRow(item *domain.StockItem) stockRow {
	return stockRow{
		ID:             domain.UUIDString(item.ID),
		ProductID:      domain.UUIDString(item.ProductID),
		VariationID:    domain.UUIDString(item.VariationID),
		AvailableStock: item.AvailableStock,
		ReservedStock:  item.ReservedStock,
		MinStockLevel:  item.MinStockLevel,
		LowStock:       item.LowStock(),
		UpdatedAt:      timestampString(item.UpdatedAt),
	}
}

// ListStock lists every ledger row with its low-stock flag.
func (h *StockHandler) ListStock(w http.ResponseWriter, r *http.Request) {
	items, err := h.stock.ListStockItems(r.Context())
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	rows := make([]stockRow, 0, len(items))
	for i := range items {
		rows = append(rows, newStockRow(&items[i]))
	}
	handler.RespondJSON(w, http.StatusOK, map[string]any{"stockItems": rows})
}

// GetStock fetches one ledger row.
func (h *StockHandler) GetStock(w http.ResponseWriter, r *http.Request) {
	item, err := h.stock.GetStockItem(r.Context(), r.PathValue("stockID"))
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	handler.RespondJSON(w, http.StatusOK, newStockRow(item))
}

type adjustStockRequest struct {
	Delta        int32  `json:"delta"`
	MovementType string `json:"movementType"` // ADJUSTMENT (default), DAMAGED or RETURNED
	Reason       string `json:"reason"`
	Reference    string `json:"reference"`
}

// AdjustStock applies a manual correction to available stock, recording a
// movement attributed to the signed-in admin.
func (h *StockHandler) AdjustStock(w http.ResponseWriter, r *http.Request) {
	user, err := domain.RequireUser(r.Context())
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	var req adjustStockRequest
	if err := handler.DecodeJSON(r, &req); err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	if req.Delta == 0 {
		handler.ErrorResponse(w, r, domain.Invalid("admin.stock", "delta must be non-zero"))
		return
	}
	if req.Reason == "" {
		handler.ErrorResponse(w, r, domain.Invalid("admin.stock", "reason is required"))
		return
	}

	item, err := h.stock.Adjust(r.Context(), r.PathValue("stockID"), req.Delta,
		domain.MovementType(req.MovementType), req.Reason, req.Reference, user.ID.String())
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	handler.RespondJSON(w, http.StatusOK, newStockRow(item))
}

type movementRow struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	Quantity  int32  `json:"quantity"`
	Reason    string `json:"reason,omitempty"`
	Reference string `json:"reference,omitempty"`
	ActorID   string `json:"actorId,omitempty"`
	CreatedAt string `json:"createdAt,omitempty"`
}

// ListMovements lists the audit trail for one stock item, newest first.
func (h *StockHandler) ListMovements(w http.ResponseWriter, r *http.Request) {
	movements, err := h.stock.ListMovements(r.Context(), r.PathValue("stockID"))
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	rows := make([]movementRow, 0, len(movements))
	for _, m := range movements {
		rows = append(rows, movementRow{
			ID:        domain.UUIDString(m.ID),
			Type:      string(m.Type),
			Quantity:  m.Quantity,
			Reason:    m.Reason,
			Reference: m.Reference,
			ActorID:   m.ActorID,
			CreatedAt: timestampString(m.CreatedAt),
		})
	}
	handler.RespondJSON(w, http.StatusOK, map[string]any{"movements": rows})
}
