package storefront

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/tranvu/mercato/internal/address"
	"github.com/tranvu/mercato/internal/domain"
	"github.com/tranvu/mercato/internal/handler"
)

// AddressHandler serves the shipping address hierarchy that backs the
// cascading province, district and ward selects on the checkout form.
type AddressHandler struct {
	source address.Source
	logger *slog.Logger
}

func NewAddressHandler(source address.Source, logger *slog.Logger) *AddressHandler {
	return &AddressHandler{source: source, logger: logger}
}

type divisionView struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ListProvinces returns every top-level division.
func (h *AddressHandler) ListProvinces(w http.ResponseWriter, r *http.Request) {
	provinces, err := h.source.Provinces(r.Context())
	if err != nil {
		handler.ErrorResponse(w, r, domain.Internal(err, "address.provinces", "failed to list provinces"))
		return
	}

	views := make([]divisionView, 0, len(provinces))
	for _, p := range provinces {
		views = append(views, divisionView{ID: p.ID, Name: p.Name})
	}
	handler.RespondJSON(w, http.StatusOK, map[string]any{"provinces": views})
}

// ListDistricts returns the districts of one province.
func (h *AddressHandler) ListDistricts(w http.ResponseWriter, r *http.Request) {
	provinceID := r.PathValue("provinceID")
	if _, err := h.source.Province(r.Context(), provinceID); err != nil {
		handler.ErrorResponse(w, r, h.lookupError(err, "address.districts", "province", provinceID))
		return
	}

	districts, err := h.source.Districts(r.Context(), provinceID)
	if err != nil {
		handler.ErrorResponse(w, r, domain.Internal(err, "address.districts", "failed to list districts"))
		return
	}

	views := make([]divisionView, 0, len(districts))
	for _, d := range districts {
		views = append(views, divisionView{ID: d.ID, Name: d.Name})
	}
	handler.RespondJSON(w, http.StatusOK, map[string]any{"districts": views})
}

// ListWards returns the wards of one district.
func (h *AddressHandler) ListWards(w http.ResponseWriter, r *http.Request) {
	districtID := r.PathValue("districtID")
	if _, err := h.source.District(r.Context(), districtID); err != nil {
		handler.ErrorResponse(w, r, h.lookupError(err, "address.wards", "district", districtID))
		return
	}

	wards, err := h.source.Wards(r.Context(), districtID)
	if err != nil {
		handler.ErrorResponse(w, r, domain.Internal(err, "address.wards", "failed to list wards"))
		return
	}

	views := make([]divisionView, 0, len(wards))
	for _, wd := range wards {
		views = append(views, divisionView{ID: wd.ID, Name: wd.Name})
	}
	handler.RespondJSON(w, http.StatusOK, map[string]any{"wards": views})
}

func (h *AddressHandler) lookupError(err error, op, level, id string) error {
	if errors.Is(err, address.ErrNotFound) {
		return domain.NotFound(op, level, id)
	}
	return domain.Internal(err, op, "address lookup failed")
}
