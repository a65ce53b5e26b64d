package address

import (
	"context"
	"sync"
)

// Selector holds the cascading province/district/ward selection state for
// one checkout session. Each level change bumps a generation counter;
// option loads started under an older generation are discarded when they
// land, so a slow Districts fetch can never overwrite the options of a
// newer selection.
type Selector struct {
	source Source

	mu         sync.Mutex
	generation uint64

	provinceID string
	districtID string
	wardID     string

	districts []District
	wards     []Ward
}

// NewSelector creates a selector over the given source.
func NewSelector(source Source) *Selector {
	return &Selector{source: source}
}

// SelectProvince sets the province, clears the dependent district and ward
// selections, and loads the province's districts.
func (s *Selector) SelectProvince(ctx context.Context, provinceID string) ([]District, error) {
	s.mu.Lock()
	s.provinceID = provinceID
	s.districtID = ""
	s.wardID = ""
	s.districts = nil
	s.wards = nil
	s.generation++
	gen := s.generation
	s.mu.Unlock()

	districts, err := s.source.Districts(ctx, provinceID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generation != gen {
		// A newer selection superseded this load.
		return nil, nil
	}
	s.districts = districts
	return districts, nil
}

// SelectDistrict sets the district, clears the ward selection, and loads
// the district's wards.
func (s *Selector) SelectDistrict(ctx context.Context, districtID string) ([]Ward, error) {
	s.mu.Lock()
	s.districtID = districtID
	s.wardID = ""
	s.wards = nil
	s.generation++
	gen := s.generation
	s.mu.Unlock()

	wards, err := s.source.Wards(ctx, districtID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generation != gen {
		return nil, nil
	}
	s.wards = wards
	return wards, nil
}

// SelectWard sets the leaf selection.
func (s *Selector) SelectWard(wardID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.wardID = wardID
}

// Selection returns the current (province, district, ward) ids.
func (s *Selector) Selection() (provinceID, districtID, wardID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.provinceID, s.districtID, s.wardID
}

// Complete reports whether all three levels are selected.
func (s *Selector) Complete() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.provinceID != "" && s.districtID != "" && s.wardID != ""
}

// Districts returns the currently loaded district options.
func (s *Selector) Districts() []District {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]District, len(s.districts))
	copy(out, s.districts)
	return out
}

// Wards returns the currently loaded ward options.
func (s *Selector) Wards() []Ward {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Ward, len(s.wards))
	copy(out, s.wards)
	return out
}
