package address

import (
	"context"
)

// MockSource is an in-memory Source for testing.
type MockSource struct {
	ProvinceRows []Province
	DistrictRows []District
	WardRows     []Ward

	// ProvincesFunc and friends override the fixture-backed behavior.
	ProvincesFunc func(ctx context.Context) ([]Province, error)
	DistrictsFunc func(ctx context.Context, provinceID string) ([]District, error)
	WardsFunc     func(ctx context.Context, districtID string) ([]Ward, error)
}

// NewMockSource creates a mock source with a small fixed hierarchy.
func NewMockSource() *MockSource {
	return &MockSource{
		ProvinceRows: []Province{
			{ID: "p1", Name: "Ha Noi"},
			{ID: "p2", Name: "Ho Chi Minh City"},
		},
		DistrictRows: []District{
			{ID: "d1", ProvinceID: "p1", Name: "Ba Dinh"},
			{ID: "d2", ProvinceID: "p1", Name: "Hoan Kiem"},
			{ID: "d3", ProvinceID: "p2", Name: "District 1"},
		},
		WardRows: []Ward{
			{ID: "w1", DistrictID: "d1", Name: "Phuc Xa"},
			{ID: "w2", DistrictID: "d2", Name: "Hang Bac"},
			{ID: "w3", DistrictID: "d3", Name: "Ben Nghe"},
		},
	}
}

func (m *MockSource) Provinces(ctx context.Context) ([]Province, error) {
	if m.ProvincesFunc != nil {
		return m.ProvincesFunc(ctx)
	}
	return m.ProvinceRows, nil
}

func (m *MockSource) Districts(ctx context.Context, provinceID string) ([]District, error) {
	if m.DistrictsFunc != nil {
		return m.DistrictsFunc(ctx, provinceID)
	}
	var out []District
	for _, d := range m.DistrictRows {
		if d.ProvinceID == provinceID {
			out = append(out, d)
		}
	}
	return out, nil
}

func (m *MockSource) Wards(ctx context.Context, districtID string) ([]Ward, error) {
	if m.WardsFunc != nil {
		return m.WardsFunc(ctx, districtID)
	}
	var out []Ward
	for _, w := range m.WardRows {
		if w.DistrictID == districtID {
			out = append(out, w)
		}
	}
	return out, nil
}

func (m *MockSource) Province(ctx context.Context, id string) (*Province, error) {
	for _, p := range m.ProvinceRows {
		if p.ID == id {
			p := p
			return &p, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MockSource) District(ctx context.Context, id string) (*District, error) {
	for _, d := range m.DistrictRows {
		if d.ID == id {
			d := d
			return &d, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MockSource) Ward(ctx context.Context, id string) (*Ward, error) {
	for _, w := range m.WardRows {
		if w.ID == id {
			w := w
			return &w, nil
		}
	}
	return nil, ErrNotFound
}

var _ Source = (*MockSource)(nil)
