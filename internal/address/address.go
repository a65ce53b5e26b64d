package address

import "context"

// Source defines the interface for the shipping address hierarchy.
// Implementations can back onto the bundled reference tables or an
// external administrative-division API.
type Source interface {
	// Provinces lists every top-level division.
	Provinces(ctx context.Context) ([]Province, error)

	// Districts lists the districts of one province.
	Districts(ctx context.Context, provinceID string) ([]District, error)

	// Wards lists the wards of one district.
	Wards(ctx context.Context, districtID string) ([]Ward, error)

	// Province fetches one province by id.
	Province(ctx context.Context, id string) (*Province, error)

	// District fetches one district by id.
	District(ctx context.Context, id string) (*District, error)

	// Ward fetches one ward by id.
	Ward(ctx context.Context, id string) (*Ward, error)
}

// Province is a top-level administrative division.
type Province struct {
	ID   string
	Name string
}

// District is a second-level division belonging to a province.
type District struct {
	ID         string
	ProvinceID string
	Name       string
}

// Ward is a third-level division belonging to a district.
type Ward struct {
	ID         string
	DistrictID string
	Name       string
}

// ErrNotFound is returned when an id does not exist at its level.
var ErrNotFound = errNotFound{}

type errNotFound struct{}

func (errNotFound) Error() string { return "address: not found" }
