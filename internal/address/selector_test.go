package address

import (
	"context"
	"errors"
	"testing"
)

// ============================================================================
// Source lookups
// ============================================================================

func TestMockSourceHierarchy(t *testing.T) {
	src := NewMockSource()
	ctx := context.Background()

	provinces, err := src.Provinces(ctx)
	if err != nil {
		t.Fatalf("Provinces: %v", err)
	}
	if len(provinces) != 2 {
		t.Fatalf("expected 2 provinces, got %d", len(provinces))
	}

	districts, err := src.Districts(ctx, "p1")
	if err != nil {
		t.Fatalf("Districts: %v", err)
	}
	if len(districts) != 2 {
		t.Errorf("expected 2 districts under p1, got %d", len(districts))
	}
	for _, d := range districts {
		if d.ProvinceID != "p1" {
			t.Errorf("district %s belongs to %s, not p1", d.ID, d.ProvinceID)
		}
	}

	wards, err := src.Wards(ctx, "d3")
	if err != nil {
		t.Fatalf("Wards: %v", err)
	}
	if len(wards) != 1 || wards[0].Name != "Ben Nghe" {
		t.Errorf("unexpected wards under d3: %+v", wards)
	}

	if _, err := src.Province(ctx, "p9"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for unknown province, got %v", err)
	}
	if _, err := src.Ward(ctx, "w9"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for unknown ward, got %v", err)
	}
}

// ============================================================================
// Cascading selection
// ============================================================================

func TestSelectorCascade(t *testing.T) {
	s := NewSelector(NewMockSource())
	ctx := context.Background()

	districts, err := s.SelectProvince(ctx, "p1")
	if err != nil {
		t.Fatalf("SelectProvince: %v", err)
	}
	if len(districts) != 2 {
		t.Fatalf("expected 2 district options, got %d", len(districts))
	}
	if s.Complete() {
		t.Error("selection cannot be complete with only a province")
	}

	wards, err := s.SelectDistrict(ctx, "d1")
	if err != nil {
		t.Fatalf("SelectDistrict: %v", err)
	}
	if len(wards) != 1 || wards[0].ID != "w1" {
		t.Errorf("unexpected ward options: %+v", wards)
	}

	s.SelectWard("w1")
	if !s.Complete() {
		t.Error("selection should be complete")
	}
	p, d, w := s.Selection()
	if p != "p1" || d != "d1" || w != "w1" {
		t.Errorf("selection = (%s, %s, %s)", p, d, w)
	}
}

func TestSelectorProvinceChangeClearsDependents(t *testing.T) {
	s := NewSelector(NewMockSource())
	ctx := context.Background()

	if _, err := s.SelectProvince(ctx, "p1"); err != nil {
		t.Fatalf("SelectProvince: %v", err)
	}
	if _, err := s.SelectDistrict(ctx, "d1"); err != nil {
		t.Fatalf("SelectDistrict: %v", err)
	}
	s.SelectWard("w1")

	if _, err := s.SelectProvince(ctx, "p2"); err != nil {
		t.Fatalf("SelectProvince p2: %v", err)
	}
	_, d, w := s.Selection()
	if d != "" || w != "" {
		t.Errorf("district/ward survived a province change: (%s, %s)", d, w)
	}
	if len(s.Wards()) != 0 {
		t.Errorf("stale ward options survived: %+v", s.Wards())
	}
	if got := s.Districts(); len(got) != 1 || got[0].ID != "d3" {
		t.Errorf("district options = %+v, want d3 only", got)
	}
}

// A slow district load for the old province must not overwrite the options
// of a newer selection.
func TestSelectorStaleLoadDiscarded(t *testing.T) {
	src := NewMockSource()
	s := NewSelector(src)
	ctx := context.Background()

	firstEntered := make(chan struct{})
	firstProceed := make(chan struct{})
	src.DistrictsFunc = func(ctx context.Context, provinceID string) ([]District, error) {
		if provinceID == "p1" {
			close(firstEntered)
			<-firstProceed
		}
		out := []District{}
		for _, d := range NewMockSource().DistrictRows {
			if d.ProvinceID == provinceID {
				out = append(out, d)
			}
		}
		return out, nil
	}

	firstDone := make(chan []District, 1)
	go func() {
		got, _ := s.SelectProvince(ctx, "p1")
		firstDone <- got
	}()
	<-firstEntered

	// The user changes their mind while the first load is in flight.
	fresh, err := s.SelectProvince(ctx, "p2")
	if err != nil {
		t.Fatalf("SelectProvince p2: %v", err)
	}
	if len(fresh) != 1 || fresh[0].ID != "d3" {
		t.Fatalf("unexpected p2 districts: %+v", fresh)
	}

	close(firstProceed)
	if got := <-firstDone; got != nil {
		t.Errorf("superseded load returned options: %+v", got)
	}

	if got := s.Districts(); len(got) != 1 || got[0].ID != "d3" {
		t.Errorf("stale load overwrote options: %+v", got)
	}
}
