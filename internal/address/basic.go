package address

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresSource serves the address hierarchy from the bundled reference
// tables.
type PostgresSource struct {
	pool *pgxpool.Pool
}

// NewPostgresSource creates an address source backed by the database.
func NewPostgresSource(pool *pgxpool.Pool) Source {
	return &PostgresSource{pool: pool}
}

func (s *PostgresSource) Provinces(ctx context.Context) ([]Province, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, name FROM provinces ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list provinces: %w", err)
	}
	defer rows.Close()

	var out []Province
	for rows.Next() {
		var p Province
		if err := rows.Scan(&p.ID, &p.Name); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *PostgresSource) Districts(ctx context.Context, provinceID string) ([]District, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, province_id, name FROM districts WHERE province_id = $1 ORDER BY name`, provinceID)
	if err != nil {
		return nil, fmt.Errorf("list districts: %w", err)
	}
	defer rows.Close()

	var out []District
	for rows.Next() {
		var d District
		if err := rows.Scan(&d.ID, &d.ProvinceID, &d.Name); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *PostgresSource) Wards(ctx context.Context, districtID string) ([]Ward, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, district_id, name FROM wards WHERE district_id = $1 ORDER BY name`, districtID)
	if err != nil {
		return nil, fmt.Errorf("list wards: %w", err)
	}
	defer rows.Close()

	var out []Ward
	for rows.Next() {
		var w Ward
		if err := rows.Scan(&w.ID, &w.DistrictID, &w.Name); err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

func (s *PostgresSource) Province(ctx context.Context, id string) (*Province, error) {
	var p Province
	err := s.pool.QueryRow(ctx, `SELECT id, name FROM provinces WHERE id = $1`, id).
		Scan(&p.ID, &p.Name)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *PostgresSource) District(ctx context.Context, id string) (*District, error) {
	var d District
	err := s.pool.QueryRow(ctx, `SELECT id, province_id, name FROM districts WHERE id = $1`, id).
		Scan(&d.ID, &d.ProvinceID, &d.Name)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (s *PostgresSource) Ward(ctx context.Context, id string) (*Ward, error) {
	var w Ward
	err := s.pool.QueryRow(ctx, `SELECT id, district_id, name FROM wards WHERE id = $1`, id).
		Scan(&w.ID, &w.DistrictID, &w.Name)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &w, nil
}
