package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/samirrijal/darkhorizon/internal/core/domain"
)

// SpotRepo implements ports.SpotRepository with pgx and PostGIS.
type SpotRepo struct {
	db *DB
}

// NewSpotRepo creates a new SpotRepo.
func NewSpotRepo(db *DB) *SpotRepo {
	return &SpotRepo{db: db}
}

// Create inserts a spot and fills in its generated ID and timestamp.
func (r *SpotRepo) Create(ctx context.Context, s *domain.Spot) error {
	err := r.db.Pool.QueryRow(ctx, `
		INSERT INTO spots (name, location, class_id, class_label, elevation)
		VALUES ($1, ST_SetSRID(ST_MakePoint($2, $3), 4326)::geography, $4, NULLIF($5, ''), $6)
		RETURNING id, created_at
	`, s.Name, s.Location.Lon, s.Location.Lat, s.ClassID, s.ClassLabel, s.Elevation).
		Scan(&s.ID, &s.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert spot: %w", err)
	}
	return nil
}

// GetByID returns a spot by UUID.
func (r *SpotRepo) GetByID(ctx context.Context, id string) (*domain.Spot, error) {
	var s domain.Spot
	err := r.db.Pool.QueryRow(ctx, `
		SELECT id, name,
		       ST_Y(location::geometry) AS lat,
		       ST_X(location::geometry) AS lon,
		       class_id, COALESCE(class_label, ''), elevation, created_at
		FROM spots WHERE id = $1
	`, id).Scan(
		&s.ID, &s.Name, &s.Location.Lat, &s.Location.Lon,
		&s.ClassID, &s.ClassLabel, &s.Elevation, &s.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// FindNearby returns spots within radiusMeters, closest first.
func (r *SpotRepo) FindNearby(ctx context.Context, lat, lon, radiusMeters float64, limit int) ([]domain.Spot, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT id, name,
		       ST_Y(location::geometry) AS lat,
		       ST_X(location::geometry) AS lon,
		       class_id, COALESCE(class_label, ''), elevation, created_at,
		       ST_Distance(location, ST_SetSRID(ST_MakePoint($1, $2), 4326)::geography) AS dist
		FROM spots
		WHERE ST_DWithin(location, ST_SetSRID(ST_MakePoint($1, $2), 4326)::geography, $3)
		ORDER BY dist
		LIMIT $4
	`, lon, lat, radiusMeters, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var spots []domain.Spot
	for rows.Next() {
		var s domain.Spot
		var dist float64
		if err := rows.Scan(
			&s.ID, &s.Name, &s.Location.Lat, &s.Location.Lon,
			&s.ClassID, &s.ClassLabel, &s.Elevation, &s.CreatedAt, &dist,
		); err != nil {
			return nil, err
		}
		s.Distance = &dist
		spots = append(spots, s)
	}
	return spots, rows.Err()
}
