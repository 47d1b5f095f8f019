package usecases

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/samirrijal/darkhorizon/internal/core/domain"
	"github.com/samirrijal/darkhorizon/internal/core/ports"
	"github.com/samirrijal/darkhorizon/internal/pkg/geospatial"
)

// SpotService saves observing spots enriched with sky class and elevation.
type SpotService struct {
	spots     ports.SpotRepository
	sampler   *SampleService
	elevation *ElevationService
	events    ports.EventPublisher
}

// NewSpotService creates a new SpotService. elevation and events may be nil.
func NewSpotService(spots ports.SpotRepository, sampler *SampleService, elevation *ElevationService, events ports.EventPublisher) *SpotService {
	return &SpotService{spots: spots, sampler: sampler, elevation: elevation, events: events}
}

// Create validates, enriches and stores a spot, then announces it.
func (s *SpotService) Create(ctx context.Context, name string, lat, lon float64) (*domain.Spot, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", domain.ErrInvalidInput)
	}
	if len(name) > 100 {
		return nil, fmt.Errorf("%w: name too long (max 100 characters)", domain.ErrInvalidInput)
	}
	loc := domain.GeoPoint{Lat: lat, Lon: lon}
	if !loc.Valid() {
		return nil, domain.ErrInvalidCoordinate
	}

	spot := &domain.Spot{Name: name, Location: loc}

	if s.sampler != nil {
		entry, err := s.sampler.Classify(ctx, lat, lon)
		if err != nil {
			return nil, err
		}
		if entry != nil {
			id := entry.ClassID
			spot.ClassID = &id
			spot.ClassLabel = entry.Label
		}
	}

	if s.elevation != nil {
		meters, err := s.elevation.Lookup(ctx, lat, lon)
		if err != nil {
			slog.Warn("spot elevation unavailable", "name", name, "error", err)
		} else {
			spot.Elevation = meters
		}
	}

	if err := s.spots.Create(ctx, spot); err != nil {
		return nil, fmt.Errorf("save spot: %w", err)
	}

	if s.events != nil {
		if err := s.events.PublishSpotCreated(ctx, spot); err != nil {
			slog.Warn("publish spot.created failed", "spot_id", spot.ID, "error", err)
		}
	}

	return spot, nil
}

// GetByID returns a single spot.
func (s *SpotService) GetByID(ctx context.Context, id string) (*domain.Spot, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: id is required", domain.ErrInvalidInput)
	}
	return s.spots.GetByID(ctx, id)
}

// FindNearby returns spots within radiusMeters, closest first.
func (s *SpotService) FindNearby(ctx context.Context, lat, lon, radiusMeters float64, limit int) ([]domain.Spot, error) {
	center := domain.GeoPoint{Lat: lat, Lon: lon}
	if !center.Valid() {
		return nil, domain.ErrInvalidCoordinate
	}
	if radiusMeters <= 0 || radiusMeters > 200_000 {
		return nil, fmt.Errorf("%w: radius must be between 1 and 200000 meters", domain.ErrInvalidInput)
	}
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	spots, err := s.spots.FindNearby(ctx, lat, lon, radiusMeters, limit)
	if err != nil {
		return nil, fmt.Errorf("find nearby spots: %w", err)
	}

	for i := range spots {
		if spots[i].Distance == nil {
			d := geospatial.Distance(center, spots[i].Location)
			spots[i].Distance = &d
		}
	}
	sort.SliceStable(spots, func(i, j int) bool {
		return *spots[i].Distance < *spots[j].Distance
	})

	return spots, nil
}
