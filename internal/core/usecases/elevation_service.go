package usecases

import (
	"context"
	"encoding/json"
	"fmt"
	"math"

	"github.com/samirrijal/darkhorizon/internal/core/domain"
	"github.com/samirrijal/darkhorizon/internal/core/ports"
	"github.com/samirrijal/darkhorizon/internal/pkg/metrics"
)

// ElevationService resolves terrain height in whole meters.
type ElevationService struct {
	provider ports.ElevationProvider
	cache    ports.CacheService
	ttl      int
}

// NewElevationService creates a new ElevationService. cache may be nil.
func NewElevationService(provider ports.ElevationProvider, cache ports.CacheService, ttlSeconds int) *ElevationService {
	return &ElevationService{provider: provider, cache: cache, ttl: ttlSeconds}
}

// Lookup returns the rounded elevation at (lat, lon), or nil when the provider
// has no value for the point.
func (s *ElevationService) Lookup(ctx context.Context, lat, lon float64) (*int, error) {
	if !(domain.GeoPoint{Lat: lat, Lon: lon}).Valid() {
		return nil, domain.ErrInvalidCoordinate
	}

	// Same 4-decimal grid the provider is queried with
	cacheKey := fmt.Sprintf("elevation:%.4f:%.4f", lat, lon)
	if s.cache != nil {
		if data, err := s.cache.Get(ctx, cacheKey); err == nil {
			var meters *int
			if err := json.Unmarshal(data, &meters); err == nil {
				metrics.CacheHits.WithLabelValues("elevation").Inc()
				return meters, nil
			}
		}
		metrics.CacheMisses.WithLabelValues("elevation").Inc()
	}

	v, err := s.provider.Elevation(ctx, lat, lon)
	if err != nil {
		return nil, fmt.Errorf("elevation lookup: %w", err)
	}

	var meters *int
	if v != nil && !math.IsNaN(*v) && !math.IsInf(*v, 0) {
		m := int(math.Round(*v))
		meters = &m
	}

	if s.cache != nil {
		if data, err := json.Marshal(meters); err == nil {
			_ = s.cache.Set(ctx, cacheKey, data, s.ttl)
		}
	}

	return meters, nil
}
