package usecases

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/samirrijal/darkhorizon/internal/core/domain"
	"github.com/samirrijal/darkhorizon/internal/core/ports"
	"github.com/samirrijal/darkhorizon/internal/pkg/metrics"
)

// MinSearchLength is the shortest query sent to the geocoder, in characters.
const MinSearchLength = 2

const maxSearchLength = 200

// SearchService resolves place names through the geocoder.
type SearchService struct {
	geocoder ports.Geocoder
	cache    ports.CacheService
	ttl      int
	limit    int
}

// NewSearchService creates a new SearchService. cache may be nil.
func NewSearchService(geocoder ports.Geocoder, cache ports.CacheService, ttlSeconds, defaultLimit int) *SearchService {
	if defaultLimit <= 0 {
		defaultLimit = 5
	}
	return &SearchService{geocoder: geocoder, cache: cache, ttl: ttlSeconds, limit: defaultLimit}
}

// Search returns up to limit places for query. Queries shorter than
// MinSearchLength yield an empty list without contacting the geocoder.
func (s *SearchService) Search(ctx context.Context, query string, limit int) ([]domain.Place, error) {
	query = strings.TrimSpace(query)
	if utf8.RuneCountInString(query) < MinSearchLength {
		return []domain.Place{}, nil
	}
	if len(query) > maxSearchLength {
		return nil, fmt.Errorf("%w: query too long (max %d characters)", domain.ErrInvalidInput, maxSearchLength)
	}
	if limit <= 0 || limit > 20 {
		limit = s.limit
	}

	cacheKey := fmt.Sprintf("search:%s:%d", strings.ToLower(query), limit)
	if s.cache != nil {
		if data, err := s.cache.Get(ctx, cacheKey); err == nil {
			var places []domain.Place
			if err := json.Unmarshal(data, &places); err == nil {
				metrics.CacheHits.WithLabelValues("search").Inc()
				return places, nil
			}
		}
		metrics.CacheMisses.WithLabelValues("search").Inc()
	}

	places, err := s.geocoder.Search(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("geocode %q: %w", query, err)
	}
	if places == nil {
		places = []domain.Place{}
	}

	if s.cache != nil {
		if data, err := json.Marshal(places); err == nil {
			_ = s.cache.Set(ctx, cacheKey, data, s.ttl)
		}
	}

	return places, nil
}
