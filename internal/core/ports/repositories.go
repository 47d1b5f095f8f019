package ports

import (
	"context"

	"github.com/samirrijal/darkhorizon/internal/core/domain"
)

// SpotRepository persists saved observing spots.
type SpotRepository interface {
	Create(ctx context.Context, spot *domain.Spot) error
	GetByID(ctx context.Context, id string) (*domain.Spot, error)
	FindNearby(ctx context.Context, lat, lon, radiusMeters float64, limit int) ([]domain.Spot, error)
}
