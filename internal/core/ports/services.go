package ports

import (
	"context"

	"github.com/samirrijal/darkhorizon/internal/core/domain"
)

// EventPublisher publishes domain events to a message broker.
type EventPublisher interface {
	PublishSpotCreated(ctx context.Context, spot *domain.Spot) error
}

// CacheService provides read-through caching.
type CacheService interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttlSeconds int) error
	Delete(ctx context.Context, key string) error
}

// ElevationProvider looks up terrain height. A nil result with a nil error means the
// provider answered without a usable value.
type ElevationProvider interface {
	Elevation(ctx context.Context, lat, lon float64) (*float64, error)
}

// Geocoder resolves free text to places.
type Geocoder interface {
	Search(ctx context.Context, query string, limit int) ([]domain.Place, error)
}

// PixelSource is a decoded raster that loads on demand.
type PixelSource interface {
	Load(ctx context.Context) error
	Size() (width, height int)
	RGB(x, y int) (r, g, b uint8, err error)
}

// ViewportSink receives everything a viewport session produces.
type ViewportSink interface {
	Layers(v domain.LayerVisibility, satellite bool)
	Elevation(meters *int)
	Sample(entry *domain.PaletteEntry)
	Places(places []domain.Place)
	Failure(channel string, err error)
}
