package usecases

import (
	"context"
	"log/slog"

	"github.com/samirrijal/darkhorizon/internal/core/domain"
	"github.com/samirrijal/darkhorizon/internal/core/ports"
	"github.com/samirrijal/darkhorizon/internal/pkg/metrics"
	"github.com/samirrijal/darkhorizon/internal/pkg/palette"
	"github.com/samirrijal/darkhorizon/internal/pkg/projection"
	"golang.org/x/sync/errgroup"
)

// RasterSource binds a pixel source to the geographic box it covers.
type RasterSource struct {
	Name   string
	Bounds domain.RasterBounds
	Pixels ports.PixelSource
}

// SampleService classifies points against the light-pollution rasters.
type SampleService struct {
	sources []RasterSource
	palette *palette.Palette
}

// NewSampleService creates a sampler. Sources are tried in order, so the most
// detailed raster for an area should come first and the world raster last.
func NewSampleService(sources []RasterSource, pal *palette.Palette) *SampleService {
	cp := make([]RasterSource, len(sources))
	for i, s := range sources {
		s.Bounds = s.Bounds.Normalized()
		cp[i] = s
	}
	return &SampleService{sources: cp, palette: pal}
}

// Sources returns the configured rasters in lookup order.
func (s *SampleService) Sources() []RasterSource {
	return append([]RasterSource(nil), s.sources...)
}

// Palette returns the classification table.
func (s *SampleService) Palette() *palette.Palette { return s.palette }

// Classify returns the palette entry for the pixel under (lat, lng).
//
// A nil entry with a nil error means "no classification": the point is outside
// every raster, or no covering raster could be loaded. The only error returned
// is ctx.Err() when the caller gives up while waiting for a load.
func (s *SampleService) Classify(ctx context.Context, lat, lng float64) (*domain.PaletteEntry, error) {
	p := domain.GeoPoint{Lat: lat, Lon: lng}
	if !p.Valid() {
		metrics.Samples.WithLabelValues("out_of_domain").Inc()
		return nil, nil
	}

	covered := false
	for _, src := range s.sources {
		if !src.Bounds.Contains(p) {
			continue
		}
		covered = true

		if err := src.Pixels.Load(ctx); err != nil {
			if ctx.Err() != nil {
				metrics.Samples.WithLabelValues("cancelled").Inc()
				return nil, ctx.Err()
			}
			slog.Warn("raster unavailable, trying next source", "raster", src.Name, "error", err)
			continue
		}

		w, h := src.Pixels.Size()
		nx, ny := projection.Forward(lat, lng, src.Bounds)
		x, y := projection.Pixel(nx, ny, w, h)
		r, g, b, err := src.Pixels.RGB(x, y)
		if err != nil {
			slog.Warn("raster read failed", "raster", src.Name, "x", x, "y", y, "error", err)
			continue
		}

		entry := s.palette.Nearest(r, g, b)
		metrics.Samples.WithLabelValues("hit").Inc()
		return &entry, nil
	}

	if covered {
		metrics.Samples.WithLabelValues("unavailable").Inc()
	} else {
		metrics.Samples.WithLabelValues("out_of_domain").Inc()
	}
	return nil, nil
}

// Warm loads every raster concurrently, waits for all of them and returns the
// first load error.
func (s *SampleService) Warm(ctx context.Context) error {
	var g errgroup.Group
	for _, src := range s.sources {
		src := src
		g.Go(func() error {
			if err := src.Pixels.Load(ctx); err != nil {
				slog.Warn("raster warm-up failed", "raster", src.Name, "error", err)
				return err
			}
			return nil
		})
	}
	return g.Wait()
}
