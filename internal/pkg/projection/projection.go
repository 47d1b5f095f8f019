// Package projection maps geographic coordinates into normalized raster space.
package projection

import (
	"math"

	"github.com/samirrijal/darkhorizon/internal/core/domain"
)

// MercatorY returns the web-Mercator ordinate ln(tan(π/4 + φ/2)) for a latitude in degrees.
// It diverges at the poles; callers keep latitudes inside the raster bounds.
func MercatorY(lat float64) float64 {
	return math.Log(math.Tan(math.Pi/4 + lat*math.Pi/360))
}

// InverseMercatorY returns the latitude in degrees for a web-Mercator ordinate.
func InverseMercatorY(y float64) float64 {
	return (2*math.Atan(math.Exp(y)) - math.Pi/2) * 180 / math.Pi
}

// Forward maps (lat, lng) to (nx, ny) in [0,1]², with (0,0) at the north-west corner of the
// raster. The point must already be inside b.
func Forward(lat, lng float64, b domain.RasterBounds) (nx, ny float64) {
	b = b.Normalized()
	nx = (lng - b.LngMin) / (b.LngMax - b.LngMin)

	switch b.Projection {
	case domain.PlateCarree:
		ny = (b.LatMax - lat) / (b.LatMax - b.LatMin)
	default:
		top := MercatorY(b.LatMax)
		ny = (top - MercatorY(lat)) / (top - MercatorY(b.LatMin))
	}
	return nx, ny
}

// Pixel converts normalized coordinates to the nearest pixel of a width×height raster,
// clamped into the image.
func Pixel(nx, ny float64, width, height int) (x, y int) {
	x = clamp(int(math.Round(nx*float64(width-1))), width-1)
	y = clamp(int(math.Round(ny*float64(height-1))), height-1)
	return x, y
}

func clamp(v, max int) int {
	if v < 0 {
		return 0
	}
	if v > max {
		return max
	}
	return v
}
