package domain

import "math"

// GeoPoint represents a geographic coordinate (WGS 84).
type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Valid reports whether the point lies on the globe.
func (p GeoPoint) Valid() bool {
	return p.Lat >= -90 && p.Lat <= 90 && p.Lon >= -180 && p.Lon <= 180 &&
		!math.IsNaN(p.Lat) && !math.IsNaN(p.Lon)
}

// Bounds represents a geographic bounding box.
type Bounds struct {
	MinLat float64 `json:"min_lat"`
	MinLon float64 `json:"min_lon"`
	MaxLat float64 `json:"max_lat"`
	MaxLon float64 `json:"max_lon"`
}

// Projection names the mapping used to lay a raster out on the page.
type Projection string

const (
	PlateCarree Projection = "plate_carree"
	WebMercator Projection = "web_mercator"
)

// RasterBounds is the geographic domain covered by a raster asset.
// A zero longitude span means the raster wraps the full ±180°.
type RasterBounds struct {
	Projection Projection `json:"projection"`
	LatMin     float64    `json:"lat_min"`
	LatMax     float64    `json:"lat_max"`
	LngMin     float64    `json:"lng_min"`
	LngMax     float64    `json:"lng_max"`
}

// Normalized fills in the full longitude span when none is set.
func (b RasterBounds) Normalized() RasterBounds {
	if b.LngMin == 0 && b.LngMax == 0 {
		b.LngMin, b.LngMax = -180, 180
	}
	if b.Projection == "" {
		b.Projection = WebMercator
	}
	return b
}

// Contains reports whether p is inside the sampling domain. Both edges are inclusive.
func (b RasterBounds) Contains(p GeoPoint) bool {
	n := b.Normalized()
	if math.IsNaN(p.Lat) || math.IsNaN(p.Lon) {
		return false
	}
	return p.Lat >= n.LatMin && p.Lat <= n.LatMax && p.Lon >= n.LngMin && p.Lon <= n.LngMax
}
