// Package geospatial converts between domain coordinates and orb geometry.
package geospatial

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/samirrijal/darkhorizon/internal/core/domain"
)

// Point converts a domain coordinate to an orb point (lon, lat order).
func Point(p domain.GeoPoint) orb.Point {
	return orb.Point{p.Lon, p.Lat}
}

// FromPoint converts an orb point back to a domain coordinate.
func FromPoint(p orb.Point) domain.GeoPoint {
	return domain.GeoPoint{Lat: p.Lat(), Lon: p.Lon()}
}

// Distance returns the great-circle distance in meters.
func Distance(a, b domain.GeoPoint) float64 {
	return geo.DistanceHaversine(Point(a), Point(b))
}

// BoundingBox returns the box that encloses a circle of radiusMeters around p.
func BoundingBox(p domain.GeoPoint, radiusMeters float64) domain.Bounds {
	return FromBound(geo.NewBoundAroundPoint(Point(p), radiusMeters))
}

// FromBound converts an orb bound.
func FromBound(b orb.Bound) domain.Bounds {
	return domain.Bounds{
		MinLat: b.Min.Lat(),
		MinLon: b.Min.Lon(),
		MaxLat: b.Max.Lat(),
		MaxLon: b.Max.Lon(),
	}
}
