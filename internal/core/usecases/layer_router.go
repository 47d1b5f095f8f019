package usecases

import (
	"sync"

	"github.com/samirrijal/darkhorizon/internal/core/domain"
)

// LayerConfig holds the zoom thresholds and overlay opacity per base layer.
// DetailZoom must be below SatelliteZoom.
type LayerConfig struct {
	DetailZoom       int
	SatelliteZoom    int
	OverviewOpacity  float64
	DetailOpacity    float64
	SatelliteOpacity float64
}

// DefaultLayerConfig returns the stock thresholds and opacities.
func DefaultLayerConfig() LayerConfig {
	return LayerConfig{
		DetailZoom:       4,
		SatelliteZoom:    12,
		OverviewOpacity:  0.75,
		DetailOpacity:    0.6,
		SatelliteOpacity: 0.45,
	}
}

// Route maps a zoom level and the user's satellite request to the visible layers.
// The second result is the effective satellite request: it is false whenever
// zoom is below SatelliteZoom, even if satellite was asked for.
func Route(zoom int, satelliteRequested bool, cfg LayerConfig) (domain.LayerVisibility, bool) {
	switch {
	case zoom < cfg.DetailZoom:
		return domain.LayerVisibility{BaseLayer: domain.BaseOverview, OverlayOpacity: cfg.OverviewOpacity}, false
	case zoom < cfg.SatelliteZoom:
		return domain.LayerVisibility{BaseLayer: domain.BaseDetail, OverlayOpacity: cfg.DetailOpacity}, false
	case satelliteRequested:
		return domain.LayerVisibility{BaseLayer: domain.BaseSatellite, OverlayOpacity: cfg.SatelliteOpacity}, true
	default:
		return domain.LayerVisibility{BaseLayer: domain.BaseDetail, OverlayOpacity: cfg.DetailOpacity}, false
	}
}

// LayerState tracks one viewer's zoom and satellite request.
type LayerState struct {
	cfg LayerConfig

	mu        sync.Mutex
	zoom      int
	satellite bool
}

// NewLayerState starts at the given zoom with satellite off.
func NewLayerState(cfg LayerConfig, zoom int) *LayerState {
	return &LayerState{cfg: cfg, zoom: zoom}
}

// SetZoom records a new zoom level. Dropping below the satellite threshold
// clears a pending satellite request.
func (s *LayerState) SetZoom(zoom int) (domain.LayerVisibility, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.zoom = zoom
	return s.apply()
}

// RequestSatellite turns satellite mode on or off. A request made below the
// satellite threshold is dropped immediately.
func (s *LayerState) RequestSatellite(on bool) (domain.LayerVisibility, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.satellite = on
	return s.apply()
}

// Snapshot returns the current layers without changing state.
func (s *LayerState) Snapshot() (domain.LayerVisibility, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Route(s.zoom, s.satellite, s.cfg)
}

func (s *LayerState) apply() (domain.LayerVisibility, bool) {
	v, effective := Route(s.zoom, s.satellite, s.cfg)
	s.satellite = effective
	return v, effective
}
