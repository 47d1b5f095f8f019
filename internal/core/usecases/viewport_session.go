package usecases

import (
	"context"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/facebookgo/clock"
	"github.com/samirrijal/darkhorizon/internal/core/domain"
	"github.com/samirrijal/darkhorizon/internal/core/ports"
	"github.com/samirrijal/darkhorizon/internal/pkg/metrics"
	"github.com/samirrijal/darkhorizon/internal/pkg/orchestrator"
)

// Query channel names, as reported to ViewportSink.Failure and in metrics.
const (
	ChannelSearch    = "search"
	ChannelElevation = "elevation"
	ChannelSample    = "sample"
)

// SessionConfig configures a ViewportSession.
type SessionConfig struct {
	Layers         LayerConfig
	InitialZoom    int
	SearchDelay    time.Duration
	ElevationDelay time.Duration
	SampleDelay    time.Duration
	SearchLimit    int
	// Clock drives the debounce timers; nil means the wall clock.
	Clock clock.Clock
}

// DefaultSessionConfig returns the stock debounce delays.
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		Layers:         DefaultLayerConfig(),
		InitialZoom:    2,
		SearchDelay:    300 * time.Millisecond,
		ElevationDelay: 5 * time.Second,
		SampleDelay:    time.Second,
		SearchLimit:    5,
	}
}

// ViewportSession connects one viewer's map events to the layer router and the
// three lookup channels. Each channel runs independently; moving the map only
// cancels the elevation and sample lookups.
type ViewportSession struct {
	layers *LayerState
	sink   ports.ViewportSink

	search    *orchestrator.Channel[string, []domain.Place]
	elevation *orchestrator.Channel[domain.GeoPoint, *int]
	sample    *orchestrator.Channel[domain.GeoPoint, *domain.PaletteEntry]

	closeOnce sync.Once
}

// NewViewportSession wires a session. Any of sampler, elevation and search may
// be nil, in which case the corresponding events are ignored.
func NewViewportSession(cfg SessionConfig, sink ports.ViewportSink, sampler *SampleService, elevation *ElevationService, search *SearchService) *ViewportSession {
	s := &ViewportSession{
		layers: NewLayerState(cfg.Layers, cfg.InitialZoom),
		sink:   sink,
	}

	if search != nil {
		limit := cfg.SearchLimit
		s.search = orchestrator.New(
			func(ctx context.Context, q string) ([]domain.Place, error) {
				return search.Search(ctx, q, limit)
			},
			orchestrator.Options[[]domain.Place]{
				Name:     ChannelSearch,
				Delay:    cfg.SearchDelay,
				Clock:    cfg.Clock,
				OnResult: sink.Places,
				OnError:  func(err error) { sink.Failure(ChannelSearch, err) },
			})
	}

	if elevation != nil {
		s.elevation = orchestrator.New(
			func(ctx context.Context, p domain.GeoPoint) (*int, error) {
				return elevation.Lookup(ctx, p.Lat, p.Lon)
			},
			orchestrator.Options[*int]{
				Name:     ChannelElevation,
				Delay:    cfg.ElevationDelay,
				Clock:    cfg.Clock,
				OnResult: sink.Elevation,
				OnError:  func(err error) { sink.Failure(ChannelElevation, err) },
			})
	}

	if sampler != nil {
		s.sample = orchestrator.New(
			func(ctx context.Context, p domain.GeoPoint) (*domain.PaletteEntry, error) {
				return sampler.Classify(ctx, p.Lat, p.Lon)
			},
			orchestrator.Options[*domain.PaletteEntry]{
				Name:     ChannelSample,
				Delay:    cfg.SampleDelay,
				Clock:    cfg.Clock,
				OnResult: sink.Sample,
				OnError:  func(err error) { sink.Failure(ChannelSample, err) },
			})
	}

	metrics.ActiveSessions.Inc()
	return s
}

// Layers returns the current layer snapshot.
func (s *ViewportSession) Layers() (domain.LayerVisibility, bool) {
	return s.layers.Snapshot()
}

// ZoomChanged routes the new zoom and publishes the layer snapshot.
func (s *ViewportSession) ZoomChanged(zoom int) {
	s.sink.Layers(s.layers.SetZoom(zoom))
}

// SatelliteToggled records the user's satellite request and publishes the snapshot.
func (s *ViewportSession) SatelliteToggled(on bool) {
	s.sink.Layers(s.layers.RequestSatellite(on))
}

// MoveStarted abandons lookups for the previous center.
func (s *ViewportSession) MoveStarted() {
	if s.elevation != nil {
		s.elevation.CancelAll()
	}
	if s.sample != nil {
		s.sample.CancelAll()
	}
}

// MoveSettled schedules lookups for the new center.
func (s *ViewportSession) MoveSettled(center domain.GeoPoint) {
	if s.elevation != nil {
		s.elevation.Trigger(center)
	}
	if s.sample != nil {
		s.sample.Trigger(center)
	}
}

// SearchChanged schedules a geocoder lookup. Text shorter than MinSearchLength
// cancels the channel and clears the results.
func (s *ViewportSession) SearchChanged(text string) {
	if s.search == nil {
		return
	}
	if utf8.RuneCountInString(strings.TrimSpace(text)) < MinSearchLength {
		s.search.CancelAll()
		s.sink.Places([]domain.Place{})
		return
	}
	s.search.Trigger(text)
}

// Close stops every channel. Lookups requested after Close never run.
func (s *ViewportSession) Close() {
	s.closeOnce.Do(func() {
		if s.search != nil {
			s.search.Close()
		}
		if s.elevation != nil {
			s.elevation.Close()
		}
		if s.sample != nil {
			s.sample.Close()
		}
		metrics.ActiveSessions.Dec()
	})
}
