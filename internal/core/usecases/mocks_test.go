package usecases_test

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/samirrijal/darkhorizon/internal/core/domain"
)

// --- Mock PixelSource ---

type mockPixels struct {
	loadFn func(ctx context.Context) error
	rgbFn  func(x, y int) (uint8, uint8, uint8, error)
	width  int
	height int
	loads  atomic.Int32
}

func (m *mockPixels) Load(ctx context.Context) error {
	m.loads.Add(1)
	if m.loadFn != nil {
		return m.loadFn(ctx)
	}
	return nil
}

func (m *mockPixels) Size() (int, int) { return m.width, m.height }

func (m *mockPixels) RGB(x, y int) (uint8, uint8, uint8, error) {
	if m.rgbFn != nil {
		return m.rgbFn(x, y)
	}
	return 0, 0, 0, nil
}

// solid returns a ready raster filled with one colour.
func solid(r, g, b uint8) *mockPixels {
	return &mockPixels{
		width: 10, height: 10,
		rgbFn: func(x, y int) (uint8, uint8, uint8, error) { return r, g, b, nil },
	}
}

// --- Mock CacheService ---

type mockCache struct {
	mu   sync.Mutex
	data map[string][]byte
	ttls map[string]int
}

func newMockCache() *mockCache {
	return &mockCache{data: map[string][]byte{}, ttls: map[string]int{}}
}

func (m *mockCache) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok := m.data[key]; ok {
		return v, nil
	}
	return nil, domain.ErrNotFound
}

func (m *mockCache) Set(ctx context.Context, key string, value []byte, ttlSeconds int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	m.ttls[key] = ttlSeconds
	return nil
}

func (m *mockCache) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

// --- Mock ElevationProvider ---

type mockElevation struct {
	elevationFn func(ctx context.Context, lat, lon float64) (*float64, error)
	calls       atomic.Int32
}

func (m *mockElevation) Elevation(ctx context.Context, lat, lon float64) (*float64, error) {
	m.calls.Add(1)
	if m.elevationFn != nil {
		return m.elevationFn(ctx, lat, lon)
	}
	return nil, nil
}

// --- Mock Geocoder ---

type mockGeocoder struct {
	searchFn func(ctx context.Context, query string, limit int) ([]domain.Place, error)
	calls    atomic.Int32
}

func (m *mockGeocoder) Search(ctx context.Context, query string, limit int) ([]domain.Place, error) {
	m.calls.Add(1)
	if m.searchFn != nil {
		return m.searchFn(ctx, query, limit)
	}
	return nil, nil
}

// --- Mock SpotRepository ---

type mockSpotRepo struct {
	createFn     func(ctx context.Context, spot *domain.Spot) error
	getByIDFn    func(ctx context.Context, id string) (*domain.Spot, error)
	findNearbyFn func(ctx context.Context, lat, lon, radius float64, limit int) ([]domain.Spot, error)
}

func (m *mockSpotRepo) Create(ctx context.Context, spot *domain.Spot) error {
	if m.createFn != nil {
		return m.createFn(ctx, spot)
	}
	spot.ID = "spot-1"
	return nil
}

func (m *mockSpotRepo) GetByID(ctx context.Context, id string) (*domain.Spot, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, domain.ErrNotFound
}

func (m *mockSpotRepo) FindNearby(ctx context.Context, lat, lon, radius float64, limit int) ([]domain.Spot, error) {
	if m.findNearbyFn != nil {
		return m.findNearbyFn(ctx, lat, lon, radius, limit)
	}
	return nil, nil
}

// --- Mock EventPublisher ---

type mockPublisher struct {
	mu        sync.Mutex
	published []*domain.Spot
	err       error
}

func (m *mockPublisher) PublishSpotCreated(ctx context.Context, spot *domain.Spot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published = append(m.published, spot)
	return m.err
}

// --- Recording ViewportSink ---

type failure struct {
	channel string
	err     error
}

type recordingSink struct {
	layers     chan domain.LayerVisibility
	elevations chan *int
	samples    chan *domain.PaletteEntry
	places     chan []domain.Place
	failures   chan failure
}

func newRecordingSink() *recordingSink {
	return &recordingSink{
		layers:     make(chan domain.LayerVisibility, 16),
		elevations: make(chan *int, 16),
		samples:    make(chan *domain.PaletteEntry, 16),
		places:     make(chan []domain.Place, 16),
		failures:   make(chan failure, 16),
	}
}

func (s *recordingSink) Layers(v domain.LayerVisibility, satellite bool) { s.layers <- v }
func (s *recordingSink) Elevation(meters *int)                          { s.elevations <- meters }
func (s *recordingSink) Sample(entry *domain.PaletteEntry)              { s.samples <- entry }
func (s *recordingSink) Places(places []domain.Place)                   { s.places <- places }
func (s *recordingSink) Failure(channel string, err error)              { s.failures <- failure{channel, err} }
