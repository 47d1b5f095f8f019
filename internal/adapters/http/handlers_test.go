package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	handler "github.com/samirrijal/darkhorizon/internal/adapters/http"
	"github.com/samirrijal/darkhorizon/internal/adapters/raster"
	"github.com/samirrijal/darkhorizon/internal/core/domain"
	"github.com/samirrijal/darkhorizon/internal/core/usecases"
	"github.com/samirrijal/darkhorizon/internal/pkg/palette"
)

// ---- Mocks ----

type mockPixels struct {
	r, g, b uint8
	loadErr error
}

func (m *mockPixels) Load(ctx context.Context) error { return m.loadErr }
func (m *mockPixels) Size() (int, int)               { return 36, 18 }
func (m *mockPixels) RGB(x, y int) (uint8, uint8, uint8, error) {
	return m.r, m.g, m.b, nil
}

type mockElevation struct {
	elevationFn func(ctx context.Context, lat, lon float64) (*float64, error)
}

func (m *mockElevation) Elevation(ctx context.Context, lat, lon float64) (*float64, error) {
	if m.elevationFn != nil {
		return m.elevationFn(ctx, lat, lon)
	}
	return nil, nil
}

type mockGeocoder struct {
	calls    atomic.Int32
	searchFn func(ctx context.Context, q string, limit int) ([]domain.Place, error)
}

func (m *mockGeocoder) Search(ctx context.Context, q string, limit int) ([]domain.Place, error) {
	m.calls.Add(1)
	if m.searchFn != nil {
		return m.searchFn(ctx, q, limit)
	}
	return nil, nil
}

type mockSpotRepo struct {
	createFn     func(ctx context.Context, s *domain.Spot) error
	getByIDFn    func(ctx context.Context, id string) (*domain.Spot, error)
	findNearbyFn func(ctx context.Context, lat, lon, radius float64, limit int) ([]domain.Spot, error)
}

func (m *mockSpotRepo) Create(ctx context.Context, s *domain.Spot) error {
	if m.createFn != nil {
		return m.createFn(ctx, s)
	}
	s.ID = "spot-1"
	s.CreatedAt = time.Date(2024, 6, 1, 22, 0, 0, 0, time.UTC)
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

type pngFetcher struct {
	data []byte
	err  error
}

func (f *pngFetcher) Fetch(ctx context.Context, url string) (io.ReadCloser, error) {
	if f.err != nil {
		return nil, f.err
	}
	return io.NopCloser(bytes.NewReader(f.data)), nil
}

// ---- Test helpers ----

var worldBounds = domain.RasterBounds{Projection: domain.WebMercator, LatMin: -85, LatMax: 85}

func setupApp(deps *handler.Dependencies) *fiber.App {
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	handler.SetupRoutes(app, deps)
	return app
}

func makeDeps(opts ...func(*handler.Dependencies)) *handler.Dependencies {
	sampler := usecases.NewSampleService([]usecases.RasterSource{
		{Name: "world", Bounds: worldBounds, Pixels: &mockPixels{}},
	}, palette.Default())
	d := &handler.Dependencies{
		Sampler:   sampler,
		Elevation: usecases.NewElevationService(&mockElevation{}, nil, 0),
		Search:    usecases.NewSearchService(&mockGeocoder{}, nil, 0, 5),
		Spots:     usecases.NewSpotService(&mockSpotRepo{}, sampler, nil, nil),
		Session:   usecases.DefaultSessionConfig(),
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

func get(t *testing.T, app *fiber.App, target string) (int, []byte) {
	t.Helper()
	resp, err := app.Test(httptest.NewRequest("GET", target, nil), -1)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	return resp.StatusCode, readBody(t, resp.Body)
}

func readBody(t *testing.T, body io.Reader) []byte {
	t.Helper()
	b, err := io.ReadAll(body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return b
}

func errorCode(t *testing.T, body []byte) string {
	t.Helper()
	var apiErr struct {
		Code string `json:"code"`
	}
	if err := json.Unmarshal(body, &apiErr); err != nil {
		t.Fatalf("decode error body %q: %v", body, err)
	}
	return apiErr.Code
}

// ---- Classification ----

func TestClassify_Success(t *testing.T) {
	app := setupApp(makeDeps())

	status, body := get(t, app, "/v1/classify?lat=48.1&lon=11.6")
	if status != 200 {
		t.Fatalf("expected 200, got %d: %s", status, body)
	}

	var result handler.ClassificationResponse
	if err := json.Unmarshal(body, &result); err != nil {
		t.Fatal(err)
	}
	if result.Class == nil {
		t.Fatal("expected a class")
	}
	if result.Class.ClassID != 1 {
		t.Errorf("expected class 1 for black pixel, got %d", result.Class.ClassID)
	}
}

func TestClassify_OutsideRasterIsNull(t *testing.T) {
	app := setupApp(makeDeps())

	status, body := get(t, app, "/v1/classify?lat=89&lon=0")
	if status != 200 {
		t.Fatalf("expected 200, got %d", status)
	}
	if !strings.Contains(string(body), `"class":null`) {
		t.Errorf("expected null class, got %s", body)
	}
}

func TestClassify_UnloadableRasterIsNull(t *testing.T) {
	deps := makeDeps(func(d *handler.Dependencies) {
		d.Sampler = usecases.NewSampleService([]usecases.RasterSource{
			{Name: "world", Bounds: worldBounds, Pixels: &mockPixels{loadErr: errors.New("404")}},
		}, palette.Default())
	})
	app := setupApp(deps)

	status, body := get(t, app, "/v1/classify?lat=10&lon=10")
	if status != 200 {
		t.Fatalf("expected 200, got %d", status)
	}
	if !strings.Contains(string(body), `"class":null`) {
		t.Errorf("expected null class, got %s", body)
	}
}

func TestClassify_BadParams(t *testing.T) {
	app := setupApp(makeDeps())

	for _, target := range []string{
		"/v1/classify",
		"/v1/classify?lat=abc&lon=1",
		"/v1/classify?lat=91&lon=0",
		"/v1/classify?lat=0&lon=181",
	} {
		status, body := get(t, app, target)
		if status != 400 {
			t.Errorf("%s: expected 400, got %d", target, status)
			continue
		}
		if code := errorCode(t, body); code != "bad_request" {
			t.Errorf("%s: expected bad_request, got %s", target, code)
		}
	}
}

// ---- Elevation ----

func TestElevation_Rounded(t *testing.T) {
	deps := makeDeps(func(d *handler.Dependencies) {
		d.Elevation = usecases.NewElevationService(&mockElevation{
			elevationFn: func(ctx context.Context, lat, lon float64) (*float64, error) {
				v := 519.6
				return &v, nil
			},
		}, nil, 0)
	})
	app := setupApp(deps)

	status, body := get(t, app, "/v1/elevation?lat=48.1&lon=11.6")
	if status != 200 {
		t.Fatalf("expected 200, got %d", status)
	}
	var result handler.ElevationResponse
	if err := json.Unmarshal(body, &result); err != nil {
		t.Fatal(err)
	}
	if result.Elevation == nil || *result.Elevation != 520 {
		t.Errorf("expected 520, got %v", result.Elevation)
	}
}

func TestElevation_UpstreamFailure(t *testing.T) {
	deps := makeDeps(func(d *handler.Dependencies) {
		d.Elevation = usecases.NewElevationService(&mockElevation{
			elevationFn: func(ctx context.Context, lat, lon float64) (*float64, error) {
				return nil, errors.New("upstream returned 500")
			},
		}, nil, 0)
	})
	app := setupApp(deps)

	status, body := get(t, app, "/v1/elevation?lat=48.1&lon=11.6")
	if status != 502 {
		t.Fatalf("expected 502, got %d", status)
	}
	if code := errorCode(t, body); code != "bad_gateway" {
		t.Errorf("expected bad_gateway, got %s", code)
	}
}

func TestElevation_Disabled(t *testing.T) {
	app := setupApp(makeDeps(func(d *handler.Dependencies) { d.Elevation = nil }))

	status, _ := get(t, app, "/v1/elevation?lat=48.1&lon=11.6")
	if status != 503 {
		t.Fatalf("expected 503, got %d", status)
	}
}

// ---- Search ----

func TestSearch_Success(t *testing.T) {
	geo := &mockGeocoder{
		searchFn: func(ctx context.Context, q string, limit int) ([]domain.Place, error) {
			if limit != 3 {
				t.Errorf("expected limit 3, got %d", limit)
			}
			return []domain.Place{
				{Name: "Munich", Label: "Munich, Bavaria, Germany", Location: domain.GeoPoint{Lat: 48.14, Lon: 11.58}},
			}, nil
		},
	}
	app := setupApp(makeDeps(func(d *handler.Dependencies) {
		d.Search = usecases.NewSearchService(geo, nil, 0, 5)
	}))

	status, body := get(t, app, "/v1/search?q=Munich&limit=3")
	if status != 200 {
		t.Fatalf("expected 200, got %d", status)
	}
	var places []domain.Place
	if err := json.Unmarshal(body, &places); err != nil {
		t.Fatal(err)
	}
	if len(places) != 1 || places[0].Name != "Munich" {
		t.Errorf("unexpected places: %+v", places)
	}
}

func TestSearch_ShortQueryReturnsEmptyList(t *testing.T) {
	geo := &mockGeocoder{}
	app := setupApp(makeDeps(func(d *handler.Dependencies) {
		d.Search = usecases.NewSearchService(geo, nil, 0, 5)
	}))

	status, body := get(t, app, "/v1/search?q=M")
	if status != 200 {
		t.Fatalf("expected 200, got %d", status)
	}
	if strings.TrimSpace(string(body)) != "[]" {
		t.Errorf("expected empty list, got %s", body)
	}
	if geo.calls.Load() != 0 {
		t.Errorf("geocoder should not be called for short queries")
	}
}

func TestSearch_MissingQuery(t *testing.T) {
	app := setupApp(makeDeps())

	status, _ := get(t, app, "/v1/search")
	if status != 400 {
		t.Fatalf("expected 400, got %d", status)
	}
}

// ---- Layers and palette ----

func TestLayers(t *testing.T) {
	app := setupApp(makeDeps())

	tests := []struct {
		target    string
		base      domain.BaseLayer
		opacity   float64
		satellite bool
	}{
		{"/v1/layers?zoom=2", domain.BaseOverview, 0.75, false},
		{"/v1/layers?zoom=8", domain.BaseDetail, 0.6, false},
		{"/v1/layers?zoom=8&satellite=true", domain.BaseDetail, 0.6, false},
		{"/v1/layers?zoom=13&satellite=true", domain.BaseSatellite, 0.45, true},
	}

	for _, tt := range tests {
		status, body := get(t, app, tt.target)
		if status != 200 {
			t.Errorf("%s: expected 200, got %d", tt.target, status)
			continue
		}
		var result handler.LayersResponse
		if err := json.Unmarshal(body, &result); err != nil {
			t.Fatal(err)
		}
		if result.BaseLayer != tt.base || result.OverlayOpacity != tt.opacity || result.Satellite != tt.satellite {
			t.Errorf("%s: got %+v", tt.target, result)
		}
	}
}

func TestLayers_BadZoom(t *testing.T) {
	app := setupApp(makeDeps())

	for _, target := range []string{"/v1/layers", "/v1/layers?zoom=x", "/v1/layers?zoom=-1", "/v1/layers?zoom=30"} {
		if status, _ := get(t, app, target); status != 400 {
			t.Errorf("%s: expected 400, got %d", target, status)
		}
	}
}

func TestPalette(t *testing.T) {
	app := setupApp(makeDeps())

	resp, err := app.Test(httptest.NewRequest("GET", "/v1/palette", nil), -1)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if cc := resp.Header.Get("Cache-Control"); cc != "public, max-age=86400" {
		t.Errorf("unexpected Cache-Control %q", cc)
	}

	var entries []domain.PaletteEntry
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		t.Fatal(err)
	}
	if len(entries) != len(palette.Default().Entries()) {
		t.Errorf("expected %d entries, got %d", len(palette.Default().Entries()), len(entries))
	}
}

// ---- Rasters ----

func rasterPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 8; x++ {
			img.Set(x, y, color.RGBA{A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestWarmRasters(t *testing.T) {
	good := raster.New("world", "mem://world.png", &pngFetcher{data: rasterPNG(t)})
	bad := raster.New("europe", "mem://europe.png", &pngFetcher{err: errors.New("not found")})

	app := setupApp(makeDeps(func(d *handler.Dependencies) {
		d.Sampler = usecases.NewSampleService([]usecases.RasterSource{
			{Name: "europe", Bounds: domain.RasterBounds{Projection: domain.PlateCarree, LatMin: 34, LatMax: 72, LngMin: -25, LngMax: 45}, Pixels: bad},
			{Name: "world", Bounds: worldBounds, Pixels: good},
		}, palette.Default())
	}))

	resp, err := app.Test(httptest.NewRequest("POST", "/v1/rasters/warm", nil), -1)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 503 {
		t.Fatalf("expected 503 with one failed raster, got %d", resp.StatusCode)
	}

	var statuses []domain.RasterStatus
	if err := json.NewDecoder(resp.Body).Decode(&statuses); err != nil {
		t.Fatal(err)
	}
	if len(statuses) != 2 {
		t.Fatalf("expected 2 statuses, got %d", len(statuses))
	}
	if statuses[0].State != "error" || statuses[0].Error == "" {
		t.Errorf("europe: expected error state, got %+v", statuses[0])
	}
	if statuses[1].State != "ready" || statuses[1].Width != 8 || statuses[1].Height != 4 {
		t.Errorf("world: expected ready 8x4, got %+v", statuses[1])
	}

	// A failed regional raster degrades readiness but does not fail it.
	status, body := get(t, app, "/v1/ready")
	if status != 200 {
		t.Fatalf("expected 200 from /v1/ready, got %d: %s", status, body)
	}
	if !strings.Contains(string(body), "degraded") {
		t.Errorf("expected degraded raster check, got %s", body)
	}
}

func TestReady_NoRasterLoaded(t *testing.T) {
	bad := raster.New("world", "mem://world.png", &pngFetcher{err: errors.New("offline")})
	app := setupApp(makeDeps(func(d *handler.Dependencies) {
		d.Sampler = usecases.NewSampleService([]usecases.RasterSource{
			{Name: "world", Bounds: worldBounds, Pixels: bad},
		}, palette.Default())
	}))

	if status, _ := get(t, app, "/v1/classify?lat=1&lon=1"); status != 200 {
		t.Fatalf("classify should succeed with a null class, got %d", status)
	}
	if status, _ := get(t, app, "/v1/ready"); status != 503 {
		t.Errorf("expected 503 when every raster failed, got %d", status)
	}
}

// ---- Spots ----

func TestCreateSpot(t *testing.T) {
	var saved *domain.Spot
	app := setupApp(makeDeps(func(d *handler.Dependencies) {
		repo := &mockSpotRepo{
			createFn: func(ctx context.Context, s *domain.Spot) error {
				s.ID = "spot-42"
				saved = s
				return nil
			},
		}
		d.Spots = usecases.NewSpotService(repo, d.Sampler, nil, nil)
	}))

	req := httptest.NewRequest("POST", "/v1/spots", strings.NewReader(`{"name":"  Hilltop  ","lat":47.5,"lon":10.2}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 201 {
		t.Fatalf("expected 201, got %d: %s", resp.StatusCode, readBody(t, resp.Body))
	}

	var spot domain.Spot
	if err := json.NewDecoder(resp.Body).Decode(&spot); err != nil {
		t.Fatal(err)
	}
	if spot.ID != "spot-42" || spot.Name != "Hilltop" {
		t.Errorf("unexpected spot %+v", spot)
	}
	if saved == nil || saved.ClassID == nil || *saved.ClassID != 1 {
		t.Errorf("expected the spot to be classified before saving, got %+v", saved)
	}
}

func TestCreateSpot_Invalid(t *testing.T) {
	app := setupApp(makeDeps())

	for _, body := range []string{
		`{"name":"","lat":1,"lon":1}`,
		`{"name":"x","lat":95,"lon":1}`,
		`not json`,
	} {
		req := httptest.NewRequest("POST", "/v1/spots", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		resp, err := app.Test(req, -1)
		if err != nil {
			t.Fatal(err)
		}
		if resp.StatusCode != 400 {
			t.Errorf("%s: expected 400, got %d", body, resp.StatusCode)
		}
	}
}

func TestNearbySpots(t *testing.T) {
	app := setupApp(makeDeps(func(d *handler.Dependencies) {
		repo := &mockSpotRepo{
			findNearbyFn: func(ctx context.Context, lat, lon, radius float64, limit int) ([]domain.Spot, error) {
				if radius != 5000 {
					t.Errorf("expected radius 5000, got %v", radius)
				}
				return []domain.Spot{
					{ID: "far", Location: domain.GeoPoint{Lat: 47.53, Lon: 10.2}},
					{ID: "near", Location: domain.GeoPoint{Lat: 47.501, Lon: 10.2}},
				}, nil
			},
		}
		d.Spots = usecases.NewSpotService(repo, d.Sampler, nil, nil)
	}))

	status, body := get(t, app, "/v1/spots/nearby?lat=47.5&lon=10.2&radius=5000")
	if status != 200 {
		t.Fatalf("expected 200, got %d", status)
	}
	var spots []domain.Spot
	if err := json.Unmarshal(body, &spots); err != nil {
		t.Fatal(err)
	}
	if len(spots) != 2 || spots[0].ID != "near" {
		t.Errorf("expected closest spot first, got %+v", spots)
	}
}

func TestNearbySpots_EmptyIsList(t *testing.T) {
	app := setupApp(makeDeps())

	status, body := get(t, app, "/v1/spots/nearby?lat=47.5&lon=10.2")
	if status != 200 {
		t.Fatalf("expected 200, got %d", status)
	}
	if strings.TrimSpace(string(body)) != "[]" {
		t.Errorf("expected [], got %s", body)
	}
}

func TestGetSpot_NotFound(t *testing.T) {
	app := setupApp(makeDeps())

	status, body := get(t, app, "/v1/spots/missing")
	if status != 404 {
		t.Fatalf("expected 404, got %d", status)
	}
	if code := errorCode(t, body); code != "not_found" {
		t.Errorf("expected not_found, got %s", code)
	}
}

func TestSpots_StorageDisabled(t *testing.T) {
	app := setupApp(makeDeps(func(d *handler.Dependencies) { d.Spots = nil }))

	if status, _ := get(t, app, "/v1/spots/abc"); status != 503 {
		t.Errorf("expected 503, got %d", status)
	}
}

// ---- Middleware ----

func TestETag_NotModified(t *testing.T) {
	app := setupApp(makeDeps())

	resp, err := app.Test(httptest.NewRequest("GET", "/v1/palette", nil), -1)
	if err != nil {
		t.Fatal(err)
	}
	etag := resp.Header.Get("ETag")
	if etag == "" {
		t.Fatal("expected an ETag")
	}

	req := httptest.NewRequest("GET", "/v1/palette", nil)
	req.Header.Set("If-None-Match", `"other", `+etag)
	resp, err = app.Test(req, -1)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 304 {
		t.Errorf("expected 304, got %d", resp.StatusCode)
	}
}

func TestCacheControl_ErrorsNotCached(t *testing.T) {
	app := setupApp(makeDeps())

	resp, err := app.Test(httptest.NewRequest("GET", "/v1/classify", nil), -1)
	if err != nil {
		t.Fatal(err)
	}
	if cc := resp.Header.Get("Cache-Control"); cc != "no-store" {
		t.Errorf("expected no-store on error, got %q", cc)
	}
}

func TestRequestIDHeader(t *testing.T) {
	app := setupApp(makeDeps())

	resp, err := app.Test(httptest.NewRequest("GET", "/v1/health", nil), -1)
	if err != nil {
		t.Fatal(err)
	}
	if resp.Header.Get("X-Request-Id") == "" {
		t.Error("expected X-Request-Id header")
	}
}

// ---- GraphQL ----

func TestGraphQL_ClassifyAndLayers(t *testing.T) {
	app := setupApp(makeDeps())

	query := `{"query":"{ classify(lat: 48.1, lon: 11.6) { class_id label } layers(zoom: 13, satellite: true) { base_layer satellite } }"}`
	req := httptest.NewRequest("POST", "/graphql", strings.NewReader(query))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var result struct {
		Data struct {
			Classify struct {
				ClassID int    `json:"class_id"`
				Label   string `json:"label"`
			} `json:"classify"`
			Layers struct {
				BaseLayer string `json:"base_layer"`
				Satellite bool   `json:"satellite"`
			} `json:"layers"`
		} `json:"data"`
		Errors []struct {
			Message string `json:"message"`
		} `json:"errors"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatal(err)
	}
	if len(result.Errors) > 0 {
		t.Fatalf("graphql errors: %+v", result.Errors)
	}
	if result.Data.Classify.ClassID != 1 {
		t.Errorf("expected class 1, got %d", result.Data.Classify.ClassID)
	}
	if result.Data.Layers.BaseLayer != "satellite" || !result.Data.Layers.Satellite {
		t.Errorf("unexpected layers %+v", result.Data.Layers)
	}
}
