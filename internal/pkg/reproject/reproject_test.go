package reproject_test

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/samirrijal/darkhorizon/internal/pkg/projection"
	"github.com/samirrijal/darkhorizon/internal/pkg/reproject"
)

func TestRows_MonotonicAndClamped(t *testing.T) {
	rows, err := reproject.Rows(140, -65, 75)
	if err != nil {
		t.Fatal(err)
	}
	if rows[0] != 0 {
		t.Errorf("top row should map to source row 0, got %d", rows[0])
	}
	if rows[len(rows)-1] != 139 {
		t.Errorf("bottom row should clamp to 139, got %d", rows[len(rows)-1])
	}
	for i := 1; i < len(rows); i++ {
		if rows[i] < rows[i-1] {
			t.Fatalf("rows not monotonic at %d: %d < %d", i, rows[i], rows[i-1])
		}
	}
}

func TestRows_EquatorMovesToMercatorPosition(t *testing.T) {
	const h = 1400
	rows, err := reproject.Rows(h, -65, 75)
	if err != nil {
		t.Fatal(err)
	}
	// Output row where the equator sits in Mercator space.
	top, bottom := projection.MercatorY(75), projection.MercatorY(-65)
	out := int(top / (top - bottom) * float64(h-1))
	// Plate-carrée source row of the equator.
	want := 75 * h / 140

	if d := rows[out] - want; d < -2 || d > 2 {
		t.Errorf("equator output row %d copies source row %d, want about %d", out, rows[out], want)
	}
	if out <= want {
		t.Errorf("equator should move south in Mercator (output row %d, source row %d)", out, want)
	}
}

func TestRows_RejectsBadExtent(t *testing.T) {
	for _, r := range [][2]float64{{-90, 10}, {10, 90}, {20, 10}, {5, 5}} {
		if _, err := reproject.Rows(10, r[0], r[1]); !errors.Is(err, reproject.ErrBadExtent) {
			t.Errorf("%v: expected ErrBadExtent, got %v", r, err)
		}
	}
}

func TestImage_PalettedKeepsPaletteAndTransparency(t *testing.T) {
	pal := color.Palette{
		color.NRGBA{0, 0, 0, 0},
		color.NRGBA{255, 0, 0, 255},
		color.NRGBA{0, 0, 255, 255},
	}
	src := image.NewPaletted(image.Rect(0, 0, 4, 20), pal)
	for y := 0; y < 20; y++ {
		for x := 0; x < 4; x++ {
			src.SetColorIndex(x, y, uint8(y%3))
		}
	}

	out, err := reproject.Image(src, -60, 60)
	if err != nil {
		t.Fatal(err)
	}
	p, ok := out.(*image.Paletted)
	if !ok {
		t.Fatalf("expected *image.Paletted, got %T", out)
	}
	if len(p.Palette) != len(pal) {
		t.Fatalf("palette size changed: %d", len(p.Palette))
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, p); err != nil {
		t.Fatal(err)
	}
	decoded, err := png.Decode(&buf)
	if err != nil {
		t.Fatal(err)
	}
	dp, ok := decoded.(*image.Paletted)
	if !ok {
		t.Fatalf("round trip lost the palette: %T", decoded)
	}
	if _, _, _, a := dp.Palette[0].RGBA(); a != 0 {
		t.Errorf("transparent entry lost its alpha")
	}
}

func TestImage_RowsFollowMapping(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 3, 50))
	for y := 0; y < 50; y++ {
		for x := 0; x < 3; x++ {
			src.SetNRGBA(x, y, color.NRGBA{R: uint8(y), A: 255})
		}
	}
	rows, _ := reproject.Rows(50, 34, 75)

	out, err := reproject.Image(src, 34, 75)
	if err != nil {
		t.Fatal(err)
	}
	n := out.(*image.NRGBA)
	for y, r := range rows {
		if got := n.NRGBAAt(2, y).R; int(got) != r {
			t.Fatalf("row %d: got source row %d, want %d", y, got, r)
		}
	}
}

func TestImage_ConvertsOtherTypes(t *testing.T) {
	src := image.NewRGBA64(image.Rect(0, 0, 2, 10))
	out, err := reproject.Image(src, -10, 10)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := out.(*image.NRGBA); !ok {
		t.Errorf("expected NRGBA, got %T", out)
	}
	if out.Bounds() != src.Bounds() {
		t.Errorf("bounds changed: %v", out.Bounds())
	}
}

type countingFetcher struct {
	data  []byte
	calls atomic.Int32
}

func (f *countingFetcher) Fetch(ctx context.Context, url string) (io.ReadCloser, error) {
	f.calls.Add(1)
	return io.NopCloser(bytes.NewReader(f.data)), nil
}

func TestRunner_CachesDownloads(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 4, 8))
	var buf bytes.Buffer
	if err := png.Encode(&buf, src); err != nil {
		t.Fatal(err)
	}

	dir := t.TempDir()
	fetcher := &countingFetcher{data: buf.Bytes()}
	runner := &reproject.Runner{
		Fetcher:  fetcher,
		CacheDir: filepath.Join(dir, "cache"),
		OutDir:   filepath.Join(dir, "out"),
	}
	entries := []reproject.Entry{{Name: "test", URL: "http://example.invalid/t.png", Filename: "t.png", LatMin: -10, LatMax: 40}}

	for i := 0; i < 2; i++ {
		if err := runner.Run(context.Background(), entries); err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
	}
	if n := fetcher.calls.Load(); n != 1 {
		t.Errorf("expected 1 download, got %d", n)
	}
	if _, err := os.Stat(filepath.Join(dir, "out", "t.png")); err != nil {
		t.Errorf("output missing: %v", err)
	}
}

func TestLoadManifest(t *testing.T) {
	path := filepath.Join(t.TempDir(), "manifest.yaml")
	yaml := "rasters:\n" +
		"  - name: europe\n" +
		"    url: https://example.invalid/Europe2024.png\n" +
		"    filename: Europe2024.png\n" +
		"    lat_min: 34\n" +
		"    lat_max: 75\n" +
		"    lng_min: -32\n" +
		"    lng_max: 70\n"
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}

	entries, err := reproject.LoadManifest(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name != "europe" || entries[0].LatMax != 75 || entries[0].LngMin != -32 {
		t.Errorf("unexpected entries %+v", entries)
	}
}

func TestLoadManifest_RejectsPolarExtent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "manifest.yaml")
	yaml := "rasters:\n  - {name: x, url: u, filename: x.png, lat_min: -90, lat_max: 90}\n"
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := reproject.LoadManifest(path); !errors.Is(err, reproject.ErrBadExtent) {
		t.Errorf("expected ErrBadExtent, got %v", err)
	}
}

func TestDefaultManifest_WorldLast(t *testing.T) {
	m := reproject.DefaultManifest()
	if m[len(m)-1].Name != "world" {
		t.Errorf("world raster should be the fallback, got %s last", m[len(m)-1].Name)
	}
	for _, e := range m {
		if _, err := reproject.Rows(10, e.LatMin, e.LatMax); err != nil {
			t.Errorf("%s: %v", e.Name, err)
		}
	}
}
