package reproject

import (
	"context"
	"fmt"
	"image"
	"image/png"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/samirrijal/darkhorizon/internal/adapters/raster"
	"github.com/samirrijal/darkhorizon/internal/core/domain"
)

// Entry is one raster to download and reproject.
type Entry struct {
	Name     string  `mapstructure:"name"`
	URL      string  `mapstructure:"url"`
	Filename string  `mapstructure:"filename"`
	LatMin   float64 `mapstructure:"lat_min"`
	LatMax   float64 `mapstructure:"lat_max"`
	LngMin   float64 `mapstructure:"lng_min"`
	LngMax   float64 `mapstructure:"lng_max"`
}

// Bounds is the sampling domain of the reprojected output.
func (e Entry) Bounds() domain.RasterBounds {
	return domain.RasterBounds{
		Projection: domain.WebMercator,
		LatMin:     e.LatMin,
		LatMax:     e.LatMax,
		LngMin:     e.LngMin,
		LngMax:     e.LngMax,
	}
}

const lorenzBase = "https://djlorenz.github.io/astronomy/lp2024"

// DefaultManifest lists the Lorenz 2024 rasters with their stated extents.
// Regional rasters come first so the output can be used as a lookup order.
func DefaultManifest() []Entry {
	return []Entry{
		{Name: "north_america", URL: lorenzBase + "/NorthAmerica2024.png", Filename: "NorthAmerica.png", LatMin: 7, LatMax: 75, LngMin: -180, LngMax: -51},
		{Name: "south_america", URL: lorenzBase + "/SouthAmerica2024.png", Filename: "SouthAmerica.png", LatMin: -57, LatMax: 14, LngMin: -93, LngMax: -33},
		{Name: "europe", URL: lorenzBase + "/Europe2024.png", Filename: "Europe2024.png", LatMin: 34, LatMax: 75, LngMin: -32, LngMax: 70},
		{Name: "africa", URL: lorenzBase + "/Africa2024.png", Filename: "Africa.png", LatMin: -36, LatMax: 38, LngMin: -26, LngMax: 64},
		{Name: "asia", URL: lorenzBase + "/Asia2024.png", Filename: "Asia.png", LatMin: 5, LatMax: 75, LngMin: 60, LngMax: 180},
		{Name: "australia", URL: lorenzBase + "/Australia2024.png", Filename: "Australia.png", LatMin: -48, LatMax: 8, LngMin: 94, LngMax: 180},
		{Name: "world", URL: lorenzBase + "/world2024_low3.png", Filename: "world_low3.png", LatMin: -65, LatMax: 75, LngMin: -180, LngMax: 180},
	}
}

// LoadManifest reads a YAML or JSON manifest with a top-level "rasters" list.
func LoadManifest(path string) ([]Entry, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	var m struct {
		Rasters []Entry `mapstructure:"rasters"`
	}
	if err := v.Unmarshal(&m); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}
	if len(m.Rasters) == 0 {
		return nil, fmt.Errorf("manifest %s lists no rasters", path)
	}
	for i, e := range m.Rasters {
		if e.URL == "" || e.Filename == "" {
			return nil, fmt.Errorf("manifest entry %d: url and filename are required", i)
		}
		if !(e.LatMin > -90 && e.LatMin < e.LatMax && e.LatMax < 90) {
			return nil, fmt.Errorf("manifest entry %d (%s): %w", i, e.Filename, ErrBadExtent)
		}
	}
	return m.Rasters, nil
}

// Runner downloads rasters into CacheDir once and writes reprojected PNGs to OutDir.
type Runner struct {
	Fetcher  raster.Fetcher
	CacheDir string
	OutDir   string
}

// Run processes every entry and stops at the first failure.
func (r *Runner) Run(ctx context.Context, entries []Entry) error {
	for _, dir := range []string{r.CacheDir, r.OutDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		cached, err := r.download(ctx, e)
		if err != nil {
			return fmt.Errorf("%s: %w", e.Filename, err)
		}
		out := filepath.Join(r.OutDir, e.Filename)
		if err := File(cached, out, e.LatMin, e.LatMax); err != nil {
			return fmt.Errorf("%s: %w", e.Filename, err)
		}
		slog.Info("reprojected", "name", e.Name, "output", out, "lat_min", e.LatMin, "lat_max", e.LatMax)
	}
	return nil
}

// download returns the cached copy of e, fetching it first when missing.
func (r *Runner) download(ctx context.Context, e Entry) (string, error) {
	path := filepath.Join(r.CacheDir, e.Filename)
	if info, err := os.Stat(path); err == nil && info.Size() > 0 {
		slog.Info("cache hit", "file", path, "bytes", info.Size())
		return path, nil
	}

	slog.Info("downloading", "url", e.URL)
	body, err := r.Fetcher.Fetch(ctx, e.URL)
	if err != nil {
		return "", err
	}
	defer body.Close()

	tmp, err := os.CreateTemp(r.CacheDir, e.Filename+".*.part")
	if err != nil {
		return "", err
	}
	n, err := io.Copy(tmp, body)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("download %s: %w", e.URL, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return "", err
	}
	slog.Info("cached", "file", path, "bytes", n)
	return path, nil
}

// File reprojects the image at src and writes it to dst as PNG.
func File(src, dst string, latMin, latMax float64) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	img, _, err := image.Decode(in)
	if err != nil {
		return fmt.Errorf("decode %s: %w", src, err)
	}
	out, err := Image(img, latMin, latMax)
	if err != nil {
		return err
	}

	f, err := os.Create(dst)
	if err != nil {
		return err
	}
	if err := png.Encode(f, out); err != nil {
		f.Close()
		return fmt.Errorf("encode %s: %w", dst, err)
	}
	return f.Close()
}
