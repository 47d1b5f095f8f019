package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/samirrijal/darkhorizon/internal/adapters/raster"
	"github.com/samirrijal/darkhorizon/internal/pkg/logging"
	"github.com/samirrijal/darkhorizon/internal/pkg/reproject"
)

func main() {
	var (
		manifest = flag.String("manifest", "", "YAML/JSON manifest of rasters (default: built-in Lorenz 2024 table)")
		cacheDir = flag.String("cache", filepath.Join("cache", "lp"), "download cache directory")
		outDir   = flag.String("out", filepath.Join("public", "lp"), "output directory")
		src      = flag.String("src", "", "reproject a single local file instead of a manifest")
		dst      = flag.String("dst", "", "output path for -src")
		latMin   = flag.Float64("lat-min", 0, "southern edge of -src in degrees")
		latMax   = flag.Float64("lat-max", 0, "northern edge of -src in degrees")
		timeout  = flag.Duration("timeout", 10*time.Minute, "per-download timeout")
		logLevel = flag.String("log-level", "info", "debug, info, warn or error")
	)
	flag.Parse()
	logging.Setup(*logLevel, "text")

	if *src != "" {
		if *dst == "" {
			fmt.Fprintln(os.Stderr, "-dst is required with -src")
			os.Exit(2)
		}
		if err := reproject.File(*src, *dst, *latMin, *latMax); err != nil {
			slog.Error("reprojection failed", "src", *src, "error", err)
			os.Exit(1)
		}
		slog.Info("reprojected", "src", *src, "dst", *dst)
		return
	}

	entries := reproject.DefaultManifest()
	if *manifest != "" {
		var err error
		if entries, err = reproject.LoadManifest(*manifest); err != nil {
			slog.Error("manifest", "error", err)
			os.Exit(1)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runner := &reproject.Runner{
		Fetcher:  raster.NewFetcher(*timeout),
		CacheDir: *cacheDir,
		OutDir:   *outDir,
	}
	start := time.Now()
	if err := runner.Run(ctx, entries); err != nil {
		slog.Error("batch failed", "error", err)
		os.Exit(1)
	}
	slog.Info("all rasters reprojected", "count", len(entries), "took", time.Since(start).String())

	// Print a raster.sources block for the API config.
	fmt.Println("raster:\n  sources:")
	for _, e := range entries {
		b := e.Bounds()
		fmt.Printf("    - {name: %s, url: %s, projection: %s, lat_min: %g, lat_max: %g, lng_min: %g, lng_max: %g}\n",
			e.Name, filepath.ToSlash(filepath.Join(*outDir, e.Filename)), b.Projection, b.LatMin, b.LatMax, b.LngMin, b.LngMax)
	}
}
