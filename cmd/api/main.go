package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/nats-io/nats.go"

	"github.com/samirrijal/darkhorizon/internal/adapters/http"
	"github.com/samirrijal/darkhorizon/internal/adapters/memory"
	natsadapter "github.com/samirrijal/darkhorizon/internal/adapters/nats"
	"github.com/samirrijal/darkhorizon/internal/adapters/openmeteo"
	"github.com/samirrijal/darkhorizon/internal/adapters/photon"
	"github.com/samirrijal/darkhorizon/internal/adapters/postgres"
	"github.com/samirrijal/darkhorizon/internal/adapters/raster"
	"github.com/samirrijal/darkhorizon/internal/adapters/valkey"
	"github.com/samirrijal/darkhorizon/internal/core/ports"
	"github.com/samirrijal/darkhorizon/internal/core/usecases"
	"github.com/samirrijal/darkhorizon/internal/pkg/config"
	"github.com/samirrijal/darkhorizon/internal/pkg/logging"
	"github.com/samirrijal/darkhorizon/internal/pkg/palette"
	"github.com/samirrijal/darkhorizon/internal/pkg/telemetry"
)

func main() {
	cfg, err := config.Load("darkhorizon-api")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logging.Setup(cfg.Log.Level, cfg.Log.Format)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Telemetry
	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.TempoAddr)
		if err != nil {
			slog.Warn("telemetry init failed", "error", err)
		} else {
			defer shutdown()
		}
	}

	// Rasters, most detailed first
	fetcher := raster.NewFetcher(cfg.Raster.FetchTimeout)
	sources := make([]usecases.RasterSource, 0, len(cfg.Raster.Sources))
	for _, s := range cfg.Raster.Sources {
		sources = append(sources, usecases.RasterSource{
			Name:   s.Name,
			Bounds: s.Bounds(),
			Pixels: raster.New(s.Name, s.URL, fetcher),
		})
	}

	pal := palette.Default()
	if len(cfg.Palette) > 0 {
		pal, err = palette.New(cfg.Palette)
		if err != nil {
			log.Fatalf("palette: %v", err)
		}
	}

	// Cache: valkey when reachable, in-process otherwise
	var (
		cache       ports.CacheService
		cachePinger http.Pinger
	)
	vc, err := valkey.New(cfg.Valkey.Addr, "darkhorizon:")
	if err != nil {
		slog.Warn("valkey unavailable, using in-process cache", "error", err)
		local := memory.New(cfg.Valkey.LocalSize)
		defer local.Close()
		cache = local
	} else {
		defer vc.Close()
		cache, cachePinger = vc, vc
	}

	// NATS
	var (
		events   ports.EventPublisher
		natsConn *nats.Conn
	)
	if nc, err := natsadapter.Connect(cfg.NATS.URL); err != nil {
		slog.Warn("nats unavailable", "error", err)
	} else {
		natsConn = nc
		defer natsConn.Close()
		pub, err := natsadapter.NewPublisher(natsConn)
		if err != nil {
			slog.Warn("spot events disabled", "error", err)
		} else {
			events = pub
		}
	}

	// Use cases
	sampler := usecases.NewSampleService(sources, pal)
	elevationSvc := usecases.NewElevationService(
		openmeteo.New(cfg.Elevation.BaseURL, cfg.Elevation.Timeout), cache, cfg.Elevation.CacheTTL)
	searchSvc := usecases.NewSearchService(
		photon.New(cfg.Geocoder.BaseURL, cfg.Geocoder.Timeout), cache, cfg.Geocoder.CacheTTL, cfg.Query.SearchLimit)

	deps := &http.Dependencies{
		Sampler:   sampler,
		Elevation: elevationSvc,
		Search:    searchSvc,
		Session: usecases.SessionConfig{
			Layers: usecases.LayerConfig{
				DetailZoom:       cfg.Layers.DetailZoom,
				SatelliteZoom:    cfg.Layers.SatelliteZoom,
				OverviewOpacity:  cfg.Layers.OverviewOpacity,
				DetailOpacity:    cfg.Layers.DetailOpacity,
				SatelliteOpacity: cfg.Layers.SatelliteOpacity,
			},
			InitialZoom:    usecases.DefaultSessionConfig().InitialZoom,
			SearchDelay:    cfg.Query.SearchDebounce,
			ElevationDelay: cfg.Query.ElevationDebounce,
			SampleDelay:    cfg.Query.SampleDebounce,
			SearchLimit:    cfg.Query.SearchLimit,
		},
		NATS:  natsConn,
		Cache: cachePinger,
	}

	// Database is optional: without it spot endpoints answer 503.
	db, err := postgres.New(ctx, cfg.Database.DSN())
	if err != nil {
		slog.Warn("database unavailable, spot storage disabled", "error", err)
	} else {
		defer db.Close()
		deps.DB = db
		deps.Spots = usecases.NewSpotService(postgres.NewSpotRepo(db), sampler, elevationSvc, events)
	}

	if cfg.Raster.WarmOnStart {
		go func() {
			start := time.Now()
			if err := sampler.Warm(ctx); err != nil {
				slog.Warn("raster warm-up incomplete", "error", err)
				return
			}
			slog.Info("rasters loaded", "count", len(sources), "took", time.Since(start).String())
		}()
	}

	// Fiber
	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    64 * 1024,
		AppName:      "DarkHorizon API",
	})
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept, If-None-Match",
		MaxAge:       3600,
	}))

	http.SetupRoutes(app, deps)

	// Graceful shutdown
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		slog.Info("API server starting", "addr", addr, "rasters", len(sources))
		if err := app.Listen(addr); err != nil {
			log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	slog.Info("shutdown signal received, draining connections...", "signal", sig.String())
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		slog.Error("forced shutdown", "error", err)
	}

	slog.Info("server stopped")
}
