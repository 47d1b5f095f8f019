package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/fiber/v2/middleware/timeout"
	"github.com/gofiber/websocket/v2"

	"github.com/samirrijal/darkhorizon/internal/pkg/metrics"
)

const (
	requestTimeout = 15 * time.Second
	// Warm-up downloads every raster, so it gets a longer budget.
	warmTimeout = 2 * time.Minute
)

// SetupRoutes registers all REST, GraphQL, and WebSocket routes.
func SetupRoutes(app *fiber.App, deps *Dependencies) {
	// Prometheus metrics
	app.Use(metrics.Middleware())
	app.Get("/metrics", metrics.Handler())

	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
	}))

	app.Use(requestid.New())
	app.Use(RequestIDLogMiddleware())
	app.Use(AccessLogMiddleware())

	// Rate limiting: 300 requests per minute per IP. Lookups are debounced
	// client-side, so normal panning stays well below this.
	app.Use(limiter.New(limiter.Config{
		Max:        300,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		Next: func(c *fiber.Ctx) bool {
			return c.Path() == "/ws" || c.Path() == "/metrics"
		},
		LimitReached: func(c *fiber.Ctx) error {
			return newError(c, fiber.StatusTooManyRequests, "rate_limited", "too many requests, please try again later")
		},
	}))

	// Security headers + API version
	app.Use(func(c *fiber.Ctx) error {
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-Frame-Options", "DENY")
		c.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Set("X-API-Version", "1.0.0")
		return c.Next()
	})

	app.Use(ETagMiddleware())
	app.Use(CachingMiddleware())

	// Health & readiness (no timeout)
	app.Get("/v1/health", HealthHandler(deps))
	app.Get("/v1/ready", ReadyHandler(deps))

	v1 := app.Group("/v1")
	v1.Get("/classify", timeout.NewWithContext(ClassifyHandler(deps), requestTimeout))
	v1.Get("/elevation", timeout.NewWithContext(ElevationHandler(deps), requestTimeout))
	v1.Get("/search", timeout.NewWithContext(SearchHandler(deps), requestTimeout))
	v1.Get("/layers", LayersHandler(deps))
	v1.Get("/palette", PaletteHandler(deps))
	v1.Get("/rasters", RastersHandler(deps))
	v1.Post("/rasters/warm", timeout.NewWithContext(WarmRastersHandler(deps), warmTimeout))
	v1.Post("/spots", timeout.NewWithContext(CreateSpotHandler(deps), requestTimeout))
	v1.Get("/spots/nearby", timeout.NewWithContext(NearbySpotsHandler(deps), requestTimeout))
	v1.Get("/spots/:id", timeout.NewWithContext(GetSpotHandler(deps), requestTimeout))

	app.Post("/graphql", timeout.NewWithContext(GraphQLHandler(deps), requestTimeout))

	SetupDocs(app)

	// WebSocket viewport sessions
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws", websocket.New(WebSocketHandler(deps)))
}
