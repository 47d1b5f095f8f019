package http

import (
	"context"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/darkhorizon/internal/adapters/raster"
	"github.com/samirrijal/darkhorizon/internal/core/domain"
	"github.com/samirrijal/darkhorizon/internal/core/usecases"
)

// HealthHandler returns a basic liveness check.
func HealthHandler(deps *Dependencies) fiber.Handler {
	startedAt := time.Now()

	return func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "healthy",
			"uptime":  time.Since(startedAt).String(),
			"version": "dev",
		})
	}
}

// ReadyHandler checks DB, NATS, cache and raster availability.
// A raster that failed to load only makes the service not ready when every
// raster has failed, since the sampler falls back between sources.
func ReadyHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), 3*time.Second)
		defer cancel()

		checks := make(map[string]string)
		allOK := true

		// Database
		if deps.DB != nil {
			if err := deps.DB.Ping(ctx); err != nil {
				checks["database"] = "error: " + err.Error()
				allOK = false
			} else {
				checks["database"] = "ok"
			}
		} else {
			checks["database"] = "not configured"
		}

		// NATS
		if deps.NATS != nil {
			if deps.NATS.IsConnected() {
				checks["nats"] = "ok"
			} else {
				checks["nats"] = "disconnected"
				allOK = false
			}
		} else {
			checks["nats"] = "not configured"
		}

		// Valkey cache
		if deps.Cache != nil {
			if err := deps.Cache.Ping(ctx); err != nil {
				checks["cache"] = "error: " + err.Error()
				allOK = false
			} else {
				checks["cache"] = "ok"
			}
		} else {
			checks["cache"] = "in-process"
		}

		// Rasters
		statuses := rasterStatuses(deps.Sampler)
		failed := 0
		for _, s := range statuses {
			if s.State == raster.StateError.String() {
				failed++
			}
		}
		switch {
		case len(statuses) == 0:
			checks["rasters"] = "none configured"
			allOK = false
		case failed == len(statuses):
			checks["rasters"] = "all rasters failed to load"
			allOK = false
		case failed > 0:
			checks["rasters"] = fmt.Sprintf("degraded: %d of %d failed", failed, len(statuses))
		default:
			checks["rasters"] = "ok"
		}

		status := "ready"
		code := fiber.StatusOK
		if !allOK {
			status = "not ready"
			code = fiber.StatusServiceUnavailable
		}

		return c.Status(code).JSON(fiber.Map{
			"status": status,
			"checks": checks,
		})
	}
}

// rasterState is the part of *raster.Cache the status endpoints read.
type rasterState interface {
	State() raster.State
	Err() error
	URL() string
	Size() (width, height int)
}

func rasterStatuses(s *usecases.SampleService) []domain.RasterStatus {
	if s == nil {
		return nil
	}
	sources := s.Sources()
	out := make([]domain.RasterStatus, 0, len(sources))
	for _, src := range sources {
		st := domain.RasterStatus{Name: src.Name, Bounds: src.Bounds, State: "unknown"}
		if rs, ok := src.Pixels.(rasterState); ok {
			st.URL = rs.URL()
			st.State = rs.State().String()
			if rs.State() == raster.StateReady {
				st.Width, st.Height = rs.Size()
			}
			if err := rs.Err(); err != nil {
				st.Error = err.Error()
			}
		}
		out = append(out, st)
	}
	return out
}
