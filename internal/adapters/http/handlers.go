package http

import (
	"fmt"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/darkhorizon/internal/core/domain"
	"github.com/samirrijal/darkhorizon/internal/core/usecases"
)

// parseCoords reads the lat and lon query parameters. Both are required.
func parseCoords(c *fiber.Ctx) (lat, lon float64, err error) {
	rawLat, rawLon := c.Query("lat"), c.Query("lon")
	if rawLat == "" || rawLon == "" {
		return 0, 0, fmt.Errorf("lat and lon are required")
	}
	if lat, err = strconv.ParseFloat(rawLat, 64); err != nil {
		return 0, 0, fmt.Errorf("lat must be a number")
	}
	if lon, err = strconv.ParseFloat(rawLon, 64); err != nil {
		return 0, 0, fmt.Errorf("lon must be a number")
	}
	if !(domain.GeoPoint{Lat: lat, Lon: lon}).Valid() {
		return 0, 0, fmt.Errorf("lat must be within ±90 and lon within ±180")
	}
	return lat, lon, nil
}

// ClassificationResponse is the light-pollution class at a point.
type ClassificationResponse struct {
	Lat   float64              `json:"lat"`
	Lon   float64              `json:"lon"`
	Class *domain.PaletteEntry `json:"class"`
}

// ClassifyHandler samples the light-pollution raster at a point.
// A null class means the point is outside every raster or no raster could be loaded.
func ClassifyHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		lat, lon, err := parseCoords(c)
		if err != nil {
			return errBadRequest(c, err.Error())
		}

		entry, err := deps.Sampler.Classify(c.UserContext(), lat, lon)
		if err != nil {
			return errFromService(c, err, errInternal)
		}

		return c.JSON(ClassificationResponse{Lat: lat, Lon: lon, Class: entry})
	}
}

// ElevationResponse is the terrain height at a point.
type ElevationResponse struct {
	Lat       float64 `json:"lat"`
	Lon       float64 `json:"lon"`
	Elevation *int    `json:"elevation"`
}

// ElevationHandler looks up terrain height in meters.
func ElevationHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if deps.Elevation == nil {
			return errUnavailable(c, "elevation lookups are disabled")
		}
		lat, lon, err := parseCoords(c)
		if err != nil {
			return errBadRequest(c, err.Error())
		}

		meters, err := deps.Elevation.Lookup(c.UserContext(), lat, lon)
		if err != nil {
			return errFromService(c, err, errBadGateway)
		}

		return c.JSON(ElevationResponse{Lat: lat, Lon: lon, Elevation: meters})
	}
}

// SearchHandler geocodes free text.
func SearchHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if deps.Search == nil {
			return errUnavailable(c, "search is disabled")
		}
		query := c.Query("q")
		if query == "" {
			return errBadRequest(c, "q query parameter is required")
		}
		limit := c.QueryInt("limit", 0)

		places, err := deps.Search.Search(c.UserContext(), query, limit)
		if err != nil {
			return errFromService(c, err, errBadGateway)
		}

		return c.JSON(places)
	}
}

// LayersResponse is the layer snapshot for a zoom level.
type LayersResponse struct {
	Zoom int `json:"zoom"`
	domain.LayerVisibility
	Satellite bool `json:"satellite"`
}

// LayersHandler routes a zoom level and satellite request to the visible layers.
func LayersHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		raw := c.Query("zoom")
		if raw == "" {
			return errBadRequest(c, "zoom query parameter is required")
		}
		zoom, err := strconv.Atoi(raw)
		if err != nil || zoom < 0 || zoom > 24 {
			return errBadRequest(c, "zoom must be an integer between 0 and 24")
		}
		satellite := c.QueryBool("satellite", false)

		v, effective := usecases.Route(zoom, satellite, deps.Session.Layers)
		return c.JSON(LayersResponse{Zoom: zoom, LayerVisibility: v, Satellite: effective})
	}
}

// PaletteHandler returns the classification legend in lookup order.
func PaletteHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Set("Cache-Control", "public, max-age=86400")
		return c.JSON(deps.Sampler.Palette().Entries())
	}
}

// RastersHandler reports the load state of each configured raster.
func RastersHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.JSON(rasterStatuses(deps.Sampler))
	}
}

// WarmRastersHandler loads every raster and reports the result.
func WarmRastersHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := deps.Sampler.Warm(c.UserContext()); err != nil {
			LoggerFromCtx(c.UserContext()).Warn("raster warm-up incomplete", "error", err)
			return c.Status(fiber.StatusServiceUnavailable).JSON(rasterStatuses(deps.Sampler))
		}
		return c.JSON(rasterStatuses(deps.Sampler))
	}
}

// CreateSpotRequest is the body of POST /v1/spots.
type CreateSpotRequest struct {
	Name string  `json:"name"`
	Lat  float64 `json:"lat"`
	Lon  float64 `json:"lon"`
}

// CreateSpotHandler saves an observing spot.
func CreateSpotHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if deps.Spots == nil {
			return errUnavailable(c, "spot storage is not configured")
		}
		var req CreateSpotRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}

		spot, err := deps.Spots.Create(c.UserContext(), req.Name, req.Lat, req.Lon)
		if err != nil {
			return errFromService(c, err, errInternal)
		}

		return c.Status(fiber.StatusCreated).JSON(spot)
	}
}

// NearbySpotsHandler returns saved spots around a point.
func NearbySpotsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if deps.Spots == nil {
			return errUnavailable(c, "spot storage is not configured")
		}
		lat, lon, err := parseCoords(c)
		if err != nil {
			return errBadRequest(c, err.Error())
		}
		radius := c.QueryFloat("radius", 25_000)
		limit := c.QueryInt("limit", 50)

		spots, err := deps.Spots.FindNearby(c.UserContext(), lat, lon, radius, limit)
		if err != nil {
			return errFromService(c, err, errInternal)
		}
		if spots == nil {
			spots = []domain.Spot{}
		}

		return c.JSON(spots)
	}
}

// GetSpotHandler returns a single spot by ID.
func GetSpotHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if deps.Spots == nil {
			return errUnavailable(c, "spot storage is not configured")
		}
		spot, err := deps.Spots.GetByID(c.UserContext(), c.Params("id"))
		if err != nil {
			return errFromService(c, err, errInternal)
		}
		return c.JSON(spot)
	}
}
