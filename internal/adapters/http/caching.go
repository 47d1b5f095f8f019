package http

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

// cacheRule maps a path prefix to a Cache-Control value. The first match wins.
type cacheRule struct {
	prefix string
	value  string
}

var cacheRules = []cacheRule{
	{"/v1/health", "no-store"},
	{"/v1/ready", "no-store"},
	{"/metrics", "no-cache"},
	{"/v1/palette", "public, max-age=86400"},
	{"/v1/layers", "public, max-age=86400"},
	{"/v1/classify", "public, max-age=3600"},
	{"/v1/elevation", "public, max-age=86400"},
	{"/v1/search", "public, max-age=300"},
	{"/v1/rasters", "no-cache"},
	{"/v1/spots/nearby", "public, max-age=30"},
	{"/v1/spots/", "public, max-age=300"},
	{"/v1/", "public, max-age=60"},
}

// CachingMiddleware sets Cache-Control on successful GET responses unless the
// handler already chose one.
func CachingMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		err := c.Next()

		if c.Method() != fiber.MethodGet {
			return err
		}
		if c.Response().StatusCode() >= 400 {
			c.Set(fiber.HeaderCacheControl, "no-store")
			return err
		}
		if existing := c.GetRespHeader(fiber.HeaderCacheControl); existing != "" {
			return err
		}

		if ttl := cacheControlFor(c.Path()); ttl != "" {
			c.Set(fiber.HeaderCacheControl, ttl)
		}
		return err
	}
}

func cacheControlFor(path string) string {
	for _, r := range cacheRules {
		if strings.HasPrefix(path, r.prefix) {
			return r.value
		}
	}
	return ""
}
