package http

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

// CachingMiddleware sets Cache-Control headers on GET responses based on endpoint.
// Adds sensible defaults if not already set by the handler.
func CachingMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		err := c.Next()

		// Only set on GET requests
		if c.Method() != "GET" {
			return err
		}

		// Don't override if already set
		if existing := string(c.Response().Header.Peek("Cache-Control")); existing != "" {
			return err
		}

		path := c.Path()
		var ttl string

		switch {
		case path == "/v1/health" || path == "/v1/ready":
			ttl = "public, max-age=10"

		case path == "/metrics":
			ttl = "no-cache"

		case path == "/graphql":
			ttl = "private, max-age=0"

		case strings.HasPrefix(path, "/v1/shops/nearby"):
			ttl = "public, max-age=300" // matches the nearby cache TTL

		case strings.HasPrefix(path, "/v1/shops/"):
			ttl = "public, max-age=600" // single shop

		case strings.HasPrefix(path, "/v1/"):
			ttl = "public, max-age=300"
		}

		if ttl != "" {
			c.Set("Cache-Control", ttl)
		}

		return err
	}
}
