package http

import (
	"hash/fnv"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// ETagMiddleware tags successful GET responses with a weak validator and
// answers 304 when the client already holds a matching representation.
// Responses marked no-store are left untagged.
func ETagMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := c.Next(); err != nil {
			return err
		}
		if c.Method() != fiber.MethodGet || c.Response().StatusCode() != fiber.StatusOK {
			return nil
		}
		if strings.Contains(string(c.Response().Header.Peek(fiber.HeaderCacheControl)), "no-store") {
			return nil
		}

		body := c.Response().Body()
		if len(body) == 0 {
			return nil
		}

		h := fnv.New64a()
		_, _ = h.Write(body)
		etag := `W/"` + strconv.FormatUint(h.Sum64(), 36) + `-` + strconv.Itoa(len(body)) + `"`
		c.Set(fiber.HeaderETag, etag)

		if etagMatches(c.Get(fiber.HeaderIfNoneMatch), etag) {
			c.Status(fiber.StatusNotModified)
			c.Response().ResetBody()
		}
		return nil
	}
}

// etagMatches applies the weak comparison of If-None-Match, which may hold
// "*" or a comma-separated list.
func etagMatches(header, etag string) bool {
	if header == "" {
		return false
	}
	want := strings.TrimPrefix(etag, "W/")
	for _, candidate := range strings.Split(header, ",") {
		candidate = strings.TrimSpace(candidate)
		if candidate == "*" || strings.TrimPrefix(candidate, "W/") == want {
			return true
		}
	}
	return false
}
