package http

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"

	natsadapter "github.com/samirrijal/shopradar/internal/adapters/nats"
	"github.com/samirrijal/shopradar/internal/core/domain"
	"github.com/samirrijal/shopradar/internal/core/usecases"
)

// queryFloat parses a required float query parameter.
func queryFloat(c *fiber.Ctx, name string) (float64, error) {
	raw := c.Query(name)
	if raw == "" {
		return 0, errors.New(name + " is required")
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, errors.New(name + " must be a number")
	}
	return v, nil
}

// NearbyShopsHandler returns shops around a point.
func NearbyShopsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		lat, err := queryFloat(c, "lat")
		if err != nil {
			return errBadRequest(c, err.Error())
		}
		lng, err := queryFloat(c, "lng")
		if err != nil {
			return errBadRequest(c, err.Error())
		}
		radius, err := queryFloat(c, "radius_km")
		if err != nil {
			return errBadRequest(c, err.Error())
		}
		limit := c.QueryInt("limit", 50)

		if !(domain.GeoPoint{Lat: lat, Lng: lng}).Valid() {
			return errBadRequest(c, "lat must be in [-90, 90] and lng in [-180, 180]")
		}
		if !usecases.ValidSearchRadius(radius) {
			return errBadRequest(c, "radius_km must be in (0, 5000]")
		}

		page, err := deps.Shops.SearchNearby(c.UserContext(), lat, lng, radius, limit)
		if err != nil {
			LoggerFromCtx(c.UserContext()).Error("search nearby failed", "error", err)
			return errInternal(c, "search failed")
		}

		c.Set("Cache-Control", "public, max-age=300")
		return c.JSON(page)
	}
}

// ListShopsHandler returns one page of all shops.
func ListShopsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		offset := c.QueryInt("offset", 0)
		limit := c.QueryInt("limit", 100)

		page, err := deps.Shops.ListAll(c.UserContext(), limit, offset)
		if err != nil {
			LoggerFromCtx(c.UserContext()).Error("list shops failed", "error", err)
			return errInternal(c, "list failed")
		}

		SetLinkHeaders(c, page.Pagination)
		return c.JSON(page)
	}
}

// GetShopHandler returns a single shop by ID.
func GetShopHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		if id == "" {
			return errBadRequest(c, "shop id is required")
		}

		shop, err := deps.Shops.GetByID(c.UserContext(), id)
		if errors.Is(err, domain.ErrShopNotFound) {
			return errNotFound(c, "shop not found")
		}
		if err != nil {
			LoggerFromCtx(c.UserContext()).Error("get shop failed", "id", id, "error", err)
			return errInternal(c, "lookup failed")
		}

		return c.JSON(shop)
	}
}

// ViewportHandler forwards a settled viewport to a locator session.
func ViewportHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		sessionID := c.Params("id")
		if !natsadapter.ValidSessionID(sessionID) {
			return errBadRequest(c, "invalid session id")
		}

		var v domain.Viewport
		if err := c.BodyParser(&v); err != nil {
			return errBadRequest(c, "invalid request body")
		}
		if err := v.Validate(); err != nil {
			return errBadRequest(c, err.Error())
		}
		if deps.Events == nil {
			return errUnavailable(c, "event bus not available")
		}

		if err := deps.Events.PublishViewport(c.UserContext(), sessionID, v); err != nil {
			LoggerFromCtx(c.UserContext()).Error("publish viewport failed", "session", sessionID, "error", err)
			return errInternal(c, "publish failed")
		}

		return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
			"status":    "accepted",
			"session":   sessionID,
			"radius_km": usecases.PlanRadius(v),
		})
	}
}

// ForegroundHandler signals that a session's app returned to the foreground.
func ForegroundHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		sessionID := c.Params("id")
		if !natsadapter.ValidSessionID(sessionID) {
			return errBadRequest(c, "invalid session id")
		}
		if deps.Events == nil {
			return errUnavailable(c, "event bus not available")
		}

		if err := deps.Events.PublishForeground(c.UserContext(), sessionID); err != nil {
			LoggerFromCtx(c.UserContext()).Error("publish foreground failed", "session", sessionID, "error", err)
			return errInternal(c, "publish failed")
		}

		return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
			"status":  "accepted",
			"session": sessionID,
		})
	}
}
