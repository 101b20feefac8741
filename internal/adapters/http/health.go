package http

import (
	"context"
	"runtime/debug"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sourcegraph/conc"
)

func buildVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
		return info.Main.Version
	}
	return "dev"
}

// HealthHandler returns a basic liveness check.
func HealthHandler(deps *Dependencies) fiber.Handler {
	startedAt := time.Now()
	version := buildVersion()

	return func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "healthy",
			"uptime":  time.Since(startedAt).String(),
			"version": version,
		})
	}
}

// readinessCheck reports "ok" or a failure description, and whether the
// service may take traffic.
type readinessCheck struct {
	name string
	run  func(ctx context.Context) (string, bool)
}

func readinessChecks(deps *Dependencies) []readinessCheck {
	return []readinessCheck{
		{name: "database", run: func(ctx context.Context) (string, bool) {
			if deps.DB == nil {
				return "not configured", false
			}
			if err := deps.DB.Ping(ctx); err != nil {
				return "error: " + err.Error(), false
			}
			return "ok", true
		}},
		{name: "nats", run: func(ctx context.Context) (string, bool) {
			if deps.NATS == nil {
				return "not configured", true
			}
			if !deps.NATS.IsConnected() {
				return "disconnected", false
			}
			return "ok", true
		}},
		{name: "cache", run: func(ctx context.Context) (string, bool) {
			if deps.Cache == nil {
				return "not configured", true
			}
			if err := deps.Cache.Ping(ctx); err != nil {
				return "error: " + err.Error(), false
			}
			return "ok", true
		}},
	}
}

// ReadyHandler runs the DB, NATS and cache checks in parallel. A configured
// dependency that fails makes the service not ready; the database must be
// configured.
func ReadyHandler(deps *Dependencies) fiber.Handler {
	checks := readinessChecks(deps)

	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), 3*time.Second)
		defer cancel()

		var (
			wg      conc.WaitGroup
			mu      sync.Mutex
			results = make(map[string]string, len(checks))
			allOK   = true
		)
		for _, chk := range checks {
			chk := chk
			wg.Go(func() {
				msg, ok := chk.run(ctx)
				mu.Lock()
				defer mu.Unlock()
				results[chk.name] = msg
				if !ok {
					allOK = false
				}
			})
		}
		wg.Wait()

		status, code := "ready", fiber.StatusOK
		if !allOK {
			status, code = "not ready", fiber.StatusServiceUnavailable
		}
		return c.Status(code).JSON(fiber.Map{
			"status": status,
			"checks": results,
		})
	}
}
