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
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"golang.org/x/sync/errgroup"

	"github.com/samirrijal/shopradar/internal/adapters/http"
	natsadapter "github.com/samirrijal/shopradar/internal/adapters/nats"
	"github.com/samirrijal/shopradar/internal/adapters/postgres"
	"github.com/samirrijal/shopradar/internal/adapters/valkey"
	"github.com/samirrijal/shopradar/internal/core/usecases"
	"github.com/samirrijal/shopradar/internal/pkg/config"
	"github.com/samirrijal/shopradar/internal/pkg/logging"
	"github.com/samirrijal/shopradar/internal/pkg/metrics"
	"github.com/samirrijal/shopradar/internal/pkg/telemetry"
)

func main() {
	cfg, err := config.Load("shopradar-api")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logging.Setup(cfg.Telemetry.ServiceName, cfg.Log.Level, cfg.Log.Format)

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

	// Database
	db, err := postgres.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	// Cache
	cache, err := valkey.New(cfg.Valkey.Addr, "shopradar")
	if err != nil {
		slog.Warn("valkey unavailable", "error", err)
	} else {
		defer cache.Close()
	}

	deps := &http.Dependencies{
		DB:    db,
		Cache: cache,
	}

	// Session events (viewport + foreground) go out over JetStream / core NATS.
	pub, err := natsadapter.NewPublisher(cfg.NATS.URL)
	if err != nil {
		slog.Warn("nats unavailable", "error", err)
	} else {
		defer pub.Close()
		deps.Events = pub
	}

	// Raw NATS connection for WebSocket relay
	natsConn, err := natsadapter.RawConn(cfg.NATS.URL)
	if err != nil {
		slog.Warn("nats ws conn unavailable", "error", err)
	} else {
		defer natsConn.Close()
		deps.NATS = natsConn
	}

	shopRepo := postgres.NewShopRepo(db)
	if cache != nil {
		deps.Shops = usecases.NewShopService(shopRepo, cache)
	} else {
		deps.Shops = usecases.NewShopService(shopRepo, nil)
	}

	// Fiber
	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    1024 * 1024, // 1 MB max request body
		AppName:      "ShopRadar API",
	})
	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     "http://localhost:3000, http://localhost:5173, http://localhost:8081",
		AllowMethods:     "GET,POST,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: false,
		MaxAge:           3600,
	}))

	http.SetupRoutes(app, deps)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		slog.Info("API server starting", "addr", addr)
		if err := app.Listen(addr); err != nil {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})

	// Pool gauges for /metrics
	g.Go(func() error {
		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()
		for {
			metrics.UpdateDBPoolMetrics(db.Stat())
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
			}
		}
	})

	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		select {
		case sig := <-quit:
			slog.Info("shutdown signal received, draining connections...", "signal", sig.String())
		case <-gctx.Done():
		}

		// Give in-flight requests up to 10s to complete
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := app.ShutdownWithContext(shutdownCtx); err != nil {
			slog.Error("forced shutdown", "error", err)
		}
		cancel()
		return nil
	})

	if err := g.Wait(); err != nil {
		slog.Error("api stopped with error", "error", err)
	}
	slog.Info("server stopped")
}
