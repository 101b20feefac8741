package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/samirrijal/shopradar/internal/adapters/device"
	natsadapter "github.com/samirrijal/shopradar/internal/adapters/nats"
	"github.com/samirrijal/shopradar/internal/adapters/shopapi"
	"github.com/samirrijal/shopradar/internal/core/domain"
	"github.com/samirrijal/shopradar/internal/core/usecases"
	"github.com/samirrijal/shopradar/internal/pkg/config"
	"github.com/samirrijal/shopradar/internal/pkg/logging"
	"github.com/samirrijal/shopradar/internal/pkg/telemetry"
)

// The locator runs one headless map session. Viewport and foreground events
// arrive over NATS; every state change is published as a render frame.
func main() {
	cfg, err := config.Load("shopradar-locator")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	base := logging.Setup(cfg.Telemetry.ServiceName, cfg.Log.Level, cfg.Log.Format)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.TempoAddr)
		if err != nil {
			slog.Warn("telemetry init failed", "error", err)
		} else {
			defer shutdown()
		}
	}

	sessionID := os.Getenv("SHOPRADAR_SESSION_ID")
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	if !natsadapter.ValidSessionID(sessionID) {
		log.Fatalf("invalid session id %q", sessionID)
	}
	logger := base.With("session", sessionID)

	pub, err := natsadapter.NewPublisher(cfg.NATS.URL)
	if err != nil {
		log.Fatalf("nats: %v", err)
	}
	defer pub.Close()

	sub, err := natsadapter.NewSubscriber(pub.Conn())
	if err != nil {
		log.Fatalf("nats subscriber: %v", err)
	}
	defer sub.Close()

	// Simulated device
	sim := device.NewSimulator(deviceProfile(cfg.Device))
	settings := device.NewSettingsLauncher(sim, pub, sessionID)
	settings.GrantOnOpen = cfg.Device.SettingsGrants

	query := shopapi.New(shopapi.Options{
		BaseURL: cfg.ShopAPI.BaseURL,
		Timeout: cfg.ShopAPI.Timeout,
	})

	// Location changes are handed to the render loop; the latest state wins.
	changes := make(chan domain.LocationState, 1)

	locOpts := usecases.DefaultLocationOptions()
	locOpts.Fallback = domain.GeoPoint{Lat: cfg.Location.FallbackLat, Lng: cfg.Location.FallbackLng}
	locOpts.ReentryDelay = cfg.Location.ReentryDelay
	locOpts.LastKnown.MaxAge = cfg.Location.LastKnownMaxAge
	locOpts.LastKnown.RequiredAccuracyM = cfg.Location.LastKnownAccuracyM
	locOpts.Current.TimeInterval = cfg.Location.CurrentTimeInterval
	locOpts.Logger = logger
	locOpts.OnChange = func(s domain.LocationState) {
		select {
		case <-changes:
		default:
		}
		changes <- s
	}

	location := usecases.NewLocationController(sim, settings, locOpts)
	collector := usecases.NewShopCollector(query, cfg.Collector.SearchLimit, logger)
	session := usecases.NewMapSession(location, collector, query, usecases.SessionOptions{
		NearbyRadiusKm: cfg.Session.NearbyRadiusKm,
		NearbyLimit:    cfg.Session.NearbyLimit,
		AllLimit:       cfg.Session.AllLimit,
		Logger:         logger,
	})
	defer session.Close()

	publish := func(r domain.Render) {
		if err := pub.PublishRender(ctx, sessionID, &r); err != nil {
			logger.Warn("publish render failed", "error", err)
		}
	}

	logger.Info("locator session starting")
	publish(session.Start(ctx))

	state := location.Snapshot()
	if state.UsingFallback && state.Permission == domain.PermissionDenied && !state.CanRequestAgain && cfg.Device.SettingsGrants {
		// Simulated user follows the settings prompt; the foreground
		// signal on return is delivered by the API.
		session.OpenSettings(ctx)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return location.Watch(gctx, sub.Foreground(sessionID))
	})

	g.Go(func() error {
		return sub.SubscribeViewports(gctx, sessionID, func(ctx context.Context, v domain.Viewport) error {
			publish(session.ViewportSettled(ctx, v))
			return nil
		})
	})

	// Render loop: publish on every location change, reload the datasets
	// once a device fix replaces the fallback coordinate.
	g.Go(func() error {
		hadFix := state.HasDeviceFix()
		for {
			select {
			case <-gctx.Done():
				return nil
			case s := <-changes:
				if !hadFix && s.HasDeviceFix() && !s.Loading {
					publish(session.Reload(gctx))
				} else {
					publish(session.Render())
				}
				hadFix = s.HasDeviceFix()
			}
		}
	})

	logger.Info("locator session ready",
		"viewport_subject", natsadapter.SessionSubject(natsadapter.SubjectViewport, sessionID),
		"foreground_subject", natsadapter.SessionSubject(natsadapter.SubjectForeground, sessionID),
	)

	if err := g.Wait(); err != nil {
		logger.Error("locator stopped with error", "error", err)
	}
	logger.Info("locator session stopped")
}

func deviceProfile(c config.DeviceConfig) device.Profile {
	p := device.Profile{
		Permission:   domain.PermissionStatus(c.Permission),
		CanAskAgain:  c.CanAskAgain,
		PromptResult: domain.PermissionStatus(c.PromptResult),
		Current:      domain.GeoPoint{Lat: c.CurrentLat, Lng: c.CurrentLng},
		CurrentDelay: c.CurrentDelay,
		CurrentFails: c.CurrentFails,
	}
	if c.HasLastKnown {
		p.LastKnown = &domain.GeoPoint{Lat: c.LastKnownLat, Lng: c.LastKnownLng}
		p.LastKnownAge = c.LastKnownAge
	}
	return p
}
