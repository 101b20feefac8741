package usecases

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sourcegraph/conc"

	"github.com/samirrijal/shopradar/internal/core/domain"
	"github.com/samirrijal/shopradar/internal/core/ports"
	"github.com/samirrijal/shopradar/internal/pkg/metrics"
	"github.com/samirrijal/shopradar/internal/pkg/telemetry"
)

// User-facing location error texts.
const (
	ErrTextSettingsRequired    = "Location access is off. Enable it in Settings to see shops around you."
	ErrTextPermissionDenied    = "Location access was denied. Tap retry to allow it."
	ErrTextPositionUnavailable = "Could not determine your location. Showing shops around the default area."
)

// LocationPhase is the acquisition state-machine position.
type LocationPhase string

const (
	PhaseIdle           LocationPhase = "idle"
	PhaseChecking       LocationPhase = "checking"
	PhaseGrantedFast    LocationPhase = "granted_fast"
	PhaseGrantedPrecise LocationPhase = "granted_precise"
	PhaseDeniedFallback LocationPhase = "denied_fallback"
	PhaseErrorFallback  LocationPhase = "error_fallback"
)

var errNoPosition = errors.New("provider returned no position")

// LocationOptions configure a LocationController.
type LocationOptions struct {
	Fallback     domain.GeoPoint
	ReentryDelay time.Duration
	LastKnown    domain.LastKnownOptions
	Current      domain.CurrentOptions

	// OnChange is called after every state write with a copy of the new
	// state. It must not call RequestLocation or OpenSettings.
	OnChange func(domain.LocationState)
	Logger   *slog.Logger
	Now      func() time.Time
}

// DefaultLocationOptions returns the stock acquisition policy: a cached fix
// up to 5 minutes old within 5 km, then a balanced-accuracy fresh fix.
func DefaultLocationOptions() LocationOptions {
	return LocationOptions{
		Fallback:     domain.DefaultFallback,
		ReentryDelay: 500 * time.Millisecond,
		LastKnown: domain.LastKnownOptions{
			MaxAge:            5 * time.Minute,
			RequiredAccuracyM: 5000,
		},
		Current: domain.CurrentOptions{
			Accuracy:     domain.AccuracyBalanced,
			TimeInterval: 5 * time.Second,
		},
	}
}

// LocationController owns device-location state and decides, at any moment,
// where the user is.
type LocationController struct {
	provider ports.LocationProvider
	settings ports.SettingsLauncher
	opts     LocationOptions
	log      *slog.Logger

	// notifyMu orders OnChange deliveries; mu guards the fields below.
	notifyMu sync.Mutex
	mu       sync.RWMutex
	state    domain.LocationState
	phase    LocationPhase
	fixAt    time.Time
}

// NewLocationController creates a controller in the Idle phase.
func NewLocationController(provider ports.LocationProvider, settings ports.SettingsLauncher, opts LocationOptions) *LocationController {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &LocationController{
		provider: provider,
		settings: settings,
		opts:     opts,
		log:      opts.Logger.With("component", "location"),
		state:    domain.LocationState{Permission: domain.PermissionUndetermined},
		phase:    PhaseIdle,
	}
}

// Snapshot returns a copy of the current state.
func (c *LocationController) Snapshot() domain.LocationState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return copyState(c.state)
}

// Phase returns the current state-machine phase.
func (c *LocationController) Phase() LocationPhase {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.phase
}

// RequestLocation runs one acquisition attempt and returns the state once
// both the cached and the fresh position reads have settled. Intermediate
// states are delivered through OnChange. Concurrent calls are not
// serialized; callers should not call again while Loading is set.
func (c *LocationController) RequestLocation(ctx context.Context) domain.LocationState {
	ctx, span := telemetry.Tracer().Start(ctx, telemetry.SpanRequestLocation)
	defer span.End()

	c.update(func(s *domain.LocationState) bool {
		s.Loading = true
		s.Error = nil
		c.phase = PhaseChecking
		return true
	})

	perm, err := c.provider.CheckPermission(ctx)
	if err != nil {
		c.log.Warn("check permission failed", "error", err)
		perm = domain.PermissionResponse{Status: domain.PermissionUndetermined, CanAskAgain: true}
	}
	if perm.Status == domain.PermissionDenied && !perm.CanAskAgain {
		return c.fallback(perm, PhaseDeniedFallback, ErrTextSettingsRequired)
	}

	resp, err := c.provider.RequestPermission(ctx)
	if err != nil {
		c.log.Warn("request permission failed", "error", err)
		return c.fallback(perm, PhaseErrorFallback, ErrTextPositionUnavailable)
	}
	c.update(func(s *domain.LocationState) bool {
		s.Permission = resp.Status
		s.CanRequestAgain = resp.CanAskAgain
		return true
	})

	if resp.Status == domain.PermissionDenied {
		msg := ErrTextPermissionDenied
		if !resp.CanAskAgain {
			msg = ErrTextSettingsRequired
		}
		return c.fallback(resp, PhaseDeniedFallback, msg)
	}

	var (
		wg         conc.WaitGroup
		fastOK     bool
		preciseErr error
	)
	wg.Go(func() {
		pos, err := c.provider.LastKnown(ctx, c.opts.LastKnown)
		if err != nil {
			c.log.Debug("cached position unavailable", "error", err)
			return
		}
		if pos == nil {
			return
		}
		fastOK = true
		c.publishFix(*pos, PhaseGrantedFast)
	})
	wg.Go(func() {
		pos, err := c.provider.Current(ctx, c.opts.Current)
		if err == nil && pos == nil {
			err = errNoPosition
		}
		if err != nil {
			preciseErr = err
			return
		}
		c.publishFix(*pos, PhaseGrantedPrecise)
	})
	wg.Wait()

	if preciseErr != nil {
		if !fastOK {
			c.log.Warn("no device position", "error", preciseErr)
			return c.fallback(resp, PhaseErrorFallback, ErrTextPositionUnavailable)
		}
		// The cached fix stands; the fresh read failing is not surfaced.
		c.log.Debug("fresh position failed after cached fix", "error", preciseErr)
	}

	c.update(func(s *domain.LocationState) bool {
		if !s.Loading {
			return false
		}
		s.Loading = false
		return true
	})

	phase := c.Phase()
	metrics.LocationOutcomes.WithLabelValues(string(phase)).Inc()
	return c.Snapshot()
}

// OpenSettings opens the OS settings screen. Failures are logged only.
func (c *LocationController) OpenSettings(ctx context.Context) {
	if c.settings == nil {
		c.log.Warn("open settings: no launcher configured")
		return
	}
	if err := c.settings.Open(ctx); err != nil {
		c.log.Error("open settings failed", "error", err)
	}
}

// Watch re-checks permission each time src signals that the app came back
// to the foreground. When the OS now grants access but the controller is
// still on the fallback coordinate, it re-runs RequestLocation after
// ReentryDelay. Watch blocks until ctx ends or src closes its channel.
func (c *LocationController) Watch(ctx context.Context, src ports.ReentrySource) error {
	reentries, err := src.Reentries(ctx)
	if err != nil {
		return fmt.Errorf("subscribe reentries: %w", err)
	}

	var pending <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case _, ok := <-reentries:
			if !ok {
				return nil
			}
			if c.needsRecheck(ctx) {
				pending = time.After(c.opts.ReentryDelay)
			}
		case <-pending:
			pending = nil
			c.RequestLocation(ctx)
		}
	}
}

func (c *LocationController) needsRecheck(ctx context.Context) bool {
	snap := c.Snapshot()
	if snap.Loading {
		return false
	}
	perm, err := c.provider.CheckPermission(ctx)
	if err != nil {
		c.log.Warn("reentry permission check failed", "error", err)
		return false
	}
	if perm.Status != domain.PermissionGranted {
		return false
	}
	return snap.UsingFallback || snap.Permission != domain.PermissionGranted
}

// publishFix writes a device position unless the held coordinate is a
// fresher device reading.
//
// Fixes are ordered by the provider's timestamp. A fix without one is
// stamped with opts.Now, so opts.Now must read the same clock the provider
// stamps with; if it runs behind, an unstamped fix loses to a stamped one
// taken earlier.
func (c *LocationController) publishFix(pos domain.Position, phase LocationPhase) bool {
	stamp := pos.Timestamp
	if stamp.IsZero() {
		stamp = c.opts.Now()
	}

	applied := false
	c.update(func(s *domain.LocationState) bool {
		if s.HasDeviceFix() && stamp.Before(c.fixAt) {
			return false
		}
		coord := pos.Coordinate
		s.Coordinate = &coord
		s.UsingFallback = false
		s.Loading = false
		s.Error = nil
		c.fixAt = stamp
		c.phase = phase
		applied = true
		return true
	})
	return applied
}

func (c *LocationController) fallback(perm domain.PermissionResponse, phase LocationPhase, msg string) domain.LocationState {
	c.update(func(s *domain.LocationState) bool {
		coord := c.opts.Fallback
		s.Coordinate = &coord
		s.Permission = perm.Status
		s.CanRequestAgain = perm.CanAskAgain
		s.UsingFallback = true
		s.Loading = false
		s.Error = &msg
		c.fixAt = time.Time{}
		c.phase = phase
		return true
	})
	metrics.LocationOutcomes.WithLabelValues(string(phase)).Inc()
	return c.Snapshot()
}

// update applies fn to a copy of the state and swaps it in.
func (c *LocationController) update(fn func(s *domain.LocationState) bool) {
	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()

	c.mu.Lock()
	next := copyState(c.state)
	changed := fn(&next)
	if changed {
		c.state = next
	}
	snap := copyState(c.state)
	c.mu.Unlock()

	if changed && c.opts.OnChange != nil {
		c.opts.OnChange(snap)
	}
}

func copyState(s domain.LocationState) domain.LocationState {
	out := s
	if s.Coordinate != nil {
		coord := *s.Coordinate
		out.Coordinate = &coord
	}
	if s.Error != nil {
		msg := *s.Error
		out.Error = &msg
	}
	return out
}
