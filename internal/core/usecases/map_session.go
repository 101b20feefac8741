package usecases

import (
	"context"
	"log/slog"
	"sync"

	"github.com/sourcegraph/conc"

	"github.com/samirrijal/shopradar/internal/core/domain"
	"github.com/samirrijal/shopradar/internal/core/ports"
)

// ErrTextShopsUnavailable is shown when an area query fails; the shops
// already collected stay on screen.
const ErrTextShopsUnavailable = "Could not load shops for this area. Pan the map to try again."

// SessionOptions size the nearby and all-shops datasets.
type SessionOptions struct {
	NearbyRadiusKm float64
	NearbyLimit    int
	AllLimit       int
	Logger         *slog.Logger
}

// MapSession wires location acquisition, viewport collection and source
// prioritization for one map screen.
type MapSession struct {
	location  *LocationController
	collector *ShopCollector
	query     ports.ShopQueryService
	opts      SessionOptions
	log       *slog.Logger

	mu       sync.RWMutex
	nearby   []domain.Shop
	fallback []domain.Shop
	queryErr *string
}

// NewMapSession creates a session around an existing controller and collector.
func NewMapSession(location *LocationController, collector *ShopCollector, query ports.ShopQueryService, opts SessionOptions) *MapSession {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.NearbyRadiusKm <= 0 {
		opts.NearbyRadiusKm = 10
	}
	if opts.NearbyLimit <= 0 {
		opts.NearbyLimit = 50
	}
	if opts.AllLimit <= 0 {
		opts.AllLimit = 100
	}
	return &MapSession{
		location:  location,
		collector: collector,
		query:     query,
		opts:      opts,
		log:       opts.Logger.With("component", "session"),
	}
}

// Start acquires a location, loads the nearby and all-shops datasets and
// seeds the collector when nothing has been collected yet.
func (s *MapSession) Start(ctx context.Context) domain.Render {
	state := s.location.RequestLocation(ctx)
	s.loadDatasets(ctx, state)
	s.seed()
	return s.Render()
}

// Retry re-runs location acquisition and reloads the datasets.
func (s *MapSession) Retry(ctx context.Context) domain.Render {
	state := s.location.RequestLocation(ctx)
	s.loadDatasets(ctx, state)
	s.seed()
	return s.Render()
}

// Reload refreshes the datasets against the current location without
// acquiring a new one. Used after a passive re-check recovered a fix.
func (s *MapSession) Reload(ctx context.Context) domain.Render {
	s.loadDatasets(ctx, s.location.Snapshot())
	s.seed()
	return s.Render()
}

// seed puts the best available dataset into the collector until the user
// has searched an area. The nearby dataset replaces an earlier seed; the
// all-shops dataset only fills an empty collector.
func (s *MapSession) seed() {
	if len(s.collector.Areas()) > 0 {
		return
	}

	s.mu.RLock()
	initial := s.nearby
	if initial == nil && s.collector.Len() == 0 {
		initial = s.fallback
	}
	s.mu.RUnlock()

	if initial != nil {
		s.collector.SetInitialShops(initial)
	}
}

// ViewportSettled plans a search radius for v and lets the collector
// decide whether to query.
func (s *MapSession) ViewportSettled(ctx context.Context, v domain.Viewport) domain.Render {
	if err := v.Validate(); err != nil {
		s.log.Warn("ignoring viewport", "error", err)
		return s.Render()
	}

	radius := PlanRadius(v)
	_, err := s.collector.OnViewportSettled(ctx, v.Center, radius)

	s.mu.Lock()
	if err != nil {
		s.log.Warn("area query failed", "error", err)
		msg := ErrTextShopsUnavailable
		s.queryErr = &msg
	} else {
		s.queryErr = nil
	}
	s.mu.Unlock()

	return s.Render()
}

// OpenSettings forwards to the location controller.
func (s *MapSession) OpenSettings(ctx context.Context) {
	s.location.OpenSettings(ctx)
}

// Render resolves the shop list and location flags for presentation. A
// location error takes precedence over an area-query error.
func (s *MapSession) Render() domain.Render {
	state := s.location.Snapshot()

	s.mu.RLock()
	nearby, fallback, queryErr := s.nearby, s.fallback, s.queryErr
	s.mu.RUnlock()

	errText := state.Error
	if errText == nil {
		errText = queryErr
	}
	return domain.Render{
		Shops:         SelectShops(s.collector.Shops(), state.Coordinate, nearby, fallback),
		UsingFallback: state.UsingFallback,
		Error:         errText,
		IsLoading:     state.Loading,
	}
}

// Close tears the session down.
func (s *MapSession) Close() {
	s.collector.Clear()
}

func (s *MapSession) loadDatasets(ctx context.Context, state domain.LocationState) {
	var (
		wg       conc.WaitGroup
		nearby   []domain.Shop
		fallback []domain.Shop
	)

	if state.HasDeviceFix() {
		coord := *state.Coordinate
		wg.Go(func() {
			page, err := s.query.SearchNearby(ctx, coord.Lat, coord.Lng, s.opts.NearbyRadiusKm, s.opts.NearbyLimit)
			if err != nil {
				s.log.Warn("nearby dataset unavailable", "error", err)
				return
			}
			nearby = pageShops(page)
		})
	}
	wg.Go(func() {
		page, err := s.query.ListAll(ctx, s.opts.AllLimit)
		if err != nil {
			s.log.Warn("all-shops dataset unavailable", "error", err)
			return
		}
		fallback = pageShops(page)
	})
	wg.Wait()

	s.mu.Lock()
	s.nearby = nearby
	if fallback != nil {
		s.fallback = fallback
	}
	s.mu.Unlock()
}

func pageShops(page *domain.ShopPage) []domain.Shop {
	if page == nil {
		return []domain.Shop{}
	}
	return FilterValid(page.Shops)
}
