package usecases

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/samirrijal/shopradar/internal/core/domain"
	"github.com/samirrijal/shopradar/internal/core/ports"
	"github.com/samirrijal/shopradar/internal/pkg/geospatial"
	"github.com/samirrijal/shopradar/internal/pkg/metrics"
	"github.com/samirrijal/shopradar/internal/pkg/telemetry"
)

// coverageFactor: a new center within this fraction of the smaller radius
// of a searched area counts as already covered.
const coverageFactor = 0.5

// CollectResult is the accumulation after a viewport settle.
type CollectResult struct {
	Shops   []domain.Shop
	Queried bool
}

// ShopCollector accumulates the shops discovered while the user pans the
// map and remembers which circular areas were already searched, so a
// settle inside a searched area costs no network call.
type ShopCollector struct {
	query ports.ShopQueryService
	limit int
	log   *slog.Logger

	mu    sync.RWMutex
	shops map[string]domain.Shop
	areas []domain.SearchedArea
}

// NewShopCollector creates an empty collector. limit caps each area query.
func NewShopCollector(query ports.ShopQueryService, limit int, logger *slog.Logger) *ShopCollector {
	if logger == nil {
		logger = slog.Default()
	}
	if limit <= 0 {
		limit = 100
	}
	return &ShopCollector{
		query: query,
		limit: limit,
		log:   logger.With("component", "collector"),
		shops: make(map[string]domain.Shop),
	}
}

// IsAreaCovered reports whether center lies within half the smaller radius
// of any searched area, using flat degree distance.
func (c *ShopCollector) IsAreaCovered(center domain.GeoPoint, radiusKm float64) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return covered(c.areas, center, radiusKm)
}

func covered(areas []domain.SearchedArea, center domain.GeoPoint, radiusKm float64) bool {
	for _, a := range areas {
		d := geospatial.PlanarDegrees(a.Center.Lat, a.Center.Lng, center.Lat, center.Lng) * geospatial.KmPerDegree
		if d < math.Min(a.RadiusKm, radiusKm)*coverageFactor {
			return true
		}
	}
	return false
}

// OnViewportSettled queries the shop service for (center, radiusKm) unless
// the area is already covered, and merges the valid results by id. On a
// failed query nothing is mutated and the current accumulation is returned
// alongside the error.
func (c *ShopCollector) OnViewportSettled(ctx context.Context, center domain.GeoPoint, radiusKm float64) (CollectResult, error) {
	ctx, span := telemetry.Tracer().Start(ctx, telemetry.SpanViewportSettled, trace.WithAttributes(
		attribute.Float64("center.lat", center.Lat),
		attribute.Float64("center.lng", center.Lng),
		attribute.Float64("radius_km", radiusKm),
	))
	defer span.End()

	if c.IsAreaCovered(center, radiusKm) {
		metrics.ShopQueries.WithLabelValues("covered").Inc()
		span.SetAttributes(attribute.Bool("covered", true))
		return CollectResult{Shops: c.Shops()}, nil
	}

	page, err := c.search(ctx, center, radiusKm)
	if err != nil {
		metrics.ShopQueries.WithLabelValues("failed").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return CollectResult{Shops: c.Shops()}, fmt.Errorf("search shops near %.4f,%.4f: %w", center.Lat, center.Lng, err)
	}

	var fetched []domain.Shop
	if page != nil {
		fetched = FilterValid(page.Shops)
	}

	c.mu.Lock()
	next := make(map[string]domain.Shop, len(c.shops)+len(fetched))
	for id, s := range c.shops {
		next[id] = s
	}
	for _, s := range fetched {
		next[s.ID] = s
	}
	c.shops = next
	c.areas = append(c.areas[:len(c.areas):len(c.areas)], domain.SearchedArea{Center: center, RadiusKm: radiusKm})
	shops := sortedShops(c.shops)
	c.mu.Unlock()

	metrics.ShopQueries.WithLabelValues("queried").Inc()
	metrics.ShopsAccumulated.Set(float64(len(shops)))
	c.log.Debug("area searched", "lat", center.Lat, "lng", center.Lng, "radius_km", radiusKm,
		"fetched", len(fetched), "total", len(shops))

	return CollectResult{Shops: shops, Queried: true}, nil
}

func (c *ShopCollector) search(ctx context.Context, center domain.GeoPoint, radiusKm float64) (*domain.ShopPage, error) {
	ctx, span := telemetry.Tracer().Start(ctx, telemetry.SpanAreaQuery)
	defer span.End()
	return c.query.SearchNearby(ctx, center.Lat, center.Lng, radiusKm, c.limit)
}

// SetInitialShops replaces the accumulation with the valid subset of shops.
// Searched areas are kept.
func (c *ShopCollector) SetInitialShops(shops []domain.Shop) {
	next := make(map[string]domain.Shop, len(shops))
	for _, s := range shops {
		if parsed := domain.ParseShop(s.Candidate()); parsed.Valid {
			next[s.ID] = parsed.Shop
		}
	}

	c.mu.Lock()
	c.shops = next
	c.mu.Unlock()
	metrics.ShopsAccumulated.Set(float64(len(next)))
}

// Shops returns the accumulation ordered by id.
func (c *ShopCollector) Shops() []domain.Shop {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return sortedShops(c.shops)
}

// Areas returns a copy of the searched areas in search order.
func (c *ShopCollector) Areas() []domain.SearchedArea {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]domain.SearchedArea, len(c.areas))
	copy(out, c.areas)
	return out
}

// Len returns the number of distinct shops held.
func (c *ShopCollector) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.shops)
}

// Clear drops every shop and searched area.
func (c *ShopCollector) Clear() {
	c.mu.Lock()
	c.shops = make(map[string]domain.Shop)
	c.areas = nil
	c.mu.Unlock()
}

// FilterValid parses candidates and keeps only valid shops. Invalid records
// are dropped silently apart from a debug log and a counter.
func FilterValid(candidates []domain.ShopCandidate) []domain.Shop {
	out := make([]domain.Shop, 0, len(candidates))
	for _, c := range candidates {
		parsed := domain.ParseShop(c)
		if !parsed.Valid {
			metrics.ShopsDropped.WithLabelValues(parsed.Reason).Inc()
			slog.Debug("dropping malformed shop", "id", c.ID, "reason", parsed.Reason)
			continue
		}
		out = append(out, parsed.Shop)
	}
	return out
}

func sortedShops(m map[string]domain.Shop) []domain.Shop {
	out := make([]domain.Shop, 0, len(m))
	for _, s := range m {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
