package usecases

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/samirrijal/shopradar/internal/core/domain"
	"github.com/samirrijal/shopradar/internal/core/ports"
	"github.com/samirrijal/shopradar/internal/pkg/geospatial"
	"github.com/samirrijal/shopradar/internal/pkg/metrics"
)

const (
	defaultShopLimit = 50
	maxShopLimit     = 200
)

// ShopService backs the shop query API.
type ShopService struct {
	shops ports.ShopRepository
	cache ports.CacheService
}

// NewShopService creates a new ShopService. cache may be nil.
func NewShopService(shops ports.ShopRepository, cache ports.CacheService) *ShopService {
	return &ShopService{shops: shops, cache: cache}
}

// SearchNearby returns shops inside the bounding box of a circle of
// radiusKm around (lat, lng), nearest first.
func (s *ShopService) SearchNearby(ctx context.Context, lat, lng, radiusKm float64, limit int) (*domain.ShopPage, error) {
	center := domain.GeoPoint{Lat: lat, Lng: lng}
	if !center.Valid() {
		return nil, fmt.Errorf("coordinate out of range: %f,%f", lat, lng)
	}
	if !ValidSearchRadius(radiusKm) {
		return nil, fmt.Errorf("radius must be in (0, %.0f] km, got %f", MaxSearchRadiusKm, radiusKm)
	}
	limit = clampLimit(limit)

	cacheKey := fmt.Sprintf("shops:nearby:%.4f:%.4f:%.1f:%d", lat, lng, radiusKm, limit)
	if page, ok := s.cached(ctx, "nearby", cacheKey); ok {
		return page, nil
	}

	minLat, minLng, maxLat, maxLng := geospatial.BoundingBox(lat, lng, radiusKm)
	bounds := domain.Bounds{MinLat: minLat, MinLng: minLng, MaxLat: maxLat, MaxLng: maxLng}

	shops, err := s.shops.FindInBounds(ctx, center, bounds, limit)
	if err != nil {
		return nil, fmt.Errorf("find shops in bounds: %w", err)
	}
	for i := range shops {
		d := geospatial.Haversine(lat, lng, shops[i].Location.Lat, shops[i].Location.Lng)
		shops[i].Distance = &d
	}

	page := newShopPage(shops, domain.Pagination{
		Limit: limit,
		Total: len(shops),
		More:  len(shops) == limit,
	})

	// Cache for 5 minutes
	s.store(ctx, cacheKey, page, 300)
	return page, nil
}

// ListAll returns one page of every shop, ordered by name.
func (s *ShopService) ListAll(ctx context.Context, limit, offset int) (*domain.ShopPage, error) {
	limit = clampLimit(limit)
	if offset < 0 {
		offset = 0
	}

	cacheKey := fmt.Sprintf("shops:all:%d:%d", limit, offset)
	if page, ok := s.cached(ctx, "all", cacheKey); ok {
		return page, nil
	}

	shops, total, err := s.shops.List(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list shops: %w", err)
	}

	page := newShopPage(shops, domain.Pagination{
		Offset: offset,
		Limit:  limit,
		Total:  total,
		More:   offset+len(shops) < total,
	})
	s.store(ctx, cacheKey, page, 300)
	return page, nil
}

// GetByID returns a single shop.
func (s *ShopService) GetByID(ctx context.Context, id string) (*domain.Shop, error) {
	if id == "" {
		return nil, fmt.Errorf("shop id must not be empty")
	}

	cacheKey := "shops:id:" + id
	if s.cache != nil {
		if data, err := s.cache.Get(ctx, cacheKey); err == nil {
			var shop domain.Shop
			if err := json.Unmarshal(data, &shop); err == nil {
				metrics.CacheHits.WithLabelValues("shop").Inc()
				return &shop, nil
			}
		}
		metrics.CacheMisses.WithLabelValues("shop").Inc()
	}

	shop, err := s.shops.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if data, err := json.Marshal(shop); err == nil {
			_ = s.cache.Set(ctx, cacheKey, data, 600) // 10 min for single shop
		}
	}
	return shop, nil
}

// Import validates and upserts shops, returning how many were stored and
// the reasons the rest were rejected.
func (s *ShopService) Import(ctx context.Context, candidates []domain.ShopCandidate) (int, map[string]int, error) {
	rejected := make(map[string]int)
	valid := make([]domain.Shop, 0, len(candidates))
	for _, c := range candidates {
		parsed := domain.ParseShop(c)
		if !parsed.Valid {
			rejected[parsed.Reason]++
			continue
		}
		valid = append(valid, parsed.Shop)
	}
	if len(valid) == 0 {
		return 0, rejected, nil
	}
	if err := s.shops.UpsertBatch(ctx, valid); err != nil {
		return 0, rejected, fmt.Errorf("upsert shops: %w", err)
	}
	return len(valid), rejected, nil
}

func (s *ShopService) cached(ctx context.Context, op, key string) (*domain.ShopPage, bool) {
	if s.cache == nil {
		return nil, false
	}
	if data, err := s.cache.Get(ctx, key); err == nil {
		var page domain.ShopPage
		if err := json.Unmarshal(data, &page); err == nil {
			metrics.CacheHits.WithLabelValues(op).Inc()
			return &page, true
		}
	}
	metrics.CacheMisses.WithLabelValues(op).Inc()
	return nil, false
}

func (s *ShopService) store(ctx context.Context, key string, page *domain.ShopPage, ttlSeconds int) {
	if s.cache == nil {
		return
	}
	if data, err := json.Marshal(page); err == nil {
		_ = s.cache.Set(ctx, key, data, ttlSeconds)
	}
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultShopLimit
	}
	if limit > maxShopLimit {
		return maxShopLimit
	}
	return limit
}

func newShopPage(shops []domain.Shop, pg domain.Pagination) *domain.ShopPage {
	candidates := make([]domain.ShopCandidate, len(shops))
	for i, s := range shops {
		candidates[i] = s.Candidate()
	}
	return &domain.ShopPage{Shops: candidates, Pagination: pg}
}
