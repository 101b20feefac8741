package usecases_test

import (
	"context"
	"sync"

	"github.com/samirrijal/shopradar/internal/core/domain"
)

// --- Mock LocationProvider ---

type mockProvider struct {
	checkFn     func(ctx context.Context) (domain.PermissionResponse, error)
	requestFn   func(ctx context.Context) (domain.PermissionResponse, error)
	lastKnownFn func(ctx context.Context, opts domain.LastKnownOptions) (*domain.Position, error)
	currentFn   func(ctx context.Context, opts domain.CurrentOptions) (*domain.Position, error)

	mu       sync.Mutex
	requests int
}

func (m *mockProvider) CheckPermission(ctx context.Context) (domain.PermissionResponse, error) {
	if m.checkFn != nil {
		return m.checkFn(ctx)
	}
	return domain.PermissionResponse{Status: domain.PermissionGranted, CanAskAgain: true}, nil
}

func (m *mockProvider) RequestPermission(ctx context.Context) (domain.PermissionResponse, error) {
	m.mu.Lock()
	m.requests++
	m.mu.Unlock()
	if m.requestFn != nil {
		return m.requestFn(ctx)
	}
	return domain.PermissionResponse{Status: domain.PermissionGranted, CanAskAgain: true}, nil
}

func (m *mockProvider) LastKnown(ctx context.Context, opts domain.LastKnownOptions) (*domain.Position, error) {
	if m.lastKnownFn != nil {
		return m.lastKnownFn(ctx, opts)
	}
	return nil, nil
}

func (m *mockProvider) Current(ctx context.Context, opts domain.CurrentOptions) (*domain.Position, error) {
	if m.currentFn != nil {
		return m.currentFn(ctx, opts)
	}
	return nil, nil
}

func (m *mockProvider) requestCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.requests
}

// --- Mock SettingsLauncher ---

type mockSettings struct {
	openFn func(ctx context.Context) error
}

func (m *mockSettings) Open(ctx context.Context) error {
	if m.openFn != nil {
		return m.openFn(ctx)
	}
	return nil
}

// --- Channel-backed ReentrySource ---

type chanReentries struct {
	ch chan struct{}
}

func (c *chanReentries) Reentries(ctx context.Context) (<-chan struct{}, error) {
	return c.ch, nil
}

// --- Mock ShopQueryService ---

type mockQuery struct {
	searchFn  func(ctx context.Context, lat, lng, radiusKm float64, limit int) (*domain.ShopPage, error)
	listAllFn func(ctx context.Context, limit int) (*domain.ShopPage, error)

	mu       sync.Mutex
	searches int
}

func (m *mockQuery) SearchNearby(ctx context.Context, lat, lng, radiusKm float64, limit int) (*domain.ShopPage, error) {
	m.mu.Lock()
	m.searches++
	m.mu.Unlock()
	if m.searchFn != nil {
		return m.searchFn(ctx, lat, lng, radiusKm, limit)
	}
	return &domain.ShopPage{}, nil
}

func (m *mockQuery) ListAll(ctx context.Context, limit int) (*domain.ShopPage, error) {
	if m.listAllFn != nil {
		return m.listAllFn(ctx, limit)
	}
	return &domain.ShopPage{}, nil
}

func (m *mockQuery) searchCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.searches
}

// --- Helpers ---

func shop(id string, lat, lng float64) domain.Shop {
	return domain.Shop{
		ID:       id,
		Name:     "Shop " + id,
		Address:  "1-1 Marunouchi",
		Location: domain.GeoPoint{Lat: lat, Lng: lng},
	}
}

func page(shops ...domain.Shop) *domain.ShopPage {
	out := &domain.ShopPage{Shops: make([]domain.ShopCandidate, len(shops))}
	for i, s := range shops {
		out.Shops[i] = s.Candidate()
	}
	out.Pagination.Total = len(shops)
	out.Pagination.Limit = len(shops)
	return out
}

func ids(shops []domain.Shop) []string {
	out := make([]string, len(shops))
	for i, s := range shops {
		out[i] = s.ID
	}
	return out
}

func ptr[T any](v T) *T { return &v }
