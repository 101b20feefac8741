package usecases_test

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/samirrijal/shopradar/internal/core/domain"
	"github.com/samirrijal/shopradar/internal/core/usecases"
)

func grantedProvider(at domain.GeoPoint) *mockProvider {
	return &mockProvider{
		currentFn: func(context.Context, domain.CurrentOptions) (*domain.Position, error) {
			return &domain.Position{Coordinate: at}, nil
		},
	}
}

func newSession(p *mockProvider, q *mockQuery) (*usecases.MapSession, *usecases.ShopCollector) {
	loc := newController(p)
	col := usecases.NewShopCollector(q, 50, nil)
	return usecases.NewMapSession(loc, col, q, usecases.SessionOptions{}), col
}

func TestMapSession_StartWithDeviceFixUsesNearby(t *testing.T) {
	var gotRadius float64
	q := &mockQuery{
		searchFn: func(_ context.Context, _, _, radiusKm float64, _ int) (*domain.ShopPage, error) {
			gotRadius = radiusKm
			return page(shop("near", shibuya.Lat, shibuya.Lng)), nil
		},
		listAllFn: func(context.Context, int) (*domain.ShopPage, error) {
			return page(shop("far", 34.7, 135.5)), nil
		},
	}
	s, col := newSession(grantedProvider(shibuya), q)

	r := s.Start(context.Background())

	if !reflect.DeepEqual(ids(r.Shops), []string{"near"}) {
		t.Errorf("expected nearby shops, got %v", ids(r.Shops))
	}
	if r.UsingFallback || r.IsLoading || r.Error != nil {
		t.Errorf("unexpected flags: %+v", r)
	}
	if gotRadius != 10 {
		t.Errorf("expected default nearby radius 10, got %v", gotRadius)
	}
	if col.Len() != 1 {
		t.Errorf("expected collector seeded with nearby shops, got %d", col.Len())
	}
}

func TestMapSession_StartOnFallbackSkipsNearby(t *testing.T) {
	q := &mockQuery{
		listAllFn: func(context.Context, int) (*domain.ShopPage, error) {
			return page(shop("far", 34.7, 135.5), shop("other", 43.0, 141.3)), nil
		},
	}
	s, _ := newSession(&mockProvider{checkFn: denied(false)}, q)

	r := s.Start(context.Background())

	if q.searchCount() != 0 {
		t.Error("nearby search should not run without a device fix")
	}
	if !r.UsingFallback {
		t.Error("expected UsingFallback")
	}
	if r.Error == nil || *r.Error != usecases.ErrTextSettingsRequired {
		t.Errorf("expected settings error, got %v", r.Error)
	}
	if !reflect.DeepEqual(ids(r.Shops), []string{"far", "other"}) {
		t.Errorf("expected all-shops dataset, got %v", ids(r.Shops))
	}
}

func TestMapSession_DatasetsUnavailable(t *testing.T) {
	boom := errors.New("connection refused")
	q := &mockQuery{
		searchFn: func(context.Context, float64, float64, float64, int) (*domain.ShopPage, error) {
			return nil, boom
		},
		listAllFn: func(context.Context, int) (*domain.ShopPage, error) {
			return nil, boom
		},
	}
	s, _ := newSession(grantedProvider(shibuya), q)

	r := s.Start(context.Background())
	if r.Shops == nil || len(r.Shops) != 0 {
		t.Errorf("expected an empty non-nil list, got %#v", r.Shops)
	}
}

func TestMapSession_ViewportSettledAccumulates(t *testing.T) {
	q := &mockQuery{
		searchFn: func(_ context.Context, lat, lng, _ float64, _ int) (*domain.ShopPage, error) {
			if lat > 35.68 {
				return page(shop("north", lat, lng)), nil
			}
			return page(shop("south", lat, lng)), nil
		},
	}
	s, col := newSession(grantedProvider(shibuya), q)
	ctx := context.Background()
	s.Start(ctx)

	r := s.ViewportSettled(ctx, domain.Viewport{Center: shinjuku, LatitudeDelta: 0.05, LongitudeDelta: 0.05})
	if !reflect.DeepEqual(ids(r.Shops), []string{"north", "south"}) {
		t.Errorf("expected accumulated shops, got %v", ids(r.Shops))
	}
	areas := col.Areas()
	if len(areas) != 1 || areas[0].RadiusKm != 5 {
		t.Errorf("expected one 5 km area, got %+v", areas)
	}
}

func TestMapSession_QueryErrorKeepsStaleShops(t *testing.T) {
	fail := false
	q := &mockQuery{
		searchFn: func(_ context.Context, lat, lng, _ float64, _ int) (*domain.ShopPage, error) {
			if fail {
				return nil, errors.New("timeout")
			}
			return page(shop("a", lat, lng)), nil
		},
	}
	s, _ := newSession(grantedProvider(shibuya), q)
	ctx := context.Background()
	s.Start(ctx)

	fail = true
	r := s.ViewportSettled(ctx, domain.Viewport{Center: domain.GeoPoint{Lat: 43.06, Lng: 141.35}, LatitudeDelta: 0.2})
	if r.Error == nil || *r.Error != usecases.ErrTextShopsUnavailable {
		t.Errorf("expected query error, got %v", r.Error)
	}
	if !reflect.DeepEqual(ids(r.Shops), []string{"a"}) {
		t.Errorf("expected stale shops, got %v", ids(r.Shops))
	}

	fail = false
	r = s.ViewportSettled(ctx, domain.Viewport{Center: domain.GeoPoint{Lat: 43.06, Lng: 141.35}, LatitudeDelta: 0.2})
	if r.Error != nil {
		t.Errorf("error should clear after a successful query, got %q", *r.Error)
	}
}

func TestMapSession_InvalidViewportIsIgnored(t *testing.T) {
	q := &mockQuery{}
	s, _ := newSession(grantedProvider(shibuya), q)
	s.Start(context.Background())
	before := q.searchCount()

	s.ViewportSettled(context.Background(), domain.Viewport{Center: domain.GeoPoint{Lat: 120}, LatitudeDelta: 1})
	if q.searchCount() != before {
		t.Error("invalid viewport should not be queried")
	}
}

func TestMapSession_CloseClearsCollector(t *testing.T) {
	q := &mockQuery{
		searchFn: func(_ context.Context, lat, lng, _ float64, _ int) (*domain.ShopPage, error) {
			return page(shop("a", lat, lng)), nil
		},
	}
	s, col := newSession(grantedProvider(shibuya), q)
	s.Start(context.Background())
	s.Close()
	if col.Len() != 0 {
		t.Errorf("expected empty collector after Close, got %d", col.Len())
	}
}

// recoverable returns a provider that starts permanently denied; grant
// switches it to a working device at shibuya, as after a settings change.
func recoverable() (p *mockProvider, grant func()) {
	p = &mockProvider{checkFn: denied(false)}
	return p, func() {
		p.checkFn = nil
		p.currentFn = func(context.Context, domain.CurrentOptions) (*domain.Position, error) {
			return &domain.Position{Coordinate: shibuya}, nil
		}
	}
}

func TestMapSession_ReloadAfterRecoveredFix(t *testing.T) {
	q := &mockQuery{
		searchFn: func(context.Context, float64, float64, float64, int) (*domain.ShopPage, error) {
			return page(shop("near", shibuya.Lat, shibuya.Lng)), nil
		},
		listAllFn: func(context.Context, int) (*domain.ShopPage, error) {
			return page(shop("far", 34.7, 135.5)), nil
		},
	}
	p, grant := recoverable()
	loc := newController(p)
	s := usecases.NewMapSession(loc, usecases.NewShopCollector(q, 50, nil), q, usecases.SessionOptions{})

	r := s.Start(context.Background())
	if q.searchCount() != 0 {
		t.Fatal("nearby search should not run on the fallback coordinate")
	}
	if !reflect.DeepEqual(ids(r.Shops), []string{"far"}) {
		t.Fatalf("expected all-shops dataset on the fallback, got %v", ids(r.Shops))
	}

	// User enabled location in settings; a passive re-check re-acquires.
	grant()
	loc.RequestLocation(context.Background())

	r = s.Reload(context.Background())

	if q.searchCount() != 1 {
		t.Errorf("expected one nearby search after reload, got %d", q.searchCount())
	}
	if r.UsingFallback || r.Error != nil {
		t.Errorf("expected recovered flags, got %+v", r)
	}
	if !reflect.DeepEqual(ids(r.Shops), []string{"near"}) {
		t.Errorf("expected nearby shops to replace the all-shops seed, got %v", ids(r.Shops))
	}
}

func TestMapSession_ReloadKeepsSearchedAreas(t *testing.T) {
	q := &mockQuery{
		searchFn: func(_ context.Context, _, _, radiusKm float64, _ int) (*domain.ShopPage, error) {
			if radiusKm == 10 {
				return page(shop("near", shibuya.Lat, shibuya.Lng)), nil
			}
			return page(shop("panned", 35.0, 135.7)), nil
		},
		listAllFn: func(context.Context, int) (*domain.ShopPage, error) {
			return page(shop("far", 34.7, 135.5)), nil
		},
	}
	p, grant := recoverable()
	loc := newController(p)
	s := usecases.NewMapSession(loc, usecases.NewShopCollector(q, 50, nil), q, usecases.SessionOptions{})

	s.Start(context.Background())
	s.ViewportSettled(context.Background(), domain.Viewport{
		Center:        domain.GeoPoint{Lat: 35.0, Lng: 135.7},
		LatitudeDelta: 0.5,
	})

	grant()
	loc.RequestLocation(context.Background())
	r := s.Reload(context.Background())

	if !reflect.DeepEqual(ids(r.Shops), []string{"far", "panned"}) {
		t.Errorf("expected the explored accumulation to survive reload, got %v", ids(r.Shops))
	}
}
