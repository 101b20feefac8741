package http_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gofiber/fiber/v2"

	handler "github.com/samirrijal/shopradar/internal/adapters/http"
	"github.com/samirrijal/shopradar/internal/core/domain"
	"github.com/samirrijal/shopradar/internal/core/usecases"
)

// ---- Mock repositories ----

type mockShopRepo struct {
	findInBoundsFn func(ctx context.Context, center domain.GeoPoint, b domain.Bounds, limit int) ([]domain.Shop, error)
	listFn         func(ctx context.Context, limit, offset int) ([]domain.Shop, int, error)
	getByIDFn      func(ctx context.Context, id string) (*domain.Shop, error)
}

func (m *mockShopRepo) Upsert(ctx context.Context, s *domain.Shop) error       { return nil }
func (m *mockShopRepo) UpsertBatch(ctx context.Context, s []domain.Shop) error { return nil }
func (m *mockShopRepo) FindInBounds(ctx context.Context, center domain.GeoPoint, b domain.Bounds, limit int) ([]domain.Shop, error) {
	if m.findInBoundsFn != nil {
		return m.findInBoundsFn(ctx, center, b, limit)
	}
	return []domain.Shop{}, nil
}
func (m *mockShopRepo) List(ctx context.Context, limit, offset int) ([]domain.Shop, int, error) {
	if m.listFn != nil {
		return m.listFn(ctx, limit, offset)
	}
	return []domain.Shop{}, 0, nil
}
func (m *mockShopRepo) GetByID(ctx context.Context, id string) (*domain.Shop, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, domain.ErrShopNotFound
}

type recordingPublisher struct {
	mu          sync.Mutex
	viewports   map[string][]domain.Viewport
	foregrounds []string
}

func (p *recordingPublisher) PublishRender(ctx context.Context, id string, r *domain.Render) error {
	return nil
}
func (p *recordingPublisher) PublishViewport(ctx context.Context, id string, v domain.Viewport) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.viewports == nil {
		p.viewports = make(map[string][]domain.Viewport)
	}
	p.viewports[id] = append(p.viewports[id], v)
	return nil
}
func (p *recordingPublisher) PublishForeground(ctx context.Context, id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.foregrounds = append(p.foregrounds, id)
	return nil
}
func (p *recordingPublisher) PublishSettingsOpened(ctx context.Context, id string) error { return nil }

// ---- Test helpers ----

func setupApp(deps *handler.Dependencies) *fiber.App {
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	handler.SetupRoutes(app, deps)
	return app
}

func makeDeps(opts ...func(*handler.Dependencies)) *handler.Dependencies {
	d := &handler.Dependencies{
		Shops: usecases.NewShopService(&mockShopRepo{}, nil),
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

func withShops(repo *mockShopRepo) func(*handler.Dependencies) {
	return func(d *handler.Dependencies) {
		d.Shops = usecases.NewShopService(repo, nil)
	}
}

func testShop(id string, lat, lng float64) domain.Shop {
	return domain.Shop{
		ID:        id,
		Name:      "Shop " + id,
		Address:   "1-1 Marunouchi",
		Location:  domain.GeoPoint{Lat: lat, Lng: lng},
		Amenities: domain.Amenities{Wifi: true},
	}
}

func readBody(t *testing.T, body io.Reader) []byte {
	t.Helper()
	b, err := io.ReadAll(body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return b
}

func decodeError(t *testing.T, body io.Reader) handler.APIError {
	t.Helper()
	var apiErr handler.APIError
	if err := json.NewDecoder(body).Decode(&apiErr); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return apiErr
}

// ---- Nearby shops ----

func TestNearbyShops_Success(t *testing.T) {
	var gotLimit int
	app := setupApp(makeDeps(withShops(&mockShopRepo{
		findInBoundsFn: func(ctx context.Context, center domain.GeoPoint, b domain.Bounds, limit int) ([]domain.Shop, error) {
			gotLimit = limit
			return []domain.Shop{testShop("s1", 35.6812, 139.7671)}, nil
		},
	})))

	req := httptest.NewRequest("GET", "/v1/shops/nearby?lat=35.68&lng=139.76&radius_km=7&limit=20", nil)
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, readBody(t, resp.Body))
	}

	var page domain.ShopPage
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		t.Fatal(err)
	}
	if len(page.Shops) != 1 || page.Shops[0].ID != "s1" {
		t.Fatalf("unexpected shops: %+v", page.Shops)
	}
	if page.Shops[0].Lat == nil || *page.Shops[0].Lat != 35.6812 {
		t.Errorf("expected flat lat in wire form, got %v", page.Shops[0].Lat)
	}
	if page.Shops[0].Distance == nil {
		t.Error("expected distance_km")
	}
	if gotLimit != 20 {
		t.Errorf("expected limit 20, got %d", gotLimit)
	}
}

func TestNearbyShops_MissingParams(t *testing.T) {
	app := setupApp(makeDeps())

	for _, q := range []string{"", "?lat=35.6", "?lat=35.6&lng=139.7", "?lat=abc&lng=139.7&radius_km=5"} {
		req := httptest.NewRequest("GET", "/v1/shops/nearby"+q, nil)
		resp, _ := app.Test(req, -1)
		if resp.StatusCode != 400 {
			t.Fatalf("%q: expected 400, got %d", q, resp.StatusCode)
		}
		if apiErr := decodeError(t, resp.Body); apiErr.Code != "bad_request" {
			t.Errorf("%q: expected bad_request error, got %s", q, apiErr.Code)
		}
	}
}

func TestNearbyShops_BadRadius(t *testing.T) {
	app := setupApp(makeDeps())

	for _, r := range []string{"0", "-1", "5001", "NaN", "nan", "Inf"} {
		req := httptest.NewRequest("GET", "/v1/shops/nearby?lat=35.68&lng=139.76&radius_km="+r, nil)
		resp, _ := app.Test(req, -1)
		if resp.StatusCode != 400 {
			t.Errorf("radius %s: expected 400, got %d", r, resp.StatusCode)
		}
	}
}

func TestNearbyShops_OutOfRangeCoordinate(t *testing.T) {
	app := setupApp(makeDeps())

	req := httptest.NewRequest("GET", "/v1/shops/nearby?lat=95&lng=139.76&radius_km=5", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 400 {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestNearbyShops_EquatorIsValid(t *testing.T) {
	app := setupApp(makeDeps())

	req := httptest.NewRequest("GET", "/v1/shops/nearby?lat=0&lng=0&radius_km=5", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}

func TestNearbyShops_CacheControlHeader(t *testing.T) {
	app := setupApp(makeDeps())

	req := httptest.NewRequest("GET", "/v1/shops/nearby?lat=35.68&lng=139.76&radius_km=5", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	if cc := resp.Header.Get("Cache-Control"); cc != "public, max-age=300" {
		t.Errorf("expected Cache-Control header, got %q", cc)
	}
}

// ---- List / get shops ----

func TestListShops_Pagination(t *testing.T) {
	app := setupApp(makeDeps(withShops(&mockShopRepo{
		listFn: func(ctx context.Context, limit, offset int) ([]domain.Shop, int, error) {
			out := make([]domain.Shop, 0, limit)
			for i := offset; i < offset+limit && i < 10; i++ {
				out = append(out, testShop(fmt.Sprintf("s%d", i), 35, 139))
			}
			return out, 10, nil
		},
	})))

	req := httptest.NewRequest("GET", "/v1/shops?offset=3&limit=3", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var page domain.ShopPage
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		t.Fatal(err)
	}
	if len(page.Shops) != 3 || page.Shops[0].ID != "s3" {
		t.Errorf("unexpected page: %+v", page.Shops)
	}
	if page.Pagination.Total != 10 || page.Pagination.Offset != 3 || !page.Pagination.More {
		t.Errorf("unexpected pagination: %+v", page.Pagination)
	}

	link := resp.Header.Get("Link")
	for _, rel := range []string{`rel="first"`, `rel="prev"`, `rel="next"`, `rel="last"`} {
		if !strings.Contains(link, rel) {
			t.Errorf("expected %s in Link header, got %s", rel, link)
		}
	}
}

func TestGetShop_Success(t *testing.T) {
	app := setupApp(makeDeps(withShops(&mockShopRepo{
		getByIDFn: func(ctx context.Context, id string) (*domain.Shop, error) {
			s := testShop(id, 35.68, 139.76)
			return &s, nil
		},
	})))

	req := httptest.NewRequest("GET", "/v1/shops/s42", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var shop domain.Shop
	if err := json.NewDecoder(resp.Body).Decode(&shop); err != nil {
		t.Fatal(err)
	}
	if shop.ID != "s42" || !shop.Amenities.Wifi {
		t.Errorf("unexpected shop: %+v", shop)
	}
	if cc := resp.Header.Get("Cache-Control"); cc != "public, max-age=600" {
		t.Errorf("expected single-shop Cache-Control, got %q", cc)
	}
}

func TestGetShop_NotFound(t *testing.T) {
	app := setupApp(makeDeps())

	req := httptest.NewRequest("GET", "/v1/shops/missing", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 404 {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
	if apiErr := decodeError(t, resp.Body); apiErr.Code != "not_found" {
		t.Errorf("expected not_found, got %s", apiErr.Code)
	}
}

func TestETag_NotModified(t *testing.T) {
	app := setupApp(makeDeps())

	resp, _ := app.Test(httptest.NewRequest("GET", "/v1/shops", nil), -1)
	etag := resp.Header.Get("ETag")
	if etag == "" {
		t.Fatal("expected ETag header")
	}

	req := httptest.NewRequest("GET", "/v1/shops", nil)
	req.Header.Set("If-None-Match", etag)
	resp, _ = app.Test(req, -1)
	if resp.StatusCode != 304 {
		t.Errorf("expected 304, got %d", resp.StatusCode)
	}
}

// ---- Session events ----

func TestViewport_Accepted(t *testing.T) {
	pub := &recordingPublisher{}
	app := setupApp(makeDeps(func(d *handler.Dependencies) { d.Events = pub }))

	body := `{"center":{"lat":35.68,"lng":139.76},"latitude_delta":0.1,"longitude_delta":0.1}`
	req := httptest.NewRequest("POST", "/v1/sessions/kiosk-1/viewport", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 202 {
		t.Fatalf("expected 202, got %d: %s", resp.StatusCode, readBody(t, resp.Body))
	}

	var result struct {
		RadiusKm float64 `json:"radius_km"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatal(err)
	}
	if result.RadiusKm != 7 {
		t.Errorf("expected planned radius 7, got %v", result.RadiusKm)
	}

	got := pub.viewports["kiosk-1"]
	if len(got) != 1 || got[0].Center.Lat != 35.68 || got[0].LatitudeDelta != 0.1 {
		t.Errorf("unexpected published viewports: %+v", got)
	}
}

func TestViewport_BadInput(t *testing.T) {
	app := setupApp(makeDeps(func(d *handler.Dependencies) { d.Events = &recordingPublisher{} }))

	tests := []struct {
		name, path, body string
	}{
		{"malformed json", "/v1/sessions/kiosk-1/viewport", `{"center":`},
		{"center out of range", "/v1/sessions/kiosk-1/viewport", `{"center":{"lat":120,"lng":0},"latitude_delta":1}`},
		{"negative span", "/v1/sessions/kiosk-1/viewport", `{"center":{"lat":35,"lng":139},"latitude_delta":-1}`},
		{"bad session id", "/v1/sessions/bad!id/viewport", `{"center":{"lat":35,"lng":139},"latitude_delta":1}`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", tc.path, strings.NewReader(tc.body))
			req.Header.Set("Content-Type", "application/json")
			resp, _ := app.Test(req, -1)
			if resp.StatusCode != 400 {
				t.Errorf("expected 400, got %d", resp.StatusCode)
			}
		})
	}
}

func TestViewport_NoEventBus(t *testing.T) {
	app := setupApp(makeDeps())

	body := `{"center":{"lat":35.68,"lng":139.76},"latitude_delta":0.1,"longitude_delta":0.1}`
	req := httptest.NewRequest("POST", "/v1/sessions/kiosk-1/viewport", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 503 {
		t.Fatalf("expected 503, got %d", resp.StatusCode)
	}
}

func TestForeground_Accepted(t *testing.T) {
	pub := &recordingPublisher{}
	app := setupApp(makeDeps(func(d *handler.Dependencies) { d.Events = pub }))

	req := httptest.NewRequest("POST", "/v1/sessions/kiosk-1/foreground", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 202 {
		t.Fatalf("expected 202, got %d", resp.StatusCode)
	}
	if len(pub.foregrounds) != 1 || pub.foregrounds[0] != "kiosk-1" {
		t.Errorf("unexpected foreground signals: %v", pub.foregrounds)
	}
}

// ---- GraphQL ----

func graphqlQuery(t *testing.T, app *fiber.App, query string) map[string]interface{} {
	t.Helper()
	body, _ := json.Marshal(map[string]string{"query": query})
	req := httptest.NewRequest("POST", "/graphql", strings.NewReader(string(body)))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var result struct {
		Data   map[string]interface{} `json:"data"`
		Errors []interface{}          `json:"errors"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatal(err)
	}
	if len(result.Errors) > 0 {
		t.Fatalf("graphql errors: %v", result.Errors)
	}
	return result.Data
}

func TestGraphQL_ShopsNearby(t *testing.T) {
	app := setupApp(makeDeps(withShops(&mockShopRepo{
		findInBoundsFn: func(ctx context.Context, center domain.GeoPoint, b domain.Bounds, limit int) ([]domain.Shop, error) {
			return []domain.Shop{testShop("s1", 35.68, 139.76)}, nil
		},
	})))

	data := graphqlQuery(t, app, `{ shopsNearby(lat: 35.68, lng: 139.76, radius_km: 5) { id name lat amenities { wifi } } }`)
	shops, ok := data["shopsNearby"].([]interface{})
	if !ok || len(shops) != 1 {
		t.Fatalf("unexpected result: %v", data)
	}
	s := shops[0].(map[string]interface{})
	if s["id"] != "s1" || s["lat"] != 35.68 {
		t.Errorf("unexpected shop: %v", s)
	}
	if am := s["amenities"].(map[string]interface{}); am["wifi"] != true {
		t.Errorf("expected wifi amenity, got %v", am)
	}
}

func TestGraphQL_PlanRadius(t *testing.T) {
	app := setupApp(makeDeps())

	data := graphqlQuery(t, app, `{ planRadius(latitude_delta: 100) }`)
	if data["planRadius"] != 5000.0 {
		t.Errorf("expected 5000, got %v", data["planRadius"])
	}
}

// ---- Health ----

func TestHealth_Returns200(t *testing.T) {
	app := setupApp(makeDeps())

	req := httptest.NewRequest("GET", "/v1/health", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var result map[string]interface{}
	json.NewDecoder(resp.Body).Decode(&result)
	if result["status"] != "healthy" {
		t.Errorf("expected healthy status, got %v", result["status"])
	}
}

func TestReady_NoDB(t *testing.T) {
	// DB, NATS, Cache are nil → should report not ready
	app := setupApp(makeDeps())

	req := httptest.NewRequest("GET", "/v1/ready", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 503 {
		t.Fatalf("expected 503, got %d", resp.StatusCode)
	}
}

func TestAPIVersionHeader(t *testing.T) {
	app := setupApp(makeDeps())

	req := httptest.NewRequest("GET", "/v1/health", nil)
	resp, _ := app.Test(req, -1)
	if v := resp.Header.Get("X-API-Version"); v != "1.0.0" {
		t.Errorf("expected X-API-Version 1.0.0, got %q", v)
	}
}

// TestAccessLogMiddleware verifies structured access logging passes responses through.
func TestAccessLogMiddleware(t *testing.T) {
	app := fiber.New()
	app.Use(handler.AccessLogMiddleware())
	app.Get("/test", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true})
	})

	req := httptest.NewRequest("GET", "/test", nil)
	req.Header.Set("X-Request-ID", "test-req-123")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}
	if body := readBody(t, resp.Body); !strings.Contains(string(body), "ok") {
		t.Errorf("expected response body to contain 'ok', got %s", body)
	}
}
