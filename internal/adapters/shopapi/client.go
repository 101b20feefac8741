// Package shopapi is a fasthttp client for the shop query HTTP API.
package shopapi

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/samirrijal/shopradar/internal/core/domain"
	"github.com/samirrijal/shopradar/internal/pkg/telemetry"
)

// StatusError is returned for non-200 responses.
type StatusError struct {
	Status  int
	Code    string
	Message string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("HTTP %d %s: %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("HTTP %d", e.Status)
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Options configure a Client.
type Options struct {
	BaseURL string
	Timeout time.Duration
	// Dial overrides the TCP dialer. Used for in-memory listeners in tests.
	Dial fasthttp.DialFunc
}

// Client implements ports.ShopQueryService over HTTP. It does not retry.
type Client struct {
	base    string
	timeout time.Duration
	http    *fasthttp.Client
}

// New creates a client for the API at opts.BaseURL.
func New(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	return &Client{
		base:    strings.TrimRight(opts.BaseURL, "/"),
		timeout: opts.Timeout,
		http: &fasthttp.Client{
			Name:                "shopradar-locator",
			Dial:                opts.Dial,
			MaxConnsPerHost:     32,
			MaxIdleConnDuration: 30 * time.Second,
			ReadTimeout:         opts.Timeout,
			WriteTimeout:        opts.Timeout,
		},
	}
}

// SearchNearby calls GET /v1/shops/nearby.
func (c *Client) SearchNearby(ctx context.Context, lat, lng, radiusKm float64, limit int) (*domain.ShopPage, error) {
	q := fasthttp.AcquireArgs()
	defer fasthttp.ReleaseArgs(q)
	q.Add("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	q.Add("lng", strconv.FormatFloat(lng, 'f', -1, 64))
	q.Add("radius_km", strconv.FormatFloat(radiusKm, 'f', -1, 64))
	q.Add("limit", strconv.Itoa(limit))

	ctx, span := telemetry.Tracer().Start(ctx, telemetry.SpanShopSearchNearby, trace.WithAttributes(
		attribute.Float64("lat", lat),
		attribute.Float64("lng", lng),
		attribute.Float64("radius_km", radiusKm),
	))
	defer span.End()

	page, err := c.get(ctx, "/v1/shops/nearby", q)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return page, err
}

// ListAll calls GET /v1/shops.
func (c *Client) ListAll(ctx context.Context, limit int) (*domain.ShopPage, error) {
	q := fasthttp.AcquireArgs()
	defer fasthttp.ReleaseArgs(q)
	q.Add("limit", strconv.Itoa(limit))

	ctx, span := telemetry.Tracer().Start(ctx, telemetry.SpanShopListAll)
	defer span.End()

	page, err := c.get(ctx, "/v1/shops", q)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return page, err
}

func (c *Client) get(ctx context.Context, path string, q *fasthttp.Args) (*domain.ShopPage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	url := c.base + path + "?" + q.String()
	req.SetRequestURI(url)
	req.Header.SetMethod(fasthttp.MethodGet)
	req.Header.Set("Accept", "application/json")
	telemetry.InjectFastHTTP(ctx, &req.Header)

	deadline := time.Now().Add(c.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := c.http.DoDeadline(req, resp, deadline); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("GET %s: %w", url, err)
	}

	if resp.StatusCode() != fasthttp.StatusOK {
		se := &StatusError{Status: resp.StatusCode()}
		var body errorBody
		if json.Unmarshal(resp.Body(), &body) == nil {
			se.Code, se.Message = body.Code, body.Message
		}
		return nil, se
	}

	var page domain.ShopPage
	if err := json.Unmarshal(resp.Body(), &page); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return &page, nil
}
