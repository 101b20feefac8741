package telemetry

// Span names used for tracing instrumentation.
const (
	// Collector
	SpanViewportSettled = "collector.viewport_settled"
	SpanAreaQuery       = "collector.area_query"

	// Location
	SpanRequestLocation = "location.request"

	// Shop API client
	SpanShopSearchNearby = "shopapi.search_nearby"
	SpanShopListAll      = "shopapi.list_all"
)
