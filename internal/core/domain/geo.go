package domain

import "errors"

// ErrInvalidViewport is returned when a viewport cannot be planned against.
var ErrInvalidViewport = errors.New("invalid viewport")

// GeoPoint represents a geographic coordinate (WGS 84).
type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Valid reports whether the point lies inside the WGS 84 ranges.
func (p GeoPoint) Valid() bool {
	return p.Lat >= -90 && p.Lat <= 90 && p.Lng >= -180 && p.Lng <= 180
}

// Bounds represents a geographic bounding box.
type Bounds struct {
	MinLat float64 `json:"min_lat"`
	MinLng float64 `json:"min_lng"`
	MaxLat float64 `json:"max_lat"`
	MaxLng float64 `json:"max_lng"`
}

// Viewport is the visible map region reported by the map UI when a pan or
// zoom gesture settles.
type Viewport struct {
	Center         GeoPoint `json:"center"`
	LatitudeDelta  float64  `json:"latitude_delta"`
	LongitudeDelta float64  `json:"longitude_delta"`
}

// Validate checks the viewport center and span.
func (v Viewport) Validate() error {
	if !v.Center.Valid() {
		return errors.Join(ErrInvalidViewport, errors.New("center out of range"))
	}
	if v.LatitudeDelta < 0 || v.LongitudeDelta < 0 {
		return errors.Join(ErrInvalidViewport, errors.New("negative span"))
	}
	return nil
}

// SearchedArea is a circular region already queried against the shop
// query service. Immutable once recorded.
type SearchedArea struct {
	Center   GeoPoint `json:"center"`
	RadiusKm float64  `json:"radius_km"`
}
