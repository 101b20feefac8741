package domain

import (
	"errors"
	"strings"
	"time"
)

// ErrShopNotFound is returned when a shop id does not exist.
var ErrShopNotFound = errors.New("shop not found")

// Amenities are the optional facility flags a shop advertises.
type Amenities struct {
	Wifi         bool `json:"wifi"`
	PowerOutlets bool `json:"power_outlets"`
	Smoking      bool `json:"smoking"`
	Takeout      bool `json:"takeout"`
}

// Shop is a point of interest shown on the map.
type Shop struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Address   string    `json:"address"`
	Location  GeoPoint  `json:"location"`
	Amenities Amenities `json:"amenities"`
	Distance  *float64  `json:"distance_km,omitempty"` // computed field
	UpdatedAt time.Time `json:"updated_at"`
}

// ShopCandidate is a shop record as decoded from an upstream payload,
// before validation. Coordinates may be missing.
type ShopCandidate struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Address   string    `json:"address"`
	Lat       *float64  `json:"lat"`
	Lng       *float64  `json:"lng"`
	Amenities Amenities `json:"amenities"`
	Distance  *float64  `json:"distance_km,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Candidate converts a typed shop back into its wire form.
func (s Shop) Candidate() ShopCandidate {
	lat, lng := s.Location.Lat, s.Location.Lng
	return ShopCandidate{
		ID:        s.ID,
		Name:      s.Name,
		Address:   s.Address,
		Lat:       &lat,
		Lng:       &lng,
		Amenities: s.Amenities,
		Distance:  s.Distance,
		UpdatedAt: s.UpdatedAt,
	}
}

// ParsedShop is the result of parsing a candidate: either Valid with Shop
// populated, or invalid with Reason set.
type ParsedShop struct {
	Shop   Shop
	Valid  bool
	Reason string
}

// ParseShop validates a candidate. A shop is valid iff it has a non-empty
// id, name and address, and both coordinates are present and in range.
// Whitespace-only text fields count as empty.
func ParseShop(c ShopCandidate) ParsedShop {
	switch {
	case strings.TrimSpace(c.ID) == "":
		return ParsedShop{Reason: "missing id"}
	case strings.TrimSpace(c.Name) == "":
		return ParsedShop{Reason: "missing name"}
	case strings.TrimSpace(c.Address) == "":
		return ParsedShop{Reason: "missing address"}
	case c.Lat == nil || c.Lng == nil:
		return ParsedShop{Reason: "missing coordinate"}
	}

	loc := GeoPoint{Lat: *c.Lat, Lng: *c.Lng}
	if !loc.Valid() {
		return ParsedShop{Reason: "coordinate out of range"}
	}

	return ParsedShop{
		Valid: true,
		Shop: Shop{
			ID:        c.ID,
			Name:      c.Name,
			Address:   c.Address,
			Location:  loc,
			Amenities: c.Amenities,
			Distance:  c.Distance,
			UpdatedAt: c.UpdatedAt,
		},
	}
}

// Pagination describes one page of a shop listing.
type Pagination struct {
	Offset int  `json:"offset"`
	Limit  int  `json:"limit"`
	Total  int  `json:"total"`
	More   bool `json:"has_more"`
}

// ShopPage is a single response from the shop query service.
type ShopPage struct {
	Shops      []ShopCandidate `json:"shops"`
	Pagination Pagination      `json:"pagination"`
}
