package usecases

import (
	"math"

	"github.com/samirrijal/shopradar/internal/core/domain"
	"github.com/samirrijal/shopradar/internal/pkg/geospatial"
)

const (
	MinSearchRadiusKm = 5.0
	MaxSearchRadiusKm = 5000.0

	// radiusSpanFactor keeps the search slightly inside the visible span.
	radiusSpanFactor = 0.6
)

// PlanRadius maps a viewport to a search radius in kilometers:
// round(latitudeDelta * 111 * 0.6), clamped to [5, 5000].
func PlanRadius(v domain.Viewport) float64 {
	r := math.Round(v.LatitudeDelta * geospatial.KmPerDegree * radiusSpanFactor)
	if math.IsNaN(r) || r < MinSearchRadiusKm {
		return MinSearchRadiusKm
	}
	if r > MaxSearchRadiusKm {
		return MaxSearchRadiusKm
	}
	return r
}

// ValidSearchRadius reports whether radiusKm is a usable query radius:
// a number in (0, MaxSearchRadiusKm].
func ValidSearchRadius(radiusKm float64) bool {
	return !math.IsNaN(radiusKm) && radiusKm > 0 && radiusKm <= MaxSearchRadiusKm
}
