package geospatial

import "math"

const (
	earthRadiusKm = 6371.0

	// KmPerDegree is the length of one degree of latitude, rounded.
	KmPerDegree = 111.0
)

// Haversine calculates the great-circle distance in kilometers between two points.
func Haversine(lat1, lng1, lat2, lng2 float64) float64 {
	dLat := toRad(lat2 - lat1)
	dLng := toRad(lng2 - lng1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*
			math.Sin(dLng/2)*math.Sin(dLng/2)

	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusKm * c
}

// PlanarDegrees is the flat-plane distance between two points measured in
// degrees. It ignores longitude convergence, so it over-estimates east-west
// separation away from the equator and breaks across the antimeridian.
func PlanarDegrees(lat1, lng1, lat2, lng2 float64) float64 {
	return math.Hypot(lat2-lat1, lng2-lng1)
}

// BoundingBox returns a bounding box around a point with the given radius in kilometers.
func BoundingBox(lat, lng, radiusKm float64) (minLat, minLng, maxLat, maxLng float64) {
	latDelta := radiusKm / 111.32
	lngDelta := radiusKm / (111.32 * math.Cos(toRad(lat)))

	minLat, maxLat = math.Max(lat-latDelta, -90), math.Min(lat+latDelta, 90)
	minLng, maxLng = math.Max(lng-lngDelta, -180), math.Min(lng+lngDelta, 180)
	return minLat, minLng, maxLat, maxLng
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}
