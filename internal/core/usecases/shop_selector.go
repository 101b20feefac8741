package usecases

import "github.com/samirrijal/shopradar/internal/core/domain"

// SelectShops picks the single list to render. Viewport-driven collection
// wins once it holds anything; otherwise the nearby dataset is used when
// there is a coordinate; otherwise the all-shops dataset. A nil dataset
// means it is unavailable. The result is never nil.
func SelectShops(collected []domain.Shop, coordinate *domain.GeoPoint, nearby, fallback []domain.Shop) []domain.Shop {
	switch {
	case len(collected) > 0:
		return collected
	case coordinate != nil && nearby != nil:
		return nearby
	case fallback != nil:
		return fallback
	default:
		return []domain.Shop{}
	}
}
