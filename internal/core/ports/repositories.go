package ports

import (
	"context"

	"github.com/samirrijal/shopradar/internal/core/domain"
)

// ShopRepository persists shops for the shop query API.
type ShopRepository interface {
	Upsert(ctx context.Context, shop *domain.Shop) error
	UpsertBatch(ctx context.Context, shops []domain.Shop) error
	GetByID(ctx context.Context, id string) (*domain.Shop, error)
	// FindInBounds returns shops inside a bounding box, nearest to center first.
	FindInBounds(ctx context.Context, center domain.GeoPoint, bounds domain.Bounds, limit int) ([]domain.Shop, error)
	List(ctx context.Context, limit, offset int) ([]domain.Shop, int, error)
}
