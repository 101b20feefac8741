package ports

import (
	"context"

	"github.com/samirrijal/shopradar/internal/core/domain"
)

// LocationProvider is the device positioning API. All calls may fail.
type LocationProvider interface {
	CheckPermission(ctx context.Context) (domain.PermissionResponse, error)
	RequestPermission(ctx context.Context) (domain.PermissionResponse, error)
	// LastKnown returns a cached position, or nil when none satisfies opts.
	LastKnown(ctx context.Context, opts domain.LastKnownOptions) (*domain.Position, error)
	Current(ctx context.Context, opts domain.CurrentOptions) (*domain.Position, error)
}

// SettingsLauncher opens the OS settings screen for this app.
type SettingsLauncher interface {
	Open(ctx context.Context) error
}

// ReentrySource emits a value each time the app returns to the foreground.
// The channel is closed when ctx ends.
type ReentrySource interface {
	Reentries(ctx context.Context) (<-chan struct{}, error)
}

// ShopQueryService is the remote shop search API.
type ShopQueryService interface {
	SearchNearby(ctx context.Context, lat, lng, radiusKm float64, limit int) (*domain.ShopPage, error)
	ListAll(ctx context.Context, limit int) (*domain.ShopPage, error)
}

// EventPublisher publishes map-session events to a message broker.
type EventPublisher interface {
	PublishRender(ctx context.Context, sessionID string, frame *domain.Render) error
	PublishViewport(ctx context.Context, sessionID string, v domain.Viewport) error
	PublishForeground(ctx context.Context, sessionID string) error
	PublishSettingsOpened(ctx context.Context, sessionID string) error
}

// EventSubscriber delivers viewport events addressed to a session.
type EventSubscriber interface {
	SubscribeViewports(ctx context.Context, sessionID string, handler func(ctx context.Context, v domain.Viewport) error) error
}

// CacheService provides read-through caching.
type CacheService interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttlSeconds int) error
	Delete(ctx context.Context, key string) error
}
