package http

import (
	"github.com/nats-io/nats.go"

	"github.com/samirrijal/shopradar/internal/adapters/postgres"
	"github.com/samirrijal/shopradar/internal/adapters/valkey"
	"github.com/samirrijal/shopradar/internal/core/ports"
	"github.com/samirrijal/shopradar/internal/core/usecases"
)

// Dependencies holds all services needed by HTTP handlers.
type Dependencies struct {
	Shops  *usecases.ShopService
	Events ports.EventPublisher // session viewport/foreground events
	NATS   *nats.Conn           // render-frame relay
	DB     *postgres.DB
	Cache  *valkey.Cache
}
