package valkey

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/valkey-io/valkey-go"
)

// ErrMiss is returned by Get when the key does not exist.
var ErrMiss = errors.New("cache miss")

// Cache implements ports.CacheService using Valkey (Redis-compatible).
type Cache struct {
	client valkey.Client
	prefix string
}

// New creates a new Valkey cache client. Keys are namespaced under prefix.
func New(addr, prefix string) (*Cache, error) {
	client, err := valkey.NewClient(valkey.ClientOption{
		InitAddress: []string{addr},
	})
	if err != nil {
		return nil, fmt.Errorf("valkey connect: %w", err)
	}
	return &Cache{client: client, prefix: prefix}, nil
}

// Get retrieves a value by key.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, error) {
	cmd := c.client.Do(ctx, c.client.B().Get().Key(c.key(key)).Build())
	if err := cmd.Error(); err != nil {
		if valkey.IsValkeyNil(err) {
			return nil, ErrMiss
		}
		return nil, err
	}
	return cmd.AsBytes()
}

// Set stores a value with a TTL in seconds.
func (c *Cache) Set(ctx context.Context, key string, value []byte, ttlSeconds int) error {
	cmd := c.client.Do(ctx,
		c.client.B().Set().Key(c.key(key)).Value(valkey.BinaryString(value)).Ex(time.Duration(ttlSeconds)*time.Second).Build(),
	)
	return cmd.Error()
}

// Delete removes a key.
func (c *Cache) Delete(ctx context.Context, key string) error {
	cmd := c.client.Do(ctx, c.client.B().Del().Key(c.key(key)).Build())
	return cmd.Error()
}

// Ping checks that the server is reachable.
func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Do(ctx, c.client.B().Ping().Build()).Error()
}

// Close releases the client.
func (c *Cache) Close() {
	c.client.Close()
}

func (c *Cache) key(k string) string {
	if c.prefix == "" {
		return k
	}
	return c.prefix + ":" + k
}
