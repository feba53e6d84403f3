// Package cache invalidates storefront cache entries in Redis after
// catalog changes.
package cache

import (
	"context"
	"fmt"

	"github.com/JonMunkholm/catalogo/internal/core"
	"github.com/redis/go-redis/v9"
)

const (
	productKeyPrefix = "producto:"

	// VersionKey is bumped on every change so storefronts holding list
	// pages can detect staleness with a single GET.
	VersionKey = "catalogo:version"

	delBatchSize = 500
)

// Config holds the Redis connection settings.
type Config struct {
	Addr     string
	Password string
	DB       int
}

// CatalogCache implements core.CacheInvalidator.
type CatalogCache struct {
	client redis.UniversalClient
}

var _ core.CacheInvalidator = (*CatalogCache)(nil)

// New connects to Redis.
func New(cfg Config) *CatalogCache {
	return &CatalogCache{
		client: redis.NewClient(&redis.Options{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
		}),
	}
}

// NewWithClient wraps an existing client.
func NewWithClient(client redis.UniversalClient) *CatalogCache {
	return &CatalogCache{client: client}
}

// Ping checks connectivity.
func (c *CatalogCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// InvalidateProducts deletes the cached entries for claves and bumps the
// catalog version in one pipeline.
func (c *CatalogCache) InvalidateProducts(ctx context.Context, claves []string) error {
	if len(claves) == 0 {
		return nil
	}

	pipe := c.client.Pipeline()
	for _, batch := range chunkKeys(ProductKeys(claves), delBatchSize) {
		pipe.Del(ctx, batch...)
	}
	pipe.Incr(ctx, VersionKey)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("invalidate %d products: %w", len(claves), err)
	}
	return nil
}

// Version returns the current catalog version, 0 when never bumped.
func (c *CatalogCache) Version(ctx context.Context) (int64, error) {
	v, err := c.client.Get(ctx, VersionKey).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	return v, err
}

// Close releases the client.
func (c *CatalogCache) Close() error {
	return c.client.Close()
}

// ProductKeys maps claves to their cache keys.
func ProductKeys(claves []string) []string {
	keys := make([]string, len(claves))
	for i, clave := range claves {
		keys[i] = productKeyPrefix + clave
	}
	return keys
}

func chunkKeys(keys []string, size int) [][]string {
	var out [][]string
	for start := 0; start < len(keys); start += size {
		out = append(out, keys[start:min(start+size, len(keys))])
	}
	return out
}
