package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"shopfront_back_end/internal/models"
)

const (
	ProductCacheTTL  = 10 * time.Minute
	productListKey   = "products:list"
	productKeyPrefix = "product:"
)

// ProductSource is the store the cache reads through to.
type ProductSource interface {
	Create(ctx context.Context, p *models.Product) error
	FindByID(ctx context.Context, id string) (*models.Product, error)
	List(ctx context.Context) ([]models.Product, error)
	Delete(ctx context.Context, id string) error
}

// ProductCache is a read-through Redis cache in front of the product store.
// Writes go to the store first, then drop the affected keys.
// Cache failures are logged and never fail the request.
type ProductCache struct {
	next   ProductSource
	client *redis.Client
	ttl    time.Duration
	log    *slog.Logger
}

func NewProductCache(next ProductSource, client *redis.Client, log *slog.Logger) *ProductCache {
	return &ProductCache{next: next, client: client, ttl: ProductCacheTTL, log: log}
}

func (c *ProductCache) Create(ctx context.Context, p *models.Product) error {
	if err := c.next.Create(ctx, p); err != nil {
		return err
	}
	c.invalidate(ctx, productListKey)
	return nil
}

func (c *ProductCache) FindByID(ctx context.Context, id string) (*models.Product, error) {
	var p models.Product
	if c.get(ctx, productKeyPrefix+id, &p) {
		return &p, nil
	}
	found, err := c.next.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	c.set(ctx, productKeyPrefix+id, found)
	return found, nil
}

func (c *ProductCache) List(ctx context.Context) ([]models.Product, error) {
	var products []models.Product
	if c.get(ctx, productListKey, &products) {
		return products, nil
	}
	products, err := c.next.List(ctx)
	if err != nil {
		return nil, err
	}
	c.set(ctx, productListKey, products)
	return products, nil
}

func (c *ProductCache) Delete(ctx context.Context, id string) error {
	if err := c.next.Delete(ctx, id); err != nil {
		return err
	}
	c.invalidate(ctx, productListKey, productKeyPrefix+id)
	return nil
}

func (c *ProductCache) get(ctx context.Context, key string, dest any) bool {
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.log.Warn("product cache read failed", "key", key, "error", err)
		}
		return false
	}
	if err := json.Unmarshal(data, dest); err != nil {
		c.log.Warn("product cache entry corrupt", "key", key, "error", err)
		return false
	}
	return true
}

func (c *ProductCache) set(ctx context.Context, key string, value any) {
	data, err := json.Marshal(value)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.log.Warn("product cache write failed", "key", key, "error", err)
	}
}

func (c *ProductCache) invalidate(ctx context.Context, keys ...string) {
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		c.log.Warn("product cache invalidation failed", "keys", keys, "error", err)
	}
}
