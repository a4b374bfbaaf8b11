package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/go-redis/redis/v8"

	"gitlab.connectwisedev.com/storefront-service/models"
)

const (
	allProductIDsKey = "all_product_ids"
	generationKey    = "product_cache_gen"
	productTTL       = 5 * time.Minute
)

// ErrMiss means the cache cannot answer and the caller should read the database.
var ErrMiss = errors.New("cache: miss")

func productKey(id int64) string {
	return fmt.Sprintf("product:%d", id)
}

// ProductCache caches the product listing in Redis: one JSON value per
// product under product:<id> plus the all_product_ids set. Every
// invalidation bumps product_cache_gen, and a population started under an
// older generation is discarded.
type ProductCache struct {
	client *redis.Client
}

// NewProductCache wraps a connected client.
func NewProductCache(c *RedisClient) *ProductCache {
	return &ProductCache{client: c.GetClient()}
}

// Products returns every cached product ordered by id. Any missing member
// makes the whole read a miss so a stale partial list is never served.
func (c *ProductCache) Products(ctx context.Context) ([]models.Product, error) {
	ids, err := c.client.SMembers(ctx, allProductIDsKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get %s from Redis: %w", allProductIDsKey, err)
	}
	if len(ids) == 0 {
		return nil, ErrMiss
	}

	// Create keys for MGET
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = "product:" + id
	}

	results, err := c.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to MGET products from Redis: %w", err)
	}

	products := make([]models.Product, 0, len(results))
	for _, res := range results {
		if res == nil {
			// Evicted or expired member.
			return nil, ErrMiss
		}
		productJSON, ok := res.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected type from Redis MGET: %T", res)
		}
		var product models.Product
		if err := json.Unmarshal([]byte(productJSON), &product); err != nil {
			return nil, fmt.Errorf("failed to unmarshal product JSON from Redis: %w", err)
		}
		products = append(products, product)
	}
	sort.Slice(products, func(i, j int) bool { return products[i].ID < products[j].ID })
	return products, nil
}

// Generation returns the current invalidation generation. A missing key
// is generation 0.
func (c *ProductCache) Generation(ctx context.Context) (int64, error) {
	gen, err := c.client.Get(ctx, generationKey).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get %s from Redis: %w", generationKey, err)
	}
	return gen, nil
}

// Populate replaces the cached listing with products read under generation
// gen. It writes nothing and reports false when an invalidation has happened
// since, including one that races the write itself.
func (c *ProductCache) Populate(ctx context.Context, gen int64, products []models.Product) (bool, error) {
	stored := false
	err := c.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, generationKey).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if current != gen {
			return nil
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			ids := make([]interface{}, 0, len(products))
			for _, p := range products {
				productJSON, err := json.Marshal(p)
				if err != nil {
					log.Printf("Failed to marshal product %d for cache population: %v", p.ID, err)
					continue
				}
				pipe.Set(ctx, productKey(p.ID), productJSON, productTTL)
				ids = append(ids, p.ID)
			}

			pipe.Del(ctx, allProductIDsKey)
			if len(ids) > 0 {
				pipe.SAdd(ctx, allProductIDsKey, ids...)
				pipe.Expire(ctx, allProductIDsKey, productTTL)
			}
			return nil
		})
		if err != nil {
			return err
		}
		stored = true
		return nil
	}, generationKey)
	if errors.Is(err, redis.TxFailedErr) {
		// product_cache_gen moved between the check and EXEC.
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to execute Redis transaction for cache population: %w", err)
	}
	return stored, nil
}

// Invalidate drops the given products and the listing set and advances the
// generation, forcing the next read to the database and voiding any
// population already in flight.
func (c *ProductCache) Invalidate(ctx context.Context, productIDs ...int64) error {
	keys := make([]string, 0, len(productIDs)+1)
	keys = append(keys, allProductIDsKey)
	for _, id := range productIDs {
		keys = append(keys, productKey(id))
	}
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, generationKey)
		pipe.Del(ctx, keys...)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to invalidate product cache: %w", err)
	}
	return nil
}
