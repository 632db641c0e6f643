package resolver

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache guarda permalink -> user_id; o id interno de um perfil não muda.
type Cache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewCache usa 30 dias quando ttl <= 0.
func NewCache(rdb *redis.Client, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = 30 * 24 * time.Hour
	}
	return &Cache{rdb: rdb, ttl: ttl}
}

func cacheKey(permalink string) string {
	return "soundgraph:resolve:" + permalink
}

func (c *Cache) Get(ctx context.Context, permalink string) (int64, bool, error) {
	val, err := c.rdb.Get(ctx, cacheKey(permalink)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("cache de resolução: %w", err)
	}
	id, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, false, nil
	}
	return id, true, nil
}

func (c *Cache) Set(ctx context.Context, permalink string, id int64) error {
	return c.rdb.Set(ctx, cacheKey(permalink), strconv.FormatInt(id, 10), c.ttl).Err()
}
