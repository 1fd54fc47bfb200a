package cache

import (
	"context"
	"encoding/json"
	"time"

	"linkgate/internal/models"

	"github.com/redis/go-redis/v9"
)

// RedisLinkCache stores full link snapshots as JSON with a bounded TTL.
// Every Redis error is treated as a miss so a dead Redis only costs the
// storage round trip.
type RedisLinkCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisLinkCache(rdb *redis.Client, ttl time.Duration) *RedisLinkCache {
	return &RedisLinkCache{rdb: rdb, ttl: ttl}
}

func (c *RedisLinkCache) Lookup(ctx context.Context, shortCode string) (*models.Link, bool) {
	val, err := c.rdb.Get(ctx, "link:"+shortCode).Result()
	if err != nil {
		return nil, false
	}
	var link models.Link
	if err := json.Unmarshal([]byte(val), &link); err != nil {
		return nil, false
	}
	return &link, true
}

func (c *RedisLinkCache) Fill(ctx context.Context, shortCode string, link *models.Link) {
	data, err := json.Marshal(link)
	if err != nil {
		return
	}
	c.rdb.Set(ctx, "link:"+shortCode, data, c.ttl)
}

func (c *RedisLinkCache) Invalidate(ctx context.Context, shortCode string) {
	c.rdb.Del(ctx, "link:"+shortCode)
}
