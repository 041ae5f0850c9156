package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache is a namespaced key/value cache used for ingestion idempotency
// markers and small payloads.
type Cache struct {
	client *Client
	prefix string
	ttl    time.Duration
}

// NewCache creates a cache under the given namespace.
func NewCache(client *Client, prefix string, ttl time.Duration) *Cache {
	return &Cache{client: client, prefix: prefix, ttl: ttl}
}

func (c *Cache) key(k string) string {
	return fmt.Sprintf("%s:%s", c.prefix, k)
}

// SetNX sets a value only if the key is absent. Returns whether the write
// happened. Redis 비활성화 시 항상 true - 상위 레이어가 로컬 캐시로 보완
func (c *Cache) SetNX(ctx context.Context, k, v string) (bool, error) {
	if !c.client.Enabled() {
		return true, nil
	}
	return c.client.Redis().SetNX(ctx, c.key(k), v, c.ttl).Result()
}

// Get returns a cached value, "" and false when absent.
func (c *Cache) Get(ctx context.Context, k string) (string, bool, error) {
	if !c.client.Enabled() {
		return "", false, nil
	}
	v, err := c.client.Redis().Get(ctx, c.key(k)).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("cache get %s: %w", k, err)
	}
	return v, true, nil
}

// Delete removes a key.
func (c *Cache) Delete(ctx context.Context, k string) error {
	if !c.client.Enabled() {
		return nil
	}
	return c.client.Redis().Del(ctx, c.key(k)).Err()
}
