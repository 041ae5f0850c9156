package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/wonny/pitlab/pkg/config"
)

// Client wraps go-redis with an enabled flag so the system degrades to
// in-process fallbacks when Redis is not deployed.
// ⭐ SSOT: Redis 연결은 이 패키지에서만 생성
type Client struct {
	rdb     *redis.Client
	enabled bool
}

// New creates a Redis client. When disabled in config, the returned client
// reports Enabled() == false and is never dialed.
func New(cfg *config.Config) (*Client, error) {
	if !cfg.Redis.Enabled {
		return &Client{enabled: false}, nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return &Client{rdb: rdb, enabled: true}, nil
}

// Enabled reports whether Redis is available.
func (c *Client) Enabled() bool { return c.enabled }

// Redis exposes the underlying client.
func (c *Client) Redis() *redis.Client { return c.rdb }

// Close closes the connection.
func (c *Client) Close() error {
	if c.rdb != nil {
		return c.rdb.Close()
	}
	return nil
}
