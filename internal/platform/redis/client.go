package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"flagledger/internal/platform/config"
)

// Client wraps go-redis for the rating snapshot cache, the ledger's only
// Redis consumer.
type Client struct {
	*redis.Client
}

// New connects to Redis and verifies the connection with a ping. Returns nil
// when no URL is configured; callers treat a nil client as caching disabled
// and serve ratings straight from the flag store.
func New(cfg config.RedisConfig) (*Client, error) {
	if cfg.URL == "" {
		return nil, nil
	}

	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}

	// Named so the cache connections are identifiable in CLIENT LIST.
	opts.ClientName = "flagledger"
	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns
	opts.DialTimeout = cfg.DialTimeout
	opts.ReadTimeout = cfg.ReadTimeout
	opts.WriteTimeout = cfg.WriteTimeout

	client := redis.NewClient(opts)

	if err := client.Ping(context.Background()).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Client{Client: client}, nil
}

// Health reports whether the cache connection still answers.
func (c *Client) Health(ctx context.Context) error {
	return c.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (c *Client) Close() error {
	return c.Client.Close()
}
