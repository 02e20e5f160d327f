// Package redis dials the pub/sub backend that fans notifications out
// across gateway instances. An empty URL means redis is not configured and
// the caller falls back to the in-process hub.
package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"cmdgate/internal/platform/config"
)

// Client embeds the raw go-redis client so the notification publisher can
// publish through it directly.
type Client struct {
	*redis.Client
}

// New parses and dials cfg.URL, returning (nil, nil) when no URL is set.
// Pool and timeout settings from cfg override the URL's defaults only when
// they are non-zero, so a bare URL keeps the driver's defaults.
func New(cfg config.RedisConfig) (*Client, error) {
	if cfg.URL == "" {
		return nil, nil
	}

	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	if cfg.PoolSize > 0 {
		opts.PoolSize = cfg.PoolSize
	}
	if cfg.MinIdleConns > 0 {
		opts.MinIdleConns = cfg.MinIdleConns
	}
	if cfg.DialTimeout > 0 {
		opts.DialTimeout = cfg.DialTimeout
	}
	if cfg.ReadTimeout > 0 {
		opts.ReadTimeout = cfg.ReadTimeout
	}
	if cfg.WriteTimeout > 0 {
		opts.WriteTimeout = cfg.WriteTimeout
	}

	client := redis.NewClient(opts)
	if err := client.Ping(context.Background()).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("dial redis: %w", err)
	}
	return &Client{Client: client}, nil
}

// Health reports whether the connection still answers.
func (c *Client) Health(ctx context.Context) error {
	return c.Ping(ctx).Err()
}
