// Package redis caches connection state so it survives restarts and can be
// read by other processes.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultPrefix namespaces every key written by the cache.
const DefaultPrefix = "hivekit"

// Client wraps the Redis operations used by the endpoint cache.
type Client struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

// Config holds Redis connection configuration.
type Config struct {
	URL      string        `yaml:"url"`
	Password string        `yaml:"password"`
	Prefix   string        `yaml:"prefix"`
	TTL      time.Duration `yaml:"ttl"`
}

// NewClient creates a new Redis client and checks the connection.
func NewClient(cfg Config) (*Client, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}

	rdb := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	prefix := cfg.Prefix
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Client{rdb: rdb, prefix: prefix, ttl: cfg.TTL}, nil
}

// Close closes the Redis connection.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Key helpers
func lastEndpointKey(prefix string) string {
	return fmt.Sprintf("%s:last_endpoint", prefix)
}

func endpointsKey(prefix string) string {
	return fmt.Sprintf("%s:endpoints", prefix)
}

func stateKey(prefix string) string {
	return fmt.Sprintf("%s:state", prefix)
}

// LastEndpoint returns the endpoint that was active most recently.
func (c *Client) LastEndpoint(ctx context.Context) (string, bool, error) {
	url, err := c.rdb.Get(ctx, lastEndpointKey(c.prefix)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get last endpoint: %w", err)
	}
	return url, true, nil
}

// SetLastEndpoint records url as the active endpoint.
func (c *Client) SetLastEndpoint(ctx context.Context, url string) error {
	if err := c.rdb.Set(ctx, lastEndpointKey(c.prefix), url, c.ttl).Err(); err != nil {
		return fmt.Errorf("set last endpoint: %w", err)
	}
	return nil
}
