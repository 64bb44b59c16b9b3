package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/inkrouter/ink-router/internal/compose"
	"github.com/inkrouter/ink-router/internal/pkg/logger"
)

const redisKeyPrefix = "ink:cache:"

// RedisCache stores responses in Redis so multiple router instances share
// one cache.
type RedisCache struct {
	client  *redis.Client
	ttl     time.Duration
	log     *logger.Logger
	hits    atomic.Int64
	misses  atomic.Int64
	metrics Metrics
}

// NewRedisCache connects to Redis at redisURL and verifies the connection.
func NewRedisCache(redisURL string, ttl time.Duration, log *logger.Logger) (*RedisCache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	return &RedisCache{
		client: client,
		ttl:    ttl,
		log:    log,
	}, nil
}

// SetMetrics attaches a metrics recorder.
func (c *RedisCache) SetMetrics(m Metrics) { c.metrics = m }

// Get returns the cached response for key if present.
func (c *RedisCache) Get(key string) (compose.Response, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	data, err := c.client.Get(ctx, redisKeyPrefix+key).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.log.Warn("redis cache read failed", "error", err)
		}
		c.misses.Add(1)
		if c.metrics != nil {
			c.metrics.RecordCacheMiss("redis")
		}
		return compose.Response{}, false
	}

	var resp compose.Response
	if err := json.Unmarshal(data, &resp); err != nil {
		c.log.Warn("redis cache entry corrupt, dropping", "key", key, "error", err)
		c.client.Del(ctx, redisKeyPrefix+key)
		c.misses.Add(1)
		if c.metrics != nil {
			c.metrics.RecordCacheMiss("redis")
		}
		return compose.Response{}, false
	}

	c.hits.Add(1)
	if c.metrics != nil {
		c.metrics.RecordCacheHit("redis")
	}
	return resp, true
}

// Set stores a response under key with the configured TTL.
func (c *RedisCache) Set(key string, resp compose.Response) {
	data, err := json.Marshal(resp)
	if err != nil {
		c.log.Warn("failed to encode response for cache", "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := c.client.Set(ctx, redisKeyPrefix+key, data, c.ttl).Err(); err != nil {
		c.log.Warn("redis cache write failed", "error", err)
	}
}

// Stats returns hit and miss counts. Size is the number of router cache keys
// currently in Redis.
func (c *RedisCache) Stats() Stats {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	size := 0
	iter := c.client.Scan(ctx, 0, redisKeyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		size++
	}

	return Stats{
		Size:   size,
		Hits:   c.hits.Load(),
		Misses: c.misses.Load(),
	}
}

// Clear removes all router cache keys.
func (c *RedisCache) Clear() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	iter := c.client.Scan(ctx, 0, redisKeyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		c.client.Del(ctx, iter.Val())
	}
}

// Close closes the Redis connection.
func (c *RedisCache) Close() error { return c.client.Close() }
