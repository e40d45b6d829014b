package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultCacheTTL = 10 * time.Minute

// RedisCache keeps finished reports in Redis under their cache key.
type RedisCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisCache(rdb *redis.Client, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &RedisCache{rdb: rdb, ttl: ttl}
}

func (c *RedisCache) keyReport(key string) string { return "analysis:report:" + strings.TrimSpace(key) }

func (c *RedisCache) Get(ctx context.Context, key string) (*Report, error) {
	raw, err := c.rdb.Get(ctx, c.keyReport(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get: %w", err)
	}
	var r Report
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, fmt.Errorf("decode cached report: %w", err)
	}
	return &r, nil
}

func (c *RedisCache) Put(ctx context.Context, report *Report) error {
	if report == nil || report.Key == "" {
		return fmt.Errorf("report without cache key")
	}
	raw, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	return c.rdb.Set(ctx, c.keyReport(report.Key), raw, c.ttl).Err()
}
