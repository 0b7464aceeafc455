package directory

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/R3E-Network/marketplace_console/internal/app/metrics"
	"github.com/R3E-Network/marketplace_console/internal/logging"
)

const cacheKeyPrefix = "directory:name:"

// NameCache stores resolved display names.
type NameCache interface {
	GetNames(ctx context.Context, emails []string) (map[string]string, error)
	SetNames(ctx context.Context, names map[string]string, ttl time.Duration) error
}

// RedisCache keeps display names in redis. A nil client disables it.
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache wraps client.
func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

// NewRedisClient builds a client from a redis:// URL.
func NewRedisClient(redisURL string) (*redis.Client, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	return redis.NewClient(opt), nil
}

func (c *RedisCache) GetNames(ctx context.Context, emails []string) (map[string]string, error) {
	names := make(map[string]string, len(emails))
	if c.client == nil || len(emails) == 0 {
		return names, nil
	}

	keys := make([]string, len(emails))
	for i, e := range emails {
		keys[i] = cacheKeyPrefix + e
	}
	values, err := c.client.MGet(ctx, keys...).Result()
	if err != nil {
		return names, err
	}
	for i, v := range values {
		if s, ok := v.(string); ok && s != "" {
			names[emails[i]] = s
		}
	}
	return names, nil
}

func (c *RedisCache) SetNames(ctx context.Context, names map[string]string, ttl time.Duration) error {
	if c.client == nil || len(names) == 0 {
		return nil
	}
	pipe := c.client.Pipeline()
	for email, name := range names {
		pipe.Set(ctx, cacheKeyPrefix+email, name, ttl)
	}
	_, err := pipe.Exec(ctx)
	return err
}

// CachedResolver answers from cache first and asks next only for misses.
// Cache failures are logged and otherwise ignored.
type CachedResolver struct {
	next  Resolver
	cache NameCache
	ttl   time.Duration
	log   *logging.Logger
}

// NewCachedResolver wraps next with cache.
func NewCachedResolver(next Resolver, cache NameCache, ttl time.Duration, log *logging.Logger) *CachedResolver {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	if log == nil {
		log = logging.NewDefault("directory-cache")
	}
	return &CachedResolver{next: next, cache: cache, ttl: ttl, log: log}
}

func (r *CachedResolver) Resolve(ctx context.Context, emails []string) (map[string]string, error) {
	names, err := r.cache.GetNames(ctx, emails)
	if err != nil {
		r.log.WithContext(ctx).WithError(err).Warn("directory cache read failed")
		names = map[string]string{}
	}

	var missing []string
	for _, e := range emails {
		if _, ok := names[e]; !ok {
			missing = append(missing, e)
		}
	}
	metrics.RecordDirectoryCache(len(emails)-len(missing), len(missing))
	if len(missing) == 0 {
		return names, nil
	}

	fetched, err := r.next.Resolve(ctx, missing)
	if err != nil {
		return names, err
	}
	for e, n := range fetched {
		names[e] = n
	}
	if err := r.cache.SetNames(ctx, fetched, r.ttl); err != nil {
		r.log.WithContext(ctx).WithError(err).Warn("directory cache write failed")
	}
	return names, nil
}
