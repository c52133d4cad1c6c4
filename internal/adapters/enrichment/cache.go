package enrichment

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"

	redisadapter "tripmind/internal/adapters/redis"
	"tripmind/pkg/errors"
	"tripmind/pkg/logger"
)

const cachePrefix = "tripmind:enrich:"

// Cache stores formatted enrichment blocks keyed by source and query.
// Failures are logged and treated as misses.
type Cache interface {
	Get(ctx context.Context, key string) (string, bool)
	Set(ctx context.Context, key, value string)
}

// MemoryCache keeps blocks in process
type MemoryCache struct {
	c *gocache.Cache
}

// NewMemoryCache creates an in-process cache with the given TTL
func NewMemoryCache(ttl time.Duration) *MemoryCache {
	return &MemoryCache{c: gocache.New(ttl, 2*ttl)}
}

func (m *MemoryCache) Get(_ context.Context, key string) (string, bool) {
	v, ok := m.c.Get(key)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

func (m *MemoryCache) Set(_ context.Context, key, value string) {
	m.c.SetDefault(key, value)
}

// RedisCache shares blocks between replicas
type RedisCache struct {
	client *redisadapter.Client
	ttl    time.Duration
	log    *logger.Logger
}

// NewRedisCache creates a Redis backed cache
func NewRedisCache(client *redisadapter.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{
		client: client,
		ttl:    ttl,
		log:    logger.Get().With("component", "enrichment_cache"),
	}
}

func (r *RedisCache) Get(ctx context.Context, key string) (string, bool) {
	var s string
	if err := r.client.Get(ctx, cachePrefix+key, &s); err != nil {
		if !errors.Is(err, errors.ErrNotFound) {
			r.log.Warnw("enrichment cache read failed", "key", key, "error", err)
		}
		return "", false
	}
	return s, true
}

func (r *RedisCache) Set(ctx context.Context, key, value string) {
	if err := r.client.Set(ctx, cachePrefix+key, value, r.ttl); err != nil {
		r.log.Warnw("enrichment cache write failed", "key", key, "error", err)
	}
}

type noCache struct{}

func (noCache) Get(context.Context, string) (string, bool) { return "", false }
func (noCache) Set(context.Context, string, string)        {}
