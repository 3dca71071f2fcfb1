package retrieval

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"cbir-engine/internal/feature"

	gocache "github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"
)

// Cache stores extracted vectors between ranking passes. A miss returns
// (nil, false, nil).
type Cache interface {
	Get(ctx context.Context, key string) (feature.Vector, bool, error)
	Set(ctx context.Context, key string, v feature.Vector) error
}

// CacheKey identifies a vector by extractor name, the downscale bound the
// entry image was loaded with, and entry ID.
func CacheKey(extractor string, maxDim int, id string) string {
	return extractor + "|" + strconv.Itoa(maxDim) + "|" + id
}

// MemoryCache keeps vectors in process memory with expiry.
type MemoryCache struct {
	c *gocache.Cache
}

// NewMemoryCache creates an in-process cache. A non-positive ttl keeps
// entries until the process exits.
func NewMemoryCache(ttl time.Duration) *MemoryCache {
	exp := ttl
	cleanup := ttl * 2
	if ttl <= 0 {
		exp = gocache.NoExpiration
		cleanup = 0
	}
	return &MemoryCache{c: gocache.New(exp, cleanup)}
}

func (m *MemoryCache) Get(_ context.Context, key string) (feature.Vector, bool, error) {
	v, ok := m.c.Get(key)
	if !ok {
		return nil, false, nil
	}
	return v.(feature.Vector), true, nil
}

func (m *MemoryCache) Set(_ context.Context, key string, v feature.Vector) error {
	m.c.SetDefault(key, v)
	return nil
}

// Len returns the number of cached vectors, including expired ones not yet
// cleaned up.
func (m *MemoryCache) Len() int {
	return m.c.ItemCount()
}

const redisKeyPrefix = "features:"

// RedisCache shares vectors between processes through Redis, stored as JSON arrays.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache connects lazily to the server described by opts.
func NewRedisCache(opts *redis.Options, ttl time.Duration) *RedisCache {
	return &RedisCache{client: redis.NewClient(opts), ttl: ttl}
}

// Ping checks connectivity.
func (r *RedisCache) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisCache) Get(ctx context.Context, key string) (feature.Vector, bool, error) {
	data, err := r.client.Get(ctx, redisKeyPrefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, err
	}

	var v feature.Vector
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, false, err
	}
	return v, true, nil
}

func (r *RedisCache) Set(ctx context.Context, key string, v feature.Vector) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, redisKeyPrefix+key, data, r.ttl).Err()
}

// Close releases the connection pool.
func (r *RedisCache) Close() error {
	return r.client.Close()
}
