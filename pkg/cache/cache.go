// Package cache keeps fetched ImageMetadata keyed by image URL for a fixed
// TTL. Entries expire only by age; there is no capacity eviction.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/doc-images/pkg/config"
	"github.com/Sriram-PR/doc-images/pkg/models"
)

// Store is implemented by the in-process and Redis backends.
// Writes are atomic per entry: a reader never sees a partial record.
type Store interface {
	// Get returns the entry for url. Expired entries are deleted and reported as missing.
	Get(ctx context.Context, url string) (models.ImageMetadata, bool, error)
	Set(ctx context.Context, url string, meta models.ImageMetadata) error
	Clear(ctx context.Context) error
	// Cleanup removes every expired entry and returns how many were removed.
	Cleanup(ctx context.Context) (int, error)
	Close() error
}

// expired reports whether an entry inserted at insertedAt is past ttl at now
func expired(insertedAt, now time.Time, ttl time.Duration) bool {
	return now.Sub(insertedAt) > ttl
}

// New builds the backend named in cfg. The caller owns the returned store
// and must Close it; the memory backend also needs Start for periodic sweeps.
func New(cfg config.CacheConfig, log *logrus.Entry) (Store, error) {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = config.DefaultCacheTTL
	}
	switch cfg.Backend {
	case config.CacheBackendMemory, "":
		return NewMemoryCache(ttl, log), nil
	case config.CacheBackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		return NewRedisStore(client, cfg.RedisKeyPrefix, ttl, log), nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Backend)
	}
}
