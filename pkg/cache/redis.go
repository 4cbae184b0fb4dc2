package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/doc-images/pkg/metrics"
	"github.com/Sriram-PR/doc-images/pkg/models"
	"github.com/Sriram-PR/doc-images/pkg/utils"
)

const (
	defaultKeyPrefix = "imgmeta:"
	scanBatchSize    = 100
)

// redisClient is the subset of *redis.Client the store uses
type redisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	Scan(ctx context.Context, cursor uint64, match string, count int64) *redis.ScanCmd
	Close() error
}

// RedisStore shares the metadata cache between processes. Entries are stored as
// JSON with a server-side expiry equal to the TTL, and the insertion time is
// checked again on read so both backends agree on expiry.
type RedisStore struct {
	client redisClient
	prefix string
	ttl    time.Duration
	now    func() time.Time
	log    *logrus.Entry
}

// NewRedisStore wraps an existing client
func NewRedisStore(client redisClient, prefix string, ttl time.Duration, log *logrus.Entry) *RedisStore {
	if prefix == "" {
		prefix = defaultKeyPrefix
	}
	return &RedisStore{
		client: client,
		prefix: prefix,
		ttl:    ttl,
		now:    time.Now,
		log:    log,
	}
}

func (s *RedisStore) key(url string) string {
	return s.prefix + url
}

// Get implements Store
func (s *RedisStore) Get(ctx context.Context, url string) (models.ImageMetadata, bool, error) {
	raw, err := s.client.Get(ctx, s.key(url)).Bytes()
	if errors.Is(err, redis.Nil) {
		metrics.CacheLookups.WithLabelValues("miss").Inc()
		return models.ImageMetadata{}, false, nil
	}
	if err != nil {
		return models.ImageMetadata{}, false, utils.WrapErrorf(utils.ErrCacheBackend, "get %s: %v", url, err)
	}

	var entry models.CacheEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		// Unreadable records are treated as absent and dropped
		s.log.Warnf("Discarding undecodable cache entry for %s: %v", url, err)
		s.client.Del(ctx, s.key(url))
		metrics.CacheLookups.WithLabelValues("miss").Inc()
		return models.ImageMetadata{}, false, nil
	}
	if expired(entry.InsertedAt, s.now(), s.ttl) {
		if err := s.client.Del(ctx, s.key(url)).Err(); err != nil {
			s.log.Warnf("Failed to delete expired cache entry for %s: %v", url, err)
		}
		metrics.CacheLookups.WithLabelValues("expired").Inc()
		return models.ImageMetadata{}, false, nil
	}
	metrics.CacheLookups.WithLabelValues("hit").Inc()
	return entry.Metadata, true, nil
}

// Set implements Store
func (s *RedisStore) Set(ctx context.Context, url string, meta models.ImageMetadata) error {
	data, err := json.Marshal(models.CacheEntry{Metadata: meta, InsertedAt: s.now()})
	if err != nil {
		return utils.WrapErrorf(utils.ErrCacheBackend, "encode %s: %v", url, err)
	}
	if err := s.client.Set(ctx, s.key(url), data, s.ttl).Err(); err != nil {
		return utils.WrapErrorf(utils.ErrCacheBackend, "set %s: %v", url, err)
	}
	return nil
}

// scanKeys walks every key under the store prefix
func (s *RedisStore) scanKeys(ctx context.Context, fn func(key string) error) error {
	var cursor uint64
	for {
		keys, next, err := s.client.Scan(ctx, cursor, s.prefix+"*", scanBatchSize).Result()
		if err != nil {
			return utils.WrapErrorf(utils.ErrCacheBackend, "scan: %v", err)
		}
		for _, k := range keys {
			if err := fn(k); err != nil {
				return err
			}
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}

// Clear implements Store. Only keys under the configured prefix are removed.
func (s *RedisStore) Clear(ctx context.Context) error {
	return s.scanKeys(ctx, func(key string) error {
		if err := s.client.Del(ctx, key).Err(); err != nil {
			return utils.WrapErrorf(utils.ErrCacheBackend, "del %s: %v", key, err)
		}
		return nil
	})
}

// Cleanup implements Store. Redis expires keys on its own, so this only
// catches entries that are stale by the local clock.
func (s *RedisStore) Cleanup(ctx context.Context) (int, error) {
	now := s.now()
	removed := 0
	err := s.scanKeys(ctx, func(key string) error {
		raw, err := s.client.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return nil
		}
		if err != nil {
			return utils.WrapErrorf(utils.ErrCacheBackend, "get %s: %v", key, err)
		}
		var entry models.CacheEntry
		if json.Unmarshal(raw, &entry) == nil && !expired(entry.InsertedAt, now, s.ttl) {
			return nil
		}
		if err := s.client.Del(ctx, key).Err(); err != nil {
			return utils.WrapErrorf(utils.ErrCacheBackend, "del %s: %v", key, err)
		}
		removed++
		return nil
	})
	if removed > 0 {
		metrics.CacheEvictions.Add(float64(removed))
	}
	return removed, err
}

// Close implements Store
func (s *RedisStore) Close() error {
	return s.client.Close()
}
