package cache

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sriram-PR/doc-images/pkg/config"
	"github.com/Sriram-PR/doc-images/pkg/models"
	"github.com/Sriram-PR/doc-images/pkg/utils"
)

func testLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func sampleMeta(url string) models.ImageMetadata {
	return models.ImageMetadata{
		URL:        url,
		Alt:        "dashboard",
		Width:      800,
		Height:     600,
		Type:       "image/png",
		Importance: models.ImportanceMedium,
		IsValid:    true,
	}
}

func newTestMemoryCache(ttl time.Duration) (*MemoryCache, *fakeClock) {
	clock := newFakeClock()
	c := NewMemoryCache(ttl, testLogger())
	c.now = clock.Now
	return c, clock
}

func TestMemoryCache_SetGet(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestMemoryCache(time.Hour)

	_, ok, err := c.Get(ctx, "https://example.com/a.png")
	require.NoError(t, err)
	assert.False(t, ok)

	meta := sampleMeta("https://example.com/a.png")
	require.NoError(t, c.Set(ctx, meta.URL, meta))

	got, ok, err := c.Get(ctx, meta.URL)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, meta, got)
}

func TestMemoryCache_CaseSensitiveKeys(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestMemoryCache(time.Hour)
	require.NoError(t, c.Set(ctx, "https://example.com/A.png", sampleMeta("https://example.com/A.png")))

	_, ok, _ := c.Get(ctx, "https://example.com/a.png")
	assert.False(t, ok)
}

func TestMemoryCache_ExpiresAfterTTL(t *testing.T) {
	ctx := context.Background()
	c, clock := newTestMemoryCache(time.Hour)
	meta := sampleMeta("https://example.com/a.png")
	require.NoError(t, c.Set(ctx, meta.URL, meta))

	clock.Advance(time.Hour)
	_, ok, _ := c.Get(ctx, meta.URL)
	assert.True(t, ok, "entry exactly at TTL is still live")

	clock.Advance(time.Millisecond)
	_, ok, _ = c.Get(ctx, meta.URL)
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len(), "expired entry is removed on read")

	_, ok, _ = c.Get(ctx, meta.URL)
	assert.False(t, ok)
}

func TestMemoryCache_SetRefreshesInsertionTime(t *testing.T) {
	ctx := context.Background()
	c, clock := newTestMemoryCache(time.Hour)
	meta := sampleMeta("https://example.com/a.png")
	require.NoError(t, c.Set(ctx, meta.URL, meta))

	clock.Advance(50 * time.Minute)
	require.NoError(t, c.Set(ctx, meta.URL, meta))
	clock.Advance(50 * time.Minute)

	_, ok, _ := c.Get(ctx, meta.URL)
	assert.True(t, ok)
}

func TestMemoryCache_Cleanup(t *testing.T) {
	ctx := context.Background()
	c, clock := newTestMemoryCache(time.Hour)
	require.NoError(t, c.Set(ctx, "old-1", sampleMeta("old-1")))
	require.NoError(t, c.Set(ctx, "old-2", sampleMeta("old-2")))
	clock.Advance(40 * time.Minute)
	require.NoError(t, c.Set(ctx, "fresh", sampleMeta("fresh")))
	clock.Advance(30 * time.Minute)

	removed, err := c.Cleanup(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)
	assert.Equal(t, 1, c.Len())

	removed, err = c.Cleanup(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, removed)
}

func TestMemoryCache_Clear(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestMemoryCache(time.Hour)
	require.NoError(t, c.Set(ctx, "a", sampleMeta("a")))
	require.NoError(t, c.Set(ctx, "b", sampleMeta("b")))

	require.NoError(t, c.Clear(ctx))
	assert.Equal(t, 0, c.Len())
}

func TestMemoryCache_StartStop(t *testing.T) {
	ctx := context.Background()
	c, clock := newTestMemoryCache(time.Minute)
	require.NoError(t, c.Set(ctx, "a", sampleMeta("a")))
	clock.Advance(2 * time.Minute)

	c.Start(5 * time.Millisecond)
	c.Start(5 * time.Millisecond)

	assert.Eventually(t, func() bool { return c.Len() == 0 }, time.Second, 5*time.Millisecond)

	c.Stop()
	c.Stop()
	require.NoError(t, c.Close())
}

func TestMemoryCache_ConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestMemoryCache(time.Hour)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			url := "https://example.com/" + string(rune('a'+i)) + ".png"
			_ = c.Set(ctx, url, sampleMeta(url))
			_, _, _ = c.Get(ctx, url)
			_, _ = c.Cleanup(ctx)
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 20, c.Len())
}

func TestNew_Backends(t *testing.T) {
	store, err := New(config.CacheConfig{Backend: config.CacheBackendMemory}, testLogger())
	require.NoError(t, err)
	assert.IsType(t, &MemoryCache{}, store)
	require.NoError(t, store.Close())

	store, err = New(config.CacheConfig{Backend: config.CacheBackendRedis, RedisAddr: "127.0.0.1:0"}, testLogger())
	require.NoError(t, err)
	assert.IsType(t, &RedisStore{}, store)
	require.NoError(t, store.Close())

	_, err = New(config.CacheConfig{Backend: "memcached"}, testLogger())
	assert.Error(t, err)
}

// fakeRedis is an in-memory redisClient built on go-redis result constructors
type fakeRedis struct {
	mu      sync.Mutex
	data    map[string]string
	ttls    map[string]time.Duration
	failGet bool
	closed  bool
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{data: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (f *fakeRedis) Get(_ context.Context, key string) *redis.StringCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failGet {
		return redis.NewStringResult("", errors.New("connection refused"))
	}
	v, ok := f.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeRedis) Set(_ context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch v := value.(type) {
	case []byte:
		f.data[key] = string(v)
	case string:
		f.data[key] = v
	}
	f.ttls[key] = expiration
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeRedis) Del(_ context.Context, keys ...string) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, k := range keys {
		if _, ok := f.data[k]; ok {
			delete(f.data, k)
			n++
		}
	}
	return redis.NewIntResult(n, nil)
}

// Scan returns everything matching a "prefix*" pattern in a single page
func (f *fakeRedis) Scan(_ context.Context, _ uint64, match string, _ int64) *redis.ScanCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	prefix := strings.TrimSuffix(match, "*")
	var keys []string
	for k := range f.data {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	return redis.NewScanCmdResult(keys, 0, nil)
}

func (f *fakeRedis) Close() error {
	f.closed = true
	return nil
}

func newTestRedisStore(ttl time.Duration) (*RedisStore, *fakeRedis, *fakeClock) {
	fake := newFakeRedis()
	clock := newFakeClock()
	s := NewRedisStore(fake, "", ttl, testLogger())
	s.now = clock.Now
	return s, fake, clock
}

func TestRedisStore_SetGet(t *testing.T) {
	ctx := context.Background()
	s, fake, _ := newTestRedisStore(time.Hour)
	meta := sampleMeta("https://example.com/a.png")

	require.NoError(t, s.Set(ctx, meta.URL, meta))
	assert.Equal(t, time.Hour, fake.ttls["imgmeta:https://example.com/a.png"])

	got, ok, err := s.Get(ctx, meta.URL)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, meta, got)

	_, ok, err = s.Get(ctx, "https://example.com/missing.png")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisStore_ExpiresByClock(t *testing.T) {
	ctx := context.Background()
	s, fake, clock := newTestRedisStore(time.Hour)
	meta := sampleMeta("https://example.com/a.png")
	require.NoError(t, s.Set(ctx, meta.URL, meta))

	clock.Advance(time.Hour + time.Millisecond)
	_, ok, err := s.Get(ctx, meta.URL)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, fake.data)
}

func TestRedisStore_UndecodableEntryIsMiss(t *testing.T) {
	ctx := context.Background()
	s, fake, _ := newTestRedisStore(time.Hour)
	fake.data["imgmeta:bad"] = "{not json"

	_, ok, err := s.Get(ctx, "bad")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NotContains(t, fake.data, "imgmeta:bad")
}

func TestRedisStore_BackendError(t *testing.T) {
	s, fake, _ := newTestRedisStore(time.Hour)
	fake.failGet = true

	_, _, err := s.Get(context.Background(), "x")
	require.Error(t, err)
	assert.True(t, errors.Is(err, utils.ErrCacheBackend))
}

func TestRedisStore_ClearAndCleanup(t *testing.T) {
	ctx := context.Background()
	s, fake, clock := newTestRedisStore(time.Hour)
	fake.data["other:key"] = "kept"

	require.NoError(t, s.Set(ctx, "old", sampleMeta("old")))
	clock.Advance(2 * time.Hour)
	require.NoError(t, s.Set(ctx, "fresh", sampleMeta("fresh")))

	removed, err := s.Cleanup(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	assert.Contains(t, fake.data, "imgmeta:fresh")

	require.NoError(t, s.Clear(ctx))
	assert.Equal(t, map[string]string{"other:key": "kept"}, fake.data)

	require.NoError(t, s.Close())
	assert.True(t, fake.closed)
}
