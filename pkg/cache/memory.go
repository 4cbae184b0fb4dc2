package cache

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/doc-images/pkg/metrics"
	"github.com/Sriram-PR/doc-images/pkg/models"
)

// MemoryCache is a mutex-guarded map with lazy expiry on Get and an optional
// background sweep started with Start.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]models.CacheEntry
	ttl     time.Duration
	now     func() time.Time
	log     *logrus.Entry

	lifecycleMu sync.Mutex
	cancel      context.CancelFunc
	done        chan struct{}
}

// NewMemoryCache creates an empty cache with the given TTL
func NewMemoryCache(ttl time.Duration, log *logrus.Entry) *MemoryCache {
	return &MemoryCache{
		entries: make(map[string]models.CacheEntry),
		ttl:     ttl,
		now:     time.Now,
		log:     log,
	}
}

// Get implements Store
func (c *MemoryCache) Get(_ context.Context, url string) (models.ImageMetadata, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[url]
	if !ok {
		metrics.CacheLookups.WithLabelValues("miss").Inc()
		return models.ImageMetadata{}, false, nil
	}
	if expired(entry.InsertedAt, c.now(), c.ttl) {
		delete(c.entries, url)
		metrics.CacheLookups.WithLabelValues("expired").Inc()
		return models.ImageMetadata{}, false, nil
	}
	metrics.CacheLookups.WithLabelValues("hit").Inc()
	return entry.Metadata, true, nil
}

// Set implements Store
func (c *MemoryCache) Set(_ context.Context, url string, meta models.ImageMetadata) error {
	c.mu.Lock()
	c.entries[url] = models.CacheEntry{Metadata: meta, InsertedAt: c.now()}
	c.mu.Unlock()
	return nil
}

// Clear implements Store
func (c *MemoryCache) Clear(_ context.Context) error {
	c.mu.Lock()
	c.entries = make(map[string]models.CacheEntry)
	c.mu.Unlock()
	return nil
}

// Cleanup implements Store
func (c *MemoryCache) Cleanup(_ context.Context) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for url, entry := range c.entries {
		if expired(entry.InsertedAt, now, c.ttl) {
			delete(c.entries, url)
			removed++
		}
	}
	if removed > 0 {
		metrics.CacheEvictions.Add(float64(removed))
		c.log.Debugf("Cache cleanup removed %d expired entries, %d remain", removed, len(c.entries))
	}
	return removed, nil
}

// Len returns the number of stored entries, expired or not
func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Start launches the periodic cleanup sweep. Calling Start on a running cache is a no-op.
func (c *MemoryCache) Start(interval time.Duration) {
	if interval <= 0 {
		interval = time.Hour
	}

	c.lifecycleMu.Lock()
	defer c.lifecycleMu.Unlock()
	if c.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.done = make(chan struct{})

	go func(done chan struct{}) {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				c.Cleanup(ctx)
			case <-ctx.Done():
				return
			}
		}
	}(c.done)
	c.log.WithField("interval", interval).Debug("Cache cleanup sweep started")
}

// Stop cancels the sweep and waits for it to exit. Safe to call more than once.
func (c *MemoryCache) Stop() {
	c.lifecycleMu.Lock()
	defer c.lifecycleMu.Unlock()
	if c.cancel == nil {
		return
	}
	c.cancel()
	<-c.done
	c.cancel = nil
	c.done = nil
}

// Close implements Store by stopping the sweep
func (c *MemoryCache) Close() error {
	c.Stop()
	return nil
}
