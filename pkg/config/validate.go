package config

import (
	"fmt"
	"time"

	"github.com/Sriram-PR/doc-images/pkg/utils"
)

// Validate checks AppConfig fields and applies sensible defaults.
// Returns collected warnings and any fatal error.
// Modifies receiver in place to apply defaults.
func (c *AppConfig) Validate() (warnings []string, err error) {
	if c.UserAgent == "" {
		c.UserAgent = DefaultUserAgent
	}

	// MaxRetries
	if c.MaxRetries < 0 {
		warnings = append(warnings, "max_retries cannot be negative, setting to 0")
		c.MaxRetries = 0
	}
	if c.InitialRetryDelay <= 0 {
		c.InitialRetryDelay = 500 * time.Millisecond
	}
	if c.MaxRetryDelay <= 0 {
		c.MaxRetryDelay = 5 * time.Second
	}
	if c.InitialRetryDelay > c.MaxRetryDelay {
		warnings = append(warnings, fmt.Sprintf(
			"initial_retry_delay (%v) > max_retry_delay (%v), using max_retry_delay for initial",
			c.InitialRetryDelay, c.MaxRetryDelay))
		c.InitialRetryDelay = c.MaxRetryDelay
	}

	w, err := c.validateBounds()
	warnings = append(warnings, w...)
	if err != nil {
		return warnings, err
	}

	w, err = c.validatePlacement()
	warnings = append(warnings, w...)
	if err != nil {
		return warnings, err
	}

	// Hashing
	switch c.Hashing.Mode {
	case "":
		c.Hashing.Mode = HashModeAuto
	case HashModeAuto, HashModePerceptual, HashModeContent:
	default:
		return warnings, fmt.Errorf("%w: unknown hashing mode '%s' (auto, perceptual, content)", utils.ErrConfigValidation, c.Hashing.Mode)
	}
	if c.Hashing.SimilarityThreshold < 0 {
		warnings = append(warnings, "hashing.similarity_threshold cannot be negative, setting to 0 (exact matches only)")
		c.Hashing.SimilarityThreshold = 0
	} else if c.Hashing.SimilarityThreshold == 0 {
		c.Hashing.SimilarityThreshold = DefaultSimilarityThreshold
	}

	// Fetch
	if c.Fetch.Timeout <= 0 {
		c.Fetch.Timeout = DefaultMetadataTimeout
	}
	if c.Fetch.MaxFileSizeBytes <= 0 {
		if c.Fetch.MaxFileSizeBytes < 0 {
			warnings = append(warnings, "fetch.max_file_size_bytes cannot be negative, using 10 MiB")
		}
		c.Fetch.MaxFileSizeBytes = DefaultMaxFileSize
	}
	if c.Fetch.Concurrency <= 0 {
		c.Fetch.Concurrency = 8
	}
	if c.Fetch.MaxRequestsPerHost <= 0 {
		c.Fetch.MaxRequestsPerHost = 4
	}

	// Export
	if c.Export.Timeout <= 0 {
		c.Export.Timeout = DefaultExportTimeout
	}
	if c.Export.MaxConcurrency <= 0 {
		c.Export.MaxConcurrency = DefaultExportConcurrency
	}
	if c.Export.OutputDir == "" {
		c.Export.OutputDir = "./exported_images"
	}

	// Cache
	switch c.Cache.Backend {
	case "":
		c.Cache.Backend = CacheBackendMemory
	case CacheBackendMemory:
	case CacheBackendRedis:
		if c.Cache.RedisAddr == "" {
			return warnings, fmt.Errorf("%w: cache.backend is 'redis' but cache.redis_addr is empty", utils.ErrConfigValidation)
		}
	default:
		return warnings, fmt.Errorf("%w: unknown cache backend '%s' (memory, redis)", utils.ErrConfigValidation, c.Cache.Backend)
	}
	if c.Cache.TTL <= 0 {
		c.Cache.TTL = DefaultCacheTTL
	}
	if c.Cache.CleanupInterval <= 0 {
		c.Cache.CleanupInterval = time.Hour
	}
	if c.Cache.RedisKeyPrefix == "" {
		c.Cache.RedisKeyPrefix = "imgmeta:"
	}

	// BlobStore
	if c.BlobStore.Dir == "" {
		c.BlobStore.Dir = "./image_cache"
	}
	if c.BlobStore.TTL <= 0 {
		c.BlobStore.TTL = c.Cache.TTL
	}
	if c.BlobStore.GCInterval <= 0 {
		c.BlobStore.GCInterval = 10 * time.Minute
	}

	c.validateHTTPClientSettings()

	return warnings, nil
}

// validateBounds applies dimension defaults and rejects inverted ranges
func (c *AppConfig) validateBounds() (warnings []string, err error) {
	v := &c.Validation
	if v.MinWidth <= 0 {
		v.MinWidth = DefaultMinWidth
	}
	if v.MinHeight <= 0 {
		v.MinHeight = DefaultMinHeight
	}
	if v.MaxWidth <= 0 {
		v.MaxWidth = DefaultMaxWidth
	}
	if v.MaxHeight <= 0 {
		v.MaxHeight = DefaultMaxHeight
	}
	if v.MinWidth > v.MaxWidth || v.MinHeight > v.MaxHeight {
		return nil, fmt.Errorf("%w: validation bounds inverted (min %dx%d, max %dx%d)",
			utils.ErrConfigValidation, v.MinWidth, v.MinHeight, v.MaxWidth, v.MaxHeight)
	}
	if _, errRe := utils.CompileRegexPatterns(v.ExtraSkipPatterns); errRe != nil {
		return nil, errRe
	}
	return warnings, nil
}

// validatePlacement checks the effective thresholds, which must lie in [0,1].
// Unset thresholds stay nil so an explicit 0 survives.
func (c *AppConfig) validatePlacement() (warnings []string, err error) {
	p := &c.Placement
	if p.AppendixTitle == "" {
		p.AppendixTitle = DefaultAppendixTitle
	}
	confidence, top, middle := GetEffectiveThresholds(*p)
	for name, v := range map[string]float64{
		"confidence_threshold": confidence,
		"top_threshold":        top,
		"middle_threshold":     middle,
	} {
		if v < 0 || v > 1 {
			return nil, fmt.Errorf("%w: placement.%s must be within [0,1], got %v", utils.ErrConfigValidation, name, v)
		}
	}
	if middle > top {
		warnings = append(warnings, fmt.Sprintf(
			"placement.middle_threshold (%v) > top_threshold (%v), middle position will never be chosen",
			middle, top))
	}
	return warnings, nil
}

// validateHTTPClientSettings applies defaults to HTTP client settings.
func (c *AppConfig) validateHTTPClientSettings() {
	h := &c.HTTPClientSettings
	if h.Timeout <= 0 {
		h.Timeout = 45 * time.Second
	}
	if h.MaxIdleConns <= 0 {
		h.MaxIdleConns = 100
	}
	if h.MaxIdleConnsPerHost <= 0 {
		h.MaxIdleConnsPerHost = 4
	}
	if h.IdleConnTimeout <= 0 {
		h.IdleConnTimeout = 90 * time.Second
	}
	if h.TLSHandshakeTimeout <= 0 {
		h.TLSHandshakeTimeout = 10 * time.Second
	}
	if h.ExpectContinueTimeout <= 0 {
		h.ExpectContinueTimeout = 1 * time.Second
	}
	if h.DialerTimeout <= 0 {
		h.DialerTimeout = 15 * time.Second
	}
	if h.DialerKeepAlive <= 0 {
		h.DialerKeepAlive = 30 * time.Second
	}
}
