package config

import (
	"strings"
	"testing"
	"time"

	"github.com/Sriram-PR/doc-images/pkg/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppConfig_Validate_Defaults(t *testing.T) {
	cfg := AppConfig{} // Zero value
	warnings, err := cfg.Validate()

	require.NoError(t, err)
	assert.Empty(t, warnings)

	assert.Equal(t, DefaultUserAgent, cfg.UserAgent)
	assert.Equal(t, 0, cfg.MaxRetries)
	assert.Equal(t, 500*time.Millisecond, cfg.InitialRetryDelay)
	assert.Equal(t, 5*time.Second, cfg.MaxRetryDelay)

	assert.Equal(t, 200, cfg.Validation.MinWidth)
	assert.Equal(t, 150, cfg.Validation.MinHeight)
	assert.Equal(t, 4000, cfg.Validation.MaxWidth)
	assert.Equal(t, 4000, cfg.Validation.MaxHeight)

	confidence, top, middle := GetEffectiveThresholds(cfg.Placement)
	assert.Equal(t, 0.2, confidence)
	assert.Equal(t, 0.6, top)
	assert.Equal(t, 0.3, middle)
	assert.Equal(t, "Screenshots", cfg.Placement.AppendixTitle)

	assert.Equal(t, HashModeAuto, cfg.Hashing.Mode)
	assert.Equal(t, 5, cfg.Hashing.SimilarityThreshold)

	assert.Equal(t, 10*time.Second, cfg.Fetch.Timeout)
	assert.Equal(t, int64(10*1024*1024), cfg.Fetch.MaxFileSizeBytes)
	assert.Equal(t, 8, cfg.Fetch.Concurrency)
	assert.Equal(t, 4, cfg.Fetch.MaxRequestsPerHost)

	assert.Equal(t, 5*time.Second, cfg.Export.Timeout)
	assert.Equal(t, 10, cfg.Export.MaxConcurrency)
	assert.Nil(t, cfg.Export.MaxImages)
	assert.Equal(t, 30, GetEffectiveExportMaxImages(cfg))

	assert.Equal(t, CacheBackendMemory, cfg.Cache.Backend)
	assert.Equal(t, 24*time.Hour, cfg.Cache.TTL)
	assert.Equal(t, 24*time.Hour, cfg.BlobStore.TTL)

	// Check HTTP client defaults
	assert.Equal(t, 45*time.Second, cfg.HTTPClientSettings.Timeout)
	assert.Equal(t, 100, cfg.HTTPClientSettings.MaxIdleConns)
	assert.Equal(t, 4, cfg.HTTPClientSettings.MaxIdleConnsPerHost)
	assert.Equal(t, 90*time.Second, cfg.HTTPClientSettings.IdleConnTimeout)
	assert.Equal(t, 10*time.Second, cfg.HTTPClientSettings.TLSHandshakeTimeout)
	assert.Equal(t, 1*time.Second, cfg.HTTPClientSettings.ExpectContinueTimeout)
	assert.Equal(t, 15*time.Second, cfg.HTTPClientSettings.DialerTimeout)
	assert.Equal(t, 30*time.Second, cfg.HTTPClientSettings.DialerKeepAlive)
}

func TestAppConfig_Validate_Warnings(t *testing.T) {
	cfg := AppConfig{
		MaxRetries:        -1,
		InitialRetryDelay: 10 * time.Second,
		MaxRetryDelay:     2 * time.Second,
		Hashing:           HashingConfig{SimilarityThreshold: -3},
		Fetch:             FetchConfig{MaxFileSizeBytes: -1},
		Placement:         PlacementConfig{TopThreshold: floatPtr(0.4), MiddleThreshold: floatPtr(0.5)},
	}
	warnings, err := cfg.Validate()
	require.NoError(t, err)

	assert.True(t, containsWarning(warnings, "max_retries cannot be negative"))
	assert.True(t, containsWarning(warnings, "initial_retry_delay"))
	assert.True(t, containsWarning(warnings, "similarity_threshold cannot be negative"))
	assert.True(t, containsWarning(warnings, "max_file_size_bytes cannot be negative"))
	assert.True(t, containsWarning(warnings, "middle position will never be chosen"))

	assert.Equal(t, 0, cfg.MaxRetries)
	assert.Equal(t, 2*time.Second, cfg.InitialRetryDelay)
	assert.Equal(t, 0, cfg.Hashing.SimilarityThreshold)
	assert.Equal(t, int64(DefaultMaxFileSize), cfg.Fetch.MaxFileSizeBytes)
}

func TestAppConfig_Validate_Errors(t *testing.T) {
	tests := []struct {
		name    string
		cfg     AppConfig
		errPart string
	}{
		{
			name:    "inverted width bounds",
			cfg:     AppConfig{Validation: ValidationConfig{MinWidth: 900, MaxWidth: 800}},
			errPart: "bounds inverted",
		},
		{
			name:    "threshold out of range",
			cfg:     AppConfig{Placement: PlacementConfig{ConfidenceThreshold: floatPtr(1.5)}},
			errPart: "confidence_threshold",
		},
		{
			name:    "unknown hash mode",
			cfg:     AppConfig{Hashing: HashingConfig{Mode: "wavelet"}},
			errPart: "unknown hashing mode",
		},
		{
			name:    "unknown cache backend",
			cfg:     AppConfig{Cache: CacheConfig{Backend: "memcached"}},
			errPart: "unknown cache backend",
		},
		{
			name:    "redis without address",
			cfg:     AppConfig{Cache: CacheConfig{Backend: CacheBackendRedis}},
			errPart: "redis_addr",
		},
		{
			name:    "bad skip pattern",
			cfg:     AppConfig{Validation: ValidationConfig{ExtraSkipPatterns: []string{"[unclosed"}}},
			errPart: "invalid regex pattern",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.cfg.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, utils.ErrConfigValidation)
			assert.Contains(t, err.Error(), tt.errPart)
		})
	}
}

func TestAppConfig_Validate_PreservesExplicitValues(t *testing.T) {
	cfg := AppConfig{
		UserAgent: "custom/2.0",
		Export:    ExportConfig{MaxConcurrency: 3, MaxImages: intPtr(-1), OutputDir: "/tmp/out"},
		Placement: PlacementConfig{ConfidenceThreshold: floatPtr(0)},
		Cache:     CacheConfig{TTL: time.Minute},
		BlobStore: BlobStoreConfig{TTL: time.Hour},
		HTTPClientSettings: HTTPClientConfig{
			Timeout:      5 * time.Second,
			MaxIdleConns: 7,
		},
	}
	_, err := cfg.Validate()
	require.NoError(t, err)

	assert.Equal(t, "custom/2.0", cfg.UserAgent)
	assert.Equal(t, 3, cfg.Export.MaxConcurrency)
	assert.Equal(t, -1, GetEffectiveExportMaxImages(cfg))
	require.NotNil(t, cfg.Placement.ConfidenceThreshold)
	assert.Equal(t, 0.0, *cfg.Placement.ConfidenceThreshold)
	assert.Equal(t, "/tmp/out", cfg.Export.OutputDir)
	assert.Equal(t, time.Minute, cfg.Cache.TTL)
	assert.Equal(t, time.Hour, cfg.BlobStore.TTL)
	assert.Equal(t, 5*time.Second, cfg.HTTPClientSettings.Timeout)
	assert.Equal(t, 7, cfg.HTTPClientSettings.MaxIdleConns)
}

func containsWarning(warnings []string, substr string) bool {
	for _, w := range warnings {
		if strings.Contains(w, substr) {
			return true
		}
	}
	return false
}
