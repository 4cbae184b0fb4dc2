package config

import "time"

// Defaults for the image pipeline
const (
	DefaultUserAgent           = "doc-images/1.0 (+https://github.com/Sriram-PR/doc-images)"
	DefaultConfidenceThreshold = 0.2
	DefaultTopThreshold        = 0.6
	DefaultMiddleThreshold     = 0.3
	DefaultAppendixTitle       = "Screenshots"
	DefaultMinWidth            = 200
	DefaultMinHeight           = 150
	DefaultMaxWidth            = 4000
	DefaultMaxHeight           = 4000
	DefaultMaxFileSize         = 10 * 1024 * 1024
	DefaultSimilarityThreshold = 5
	DefaultCacheTTL            = 24 * time.Hour
	DefaultMetadataTimeout     = 10 * time.Second
	DefaultExportTimeout       = 5 * time.Second
	DefaultExportConcurrency   = 10
	DefaultExportMaxImages     = 30
)

// Hash modes
const (
	HashModeAuto       = "auto"
	HashModePerceptual = "perceptual"
	HashModeContent    = "content"
)

// Cache backends
const (
	CacheBackendMemory = "memory"
	CacheBackendRedis  = "redis"
)

// ValidationConfig holds the cheap pre-fetch filters and dimension bounds
type ValidationConfig struct {
	MinWidth               int      `yaml:"min_width,omitempty"`
	MinHeight              int      `yaml:"min_height,omitempty"`
	MaxWidth               int      `yaml:"max_width,omitempty"`
	MaxHeight              int      `yaml:"max_height,omitempty"`
	ExtraSkipPatterns      []string `yaml:"extra_skip_patterns,omitempty"` // Regex patterns matched against the image URL
	AllowedImageDomains    []string `yaml:"allowed_image_domains,omitempty"`
	DisallowedImageDomains []string `yaml:"disallowed_image_domains,omitempty"`
}

// PlacementConfig holds the relevance thresholds used by the planner and composer
type PlacementConfig struct {
	ConfidenceThreshold *float64 `yaml:"confidence_threshold,omitempty"` // nil=default, 0 places every image with a best section
	TopThreshold        *float64 `yaml:"top_threshold,omitempty"`
	MiddleThreshold     *float64 `yaml:"middle_threshold,omitempty"`
	AppendixTitle       string   `yaml:"appendix_title,omitempty"`
}

// HashingConfig selects the fingerprint strategy and dedup threshold
type HashingConfig struct {
	Mode                string `yaml:"mode,omitempty"`                 // auto, perceptual or content
	SimilarityThreshold int    `yaml:"similarity_threshold,omitempty"` // Max Hamming distance treated as duplicate
}

// FetchConfig holds settings for metadata fetches during ingestion
type FetchConfig struct {
	Timeout            time.Duration `yaml:"timeout,omitempty"`
	MaxFileSizeBytes   int64         `yaml:"max_file_size_bytes,omitempty"`
	Concurrency        int           `yaml:"concurrency,omitempty"`
	MaxRequestsPerHost int           `yaml:"max_requests_per_host,omitempty"`
}

// ExportConfig holds settings for export-time bulk retrieval
type ExportConfig struct {
	Timeout        time.Duration `yaml:"timeout,omitempty"`
	MaxConcurrency int           `yaml:"max_concurrency,omitempty"`
	MaxImages      *int          `yaml:"max_images,omitempty"` // nil=default, 0 exports nothing, negative disables the limit
	UseProxyCache  *bool         `yaml:"use_proxy_cache,omitempty"`
	OutputDir      string        `yaml:"output_dir,omitempty"`
}

// CacheConfig holds settings for the metadata cache
type CacheConfig struct {
	Backend         string        `yaml:"backend,omitempty"` // memory or redis
	TTL             time.Duration `yaml:"ttl,omitempty"`
	CleanupInterval time.Duration `yaml:"cleanup_interval,omitempty"`
	RedisAddr       string        `yaml:"redis_addr,omitempty"`
	RedisPassword   string        `yaml:"redis_password,omitempty"`
	RedisDB         int           `yaml:"redis_db,omitempty"`
	RedisKeyPrefix  string        `yaml:"redis_key_prefix,omitempty"`
}

// BlobStoreConfig holds settings for the on-disk image byte cache used by the proxy
type BlobStoreConfig struct {
	Enabled    bool          `yaml:"enabled,omitempty"`
	Dir        string        `yaml:"dir,omitempty"`
	TTL        time.Duration `yaml:"ttl,omitempty"`
	GCInterval time.Duration `yaml:"gc_interval,omitempty"`
}

// AppConfig holds the global application configuration
type AppConfig struct {
	UserAgent          string           `yaml:"user_agent"`
	MaxRetries         int              `yaml:"max_retries,omitempty"` // Export direct-fetch retries
	InitialRetryDelay  time.Duration    `yaml:"initial_retry_delay,omitempty"`
	MaxRetryDelay      time.Duration    `yaml:"max_retry_delay,omitempty"`
	Validation         ValidationConfig `yaml:"validation,omitempty"`
	Placement          PlacementConfig  `yaml:"placement,omitempty"`
	Hashing            HashingConfig    `yaml:"hashing,omitempty"`
	Fetch              FetchConfig      `yaml:"fetch,omitempty"`
	Export             ExportConfig     `yaml:"export,omitempty"`
	Cache              CacheConfig      `yaml:"cache,omitempty"`
	BlobStore          BlobStoreConfig  `yaml:"blob_store,omitempty"`
	HTTPClientSettings HTTPClientConfig `yaml:"http_client_settings,omitempty"`
}

// HTTPClientConfig holds settings for the shared HTTP client
type HTTPClientConfig struct {
	Timeout               time.Duration `yaml:"timeout,omitempty"`                 // Overall request timeout
	MaxIdleConns          int           `yaml:"max_idle_conns,omitempty"`          // Max total idle connections
	MaxIdleConnsPerHost   int           `yaml:"max_idle_conns_per_host,omitempty"` // Max idle connections per host
	IdleConnTimeout       time.Duration `yaml:"idle_conn_timeout,omitempty"`       // Timeout for idle connections
	TLSHandshakeTimeout   time.Duration `yaml:"tls_handshake_timeout,omitempty"`   // Timeout for TLS handshake
	ExpectContinueTimeout time.Duration `yaml:"expect_continue_timeout,omitempty"` // Timeout for 100-continue
	ForceAttemptHTTP2     *bool         `yaml:"force_attempt_http2,omitempty"`     // nil=default, true=force, false=disable
	DialerTimeout         time.Duration `yaml:"dialer_timeout,omitempty"`          // Connection dial timeout
	DialerKeepAlive       time.Duration `yaml:"dialer_keep_alive,omitempty"`       // TCP keep-alive interval
}

// Default returns an AppConfig with every default applied
func Default() *AppConfig {
	cfg := &AppConfig{}
	cfg.Validate()
	return cfg
}

// GetEffectiveThresholds resolves unset placement thresholds to their defaults
func GetEffectiveThresholds(p PlacementConfig) (confidence, top, middle float64) {
	confidence, top, middle = DefaultConfidenceThreshold, DefaultTopThreshold, DefaultMiddleThreshold
	if p.ConfidenceThreshold != nil {
		confidence = *p.ConfidenceThreshold
	}
	if p.TopThreshold != nil {
		top = *p.TopThreshold
	}
	if p.MiddleThreshold != nil {
		middle = *p.MiddleThreshold
	}
	return confidence, top, middle
}

// GetEffectiveExportMaxImages determines the export image limit; negative means unlimited
func GetEffectiveExportMaxImages(appCfg AppConfig) int {
	if appCfg.Export.MaxImages != nil {
		return *appCfg.Export.MaxImages
	}
	return DefaultExportMaxImages
}

// GetEffectiveUseProxyCache determines whether export fetches go through the caching proxy
func GetEffectiveUseProxyCache(appCfg AppConfig) bool {
	if appCfg.Export.UseProxyCache != nil {
		return *appCfg.Export.UseProxyCache
	}
	return appCfg.BlobStore.Enabled
}
