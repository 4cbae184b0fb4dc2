// Package orchestrate builds the image pipeline from an AppConfig and runs
// its operations (discover, place, inspect, export) for the CLI and MCP server.
package orchestrate

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/doc-images/pkg/cache"
	"github.com/Sriram-PR/doc-images/pkg/config"
	"github.com/Sriram-PR/doc-images/pkg/export"
	"github.com/Sriram-PR/doc-images/pkg/fetch"
	"github.com/Sriram-PR/doc-images/pkg/models"
	"github.com/Sriram-PR/doc-images/pkg/phash"
	"github.com/Sriram-PR/doc-images/pkg/pipeline"
	"github.com/Sriram-PR/doc-images/pkg/placement"
	"github.com/Sriram-PR/doc-images/pkg/process"
	"github.com/Sriram-PR/doc-images/pkg/proxy"
	"github.com/Sriram-PR/doc-images/pkg/storage"
	"github.com/Sriram-PR/doc-images/pkg/validate"
)

// Service owns every long-lived component. Create it with New, call Start
// once to launch background maintenance, and Close when done.
type Service struct {
	cfg *config.AppConfig
	log *logrus.Entry

	// Shared resources
	fetcher   *fetch.Fetcher
	validator *validate.Validator
	hasher    phash.Hasher
	metadata  *process.MetadataFetcher
	cache     cache.Store
	hosts     *fetch.HostSemaphorePool
	blobs     storage.BlobStore // nil unless the blob store is enabled
	exporter  *export.Orchestrator
	pipeline  *pipeline.Pipeline

	// Coordination
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
	mu      sync.Mutex
}

// New wires a Service from an already validated config
func New(cfg *config.AppConfig, log *logrus.Entry) (*Service, error) {
	validator, err := validate.New(cfg.Validation)
	if err != nil {
		return nil, err
	}
	hasher, err := phash.NewHasher(cfg.Hashing.Mode, log)
	if err != nil {
		return nil, err
	}
	store, err := cache.New(cfg.Cache, log.WithField("component", "cache"))
	if err != nil {
		return nil, err
	}

	client := fetch.NewClient(cfg.HTTPClientSettings, log)
	fetcher := fetch.NewFetcher(client, fetch.RetryPolicyFromConfig(cfg), cfg.UserAgent, log)

	var blobs storage.BlobStore
	var imageProxy export.ImageProxy
	if cfg.BlobStore.Enabled {
		badgerStore, err := storage.NewBadgerStore(cfg.BlobStore.Dir, cfg.BlobStore.TTL, log.WithField("component", "blobstore"))
		if err != nil {
			store.Close()
			return nil, fmt.Errorf("failed to open blob store: %w", err)
		}
		blobs = badgerStore
		imageProxy = proxy.New(badgerStore, fetcher, cfg.Fetch.MaxFileSizeBytes, log.WithField("component", "proxy"))
	}

	hosts := fetch.NewHostSemaphorePool(cfg.Fetch.MaxRequestsPerHost, log)
	metadata := process.NewMetadataFetcher(fetcher, validator, hasher, cfg.Fetch, log)
	placer := placement.NewPlacer(cfg.Placement, log)
	runner := pipeline.New(validator, metadata, store, hosts, placer, pipeline.Options{
		Concurrency:         cfg.Fetch.Concurrency,
		SimilarityThreshold: cfg.Hashing.SimilarityThreshold,
	}, log)

	ctx, cancel := context.WithCancel(context.Background())
	s := &Service{
		cfg:       cfg,
		log:       log,
		fetcher:   fetcher,
		validator: validator,
		hasher:    hasher,
		metadata:  metadata,
		cache:     store,
		hosts:     hosts,
		blobs:     blobs,
		exporter:  export.NewOrchestrator(fetcher, imageProxy, cfg.Fetch.MaxFileSizeBytes, log),
		pipeline:  runner,
		ctx:       ctx,
		cancel:    cancel,
	}
	log.WithFields(logrus.Fields{
		"hash_kind":   hasher.Kind(),
		"cache":       cfg.Cache.Backend,
		"blob_store":  cfg.BlobStore.Enabled,
		"concurrency": cfg.Fetch.Concurrency,
	}).Debug("Image service initialised")
	return s, nil
}

// Start launches cache cleanup, idle host eviction and blob store GC.
// Calling it again is a no-op.
func (s *Service) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.started = true

	if mc, ok := s.cache.(*cache.MemoryCache); ok {
		mc.Start(s.cfg.Cache.CleanupInterval)
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.hosts.RunEviction(s.ctx, 0)
	}()
	if s.blobs != nil {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.blobs.RunGC(s.ctx, s.cfg.BlobStore.GCInterval)
		}()
	}
}

// Close stops background work and releases the cache and blob store
func (s *Service) Close() error {
	s.cancel()
	s.wg.Wait()

	var firstErr error
	if err := s.cache.Close(); err != nil {
		firstErr = err
	}
	if s.blobs != nil {
		if err := s.blobs.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// PlaceRequest is the document handed to Place. Pages, and the pages listed
// by Sitemaps, are scraped for additional image references, which follow
// Images in order. Sections come from Sections, else from Markdown, else from
// the text of the scraped pages.
type PlaceRequest struct {
	Sections []models.Section  `json:"sections,omitempty"`
	Markdown string            `json:"markdown,omitempty"`
	Images   []models.ImageRef `json:"images,omitempty"`
	Pages    []string          `json:"pages,omitempty"`
	Sitemaps []string          `json:"sitemaps,omitempty"`
}

// PlaceResponse is the placed document with discovery details when pages were given
type PlaceResponse struct {
	*pipeline.Result
	Pages []PageResult `json:"pages,omitempty"`
}

// Place runs the full pipeline for req
func (s *Service) Place(ctx context.Context, req PlaceRequest) (*PlaceResponse, error) {
	pageURLs := req.Pages
	if len(req.Sitemaps) > 0 {
		listed, err := s.ExpandSitemaps(ctx, req.Sitemaps)
		if err != nil {
			return nil, fmt.Errorf("expand sitemaps: %w", err)
		}
		pageURLs = append(append([]string(nil), req.Pages...), listed...)
	}

	sections := req.Sections
	if len(sections) == 0 && req.Markdown != "" {
		sections = process.SectionsFromMarkdown([]byte(req.Markdown))
	}

	refs := req.Images
	var pages []PageResult
	if len(pageURLs) > 0 {
		discovered := s.Discover(ctx, pageURLs)
		pages = discovered.Pages
		refs = mergeRefs(refs, discovered.Images)
		if len(sections) == 0 {
			sections = discovered.Sections
		}
	}

	res, err := s.pipeline.Run(ctx, refs, sections)
	if err != nil {
		return nil, err
	}
	return &PlaceResponse{Result: res, Pages: pages}, nil
}

// InspectResult is the metadata of one image plus the skip rule it hit, if any
type InspectResult struct {
	models.ImageMetadata
	SkipReason string `json:"skip_reason,omitempty"`
}

// Inspect fetches metadata for ref. Skipped references are still fetched so
// the caller can see why the rule fired.
func (s *Service) Inspect(ctx context.Context, ref models.ImageRef) InspectResult {
	return InspectResult{
		ImageMetadata: s.metadata.FetchMetadata(ctx, ref),
		SkipReason:    s.validator.SkipReason(ref.URL, ref.Alt),
	}
}

// SkipReason reports the rule that rejects (url, alt), or "" if none does
func (s *Service) SkipReason(url, alt string) string {
	return s.validator.SkipReason(url, alt)
}

// ExportResult summarises one export
type ExportResult struct {
	Requested int               `json:"requested"`
	Limited   int               `json:"limited"`
	Fetched   int               `json:"fetched"`
	Files     map[string]string `json:"files,omitempty"` // url -> path relative to the output dir
	Sections  []models.Section  `json:"sections"`
}

// Export trims sections to the configured image limit and fetches the
// remaining images. Bytes are written under dir when it is not empty.
func (s *Service) Export(ctx context.Context, sections []models.Section, dir string) (*ExportResult, error) {
	limited, dropped := export.LimitImagesForExport(sections, config.GetEffectiveExportMaxImages(*s.cfg))
	blocks := export.ImageBlocks(limited)

	images := s.exporter.FetchMany(ctx, blocks, s.cfg.Export.Timeout, s.cfg.Export.MaxConcurrency, config.GetEffectiveUseProxyCache(*s.cfg))

	result := &ExportResult{
		Requested: len(blocks),
		Limited:   dropped,
		Fetched:   len(images),
		Sections:  limited,
	}
	if dir != "" {
		files, err := export.WriteImages(dir, images)
		result.Files = files
		if err != nil {
			return result, err
		}
	}
	return result, nil
}
