// Package pipeline wires the ingestion stages together: skip rules, metadata
// cache, bounded fetching, deduplication and placement.
package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/Sriram-PR/doc-images/pkg/cache"
	"github.com/Sriram-PR/doc-images/pkg/fetch"
	"github.com/Sriram-PR/doc-images/pkg/metrics"
	"github.com/Sriram-PR/doc-images/pkg/models"
	"github.com/Sriram-PR/doc-images/pkg/phash"
	"github.com/Sriram-PR/doc-images/pkg/placement"
	"github.com/Sriram-PR/doc-images/pkg/process"
	"github.com/Sriram-PR/doc-images/pkg/utils"
	"github.com/Sriram-PR/doc-images/pkg/validate"
)

// MetadataSource produces metadata for one reference without failing.
// *process.MetadataFetcher is the production implementation.
type MetadataSource interface {
	FetchMetadata(ctx context.Context, ref models.ImageRef) models.ImageMetadata
}

// IngestStats counts what happened to the references of one run
type IngestStats struct {
	Refs       int `json:"refs"`
	Skipped    int `json:"skipped"`
	CacheHits  int `json:"cache_hits"`
	Fetched    int `json:"fetched"`
	Invalid    int `json:"invalid"`
	Duplicates int `json:"duplicates"`
}

// Result is the composed document plus ingestion counters
type Result struct {
	models.ComposeResult
	Ingest IngestStats `json:"ingest"`
}

// Options tunes a Pipeline. Zero values fall back to defaults.
type Options struct {
	Concurrency         int // Global cap on in-flight metadata fetches
	SimilarityThreshold int
}

// Pipeline is safe for concurrent Run calls
type Pipeline struct {
	validator  *validate.Validator
	source     MetadataSource
	cache      cache.Store // nil disables caching
	hosts      *fetch.HostSemaphorePool
	placer     *placement.Placer
	limit      int
	similarity int
	log        *logrus.Entry
}

// New creates a Pipeline. cache and hosts may be nil.
func New(v *validate.Validator, source MetadataSource, c cache.Store, hosts *fetch.HostSemaphorePool, placer *placement.Placer, opts Options, log *logrus.Entry) *Pipeline {
	limit := opts.Concurrency
	if limit <= 0 {
		limit = 8
	}
	similarity := opts.SimilarityThreshold
	if similarity <= 0 {
		similarity = phash.DefaultThreshold
	}
	return &Pipeline{
		validator:  v,
		source:     source,
		cache:      c,
		hosts:      hosts,
		placer:     placer,
		limit:      limit,
		similarity: similarity,
		log:        log,
	}
}

// Run ingests refs and places the surviving images into sections.
// Rejected and failed images are dropped silently; only cache backend
// faults are returned as errors.
func (p *Pipeline) Run(ctx context.Context, refs []models.ImageRef, sections []models.Section) (*Result, error) {
	started := time.Now()

	images, stats, err := p.Ingest(ctx, refs)
	if err != nil {
		return nil, err
	}

	valid := make([]models.ImageMetadata, 0, len(images))
	for _, img := range images {
		if img.IsValid {
			valid = append(valid, img)
		}
	}
	unique := phash.Deduplicate(valid, p.similarity)
	stats.Duplicates = len(valid) - len(unique)
	if stats.Duplicates > 0 {
		metrics.DuplicatesDropped.Add(float64(stats.Duplicates))
	}

	composed := p.placer.Place(sections, unique)

	p.log.WithFields(logrus.Fields{
		"refs":       stats.Refs,
		"skipped":    stats.Skipped,
		"cache_hits": stats.CacheHits,
		"invalid":    stats.Invalid,
		"duplicates": stats.Duplicates,
		"placed":     composed.Stats.PlacedImages,
		"unplaced":   composed.Stats.UnplacedImages,
		"duration":   time.Since(started),
	}).Info("Image pipeline run complete")

	return &Result{ComposeResult: composed, Ingest: stats}, nil
}

// Ingest returns metadata for every ref that passes the skip rules, in input
// order. Cached results are reused; fresh valid results are stored.
func (p *Pipeline) Ingest(ctx context.Context, refs []models.ImageRef) ([]models.ImageMetadata, IngestStats, error) {
	stats := IngestStats{Refs: len(refs)}

	kept := make([]models.ImageRef, 0, len(refs))
	for _, ref := range refs {
		if reason := p.validator.SkipReason(ref.URL, ref.Alt); reason != "" {
			metrics.SkippedRefs.WithLabelValues(reason).Inc()
			p.log.WithFields(logrus.Fields{"img_url": ref.URL, "reason": reason}).Debug("Skipping image reference")
			stats.Skipped++
			continue
		}
		kept = append(kept, ref)
	}

	results := make([]models.ImageMetadata, len(kept))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.limit)
	for i, ref := range kept {
		g.Go(func() error {
			meta, hit, err := p.ingestOne(gctx, ref)
			if err != nil {
				return err
			}
			results[i] = meta
			mu.Lock()
			if hit {
				stats.CacheHits++
			} else {
				stats.Fetched++
			}
			if !meta.IsValid {
				stats.Invalid++
			}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, stats, err
	}
	return results, stats, nil
}

func (p *Pipeline) ingestOne(ctx context.Context, ref models.ImageRef) (models.ImageMetadata, bool, error) {
	if p.cache != nil {
		meta, ok, err := p.cache.Get(ctx, ref.URL)
		if err != nil {
			return models.ImageMetadata{}, false, fmt.Errorf("cache lookup: %w", err)
		}
		if ok {
			// Page-specific fields come from this ref, not the cached one
			meta.Alt, meta.Caption, meta.SourceURL = ref.Alt, ref.Caption, ref.SourceURL
			meta.Importance = process.DetermineImportance(meta.Width, meta.Height, ref.Alt)
			return meta, true, nil
		}
	}

	var meta models.ImageMetadata
	fetchFn := func() error {
		meta = p.source.FetchMetadata(ctx, ref)
		return nil
	}
	if p.hosts != nil {
		if err := p.hosts.Do(ctx, ref.URL, fetchFn); err != nil {
			// Only the caller's context can fail the acquire
			return models.InvalidMetadata(ref, err.Error(), utils.OutcomeCanceled), false, nil
		}
	} else {
		_ = fetchFn()
	}

	if meta.IsValid && p.cache != nil {
		if err := p.cache.Set(ctx, ref.URL, meta); err != nil {
			return models.ImageMetadata{}, false, fmt.Errorf("cache store: %w", err)
		}
	}
	return meta, false, nil
}
