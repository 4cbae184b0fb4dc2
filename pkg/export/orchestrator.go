// Package export gathers image bytes for document renderers: it trims the
// image count, fetches bodies in bounded chunks, and writes them to disk.
package export

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/Sriram-PR/doc-images/pkg/config"
	"github.com/Sriram-PR/doc-images/pkg/fetch"
	"github.com/Sriram-PR/doc-images/pkg/metrics"
	"github.com/Sriram-PR/doc-images/pkg/models"
)

// ImageProxy serves image bytes from a cache-aware path.
// Implementations must be safe for concurrent use.
type ImageProxy interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Orchestrator fetches image bodies with a fixed concurrency ceiling
type Orchestrator struct {
	fetcher  *fetch.Fetcher
	proxy    ImageProxy // nil disables the proxy path
	maxBytes int64
	log      *logrus.Entry
}

// NewOrchestrator creates an Orchestrator. proxy may be nil.
func NewOrchestrator(f *fetch.Fetcher, proxy ImageProxy, maxBytes int64, log *logrus.Entry) *Orchestrator {
	if maxBytes <= 0 {
		maxBytes = config.DefaultMaxFileSize
	}
	return &Orchestrator{
		fetcher:  f,
		proxy:    proxy,
		maxBytes: maxBytes,
		log:      log,
	}
}

// FetchMany downloads every distinct URL in blocks, maxConcurrency at a time.
// URLs are processed in consecutive chunks and a chunk starts only after the
// previous one has settled. Each fetch gets its own timeout. Failed URLs are
// left out of the result, so callers must treat it as partial.
func (o *Orchestrator) FetchMany(ctx context.Context, blocks []models.ImageBlock, timeout time.Duration, maxConcurrency int, useProxyCache bool) map[string][]byte {
	if timeout <= 0 {
		timeout = config.DefaultExportTimeout
	}
	if maxConcurrency <= 0 {
		maxConcurrency = config.DefaultExportConcurrency
	}

	urls := uniqueURLs(blocks)
	results := make(map[string][]byte, len(urls))
	var mu sync.Mutex

	chunks := chunkURLs(urls, maxConcurrency)
	for i, chunk := range chunks {
		if ctx.Err() != nil {
			o.log.Warnf("Export fetch canceled before chunk %d/%d: %v", i+1, len(chunks), ctx.Err())
			break
		}
		chunkLog := o.log.WithFields(logrus.Fields{"chunk": i + 1, "chunks": len(chunks), "size": len(chunk)})
		chunkLog.Debug("Fetching export chunk")

		var g errgroup.Group
		for _, u := range chunk {
			g.Go(func() error {
				data, ok := o.fetchOne(ctx, u, timeout, useProxyCache)
				if ok {
					mu.Lock()
					results[u] = data
					mu.Unlock()
				}
				return nil
			})
		}
		_ = g.Wait()
	}

	o.log.Infof("Export fetch complete: %d/%d images retrieved", len(results), len(urls))
	return results
}

// fetchOne tries the proxy first when enabled, then the direct path. Each
// attempt runs under its own deadline so a slow proxy does not eat the fallback's budget.
func (o *Orchestrator) fetchOne(ctx context.Context, url string, timeout time.Duration, useProxyCache bool) ([]byte, bool) {
	imgLog := o.log.WithField("img_url", url)

	if useProxyCache && o.proxy != nil {
		pctx, cancel := context.WithTimeout(ctx, timeout)
		data, err := o.proxy.Fetch(pctx, url)
		cancel()
		if err == nil && len(data) > 0 {
			metrics.ExportFetches.WithLabelValues("proxy", "ok").Inc()
			return data, true
		}
		metrics.ExportFetches.WithLabelValues("proxy", "error").Inc()
		imgLog.Debugf("Proxy fetch failed, falling back to direct: %v", err)
	}

	if o.fetcher == nil {
		return nil, false
	}
	dctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	payload, err := o.fetcher.Download(dctx, url, o.maxBytes)
	if err != nil {
		metrics.ExportFetches.WithLabelValues("direct", "error").Inc()
		imgLog.Warnf("Export fetch failed: %v", err)
		return nil, false
	}
	metrics.ExportFetches.WithLabelValues("direct", "ok").Inc()
	return payload.Data, true
}

// uniqueURLs returns the block URLs in order with repeats and empties removed
func uniqueURLs(blocks []models.ImageBlock) []string {
	seen := make(map[string]struct{}, len(blocks))
	urls := make([]string, 0, len(blocks))
	for _, b := range blocks {
		if b.URL == "" {
			continue
		}
		if _, dup := seen[b.URL]; dup {
			continue
		}
		seen[b.URL] = struct{}{}
		urls = append(urls, b.URL)
	}
	return urls
}

// chunkURLs splits urls into consecutive slices of at most size elements
func chunkURLs(urls []string, size int) [][]string {
	var chunks [][]string
	for start := 0; start < len(urls); start += size {
		end := min(start+size, len(urls))
		chunks = append(chunks, urls[start:end])
	}
	return chunks
}

// ImageBlocks collects the image blocks of sections in document order
func ImageBlocks(sections []models.Section) []models.ImageBlock {
	var out []models.ImageBlock
	for _, s := range sections {
		for _, b := range s.Blocks {
			if b.IsImage() {
				out = append(out, *b.Image)
			}
		}
	}
	return out
}
