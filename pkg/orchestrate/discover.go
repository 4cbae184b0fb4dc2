package orchestrate

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Sriram-PR/doc-images/pkg/models"
	"github.com/Sriram-PR/doc-images/pkg/parse"
	"github.com/Sriram-PR/doc-images/pkg/process"
	"github.com/Sriram-PR/doc-images/pkg/utils"
)

const maxPageSize = 20 * 1024 * 1024

// PageResult describes the outcome of scraping one page for images
type PageResult struct {
	URL      string        `json:"url"`
	Images   int           `json:"images"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration_ns"`
}

// DiscoverResult holds the merged references and text sections of every page in request order
type DiscoverResult struct {
	Images   []models.ImageRef `json:"images"`
	Sections []models.Section  `json:"sections,omitempty"`
	Pages    []PageResult      `json:"pages"`
}

type pageContent struct {
	refs     []models.ImageRef
	sections []models.Section
}

// Discover scrapes pages in parallel and merges their image references.
// Pages naming the same canonical URL are scraped once. A failing page is
// reported in Pages and contributes nothing.
func (s *Service) Discover(ctx context.Context, pageURLs []string) DiscoverResult {
	startTime := time.Now()
	pageURLs = uniquePages(pageURLs)
	perPage := make([]pageContent, len(pageURLs))
	pages := make([]PageResult, len(pageURLs))

	limit := s.cfg.Fetch.Concurrency
	if limit <= 0 {
		limit = 8
	}
	var g errgroup.Group
	g.SetLimit(limit)
	var mu sync.Mutex
	for i, pageURL := range pageURLs {
		g.Go(func() error {
			started := time.Now()
			content, err := s.discoverPage(ctx, pageURL)
			mu.Lock()
			defer mu.Unlock()
			pages[i] = PageResult{URL: pageURL, Images: len(content.refs), Duration: time.Since(started)}
			if err != nil {
				pages[i].Error = err.Error()
				s.log.WithField("page_url", pageURL).Warnf("Image discovery failed: %v", err)
				return nil
			}
			perPage[i] = content
			return nil
		})
	}
	_ = g.Wait()

	var merged []models.ImageRef
	var sections []models.Section
	for _, content := range perPage {
		merged = mergeRefs(merged, content.refs)
		sections = process.AppendSections(sections, content.sections)
	}
	s.logSummary(pages, len(merged), time.Since(startTime))
	return DiscoverResult{Images: merged, Sections: sections, Pages: pages}
}

// fetchDocument GETs rawURL and returns the open response. Non-2xx statuses become ErrHTTPStatus.
func (s *Service) fetchDocument(ctx context.Context, rawURL, accept string) (*http.Response, error) {
	req, err := s.fetcher.NewRequest(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", accept)

	resp, err := s.fetcher.FetchWithRetry(ctx, req)
	if err != nil {
		if resp != nil {
			resp.Body.Close()
			return nil, fmt.Errorf("%w: HTTP %d: %s", utils.ErrHTTPStatus, resp.StatusCode, http.StatusText(resp.StatusCode))
		}
		return nil, err
	}
	return resp, nil
}

func (s *Service) discoverPage(ctx context.Context, pageURL string) (pageContent, error) {
	resp, err := s.fetchDocument(ctx, pageURL, "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")
	if err != nil {
		return pageContent{}, err
	}
	defer resp.Body.Close()

	doc, err := process.ParseHTML(io.LimitReader(resp.Body, maxPageSize))
	if err != nil {
		return pageContent{}, err
	}
	// Redirects change the base for relative sources
	base := pageURL
	if resp.Request != nil && resp.Request.URL != nil {
		base = resp.Request.URL.String()
	}
	refs := process.ExtractImageRefs(doc.Selection, base, s.log)
	for i := range refs {
		refs[i].SourceURL = pageURL
	}
	return pageContent{refs: refs, sections: process.SectionsFromHTML(doc, base)}, nil
}

// uniquePages drops pages whose canonical URL was already listed. URLs that
// do not canonicalise are kept so their error shows up in the page results.
func uniquePages(pageURLs []string) []string {
	seen := make(map[string]struct{}, len(pageURLs))
	out := make([]string, 0, len(pageURLs))
	for _, raw := range pageURLs {
		key, err := parse.PageKey(raw)
		if err != nil {
			out = append(out, raw)
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, raw)
	}
	return out
}

// mergeRefs appends refs from next that are not already in into
func mergeRefs(into, next []models.ImageRef) []models.ImageRef {
	seen := make(map[string]struct{}, len(into))
	for _, r := range into {
		seen[r.URL] = struct{}{}
	}
	for _, r := range next {
		if _, dup := seen[r.URL]; dup {
			continue
		}
		seen[r.URL] = struct{}{}
		into = append(into, r)
	}
	return into
}

func (s *Service) logSummary(pages []PageResult, images int, total time.Duration) {
	failed := 0
	for _, p := range pages {
		if p.Error != "" {
			failed++
		}
		s.log.Debugf("  %s: %d images in %v", p.URL, p.Images, p.Duration)
	}
	s.log.Infof("Discovery: %d pages (%d failed), %d unique images in %v", len(pages), failed, images, total)
}
