package orchestrate

import (
	"context"
	"fmt"
	"io"

	"github.com/Sriram-PR/doc-images/pkg/parse"
	"github.com/Sriram-PR/doc-images/pkg/utils"
)

const (
	maxSitemapDepth = 3
	maxSitemapSize  = 50 * 1024 * 1024
	maxSitemapPages = 1000
)

// ExpandSitemaps fetches sitemaps and returns the page URLs they list, in
// document order without duplicates. Index files are followed up to
// maxSitemapDepth levels and at most maxSitemapPages pages are returned.
// A sitemap that cannot be read is logged and skipped; an error is returned
// only when none of them could be read.
func (s *Service) ExpandSitemaps(ctx context.Context, sitemapURLs []string) ([]string, error) {
	type pending struct {
		url   string
		depth int
	}
	queue := make([]pending, 0, len(sitemapURLs))
	for _, u := range sitemapURLs {
		queue = append(queue, pending{url: u})
	}

	visited := make(map[string]struct{})
	seenPages := make(map[string]struct{})
	var pages []string
	var lastErr error
	read := 0

	for len(queue) > 0 && len(pages) < maxSitemapPages {
		if ctx.Err() != nil {
			return pages, ctx.Err()
		}
		next := queue[0]
		queue = queue[1:]

		smLog := s.log.WithField("sitemap_url", next.url)
		key, err := parse.PageKey(next.url)
		if err != nil {
			smLog.Warnf("Skipping sitemap: %v", err)
			lastErr = err
			continue
		}
		if _, done := visited[key]; done {
			continue
		}
		visited[key] = struct{}{}

		sm, err := s.fetchSitemap(ctx, next.url)
		if err != nil {
			smLog.Warnf("Sitemap fetch failed: %v", err)
			lastErr = err
			continue
		}
		read++

		if len(sm.Children) > 0 {
			if next.depth+1 >= maxSitemapDepth {
				smLog.Warnf("Sitemap index nesting exceeds %d levels, ignoring %d nested sitemaps", maxSitemapDepth, len(sm.Children))
			} else {
				for _, child := range sm.Children {
					queue = append(queue, pending{url: child, depth: next.depth + 1})
				}
				smLog.Debugf("Sitemap index lists %d sitemaps", len(sm.Children))
			}
		}

		added := 0
		for _, page := range sm.Pages {
			pageKey, err := parse.PageKey(page)
			if err != nil {
				smLog.Debugf("Skipping sitemap entry: %v", err)
				continue
			}
			if _, dup := seenPages[pageKey]; dup {
				continue
			}
			seenPages[pageKey] = struct{}{}
			pages = append(pages, page)
			added++
			if len(pages) >= maxSitemapPages {
				smLog.Warnf("Sitemap page limit %d reached, ignoring the rest", maxSitemapPages)
				break
			}
		}
		smLog.Debugf("Sitemap added %d pages", added)
	}

	if read == 0 && lastErr != nil {
		return nil, lastErr
	}
	s.log.Infof("Sitemaps: %d read, %d pages", read, len(pages))
	return pages, nil
}

func (s *Service) fetchSitemap(ctx context.Context, sitemapURL string) (*parse.Sitemap, error) {
	resp, err := s.fetchDocument(ctx, sitemapURL, "application/xml,text/xml;q=0.9,*/*;q=0.8")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxSitemapSize))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", utils.ErrResponseBodyRead, err)
	}
	return parse.ParseSitemap(data)
}
