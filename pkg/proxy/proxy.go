// Package proxy serves image bytes through a persistent blob cache so repeated
// exports of the same document do not hit the origin again.
package proxy

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/Sriram-PR/doc-images/pkg/fetch"
	"github.com/Sriram-PR/doc-images/pkg/storage"
)

// DefaultDownloadTimeout bounds a shared download once it is detached from the callers
const DefaultDownloadTimeout = 30 * time.Second

// CachingProxy looks up blobs in the store and downloads on a miss, writing
// the result through. Concurrent misses for one URL share a single download
// that outlives any one caller's context.
type CachingProxy struct {
	store    storage.BlobStore
	fetcher  *fetch.Fetcher
	maxBytes int64
	timeout  time.Duration
	group    singleflight.Group
	log      *logrus.Entry
}

// New creates a CachingProxy
func New(store storage.BlobStore, f *fetch.Fetcher, maxBytes int64, log *logrus.Entry) *CachingProxy {
	return &CachingProxy{
		store:    store,
		fetcher:  f,
		maxBytes: maxBytes,
		timeout:  DefaultDownloadTimeout,
		log:      log,
	}
}

// Fetch returns the body for url, from the store when possible
func (p *CachingProxy) Fetch(ctx context.Context, url string) ([]byte, error) {
	imgLog := p.log.WithField("img_url", url)

	blob, ok, err := p.store.Get(url)
	if err != nil {
		// A broken store still lets the download path work
		imgLog.Warnf("Blob store read failed: %v", err)
	} else if ok {
		imgLog.Debug("Blob store hit")
		return blob.Data, nil
	}

	ch := p.group.DoChan(url, func() (interface{}, error) {
		dlCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.timeout)
		defer cancel()
		payload, err := p.fetcher.Download(dlCtx, url, p.maxBytes)
		if err != nil {
			return nil, err
		}
		if err := p.store.Put(&storage.Blob{URL: url, ContentType: payload.ContentType, Data: payload.Data}); err != nil {
			imgLog.Warnf("Blob store write failed: %v", err)
		}
		return payload.Data, nil
	})

	select {
	case <-ctx.Done():
		// The download keeps running for the other callers and still fills the store
		return nil, fmt.Errorf("proxy fetch %s: %w", url, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, fmt.Errorf("proxy fetch %s: %w", url, res.Err)
		}
		if res.Shared {
			imgLog.Debug("Joined in-flight download")
		}
		return res.Val.([]byte), nil
	}
}
