package export

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sriram-PR/doc-images/pkg/config"
	"github.com/Sriram-PR/doc-images/pkg/fetch"
	"github.com/Sriram-PR/doc-images/pkg/models"
)

func testLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

func newTestFetcher() *fetch.Fetcher {
	return fetch.NewFetcher(&http.Client{Timeout: 5 * time.Second}, fetch.RetryPolicy{}, config.DefaultUserAgent, testLogger())
}

// peakServer serves PNG bytes after delay and records the highest in-flight count
type peakServer struct {
	*httptest.Server
	inFlight atomic.Int32
	peak     atomic.Int32
	hits     atomic.Int32
}

func newPeakServer(t *testing.T, delay time.Duration) *peakServer {
	t.Helper()
	ps := &peakServer{}
	ps.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ps.hits.Add(1)
		n := ps.inFlight.Add(1)
		defer ps.inFlight.Add(-1)
		for {
			p := ps.peak.Load()
			if n <= p || ps.peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(delay)
		if r.URL.Path == "/broken.png" {
			http.Error(w, "gone", http.StatusGone)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Write([]byte("img:" + r.URL.Path))
	}))
	t.Cleanup(ps.Close)
	return ps
}

func blocksFor(base string, n int) []models.ImageBlock {
	blocks := make([]models.ImageBlock, n)
	for i := range blocks {
		blocks[i] = models.ImageBlock{URL: fmt.Sprintf("%s/%d.png", base, i)}
	}
	return blocks
}

func TestChunkURLs(t *testing.T) {
	urls := make([]string, 25)
	for i := range urls {
		urls[i] = fmt.Sprintf("u%d", i)
	}
	chunks := chunkURLs(urls, 10)
	require.Len(t, chunks, 3)
	assert.Len(t, chunks[0], 10)
	assert.Len(t, chunks[1], 10)
	assert.Len(t, chunks[2], 5)
	assert.Equal(t, "u10", chunks[1][0])

	assert.Empty(t, chunkURLs(nil, 10))
}

func TestFetchMany_BoundedConcurrency(t *testing.T) {
	srv := newPeakServer(t, 30*time.Millisecond)
	o := NewOrchestrator(newTestFetcher(), nil, 0, testLogger())

	got := o.FetchMany(context.Background(), blocksFor(srv.URL, 25), time.Second, 10, false)

	assert.Len(t, got, 25)
	assert.LessOrEqual(t, srv.peak.Load(), int32(10))
	assert.Equal(t, int32(25), srv.hits.Load())
	assert.Equal(t, []byte("img:/7.png"), got[srv.URL+"/7.png"])
}

func TestFetchMany_ChunkWaitsForSlowestFetch(t *testing.T) {
	var slowDone, nextChunkSawSlowDone atomic.Bool
	var nextChunkStarted atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/0.png":
			time.Sleep(200 * time.Millisecond)
			slowDone.Store(true)
		case "/2.png":
			nextChunkStarted.Add(1)
			nextChunkSawSlowDone.Store(slowDone.Load())
		}
		w.Header().Set("Content-Type", "image/png")
		w.Write([]byte("img:" + r.URL.Path))
	}))
	defer srv.Close()
	o := NewOrchestrator(newTestFetcher(), nil, 0, testLogger())

	got := o.FetchMany(context.Background(), blocksFor(srv.URL, 3), time.Second, 2, false)

	assert.Len(t, got, 3)
	require.Equal(t, int32(1), nextChunkStarted.Load())
	assert.True(t, nextChunkSawSlowDone.Load(), "second chunk started before the first chunk settled")
}

func TestFetchMany_OmitsFailures(t *testing.T) {
	srv := newPeakServer(t, 0)
	o := NewOrchestrator(newTestFetcher(), nil, 0, testLogger())

	blocks := []models.ImageBlock{
		{URL: srv.URL + "/ok.png"},
		{URL: srv.URL + "/broken.png"},
		{URL: srv.URL + "/ok.png"},
		{URL: ""},
	}
	got := o.FetchMany(context.Background(), blocks, time.Second, 10, false)

	assert.Len(t, got, 1)
	assert.Contains(t, got, srv.URL+"/ok.png")
	assert.Equal(t, int32(2), srv.hits.Load(), "repeated URLs are fetched once")
}

func TestFetchMany_PerFetchTimeout(t *testing.T) {
	slow := newPeakServer(t, 300*time.Millisecond)
	fast := newPeakServer(t, 0)
	o := NewOrchestrator(newTestFetcher(), nil, 0, testLogger())

	blocks := []models.ImageBlock{{URL: slow.URL + "/slow.png"}, {URL: fast.URL + "/fast.png"}}
	got := o.FetchMany(context.Background(), blocks, 50*time.Millisecond, 10, false)

	assert.Len(t, got, 1)
	assert.Contains(t, got, fast.URL+"/fast.png")
}

type fakeProxy struct {
	mu    sync.Mutex
	calls []string
	data  map[string][]byte
}

func (p *fakeProxy) Fetch(_ context.Context, url string) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, url)
	if d, ok := p.data[url]; ok {
		return d, nil
	}
	return nil, errors.New("not cached")
}

func TestFetchMany_ProxyFirstThenDirect(t *testing.T) {
	srv := newPeakServer(t, 0)
	proxy := &fakeProxy{data: map[string][]byte{srv.URL + "/cached.png": []byte("from-proxy")}}
	o := NewOrchestrator(newTestFetcher(), proxy, 0, testLogger())

	blocks := []models.ImageBlock{{URL: srv.URL + "/cached.png"}, {URL: srv.URL + "/fresh.png"}}
	got := o.FetchMany(context.Background(), blocks, time.Second, 10, true)

	assert.Equal(t, []byte("from-proxy"), got[srv.URL+"/cached.png"])
	assert.Equal(t, []byte("img:/fresh.png"), got[srv.URL+"/fresh.png"])
	assert.Len(t, proxy.calls, 2)
	assert.Equal(t, int32(1), srv.hits.Load())
}

func TestFetchMany_ProxyDisabled(t *testing.T) {
	srv := newPeakServer(t, 0)
	proxy := &fakeProxy{data: map[string][]byte{srv.URL + "/a.png": []byte("from-proxy")}}
	o := NewOrchestrator(newTestFetcher(), proxy, 0, testLogger())

	got := o.FetchMany(context.Background(), []models.ImageBlock{{URL: srv.URL + "/a.png"}}, time.Second, 10, false)

	assert.Equal(t, []byte("img:/a.png"), got[srv.URL+"/a.png"])
	assert.Empty(t, proxy.calls)
}

func TestFetchMany_CanceledContext(t *testing.T) {
	srv := newPeakServer(t, 0)
	o := NewOrchestrator(newTestFetcher(), nil, 0, testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	got := o.FetchMany(ctx, blocksFor(srv.URL, 5), time.Second, 10, false)
	assert.Empty(t, got)
	assert.Equal(t, int32(0), srv.hits.Load())
}

func imageSection(id string, n int, startAt int) models.Section {
	s := models.Section{ID: id, Title: id}
	for i := 0; i < n; i++ {
		s.Blocks = append(s.Blocks,
			models.ContentBlock{Type: models.BlockParagraph, Text: "text"},
			models.NewImageBlock(models.ImageMetadata{URL: fmt.Sprintf("https://example.com/%d.png", startAt+i)}),
		)
	}
	return s
}

func countImages(sections []models.Section) int {
	return len(ImageBlocks(sections))
}

func TestLimitImagesForExport(t *testing.T) {
	sections := []models.Section{imageSection("a", 20, 0), imageSection("b", 15, 20)}

	limited, dropped := LimitImagesForExport(sections, 30)

	assert.Equal(t, 5, dropped)
	assert.Equal(t, 30, countImages(limited))
	assert.Equal(t, 35, countImages(sections), "input is untouched")

	imgs := ImageBlocks(limited)
	assert.Equal(t, "https://example.com/0.png", imgs[0].URL)
	assert.Equal(t, "https://example.com/29.png", imgs[29].URL)
	assert.Len(t, limited[1].Blocks, 15+10, "paragraphs are kept")
}

func TestLimitImagesForExport_UnderLimit(t *testing.T) {
	sections := []models.Section{imageSection("a", 3, 0)}
	limited, dropped := LimitImagesForExport(sections, 30)
	assert.Equal(t, 0, dropped)
	assert.Equal(t, sections, limited)
}

func TestLimitImagesForExport_DropsTrailingSpacer(t *testing.T) {
	img := func(u string) models.ContentBlock { return models.NewImageBlock(models.ImageMetadata{URL: u}) }
	spacer := models.ContentBlock{Type: models.BlockSpacer}
	sections := []models.Section{{
		ID:     "appendix",
		Blocks: []models.ContentBlock{{Type: models.BlockParagraph, Text: "intro"}, img("a"), spacer, img("b"), spacer},
	}}

	limited, dropped := LimitImagesForExport(sections, 1)
	assert.Equal(t, 1, dropped)
	assert.Equal(t, []models.ContentBlock{{Type: models.BlockParagraph, Text: "intro"}, img("a"), spacer}, limited[0].Blocks)
}

func TestLocalFilename(t *testing.T) {
	tests := []struct {
		name        string
		url         string
		contentType string
		wantPrefix  string
		wantExt     string
		wantErr     bool
	}{
		{"png from type", "https://example.com/img/arch.png", "image/png", "arch_", ".png", false},
		{"jpeg normalised", "https://example.com/photo.jpeg", "image/jpeg", "photo_", ".jpg", false},
		{"ext from url when sniff unknown", "https://example.com/logo.svg", "text/xml; charset=utf-8", "logo_", ".svg", false},
		{"no base name", "https://example.com/", "image/gif", "image_", ".gif", false},
		{"no extension at all", "https://example.com/blob", "application/octet-stream", "", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			name, err := localFilename(tt.url, tt.contentType)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, len(name) > len(tt.wantPrefix)+8)
			assert.Equal(t, tt.wantPrefix, name[:len(tt.wantPrefix)])
			assert.Equal(t, tt.wantExt, filepath.Ext(name))
		})
	}
}

func TestLocalFilename_DisambiguatesPaths(t *testing.T) {
	a, err := localFilename("https://example.com/v1/diagram.png", "image/png")
	require.NoError(t, err)
	b, err := localFilename("https://example.com/v2/diagram.png", "image/png")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestWriteImages(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	png := []byte("\x89PNG\r\n\x1a\n0000")
	images := map[string][]byte{
		"https://example.com/a.png": png,
		"https://example.com/b.png": png,
	}

	written, err := WriteImages(dir, images)
	require.NoError(t, err)
	require.Len(t, written, 2)

	for u, rel := range written {
		data, err := os.ReadFile(filepath.Join(dir, rel))
		require.NoError(t, err, u)
		assert.Equal(t, png, data)
	}
}
