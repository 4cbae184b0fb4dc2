package fetch

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/doc-images/pkg/utils"
)

// Payload is a fully-read image body
type Payload struct {
	URL         string
	ContentType string // media type without parameters, e.g. "image/png"
	Data        []byte
}

// IsImageContentType reports whether a Content-Type header value names an image media type
func IsImageContentType(header string) bool {
	mediaType, _, err := mime.ParseMediaType(header)
	if err != nil {
		mediaType = strings.TrimSpace(strings.Split(header, ";")[0])
	}
	return strings.HasPrefix(strings.ToLower(mediaType), "image/")
}

// Download fetches rawURL with retries and reads the body, enforcing maxBytes
// against both the declared Content-Length and the bytes actually read.
func (f *Fetcher) Download(ctx context.Context, rawURL string, maxBytes int64) (*Payload, error) {
	req, err := f.NewRequest(ctx, rawURL)
	if err != nil {
		return nil, err
	}

	resp, err := f.FetchWithRetry(ctx, req)
	if err != nil {
		if resp != nil {
			drain(resp)
			return nil, fmt.Errorf("%w: HTTP %d: %s", utils.ErrHTTPStatus, resp.StatusCode, http.StatusText(resp.StatusCode))
		}
		return nil, err
	}
	defer drain(resp)

	p, err := ReadImageBody(resp, maxBytes)
	if err != nil {
		return nil, err
	}
	p.URL = rawURL
	f.log.WithFields(logrus.Fields{"url": rawURL, "bytes": len(p.Data), "content_type": p.ContentType}).Debug("Downloaded image")
	return p, nil
}

// ReadImageBody checks that resp carries an image and reads at most maxBytes of
// its body. The declared Content-Length is rejected up front; the bytes actually
// read are checked again since servers can under-declare.
func ReadImageBody(resp *http.Response, maxBytes int64) (*Payload, error) {
	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		return nil, fmt.Errorf("%w: missing Content-Type header", utils.ErrContentType)
	}
	if !IsImageContentType(contentType) {
		return nil, fmt.Errorf("%w: %s", utils.ErrContentType, contentType)
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0]))
	}

	if maxBytes > 0 && resp.ContentLength > maxBytes {
		return nil, fmt.Errorf("%w: %d bytes (max %d)", utils.ErrTooLarge, resp.ContentLength, maxBytes)
	}

	reader := io.Reader(resp.Body)
	if maxBytes > 0 {
		// One extra byte distinguishes "at the limit" from "over it"
		reader = io.LimitReader(resp.Body, maxBytes+1)
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", utils.ErrResponseBodyRead, err)
	}
	if maxBytes > 0 && int64(len(data)) > maxBytes {
		return nil, fmt.Errorf("%w: more than %d bytes received", utils.ErrTooLarge, maxBytes)
	}

	return &Payload{ContentType: mediaType, Data: data}, nil
}
