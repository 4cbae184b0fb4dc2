package process

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"net/http"
	"time"

	"github.com/rwcarlsen/goexif/exif"
	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/doc-images/pkg/config"
	"github.com/Sriram-PR/doc-images/pkg/fetch"
	"github.com/Sriram-PR/doc-images/pkg/metrics"
	"github.com/Sriram-PR/doc-images/pkg/models"
	"github.com/Sriram-PR/doc-images/pkg/phash"
	"github.com/Sriram-PR/doc-images/pkg/utils"
	"github.com/Sriram-PR/doc-images/pkg/validate"
)

// MetadataFetcher turns an ImageRef into ImageMetadata with one GET.
// It never returns an error: every failure is recorded on the result.
type MetadataFetcher struct {
	fetcher   *fetch.Fetcher
	validator *validate.Validator
	hasher    phash.Hasher
	timeout   time.Duration
	maxBytes  int64
	log       *logrus.Entry
}

// NewMetadataFetcher creates a MetadataFetcher. A nil hasher disables hashing.
func NewMetadataFetcher(f *fetch.Fetcher, v *validate.Validator, h phash.Hasher, cfg config.FetchConfig, log *logrus.Entry) *MetadataFetcher {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = config.DefaultMetadataTimeout
	}
	maxBytes := cfg.MaxFileSizeBytes
	if maxBytes <= 0 {
		maxBytes = config.DefaultMaxFileSize
	}
	return &MetadataFetcher{
		fetcher:   f,
		validator: v,
		hasher:    h,
		timeout:   timeout,
		maxBytes:  maxBytes,
		log:       log,
	}
}

// FetchMetadata downloads ref.URL within the configured timeout and probes its
// dimensions, type, size and hash.
func (m *MetadataFetcher) FetchMetadata(ctx context.Context, ref models.ImageRef) models.ImageMetadata {
	started := time.Now()
	imgLog := m.log.WithField("img_url", ref.URL)

	meta, err := m.fetchMetadata(ctx, ref, imgLog)
	if err != nil {
		outcome := utils.CategorizeError(err)
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			// Our own timeout fired rather than the caller's
			outcome = utils.OutcomeTimeout
			err = fmt.Errorf("%w: Request timed out after %v", utils.ErrTimeout, m.timeout)
		}
		imgLog.WithFields(logrus.Fields{"outcome": outcome}).Debugf("Image rejected: %v", err)
		metrics.ObserveFetch(outcome, started)
		return models.InvalidMetadata(ref, errorMessage(err), outcome)
	}

	metrics.ObserveFetch(utils.OutcomeOK, started)
	return meta
}

func (m *MetadataFetcher) fetchMetadata(ctx context.Context, ref models.ImageRef, imgLog *logrus.Entry) (models.ImageMetadata, error) {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	req, err := m.fetcher.NewRequest(ctx, ref.URL)
	if err != nil {
		return models.ImageMetadata{}, err
	}
	resp, err := m.fetcher.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return models.ImageMetadata{}, ctx.Err()
		}
		return models.ImageMetadata{}, fmt.Errorf("%w: %w", utils.ErrNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return models.ImageMetadata{}, &statusError{code: resp.StatusCode}
	}

	payload, err := fetch.ReadImageBody(resp, m.maxBytes)
	if err != nil {
		if ctx.Err() != nil {
			return models.ImageMetadata{}, ctx.Err()
		}
		return models.ImageMetadata{}, err
	}

	width, height, format, err := probeDimensions(payload.Data)
	if err != nil {
		imgLog.Debugf("Dimension probe failed: %v", err)
		return models.ImageMetadata{}, fmt.Errorf("%w: %w", utils.ErrDimensions, err)
	}

	bounds := validate.DefaultBounds()
	if m.validator != nil {
		bounds = m.validator.Bounds()
	}
	if !bounds.Contains(width, height) {
		return models.ImageMetadata{}, fmt.Errorf("%w: %s", utils.ErrSizeBounds, bounds.Describe(width, height))
	}

	meta := models.ImageMetadata{
		URL:        ref.URL,
		Alt:        ref.Alt,
		Caption:    ref.Caption,
		SourceURL:  ref.SourceURL,
		Width:      width,
		Height:     height,
		Type:       payload.ContentType,
		SizeBytes:  int64(len(payload.Data)),
		Importance: DetermineImportance(width, height, ref.Alt),
		IsValid:    true,
		Outcome:    utils.OutcomeOK,
	}
	if meta.Type == "" {
		meta.Type = "image/" + format
	}

	if m.hasher != nil {
		hash, hashErr := m.hasher.Hash(payload.Data)
		if hashErr != nil {
			// Image stays usable; dedup will treat it as unique
			imgLog.Warnf("Hashing failed, continuing without fingerprint: %v", hashErr)
		} else {
			meta.Hash = hash
			meta.HashKind = m.hasher.Kind()
		}
	}
	return meta, nil
}

// probeDimensions reads the image header, swapping width and height for JPEGs
// whose EXIF orientation rotates them by 90 degrees.
func probeDimensions(data []byte) (width, height int, format string, err error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0, "", err
	}
	width, height = cfg.Width, cfg.Height
	if format == "jpeg" && exifRotated(data) {
		width, height = height, width
	}
	return width, height, format, nil
}

// exifRotated reports orientations 5-8, which transpose the stored image
func exifRotated(data []byte) bool {
	x, err := exif.Decode(bytes.NewReader(data))
	if err != nil {
		return false
	}
	tag, err := x.Get(exif.Orientation)
	if err != nil {
		return false
	}
	orientation, err := tag.Int(0)
	if err != nil {
		return false
	}
	return orientation >= 5 && orientation <= 8
}

type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.code, http.StatusText(e.code))
}

func (e *statusError) Unwrap() error { return utils.ErrHTTPStatus }

// errorMessage picks the human-readable reason stored on invalid metadata
func errorMessage(err error) string {
	var se *statusError
	switch {
	case errors.As(err, &se):
		return se.Error()
	case errors.Is(err, utils.ErrDimensions):
		return "Failed to read image dimensions"
	}
	return err.Error()
}
