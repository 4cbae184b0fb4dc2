package storage

import (
	"context"
	"time"
)

// Blob is a cached image body with the Content-Type it was served with
type Blob struct {
	URL         string
	ContentType string
	Data        []byte
}

// BlobStore persists raw image bytes between runs so exports can skip the network
type BlobStore interface {
	// Get returns the blob stored for url. A missing or expired entry is (nil, false, nil).
	Get(url string) (*Blob, bool, error)

	// Put stores blob under blob.URL, replacing any previous entry and resetting its TTL
	Put(blob *Blob) error

	// Delete removes url. Deleting an absent key is not an error.
	Delete(url string) error

	// Count returns the number of live entries
	Count() (int, error)

	// RunGC runs periodic value log garbage collection until ctx is done. Should be run in a goroutine
	RunGC(ctx context.Context, interval time.Duration)

	// Close cleanly closes the database
	Close() error
}
