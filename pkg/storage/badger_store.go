package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/doc-images/pkg/log"
	"github.com/Sriram-PR/doc-images/pkg/utils"
)

const (
	blobKeyPrefix = "blob:" // Raw image bytes
	typeKeyPrefix = "type:" // Content-Type of the matching blob key
)

// BadgerStore implements BlobStore using BadgerDB. Both keys of an entry are
// written in one transaction with the same TTL so they expire together.
type BadgerStore struct {
	db  *badger.DB
	ttl time.Duration
	log *logrus.Entry
}

// NewBadgerStore opens (or creates) the blob database in dir. A ttl of zero keeps entries forever.
func NewBadgerStore(dir string, ttl time.Duration, logger *logrus.Entry) (*BadgerStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("%w: cannot create blob store directory %s: %w", utils.ErrFilesystem, dir, err)
	}

	logger.Infof("Opening image blob store at: %s (TTL: %v)", dir, ttl)

	badgerLogger := log.NewBadgerLogrusAdapter(logger.WithField("component", "badgerdb"))
	opts := badger.DefaultOptions(dir).
		WithLogger(badgerLogger).
		WithNumVersionsToKeep(1)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open badger database at %s: %w", utils.ErrDatabase, dir, err)
	}
	return &BadgerStore{db: db, ttl: ttl, log: logger}, nil
}

const maxConflictRetries = 10

// dbUpdate wraps db.Update with a retry loop for BadgerDB transaction conflicts.
// Concurrent writers of the same URL can return badger.ErrConflict; these
// resolve in microseconds, so a tight retry loop is sufficient.
func (s *BadgerStore) dbUpdate(fn func(txn *badger.Txn) error) error {
	for i := range maxConflictRetries {
		err := s.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
		s.log.Debugf("BadgerDB transaction conflict (attempt %d/%d), retrying", i+1, maxConflictRetries)
	}
	return fmt.Errorf("%w: transaction conflict not resolved after %d retries", utils.ErrDatabase, maxConflictRetries)
}

func (s *BadgerStore) entry(key, val []byte) *badger.Entry {
	e := badger.NewEntry(key, val)
	if s.ttl > 0 {
		e = e.WithTTL(s.ttl)
	}
	return e
}

// Get implements BlobStore
func (s *BadgerStore) Get(url string) (*Blob, bool, error) {
	blob := &Blob{URL: url}
	found := false

	err := s.db.View(func(txn *badger.Txn) error {
		item, errGet := txn.Get([]byte(blobKeyPrefix + url))
		if errors.Is(errGet, badger.ErrKeyNotFound) {
			return nil
		}
		if errGet != nil {
			return errGet
		}
		data, errVal := item.ValueCopy(nil)
		if errVal != nil {
			return errVal
		}
		blob.Data = data

		typeItem, errGet := txn.Get([]byte(typeKeyPrefix + url))
		switch {
		case errors.Is(errGet, badger.ErrKeyNotFound):
			s.log.Warnf("Blob for '%s' has no content type record", url)
		case errGet != nil:
			return errGet
		default:
			ct, errVal := typeItem.ValueCopy(nil)
			if errVal != nil {
				return errVal
			}
			blob.ContentType = string(ct)
		}
		found = true
		return nil
	})
	if err != nil {
		s.log.Errorf("DB View error in Get for '%s': %v", url, err)
		return nil, false, fmt.Errorf("%w: reading blob '%s': %w", utils.ErrDatabase, url, err)
	}
	if !found {
		return nil, false, nil
	}
	return blob, true, nil
}

// Put implements BlobStore
func (s *BadgerStore) Put(blob *Blob) error {
	if blob == nil || blob.URL == "" {
		return errors.New("blob has no URL")
	}
	err := s.dbUpdate(func(txn *badger.Txn) error {
		if err := txn.SetEntry(s.entry([]byte(blobKeyPrefix+blob.URL), blob.Data)); err != nil {
			return err
		}
		return txn.SetEntry(s.entry([]byte(typeKeyPrefix+blob.URL), []byte(blob.ContentType)))
	})
	if err != nil {
		s.log.WithField("url", blob.URL).Errorf("DB Update error in Put: %v", err)
		return fmt.Errorf("%w: storing blob '%s': %w", utils.ErrDatabase, blob.URL, err)
	}
	s.log.Debugf("Stored %d byte blob for '%s'", len(blob.Data), blob.URL)
	return nil
}

// Delete implements BlobStore
func (s *BadgerStore) Delete(url string) error {
	err := s.dbUpdate(func(txn *badger.Txn) error {
		if err := txn.Delete([]byte(blobKeyPrefix + url)); err != nil {
			return err
		}
		return txn.Delete([]byte(typeKeyPrefix + url))
	})
	if err != nil {
		return fmt.Errorf("%w: deleting blob '%s': %w", utils.ErrDatabase, url, err)
	}
	return nil
}

// Count implements BlobStore with a key-only prefix scan
func (s *BadgerStore) Count() (int, error) {
	count := 0
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		prefix := []byte(blobKeyPrefix)
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			count++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("%w: counting blobs: %w", utils.ErrDatabase, err)
	}
	return count, nil
}

// RunGC implements BlobStore
func (s *BadgerStore) RunGC(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.log.Debug("BadgerDB GC goroutine started.")

	for {
		select {
		case <-ticker.C:
			if s.db == nil || s.db.IsClosed() {
				s.log.Debug("DB GC: Database is nil or closed, skipping GC cycle.")
				continue
			}
			s.runGCCycle()
		case <-ctx.Done():
			s.log.Debugf("Stopping BadgerDB garbage collection goroutine: %v", ctx.Err())
			return
		}
	}
}

// runGCCycle rewrites value log files until badger reports nothing left to reclaim
func (s *BadgerStore) runGCCycle() {
	var err error
	rewrites := 0
	for {
		// Rewrite when at least half of a file is reclaimable
		if err = s.db.RunValueLogGC(0.5); err != nil {
			break
		}
		rewrites++
	}
	if errors.Is(err, badger.ErrNoRewrite) {
		s.log.Debugf("BadgerDB GC finished after %d rewrites", rewrites)
		return
	}
	s.log.Errorf("BadgerDB GC error: %v", err)
}

// Close implements BlobStore
func (s *BadgerStore) Close() error {
	if s.db == nil || s.db.IsClosed() {
		return nil
	}
	if err := s.db.Close(); err != nil {
		s.log.Errorf("Error closing blob store: %v", err)
		return err
	}
	s.log.Debug("Blob store closed.")
	return nil
}
