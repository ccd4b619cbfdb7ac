package archive

import (
	"context"
	"encoding/json"
	"fmt"

	"go.etcd.io/bbolt"

	"github.com/pkgtools/aptrewind/types"
)

var bucketLookups = []byte("lookups")

// Cache wraps an Archive with an on-disk lookup cache, so rerunning a plan
// against the same target time does not rehit the archive for every
// package. Fetches are not cached here; the download directory already
// deduplicates them. Resolution is a pure function of (name, version,
// arch), which is exactly what makes the cache safe.
type Cache struct {
	inner Archive
	db    *bbolt.DB
}

// NewCache opens (or creates) the cache database at path around inner.
func NewCache(path string, inner Archive) (*Cache, error) {
	db, err := bbolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open lookup cache: %w", err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketLookups)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize lookup cache: %w", err)
	}
	return &Cache{inner: inner, db: db}, nil
}

// Close closes the cache database.
func (c *Cache) Close() error { return c.db.Close() }

// cachedLookup distinguishes "never asked" from "asked, archive had
// nothing": negative answers are worth caching too.
type cachedLookup struct {
	Refs []types.ArtifactRef `json:"refs"`
}

// Lookup serves from the cache when possible, falling through to the
// wrapped archive and recording its answer.
func (c *Cache) Lookup(ctx context.Context, name, version, arch string) ([]types.ArtifactRef, error) {
	key := []byte(name + "\x00" + version + "\x00" + arch)

	var hit *cachedLookup
	err := c.db.View(func(tx *bbolt.Tx) error {
		raw := tx.Bucket(bucketLookups).Get(key)
		if raw == nil {
			return nil
		}
		var entry cachedLookup
		if err := json.Unmarshal(raw, &entry); err != nil {
			return nil // stale or corrupt entry, treat as a miss
		}
		hit = &entry
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("lookup cache read failed: %w", err)
	}
	if hit != nil {
		return hit.Refs, nil
	}

	refs, err := c.inner.Lookup(ctx, name, version, arch)
	if err != nil {
		return nil, err
	}

	raw, err := json.Marshal(cachedLookup{Refs: refs})
	if err != nil {
		return refs, nil
	}
	err = c.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketLookups).Put(key, raw)
	})
	if err != nil {
		return nil, fmt.Errorf("lookup cache write failed: %w", err)
	}
	return refs, nil
}

// Fetch delegates to the wrapped archive.
func (c *Cache) Fetch(ctx context.Context, ref types.ArtifactRef, destDir string) (string, error) {
	return c.inner.Fetch(ctx, ref, destDir)
}
