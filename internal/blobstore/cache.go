package blobstore

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/merkl-ops/distrib/internal/distmodel"
)

const blobCacheSchema = `
CREATE TABLE IF NOT EXISTS blob_cache (
	cid TEXT PRIMARY KEY,
	body TEXT NOT NULL,
	cached_at INTEGER NOT NULL
);
`

// CachingStore wraps an upstream Store with a local SQLite read-through
// cache, so repeated proof/round lookups against the same CID don't
// re-fetch from the gateway. Put always writes through to upstream and
// then seeds the cache under the returned CID; Get populates the cache on
// a miss.
type CachingStore struct {
	upstream Store
	db       *sql.DB
}

// NewCachingStore opens (or creates) a WAL-mode SQLite database under
// dataDir, following the same mkdir/PRAGMA/schema sequence storage.Open
// uses for the order-matching tables.
func NewCachingStore(dataDir string, upstream Store) (*CachingStore, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, distmodel.ErrBlobStore.Wrapf("mkdir cache dir: %v", err)
	}
	path := filepath.Join(dataDir, "blobcache.db")
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, distmodel.ErrBlobStore.Wrapf("open cache db: %v", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, distmodel.ErrBlobStore.Wrapf("enable WAL: %v", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, distmodel.ErrBlobStore.Wrapf("set busy_timeout: %v", err)
	}
	if _, err := db.Exec(blobCacheSchema); err != nil {
		db.Close()
		return nil, distmodel.ErrBlobStore.Wrapf("init blob_cache: %v", err)
	}
	return &CachingStore{upstream: upstream, db: db}, nil
}

func (c *CachingStore) Close() error {
	return c.db.Close()
}

func (c *CachingStore) ValidateCID(cid string) error {
	return c.upstream.ValidateCID(cid)
}

// Get checks the local cache first; on a miss it falls through to
// upstream and stores the result for next time.
func (c *CachingStore) Get(ctx context.Context, cid string) (*distmodel.Blob, error) {
	if err := c.ValidateCID(cid); err != nil {
		return nil, err
	}

	var body string
	err := c.db.QueryRowContext(ctx, "SELECT body FROM blob_cache WHERE cid = ?", cid).Scan(&body)
	if err == nil {
		return decode([]byte(body))
	}
	if err != sql.ErrNoRows {
		return nil, distmodel.ErrBlobStore.Wrapf("read cache for %s: %v", cid, err)
	}

	blob, err := c.upstream.Get(ctx, cid)
	if err != nil {
		return nil, err
	}
	data, err := encode(blob)
	if err != nil {
		return nil, err
	}
	if _, err := c.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO blob_cache (cid, body, cached_at) VALUES (?, ?, unixepoch())",
		cid, string(data),
	); err != nil {
		return nil, distmodel.ErrBlobStore.Wrapf("write cache for %s: %v", cid, err)
	}
	return blob, nil
}

// Put writes through to upstream, then seeds the cache with the CID it
// returns so an immediate Get doesn't round-trip to the gateway.
func (c *CachingStore) Put(ctx context.Context, blob *distmodel.Blob) (string, error) {
	newCID, err := c.upstream.Put(ctx, blob)
	if err != nil {
		return "", err
	}
	data, err := encode(blob)
	if err != nil {
		return "", err
	}
	if _, err := c.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO blob_cache (cid, body, cached_at) VALUES (?, ?, unixepoch())",
		newCID, string(data),
	); err != nil {
		return "", distmodel.ErrBlobStore.Wrapf("seed cache for %s: %v", newCID, err)
	}
	return newCID, nil
}
