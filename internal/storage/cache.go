package storage

import (
	"time"

	"github.com/jellydator/ttlcache/v3"
)

// cachedFile is a remote file held by the adapter until its TTL expires.
type cachedFile struct {
	path     string
	content  string
	version  string
	cachedAt time.Time
}

// readCache is keyed by full path. It provides no consistency between
// concurrent writers. Freshness is judged against now so that the TTL can be
// exercised with a fixed clock; ttlcache evicts on wall time.
type readCache struct {
	ttl   time.Duration
	now   func() time.Time
	files *ttlcache.Cache[string, cachedFile]
}

func newReadCache(ttl time.Duration, now func() time.Time) *readCache {
	c := &readCache{ttl: ttl, now: now}
	if ttl > 0 {
		c.files = ttlcache.New[string, cachedFile](
			ttlcache.WithTTL[string, cachedFile](ttl),
			ttlcache.WithDisableTouchOnHit[string, cachedFile](),
		)
	}
	return c
}

// get returns a cached file younger than the TTL.
func (c *readCache) get(path string) (cachedFile, bool) {
	if c.files == nil {
		return cachedFile{}, false
	}
	item := c.files.Get(path)
	if item == nil {
		return cachedFile{}, false
	}
	f := item.Value()
	if c.now().Sub(f.cachedAt) >= c.ttl {
		c.files.Delete(path)
		return cachedFile{}, false
	}
	return f, true
}

func (c *readCache) put(f *File) {
	if c.files == nil {
		return
	}
	c.files.Set(f.Path, cachedFile{
		path:     f.Path,
		content:  f.Content,
		version:  f.Version,
		cachedAt: c.now(),
	}, ttlcache.DefaultTTL)
}

func (c *readCache) invalidate(path string) {
	if c.files != nil {
		c.files.Delete(path)
	}
}

func (c *readCache) len() int {
	if c.files == nil {
		return 0
	}
	return c.files.Len()
}
