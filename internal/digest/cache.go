package digest

import (
	"os"
	"sync"
	"time"
)

// signature identifies a file's on-disk state. If size and mtime are unchanged
// the cached digest is trusted without re-reading the file.
type signature struct {
	size    int64
	modTime time.Time
}

type cacheEntry struct {
	sig    signature
	digest string
}

// Cache is an advisory, per-scan-process map of file path to last computed
// digest. It only avoids redundant hashing; duplicate detection is always done
// against the persisted tenant-scoped digest index, never against this cache.
type Cache struct {
	mu      sync.Mutex
	entries map[string]cacheEntry
}

func NewCache() *Cache {
	return &Cache{entries: make(map[string]cacheEntry)}
}

// Lookup returns the digest for path, re-hashing only when the file's
// modification signature differs from the cached one.
func (c *Cache) Lookup(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", err
	}
	sig := signature{size: info.Size(), modTime: info.ModTime()}

	c.mu.Lock()
	entry, ok := c.entries[path]
	c.mu.Unlock()
	if ok && entry.sig == sig {
		return entry.digest, nil
	}

	sum, err := HashFile(path)
	if err != nil {
		return "", err
	}

	c.mu.Lock()
	c.entries[path] = cacheEntry{sig: sig, digest: sum}
	c.mu.Unlock()
	return sum, nil
}

// Sweep evicts entries whose paths were not seen in the scan that just
// finished, keeping the cache bounded by the live file set.
func (c *Cache) Sweep(seen map[string]bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for path := range c.entries {
		if !seen[path] {
			delete(c.entries, path)
		}
	}
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
