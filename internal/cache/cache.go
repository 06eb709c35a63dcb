// Package cache memoizes per-file extraction output, keyed by file identity
// plus content fingerprint. A changed file naturally misses; a reverted file
// naturally hits again. The cache is an explicit, injectable component,
// never a hidden singleton, so tests can instantiate isolated instances.
package cache

import (
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"patternguard/internal/evidence"
	"patternguard/internal/logging"
)

// Entry is one memoized extraction result.
type Entry struct {
	Path        string              `json:"path"`
	Fingerprint string              `json:"fingerprint"`
	Evidence    []evidence.Evidence `json:"evidence"`
	ExtractedAt time.Time           `json:"extractedAt"`
}

// Store is an optional persistent backing for cache entries. A Store that
// cannot decode an entry reports a miss, never an error to the caller.
type Store interface {
	Get(path, fingerprint string) (*Entry, bool)
	Put(entry *Entry) error
	Close() error
}

// Cache fronts the extractor with an in-memory map plus an optional Store.
// Concurrent requests for the same (path, fingerprint) are deduplicated:
// the second requester waits for the first's result instead of extracting
// twice.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]*Entry
	group   singleflight.Group
	store   Store
	logger  *logging.Logger
}

// New creates a cache. store may be nil for a purely in-memory cache.
func New(logger *logging.Logger, store Store) *Cache {
	return &Cache{
		entries: make(map[string]*Entry),
		store:   store,
		logger:  logger,
	}
}

func key(path, fingerprint string) string {
	return path + "\x00" + fingerprint
}

// Get returns the cached evidence for (path, fingerprint), if present in
// memory or in the backing store. A stale fingerprint can never hit: it is
// part of the key.
func (c *Cache) Get(path, fingerprint string) ([]evidence.Evidence, bool) {
	k := key(path, fingerprint)

	c.mu.RLock()
	entry, ok := c.entries[k]
	c.mu.RUnlock()
	if ok {
		return entry.Evidence, true
	}

	if c.store != nil {
		if entry, ok := c.store.Get(path, fingerprint); ok {
			c.mu.Lock()
			c.entries[k] = entry
			c.mu.Unlock()
			return entry.Evidence, true
		}
	}
	return nil, false
}

// GetOrExtract returns the cached evidence for (path, fingerprint) or runs
// extract exactly once to produce it, even under concurrent requests for
// the same key. An extract error is returned to every waiter and nothing is
// cached for that key.
func (c *Cache) GetOrExtract(path, fingerprint string, extract func() ([]evidence.Evidence, error)) ([]evidence.Evidence, error) {
	if found, ok := c.Get(path, fingerprint); ok {
		return found, nil
	}

	k := key(path, fingerprint)
	v, err, _ := c.group.Do(k, func() (interface{}, error) {
		// Re-check: another flight may have populated the entry between
		// the miss above and acquiring the flight.
		if found, ok := c.Get(path, fingerprint); ok {
			return found, nil
		}

		found, err := extract()
		if err != nil {
			return nil, err
		}

		entry := &Entry{
			Path:        path,
			Fingerprint: fingerprint,
			Evidence:    found,
			ExtractedAt: time.Now(),
		}
		c.mu.Lock()
		c.entries[k] = entry
		c.mu.Unlock()

		if c.store != nil {
			if err := c.store.Put(entry); err != nil {
				c.logger.Debug("Persistent cache write failed", map[string]interface{}{
					"path":  path,
					"error": err.Error(),
				})
			}
		}
		return found, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]evidence.Evidence), nil
}

// Evict drops in-memory entries for paths not present in keep. Eviction is
// a memory bound, not a correctness requirement.
func (c *Cache) Evict(keep map[string]bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, entry := range c.entries {
		if !keep[entry.Path] {
			delete(c.entries, k)
		}
	}
}

// Len returns the number of in-memory entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
