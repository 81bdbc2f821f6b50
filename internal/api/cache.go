package api

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	geohash "github.com/TomiHiltunen/geohash-golang"

	"github.com/vivaro/vivaro/internal/model"
	"github.com/vivaro/vivaro/internal/pipeline"
)

// ProbeCache is a concurrent-safe LRU cache of probe results with TTL
// expiration. Entries are keyed by snapshot generation and the exact
// coordinate. The geohash cell leads the key so entries group by area in
// Stats; it never decides a hit on its own.
type ProbeCache struct {
	mu         sync.Mutex
	entries    map[string]*probeEntry
	order      []string // front=oldest, back=newest
	maxEntries int
	ttl        time.Duration
	precision  int
	hits       atomic.Int64
	misses     atomic.Int64
}

type probeEntry struct {
	view      pipeline.ProbeView
	createdAt time.Time
}

// CacheStats contains cache performance statistics.
type CacheStats struct {
	Entries    int     `json:"entries"`
	Cells      int     `json:"cells"`
	MaxEntries int     `json:"max_entries"`
	Hits       int64   `json:"hits"`
	Misses     int64   `json:"misses"`
	HitRate    float64 `json:"hit_rate"`
}

// NewProbeCache creates a cache holding at most maxEntries results. A
// non-positive capacity disables caching.
func NewProbeCache(maxEntries int, ttl time.Duration, precision int) *ProbeCache {
	if precision <= 0 || precision > 12 {
		precision = 7
	}
	return &ProbeCache{
		entries:    make(map[string]*probeEntry),
		maxEntries: maxEntries,
		ttl:        ttl,
		precision:  precision,
	}
}

// Cell returns the geohash cell of p at the cache precision.
func (c *ProbeCache) Cell(p model.GeoPoint) string {
	gh := geohash.Encode(p.Lat, p.Lon)
	if len(gh) > c.precision {
		gh = gh[:c.precision]
	}
	return gh
}

// Key builds the cache key of a coordinate within a snapshot generation.
// Two coordinates share a key only when they are bit-for-bit equal.
func (c *ProbeCache) Key(generation int64, p model.GeoPoint) string {
	return fmt.Sprintf("%d/%s/%s,%s", generation, c.Cell(p),
		strconv.FormatFloat(p.Lat, 'g', -1, 64),
		strconv.FormatFloat(p.Lon, 'g', -1, 64))
}

// Get returns a cached probe. Expired entries count as misses.
func (c *ProbeCache) Get(key string) (pipeline.ProbeView, bool) {
	if c.maxEntries <= 0 {
		c.misses.Add(1)
		return pipeline.ProbeView{}, false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		c.misses.Add(1)
		return pipeline.ProbeView{}, false
	}
	if c.ttl > 0 && time.Since(entry.createdAt) > c.ttl {
		delete(c.entries, key)
		c.removeFromOrder(key)
		c.misses.Add(1)
		return pipeline.ProbeView{}, false
	}

	c.removeFromOrder(key)
	c.order = append(c.order, key)
	c.hits.Add(1)
	return entry.view, true
}

// Put stores a probe, evicting the least recently used entry at capacity.
func (c *ProbeCache) Put(key string, view pipeline.ProbeView) {
	if c.maxEntries <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[key]; ok {
		c.entries[key] = &probeEntry{view: view, createdAt: time.Now()}
		c.removeFromOrder(key)
		c.order = append(c.order, key)
		return
	}

	for len(c.entries) >= c.maxEntries && len(c.order) > 0 {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
	}

	c.entries[key] = &probeEntry{view: view, createdAt: time.Now()}
	c.order = append(c.order, key)
}

// Purge drops every entry.
func (c *ProbeCache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*probeEntry)
	c.order = nil
}

// Stats returns cache performance statistics.
func (c *ProbeCache) Stats() CacheStats {
	c.mu.Lock()
	entries := len(c.entries)
	cells := make(map[string]struct{}, entries)
	for key := range c.entries {
		cells[cellOf(key)] = struct{}{}
	}
	c.mu.Unlock()

	hits := c.hits.Load()
	misses := c.misses.Load()

	var hitRate float64
	if total := hits + misses; total > 0 {
		hitRate = float64(hits) / float64(total)
	}
	return CacheStats{
		Entries:    entries,
		Cells:      len(cells),
		MaxEntries: c.maxEntries,
		Hits:       hits,
		Misses:     misses,
		HitRate:    hitRate,
	}
}

// cellOf extracts the generation and geohash part of a key.
func cellOf(key string) string {
	if i := strings.LastIndexByte(key, '/'); i >= 0 {
		return key[:i]
	}
	return key
}

func (c *ProbeCache) removeFromOrder(key string) {
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			return
		}
	}
}
