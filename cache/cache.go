// Package cache implements the Parameter Cache: a read-through,
// write-invalidating store sitting in front of the parameter bus, keyed by
// parameter name, with TTL expiry and a score-based eviction policy.
//
// Grounded on the teacher's cache package idiom (a single coarse mutex,
// always-on Statistics, a background sweep goroutine) rather than its
// doubly-linked LRU list, because eviction here is priority-scored, not
// purely recency-ordered.
package cache

import (
	"context"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/c360/webpa-gateway/codec"
	"github.com/c360/webpa-gateway/errors"
)

// Config holds the tunables for a Cache instance.
type Config struct {
	MaxEntries        int
	DefaultTTL        time.Duration
	CleanupInterval   time.Duration
	EnableStats       bool
}

// DefaultConfig returns the conservative defaults used when a component
// does not override cache tuning.
func DefaultConfig() Config {
	return Config{
		MaxEntries:      10000,
		DefaultTTL:      5 * time.Minute,
		CleanupInterval: 30 * time.Second,
		EnableStats:     true,
	}
}

// entry is one cached parameter.
type entry struct {
	value       string
	typ         codec.WireType
	createdAt   time.Time
	ttl         time.Duration
	accessCount int64
}

func (e *entry) expired(now time.Time) bool {
	return e.ttl > 0 && now.Sub(e.createdAt) > e.ttl
}

// priority is the eviction score: lower evicts first. access_count +
// floor(age_seconds/60), computed against now so two calls a moment apart
// still agree on ordering.
func (e *entry) priority(now time.Time) int64 {
	age := now.Sub(e.createdAt).Seconds()
	return e.accessCount + int64(math.Floor(age/60))
}

// Cache is the Parameter Cache: a single mutex-guarded map with TTL expiry
// and priority-scored bulk eviction, matching the concurrency model's
// requirement that every mutating operation and every stat-updating read
// hold the cache lock for a short, I/O-free critical section.
type Cache struct {
	cfg Config

	mu          sync.Mutex
	entries     map[string]*entry
	lastCleanup time.Time

	stats *Statistics

	shutdown chan struct{}
	done     chan struct{}
}

// New constructs a Cache and starts its background expiry sweep goroutine,
// tied to ctx: cancelling ctx stops the goroutine same as Close.
func New(ctx context.Context, cfg Config) *Cache {
	c := &Cache{
		cfg:         cfg,
		entries:     make(map[string]*entry),
		lastCleanup: time.Now(),
		stats:       NewStatistics(),
		shutdown:    make(chan struct{}),
		done:        make(chan struct{}),
	}
	go c.sweepLoop(ctx)
	return c
}

// Get returns the cached value for key, or reports a miss. A present but
// expired entry is removed as part of the lookup and counted as both a
// timeout and a miss.
func (c *Cache) Get(key string) (codec.TypedValue, bool) {
	now := time.Now()
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		c.stats.Miss()
		return codec.TypedValue{}, false
	}
	if e.expired(now) {
		delete(c.entries, key)
		c.stats.Eviction()
		c.stats.Timeout()
		c.stats.Miss()
		c.stats.UpdateSize(int64(len(c.entries)))
		return codec.TypedValue{}, false
	}
	e.accessCount++
	c.stats.Hit()
	return codec.TypedValue{Value: e.value, Type: e.typ}, true
}

// Set writes key, evicting the lowest-priority ⌈max_entries/10⌉ entries
// first if the cache is at capacity. ttl of zero means the default TTL;
// a negative ttl never expires.
func (c *Cache) Set(key string, value codec.TypedValue, ttl time.Duration) {
	if ttl == 0 {
		ttl = c.cfg.DefaultTTL
	}
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists && c.cfg.MaxEntries > 0 && len(c.entries) >= c.cfg.MaxEntries {
		c.evictLocked(now)
	}

	c.entries[key] = &entry{value: value.Value, typ: value.Type, createdAt: now, ttl: ttl}
	c.stats.Set()
	c.stats.UpdateSize(int64(len(c.entries)))
}

// evictLocked removes the lowest-priority ceil(max_entries/10) entries.
// Must be called with c.mu held.
func (c *Cache) evictLocked(now time.Time) {
	n := (c.cfg.MaxEntries + 9) / 10
	if n <= 0 || n > len(c.entries) {
		n = len(c.entries)
	}
	keys := make([]string, 0, len(c.entries))
	for k := range c.entries {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		pi, pj := c.entries[keys[i]].priority(now), c.entries[keys[j]].priority(now)
		if pi != pj {
			return pi < pj
		}
		return keys[i] < keys[j]
	})
	for i := 0; i < n && i < len(keys); i++ {
		delete(c.entries, keys[i])
		c.stats.Eviction()
	}
}

// Delete removes key, reporting whether it was present.
func (c *Cache) Delete(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[key]
	if ok {
		delete(c.entries, key)
		c.stats.Delete()
		c.stats.UpdateSize(int64(len(c.entries)))
	}
	return ok
}

// InvalidateWildcard removes every key starting with prefix (with any
// trailing '*' stripped first), or the single key equal to prefix if it
// carries no wildcard marker. Returns the count removed.
func (c *Cache) InvalidateWildcard(prefix string) int {
	base := strings.TrimSuffix(prefix, "*")
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	if base == prefix {
		if _, ok := c.entries[base]; ok {
			delete(c.entries, base)
			removed = 1
		}
	} else {
		for k := range c.entries {
			if strings.HasPrefix(k, base) {
				delete(c.entries, k)
				removed++
			}
		}
	}
	if removed > 0 {
		c.stats.Delete()
		c.stats.UpdateSize(int64(len(c.entries)))
	}
	return removed
}

// Clear removes every entry.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*entry)
	c.stats.UpdateSize(0)
}

// ExpireSweep removes all expired entries. Called lazily from the
// background loop, and exposed directly for callers (and tests) that want
// to force a sweep without waiting out the cleanup interval.
func (c *Cache) ExpireSweep() int {
	now := time.Now()
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for k, e := range c.entries {
		if e.expired(now) {
			delete(c.entries, k)
			removed++
		}
	}
	if removed > 0 {
		for i := 0; i < removed; i++ {
			c.stats.Eviction()
		}
		c.stats.UpdateSize(int64(len(c.entries)))
	}
	c.lastCleanup = now
	return removed
}

// Stats returns the cache's running statistics. Always non-nil:
// observability is not optional here, matching the teacher's "stats always
// on" convention.
func (c *Cache) Stats() *Statistics {
	return c.stats
}

// Close stops the background sweep goroutine and waits for it to exit.
func (c *Cache) Close() error {
	select {
	case <-c.shutdown:
	default:
		close(c.shutdown)
	}
	select {
	case <-c.done:
		return nil
	case <-time.After(5 * time.Second):
		return errors.WithKind(errors.KindInternal, errors.ErrOperationTimeout, "cache", "Close")
	}
}

func (c *Cache) sweepLoop(ctx context.Context) {
	defer close(c.done)
	ticker := time.NewTicker(c.cfg.CleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.shutdown:
			return
		case <-ticker.C:
			c.ExpireSweep()
		}
	}
}
