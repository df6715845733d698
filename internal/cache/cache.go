package cache

import (
	"math"
	"regexp"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/veilengine/veil/internal/logger"
)

// scoreHalfLife is the decay constant for the eviction score: an entry's
// access count is discounted by exp(-secondsSinceLastAccess/300).
const scoreHalfLife = 300.0

// entry is one compiled matcher plus its access bookkeeping. accessCount and
// lastAccess use atomics so cache hits never take the write lock.
type entry struct {
	matcher     *regexp.Regexp
	accessCount atomic.Int64
	lastAccess  atomic.Int64 // unix nanos
	created     time.Time
}

func (e *entry) touch() {
	e.accessCount.Add(1)
	e.lastAccess.Store(time.Now().UnixNano())
}

func (e *entry) score(now time.Time) float64 {
	age := now.Sub(time.Unix(0, e.lastAccess.Load())).Seconds()
	return float64(e.accessCount.Load()) * math.Exp(-age/scoreHalfLife)
}

// PatternCache is the single owner of all compiled matchers. Inserts and
// evictions serialize through the write lock; lookups of already-resolved
// entries only take the read lock.
type PatternCache struct {
	mu      sync.RWMutex
	entries map[string]*entry
	config  Config
	logger  *logger.Logger

	hits   atomic.Int64
	misses atomic.Int64
}

// New creates a pattern cache. Zero config fields fall back to defaults.
func New(config Config, log *logger.Logger) *PatternCache {
	defaults := DefaultConfig()
	if config.MaxSize <= 0 {
		config.MaxSize = defaults.MaxSize
	}
	if config.CleanupThreshold <= config.MaxSize {
		config.CleanupThreshold = config.MaxSize + config.MaxSize/5 + 1
	}
	if config.MaxAge <= 0 {
		config.MaxAge = defaults.MaxAge
	}

	return &PatternCache{
		entries: make(map[string]*entry),
		config:  config,
		logger:  log,
	}
}

// Get returns the compiled matcher for pattern, compiling and inserting it
// on first use. A compile failure is surfaced to the caller and the bad
// pattern is never cached.
func (c *PatternCache) Get(pattern string) (*regexp.Regexp, error) {
	c.mu.RLock()
	e, ok := c.entries[pattern]
	c.mu.RUnlock()

	if ok {
		e.touch()
		c.hits.Add(1)
		return e.matcher, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// Another caller may have compiled it while we waited for the lock.
	if e, ok := c.entries[pattern]; ok {
		e.touch()
		c.hits.Add(1)
		return e.matcher, nil
	}

	c.misses.Add(1)

	matcher, err := regexp.Compile(pattern)
	if err != nil {
		return nil, &CompileError{Pattern: pattern, Err: err}
	}

	e = &entry{matcher: matcher, created: time.Now()}
	e.touch()
	c.entries[pattern] = e

	if len(c.entries) >= c.config.CleanupThreshold {
		c.evictLocked()
	}

	return matcher, nil
}

// GetMany resolves a batch of patterns. Patterns that fail to compile are
// logged and omitted from the result so the rest of a category still runs.
func (c *PatternCache) GetMany(patterns []string) map[string]*regexp.Regexp {
	matchers := make(map[string]*regexp.Regexp, len(patterns))
	for _, pattern := range patterns {
		matcher, err := c.Get(pattern)
		if err != nil {
			c.logger.Warn("Skipping uncompilable pattern",
				zap.String("pattern", pattern),
				zap.Error(err),
			)
			continue
		}
		matchers[pattern] = matcher
	}
	return matchers
}

// Preload warms the cache with the given patterns. Compile failures are
// logged and skipped.
func (c *PatternCache) Preload(patterns []string) {
	resolved := c.GetMany(patterns)
	c.logger.Info("Pattern cache preloaded",
		zap.Int("requested", len(patterns)),
		zap.Int("compiled", len(resolved)),
	)
}

// evictLocked removes entries until the cache is back within MaxSize.
// Entries past MaxAge are purged first regardless of score, then the
// lowest-scoring entries go. Caller must hold the write lock.
func (c *PatternCache) evictLocked() {
	now := time.Now()
	before := len(c.entries)

	for pattern, e := range c.entries {
		if now.Sub(time.Unix(0, e.lastAccess.Load())) > c.config.MaxAge {
			delete(c.entries, pattern)
		}
	}

	if len(c.entries) > c.config.MaxSize {
		type scored struct {
			pattern string
			score   float64
		}
		ranked := make([]scored, 0, len(c.entries))
		for pattern, e := range c.entries {
			ranked = append(ranked, scored{pattern: pattern, score: e.score(now)})
		}
		sort.Slice(ranked, func(i, j int) bool { return ranked[i].score < ranked[j].score })

		for _, s := range ranked[:len(c.entries)-c.config.MaxSize] {
			delete(c.entries, s.pattern)
		}
	}

	c.logger.Debug("Pattern cache cleanup",
		zap.Int("before", before),
		zap.Int("after", len(c.entries)),
		zap.Int("max_size", c.config.MaxSize),
	)
}

// Clear drops every cached matcher. Used as the best-effort cleanup action
// under memory pressure.
func (c *PatternCache) Clear() {
	c.mu.Lock()
	dropped := len(c.entries)
	c.entries = make(map[string]*entry)
	c.mu.Unlock()

	c.logger.Info("Pattern cache cleared", zap.Int("dropped", dropped))
}

// Len returns the current entry count.
func (c *PatternCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Stats returns a snapshot of cache behavior for observability.
func (c *PatternCache) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	now := time.Now()
	top := make([]EntryStats, 0, len(c.entries))
	var oldest time.Duration
	for pattern, e := range c.entries {
		top = append(top, EntryStats{
			Pattern:     pattern,
			AccessCount: e.accessCount.Load(),
			LastAccess:  time.Unix(0, e.lastAccess.Load()),
		})
		if age := now.Sub(e.created); age > oldest {
			oldest = age
		}
	}
	sort.Slice(top, func(i, j int) bool { return top[i].AccessCount > top[j].AccessCount })
	if len(top) > 10 {
		top = top[:10]
	}

	hits := c.hits.Load()
	total := hits + c.misses.Load()
	ratio := 0.0
	if total > 0 {
		ratio = float64(hits) / float64(total)
	}

	return Stats{
		Count:       len(c.entries),
		MaxSize:     c.config.MaxSize,
		TopAccessed: top,
		HitRatio:    ratio,
		OldestEntry: oldest,
	}
}
