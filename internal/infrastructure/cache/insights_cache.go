package cache

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/retailpulse/backend/internal/domain/insights"
	"go.uber.org/zap"
)

const defaultInsightsTTL = 5 * time.Minute

// InsightsCache holds the last computed report per user. Entries live for
// the process lifetime; an expired entry reads as absent and is replaced by
// the next Put, so no sweeper runs.
//
// Every Invalidate bumps the user's generation. A computation that started
// before an invalidation stores its result with PutIfCurrent, which refuses
// it once the generation has moved.
type InsightsCache struct {
	entries sync.Map // map[string]*cacheEntry
	mu      sync.Mutex
	gens    map[string]uint64
	ttl     time.Duration
	now     func() time.Time
	logger  *zap.Logger

	hits   atomic.Int64
	misses atomic.Int64
}

type cacheEntry struct {
	report     *insights.InsightsReport
	computedAt time.Time
}

// InsightsCacheOption configures an InsightsCache.
type InsightsCacheOption func(*InsightsCache)

// WithInsightsCacheTTL overrides the five minute lifetime.
func WithInsightsCacheTTL(ttl time.Duration) InsightsCacheOption {
	return func(c *InsightsCache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithInsightsCacheClock injects the time source.
func WithInsightsCacheClock(now func() time.Time) InsightsCacheOption {
	return func(c *InsightsCache) {
		c.now = now
	}
}

// WithInsightsCacheLogger sets the logger.
func WithInsightsCacheLogger(logger *zap.Logger) InsightsCacheOption {
	return func(c *InsightsCache) {
		c.logger = logger
	}
}

// NewInsightsCache creates an empty cache.
func NewInsightsCache(opts ...InsightsCacheOption) *InsightsCache {
	c := &InsightsCache{
		gens:   make(map[string]uint64),
		ttl:    defaultInsightsTTL,
		now:    time.Now,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the user's report if it was computed within the TTL.
func (c *InsightsCache) Get(userID string) (*insights.InsightsReport, bool) {
	if v, ok := c.entries.Load(userID); ok {
		e := v.(*cacheEntry)
		if c.now().Sub(e.computedAt) < c.ttl {
			c.hits.Add(1)
			return e.report, true
		}
	}
	c.misses.Add(1)
	return nil, false
}

// Put stores report as the user's current entry regardless of generation.
func (c *InsightsCache) Put(userID string, report *insights.InsightsReport) {
	if report == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.store(userID, report)
}

// Generation returns the user's invalidation counter.
func (c *InsightsCache) Generation(userID string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gens[userID]
}

// PutIfCurrent stores report only if the user has not been invalidated
// since gen was read. It reports whether the entry was stored.
func (c *InsightsCache) PutIfCurrent(userID string, report *insights.InsightsReport, gen uint64) bool {
	if report == nil {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gens[userID] != gen {
		c.logger.Debug("Discarded report computed before invalidation", zap.String("user_id", userID))
		return false
	}
	c.store(userID, report)
	return true
}

func (c *InsightsCache) store(userID string, report *insights.InsightsReport) {
	c.entries.Store(userID, &cacheEntry{report: report, computedAt: c.now()})
	c.logger.Debug("Cached insights report", zap.String("user_id", userID))
}

// Invalidate drops the user's entry and advances its generation.
func (c *InsightsCache) Invalidate(userID string) {
	c.mu.Lock()
	c.gens[userID]++
	c.entries.Delete(userID)
	c.mu.Unlock()
	c.logger.Debug("Invalidated insights report", zap.String("user_id", userID))
}

// CacheStats is a point-in-time view of cache effectiveness.
type CacheStats struct {
	Hits    int64
	Misses  int64
	Entries int
}

// Stats returns hit, miss and entry counts.
func (c *InsightsCache) Stats() CacheStats {
	n := 0
	c.entries.Range(func(_, _ any) bool {
		n++
		return true
	})
	return CacheStats{Hits: c.hits.Load(), Misses: c.misses.Load(), Entries: n}
}
