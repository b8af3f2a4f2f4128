package liveness

import (
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

const (
	summaryKey = "liveness:latest_summary"
	statsKey   = "liveness:latest_stats"
)

// SummaryPublisher receives finished sweep summaries and progress stats.
type SummaryPublisher interface {
	Publish(summary SweepSummary, ttl time.Duration)
	PublishStats(stats SweepStats, ttl time.Duration)
}

// SummaryCache holds the latest sweep summary and progress stats for fast
// polling. Entries expire after their TTL and reads do not extend it.
type SummaryCache struct {
	summaries *ttlcache.Cache[string, SweepSummary]
	stats     *ttlcache.Cache[string, SweepStats]

	mu      sync.Mutex
	running bool
}

var _ SummaryPublisher = (*SummaryCache)(nil)

// NewSummaryCache creates an empty cache. Call Start to run background
// eviction; expired entries are never returned either way.
func NewSummaryCache() *SummaryCache {
	return &SummaryCache{
		summaries: ttlcache.New[string, SweepSummary](
			ttlcache.WithDisableTouchOnHit[string, SweepSummary](),
		),
		stats: ttlcache.New[string, SweepStats](
			ttlcache.WithDisableTouchOnHit[string, SweepStats](),
		),
	}
}

// Publish stores summary as the latest sweep for ttl.
func (c *SummaryCache) Publish(summary SweepSummary, ttl time.Duration) {
	c.summaries.Set(summaryKey, summary, ttl)
}

// PublishStats stores a progress snapshot for ttl.
func (c *SummaryCache) PublishStats(stats SweepStats, ttl time.Duration) {
	c.stats.Set(statsKey, stats, ttl)
}

// Latest returns the cached summary, or a zeroed summary with an empty
// outcome list when nothing is cached. ok reports whether a sweep was found.
func (c *SummaryCache) Latest() (summary SweepSummary, ok bool) {
	item := c.summaries.Get(summaryKey)
	if item == nil {
		return SweepSummary{Outcomes: []Outcome{}}, false
	}
	return item.Value(), true
}

// LatestStats returns the cached progress snapshot, if any.
func (c *SummaryCache) LatestStats() (SweepStats, bool) {
	item := c.stats.Get(statsKey)
	if item == nil {
		return SweepStats{}, false
	}
	return item.Value(), true
}

// Invalidate drops both cached entries.
func (c *SummaryCache) Invalidate() {
	c.summaries.Delete(summaryKey)
	c.stats.Delete(statsKey)
}

// Start runs the eviction loops until Stop is called.
func (c *SummaryCache) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		return
	}
	c.running = true
	go c.summaries.Start()
	go c.stats.Start()
}

// Stop ends the eviction loops. It is a no-op when they are not running.
func (c *SummaryCache) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.running {
		return
	}
	c.running = false
	c.summaries.Stop()
	c.stats.Stop()
}

// SummaryTTL is the cache lifetime for a sweep: the tier's TTL, but never
// shorter than the gap until the next sweep finishes.
func SummaryTTL(tierTTL, interval, sweepDuration time.Duration) time.Duration {
	return max(tierTTL, interval+sweepDuration)
}
