package cache

import (
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog/log"
)

// artifactEntry holds a large, infrequently-regenerated report payload.
type artifactEntry struct {
	data []byte
	size int64
}

// ArtifactCache bounds the total memory spent on large report artifacts
// independently of the L1/L2 stores, so a handful of oversized reports can
// never starve the rest of the cache. Admission is a compare-and-swap
// against a single atomic byte counter, matching the L1 store's lock-light
// accounting style.
type ArtifactCache struct {
	mu      sync.RWMutex
	entries map[int64]*artifactEntry

	currentBytes atomic.Int64
	rejected     atomic.Int64

	maxEntryBytes int64
	maxTotalBytes int64
	warnBytes     int64
}

// NewArtifactCache builds a cache rejecting any single artifact over
// maxEntryBytes and capping aggregate usage at maxTotalBytes. warnBytes, if
// positive, logs a warning for any individual artifact above that size even
// when it is admitted.
func NewArtifactCache(maxEntryBytes, maxTotalBytes, warnBytes int64) *ArtifactCache {
	return &ArtifactCache{
		entries:       make(map[int64]*artifactEntry),
		maxEntryBytes: maxEntryBytes,
		maxTotalBytes: maxTotalBytes,
		warnBytes:     warnBytes,
	}
}

// PutResult describes the outcome of an admission attempt.
type PutResult struct {
	Stored bool
	Reason string
}

// Put admits data under reportID, replacing any prior artifact for the same
// ID. Admission is rejected outright if data alone exceeds the per-entry
// cap, or if admitting it would push aggregate usage past the total cap.
func (c *ArtifactCache) Put(reportID int64, data []byte) PutResult {
	size := int64(len(data))
	if c.maxEntryBytes > 0 && size > c.maxEntryBytes {
		c.rejected.Add(1)
		return PutResult{Stored: false, Reason: "entry_too_large"}
	}
	if c.warnBytes > 0 && size > c.warnBytes {
		log.Warn().Int64("report_id", reportID).Int64("bytes", size).Msg("artifact cache admitting oversized entry")
	}

	stored := make([]byte, size)
	copy(stored, data)

	c.mu.Lock()
	defer c.mu.Unlock()

	var previousSize int64
	if prev, ok := c.entries[reportID]; ok {
		previousSize = prev.size
	}

	for {
		cur := c.currentBytes.Load()
		next := cur - previousSize + size
		if c.maxTotalBytes > 0 && next > c.maxTotalBytes {
			c.rejected.Add(1)
			return PutResult{Stored: false, Reason: "aggregate_cap_exceeded"}
		}
		if c.currentBytes.CompareAndSwap(cur, next) {
			break
		}
	}

	c.entries[reportID] = &artifactEntry{data: stored, size: size}
	return PutResult{Stored: true}
}

// Get returns the artifact for reportID, if present.
func (c *ArtifactCache) Get(reportID int64) ([]byte, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[reportID]
	if !ok {
		return nil, false
	}
	out := make([]byte, len(e.data))
	copy(out, e.data)
	return out, true
}

// Invalidate removes reportID's artifact, reclaiming its byte budget.
func (c *ArtifactCache) Invalidate(reportID int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[reportID]
	if !ok {
		return false
	}
	delete(c.entries, reportID)
	c.currentBytes.Add(-e.size)
	return true
}

// ArtifactStats reports cache occupancy for health and metrics surfaces.
type ArtifactStats struct {
	Entries       int
	CurrentBytes  int64
	MaxTotalBytes int64
	UsagePercent  float64
	RejectedCount int64
	HealthLabel   string
}

// Stats returns a point-in-time snapshot. The byte counter is read
// lock-free; the entry count is read under the read lock, so Stats waits
// for an in-progress Put or Invalidate to finish.
func (c *ArtifactCache) Stats() ArtifactStats {
	c.mu.RLock()
	n := len(c.entries)
	c.mu.RUnlock()

	cur := c.currentBytes.Load()
	usage := 0.0
	if c.maxTotalBytes > 0 {
		usage = float64(cur) / float64(c.maxTotalBytes) * 100
	}
	label := "healthy"
	switch {
	case usage >= 95:
		label = "critical"
	case usage >= 80:
		label = "warning"
	}
	return ArtifactStats{
		Entries:       n,
		CurrentBytes:  cur,
		MaxTotalBytes: c.maxTotalBytes,
		UsagePercent:  usage,
		RejectedCount: c.rejected.Load(),
		HealthLabel:   label,
	}
}
