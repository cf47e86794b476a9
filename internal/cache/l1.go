package cache

import (
	"sync"
	"time"
)

// l1Entry is one in-process cache slot. Access bookkeeping lives alongside
// the value so eviction can pick the least-recently-used entry without a
// separate index structure.
type l1Entry struct {
	value      []byte
	expiresAt  time.Time
	lastAccess time.Time
}

func (e *l1Entry) expired(now time.Time) bool {
	return now.After(e.expiresAt)
}

// L1Store is the in-process tier of the cache. It is safe for concurrent
// use and runs its own background sweep to drop expired and idle entries.
type L1Store struct {
	mu         sync.RWMutex
	entries    map[string]*l1Entry
	maxEntries int
	idleTTL    time.Duration

	hits   int64
	misses int64

	stopOnce sync.Once
	stopCh   chan struct{}
}

// NewL1Store builds an L1Store capped at maxEntries, sweeping for expired or
// idle (untouched for idleTTL) entries every sweepInterval.
func NewL1Store(maxEntries int, idleTTL, sweepInterval time.Duration) *L1Store {
	s := &L1Store{
		entries:    make(map[string]*l1Entry),
		maxEntries: maxEntries,
		idleTTL:    idleTTL,
		stopCh:     make(chan struct{}),
	}
	if sweepInterval <= 0 {
		sweepInterval = time.Minute
	}
	go s.sweepLoop(sweepInterval)
	return s
}

func (s *L1Store) sweepLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.sweep()
		case <-s.stopCh:
			return
		}
	}
}

func (s *L1Store) sweep() {
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, e := range s.entries {
		if e.expired(now) || (s.idleTTL > 0 && now.Sub(e.lastAccess) > s.idleTTL) {
			delete(s.entries, k)
		}
	}
}

// Get returns the value for key if present and unexpired.
func (s *L1Store) Get(key string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		s.misses++
		return nil, false
	}
	if e.expired(time.Now()) {
		delete(s.entries, key)
		s.misses++
		return nil, false
	}
	e.lastAccess = time.Now()
	s.hits++
	out := make([]byte, len(e.value))
	copy(out, e.value)
	return out, true
}

// Set stores value under key with the given TTL, evicting the
// least-recently-used entry first if the store is at capacity.
func (s *L1Store) Set(key string, value []byte, ttl time.Duration) {
	stored := make([]byte, len(value))
	copy(stored, value)

	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entries[key]; !exists && s.maxEntries > 0 && len(s.entries) >= s.maxEntries {
		s.evictLRULocked()
	}
	s.entries[key] = &l1Entry{
		value:      stored,
		expiresAt:  now.Add(ttl),
		lastAccess: now,
	}
}

func (s *L1Store) evictLRULocked() {
	var oldestKey string
	var oldest time.Time
	first := true
	for k, e := range s.entries {
		if first || e.lastAccess.Before(oldest) {
			oldestKey = k
			oldest = e.lastAccess
			first = false
		}
	}
	if !first {
		delete(s.entries, oldestKey)
	}
}

// Invalidate removes a single key, reporting whether it was present.
func (s *L1Store) Invalidate(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[key]; !ok {
		return false
	}
	delete(s.entries, key)
	return true
}

// InvalidateMatching removes every key for which match returns true,
// returning the count removed. Used by pattern-based invalidation.
func (s *L1Store) InvalidateMatching(match func(key string) bool) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for k := range s.entries {
		if match(k) {
			delete(s.entries, k)
			removed++
		}
	}
	return removed
}

// L1Stats reports point-in-time store health.
type L1Stats struct {
	Entries  int
	Capacity int
	Hits     int64
	Misses   int64
	HitRate  float64
}

// Stats returns a snapshot of store occupancy and hit ratio.
func (s *L1Store) Stats() L1Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	total := s.hits + s.misses
	rate := 0.0
	if total > 0 {
		rate = float64(s.hits) / float64(total)
	}
	return L1Stats{
		Entries:  len(s.entries),
		Capacity: s.maxEntries,
		Hits:     s.hits,
		Misses:   s.misses,
		HitRate:  rate,
	}
}

// Close stops the background sweep goroutine. Safe to call more than once.
func (s *L1Store) Close() {
	s.stopOnce.Do(func() { close(s.stopCh) })
}
