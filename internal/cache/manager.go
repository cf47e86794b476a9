package cache

import (
	"context"
	"path"

	"github.com/rs/zerolog/log"
)

// Lookup describes where a value was found (or not), used to derive the
// X-Cache response header.
type Lookup int

const (
	LookupMiss Lookup = iota
	LookupL1Hit
	LookupL2Hit
	LookupComputed
)

// String renders the lookup kind the way it appears in the X-Cache header.
func (l Lookup) String() string {
	switch l {
	case LookupL1Hit:
		return "hit"
	case LookupL2Hit:
		return "l2-hit"
	case LookupComputed:
		return "miss"
	default:
		return "empty"
	}
}

// Manager is the single entry point every caller uses to read and write
// cached values. It composes the L1 in-process store, the L2 Redis store,
// and per-key request coalescing so concurrent callers racing on the same
// key never run the producer function more than once at a time.
type Manager struct {
	l1         *L1Store
	l2         *L2Store
	l1Ceiling  Strategy
	slots      *slotMap
}

// New builds a Manager. l2 may be nil, in which case the manager runs in
// L1-only mode (useful for tests and for graceful degradation when Redis is
// unreachable at startup).
func New(l1 *L1Store, l2 *L2Store) *Manager {
	return &Manager{
		l1:        l1,
		l2:        l2,
		l1Ceiling: ShortTerm,
		slots:     newSlotMap(),
	}
}

// Get looks up key in L1, then L2, promoting an L2 hit into L1 so the next
// reader is served without a round trip.
func (m *Manager) Get(ctx context.Context, key string) ([]byte, Lookup) {
	if v, ok := m.l1.Get(key); ok {
		return v, LookupL1Hit
	}
	if m.l2 == nil {
		return nil, LookupMiss
	}
	v, ok := m.l2.Get(ctx, key)
	if !ok {
		return nil, LookupMiss
	}
	m.l1.Set(key, v, m.l1Ceiling.TTL())
	return v, LookupL2Hit
}

// Set writes value under key to both tiers using strategy's TTL.
func (m *Manager) Set(ctx context.Context, key string, value []byte, strategy Strategy) {
	m.l1.Set(key, value, strategy.TTL())
	if m.l2 != nil {
		if err := m.l2.Set(ctx, key, value, strategy.TTL()); err != nil {
			log.Warn().Err(err).Str("key", key).Msg("l2 write failed, continuing in l1-only mode for this key")
		}
	}
}

// Producer computes a value to populate the cache on a miss.
type Producer func(ctx context.Context) ([]byte, error)

// GetOrCompute returns the cached value for key, or invokes produce to
// populate it. Concurrent calls for the same key share a single producer
// invocation: the rest block until the winner publishes a result, then
// re-check the cache instead of recomputing.
func (m *Manager) GetOrCompute(ctx context.Context, key string, strategy Strategy, produce Producer) ([]byte, Lookup, error) {
	if v, lookup := m.Get(ctx, key); lookup != LookupMiss {
		return v, lookup, nil
	}

	// The slot returned by acquire() is shared by every concurrent caller
	// for this key; locking it serializes them so only the first caller
	// through actually runs produce. release() drops the slot from the map
	// once every waiter (including this one) is done, regardless of
	// whether produce succeeded, failed, or panicked.
	sl, release := m.slots.acquire(key)
	defer release()
	sl.mu.Lock()
	defer sl.mu.Unlock()

	if v, lookup := m.Get(ctx, key); lookup != LookupMiss {
		return v, lookup, nil
	}

	v, err := produce(ctx)
	if err != nil {
		return nil, LookupMiss, err
	}
	m.Set(ctx, key, v, strategy)
	return v, LookupComputed, nil
}

// Refresh unconditionally recomputes key's value via produce, skipping the
// cache read, but still writes the result back under strategy's TTL and
// still coalesces concurrent callers for the same key through the same
// slot GetOrCompute uses. It implements force-refresh semantics: skip the
// read, never skip the write.
func (m *Manager) Refresh(ctx context.Context, key string, strategy Strategy, produce Producer) ([]byte, error) {
	sl, release := m.slots.acquire(key)
	defer release()
	sl.mu.Lock()
	defer sl.mu.Unlock()

	v, err := produce(ctx)
	if err != nil {
		return nil, err
	}
	m.Set(ctx, key, v, strategy)
	return v, nil
}

// Invalidate removes a single key from both tiers.
func (m *Manager) Invalidate(ctx context.Context, key string) {
	m.l1.Invalidate(key)
	if m.l2 != nil {
		if err := m.l2.Invalidate(ctx, key); err != nil {
			log.Warn().Err(err).Str("key", key).Msg("l2 invalidate failed")
		}
	}
}

// InvalidatePattern removes every key matching the glob pattern from both
// tiers, returning the larger of the L1 and L2 removal counts (an
// approximation, since the two tiers are swept independently; if the L2
// sweep fails, the L1 count is returned).
func (m *Manager) InvalidatePattern(ctx context.Context, pattern string) int {
	removed := m.l1.InvalidateMatching(func(key string) bool {
		ok, _ := path.Match(pattern, key)
		return ok
	})
	if m.l2 != nil {
		if n, err := m.l2.InvalidatePattern(ctx, pattern); err != nil {
			log.Warn().Err(err).Str("pattern", pattern).Msg("l2 pattern invalidate failed")
		} else if n > removed {
			removed = n
		}
	}
	return removed
}

// HealthStatus summarizes tier-level reachability.
type HealthStatus struct {
	L1OK    bool
	L2OK    bool
	Overall bool
}

// Health reports whether each tier is currently usable.
func (m *Manager) Health(ctx context.Context) HealthStatus {
	l2ok := m.l2 == nil || m.l2.Healthy(ctx)
	return HealthStatus{L1OK: true, L2OK: l2ok, Overall: l2ok}
}

// ManagerStats aggregates L1 occupancy and stampede pressure for the health
// and metrics surfaces.
type ManagerStats struct {
	L1       L1Stats
	Inflight int
}

// Stats returns a combined snapshot of manager-level state.
func (m *Manager) Stats() ManagerStats {
	return ManagerStats{L1: m.l1.Stats(), Inflight: m.slots.inflight()}
}
