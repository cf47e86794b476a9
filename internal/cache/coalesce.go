package cache

import "sync"

// slot is the coalescing point for concurrent get_or_compute calls sharing
// a key: only the caller holding slot.mu actually invokes the producer
// function, everyone else blocks on the same lock and then re-checks the
// cache.
type slot struct {
	mu   sync.Mutex
	refs int
}

// slotMap hands out a shared slot per key and reference-counts it so it can
// be dropped from the map the moment the last waiter is done with it. Go has
// no RAII, so callers release the slot via the returned closure inside a
// defer.
type slotMap struct {
	mu    sync.Mutex
	slots map[string]*slot
}

func newSlotMap() *slotMap {
	return &slotMap{slots: make(map[string]*slot)}
}

// acquire returns the slot for key (creating it if this is the first
// waiter) and a release function. The release function must be called
// exactly once, typically via defer, regardless of how the caller's
// critical section exits.
func (m *slotMap) acquire(key string) (*slot, func()) {
	m.mu.Lock()
	s, ok := m.slots[key]
	if !ok {
		s = &slot{}
		m.slots[key] = s
	}
	s.refs++
	m.mu.Unlock()

	var once sync.Once
	release := func() {
		once.Do(func() {
			m.mu.Lock()
			s.refs--
			if s.refs == 0 {
				delete(m.slots, key)
			}
			m.mu.Unlock()
		})
	}
	return s, release
}

// inflight reports how many keys currently have at least one waiter,
// surfaced in cache stats as a stampede-pressure indicator.
func (m *slotMap) inflight() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.slots)
}
