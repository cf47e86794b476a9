package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager() *Manager {
	return New(NewL1Store(100, time.Hour, time.Hour), nil)
}

func TestManager_GetOrCompute_PopulatesOnMiss(t *testing.T) {
	m := newTestManager()
	ctx := context.Background()

	calls := 0
	v, lookup, err := m.GetOrCompute(ctx, "k", ShortTerm, func(ctx context.Context) ([]byte, error) {
		calls++
		return []byte("v"), nil
	})
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), v)
	assert.Equal(t, LookupComputed, lookup)
	assert.Equal(t, 1, calls)

	v2, lookup2, err := m.GetOrCompute(ctx, "k", ShortTerm, func(ctx context.Context) ([]byte, error) {
		calls++
		return []byte("should-not-run"), nil
	})
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), v2)
	assert.Equal(t, LookupL1Hit, lookup2)
	assert.Equal(t, 1, calls)
}

func TestManager_GetOrCompute_CoalescesConcurrentCallers(t *testing.T) {
	m := newTestManager()
	ctx := context.Background()

	var calls int64
	release := make(chan struct{})

	const n = 20
	var wg sync.WaitGroup
	results := make([][]byte, n)
	wg.Add(n)
	for i := 0; i < n; i++ {
		i := i
		go func() {
			defer wg.Done()
			v, _, err := m.GetOrCompute(ctx, "stampede", ShortTerm, func(ctx context.Context) ([]byte, error) {
				atomic.AddInt64(&calls, 1)
				<-release
				return []byte("computed"), nil
			})
			require.NoError(t, err)
			results[i] = v
		}()
	}

	// give every goroutine a chance to queue up behind the coalescing slot
	// before letting the producer finish.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int64(1), atomic.LoadInt64(&calls), "producer must run exactly once for concurrent callers sharing a key")
	for _, v := range results {
		assert.Equal(t, []byte("computed"), v)
	}
}

func TestManager_GetOrCompute_ReleasesSlotOnError(t *testing.T) {
	m := newTestManager()
	ctx := context.Background()

	_, _, err := m.GetOrCompute(ctx, "k", ShortTerm, func(ctx context.Context) ([]byte, error) {
		return nil, errors.New("boom")
	})
	require.Error(t, err)
	assert.Equal(t, 0, m.slots.inflight(), "slot must be released after producer error")

	calls := 0
	v, lookup, err := m.GetOrCompute(ctx, "k", ShortTerm, func(ctx context.Context) ([]byte, error) {
		calls++
		return []byte("retry-ok"), nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, LookupComputed, lookup)
	assert.Equal(t, []byte("retry-ok"), v)
}

func TestManager_Refresh_SkipsReadButWrites(t *testing.T) {
	m := newTestManager()
	ctx := context.Background()

	m.Set(ctx, "k", []byte("stale"), ShortTerm)

	calls := 0
	v, err := m.Refresh(ctx, "k", ShortTerm, func(ctx context.Context) ([]byte, error) {
		calls++
		return []byte("fresh"), nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls, "Refresh must always invoke produce, even on a cache hit")
	assert.Equal(t, []byte("fresh"), v)

	stored, lookup := m.Get(ctx, "k")
	assert.Equal(t, LookupL1Hit, lookup)
	assert.Equal(t, []byte("fresh"), stored, "Refresh must write its result back to cache")
}

func TestManager_InvalidatePattern(t *testing.T) {
	m := newTestManager()
	ctx := context.Background()

	m.Set(ctx, MarketKey("btc"), []byte("1"), ShortTerm)
	m.Set(ctx, MarketKey("eth"), []byte("1"), ShortTerm)
	m.Set(ctx, ReportKey("btc", "1h"), []byte("1"), ShortTerm)

	removed := m.InvalidatePattern(ctx, MarketPattern())
	assert.Equal(t, 2, removed)

	_, lookup := m.Get(ctx, ReportKey("btc", "1h"))
	assert.Equal(t, LookupL1Hit, lookup)
}
