package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestArtifactCache_RejectsOversizedEntry(t *testing.T) {
	c := NewArtifactCache(10, 1000, 0)
	res := c.Put(1, make([]byte, 11))
	assert.False(t, res.Stored)
	assert.Equal(t, "entry_too_large", res.Reason)
}

func TestArtifactCache_RejectsWhenAggregateCapExceeded(t *testing.T) {
	c := NewArtifactCache(100, 150, 0)
	assert.True(t, c.Put(1, make([]byte, 100)).Stored)
	res := c.Put(2, make([]byte, 100))
	assert.False(t, res.Stored)
	assert.Equal(t, "aggregate_cap_exceeded", res.Reason)
}

func TestArtifactCache_ReplaceAccountsSizeDelta(t *testing.T) {
	c := NewArtifactCache(100, 150, 0)
	require := assert.New(t)
	require.True(c.Put(1, make([]byte, 100)).Stored)
	require.True(c.Put(1, make([]byte, 50)).Stored, "replacing entry 1 with a smaller payload must free budget")

	stats := c.Stats()
	require.Equal(int64(50), stats.CurrentBytes)
}

func TestArtifactCache_InvalidateReclaimsBudget(t *testing.T) {
	c := NewArtifactCache(100, 100, 0)
	assert.True(t, c.Put(1, make([]byte, 100)).Stored)
	assert.False(t, c.Put(2, make([]byte, 100)).Stored)

	assert.True(t, c.Invalidate(1))
	assert.True(t, c.Put(2, make([]byte, 100)).Stored)
}

func TestArtifactCache_StatsHealthLabel(t *testing.T) {
	c := NewArtifactCache(100, 100, 0)
	c.Put(1, make([]byte, 96))
	stats := c.Stats()
	assert.Equal(t, "critical", stats.HealthLabel)
}
