package ratelimit

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLimiter_AllowNeverBlocksAndDepletes(t *testing.T) {
	l := New(1, 2)
	assert.True(t, l.Allow("binance"))
	assert.True(t, l.Allow("binance"))
	assert.False(t, l.Allow("binance"), "burst of 2 exhausted on the third immediate call")
}

func TestLimiter_StatsTracksPerEndpointBuckets(t *testing.T) {
	l := New(5, 10)
	l.Allow("binance")
	l.Allow("kraken")

	stats := l.Stats()
	assert.Len(t, stats, 2)
}

func TestLimiter_SetRPSOverridesEndpoint(t *testing.T) {
	l := New(1, 1)
	l.SetRPS("binance", 100)

	var got float64
	for _, s := range l.Stats() {
		if s.Endpoint == "binance" {
			got = s.RPS
		}
	}
	assert.Equal(t, float64(100), got)
}
