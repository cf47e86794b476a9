// Package health aggregates cache, artifact, and circuit breaker state into
// the JSON payloads served from /healthz and /stats.
package health

import (
	"context"
	"time"

	"github.com/sawpanic/marketcache/internal/cache"
	"github.com/sawpanic/marketcache/internal/circuit"
)

// Surface composes the live subsystems whose state is reported.
type Surface struct {
	Cache     *cache.Manager
	Artifacts *cache.ArtifactCache
	Breakers  *circuit.Manager
	StartedAt time.Time
}

// Status is the /healthz response body.
type Status struct {
	OK        bool          `json:"ok"`
	L1OK      bool          `json:"l1_ok"`
	L2OK      bool          `json:"l2_ok"`
	UptimeSec float64       `json:"uptime_seconds"`
	Breakers  map[string]string `json:"breakers,omitempty"`
}

// Check returns the current health status. OK is false only when every
// degradation path has been exhausted (L2 down is tolerated; the cache
// keeps serving from L1).
func (s *Surface) Check(ctx context.Context) Status {
	h := s.Cache.Health(ctx)
	breakers := make(map[string]string)
	if s.Breakers != nil {
		for name, state := range s.Breakers.Snapshot() {
			breakers[name] = state.String()
		}
	}
	return Status{
		OK:        h.L1OK,
		L1OK:      h.L1OK,
		L2OK:      h.L2OK,
		UptimeSec: time.Since(s.StartedAt).Seconds(),
		Breakers:  breakers,
	}
}

// Stats is the /stats response body.
type Stats struct {
	Cache     cache.ManagerStats   `json:"cache"`
	Artifacts cache.ArtifactStats  `json:"artifacts"`
	Breakers  map[string]string    `json:"breakers"`
}

// Snapshot returns a point-in-time stats payload.
func (s *Surface) Snapshot() Stats {
	breakers := make(map[string]string)
	if s.Breakers != nil {
		for name, state := range s.Breakers.Snapshot() {
			breakers[name] = state.String()
		}
	}
	var artifactStats cache.ArtifactStats
	if s.Artifacts != nil {
		artifactStats = s.Artifacts.Stats()
	}
	return Stats{
		Cache:     s.Cache.Stats(),
		Artifacts: artifactStats,
		Breakers:  breakers,
	}
}
