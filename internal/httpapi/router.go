// Package httpapi wires marketcache's HTTP and WebSocket surface together
// using gorilla/mux, matching the routing style the teacher uses across its
// internal/interfaces/http package.
package httpapi

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/sawpanic/marketcache/internal/aggregator"
	"github.com/sawpanic/marketcache/internal/cache"
	"github.com/sawpanic/marketcache/internal/health"
	"github.com/sawpanic/marketcache/internal/metrics"
	"github.com/sawpanic/marketcache/internal/stream"
)

// Server bundles every dependency the HTTP handlers need.
type Server struct {
	Aggregator     *aggregator.Aggregator
	Cache          *cache.Manager
	Artifacts      *cache.ArtifactCache
	Health         *health.Surface
	Hub            *stream.Hub
	Metrics        *metrics.Registry
	PromRegistry   *prometheus.Registry
	RequestTimeout time.Duration
}

// Router builds the top-level *mux.Router exposing every marketcache
// endpoint.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/api/dashboard", s.handleDashboard).Methods(http.MethodGet)
	r.HandleFunc("/api/report/{id:[0-9]+}", s.handleReport).Methods(http.MethodGet)
	r.HandleFunc("/healthz", s.handleHealthz).Methods(http.MethodGet)
	r.HandleFunc("/stats", s.handleStats).Methods(http.MethodGet)
	r.HandleFunc("/ws", s.handleWS).Methods(http.MethodGet)
	r.Handle("/metrics", metrics.Handler(s.PromRegistry)).Methods(http.MethodGet)
	r.Use(withRequestID)
	return r
}
