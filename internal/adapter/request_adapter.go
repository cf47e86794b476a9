// Package adapter translates raw HTTP requests into the typed parameters
// the aggregator and cache manager expect, and sets the X-Cache response
// header from a cache lookup outcome. Status codes and JSON bodies are
// written by package httpapi. Keeping this translation out of the cache and
// aggregator packages is what lets them stay free of net/http.
package adapter

import (
	"net/http"
	"strings"

	"github.com/sawpanic/marketcache/internal/cache"
)

const maxSymbolsPerRequest = 50

// DashboardRequest is the normalized form of a dashboard request.
type DashboardRequest struct {
	Symbols      []string
	ForceRefresh bool
}

// ParseDashboardRequest extracts and validates the "symbols" query
// parameter (a comma-separated list) from r. An empty or missing parameter
// yields ErrNoSymbols; more than maxSymbolsPerRequest yields ErrTooManySymbols.
// A truthy "force_refresh" parameter ("1", "true", or "yes") bypasses the
// cached "latest_market_data" read but still writes the freshly computed
// snapshot back to cache.
func ParseDashboardRequest(r *http.Request) (DashboardRequest, error) {
	raw := r.URL.Query().Get("symbols")
	if strings.TrimSpace(raw) == "" {
		return DashboardRequest{}, ErrNoSymbols
	}

	parts := strings.Split(raw, ",")
	symbols := make([]string, 0, len(parts))
	seen := make(map[string]bool, len(parts))
	for _, p := range parts {
		s := strings.ToLower(strings.TrimSpace(p))
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		symbols = append(symbols, s)
	}
	if len(symbols) == 0 {
		return DashboardRequest{}, ErrNoSymbols
	}
	if len(symbols) > maxSymbolsPerRequest {
		return DashboardRequest{}, ErrTooManySymbols
	}
	return DashboardRequest{Symbols: symbols, ForceRefresh: isTruthy(r.URL.Query().Get("force_refresh"))}, nil
}

func isTruthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes":
		return true
	default:
		return false
	}
}

// ApplyCacheHeader sets the X-Cache response header from a lookup outcome.
func ApplyCacheHeader(w http.ResponseWriter, lookup cache.Lookup) {
	w.Header().Set("X-Cache", lookup.String())
}
