package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/sawpanic/marketcache/internal/adapter"
	"github.com/sawpanic/marketcache/internal/aggregator"
	"github.com/sawpanic/marketcache/internal/cache"
	"github.com/sawpanic/marketcache/internal/stream"
)

// handleDashboard serves the C7 "latest snapshot" contract: check the
// latest_market_data cache entry first, fall through to the aggregator on a
// miss, and always write the freshly computed snapshot back before
// returning it. force_refresh bypasses the read but never the write.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	req, err := adapter.ParseDashboardRequest(r)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.RequestTimeout)
	defer cancel()

	key := cache.LatestMarketDataKey()
	produce := func(ctx context.Context) ([]byte, error) {
		snap, err := s.Aggregator.BuildSnapshot(ctx, req.Symbols)
		if err != nil {
			return nil, err
		}
		return json.Marshal(snap)
	}

	var body []byte
	lookup := cache.LookupComputed
	if req.ForceRefresh {
		body, err = s.Cache.Refresh(ctx, key, cache.RealTime, produce)
	} else {
		body, lookup, err = s.Cache.GetOrCompute(ctx, key, cache.RealTime, produce)
	}
	if err != nil {
		log.Error().Err(err).Msg("dashboard snapshot build failed")
		writeJSONError(w, http.StatusBadGateway, "failed to build dashboard snapshot")
		return
	}
	// Mirror the same bytes under the canonical dashboard:summary name so
	// a caller that knows only that key (rather than latest_market_data)
	// can still read the current snapshot.
	s.Cache.Set(ctx, cache.DashboardSummaryKey(), body, cache.RealTime)

	var snap aggregator.DashboardSnapshot
	if err := json.Unmarshal(body, &snap); err != nil {
		log.Error().Err(err).Msg("cached dashboard snapshot decode failed")
		writeJSONError(w, http.StatusInternalServerError, "corrupt cached dashboard snapshot")
		return
	}

	adapter.ApplyCacheHeader(w, lookup)
	if snap.Partial {
		w.Header().Set("X-Cache", "partial")
	}
	s.recordLookupMetrics(snap)
	writeJSON(w, http.StatusOK, snap)
}

// handleReport serves a crypto_report:<id> payload out of the C4 artifact
// cache: a hit returns the stored bytes verbatim, a miss renders a fresh
// report from the aggregator and admits it via Put before returning it.
// Put's rejection (oversized entry or aggregate cap exceeded) is reported
// rather than hidden: the report is still served, just not cached.
func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid report id")
		return
	}

	if body, ok := s.Artifacts.Get(id); ok {
		w.Header().Set("X-Cache", "hit")
		w.Header().Set("Content-Type", "application/json")
		w.Write(body)
		return
	}

	req, err := adapter.ParseDashboardRequest(r)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.RequestTimeout)
	defer cancel()

	snap, err := s.Aggregator.BuildSnapshot(ctx, req.Symbols)
	if err != nil {
		log.Error().Err(err).Msg("report build failed")
		writeJSONError(w, http.StatusBadGateway, "failed to build report")
		return
	}

	body, err := json.Marshal(snap)
	if err != nil {
		log.Error().Err(err).Msg("report encode failed")
		writeJSONError(w, http.StatusInternalServerError, "failed to encode report")
		return
	}

	result := s.Artifacts.Put(id, body)
	if !result.Stored {
		log.Warn().Str("key", cache.CryptoReportKey(id)).Str("reason", result.Reason).Msg("report not admitted to artifact cache")
	}
	s.Cache.Set(ctx, cache.CryptoLatestReportKey(), body, cache.ShortTerm)

	w.Header().Set("X-Cache", "miss")
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) recordLookupMetrics(snap aggregator.DashboardSnapshot) {
	if s.Metrics == nil {
		return
	}
	for _, q := range snap.Quotes {
		outcome := q.Source
		if q.Unavailable {
			outcome = "unavailable"
		}
		s.Metrics.CacheLookups.WithLabelValues(outcomeLabel(outcome)).Inc()
	}
	s.Metrics.RefreshCacheHitRatio()
}

func outcomeLabel(source string) string {
	switch source {
	case "cache-l1":
		return "hit"
	case "cache-l2":
		return "l2-hit"
	case "upstream":
		return "miss"
	default:
		return "unavailable"
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	status := s.Health.Check(r.Context())
	code := http.StatusOK
	if !status.OK {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, status)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Health.Snapshot())
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	if err := stream.Serve(s.Hub, w, r); err != nil {
		log.Debug().Err(err).Msg("websocket upgrade failed")
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode json response")
	}
}

type errorBody struct {
	Error string `json:"error"`
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}
