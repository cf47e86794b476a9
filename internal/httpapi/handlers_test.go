package httpapi

import (
	"net/http"
	"net/http/httptest"
	"net/http/httputil"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/marketcache/internal/aggregator"
	"github.com/sawpanic/marketcache/internal/cache"
	"github.com/sawpanic/marketcache/internal/circuit"
	"github.com/sawpanic/marketcache/internal/health"
	"github.com/sawpanic/marketcache/internal/metrics"
	"github.com/sawpanic/marketcache/internal/ratelimit"
	"github.com/sawpanic/marketcache/internal/stream"
	"github.com/sawpanic/marketcache/internal/upstream"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	upSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"price_usd":1,"change_24h":0,"volume_usd":0}`))
	}))
	t.Cleanup(upSrv.Close)

	cm := cache.New(cache.NewL1Store(100, time.Hour, time.Hour), nil)
	fetcher := upstream.New(time.Second, circuit.NewManager(time.Minute), ratelimit.New(1000, 1000))
	provider := upstream.Provider{Name: "prices", Chain: []upstream.Endpoint{{Name: "primary", BaseURL: upSrv.URL}}}
	agg := aggregator.New(cm, fetcher, provider)

	reg, promReg := metrics.NewRegistry()
	hub := stream.NewHub()
	t.Cleanup(hub.Close)

	return &Server{
		Aggregator:     agg,
		Cache:          cm,
		Artifacts:      cache.NewArtifactCache(1<<20, 8<<20, 0),
		Health:         &health.Surface{Cache: cm, StartedAt: time.Now()},
		Hub:            hub,
		Metrics:        reg,
		PromRegistry:   promReg,
		RequestTimeout: time.Second,
	}
}

func TestHandleDashboard_ReturnsSnapshot(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/dashboard?symbols=btc", nil)
	w := httptest.NewRecorder()

	s.Router().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "btc")
}

func TestHandleDashboard_SecondRequestIsServedFromCache(t *testing.T) {
	s := newTestServer(t)

	first := httptest.NewRequest(http.MethodGet, "/api/dashboard?symbols=btc", nil)
	w1 := httptest.NewRecorder()
	s.Router().ServeHTTP(w1, first)
	require.Equal(t, http.StatusOK, w1.Code)

	second := httptest.NewRequest(http.MethodGet, "/api/dashboard?symbols=eth", nil)
	w2 := httptest.NewRecorder()
	s.Router().ServeHTTP(w2, second)
	require.Equal(t, http.StatusOK, w2.Code)

	// latest_market_data is a single global key: the second request's
	// different symbol set doesn't matter, the cached snapshot from the
	// first request is what comes back.
	assert.Contains(t, w2.Body.String(), "btc")
	assert.Equal(t, "hit", w2.Result().Header.Get("X-Cache"))
}

func TestHandleDashboard_ForceRefreshBypassesReadButWrites(t *testing.T) {
	s := newTestServer(t)

	first := httptest.NewRequest(http.MethodGet, "/api/dashboard?symbols=btc", nil)
	s.Router().ServeHTTP(httptest.NewRecorder(), first)

	req := httptest.NewRequest(http.MethodGet, "/api/dashboard?symbols=eth&force_refresh=true", nil)
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "eth")

	body, lookup := s.Cache.Get(req.Context(), cache.LatestMarketDataKey())
	require.Equal(t, cache.LookupL1Hit, lookup)
	assert.Contains(t, string(body), "eth")
}

func TestHandleReport_MissRendersAndCachesThenHitServesStored(t *testing.T) {
	s := newTestServer(t)

	first := httptest.NewRequest(http.MethodGet, "/api/report/42?symbols=btc", nil)
	w1 := httptest.NewRecorder()
	s.Router().ServeHTTP(w1, first)
	require.Equal(t, http.StatusOK, w1.Code)
	assert.Equal(t, "miss", w1.Result().Header.Get("X-Cache"))

	second := httptest.NewRequest(http.MethodGet, "/api/report/42", nil)
	w2 := httptest.NewRecorder()
	s.Router().ServeHTTP(w2, second)
	require.Equal(t, http.StatusOK, w2.Code)
	assert.Equal(t, "hit", w2.Result().Header.Get("X-Cache"))
	assert.JSONEq(t, w1.Body.String(), w2.Body.String())
}

func TestHandleDashboard_MissingSymbolsIsBadRequest(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/dashboard", nil)
	w := httptest.NewRecorder()

	s.Router().ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleHealthz_ReportsOK(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()

	s.Router().ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestHandleMetrics_ServesPrometheusFormat(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()

	s.Router().ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	dump, err := httputil.DumpResponse(w.Result(), true)
	require.NoError(t, err)
	assert.Contains(t, string(dump), "marketcache")
}
