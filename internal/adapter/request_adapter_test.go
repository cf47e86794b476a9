package adapter

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/marketcache/internal/cache"
)

func TestParseDashboardRequest_NormalizesAndDedupes(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/api/dashboard?symbols=BTC, eth ,btc", nil)
	req, err := ParseDashboardRequest(r)
	require.NoError(t, err)
	assert.Equal(t, []string{"btc", "eth"}, req.Symbols)
}

func TestParseDashboardRequest_EmptyIsError(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/api/dashboard", nil)
	_, err := ParseDashboardRequest(r)
	assert.ErrorIs(t, err, ErrNoSymbols)
}

func TestParseDashboardRequest_TooManyIsError(t *testing.T) {
	symbols := make([]string, maxSymbolsPerRequest+1)
	for i := range symbols {
		symbols[i] = "s" + strconv.Itoa(i)
	}
	r := httptest.NewRequest(http.MethodGet, "/api/dashboard?symbols="+strings.Join(symbols, ","), nil)
	_, err := ParseDashboardRequest(r)
	assert.ErrorIs(t, err, ErrTooManySymbols)
}

func TestApplyCacheHeader_SetsXCache(t *testing.T) {
	w := httptest.NewRecorder()
	ApplyCacheHeader(w, cache.LookupL2Hit)
	assert.Equal(t, "l2-hit", w.Header().Get("X-Cache"))
}
