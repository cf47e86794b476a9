package aggregator

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sawpanic/marketcache/internal/cache"
	"github.com/sawpanic/marketcache/internal/upstream"
)

// rawQuote is the wire shape returned by upstream price providers.
type rawQuote struct {
	PriceUSD  float64 `json:"price_usd"`
	Change24h float64 `json:"change_24h"`
	VolumeUSD float64 `json:"volume_usd"`
}

// Aggregator fans a dashboard request out into one concurrent quote fetch
// per symbol, each independently cached and coalesced, and folds the results
// into a single DashboardSnapshot. Indicators are not fetched; the
// snapshot's Indicators field is left empty. The
// concurrent fan-out/fan-in is grounded on the teacher's
// internal/data/facade package, which starts one goroutine per venue
// connection and joins them with a sync.WaitGroup.
type Aggregator struct {
	cache    *cache.Manager
	fetcher  *upstream.Fetcher
	provider upstream.Provider
}

// New builds an Aggregator. provider is the price provider (with its
// fallback chain) used for every quote fetch.
func New(c *cache.Manager, fetcher *upstream.Fetcher, provider upstream.Provider) *Aggregator {
	return &Aggregator{cache: c, fetcher: fetcher, provider: provider}
}

// BuildSnapshot fetches a quote for every symbol concurrently and returns a
// DashboardSnapshot. A symbol whose fetch fails is included with
// Unavailable set rather than aborting the whole request.
func (a *Aggregator) BuildSnapshot(ctx context.Context, symbols []string) (DashboardSnapshot, error) {
	quotes := make([]MarketQuote, len(symbols))

	var wg sync.WaitGroup
	wg.Add(len(symbols))
	for i, symbol := range symbols {
		i, symbol := i, symbol
		go func() {
			defer wg.Done()
			quotes[i] = a.fetchQuote(ctx, symbol)
		}()
	}
	wg.Wait()

	snap := DashboardSnapshot{
		GeneratedAt: time.Now(),
		Quotes:      quotes,
	}
	snap.markPartialIfNeeded()
	return snap, nil
}

func (a *Aggregator) fetchQuote(ctx context.Context, symbol string) MarketQuote {
	key := cache.MarketKey(symbol)
	body, lookup, err := a.cache.GetOrCompute(ctx, key, cache.RealTime, func(ctx context.Context) ([]byte, error) {
		return a.fetcher.Fetch(ctx, a.provider, "/v1/quote/"+symbol)
	})
	if err != nil {
		log.Warn().Str("symbol", symbol).Err(err).Msg("quote fetch failed, marking unavailable")
		return MarketQuote{Symbol: symbol, Unavailable: true, Reason: err.Error(), FetchedAt: time.Now()}
	}

	var raw rawQuote
	if err := json.Unmarshal(body, &raw); err != nil {
		return MarketQuote{Symbol: symbol, Unavailable: true, Reason: fmt.Sprintf("malformed upstream payload: %v", err), FetchedAt: time.Now()}
	}

	return MarketQuote{
		Symbol:    symbol,
		PriceUSD:  raw.PriceUSD,
		Change24h: raw.Change24h,
		VolumeUSD: raw.VolumeUSD,
		Source:    lookupSource(lookup),
		FetchedAt: time.Now(),
	}
}

func lookupSource(l cache.Lookup) string {
	switch l {
	case cache.LookupL1Hit:
		return "cache-l1"
	case cache.LookupL2Hit:
		return "cache-l2"
	default:
		return "upstream"
	}
}
