// Package cache implements the two-tier (in-process + Redis) cache that
// backs every dashboard read in marketcache.
package cache

import (
	"fmt"
	"strings"
)

// Key constructors centralize the naming scheme so every caller produces
// keys the invalidation sweep can pattern-match against.
const (
	prefixMarket    = "market"
	prefixReport    = "report"
	prefixIndicator = "indicator"

	// dashboardSummaryKey is the single cache entry backing the
	// all-symbols dashboard summary view.
	dashboardSummaryKey = "dashboard:summary"

	// latestMarketDataKey is the C7 "latest snapshot" entry every
	// dashboard read round-trips through before falling back to the
	// aggregator.
	latestMarketDataKey = "latest_market_data"

	// cryptoLatestReportKey points at the most recently rendered report.
	cryptoLatestReportKey = "crypto_latest_report"
)

// DashboardSummaryKey returns the cache key for the rendered dashboard
// summary.
func DashboardSummaryKey() string { return dashboardSummaryKey }

// LatestMarketDataKey returns the cache key C7 reads before recomputing a
// dashboard snapshot, and writes the freshly computed snapshot back under.
func LatestMarketDataKey() string { return latestMarketDataKey }

// CryptoLatestReportKey returns the cache key for the most recently
// rendered crypto report.
func CryptoLatestReportKey() string { return cryptoLatestReportKey }

// CryptoReportKey returns the cache key naming a specific rendered report
// by ID, as stored in the artifact cache.
func CryptoReportKey(id int64) string {
	return fmt.Sprintf("crypto_report:%d", id)
}

// MarketKey returns the cache key for raw market data of a single symbol.
func MarketKey(symbol string) string {
	return fmt.Sprintf("%s:%s", prefixMarket, strings.ToLower(strings.TrimSpace(symbol)))
}

// ReportKey returns the cache key for a composed report over an interval.
func ReportKey(symbol, interval string) string {
	return fmt.Sprintf("%s:%s:%s", prefixReport, strings.ToLower(strings.TrimSpace(symbol)), strings.ToLower(strings.TrimSpace(interval)))
}

// IndicatorKey returns the cache key for a derived indicator value.
func IndicatorKey(symbol, name string, period int) string {
	return fmt.Sprintf("%s:%s:%s:%d", prefixIndicator, strings.ToLower(strings.TrimSpace(symbol)), strings.ToLower(strings.TrimSpace(name)), period)
}

// MarketPattern returns the glob pattern matching every market key, used by
// invalidate-all-markets sweeps.
func MarketPattern() string {
	return prefixMarket + ":*"
}
