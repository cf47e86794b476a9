// Package upstream fetches market data from external providers with retry,
// exponential backoff, per-endpoint circuit breaking, and provider fallback
// chains. Retry/backoff mechanics are grounded on the teacher's
// internal/infrastructure/httpclient/pool.go; the fallback-chain walk is
// grounded on internal/infrastructure/providers/circuitbreakers.go's
// executeFallbackChain.
package upstream

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sawpanic/marketcache/internal/circuit"
	"github.com/sawpanic/marketcache/internal/ratelimit"
)

// Fetcher executes provider fallback chains on behalf of the aggregator.
type Fetcher struct {
	client   *http.Client
	breakers *circuit.Manager
	limiter  *ratelimit.Limiter
}

// New builds a Fetcher. timeout bounds a single HTTP round trip, not the
// overall retry budget.
func New(timeout time.Duration, breakers *circuit.Manager, limiter *ratelimit.Limiter) *Fetcher {
	return &Fetcher{
		client:   &http.Client{Timeout: timeout},
		breakers: breakers,
		limiter:  limiter,
	}
}

// Fetch walks provider's endpoint chain in order, retrying each endpoint on
// its own backoff schedule before falling through to the next, and returns
// the first successful response body.
func (f *Fetcher) Fetch(ctx context.Context, provider Provider, path string) ([]byte, error) {
	var lastErr error
	for i := range provider.Chain {
		ep := provider.Chain[i]
		body, err := f.fetchEndpoint(ctx, ep, path)
		if err == nil {
			return body, nil
		}
		lastErr = err
		log.Warn().
			Str("provider", provider.Name).
			Str("endpoint", ep.Name).
			Err(err).
			Msg("endpoint failed, advancing fallback chain")
	}
	if lastErr != nil {
		return nil, lastErr
	}
	return nil, ErrAllProvidersExhausted
}

func (f *Fetcher) fetchEndpoint(ctx context.Context, ep Endpoint, path string) ([]byte, error) {
	breaker := f.breakers.Get(ep.Name)
	if breaker.State() == circuit.StateOpen {
		return nil, ErrProviderOpen
	}

	f.limiter.Allow(ep.Name) // stats-only: result intentionally ignored, never blocks the call

	var body []byte
	attempt := 0
	for {
		class, callErr := breaker.Call(ctx, func(ctx context.Context) (int, error) {
			s, b, err := f.doRequest(ctx, ep.BaseURL+path)
			body = b
			return s, err
		})
		if callErr == nil {
			return body, nil
		}

		schedule := scheduleFor(class)
		if schedule == nil || attempt >= len(schedule) {
			return nil, callErr
		}
		delay := schedule[attempt]
		attempt++

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}

		if breaker.State() == circuit.StateOpen {
			return nil, ErrProviderOpen
		}
	}
}

func (f *Fetcher) doRequest(ctx context.Context, url string) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, nil, err
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, err
	}
	return resp.StatusCode, data, nil
}

func scheduleFor(class circuit.Class) []time.Duration {
	switch class {
	case circuit.ClassRateLimited:
		return rateLimitSchedule
	case circuit.ClassTransient:
		return transientSchedule
	default:
		return nil
	}
}
