package upstream

import "errors"

// ErrAllProvidersExhausted is returned by Fetch when the provider's chain
// has no endpoints. When every endpoint in a non-empty chain fails, Fetch
// returns the last endpoint's error instead.
var ErrAllProvidersExhausted = errors.New("upstream: all providers exhausted")

// ErrProviderOpen is the error for an endpoint whose circuit breaker is
// open. Fetch moves on to the next endpoint in the chain and returns this
// error only when the open endpoint is the last one tried.
var ErrProviderOpen = errors.New("upstream: provider circuit open")
