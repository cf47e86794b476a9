package upstream

import "time"

// rateLimitSchedule is the backoff ladder used after a 429 response: the
// provider asked us to slow down, so we wait longer than for a plain
// transport hiccup.
var rateLimitSchedule = []time.Duration{30 * time.Second, 60 * time.Second, 120 * time.Second}

// transientSchedule is the backoff ladder for connection resets, timeouts,
// and 5xx responses.
var transientSchedule = []time.Duration{10 * time.Second, 20 * time.Second, 40 * time.Second}

// Endpoint describes one callable upstream location. Fetcher does not read
// the Fallback field; fallback order comes only from the endpoint's position
// in Provider.Chain.
type Endpoint struct {
	Name     string
	BaseURL  string
	Fallback *Endpoint
}

// Provider groups the endpoints for a single logical data source (for
// example "prices" or "orderbook"), tried in order until one succeeds or
// the chain is exhausted.
type Provider struct {
	Name  string
	Chain []Endpoint
}

// chainNames returns the endpoint names in this provider's fallback order.
// Nothing in the package calls it.
func (p Provider) chainNames() []string {
	names := make([]string, len(p.Chain))
	for i, e := range p.Chain {
		names[i] = e.Name
	}
	return names
}
