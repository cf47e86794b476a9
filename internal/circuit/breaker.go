// Package circuit guards upstream market-data providers with a per-endpoint
// circuit breaker. It wraps github.com/sony/gobreaker (the teacher's own
// choice for this, see infra/breakers/breakers.go and
// internal/infrastructure/providers/circuitbreakers.go in the reference
// corpus) with a trip condition that tells rate-limit exhaustion apart from
// transport failure: three consecutive 429s trips the breaker just as fast
// as five consecutive connection/timeout errors, instead of lumping both
// into one generic failure tally.
package circuit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
)

// Class classifies the outcome of an upstream call for trip-counting
// purposes.
type Class int

const (
	ClassSuccess Class = iota
	ClassRateLimited
	ClassTransient
	ClassPermanent
)

const (
	rateLimitTripThreshold = 3
	transientTripThreshold = 5
)

// State mirrors gobreaker's three states under names that don't leak the
// dependency into callers.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "closed"
	}
}

func fromGobreaker(s gobreaker.State) State {
	switch s {
	case gobreaker.StateOpen:
		return StateOpen
	case gobreaker.StateHalfOpen:
		return StateHalfOpen
	default:
		return StateClosed
	}
}

// Breaker is a single endpoint's circuit breaker.
type Breaker struct {
	name string
	cb   *gobreaker.CircuitBreaker

	mu                   sync.Mutex
	consecutive429       int
	consecutiveTransient int
	openSince            time.Time
	openWindow           time.Duration
}

// NewBreaker builds a breaker for the named endpoint. openWindow is how long
// the breaker stays Open before allowing a single half-open trial request.
func NewBreaker(name string, openWindow time.Duration) *Breaker {
	b := &Breaker{name: name, openWindow: openWindow}
	b.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    name,
		Timeout: openWindow,
		ReadyToTrip: func(_ gobreaker.Counts) bool {
			b.mu.Lock()
			defer b.mu.Unlock()
			return b.consecutive429 >= rateLimitTripThreshold || b.consecutiveTransient >= transientTripThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			b.mu.Lock()
			if to == gobreaker.StateOpen {
				b.openSince = time.Now()
			}
			b.mu.Unlock()
			log.Warn().
				Str("endpoint", name).
				Str("from", fromGobreaker(from).String()).
				Str("to", fromGobreaker(to).String()).
				Msg("circuit breaker state changed")
		},
	})
	return b
}

func (b *Breaker) recordClass(class Class) {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch class {
	case ClassRateLimited:
		b.consecutive429++
		b.consecutiveTransient = 0
	case ClassTransient:
		b.consecutiveTransient++
		b.consecutive429 = 0
	case ClassSuccess:
		b.consecutive429 = 0
		b.consecutiveTransient = 0
	case ClassPermanent:
		// Client-side (4xx other than 429) failures don't indicate the
		// upstream is unhealthy; leave the trip counters untouched.
	}
}

// Classify turns a call outcome into a trip-relevant class. callErr is the
// transport-level error (nil on a completed HTTP round trip); status is the
// HTTP status code of a completed round trip (ignored if callErr is set).
func Classify(status int, callErr error) Class {
	if callErr != nil {
		return ClassTransient
	}
	switch {
	case status == 429:
		return ClassRateLimited
	case status >= 500:
		return ClassTransient
	case status >= 400:
		return ClassPermanent
	default:
		return ClassSuccess
	}
}

// Call runs fn under the breaker. fn returns the HTTP status code it
// observed (0 if the call never completed) and the transport error, if any.
// Call itself returns gobreaker's rejection error (gobreaker.ErrOpenState
// when the breaker is open) without invoking fn. Otherwise, for any
// non-success class it returns an error naming the class and status that
// wraps fn's transport error, or an "http status N" error when the round
// trip completed; for a success it returns nil.
func (b *Breaker) Call(ctx context.Context, fn func(ctx context.Context) (status int, err error)) (Class, error) {
	var class Class
	_, err := b.cb.Execute(func() (interface{}, error) {
		status, callErr := fn(ctx)
		class = Classify(status, callErr)
		b.recordClass(class)
		if class != ClassSuccess {
			return nil, fmt.Errorf("upstream %s: status=%d: %w", classLabel(class), status, orNilErr(callErr, status))
		}
		return nil, nil
	})
	if err != nil && errors.Is(err, gobreaker.ErrOpenState) {
		return ClassTransient, err
	}
	return class, err
}

func classLabel(c Class) string {
	switch c {
	case ClassRateLimited:
		return "rate_limited"
	case ClassTransient:
		return "transient_failure"
	case ClassPermanent:
		return "permanent_failure"
	default:
		return "success"
	}
}

func orNilErr(err error, status int) error {
	if err != nil {
		return err
	}
	return fmt.Errorf("http status %d", status)
}

// State returns the breaker's current state.
func (b *Breaker) State() State {
	return fromGobreaker(b.cb.State())
}

// OpenUntil returns when an Open breaker will allow a half-open trial, or
// the zero time if the breaker is not currently Open.
func (b *Breaker) OpenUntil() time.Time {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.State() != StateOpen || b.openSince.IsZero() {
		return time.Time{}
	}
	return b.openSince.Add(b.openWindow)
}

// Manager owns one Breaker per upstream endpoint, created on first use.
type Manager struct {
	mu         sync.Mutex
	breakers   map[string]*Breaker
	openWindow time.Duration
}

// NewManager builds a Manager whose breakers open for openWindow once tripped.
func NewManager(openWindow time.Duration) *Manager {
	return &Manager{breakers: make(map[string]*Breaker), openWindow: openWindow}
}

// Get returns the breaker for name, creating it on first access.
func (m *Manager) Get(name string) *Breaker {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.breakers[name]
	if !ok {
		b = NewBreaker(name, m.openWindow)
		m.breakers[name] = b
	}
	return b
}

// Snapshot reports the state of every breaker created so far, for the
// health and metrics surfaces.
func (m *Manager) Snapshot() map[string]State {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]State, len(m.breakers))
	for name, b := range m.breakers {
		out[name] = b.State()
	}
	return out
}
