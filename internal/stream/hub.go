// Package stream broadcasts cache and dashboard state to WebSocket peers.
// The read-pump/write-pump split per connection, joined only by channels,
// is a deliberate departure from a shared-mutex-over-socket design: two
// goroutines never write to the same net.Conn concurrently, which is what
// gorilla/websocket itself requires and what a single mutex guarding
// concurrent writers is prone to getting wrong under backpressure.
package stream

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sawpanic/marketcache/internal/cache"
)

const (
	broadcastBuffer = 16
	clientSendBuffer = 16
)

// Hub fans a broadcast payload out to every registered client without ever
// touching a client's socket directly; each client owns its own write pump.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	latest  []byte

	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte

	stopOnce sync.Once
	stopCh   chan struct{}
}

// NewHub builds a Hub and starts its run loop.
func NewHub() *Hub {
	h := &Hub{
		clients:    make(map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan []byte, broadcastBuffer),
		stopCh:     make(chan struct{}),
	}
	go h.run()
	return h
}

func (h *Hub) run() {
	for {
		select {
		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = struct{}{}
			h.mu.Unlock()
		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			h.mu.Unlock()
		case payload := <-h.broadcast:
			h.mu.RLock()
			for c := range h.clients {
				select {
				case c.send <- payload:
				default:
					// Client's send buffer is full: drop its oldest queued
					// frame to make room rather than block the whole
					// broadcast.
					select {
					case <-c.send:
					default:
					}
					select {
					case c.send <- payload:
					default:
					}
				}
			}
			h.mu.RUnlock()
		case <-h.stopCh:
			return
		}
	}
}

// Register adds a client to the broadcast set.
func (h *Hub) Register(c *Client) { h.register <- c }

// Unregister removes a client from the broadcast set, if still present.
func (h *Hub) Unregister(c *Client) { h.unregister <- c }

// BroadcastJSON marshals v, remembers it as the last known frame (so a peer
// asking for request_update gets an immediate answer instead of waiting for
// the next cadence tick), and enqueues it for every connected client.
func (h *Hub) BroadcastJSON(v interface{}) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	h.mu.Lock()
	h.latest = payload
	h.mu.Unlock()
	select {
	case h.broadcast <- payload:
	case <-time.After(time.Second):
		log.Warn().Msg("broadcast channel full, dropping update")
	}
	return nil
}

// LastBroadcast returns the most recently broadcast frame, if any.
func (h *Hub) LastBroadcast() ([]byte, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.latest == nil {
		return nil, false
	}
	return h.latest, true
}

// StartCachePump runs until ctx is done, reading the latest_market_data
// cache entry on the given cadence and broadcasting it to every connected
// client as a dashboard_data frame. This is the only production caller of
// BroadcastJSON; everything else flows through it.
func (h *Hub) StartCachePump(ctx context.Context, cm *cache.Manager, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				body, lookup := cm.Get(ctx, cache.LatestMarketDataKey())
				if lookup == cache.LookupMiss {
					continue
				}
				frame := outboundFrame{Type: FrameDashboardData, Data: json.RawMessage(body)}
				if err := h.BroadcastJSON(frame); err != nil {
					log.Warn().Err(err).Msg("dashboard_data broadcast failed")
				}
			}
		}
	}()
}

// ClientCount returns the number of currently registered clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close stops the hub's run loop. Safe to call more than once.
func (h *Hub) Close() {
	h.stopOnce.Do(func() { close(h.stopCh) })
}
