package stream

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	maxMessage = 4096
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Client is one WebSocket connection registered with a Hub. Reading and
// writing to conn happen exclusively on readPump and writePump
// respectively; nothing else may touch conn.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

// Serve upgrades r to a WebSocket connection, registers it with hub, and
// blocks (running the read and write pumps) until the connection closes.
func Serve(hub *Hub, w http.ResponseWriter, r *http.Request) error {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}

	c := &Client{hub: hub, conn: conn, send: make(chan []byte, clientSendBuffer)}
	hub.Register(c)

	done := make(chan struct{})
	go func() {
		c.writePump()
		close(done)
	}()
	c.readPump()
	<-done
	return nil
}

// readPump dispatches each peer message through the application-level JSON
// protocol (ping/request_update/request_dashboard_data/close) and
// unregisters the client on any read error, which includes the peer
// closing the connection or a pong timeout.
func (c *Client) readPump() {
	defer c.hub.Unregister(c)
	c.conn.SetReadLimit(maxMessage)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		c.handleMessage(data)
	}
}

// handleMessage dispatches a single inbound JSON frame.
func (c *Client) handleMessage(data []byte) {
	var msg inboundMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		c.trySendFrame(outboundFrame{Type: frameError, Error: "malformed message"})
		return
	}
	switch msg.Type {
	case msgPing:
		c.trySendFrame(outboundFrame{Type: framePong})
	case msgRequestUpdate, msgRequestDashboard:
		if payload, ok := c.hub.LastBroadcast(); ok {
			c.trySend(payload)
		}
	case msgClose:
		c.conn.Close()
	default:
		c.trySendFrame(outboundFrame{Type: frameError, Error: "unknown message type: " + msg.Type})
	}
}

func (c *Client) trySendFrame(f outboundFrame) {
	payload, err := json.Marshal(f)
	if err != nil {
		return
	}
	c.trySend(payload)
}

// trySend enqueues payload on the client's send buffer without blocking;
// the buffer filling up means writePump is already behind, and this
// reply can be dropped same as a broadcast would be.
func (c *Client) trySend(payload []byte) {
	select {
	case c.send <- payload:
	default:
	}
}

// writePump delivers broadcast payloads from the hub and periodic pings.
// It owns conn's write side exclusively, so it is the only goroutine
// allowed to call conn.WriteMessage.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				log.Debug().Err(err).Msg("websocket write failed, closing connection")
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
