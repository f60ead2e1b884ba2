package gateway

import (
	"encoding/json"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Client represents a single WebSocket peer.
type Client struct {
	conn *websocket.Conn
	send chan []byte
	hub  *Hub

	// Per-client instrument subscriptions: key = "exchange:contract".
	// Empty map means receive everything.
	subMu sync.RWMutex
	subs  map[string]bool
}

// subscribeMsg is the client-to-server subscription control message.
type subscribeMsg struct {
	Type      string   `json:"type"` // SUBSCRIBE or UNSUBSCRIBE
	Contracts []string `json:"contracts"`
	ReqID     string   `json:"req_id,omitempty"`
}

func (c *Client) sendInitialState(lastTS string) {
	c.hub.mu.RLock()
	defer c.hub.mu.RUnlock()

	var cutoff time.Time
	if lastTS != "" {
		if parsed, err := time.Parse(time.RFC3339Nano, lastTS); err == nil {
			cutoff = parsed
		}
	}

	for channel, entry := range c.hub.latest {
		if !cutoff.IsZero() && !entry.TS.After(cutoff) {
			continue
		}

		envelope, _ := json.Marshal(map[string]interface{}{
			"channel": channel,
			"data":    json.RawMessage(entry.Data),
			"ts":      entry.TS.Format(time.RFC3339Nano),
			"initial": true,
		})
		select {
		case c.send <- envelope:
		default:
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))

			// Write coalescing: batch queued messages into a single frame
			// with newline separators
			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(msg)

			n := len(c.send)
			for i := 0; i < n; i++ {
				w.Write([]byte{'\n'})
				w.Write(<-c.send)
			}

			if err := w.Close(); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) readPump() {
	defer func() {
		c.hub.RemoveClient(c)
		c.conn.Close()
		log.Println("[ladder_gateway] ws client disconnected")
	}()

	c.conn.SetReadLimit(4096)
	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			break
		}

		var base struct {
			Type string `json:"type"`
			Ping int64  `json:"ping"`
		}
		if json.Unmarshal(msg, &base) != nil {
			continue
		}

		switch base.Type {
		case "SUBSCRIBE", "UNSUBSCRIBE":
			var sub subscribeMsg
			if err := json.Unmarshal(msg, &sub); err != nil {
				continue
			}
			c.handleSubscribe(sub)

		default:
			if base.Ping > 0 {
				pong, _ := json.Marshal(map[string]interface{}{
					"type":      "pong",
					"ping":      base.Ping,
					"server_ts": time.Now().UnixMilli(),
				})
				select {
				case c.send <- pong:
				default:
				}
			}
		}
	}
}

// handleSubscribe updates the client's instrument filter.
func (c *Client) handleSubscribe(msg subscribeMsg) {
	c.subMu.Lock()
	for _, key := range msg.Contracts {
		if msg.Type == "SUBSCRIBE" {
			c.subs[key] = true
		} else {
			delete(c.subs, key)
		}
	}
	n := len(c.subs)
	c.subMu.Unlock()

	log.Printf("[ladder_gateway] client %s %v (%d active)",
		strings.ToLower(msg.Type), msg.Contracts, n)
}

// matchesChannel reports whether this client should receive a message on the
// given fan-out channel ("risk:CME:ZN Sep26", "position:CME:ZN Sep26").
func (c *Client) matchesChannel(channel string) bool {
	c.subMu.RLock()
	defer c.subMu.RUnlock()

	if len(c.subs) == 0 {
		return true
	}

	// Strip the "risk:" / "position:" prefix to get the instrument key.
	idx := strings.Index(channel, ":")
	if idx < 0 {
		return true // non-data channel, always deliver
	}
	return c.subs[channel[idx+1:]]
}
