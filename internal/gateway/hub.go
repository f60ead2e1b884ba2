package gateway

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"risk-systemv1/internal/markethours"
	redisstore "risk-systemv1/internal/store/redis"

	"github.com/gorilla/websocket"
)

// Hub manages WebSocket clients and Redis PubSub fan-out for the ladder UI.
// It delegates to focused components:
//   - PubSubRouter: Redis subscription + instrument channel derivation
//   - Broadcaster: envelope construction + client-filtered fan-out
type Hub struct {
	Reader    *redisstore.Reader
	Contracts []string // instrument keys, e.g. "CME:ZN Sep26"

	mu      sync.RWMutex
	clients map[*Client]bool
	latest  map[string]latestEntry
	seq     int64

	// Per-channel monotonic sequence numbers for gap detection
	channelSeqs map[string]int64

	// Per-channel replay buffers for gap backfill
	replayBufs map[string]*ReplayBuffer

	// End-to-end latency from monitor publish to WS fan-out
	Latency *LatencyTracker

	Router      *PubSubRouter
	Broadcaster *Broadcaster
}

type latestEntry struct {
	Data json.RawMessage
	TS   time.Time
	Seq  int64 // per-channel seq for gap detection
}

// NewHub creates a Hub serving the given instrument keys.
func NewHub(reader *redisstore.Reader, contracts []string) *Hub {
	h := &Hub{
		Reader:      reader,
		Contracts:   contracts,
		clients:     make(map[*Client]bool),
		latest:      make(map[string]latestEntry),
		channelSeqs: make(map[string]int64),
		replayBufs:  make(map[string]*ReplayBuffer),
		Latency:     NewLatencyTracker(10000),
	}
	h.Router = NewPubSubRouter(h)
	h.Broadcaster = NewBroadcaster(h)
	return h
}

// Run starts the PubSub subscription loop. Blocks until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	h.Router.Run(ctx)
}

// broadcast delegates to Broadcaster for fan-out.
func (h *Hub) broadcast(channel string, data []byte) {
	h.Broadcaster.Broadcast(channel, data)
}

// HandleWSRequest registers an upgraded WebSocket connection with the hub.
func (h *Hub) HandleWSRequest(conn *websocket.Conn, lastTS string) {
	client := &Client{
		conn: conn,
		send: make(chan []byte, 256),
		hub:  h,
		subs: make(map[string]bool),
	}

	conn.EnableWriteCompression(true)

	h.mu.Lock()
	h.clients[client] = true
	count := len(h.clients)
	h.mu.Unlock()

	log.Printf("[ladder_gateway] ws client connected (%d total)", count)

	go client.sendInitialState(lastTS)
	go client.writePump()
	go client.readPump()
}

// RemoveClient removes a client from the hub.
func (h *Hub) RemoveClient(c *Client) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
	close(c.send)
}

// GetLatestAll returns a snapshot of the latest payload per channel.
func (h *Hub) GetLatestAll() map[string]json.RawMessage {
	h.mu.RLock()
	defer h.mu.RUnlock()
	cp := make(map[string]json.RawMessage, len(h.latest))
	for k, v := range h.latest {
		cp[k] = v.Data
	}
	return cp
}

// GetReplayRange returns buffered envelopes for a channel in [fromSeq, toSeq].
// Used by the /api/missed REST endpoint for client gap backfill.
func (h *Hub) GetReplayRange(channel string, fromSeq, toSeq int64) [][]byte {
	h.mu.RLock()
	rb, exists := h.replayBufs[channel]
	h.mu.RUnlock()
	if !exists {
		return nil
	}
	entries := rb.Range(fromSeq, toSeq)
	result := make([][]byte, len(entries))
	for i, e := range entries {
		result[i] = e.Data
	}
	return result
}

// GetChannelSeq returns the current sequence number for a channel.
func (h *Hub) GetChannelSeq(channel string) int64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.channelSeqs[channel]
}

// ClientCount returns the number of connected WS clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// StartStatusBroadcast sends system metrics and market session state to all
// WS clients every 2s.
func (h *Hub) StartStatusBroadcast(ctx context.Context, start time.Time) {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			now := time.Now()
			m := CollectMetrics(start)
			if h.Latency != nil {
				m.LatencyP50, m.LatencyP95, m.LatencyP99 = h.Latency.Percentiles()
			}
			envelope, _ := json.Marshal(map[string]interface{}{
				"type":         "status",
				"metrics":      m,
				"marketOpen":   markethours.IsMarketOpen(now),
				"marketStatus": markethours.StatusString(now),
			})
			h.mu.RLock()
			for client := range h.clients {
				select {
				case client.send <- envelope:
				default:
				}
			}
			h.mu.RUnlock()
		}
	}
}
