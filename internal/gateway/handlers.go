package gateway

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin:       func(r *http.Request) bool { return true },
	EnableCompression: true,
}

// SetCORS sets CORS headers for REST endpoints.
func SetCORS(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
}

// RegisterRoutes registers all HTTP routes on the provided mux.
func RegisterRoutes(mux *http.ServeMux, hub *Hub, processStart time.Time) {
	// WebSocket endpoint
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("[ladder_gateway] ws upgrade error: %v", err)
			return
		}
		lastTS := r.URL.Query().Get("last_ts")
		hub.HandleWSRequest(conn, lastTS)
	})

	// REST: latest risk/position snapshot per channel
	mux.HandleFunc("/api/state", func(w http.ResponseWriter, r *http.Request) {
		SetCORS(w)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(hub.GetLatestAll())
	})

	// REST: configured instruments
	mux.HandleFunc("/api/contracts", func(w http.ResponseWriter, r *http.Request) {
		SetCORS(w)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"contracts": hub.Contracts,
		})
	})

	// REST: gap backfill for a fan-out channel
	mux.HandleFunc("/api/missed", func(w http.ResponseWriter, r *http.Request) {
		SetCORS(w)
		w.Header().Set("Content-Type", "application/json")

		channel := r.URL.Query().Get("channel")
		fromSeq, err1 := strconv.ParseInt(r.URL.Query().Get("from_seq"), 10, 64)
		toSeq, err2 := strconv.ParseInt(r.URL.Query().Get("to_seq"), 10, 64)
		if channel == "" || err1 != nil || err2 != nil {
			http.Error(w, `{"error":"channel, from_seq, to_seq required"}`, http.StatusBadRequest)
			return
		}

		envelopes := hub.GetReplayRange(channel, fromSeq, toSeq)
		w.Write([]byte(`{"channel":"` + channel + `","current_seq":`))
		w.Write([]byte(strconv.FormatInt(hub.GetChannelSeq(channel), 10)))
		w.Write([]byte(`,"envelopes":[`))
		for i, env := range envelopes {
			if i > 0 {
				w.Write([]byte{','})
			}
			w.Write(env)
		}
		w.Write([]byte(`]}`))
	})

	// REST: historical risk updates from the Redis stream
	mux.HandleFunc("/api/risk/history", func(w http.ResponseWriter, r *http.Request) {
		serveStreamHistory(w, r, hub, "risk")
	})

	// REST: historical position updates from the Redis stream
	mux.HandleFunc("/api/positions/history", func(w http.ResponseWriter, r *http.Request) {
		serveStreamHistory(w, r, hub, "positions")
	})

	// REST: system metrics snapshot
	mux.HandleFunc("/api/metrics", func(w http.ResponseWriter, r *http.Request) {
		SetCORS(w)
		w.Header().Set("Content-Type", "application/json")
		m := CollectMetrics(processStart)
		m.LatencyP50, m.LatencyP95, m.LatencyP99 = hub.Latency.Percentiles()
		json.NewEncoder(w).Encode(m)
	})

	// Health endpoint
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		SetCORS(w)
		w.Header().Set("Content-Type", "application/json")

		redisOK := hub.Reader.Ping(r.Context()) == nil

		json.NewEncoder(w).Encode(map[string]interface{}{
			"status":     "ok",
			"redis":      redisOK,
			"ws_clients": hub.ClientCount(),
			"uptime_sec": int64(time.Since(processStart).Seconds()),
			"ts":         time.Now().UTC().Format(time.RFC3339Nano),
		})
	})
}

// serveStreamHistory replays the newest N entries of a per-instrument stream
// ("risk:CME:ZN Sep26" or "positions:CME:ZN Sep26").
func serveStreamHistory(w http.ResponseWriter, r *http.Request, hub *Hub, kind string) {
	SetCORS(w)
	w.Header().Set("Content-Type", "application/json")

	contract := r.URL.Query().Get("contract")
	if contract == "" && len(hub.Contracts) > 0 {
		contract = hub.Contracts[0]
	}
	if !strings.Contains(contract, ":") {
		http.Error(w, `{"error":"contract must be exchange:contract"}`, http.StatusBadRequest)
		return
	}

	limit := int64(200)
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.ParseInt(limitStr, 10, 64); err == nil && l > 0 && l <= 1000 {
			limit = l
		}
	}

	beforeID := "+"
	if beforeStr := r.URL.Query().Get("before"); beforeStr != "" {
		if t, err := time.Parse(time.RFC3339Nano, beforeStr); err == nil {
			beforeID = fmt.Sprintf("%d-0", t.UnixMilli()-1)
		} else if t, err := time.Parse(time.RFC3339, beforeStr); err == nil {
			beforeID = fmt.Sprintf("%d-0", t.UnixMilli()-1)
		}
	}

	entries, err := hub.Reader.RecentStream(r.Context(), kind+":"+contract, beforeID, limit)
	if err != nil {
		json.NewEncoder(w).Encode([]interface{}{})
		return
	}

	out := make([]json.RawMessage, 0, len(entries))
	for _, e := range entries {
		out = append(out, json.RawMessage(e.Data))
	}
	json.NewEncoder(w).Encode(out)
}
