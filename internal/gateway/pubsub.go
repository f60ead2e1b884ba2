package gateway

import (
	"context"
	"encoding/json"
	"log"
	"time"

	redisstore "risk-systemv1/internal/store/redis"
)

// PubSubRouter consumes the monitor's published updates and routes them to
// the broadcaster under per-instrument channel names that WS clients can
// filter on ("risk:CME:ZN Sep26", "position:CME:ZN Sep26").
type PubSubRouter struct {
	hub *Hub
}

// NewPubSubRouter creates a PubSubRouter backed by the given Hub.
func NewPubSubRouter(hub *Hub) *PubSubRouter {
	return &PubSubRouter{hub: hub}
}

// subscribedChannels returns the source PubSub channels the router consumes.
func subscribedChannels() []string {
	return []string{"risk.updates", "position.updates"}
}

// Run subscribes and routes messages until ctx is cancelled. The subscription
// is re-established with backoff when Redis drops it.
func (r *PubSubRouter) Run(ctx context.Context) {
	channels := subscribedChannels()
	msgs := make(chan redisstore.Message, 256)

	go func() {
		for {
			err := r.hub.Reader.Subscribe(ctx, channels, msgs)
			if ctx.Err() != nil {
				return
			}
			log.Printf("[ladder_gateway] pubsub subscription lost, retrying: %v", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(2 * time.Second):
			}
		}
	}()

	log.Printf("[ladder_gateway] routing %d PubSub channels", len(channels))
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-msgs:
			r.route(msg)
		}
	}
}

// route derives the per-instrument fan-out channel from the payload and
// hands it to the broadcaster.
func (r *PubSubRouter) route(msg redisstore.Message) {
	var inst struct {
		Exchange string `json:"exchange"`
		Contract string `json:"contract"`
	}
	if err := json.Unmarshal(msg.Data, &inst); err != nil || inst.Contract == "" {
		log.Printf("[ladder_gateway] dropping malformed payload on %s", msg.Channel)
		return
	}

	prefix := "risk"
	if msg.Channel == "position.updates" {
		prefix = "position"
	}
	r.hub.broadcast(prefix+":"+inst.Exchange+":"+inst.Contract, msg.Data)
}
