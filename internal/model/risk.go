package model

import (
	"encoding/json"
	"time"
)

// CurveLevel is one rung of a survival curve in wire form.
type CurveLevel struct {
	Level    string  `json:"level"` // tick notation, e.g. "111'08"
	LevelDec float64 `json:"level_dec"`
	Risk     float64 `json:"risk"` // dollars per 16th once the level trades
}

// RiskUpdate is the published output of one risk computation cycle.
type RiskUpdate struct {
	Account             string       `json:"account"`
	Exchange            string       `json:"exchange"`
	Contract            string       `json:"contract"`
	TS                  time.Time    `json:"ts"`
	Spot                float64      `json:"spot"` // decimal points
	SpotTick            string       `json:"spot_tick"`
	Position            int64        `json:"position"`
	AvgCost             float64      `json:"avg_cost"`
	RealizedPnL         float64      `json:"realized_pnl"`   // dollars
	UnrealizedPnL       float64      `json:"unrealized_pnl"` // dollars
	Risk                float64      `json:"risk"`           // dollars per 16th
	StopLoss            float64      `json:"stop_loss"`
	Curve               []CurveLevel `json:"curve,omitempty"`
	Extreme             string       `json:"extreme"`
	ExtremeDec          float64      `json:"extreme_dec"`
	SixteenthsToExtreme float64      `json:"sixteenths_to_extreme"`
}

// Key returns a unique key for this update's instrument: "exchange:contract".
func (r *RiskUpdate) Key() string {
	return r.Exchange + ":" + r.Contract
}

// StreamKey returns the Redis stream this update is appended to.
func (r *RiskUpdate) StreamKey() string {
	return "risk:" + r.Exchange + ":" + r.Contract
}

// LatestKey returns the Redis key holding the latest update snapshot.
func (r *RiskUpdate) LatestKey() string {
	return "risk:latest:" + r.Exchange + ":" + r.Contract
}

// PubSubChannel returns the channel live subscribers listen on.
func (r *RiskUpdate) PubSubChannel() string {
	return "risk.updates"
}

// JSON returns the JSON-encoded update (ignoring errors for hot-path usage).
func (r *RiskUpdate) JSON() []byte {
	b, _ := json.Marshal(r)
	return b
}

// PositionUpdate is published whenever a fill changes the tracked position.
type PositionUpdate struct {
	Account     string    `json:"account"`
	Exchange    string    `json:"exchange"`
	Contract    string    `json:"contract"`
	TS          time.Time `json:"ts"`
	Position    int64     `json:"position"`
	AvgCost     float64   `json:"avg_cost"`
	RealizedPnL float64   `json:"realized_pnl"` // dollars
	LastFillID  string    `json:"last_fill_id"`
}

// Key returns a unique key for this update's instrument: "exchange:contract".
func (p *PositionUpdate) Key() string {
	return p.Exchange + ":" + p.Contract
}

// StreamKey returns the Redis stream this update is appended to.
func (p *PositionUpdate) StreamKey() string {
	return "positions:" + p.Exchange + ":" + p.Contract
}

// PubSubChannel returns the channel live subscribers listen on.
func (p *PositionUpdate) PubSubChannel() string {
	return "position.updates"
}

// JSON returns the JSON-encoded update (ignoring errors for hot-path usage).
func (p *PositionUpdate) JSON() []byte {
	b, _ := json.Marshal(p)
	return b
}
