package model

import (
	"encoding/json"
	"time"
)

// SpotPrice is the latest observed market price for one contract.
type SpotPrice struct {
	Contract string    `json:"contract"`
	Exchange string    `json:"exchange"`
	Price    float64   `json:"price"` // decimal points
	TS       time.Time `json:"ts"`
}

// Key returns a unique key for this price's instrument: "exchange:contract".
func (s *SpotPrice) Key() string {
	return s.Exchange + ":" + s.Contract
}

// JSON returns the JSON-encoded price (ignoring errors for hot-path usage).
func (s *SpotPrice) JSON() []byte {
	b, _ := json.Marshal(s)
	return b
}
