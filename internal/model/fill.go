package model

import (
	"encoding/json"
	"time"
)

// Fill side constants, matching the FIX convention used by the execution
// gateway (1 = buy, 2 = sell).
const (
	SideBuy  = "BUY"
	SideSell = "SELL"
)

// Fill represents one executed trade leg as reported by the gateway.
type Fill struct {
	RowID    int64           `json:"row_id"` // local storage sequence, 0 until persisted
	TS       time.Time       `json:"ts"`     // execution timestamp (UTC)
	Account  string          `json:"account"`
	Exchange string          `json:"exchange"`
	Contract string          `json:"contract"` // e.g. "ZN Sep26"
	Side     string          `json:"side"`     // BUY or SELL
	Qty      int64           `json:"qty"`      // always positive
	Price    float64         `json:"price"`    // decimal points
	OrderID  string          `json:"order_id"`
	ExecID   string          `json:"exec_id"` // gateway execution id, dedup key
	User     string          `json:"user"`
	Raw      json.RawMessage `json:"-"` // original gateway payload, kept for audit
}

// Key returns a unique key for this fill's instrument: "exchange:contract".
func (f *Fill) Key() string {
	return f.Exchange + ":" + f.Contract
}

// SignedQty returns the position delta: +Qty for a buy, -Qty for a sell.
func (f *Fill) SignedQty() int64 {
	if f.Side == SideSell {
		return -f.Qty
	}
	return f.Qty
}

// JSON returns the JSON-encoded fill (ignoring errors for hot-path usage).
func (f *Fill) JSON() []byte {
	b, _ := json.Marshal(f)
	return b
}
