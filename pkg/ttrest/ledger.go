package ttrest

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/url"
	"strconv"
	"strings"
	"time"

	"risk-systemv1/internal/model"
	"risk-systemv1/internal/pricefmt"
)

// InstrumentRef maps a TT instrument id to the exchange/contract names the
// rest of the system keys on.
type InstrumentRef struct {
	Exchange string
	Contract string
}

// ttFill is a single fill record as returned by ttledger. Numeric fields
// arrive as either JSON numbers or strings depending on the gateway version,
// so the flexible ones use json.Number.
type ttFill struct {
	TimeStamp    json.Number `json:"timeStamp"`
	TransactTime json.Number `json:"transactTime"`
	InstrumentID json.Number `json:"instrumentId"`
	MarketID     json.Number `json:"marketId"`
	Side         json.Number `json:"side"`
	LastQty      json.Number `json:"lastQty"`
	// LastPx can be a JSON number, a quoted decimal, or a ladder-notation
	// string ("111'085") depending on the gateway version, so it is decoded
	// separately by decodePrice.
	LastPx json.RawMessage `json:"lastPx"`
	OrderID      string      `json:"orderId"`
	AccountID    string      `json:"accountId"`
	ExecID       string      `json:"execID"`
	OrdStatus    json.Number `json:"ordStatus"`
	UserName     string      `json:"userName"`
}

type fillsResponse struct {
	Fills []json.RawMessage `json:"fills"`
}

// SetInstruments installs the instrument id to exchange/contract mapping used
// when decoding fills. Fills for unmapped instruments keep the raw id as the
// contract name so they are never silently dropped.
func (c *Client) SetInstruments(m map[int64]InstrumentRef) {
	c.instruments = m
}

// Fills returns fills executed after minTS (unix millis) for the configured
// account, oldest first. It satisfies the monitor's fill source interface.
func (c *Client) Fills(ctx context.Context, minTS int64) ([]model.Fill, error) {
	params := url.Values{}
	if minTS > 0 {
		params.Set("minTimestamp", strconv.FormatInt(minTS, 10))
	}

	raw, err := c.get(ctx, "ttledger", "/fills", params)
	if err != nil {
		return nil, err
	}

	// The endpoint returns {"fills":[...]} normally but a bare list on some
	// gateway versions.
	var entries []json.RawMessage
	if strings.HasPrefix(strings.TrimSpace(string(raw)), "[") {
		if err := decodeJSON(raw, &entries, "fills"); err != nil {
			return nil, err
		}
	} else {
		var resp fillsResponse
		if err := decodeJSON(raw, &resp, "fills"); err != nil {
			return nil, err
		}
		entries = resp.Fills
	}

	fills := make([]model.Fill, 0, len(entries))
	for _, entry := range entries {
		var tf ttFill
		if err := decodeJSON(entry, &tf, "fill record"); err != nil {
			return nil, err
		}
		f, ok := c.convertFill(&tf, entry)
		if !ok {
			continue
		}
		fills = append(fills, f)
	}
	return fills, nil
}

// convertFill maps a ttledger record to the internal fill model. Records for
// other accounts (when an account filter is configured), records with no
// execution id, and records whose price cannot be decoded are skipped; one
// bad record must not poison the rest of the batch.
func (c *Client) convertFill(tf *ttFill, raw json.RawMessage) (model.Fill, bool) {
	if tf.ExecID == "" {
		return model.Fill{}, false
	}
	if c.cfg.Account != "" && tf.AccountID != c.cfg.Account {
		return model.Fill{}, false
	}

	side := model.SideBuy
	if s, _ := tf.Side.Int64(); s == 2 {
		side = model.SideSell
	}

	qty, _ := tf.LastQty.Int64()
	px, err := decodePrice(tf.LastPx)
	if err != nil {
		log.Printf("[ttrest] skipping fill %s: %v", tf.ExecID, err)
		return model.Fill{}, false
	}

	exchange, contract := c.resolveInstrument(tf)

	return model.Fill{
		TS:       decodeTimestamp(tf.TimeStamp),
		Account:  tf.AccountID,
		Exchange: exchange,
		Contract: contract,
		Side:     side,
		Qty:      qty,
		Price:    px,
		OrderID:  tf.OrderID,
		ExecID:   tf.ExecID,
		User:     tf.UserName,
		Raw:      raw,
	}, true
}

// decodePrice decodes a lastPx field: a plain JSON number is decimal points,
// a quoted value is tried first as a decimal and then as ladder notation
// ("111'085" = 111 + 8.5/32).
func decodePrice(raw json.RawMessage) (float64, error) {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return 0, fmt.Errorf("missing lastPx")
	}
	if s[0] != '"' {
		return strconv.ParseFloat(s, 64)
	}

	var str string
	if err := json.Unmarshal(raw, &str); err != nil {
		return 0, fmt.Errorf("bad lastPx %s: %w", s, err)
	}
	str = strings.TrimSpace(str)
	if v, err := strconv.ParseFloat(str, 64); err == nil {
		return v, nil
	}
	p, err := pricefmt.DecodeLadder(str)
	if err != nil {
		return 0, err
	}
	return p.Decimal(), nil
}

func (c *Client) resolveInstrument(tf *ttFill) (exchange, contract string) {
	id, _ := tf.InstrumentID.Int64()
	if ref, ok := c.instruments[id]; ok {
		return ref.Exchange, ref.Contract
	}
	return "TT", tf.InstrumentID.String()
}

// decodeTimestamp handles the two epoch encodings the gateway emits:
// nanoseconds (current versions) and milliseconds (legacy).
func decodeTimestamp(n json.Number) time.Time {
	v, err := n.Int64()
	if err != nil || v == 0 {
		return time.Now().UTC()
	}
	if v > 1e15 {
		return time.Unix(0, v).UTC()
	}
	return time.UnixMilli(v).UTC()
}
