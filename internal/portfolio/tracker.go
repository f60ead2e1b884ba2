package portfolio

import (
	"sync"

	"risk-systemv1/internal/model"
)

// Tracker maintains accounting state per instrument from a live fill stream.
// Apply calls for the same instrument must come from a single goroutine
// (fill order is not commutative); reads are safe from any goroutine.
type Tracker struct {
	mu    sync.RWMutex
	fills []model.Fill
	state map[string]State // key = "exchange:contract"
}

// NewTracker creates an empty Tracker.
func NewTracker() *Tracker {
	return &Tracker{
		fills: make([]model.Fill, 0, 500),
		state: make(map[string]State),
	}
}

// Apply records a fill and advances its instrument's state. Returns the new
// state and the realized P&L delta of this fill.
func (t *Tracker) Apply(fill model.Fill) (State, float64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.fills = append(t.fills, fill)
	key := fill.Key()
	next, realized := ApplyFill(t.state[key], fill.SignedQty(), fill.Price)
	t.state[key] = next
	return next, realized
}

// Replay rebuilds all state from scratch by applying fills in order.
// Existing state and the fill log are discarded first.
func (t *Tracker) Replay(fills []model.Fill) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.fills = append(t.fills[:0], fills...)
	t.state = make(map[string]State, len(t.state))
	for _, f := range fills {
		key := f.Key()
		next, _ := ApplyFill(t.state[key], f.SignedQty(), f.Price)
		t.state[key] = next
	}
}

// ResetRealized zeroes realized P&L for every instrument at an accounting
// period boundary. Positions and average costs carry across periods; the fill
// log restarts for the new period.
func (t *Tracker) ResetRealized() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.fills = t.fills[:0]
	for key, st := range t.state {
		st.RealizedPnL = 0
		t.state[key] = st
	}
}

// State returns the current state for one instrument key. The zero State is
// returned for an unknown instrument, which is a valid flat position.
func (t *Tracker) State(key string) State {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.state[key]
}

// States returns a snapshot of all instrument states.
func (t *Tracker) States() map[string]State {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[string]State, len(t.state))
	for k, v := range t.state {
		out[k] = v
	}
	return out
}

// Fills returns a snapshot of the applied fill log.
func (t *Tracker) Fills() []model.Fill {
	t.mu.RLock()
	defer t.mu.RUnlock()
	cp := make([]model.Fill, len(t.fills))
	copy(cp, t.fills)
	return cp
}

// Summary aggregates P&L across all instruments. currentPrices maps
// "exchange:contract" to the latest decimal price; instruments without a
// price contribute only realized P&L.
type Summary struct {
	RealizedPnL   float64 `json:"realized_pnl"`
	UnrealizedPnL float64 `json:"unrealized_pnl"`
	TotalPnL      float64 `json:"total_pnl"`
	TotalFills    int     `json:"total_fills"`
	OpenPositions int     `json:"open_positions"`
}

// GetSummary returns the current aggregate P&L view.
func (t *Tracker) GetSummary(currentPrices map[string]float64) Summary {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var s Summary
	s.TotalFills = len(t.fills)
	for key, st := range t.state {
		s.RealizedPnL += st.RealizedPnL
		if st.Position == 0 {
			continue
		}
		s.OpenPositions++
		if price, ok := currentPrices[key]; ok {
			s.UnrealizedPnL += MarkToMarket(st, price)
		}
	}
	s.TotalPnL = s.RealizedPnL + s.UnrealizedPnL
	return s
}
