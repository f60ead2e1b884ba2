// Package portfolio turns an ordered fill stream into running position,
// average cost, and realized P&L.
//
// The transition function is pure: the state of a position is fully
// re-derivable by replaying its fills in order, which is also the recovery
// strategy after a restart.
package portfolio

// State is a single contract's accounting state. Prices are decimal points;
// P&L here is in points per contract, converted to dollars by the caller.
type State struct {
	Position    int64   `json:"position"` // positive = long, negative = short
	AvgCost     float64 `json:"avg_cost"` // meaningful only when Position != 0
	RealizedPnL float64 `json:"realized_pnl"`
}

// ApplyFill applies one signed fill (+qty = buy, -qty = sell) at the given
// price and returns the new state plus the realized P&L delta of this fill.
// The input state is not mutated.
func ApplyFill(s State, signedQty int64, price float64) (State, float64) {
	if signedQty == 0 {
		return s, 0
	}

	switch {
	case s.Position == 0:
		// Flat to open.
		s.Position = signedQty
		s.AvgCost = price
		return s, 0

	case sameSign(s.Position, signedQty):
		// Adding: weighted-average the cost basis.
		cost := s.AvgCost*float64(s.Position) + price*float64(signedQty)
		s.Position += signedQty
		s.AvgCost = cost / float64(s.Position)
		return s, 0

	case abs64(signedQty) <= abs64(s.Position):
		// Partial or exact close. The closed quantity is -signedQty in the
		// position's own sign, so the realized leg is -signedQty*(price-avg).
		realized := -float64(signedQty) * (price - s.AvgCost)
		s.Position += signedQty
		s.RealizedPnL += realized
		if s.Position == 0 {
			s.AvgCost = 0
		}
		return s, realized

	default:
		// Full close and reverse: realize the whole old position, then open
		// the residual at the fill price.
		realized := float64(s.Position) * (price - s.AvgCost)
		s.Position += signedQty
		s.AvgCost = price
		s.RealizedPnL += realized
		return s, realized
	}
}

// MarkToMarket returns the unrealized P&L of s at the given price without
// mutating state. Zero for a flat position.
func MarkToMarket(s State, price float64) float64 {
	if s.Position == 0 {
		return 0
	}
	return float64(s.Position) * (price - s.AvgCost)
}

func sameSign(a, b int64) bool {
	return (a > 0 && b > 0) || (a < 0 && b < 0)
}

func abs64(n int64) int64 {
	if n < 0 {
		return -n
	}
	return n
}
