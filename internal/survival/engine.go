// Package survival computes the risk-decay schedule that lets a position
// survive to its stop-loss budget. Given the current price, a signed risk
// size, and the technical level table, it walks the levels in the direction
// of danger, compounds a per-level coefficient, and finds the farthest level
// the position can reach before the projected loss breaches the budget.
package survival

import (
	"math"

	"risk-systemv1/internal/levels"
	"risk-systemv1/internal/pricefmt"
)

const (
	// breakevenTicks is the fixed tick offset applied per level; negative
	// for levels on the favorable side of the current price, positive for
	// the adverse side.
	breakevenTicks = 3.0

	// minLevelGap is the minimum spacing between consecutive curve levels,
	// 3/16 of a point. Levels packed tighter than this are declumped so no
	// risk-decay step rides on a negligible price move.
	minLevelGap = 3 * pricefmt.UnitsPer16th // 3/16 point in price units
)

// Options tunes a survival computation.
type Options struct {
	// StopLoss is the dollar P&L at which the desk gives up. Negative.
	StopLoss float64
	// NBM is the nearest-breakeven-margin half window in 16ths of a point.
	NBM float64
	// PnL0 is the P&L already accrued in the ongoing trade.
	PnL0 float64
}

// DefaultOptions returns the desk defaults: -10000 stop, 25/16 window, no
// accrued P&L.
func DefaultOptions() Options {
	return Options{StopLoss: -10000, NBM: 25}
}

// CurvePoint maps a price level to the target risk once that level trades.
type CurvePoint struct {
	Level pricefmt.Price
	Risk  float64
}

// Result is the output of one survival computation.
type Result struct {
	// Curve starts at the current price with the original risk and walks
	// level by level toward the extreme. Levels are monotonic in the
	// direction of danger (descending for a long, ascending for a short).
	// Empty for a flat position.
	Curve []CurvePoint
	// Extreme is the farthest survivable level, or the starting price when
	// no level can be reached.
	Extreme pricefmt.Price
	// SixteenthsToExtreme is |Extreme - P0| in 16ths of a point. Risk
	// scaling runs in 16ths throughout; this is not the display tick unit.
	SixteenthsToExtreme float64
}

// Engine computes survival curves against one immutable level table.
// Stateless apart from the shared table; safe for concurrent use.
type Engine struct {
	table *levels.Table
}

// New creates an Engine over the given level table.
func New(table *levels.Table) *Engine {
	return &Engine{table: table}
}

// ComputeFromString decodes tick-notation text and computes the curve.
// Returns *pricefmt.FormatError when the text is malformed.
func (e *Engine) ComputeFromString(current string, r0 float64, opts Options) (Result, error) {
	p0, err := pricefmt.Decode(current)
	if err != nil {
		return Result{}, err
	}
	return e.Compute(p0, r0, opts), nil
}

// Compute builds the risk curve for a position of signed risk r0 at price p0.
// r0 > 0 is long (endangered by price falling), r0 < 0 is short. A flat
// position is a defined zero result: empty curve, extreme at p0, distance 0.
func (e *Engine) Compute(p0 pricefmt.Price, r0 float64, opts Options) Result {
	if r0 == 0 {
		return Result{Extreme: p0}
	}

	window := pricefmt.Price(math.Round(opts.NBM * float64(pricefmt.UnitsPer16th)))
	above := e.directionLevels(p0, p0+window)
	below := e.directionLevels(p0, p0-window)

	var lvls []pricefmt.Price
	if r0 > 0 {
		lvls = below // long risk: danger is below
	} else {
		lvls = above // short risk: danger is above
	}

	coeffs := coefficients(lvls, p0)
	extreme, boundary := findExtreme(r0, coeffs, lvls, opts.StopLoss-opts.PnL0)

	curve := make([]CurvePoint, 0, boundary+1)
	curve = append(curve, CurvePoint{Level: p0, Risk: r0})
	for i := 1; i <= boundary; i++ {
		curve = append(curve, CurvePoint{
			Level: lvls[i],
			Risk:  r0 * coeffs[i-1] / (breakeven(lvls[i], p0) / 16),
		})
	}

	return Result{
		Curve:               curve,
		Extreme:             extreme,
		SixteenthsToExtreme: math.Abs((extreme - p0).Sixteenths()),
	}
}

// directionLevels selects the technical levels between p0 and the window
// edge, guarantees p0 itself sits at index 0, and declumps levels closer
// than minLevelGap to their predecessor.
func (e *Engine) directionLevels(p0, edge pricefmt.Price) []pricefmt.Price {
	lvls := e.table.InRange(p0, edge)
	if len(lvls) == 0 || lvls[0] != p0 {
		lvls = append([]pricefmt.Price{p0}, lvls...)
	}

	// Bounded declump: each pass removes exactly one element, so the loop
	// runs at most len(lvls)-1 times. The table construction already rejects
	// duplicates, which is what would otherwise stall this loop.
	for budget := len(lvls); len(lvls) > 1 && budget > 0; budget-- {
		gap := lvls[1] - lvls[0]
		if gap < 0 {
			gap = -gap
		}
		if gap >= minLevelGap {
			break
		}
		lvls = append(lvls[:1], lvls[2:]...)
	}
	return lvls
}

// breakeven returns the fixed breakeven constant in ticks for a level:
// -3 when the level lies below the current price, +3 otherwise.
func breakeven(level, current pricefmt.Price) float64 {
	if current > level {
		return -breakevenTicks
	}
	return breakevenTicks
}

// coefficients computes the cumulative per-level coefficient products.
// coeff[0] is the first inter-level delta in points; each further step
// compounds by (1 + delta/(breakeven/16)).
func coefficients(lvls []pricefmt.Price, p0 pricefmt.Price) []float64 {
	if len(lvls) < 2 {
		return nil
	}
	deltas := make([]float64, len(lvls)-1)
	for i := range deltas {
		deltas[i] = (lvls[i+1] - lvls[i]).Decimal()
	}

	coeffs := make([]float64, 0, len(deltas))
	prod := deltas[0]
	coeffs = append(coeffs, prod)
	for i := 1; i < len(deltas); i++ {
		prod *= 1 + deltas[i]/(breakeven(lvls[i], p0)/16)
		coeffs = append(coeffs, prod)
	}
	return coeffs
}

// findExtreme scans the coefficient sequence for the first index whose
// projected P&L breaches the remaining stop budget. Risk scales by 16
// (dollars per 16th of a point), matching the coefficient units; this factor
// is a fixed instrument convention, deliberately not the display tick count.
// First breach wins; if no index breaches, the position survives every level
// in the window and the last level is the extreme.
func findExtreme(risk float64, coeffs []float64, lvls []pricefmt.Price, target float64) (pricefmt.Price, int) {
	for idx, c := range coeffs {
		if risk*c*16 <= target {
			return lvls[idx], idx
		}
	}
	return lvls[len(coeffs)], len(coeffs)
}
