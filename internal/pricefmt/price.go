// Package pricefmt converts between CBOT bond-futures price notation and an
// exact in-memory price. A point is divided into 32 ticks, each tick
// optionally split in half (64ths). Prices are stored as int64 counts of
// 1/3200 of a point so that both the tick notation ("111'08+") and the ladder
// notation ("110'0875", hundredths of a 32nd) are representable without
// floating-point drift.
package pricefmt

import (
	"fmt"
	"math"
)

// Price is an exact price in units of 1/3200 of a point.
type Price int64

// Sub-point unit sizes, in 1/3200 of a point.
const (
	UnitsPerPoint Price = 3200
	UnitsPer32nd  Price = 100 // one tick
	UnitsPer64th  Price = 50  // half tick, the "+" suffix
	UnitsPer16th  Price = 200 // risk-scaling unit, distinct from display ticks
)

// Decimal returns the price as a decimal number of points.
func (p Price) Decimal() float64 {
	return float64(p) / float64(UnitsPerPoint)
}

// Sixteenths returns the price distance expressed in 16ths of a point.
// This is the risk-scaling unit used by the survival engine, deliberately
// distinct from the 32nds/64ths used for display.
func (p Price) Sixteenths() float64 {
	return float64(p) / float64(UnitsPer16th)
}

// FromDecimal converts a decimal price to a Price, rounding to the nearest
// representable unit. Robust to floating-point noise in the input.
func FromDecimal(f float64) Price {
	return Price(math.Round(f * float64(UnitsPerPoint)))
}

// String renders the canonical tick notation POINTS'FRAC[+], rounding the
// 64ths contribution to the nearest half tick first so that values produced
// by decimal arithmetic still format cleanly.
func (p Price) String() string {
	pts := p / UnitsPerPoint
	rem := p % UnitsPerPoint
	if rem < 0 {
		pts--
		rem += UnitsPerPoint
	}
	// Round to the nearest 64th before splitting into ticks + half flag.
	n64 := (rem + UnitsPer64th/2) / UnitsPer64th
	if n64 >= 64 {
		pts++
		n64 = 0
	}
	frac := n64 / 2
	if n64%2 != 0 {
		return fmt.Sprintf("%d'%02d+", pts, frac)
	}
	return fmt.Sprintf("%d'%02d", pts, frac)
}
