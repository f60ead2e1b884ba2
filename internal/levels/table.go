// Package levels holds the technical price levels for one instrument and the
// direction-aware range selection the risk engine walks over.
package levels

import (
	"fmt"
	"sort"

	"risk-systemv1/internal/pricefmt"
)

// ConfigurationError reports an invalid level table. Tables are validated at
// construction so a bad configuration can never surface mid-computation.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return "levels: " + e.Reason
}

// Table is an immutable, strictly ascending set of technical price levels.
// Read-only after construction; safe to share by reference across any number
// of concurrent computations.
type Table struct {
	prices []pricefmt.Price
}

// New builds a Table from an ascending price slice. Empty, unsorted, or
// duplicated input is a *ConfigurationError.
func New(prices []pricefmt.Price) (*Table, error) {
	if len(prices) == 0 {
		return nil, &ConfigurationError{Reason: "empty level table"}
	}
	for i := 1; i < len(prices); i++ {
		if prices[i] == prices[i-1] {
			return nil, &ConfigurationError{Reason: fmt.Sprintf("duplicate level %s", prices[i])}
		}
		if prices[i] < prices[i-1] {
			return nil, &ConfigurationError{Reason: fmt.Sprintf("level %s out of order after %s", prices[i], prices[i-1])}
		}
	}
	cp := make([]pricefmt.Price, len(prices))
	copy(cp, prices)
	return &Table{prices: cp}, nil
}

// NewFromStrings builds a Table from tick-notation strings.
func NewFromStrings(ss []string) (*Table, error) {
	prices := make([]pricefmt.Price, 0, len(ss))
	for _, s := range ss {
		p, err := pricefmt.Decode(s)
		if err != nil {
			return nil, err
		}
		prices = append(prices, p)
	}
	return New(prices)
}

// Len returns the number of levels in the table.
func (t *Table) Len() int { return len(t.prices) }

// Prices returns a copy of the level slice, ascending.
func (t *Table) Prices() []pricefmt.Price {
	cp := make([]pricefmt.Price, len(t.prices))
	copy(cp, t.prices)
	return cp
}

// InRange returns every level with value in [min(p0,p1), max(p0,p1)]
// inclusive. The order reflects the direction of travel: ascending if
// p1 > p0, descending otherwise, so callers can replay the price path
// chronologically.
func (t *Table) InRange(p0, p1 pricefmt.Price) []pricefmt.Price {
	lo, hi := p0, p1
	if lo > hi {
		lo, hi = hi, lo
	}
	start := sort.Search(len(t.prices), func(i int) bool { return t.prices[i] >= lo })
	end := sort.Search(len(t.prices), func(i int) bool { return t.prices[i] > hi })
	if start >= end {
		return nil
	}

	out := make([]pricefmt.Price, end-start)
	if p1 > p0 {
		copy(out, t.prices[start:end])
		return out
	}
	for i := range out {
		out[i] = t.prices[end-1-i]
	}
	return out
}
