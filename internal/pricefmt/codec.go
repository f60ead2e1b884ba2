package pricefmt

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// FormatError reports price text that does not match the expected grammar.
// It is always surfaced to the caller; malformed prices are never coerced.
type FormatError struct {
	Input  string
	Reason string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("bad price %q: %s", e.Input, e.Reason)
}

var (
	// Tick notation: POINTS['-\s]FRAC[+] where FRAC is two digits of 32nds.
	tickRe = regexp.MustCompile(`^(\d+)['\- ]?(\d{2})(\+?)$`)

	// Ladder notation: POINTS'FRACxx with a 2-4 digit fractional field
	// (32nds, optionally followed by tenths or hundredths of a 32nd).
	ladderRe = regexp.MustCompile(`^(\d+)'(\d{2,4})$`)
)

// Decode parses CBOT tick notation such as "111'08", "110-20" or "111'08+"
// into an exact Price. The optional "+" suffix adds half a tick (a 64th).
// Returns a *FormatError for any input outside the grammar, including
// fractional parts of 32 or more.
func Decode(s string) (Price, error) {
	trimmed := strings.TrimSpace(s)
	m := tickRe.FindStringSubmatch(trimmed)
	if m == nil {
		return 0, &FormatError{Input: s, Reason: "expected POINTS'FRAC[+] tick notation"}
	}
	pts, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return 0, &FormatError{Input: s, Reason: "points overflow"}
	}
	frac, _ := strconv.ParseInt(m[2], 10, 64)
	if frac > 31 {
		return 0, &FormatError{Input: s, Reason: fmt.Sprintf("32nds part %d out of range 0-31", frac)}
	}
	p := Price(pts)*UnitsPerPoint + Price(frac)*UnitsPer32nd
	if m[3] == "+" {
		p += UnitsPer64th
	}
	return p, nil
}

// DecodeLadder parses the ladder price notation used by fill records, e.g.
// "110'08" (plain 32nds), "110'085" (tenths of a 32nd) or "110'0875"
// (hundredths of a 32nd). This grammar is independent of the tick notation
// accepted by Decode; the two must never be mixed — "110'085" means
// 8.5/32nds here, not 85 ticks.
func DecodeLadder(s string) (Price, error) {
	trimmed := strings.TrimSpace(s)
	m := ladderRe.FindStringSubmatch(trimmed)
	if m == nil {
		return 0, &FormatError{Input: s, Reason: "expected POINTS'FRACxx ladder notation"}
	}
	pts, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return 0, &FormatError{Input: s, Reason: "points overflow"}
	}
	fracField := m[2]
	ticks, _ := strconv.ParseInt(fracField[:2], 10, 64)
	if ticks > 31 {
		return 0, &FormatError{Input: s, Reason: fmt.Sprintf("32nds part %d out of range 0-31", ticks)}
	}

	p := Price(pts)*UnitsPerPoint + Price(ticks)*UnitsPer32nd
	switch len(fracField) {
	case 2:
		// plain 32nds
	case 3:
		tenths, _ := strconv.ParseInt(fracField[2:], 10, 64)
		p += Price(tenths) * 10
	case 4:
		hundredths, _ := strconv.ParseInt(fracField[2:], 10, 64)
		p += Price(hundredths)
	}
	return p, nil
}
