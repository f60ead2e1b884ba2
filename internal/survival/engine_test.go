package survival

import (
	"errors"
	"math"
	"testing"

	"risk-systemv1/internal/levels"
	"risk-systemv1/internal/pricefmt"
)

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func mustPrice(t *testing.T, s string) pricefmt.Price {
	t.Helper()
	p, err := pricefmt.Decode(s)
	if err != nil {
		t.Fatalf("decode %q: %v", s, err)
	}
	return p
}

func TestComputeLongCurve(t *testing.T) {
	eng := New(levels.DefaultZN())
	p0 := mustPrice(t, "111'08")

	res := eng.Compute(p0, 10, DefaultOptions())

	// 111'05 sits 3/32 below 111'08, inside the declump gap, so the first
	// real step down is 111'01.
	wantLevels := []string{
		"111'08", "111'01", "110'31", "110'24", "110'20",
		"110'15", "110'09", "110'06", "110'02", "109'28",
	}
	if len(res.Curve) != len(wantLevels) {
		t.Fatalf("curve length = %d, want %d", len(res.Curve), len(wantLevels))
	}
	for i, s := range wantLevels {
		if got := res.Curve[i].Level; got != mustPrice(t, s) {
			t.Errorf("curve[%d].Level = %s, want %s", i, got, s)
		}
	}

	wantRisks := []float64{
		10,
		10 * 0.21875 / 0.1875,
		10 * (0.21875 * 4.0 / 3.0) / 0.1875,
	}
	for i, w := range wantRisks {
		if got := res.Curve[i].Risk; !approx(got, w) {
			t.Errorf("curve[%d].Risk = %v, want %v", i, got, w)
		}
	}

	// The whole window survives a -10000 budget, so the extreme is the far
	// edge of the window, 22/16 of a point away.
	if want := mustPrice(t, "109'28"); res.Extreme != want {
		t.Errorf("Extreme = %s, want %s", res.Extreme, want)
	}
	if !approx(res.SixteenthsToExtreme, 22) {
		t.Errorf("SixteenthsToExtreme = %v, want 22", res.SixteenthsToExtreme)
	}
}

func TestComputeLongTightStop(t *testing.T) {
	eng := New(levels.DefaultZN())
	p0 := mustPrice(t, "111'08")

	opts := DefaultOptions()
	opts.StopLoss = -100
	res := eng.Compute(p0, 10, opts)

	// First breach: at 110'31 the projected loss is 160 * -0.6319 ~= -101.
	if want := mustPrice(t, "110'31"); res.Extreme != want {
		t.Errorf("Extreme = %s, want %s", res.Extreme, want)
	}
	if len(res.Curve) != 3 {
		t.Fatalf("curve length = %d, want 3", len(res.Curve))
	}
	if last := res.Curve[2].Level; last != mustPrice(t, "110'31") {
		t.Errorf("last curve level = %s, want 110'31", last)
	}
}

func TestComputeLongAccruedPnLShrinksBudget(t *testing.T) {
	eng := New(levels.DefaultZN())
	p0 := mustPrice(t, "111'08")

	opts := DefaultOptions()
	opts.StopLoss = -100
	opts.PnL0 = -60 // 60 already lost, only 40 of budget left
	res := eng.Compute(p0, 10, opts)

	// 160 * -0.2917 ~= -46.7 breaches the remaining -40 at 111'01 already.
	if want := mustPrice(t, "111'01"); res.Extreme != want {
		t.Errorf("Extreme = %s, want %s", res.Extreme, want)
	}
}

func TestComputeFirstLevelRiskScaling(t *testing.T) {
	// The curve risk at a level is r0 * coeff / (breakeven/16), with the
	// coefficient in points and the breakeven in sixteenths. A quarter-point
	// adverse move therefore scales the target risk by 0.25/(3/16), so its
	// magnitude can exceed the entry risk. Pin the exact value so the
	// scaling convention cannot drift.
	table, err := levels.NewFromStrings([]string{
		"110'00", "110'16", "111'00", "111'08", "112'00",
	})
	if err != nil {
		t.Fatalf("levels: %v", err)
	}
	eng := New(table)

	res := eng.Compute(mustPrice(t, "111'08"), 10, DefaultOptions())

	if len(res.Curve) < 2 {
		t.Fatalf("curve length = %d, want >= 2", len(res.Curve))
	}
	if got := res.Curve[1].Level; got != mustPrice(t, "111'00") {
		t.Fatalf("curve[1].Level = %s, want 111'00", got)
	}
	if got := res.Curve[1].Risk; !approx(got, 40.0/3.0) {
		t.Errorf("curve[1].Risk = %v, want %v", got, 40.0/3.0)
	}
}

func TestComputeShortCurve(t *testing.T) {
	eng := New(levels.DefaultZN())
	p0 := mustPrice(t, "111'08")

	res := eng.Compute(p0, -10, DefaultOptions())

	// Short risk walks up. 111'14 is exactly 3/16 away and survives the
	// declump; the window edge 112'26 is inclusive.
	wantLevels := []string{
		"111'08", "111'14", "111'18", "111'26", "112'07",
		"112'11", "112'16", "112'19", "112'26",
	}
	if len(res.Curve) != len(wantLevels) {
		t.Fatalf("curve length = %d, want %d", len(res.Curve), len(wantLevels))
	}
	for i, s := range wantLevels {
		if got := res.Curve[i].Level; got != mustPrice(t, s) {
			t.Errorf("curve[%d].Level = %s, want %s", i, got, s)
		}
	}
	if want := mustPrice(t, "112'26"); res.Extreme != want {
		t.Errorf("Extreme = %s, want %s", res.Extreme, want)
	}
	if !approx(res.SixteenthsToExtreme, 25) {
		t.Errorf("SixteenthsToExtreme = %v, want 25", res.SixteenthsToExtreme)
	}
}

func TestComputeFlat(t *testing.T) {
	eng := New(levels.DefaultZN())
	p0 := mustPrice(t, "111'08")

	res := eng.Compute(p0, 0, DefaultOptions())
	if len(res.Curve) != 0 {
		t.Errorf("flat curve length = %d, want 0", len(res.Curve))
	}
	if res.Extreme != p0 {
		t.Errorf("flat Extreme = %s, want %s", res.Extreme, p0)
	}
	if res.SixteenthsToExtreme != 0 {
		t.Errorf("flat SixteenthsToExtreme = %v, want 0", res.SixteenthsToExtreme)
	}
}

func TestComputeOffTablePrice(t *testing.T) {
	eng := New(levels.DefaultZN())
	p0 := mustPrice(t, "111'10") // not a technical level

	res := eng.Compute(p0, 10, DefaultOptions())
	if len(res.Curve) == 0 {
		t.Fatal("expected non-empty curve")
	}
	if res.Curve[0].Level != p0 || res.Curve[0].Risk != 10 {
		t.Errorf("curve[0] = (%s, %v), want (%s, 10)",
			res.Curve[0].Level, res.Curve[0].Risk, p0)
	}
	// 111'08 is 1/16 below p0: declumped away.
	for _, cp := range res.Curve[1:] {
		if cp.Level == mustPrice(t, "111'08") {
			t.Errorf("declump kept level 111'08, %s away from start",
				(p0 - cp.Level).String())
		}
	}
}

func TestComputeFromString(t *testing.T) {
	eng := New(levels.DefaultZN())

	res, err := eng.ComputeFromString("111'08", 10, DefaultOptions())
	if err != nil {
		t.Fatalf("ComputeFromString: %v", err)
	}
	if want := mustPrice(t, "109'28"); res.Extreme != want {
		t.Errorf("Extreme = %s, want %s", res.Extreme, want)
	}

	_, err = eng.ComputeFromString("111'40", 10, DefaultOptions())
	var ferr *pricefmt.FormatError
	if !errors.As(err, &ferr) {
		t.Fatalf("error = %v, want *pricefmt.FormatError", err)
	}
}
