package portfolio

import (
	"math"
	"testing"
	"time"

	"risk-systemv1/internal/model"
)

func feq(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestApplyFillLifecycle(t *testing.T) {
	var s State

	// Flat to open.
	s, realized := ApplyFill(s, 5, 100)
	if s.Position != 5 || !feq(s.AvgCost, 100) || !feq(realized, 0) {
		t.Fatalf("open: state = %+v, realized = %v", s, realized)
	}

	// Partial close at a gain: avg cost unchanged.
	s, realized = ApplyFill(s, -3, 101)
	if !feq(realized, 3) {
		t.Errorf("partial close realized = %v, want 3", realized)
	}
	if s.Position != 2 || !feq(s.AvgCost, 100) {
		t.Errorf("partial close state = %+v, want position 2 avg 100", s)
	}

	// Over-close: realize the remaining long, reverse short at fill price.
	s, realized = ApplyFill(s, -4, 102)
	if !feq(realized, 4) {
		t.Errorf("reverse realized = %v, want 4", realized)
	}
	if s.Position != -2 || !feq(s.AvgCost, 102) {
		t.Errorf("reverse state = %+v, want position -2 avg 102", s)
	}
	if !feq(s.RealizedPnL, 7) {
		t.Errorf("cumulative realized = %v, want 7", s.RealizedPnL)
	}
}

func TestApplyFillAdd(t *testing.T) {
	var s State
	s, _ = ApplyFill(s, 2, 100)
	s, _ = ApplyFill(s, 2, 101)
	if s.Position != 4 || !feq(s.AvgCost, 100.5) {
		t.Fatalf("add: state = %+v, want position 4 avg 100.5", s)
	}
}

func TestApplyFillExactClose(t *testing.T) {
	var s State
	s, _ = ApplyFill(s, 3, 100)
	s, realized := ApplyFill(s, -3, 99.5)
	if !feq(realized, -1.5) {
		t.Errorf("realized = %v, want -1.5", realized)
	}
	if s.Position != 0 || s.AvgCost != 0 {
		t.Errorf("exact close state = %+v, want flat with zero cost basis", s)
	}
}

func TestApplyFillShortSide(t *testing.T) {
	var s State
	s, _ = ApplyFill(s, -4, 110)
	if s.Position != -4 || !feq(s.AvgCost, 110) {
		t.Fatalf("short open state = %+v", s)
	}

	// Buying back below entry is a gain for a short.
	s, realized := ApplyFill(s, 1, 109.5)
	if !feq(realized, 0.5) {
		t.Errorf("short partial close realized = %v, want 0.5", realized)
	}
	if s.Position != -3 || !feq(s.AvgCost, 110) {
		t.Errorf("short partial close state = %+v", s)
	}

	// Reverse long: closed leg loses 3 * 0.5.
	s, realized = ApplyFill(s, 5, 110.5)
	if !feq(realized, -1.5) {
		t.Errorf("short reverse realized = %v, want -1.5", realized)
	}
	if s.Position != 2 || !feq(s.AvgCost, 110.5) {
		t.Errorf("short reverse state = %+v", s)
	}
}

func TestApplyFillZeroQty(t *testing.T) {
	s := State{Position: 3, AvgCost: 100, RealizedPnL: 1}
	next, realized := ApplyFill(s, 0, 200)
	if next != s || realized != 0 {
		t.Fatalf("zero-qty fill changed state: %+v realized %v", next, realized)
	}
}

func TestMarkToMarket(t *testing.T) {
	s := State{Position: 5, AvgCost: 100}
	if got := MarkToMarket(s, 100.5); !feq(got, 2.5) {
		t.Errorf("long mark = %v, want 2.5", got)
	}
	if got := MarkToMarket(State{Position: -2, AvgCost: 110}, 110.25); !feq(got, -0.5) {
		t.Errorf("short mark = %v, want -0.5", got)
	}
	if got := MarkToMarket(State{}, 123); got != 0 {
		t.Errorf("flat mark = %v, want 0", got)
	}
	// Mark must not mutate.
	if s.Position != 5 || !feq(s.AvgCost, 100) {
		t.Errorf("mark mutated state: %+v", s)
	}
}

func testFill(contract, side string, qty int64, price float64) model.Fill {
	return model.Fill{
		TS:       time.Now().UTC(),
		Account:  "DESK1",
		Exchange: "CME",
		Contract: contract,
		Side:     side,
		Qty:      qty,
		Price:    price,
	}
}

func TestTrackerApplyAndReplayAgree(t *testing.T) {
	fills := []model.Fill{
		testFill("ZN Sep26", model.SideBuy, 5, 100),
		testFill("ZN Sep26", model.SideSell, 3, 101),
		testFill("ZN Sep26", model.SideSell, 4, 102),
		testFill("ZB Sep26", model.SideSell, 2, 120),
	}

	live := NewTracker()
	for _, f := range fills {
		live.Apply(f)
	}

	replayed := NewTracker()
	replayed.Replay(fills)

	for _, key := range []string{"CME:ZN Sep26", "CME:ZB Sep26"} {
		if a, b := live.State(key), replayed.State(key); a != b {
			t.Errorf("%s: live %+v != replayed %+v", key, a, b)
		}
	}

	st := live.State("CME:ZN Sep26")
	if st.Position != -2 || !feq(st.AvgCost, 102) || !feq(st.RealizedPnL, 7) {
		t.Errorf("ZN state = %+v", st)
	}
}

func TestTrackerSummary(t *testing.T) {
	tr := NewTracker()
	tr.Apply(testFill("ZN Sep26", model.SideBuy, 5, 100))
	tr.Apply(testFill("ZN Sep26", model.SideSell, 3, 101))

	sum := tr.GetSummary(map[string]float64{"CME:ZN Sep26": 101.5})
	if !feq(sum.RealizedPnL, 3) {
		t.Errorf("realized = %v, want 3", sum.RealizedPnL)
	}
	if !feq(sum.UnrealizedPnL, 3) { // 2 contracts, 1.5 points above cost
		t.Errorf("unrealized = %v, want 3", sum.UnrealizedPnL)
	}
	if sum.OpenPositions != 1 || sum.TotalFills != 2 {
		t.Errorf("summary = %+v", sum)
	}
}

func TestLimitChecker(t *testing.T) {
	lc := NewLimitChecker(DefaultLimits())

	if b := lc.Check(State{Position: 5, AvgCost: 100}, -100, 20); len(b) != 0 {
		t.Errorf("healthy position breaches = %v", b)
	}

	b := lc.Check(State{Position: 60, AvgCost: 100}, -11000, 2)
	want := map[string]bool{
		"position size exceeds limit":           true,
		"stop loss breached":                    true,
		"extreme level within warning distance": true,
	}
	for _, msg := range b {
		if !want[msg] {
			t.Errorf("unexpected breach %q", msg)
		}
		delete(want, msg)
	}
	for msg := range want {
		t.Errorf("missing breach %q", msg)
	}
}
