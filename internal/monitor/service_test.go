package monitor

import (
	"context"
	"testing"
	"time"

	"risk-systemv1/internal/levels"
	"risk-systemv1/internal/model"
	"risk-systemv1/internal/notification"
	"risk-systemv1/internal/portfolio"
)

// fakeSource returns a canned fill batch on every poll.
type fakeSource struct {
	fills []model.Fill
	calls int
}

func (s *fakeSource) Fills(ctx context.Context, minTS int64) ([]model.Fill, error) {
	s.calls++
	return s.fills, nil
}

// fakeResults records published updates.
type fakeResults struct {
	risks     []model.RiskUpdate
	positions []model.PositionUpdate
}

func (r *fakeResults) WriteRiskUpdate(ctx context.Context, u model.RiskUpdate) {
	r.risks = append(r.risks, u)
}
func (r *fakeResults) WritePositionUpdate(ctx context.Context, u model.PositionUpdate) {
	r.positions = append(r.positions, u)
}
func (r *fakeResults) Close() error { return nil }

// fakeCheckpoints stores cursors in memory.
type fakeCheckpoints struct {
	cursors map[string]int64
}

func newFakeCheckpoints() *fakeCheckpoints {
	return &fakeCheckpoints{cursors: make(map[string]int64)}
}

func (c *fakeCheckpoints) SaveCheckpoint(ctx context.Context, account string, cursor int64) error {
	c.cursors[account] = cursor
	return nil
}

func (c *fakeCheckpoints) LoadCheckpoint(ctx context.Context, account string) (int64, error) {
	return c.cursors[account], nil
}

// fakeHistory replays a canned fill log.
type fakeHistory struct {
	fills []model.Fill
}

func (h *fakeHistory) ReadFillsAfter(account string, afterRowID int64) ([]model.Fill, error) {
	return h.fills, nil
}
func (h *fakeHistory) ReadFillsBetween(account string, fromTS, toTS int64) ([]model.Fill, error) {
	return h.fills, nil
}
func (h *fakeHistory) Close() error { return nil }

// fakeNotifier collects sent alerts.
type fakeNotifier struct {
	alerts []notification.Alert
}

func (n *fakeNotifier) Send(ctx context.Context, alert notification.Alert) error {
	n.alerts = append(n.alerts, alert)
	return nil
}

func testConfig() Config {
	return Config{
		Account:       "ACCT1",
		Exchange:      "CME",
		Contracts:     []string{"ZN Sep26"},
		StopLoss:      -10000,
		NBM:           25,
		DollarPer16th: 62.5,
		PollInterval:  time.Second,
	}
}

func testFill(execID, side string, qty int64, price float64) model.Fill {
	return model.Fill{
		TS:       time.Now().UTC(),
		Account:  "ACCT1",
		Exchange: "CME",
		Contract: "ZN Sep26",
		Side:     side,
		Qty:      qty,
		Price:    price,
		ExecID:   execID,
	}
}

func TestService_FillFlowAndDedup(t *testing.T) {
	source := &fakeSource{fills: []model.Fill{testFill("exec-1", "BUY", 5, 111.25)}}
	results := &fakeResults{}
	checkpoints := newFakeCheckpoints()

	svc := New(testConfig(), levels.DefaultZN(), portfolio.DefaultLimits(), Deps{
		Source:      source,
		Results:     results,
		Checkpoints: checkpoints,
	})

	ctx := context.Background()
	svc.Cycle(ctx)
	svc.Cycle(ctx) // identical poll result: exec-1 must not double-apply

	if len(results.positions) != 1 {
		t.Fatalf("got %d position updates, want 1 (dedup by exec id)", len(results.positions))
	}
	pu := results.positions[0]
	if pu.Position != 5 || pu.AvgCost != 111.25 || pu.LastFillID != "exec-1" {
		t.Errorf("position update = %+v", pu)
	}

	// Both cycles compute risk: the fill price doubles as the spot fallback.
	if len(results.risks) != 2 {
		t.Fatalf("got %d risk updates, want 2", len(results.risks))
	}
	ru := results.risks[0]
	if ru.Position != 5 || ru.Spot != 111.25 || ru.SpotTick != "111'08" {
		t.Errorf("risk update = %+v", ru)
	}
	if ru.Risk != 5*62.5 {
		t.Errorf("risk = %v, want 312.5", ru.Risk)
	}
	if len(ru.Curve) == 0 || ru.Curve[0].Risk != 312.5 {
		t.Errorf("curve head = %+v", ru.Curve)
	}
	if ru.Extreme == "" || ru.SixteenthsToExtreme <= 0 {
		t.Errorf("extreme = %q, distance = %v", ru.Extreme, ru.SixteenthsToExtreme)
	}

	if got := checkpoints.cursors["ACCT1"]; got == 0 {
		t.Errorf("checkpoint not advanced after fills")
	}
}

func TestService_FlatPositionFromSpotFeed(t *testing.T) {
	results := &fakeResults{}
	svc := New(testConfig(), levels.DefaultZN(), portfolio.DefaultLimits(), Deps{
		Source:      &fakeSource{},
		Results:     results,
		Checkpoints: newFakeCheckpoints(),
	})

	svc.PushPrice(model.SpotPrice{
		Exchange: "CME", Contract: "ZN Sep26", Price: 110.5, TS: time.Now(),
	})
	svc.Cycle(context.Background())

	if len(results.positions) != 0 {
		t.Fatalf("flat book published %d position updates", len(results.positions))
	}
	if len(results.risks) != 1 {
		t.Fatalf("got %d risk updates, want 1", len(results.risks))
	}
	ru := results.risks[0]
	if ru.Position != 0 || ru.Risk != 0 {
		t.Errorf("flat risk update = %+v", ru)
	}
	if len(ru.Curve) != 0 {
		t.Errorf("flat position has a curve: %+v", ru.Curve)
	}
	if ru.Extreme != "110'16" || ru.SixteenthsToExtreme != 0 {
		t.Errorf("flat extreme = %q / %v, want spot itself", ru.Extreme, ru.SixteenthsToExtreme)
	}
}

func TestService_RecoveryReplaysPeriodFills(t *testing.T) {
	replayed := []model.Fill{
		testFill("exec-1", "BUY", 3, 111.0),
		testFill("exec-2", "BUY", 2, 111.5),
	}
	source := &fakeSource{fills: replayed} // gateway re-serves the same fills
	results := &fakeResults{}

	svc := New(testConfig(), levels.DefaultZN(), portfolio.DefaultLimits(), Deps{
		Source:      source,
		Results:     results,
		Checkpoints: newFakeCheckpoints(),
		History:     &fakeHistory{fills: replayed},
	})

	if err := svc.recover(context.Background()); err != nil {
		t.Fatalf("recover: %v", err)
	}

	st := svc.Tracker().State("CME:ZN Sep26")
	if st.Position != 5 {
		t.Fatalf("recovered position = %d, want 5", st.Position)
	}
	if st.AvgCost != 111.2 {
		t.Errorf("recovered avg cost = %v, want 111.2", st.AvgCost)
	}

	// Re-polled fills from before the checkpoint must not re-apply.
	svc.Cycle(context.Background())
	if len(results.positions) != 0 {
		t.Errorf("replayed fills re-applied: %d position updates", len(results.positions))
	}
	if got := svc.Tracker().State("CME:ZN Sep26").Position; got != 5 {
		t.Errorf("position after re-poll = %d, want 5", got)
	}
}

func TestService_LimitBreachAlerts(t *testing.T) {
	// 60 contracts breaches the default 50-contract position limit.
	source := &fakeSource{fills: []model.Fill{testFill("exec-big", "BUY", 60, 111.25)}}
	notifier := &fakeNotifier{}

	svc := New(testConfig(), levels.DefaultZN(), portfolio.DefaultLimits(), Deps{
		Source:      source,
		Results:     &fakeResults{},
		Checkpoints: newFakeCheckpoints(),
		Notifier:    notifier,
	})

	svc.Cycle(context.Background())

	if len(notifier.alerts) == 0 {
		t.Fatal("no alerts fired for oversized position")
	}
	found := false
	for _, a := range notifier.alerts {
		if a.Title == "position size exceeds limit" {
			found = true
			if a.Contract != "ZN Sep26" {
				t.Errorf("alert contract = %q", a.Contract)
			}
			if a.Level != notification.AlertWarning {
				t.Errorf("alert level = %q, want WARNING", a.Level)
			}
		}
	}
	if !found {
		t.Errorf("position limit alert missing: %+v", notifier.alerts)
	}
}

func TestService_PeriodRollResetsRealized(t *testing.T) {
	svc := New(testConfig(), levels.DefaultZN(), portfolio.DefaultLimits(), Deps{
		Source:      &fakeSource{},
		Results:     &fakeResults{},
		Checkpoints: newFakeCheckpoints(),
	})

	// Open and partially close for realized P&L.
	svc.tracker.Apply(testFill("exec-1", "BUY", 5, 111.0))
	svc.tracker.Apply(testFill("exec-2", "SELL", 3, 111.5))
	svc.seen["exec-1"] = true
	svc.seen["exec-2"] = true
	if st := svc.tracker.State("CME:ZN Sep26"); st.RealizedPnL == 0 {
		t.Fatal("setup produced no realized P&L")
	}

	// Force the stored period far into the past so the next cycle rolls it.
	svc.period = svc.period.AddDate(0, 0, -7)
	svc.checkSession(time.Now())

	st := svc.tracker.State("CME:ZN Sep26")
	if st.RealizedPnL != 0 {
		t.Errorf("realized P&L after period roll = %v, want 0", st.RealizedPnL)
	}
	if st.Position != 2 {
		t.Errorf("position after period roll = %d, want 2 (positions carry over)", st.Position)
	}
	if len(svc.seen) != 0 {
		t.Errorf("exec-id dedup set after period roll has %d entries, want 0", len(svc.seen))
	}
}
