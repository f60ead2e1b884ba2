package monitor

import (
	"context"
	"fmt"
	"log"
	"time"

	"risk-systemv1/internal/markethours"
	"risk-systemv1/internal/model"
	"risk-systemv1/internal/notification"
	"risk-systemv1/internal/portfolio"
	"risk-systemv1/internal/pricefmt"
	"risk-systemv1/internal/survival"
)

// checkSession tracks market open/halt transitions and rolls the intraday
// accounting period at the 3 PM Chicago boundary.
func (svc *Service) checkSession(now time.Time) {
	open := markethours.IsMarketOpen(now)
	if open != svc.marketOpen {
		svc.marketOpen = open
		transition := "halt"
		state := 0.0
		if open {
			transition = "open"
			state = 1.0
		}
		log.Printf("[monitor] market session transition: %s (%s)",
			transition, markethours.StatusString(now))
		if svc.deps.Metrics != nil {
			svc.deps.Metrics.MarketState.Set(state)
			svc.deps.Metrics.SessionTransitions.WithLabelValues(transition).Inc()
		}
	}

	if !markethours.SamePeriod(svc.period, now) {
		log.Printf("[monitor] accounting period roll: %s -> %s",
			svc.period.Format("2006-01-02 15:04"), markethours.PeriodStart(now).Format("2006-01-02 15:04"))
		svc.period = markethours.PeriodStart(now)
		svc.tracker.ResetRealized()
		svc.limits.ResetPeriod()
		// Exec-id dedup only needs to span one period; the cursor keeps
		// earlier fills from being fetched again.
		svc.seen = make(map[string]bool)
		if svc.deps.Metrics != nil {
			svc.deps.Metrics.SessionTransitions.WithLabelValues("period_roll").Inc()
		}
	}
}

// pollFills fetches new fills from the gateway and applies them.
func (svc *Service) pollFills(ctx context.Context) {
	start := time.Now()
	fills, err := svc.deps.Source.Fills(ctx, svc.cursor+1)
	if svc.deps.Metrics != nil {
		svc.deps.Metrics.PollDur.Observe(time.Since(start).Seconds())
	}
	if err != nil {
		log.Printf("[monitor] fill poll error: %v", err)
		if svc.deps.Metrics != nil {
			svc.deps.Metrics.PollErrors.Inc()
		}
		if svc.deps.Health != nil {
			svc.deps.Health.SetGatewayConnected(false)
		}
		return
	}
	if svc.deps.Health != nil {
		svc.deps.Health.SetGatewayConnected(true)
	}

	for _, f := range fills {
		if svc.seen[f.ExecID] {
			continue
		}
		svc.seen[f.ExecID] = true
		svc.applyFill(ctx, f)
	}

	if len(fills) > 0 {
		if err := svc.deps.Checkpoints.SaveCheckpoint(ctx, svc.cfg.Account, svc.cursor); err != nil {
			log.Printf("[monitor] checkpoint save failed: %v", err)
		}
	}
}

// applyFill advances accounting for one new fill and publishes the position
// change.
func (svc *Service) applyFill(ctx context.Context, f model.Fill) {
	// Persist to the audit log first; the UNIQUE exec_id constraint absorbs
	// re-polls across restarts.
	if svc.deps.FillLog != nil {
		select {
		case svc.fillCh <- f:
		default:
			log.Printf("[monitor] WARNING: fill log channel full, dropping audit write for %s", f.ExecID)
		}
	}

	st, realized := svc.tracker.Apply(f)
	if realized != 0 {
		svc.limits.RecordPnL(realized * 16 * svc.cfg.DollarPer16th)
	}
	svc.latestSpot[f.Key()] = f.Price
	if ts := f.TS.UnixMilli(); ts > svc.cursor {
		svc.cursor = ts
	}

	log.Printf("[monitor] fill %s %s %d @ %.4f -> position %d (realized %+.2f)",
		f.Contract, f.Side, f.Qty, f.Price, st.Position, realized)

	svc.deps.Results.WritePositionUpdate(ctx, model.PositionUpdate{
		Account:     f.Account,
		Exchange:    f.Exchange,
		Contract:    f.Contract,
		TS:          f.TS,
		Position:    st.Position,
		AvgCost:     st.AvgCost,
		RealizedPnL: st.RealizedPnL * 16 * svc.cfg.DollarPer16th,
		LastFillID:  f.ExecID,
	})

	if svc.deps.Metrics != nil {
		svc.deps.Metrics.FillsTotal.Inc()
		svc.deps.Metrics.Position.WithLabelValues(f.Contract).Set(float64(st.Position))
		svc.deps.Metrics.RealizedPnL.WithLabelValues(f.Contract).Set(st.RealizedPnL * 16 * svc.cfg.DollarPer16th)
	}
	if svc.deps.Health != nil {
		svc.deps.Health.SetLastFillTime(f.TS)
	}
}

// drainPrices empties the spot price ring into the latest-price map.
func (svc *Service) drainPrices() {
	for {
		p, ok := svc.prices.Pop()
		if !ok {
			return
		}
		svc.latestSpot[p.Key()] = p.Price
		if svc.deps.Metrics != nil {
			svc.deps.Metrics.PricesTotal.Inc()
		}
		if svc.deps.Health != nil {
			svc.deps.Health.SetLastPriceTime(p.TS)
		}
	}
}

// computeAll recomputes and publishes risk for every configured instrument
// that has a known spot price.
func (svc *Service) computeAll(ctx context.Context, now time.Time) {
	for _, contract := range svc.cfg.Contracts {
		key := svc.cfg.Exchange + ":" + contract
		spot, ok := svc.latestSpot[key]
		if !ok {
			continue
		}
		svc.computeInstrument(ctx, now, contract, key, spot)
	}
}

func (svc *Service) computeInstrument(ctx context.Context, now time.Time, contract, key string, spot float64) {
	st := svc.tracker.State(key)
	p0 := pricefmt.FromDecimal(spot)
	r0 := float64(st.Position) * svc.cfg.DollarPer16th

	// Accounting state is kept in price points per contract; dollars scale by
	// the per-16th contract value.
	dollarPerPoint := 16 * svc.cfg.DollarPer16th
	unrealized := portfolio.MarkToMarket(st, spot) * dollarPerPoint
	realized := st.RealizedPnL * dollarPerPoint
	periodPnL := realized + unrealized

	start := time.Now()
	res := svc.engine.Compute(p0, r0, survival.Options{
		StopLoss: svc.cfg.StopLoss,
		NBM:      svc.cfg.NBM,
		PnL0:     periodPnL,
	})
	if svc.deps.Metrics != nil {
		svc.deps.Metrics.ComputeDur.Observe(time.Since(start).Seconds())
		svc.deps.Metrics.RiskComputations.Inc()
	}

	curve := make([]model.CurveLevel, 0, len(res.Curve))
	for _, cp := range res.Curve {
		curve = append(curve, model.CurveLevel{
			Level:    cp.Level.String(),
			LevelDec: cp.Level.Decimal(),
			Risk:     cp.Risk,
		})
	}

	update := model.RiskUpdate{
		Account:             svc.cfg.Account,
		Exchange:            svc.cfg.Exchange,
		Contract:            contract,
		TS:                  now.UTC(),
		Spot:                spot,
		SpotTick:            p0.String(),
		Position:            st.Position,
		AvgCost:             st.AvgCost,
		RealizedPnL:         realized,
		UnrealizedPnL:       unrealized,
		Risk:                r0,
		StopLoss:            svc.cfg.StopLoss,
		Curve:               curve,
		Extreme:             res.Extreme.String(),
		ExtremeDec:          res.Extreme.Decimal(),
		SixteenthsToExtreme: res.SixteenthsToExtreme,
	}

	svc.deps.Results.WriteRiskUpdate(ctx, update)
	if svc.deps.Archive != nil {
		if err := svc.deps.Archive.SaveRiskResult(&update); err != nil {
			log.Printf("[monitor] risk result archive failed: %v", err)
		}
	}

	if svc.deps.Metrics != nil {
		svc.deps.Metrics.UnrealizedPnL.WithLabelValues(contract).Set(unrealized)
		svc.deps.Metrics.RiskSize.WithLabelValues(contract).Set(r0)
		svc.deps.Metrics.SixteenthsToExtreme.WithLabelValues(contract).Set(res.SixteenthsToExtreme)
	}

	svc.checkLimits(ctx, contract, st, periodPnL, res.SixteenthsToExtreme)
}

// checkLimits evaluates limit breaches and fires throttled alerts.
func (svc *Service) checkLimits(ctx context.Context, contract string, st portfolio.State, totalPnL, sixteenths float64) {
	breaches := svc.limits.Check(st, totalPnL, sixteenths)
	if len(breaches) == 0 || svc.deps.Notifier == nil {
		return
	}

	for _, breach := range breaches {
		level := notification.AlertWarning
		if breach == "stop loss breached" || breach == "max intraday loss reached" {
			level = notification.AlertCritical
		}
		alert := notification.Alert{
			Level:    level,
			Title:    breach,
			Contract: contract,
			Message: fmt.Sprintf("position %d, period P&L %.2f, %.1f/16 to extreme",
				st.Position, totalPnL, sixteenths),
		}
		if err := svc.deps.Notifier.Send(ctx, alert); err != nil {
			log.Printf("[monitor] alert delivery failed: %v", err)
		}
		if svc.deps.Metrics != nil {
			svc.deps.Metrics.AlertsTotal.WithLabelValues(breach).Inc()
		}
	}
}
