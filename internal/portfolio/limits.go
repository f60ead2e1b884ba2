package portfolio

import (
	"log"
	"sync"
)

// Limits defines configurable risk-alert thresholds.
type Limits struct {
	MaxPosition   int64   `json:"max_position"`   // max absolute contracts per instrument
	StopLoss      float64 `json:"stop_loss"`      // dollar loss at which the desk gives up
	WarnFraction  float64 `json:"warn_fraction"`  // fraction of stop loss that triggers a warning
	MaxDayLoss    float64 `json:"max_day_loss"`   // max intraday-period loss in dollars
	MinSixteenths float64 `json:"min_sixteenths"` // warn when the extreme is closer than this
}

// DefaultLimits returns the desk defaults.
func DefaultLimits() Limits {
	return Limits{
		MaxPosition:   50,
		StopLoss:      -10000,
		WarnFraction:  0.8,
		MaxDayLoss:    -15000,
		MinSixteenths: 5,
	}
}

// LimitChecker evaluates position states and risk results against Limits
// and surfaces breaches for alerting.
type LimitChecker struct {
	mu     sync.RWMutex
	limits Limits

	dayPnL float64
}

// NewLimitChecker creates a checker with the given limits.
func NewLimitChecker(limits Limits) *LimitChecker {
	return &LimitChecker{limits: limits}
}

// Check evaluates one instrument's state and returns breach descriptions,
// empty when everything is inside limits. sixteenthsToExtreme comes from the
// latest survival computation for the instrument.
func (lc *LimitChecker) Check(st State, totalPnL, sixteenthsToExtreme float64) []string {
	lc.mu.RLock()
	defer lc.mu.RUnlock()

	var breaches []string
	if abs64(st.Position) > lc.limits.MaxPosition {
		breaches = append(breaches, "position size exceeds limit")
	}
	if totalPnL <= lc.limits.StopLoss {
		breaches = append(breaches, "stop loss breached")
	} else if totalPnL <= lc.limits.StopLoss*lc.limits.WarnFraction {
		breaches = append(breaches, "approaching stop loss")
	}
	if lc.dayPnL <= lc.limits.MaxDayLoss {
		breaches = append(breaches, "max intraday loss reached")
	}
	if st.Position != 0 && sixteenthsToExtreme > 0 && sixteenthsToExtreme < lc.limits.MinSixteenths {
		breaches = append(breaches, "extreme level within warning distance")
	}
	return breaches
}

// RecordPnL updates the intraday-period P&L.
func (lc *LimitChecker) RecordPnL(pnl float64) {
	lc.mu.Lock()
	defer lc.mu.Unlock()
	lc.dayPnL += pnl
	log.Printf("[limits] intraday P&L: %.2f", lc.dayPnL)
}

// ResetPeriod resets the intraday counter (call at the 3 PM period boundary).
func (lc *LimitChecker) ResetPeriod() {
	lc.mu.Lock()
	defer lc.mu.Unlock()
	lc.dayPnL = 0
}
