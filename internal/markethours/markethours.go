package markethours

import (
	"fmt"
	"time"
)

// Chicago is the CME exchange timezone. Falls back to fixed CST if the
// system tz database is unavailable (e.g. scratch containers).
var Chicago = loadChicago()

func loadChicago() *time.Location {
	loc, err := time.LoadLocation("America/Chicago")
	if err != nil {
		return time.FixedZone("CST", -6*3600)
	}
	return loc
}

// Globex session timing in Chicago time.
const (
	// Daily maintenance halt: 4:00 PM – 5:00 PM CT.
	HaltHour   = 16
	ReopenHour = 17

	// Intraday accounting periods roll at 3 PM CT (the treasury settlement
	// window), not at midnight: a period runs 3 PM day n-1 to 3 PM day n.
	PeriodBoundaryHour = 15
)

// IsMarketOpen returns true if t falls within Globex trading hours for
// treasury futures: Sunday 5 PM CT through Friday 4 PM CT, with a daily
// 4–5 PM CT maintenance halt, excluding full-closure holidays.
func IsMarketOpen(t time.Time) bool {
	ct := t.In(Chicago)
	if IsHoliday(ct) {
		return false
	}
	switch ct.Weekday() {
	case time.Saturday:
		return false
	case time.Sunday:
		return ct.Hour() >= ReopenHour
	case time.Friday:
		return ct.Hour() < HaltHour
	default:
		// Mon–Thu: open except during the maintenance halt.
		return ct.Hour() < HaltHour || ct.Hour() >= ReopenHour
	}
}

// IsTradingDay returns true if t's Chicago date has any open session.
func IsTradingDay(t time.Time) bool {
	ct := t.In(Chicago)
	return ct.Weekday() != time.Saturday && !IsHoliday(ct)
}

// PeriodStart returns the start of the intraday accounting period containing
// t: the most recent 3 PM CT at or before t.
func PeriodStart(t time.Time) time.Time {
	ct := t.In(Chicago)
	start := time.Date(ct.Year(), ct.Month(), ct.Day(), PeriodBoundaryHour, 0, 0, 0, Chicago)
	if ct.Before(start) {
		start = start.AddDate(0, 0, -1)
	}
	return start
}

// PeriodEnd returns the end of the intraday accounting period containing t.
func PeriodEnd(t time.Time) time.Time {
	return PeriodStart(t).AddDate(0, 0, 1)
}

// SamePeriod returns true when a and b fall in the same 3 PM–3 PM CT
// accounting period. P&L counters reset when this turns false.
func SamePeriod(a, b time.Time) bool {
	return PeriodStart(a).Equal(PeriodStart(b))
}

// NextOpen returns the next time the market transitions to open.
// If the market is open at t, returns t itself.
func NextOpen(t time.Time) time.Time {
	ct := t.In(Chicago)
	if IsMarketOpen(ct) {
		return ct
	}
	// Scan forward hour by hour to the next open boundary; bounded by a
	// long weekend plus a holiday run.
	probe := time.Date(ct.Year(), ct.Month(), ct.Day(), ct.Hour(), 0, 0, 0, Chicago)
	for i := 0; i < 24*10; i++ {
		probe = probe.Add(time.Hour)
		if IsMarketOpen(probe) {
			return probe
		}
	}
	return probe
}

// TimeUntilHalt returns the duration until the next daily maintenance halt,
// or 0 if the market is not currently open.
func TimeUntilHalt(t time.Time) time.Duration {
	ct := t.In(Chicago)
	if !IsMarketOpen(ct) {
		return 0
	}
	halt := time.Date(ct.Year(), ct.Month(), ct.Day(), HaltHour, 0, 0, 0, Chicago)
	if !ct.Before(halt) {
		halt = halt.AddDate(0, 0, 1)
	}
	return halt.Sub(ct)
}

// StatusString returns a human-readable session status for logs.
func StatusString(t time.Time) string {
	if IsMarketOpen(t) {
		return fmt.Sprintf("Market Open — halts in %s", fmtDur(TimeUntilHalt(t)))
	}
	next := NextOpen(t)
	ct := next.In(Chicago)
	return fmt.Sprintf("Market Closed — opens %s %s CT (%s)",
		ct.Weekday().String()[:3], ct.Format("15:04"), fmtDur(next.Sub(t)))
}

func fmtDur(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	if h > 0 {
		return fmt.Sprintf("%dh%dm", h, m)
	}
	return fmt.Sprintf("%dm", m)
}
