package markethours

import "time"

// CME full-closure holidays for 2026.
// Source: CME Group holiday calendar (US markets).
// Format: month, day pairs.
var cmeHolidays2026 = []struct {
	month time.Month
	day   int
}{
	{time.January, 1},   // New Year's Day
	{time.January, 19},  // Martin Luther King Jr. Day
	{time.February, 16}, // Presidents' Day
	{time.April, 3},     // Good Friday
	{time.May, 25},      // Memorial Day
	{time.June, 19},     // Juneteenth
	{time.July, 3},      // Independence Day (observed)
	{time.September, 7}, // Labor Day
	{time.November, 26}, // Thanksgiving
	{time.December, 25}, // Christmas
}

// pre-compute for fast lookup
var holidaySet map[string]bool

func init() {
	holidaySet = make(map[string]bool, len(cmeHolidays2026))
	for _, h := range cmeHolidays2026 {
		key := dateKey(2026, h.month, h.day)
		holidaySet[key] = true
	}
}

// IsHoliday returns true if the date (in Chicago time) is a CME full closure.
func IsHoliday(t time.Time) bool {
	ct := t.In(Chicago)
	return holidaySet[dateKey(ct.Year(), ct.Month(), ct.Day())]
}

func dateKey(year int, month time.Month, day int) string {
	return time.Date(year, month, day, 0, 0, 0, 0, Chicago).Format("2006-01-02")
}
