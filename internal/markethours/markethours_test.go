package markethours

import (
	"testing"
	"time"
)

func chi(y int, m time.Month, d, hh, mm int) time.Time {
	return time.Date(y, m, d, hh, mm, 0, 0, Chicago)
}

func TestIsMarketOpen(t *testing.T) {
	cases := []struct {
		name string
		t    time.Time
		want bool
	}{
		{"tuesday mid-session", chi(2026, time.March, 10, 10, 30), true},
		{"tuesday maintenance halt", chi(2026, time.March, 10, 16, 15), false},
		{"tuesday after reopen", chi(2026, time.March, 10, 17, 5), true},
		{"friday before halt", chi(2026, time.March, 13, 15, 59), true},
		{"friday after halt", chi(2026, time.March, 13, 16, 30), false},
		{"saturday", chi(2026, time.March, 14, 11, 0), false},
		{"sunday before reopen", chi(2026, time.March, 15, 12, 0), false},
		{"sunday after reopen", chi(2026, time.March, 15, 17, 30), true},
		{"christmas", chi(2026, time.December, 25, 10, 0), false},
		{"good friday", chi(2026, time.April, 3, 10, 0), false},
	}
	for _, tc := range cases {
		if got := IsMarketOpen(tc.t); got != tc.want {
			t.Errorf("%s: IsMarketOpen = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestPeriodBoundaries(t *testing.T) {
	// 2 PM Tuesday belongs to the period that started 3 PM Monday.
	before := chi(2026, time.March, 10, 14, 0)
	if got, want := PeriodStart(before), chi(2026, time.March, 9, 15, 0); !got.Equal(want) {
		t.Errorf("PeriodStart(2PM Tue) = %v, want %v", got, want)
	}

	// 4 PM Tuesday starts the new period at 3 PM Tuesday.
	after := chi(2026, time.March, 10, 16, 0)
	if got, want := PeriodStart(after), chi(2026, time.March, 10, 15, 0); !got.Equal(want) {
		t.Errorf("PeriodStart(4PM Tue) = %v, want %v", got, want)
	}

	if SamePeriod(before, after) {
		t.Error("2 PM and 4 PM Tuesday must be different periods")
	}
	if !SamePeriod(chi(2026, time.March, 9, 16, 0), before) {
		t.Error("4 PM Monday and 2 PM Tuesday must share a period")
	}
	if got, want := PeriodEnd(before), chi(2026, time.March, 10, 15, 0); !got.Equal(want) {
		t.Errorf("PeriodEnd(2PM Tue) = %v, want %v", got, want)
	}
}

func TestNextOpen(t *testing.T) {
	// During the halt, next open is 5 PM the same day.
	halt := chi(2026, time.March, 10, 16, 10)
	if got := NextOpen(halt); got.Hour() != ReopenHour || got.Day() != 10 {
		t.Errorf("NextOpen(halt) = %v, want 5 PM same day", got)
	}

	// Saturday rolls to Sunday 5 PM.
	sat := chi(2026, time.March, 14, 9, 0)
	got := NextOpen(sat)
	if got.Weekday() != time.Sunday || got.Hour() != ReopenHour {
		t.Errorf("NextOpen(Saturday) = %v, want Sunday 5 PM", got)
	}
}

func TestTimeUntilHalt(t *testing.T) {
	open := chi(2026, time.March, 10, 15, 0)
	if got := TimeUntilHalt(open); got != time.Hour {
		t.Errorf("TimeUntilHalt(3PM) = %v, want 1h", got)
	}
	if got := TimeUntilHalt(chi(2026, time.March, 14, 9, 0)); got != 0 {
		t.Errorf("TimeUntilHalt(Saturday) = %v, want 0", got)
	}
}
