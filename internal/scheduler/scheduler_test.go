package scheduler

import (
	"testing"
	"time"

	"EtfSentinel/internal/calendar"
)

// decisionDate only reads wall-clock components, so the tests build New
// York times with a fixed zone.
func nyTime(y int, m time.Month, d, hour, min int) time.Time {
	return time.Date(y, m, d, hour, min, 0, 0, time.UTC)
}

func TestDecisionDate_BacktracksToClosedSession(t *testing.T) {
	cal := calendar.NewNYSE()
	cases := []struct {
		name string
		now  time.Time
		want string
	}{
		{"intraday run uses previous session", nyTime(2025, time.June, 18, 10, 0), "2025-06-17"},
		{"pre-open run uses previous session", nyTime(2025, time.June, 18, 8, 30), "2025-06-17"},
		{"one minute before cutoff still previous session", nyTime(2025, time.June, 18, 16, 9), "2025-06-17"},
		{"at cutoff today is settled", nyTime(2025, time.June, 18, 16, 10), "2025-06-18"},
		{"evening run uses today", nyTime(2025, time.June, 18, 19, 0), "2025-06-18"},
		{"saturday falls back to friday", nyTime(2025, time.June, 21, 12, 0), "2025-06-20"},
		{"sunday falls back to friday", nyTime(2025, time.June, 22, 12, 0), "2025-06-20"},
		{"morning after holiday skips it", nyTime(2025, time.June, 20, 9, 30), "2025-06-18"}, // Jun 19 closed
		{"holiday itself falls back", nyTime(2025, time.June, 19, 17, 0), "2025-06-18"},
		{"monday morning reaches prior friday", nyTime(2025, time.June, 16, 9, 30), "2025-06-13"},
	}
	for _, tc := range cases {
		got := decisionDate(tc.now, cal).Format("2006-01-02")
		if got != tc.want {
			t.Errorf("%s: expected %s, got %s", tc.name, tc.want, got)
		}
	}
}

func TestDecisionDate_AlwaysTradingDay(t *testing.T) {
	cal := calendar.NewNYSE()
	for day := 0; day < 400; day++ {
		now := nyTime(2025, time.January, 1, 12, 0).AddDate(0, 0, day)
		got := decisionDate(now, cal)
		if !cal.IsTradingDay(got) {
			t.Fatalf("decisionDate(%s) returned non-session %s",
				now.Format("2006-01-02"), got.Format("2006-01-02"))
		}
		if got.After(now) {
			t.Fatalf("decisionDate(%s) returned future date %s",
				now.Format("2006-01-02"), got.Format("2006-01-02"))
		}
	}
}
