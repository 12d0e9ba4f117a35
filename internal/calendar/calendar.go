// Package calendar answers the three questions the engine asks about the
// exchange calendar: is a date a regular NYSE session, is it the third
// Friday of its month, and how many sessions lie between two dates.
package calendar

import "time"

// Oracle is the calendar capability the signal evaluator queries.
type Oracle interface {
	IsTradingDay(d time.Time) bool
	IsThirdFriday(d time.Time) bool
	// TradingDayDistance counts the sessions in (from, to].
	TradingDayDistance(from, to time.Time) int
}

// NYSE implements Oracle for regular New York Stock Exchange sessions:
// weekdays minus the full-day market holidays. Early-close half days count
// as sessions.
type NYSE struct{}

// NewNYSE returns the NYSE calendar.
func NewNYSE() *NYSE { return &NYSE{} }

// IsTradingDay reports whether d is a regular NYSE session.
func (c *NYSE) IsTradingDay(d time.Time) bool {
	d = dateOnly(d)
	wd := d.Weekday()
	if wd == time.Saturday || wd == time.Sunday {
		return false
	}
	return !isMarketHoliday(d)
}

// IsThirdFriday reports whether d is the third Friday of its month.
func (c *NYSE) IsThirdFriday(d time.Time) bool {
	d = dateOnly(d)
	return d.Weekday() == time.Friday && d.Day() >= 15 && d.Day() <= 21
}

// TradingDayDistance counts the trading sessions after from, up to and
// including to. Zero when to is not after from.
func (c *NYSE) TradingDayDistance(from, to time.Time) int {
	from, to = dateOnly(from), dateOnly(to)
	n := 0
	for d := from.AddDate(0, 0, 1); !d.After(to); d = d.AddDate(0, 0, 1) {
		if c.IsTradingDay(d) {
			n++
		}
	}
	return n
}

func dateOnly(d time.Time) time.Time {
	return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
}

func isMarketHoliday(d time.Time) bool {
	y := d.Year()
	switch {
	case d.Equal(newYearsDay(y)),
		d.Equal(nthWeekday(y, time.January, time.Monday, 3)),  // MLK Day
		d.Equal(nthWeekday(y, time.February, time.Monday, 3)), // Washington's Birthday
		d.Equal(goodFriday(y)),
		d.Equal(lastWeekday(y, time.May, time.Monday)), // Memorial Day
		d.Equal(juneteenth(y)),
		d.Equal(observed(time.Date(y, time.July, 4, 0, 0, 0, 0, time.UTC))),
		d.Equal(nthWeekday(y, time.September, time.Monday, 1)),    // Labor Day
		d.Equal(nthWeekday(y, time.November, time.Thursday, 4)),   // Thanksgiving
		d.Equal(observed(time.Date(y, time.December, 25, 0, 0, 0, 0, time.UTC))):
		return true
	}
	return false
}

// observed shifts a Saturday holiday to Friday and a Sunday holiday to
// Monday, the NYSE observance rule for fixed-date holidays.
func observed(d time.Time) time.Time {
	switch d.Weekday() {
	case time.Saturday:
		return d.AddDate(0, 0, -1)
	case time.Sunday:
		return d.AddDate(0, 0, 1)
	}
	return d
}

// newYearsDay handles the one asymmetry in the observance rule: a January 1
// falling on Saturday is not observed at all (the preceding December 31
// belongs to the old year and stays a session).
func newYearsDay(year int) time.Time {
	d := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	if d.Weekday() == time.Saturday {
		return time.Time{}
	}
	return observed(d)
}

func juneteenth(year int) time.Time {
	// Market holiday since 2022
	if year < 2022 {
		return time.Time{}
	}
	return observed(time.Date(year, time.June, 19, 0, 0, 0, 0, time.UTC))
}

func nthWeekday(year int, month time.Month, wd time.Weekday, n int) time.Time {
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	offset := (int(wd) - int(first.Weekday()) + 7) % 7
	return first.AddDate(0, 0, offset+(n-1)*7)
}

func lastWeekday(year int, month time.Month, wd time.Weekday) time.Time {
	last := time.Date(year, month+1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, -1)
	offset := (int(last.Weekday()) - int(wd) + 7) % 7
	return last.AddDate(0, 0, -offset)
}

// goodFriday is two days before Easter Sunday, via the anonymous Gregorian
// computus.
func goodFriday(year int) time.Time {
	a := year % 19
	b := year / 100
	c := year % 100
	d := b / 4
	e := b % 4
	f := (b + 8) / 25
	g := (b - f + 1) / 3
	h := (19*a + b - d - g + 15) % 30
	i := c / 4
	k := c % 4
	l := (32 + 2*e + 2*i - h - k) % 7
	m := (a + 11*h + 22*l) / 451
	month := (h + l - 7*m + 114) / 31
	day := (h+l-7*m+114)%31 + 1
	easter := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	return easter.AddDate(0, 0, -2)
}
