package attendance

import (
	"time"

	"github.com/trezcool/tutorcenter/core"
)

// Day returns the calendar day t falls on in loc, as midnight UTC.
// Every stored Record.Date and every report key goes through Day.
func Day(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DayKey formats a calendar day as YYYY-MM-DD.
func DayKey(day time.Time) string {
	return day.UTC().Format(core.DateLayout)
}

// ParseDay parses a YYYY-MM-DD calendar day.
func ParseDay(s string) (time.Time, error) {
	return time.Parse(core.DateLayout, s)
}

// MonthRange returns the first and last calendar days of the month.
func MonthRange(year int, month time.Month) (first, last time.Time) {
	first = time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	last = first.AddDate(0, 1, -1)
	return first, last
}

// MonthDays returns every calendar day of the month, in order.
func MonthDays(year int, month time.Month) []time.Time {
	first, last := MonthRange(year, month)
	days := make([]time.Time, 0, last.Day())
	for d := first; !d.After(last); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}
	return days
}
