package domain

import (
	"fmt"
	"time"
)

// DayLayout is the wire and storage format for calendar days.
const DayLayout = "2006-01-02"

// Day truncates t to its calendar date, keeping the date as seen in t's
// location. The result is midnight UTC so day arithmetic never crosses DST.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDay parses a YYYY-MM-DD string.
func ParseDay(s string) (time.Time, error) {
	t, err := time.Parse(DayLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: invalid date %q (want YYYY-MM-DD)", ErrInvalidInput, s)
	}
	return t, nil
}

// FormatDay renders a day as YYYY-MM-DD.
func FormatDay(t time.Time) string {
	return Day(t).Format(DayLayout)
}

// DaysBetween returns the whole number of calendar days from a to b.
func DaysBetween(a, b time.Time) int {
	return int(Day(b).Sub(Day(a)).Hours() / 24)
}
