// Package dates normalizes the calendar dates entries are recorded on.
// Every date handled by the ledger is a UTC midnight.
package dates

import (
	"errors"
	"time"
)

// Layout is the ISO calendar date format accepted and emitted by the API.
const Layout = "2006-01-02"

// Years outside this range cannot be charted or stored.
const (
	MinYear = 1
	MaxYear = 9999
)

var (
	// ErrInvalidDate is returned when a value is neither YYYY-MM-DD nor RFC3339.
	ErrInvalidDate = errors.New("invalid date format, use YYYY-MM-DD or RFC3339")
	// ErrYearOutOfRange is returned for dates whose UTC year is outside MinYear..MaxYear.
	ErrYearOutOfRange = errors.New("date year must be between 0001 and 9999")
)

// Parse accepts YYYY-MM-DD or an RFC3339 timestamp and returns the UTC
// calendar date it falls on.
func Parse(s string) (time.Time, error) {
	t, err := time.Parse(Layout, s)
	if err != nil {
		if t, err = time.Parse(time.RFC3339, s); err != nil {
			return time.Time{}, ErrInvalidDate
		}
	}
	t = Normalize(t)
	if !InRange(t) {
		return time.Time{}, ErrYearOutOfRange
	}
	return t, nil
}

// InRange reports whether t's UTC year lies within MinYear..MaxYear.
func InRange(t time.Time) bool {
	y := t.UTC().Year()
	return y >= MinYear && y <= MaxYear
}

// Normalize truncates t to midnight of its UTC calendar date.
func Normalize(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Split returns the UTC year, month (1-12) and day of t.
func Split(t time.Time) (year, month, day int) {
	y, m, d := t.UTC().Date()
	return y, int(m), d
}

// DaysIn returns the number of days in the given month (1-12).
func DaysIn(year, month int) int {
	return time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// SpanDays returns the number of whole days between two normalized dates.
func SpanDays(from, to time.Time) int {
	return int(Normalize(to).Sub(Normalize(from)).Hours() / 24)
}
