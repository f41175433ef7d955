// Package civil provides timezone-free calendar date and wall-clock values.
//
// Agenda entries are stored as plain "YYYY-MM-DD" / "HH:MM" strings so that a
// hearing on the 20th stays on the 20th no matter which timezone the record is
// read in. Every component that needs to validate, compare or key on those
// strings goes through this package instead of re-parsing them ad hoc.
package civil

import (
	"fmt"
	"time"
)

const (
	// DateLayout is the canonical wire format for dates.
	DateLayout = "2006-01-02"
	// ClockLayout is the canonical wire format for times of day.
	ClockLayout = "15:04"
	// MonthLayout keys a whole month, used by the day-index filters.
	MonthLayout = "2006-01"

	// DefaultClock is the sentinel assigned to events whose source has no time
	// granularity (task due dates).
	DefaultClock = "09:00"
)

// Date is a calendar date without time or location.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// ParseDate parses a "YYYY-MM-DD" string, rejecting impossible dates such as
// "2026-02-30".
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return Date{Year: t.Year(), Month: t.Month(), Day: t.Day()}, nil
}

// String formats the date back into its canonical "YYYY-MM-DD" form. The
// fixed-width layout means lexicographic order on keys matches chronological
// order.
func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// MonthKey returns the "YYYY-MM" key for the date's month.
func (d Date) MonthKey() string {
	return fmt.Sprintf("%04d-%02d", d.Year, int(d.Month))
}

// Compare returns -1, 0 or 1 as d is before, equal to, or after o.
func (d Date) Compare(o Date) int {
	switch {
	case d.Year != o.Year:
		return sign(d.Year - o.Year)
	case d.Month != o.Month:
		return sign(int(d.Month) - int(o.Month))
	default:
		return sign(d.Day - o.Day)
	}
}

// Before reports whether d is chronologically before o.
func (d Date) Before(o Date) bool { return d.Compare(o) < 0 }

// Clock is a time of day with minute granularity.
type Clock struct {
	Hour   int
	Minute int
}

// ParseClock parses an "HH:MM" 24h string.
func ParseClock(s string) (Clock, error) {
	t, err := time.Parse(ClockLayout, s)
	if err != nil {
		return Clock{}, fmt.Errorf("invalid time %q: %w", s, err)
	}
	return Clock{Hour: t.Hour(), Minute: t.Minute()}, nil
}

// ParseClockOrDefault parses s, substituting the sentinel when s is empty.
func ParseClockOrDefault(s string) (Clock, error) {
	if s == "" {
		s = DefaultClock
	}
	return ParseClock(s)
}

// String formats the clock back into its canonical "HH:MM" form.
func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

// Compare returns -1, 0 or 1 as c is before, equal to, or after o.
func (c Clock) Compare(o Clock) int {
	if c.Hour != o.Hour {
		return sign(c.Hour - o.Hour)
	}
	return sign(c.Minute - o.Minute)
}

func sign(n int) int {
	switch {
	case n < 0:
		return -1
	case n > 0:
		return 1
	default:
		return 0
	}
}
