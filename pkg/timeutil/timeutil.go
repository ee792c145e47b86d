// Package timeutil provides timezone utilities for the school timezone
// (Asia/Jerusalem). Roster dates arrive as dd/mm/yyyy strings in local
// school time; analysis windows and schedules are computed UTC-side, so
// conversions live here in one place.
package timeutil

import (
	"fmt"
	"time"
)

// SchoolTZ is the school timezone. Israel observes DST, so the IANA zone is
// loaded at startup; the fixed UTC+2 fallback only applies on systems
// without tzdata.
var SchoolTZ = loadSchoolTZ()

func loadSchoolTZ() *time.Location {
	loc, err := time.LoadLocation("Asia/Jerusalem")
	if err != nil {
		return time.FixedZone("Asia/Jerusalem", 2*60*60)
	}
	return loc
}

// Now returns the current time in the school timezone.
func Now() time.Time {
	return time.Now().In(SchoolTZ)
}

// ToSchool converts a time to the school timezone.
func ToSchool(t time.Time) time.Time {
	return t.In(SchoolTZ)
}

// ToUTC converts a time to UTC.
func ToUTC(t time.Time) time.Time {
	return t.UTC()
}

// Date creates a midnight time in the school timezone.
func Date(year, month, day int) time.Time {
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, SchoolTZ)
}

// StartOfDay returns midnight of the given day in school time.
func StartOfDay(t time.Time) time.Time {
	local := ToSchool(t)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, SchoolTZ)
}

// EndOfDay returns the last nanosecond of the given day in school time.
func EndOfDay(t time.Time) time.Time {
	return StartOfDay(t).AddDate(0, 0, 1).Add(-time.Nanosecond)
}

// StartOfMonth returns midnight of the first day of the month.
func StartOfMonth(t time.Time) time.Time {
	local := ToSchool(t)
	return time.Date(local.Year(), local.Month(), 1, 0, 0, 0, 0, SchoolTZ)
}

// IsSameDay reports whether two times fall on the same school-time day.
func IsSameDay(t1, t2 time.Time) bool {
	a, b := ToSchool(t1), ToSchool(t2)
	return a.Year() == b.Year() && a.YearDay() == b.YearDay()
}

// DaysSince returns the number of whole school-time days since t.
func DaysSince(t time.Time) int {
	return DaysBetween(t, Now())
}

// DaysBetween returns the number of whole days between two times,
// measured on school-time day boundaries.
func DaysBetween(t1, t2 time.Time) int {
	a := StartOfDay(t1)
	b := StartOfDay(t2)
	return int(b.Sub(a).Hours() / 24)
}

// School week: Sunday through Friday, Saturday off.

// IsSchoolDay reports whether the given time falls on a school day.
func IsSchoolDay(t time.Time) bool {
	return ToSchool(t).Weekday() != time.Saturday
}

// NextSchoolDay returns the next school day after t.
func NextSchoolDay(t time.Time) time.Time {
	next := ToSchool(t).AddDate(0, 0, 1)
	for !IsSchoolDay(next) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// RosterDateLayout is the date format used by the roster web app.
const RosterDateLayout = "02/01/2006"

// ParseRosterDate parses a dd/mm/yyyy roster date in school time.
// An empty string yields the zero time without error.
func ParseRosterDate(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	t, err := time.ParseInLocation(RosterDateLayout, value, SchoolTZ)
	if err != nil {
		return time.Time{}, fmt.Errorf("timeutil: parse roster date %q: %w", value, err)
	}
	return t, nil
}

// FormatRosterDate formats a time as a dd/mm/yyyy roster date.
// The zero time formats as the empty string.
func FormatRosterDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return ToSchool(t).Format(RosterDateLayout)
}

// FormatDateTime formats a time for log output in school time.
func FormatDateTime(t time.Time) string {
	return ToSchool(t).Format("02/01/2006 15:04")
}

// MonthKey returns the yyyy-mm bucket key used by analysis frequency maps.
func MonthKey(t time.Time) string {
	return t.Format("2006-01")
}
