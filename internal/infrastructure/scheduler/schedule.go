package scheduler

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// INTERVAL SCHEDULE
// ══════════════════════════════════════════════════════════════════════════════

// IntervalSchedule runs a job at a fixed interval, measured from the start
// of the previous run.
type IntervalSchedule struct {
	Interval time.Duration
}

// NewIntervalSchedule creates a new IntervalSchedule.
func NewIntervalSchedule(interval time.Duration) *IntervalSchedule {
	return &IntervalSchedule{
		Interval: interval,
	}
}

// Next returns the next scheduled time.
func (s *IntervalSchedule) Next(t time.Time) time.Time {
	return t.Add(s.Interval)
}

// String returns the string representation of the schedule.
func (s *IntervalSchedule) String() string {
	return fmt.Sprintf("@every %s", s.Interval.String())
}

// ══════════════════════════════════════════════════════════════════════════════
// CRON SCHEDULE
// ══════════════════════════════════════════════════════════════════════════════

// CronSchedule runs a job according to a standard five-field cron expression:
//
//	minute hour day-of-month month day-of-week
//
// Each field accepts "*", "*/n", "a-b", and comma-separated lists. The school
// ops team uses these to pin heavy jobs (the at-risk sweep, snapshot pruning)
// to quiet hours rather than a rolling interval.
type CronSchedule struct {
	expr string

	minutes  uint64 // bit i set: minute i matches (0-59)
	hours    uint64 // 0-23
	days     uint64 // 1-31
	months   uint64 // 1-12
	weekdays uint64 // 0-6, Sunday = 0
}

// NewCronSchedule parses a five-field cron expression.
func NewCronSchedule(expr string) (*CronSchedule, error) {
	fields := strings.Fields(expr)
	if len(fields) != 5 {
		return nil, fmt.Errorf("cron expression must have 5 fields, got %d: %q", len(fields), expr)
	}

	s := &CronSchedule{expr: expr}

	specs := []struct {
		field    string
		min, max int
		dest     *uint64
	}{
		{fields[0], 0, 59, &s.minutes},
		{fields[1], 0, 23, &s.hours},
		{fields[2], 1, 31, &s.days},
		{fields[3], 1, 12, &s.months},
		{fields[4], 0, 6, &s.weekdays},
	}

	for _, spec := range specs {
		mask, err := parseCronField(spec.field, spec.min, spec.max)
		if err != nil {
			return nil, fmt.Errorf("invalid cron expression %q: %w", expr, err)
		}
		*spec.dest = mask
	}

	return s, nil
}

// parseCronField converts a single cron field into a bitmask of matching values.
func parseCronField(field string, min, max int) (uint64, error) {
	var mask uint64

	for _, part := range strings.Split(field, ",") {
		rangeSpec, stepSpec, hasStep := strings.Cut(part, "/")

		step := 1
		if hasStep {
			n, err := strconv.Atoi(stepSpec)
			if err != nil || n < 1 {
				return 0, fmt.Errorf("invalid step %q", part)
			}
			step = n
		}

		lo, hi := min, max
		if rangeSpec != "*" {
			loStr, hiStr, isRange := strings.Cut(rangeSpec, "-")
			n, err := strconv.Atoi(loStr)
			if err != nil {
				return 0, fmt.Errorf("invalid value %q", part)
			}
			lo = n
			if isRange {
				n, err := strconv.Atoi(hiStr)
				if err != nil {
					return 0, fmt.Errorf("invalid range %q", part)
				}
				hi = n
			} else if !hasStep {
				hi = lo
			}
		}

		if lo < min || hi > max || lo > hi {
			return 0, fmt.Errorf("value out of range [%d,%d]: %q", min, max, part)
		}

		for v := lo; v <= hi; v += step {
			mask |= 1 << uint(v)
		}
	}

	return mask, nil
}

// Next returns the next time after t that matches the expression.
// It steps minute by minute, which is plenty fast for expressions that
// match at least once a month.
func (s *CronSchedule) Next(t time.Time) time.Time {
	// Start from the next whole minute.
	next := t.Truncate(time.Minute).Add(time.Minute)

	// Bound the search to avoid spinning forever on expressions like
	// "0 0 31 2 *" that can never match.
	limit := next.AddDate(5, 0, 0)

	for next.Before(limit) {
		if s.months&(1<<uint(next.Month())) == 0 {
			next = time.Date(next.Year(), next.Month(), 1, 0, 0, 0, 0, next.Location()).AddDate(0, 1, 0)
			continue
		}
		if !s.dayMatches(next) {
			next = time.Date(next.Year(), next.Month(), next.Day(), 0, 0, 0, 0, next.Location()).AddDate(0, 0, 1)
			continue
		}
		if s.hours&(1<<uint(next.Hour())) == 0 {
			next = time.Date(next.Year(), next.Month(), next.Day(), next.Hour(), 0, 0, 0, next.Location()).Add(time.Hour)
			continue
		}
		if s.minutes&(1<<uint(next.Minute())) == 0 {
			next = next.Add(time.Minute)
			continue
		}
		return next
	}

	return time.Time{}
}

// dayMatches applies the standard cron rule: when both day-of-month and
// day-of-week are restricted, either one matching is enough.
func (s *CronSchedule) dayMatches(t time.Time) bool {
	domMatch := s.days&(1<<uint(t.Day())) != 0
	dowMatch := s.weekdays&(1<<uint(t.Weekday())) != 0

	domRestricted := s.days != fullMask(1, 31)
	dowRestricted := s.weekdays != fullMask(0, 6)

	if domRestricted && dowRestricted {
		return domMatch || dowMatch
	}
	return domMatch && dowMatch
}

func fullMask(min, max int) uint64 {
	var mask uint64
	for v := min; v <= max; v++ {
		mask |= 1 << uint(v)
	}
	return mask
}

// String returns the original cron expression.
func (s *CronSchedule) String() string {
	return s.expr
}
