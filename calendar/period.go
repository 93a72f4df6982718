package calendar

import "time"

// =============================================================================
// PERIOD - Inclusive range of days [Start, End]
// =============================================================================

// Period is an inclusive date range. Targets and reporting windows are periods:
// a target from Feb 1 to Feb 29 counts activity on both Feb 1 and Feb 29.
type Period struct {
	Start Date
	End   Date
}

// Contains returns true if d is within [Start, End].
func (p Period) Contains(d Date) bool {
	return d.AfterOrEqual(p.Start) && d.BeforeOrEqual(p.End)
}

// IsValid reports whether End is not before Start.
func (p Period) IsValid() bool {
	return !p.End.Before(p.Start)
}

// Days returns the number of days in the period, 0 for invalid periods.
func (p Period) Days() int {
	if !p.IsValid() {
		return 0
	}
	return p.Start.DaysUntil(p.End) + 1
}

// Bounds converts the period to a half-open instant range [from, to) in loc:
// from is midnight of Start and to is midnight of the day after End.
func (p Period) Bounds(loc *time.Location) (from, to time.Time) {
	return p.Start.StartIn(loc), p.End.AddDays(1).StartIn(loc)
}

func (p Period) String() string {
	return "[" + p.Start.String() + ", " + p.End.String() + "]"
}

// =============================================================================
// REPORTING WINDOWS
// =============================================================================

// Day returns the single-day period for d.
func Day(d Date) Period {
	return Period{Start: d, End: d}
}

// WeekToDate returns the ISO week containing d (Monday start), up to d.
func WeekToDate(d Date) Period {
	offset := (int(d.Weekday()) + 6) % 7 // Monday = 0
	return Period{Start: d.AddDays(-offset), End: d}
}

// MonthToDate returns the calendar month containing d, up to d.
func MonthToDate(d Date) Period {
	return Period{Start: NewDate(d.Year(), d.Month(), 1), End: d}
}

// Month returns the full calendar month.
func Month(year int, month time.Month) Period {
	start := NewDate(year, month, 1)
	return Period{Start: start, End: start.AddMonths(1).AddDays(-1)}
}

// Windows holds the three rolling windows used on dashboards.
type Windows struct {
	Today Period
	Week  Period
	Month Period
}

// WindowsFor returns today / this ISO week / this calendar month, all ending on today.
func WindowsFor(today Date) Windows {
	return Windows{
		Today: Day(today),
		Week:  WeekToDate(today),
		Month: MonthToDate(today),
	}
}
