/*
Package calendar provides the date primitives shared by the booking and
performance engines.

PURPOSE:
  Bookings, targets and reporting windows are all expressed in calendar days,
  not instants. Date is a day with no time-of-day and no zone; conversion to
  instants only happens at the edges (activity timestamps, "today") through an
  explicit *time.Location.

KEY CONCEPTS:
  - Date:     A calendar day (YYYY-MM-DD)
  - Weekend:  The set of weekdays priced at the weekend rate
  - Interval: Half-open [Start, End) range of nights (bookings)
  - Period:   Inclusive [Start, End] range of days (targets, reports)

WEEKEND:
  The business weekend is Friday + Saturday. A night is classified by the
  date it starts on, so the night of Thursday -> Friday is a weekday night.

SEE ALSO:
  - interval.go: Half-open intervals and overlap
  - period.go: Inclusive periods and reporting windows
*/
package calendar

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// DateLayout is the wire and storage format of a Date.
const DateLayout = "2006-01-02"

// =============================================================================
// DATE - A calendar day
// =============================================================================

// Date is a calendar day. The zero value is "no date".
// Internally it is always midnight UTC so comparisons are plain time comparisons.
type Date struct {
	t time.Time
}

// NewDate returns the given calendar day.
func NewDate(year int, month time.Month, day int) Date {
	return Date{t: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf returns the calendar day of instant t as seen in loc.
func DateOf(t time.Time, loc *time.Location) Date {
	if loc == nil {
		loc = time.UTC
	}
	local := t.In(loc)
	return NewDate(local.Year(), local.Month(), local.Day())
}

// Today returns the current calendar day in loc.
func Today(now func() time.Time, loc *time.Location) Date {
	if now == nil {
		now = time.Now
	}
	return DateOf(now(), loc)
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q (use YYYY-MM-DD): %w", s, err)
	}
	return Date{t: t}, nil
}

// MustParseDate is ParseDate for literals in tests and fixtures.
func MustParseDate(s string) Date {
	d, err := ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

// Comparison
func (d Date) Before(o Date) bool        { return d.t.Before(o.t) }
func (d Date) After(o Date) bool         { return d.t.After(o.t) }
func (d Date) Equal(o Date) bool         { return d.t.Equal(o.t) }
func (d Date) BeforeOrEqual(o Date) bool { return !d.t.After(o.t) }
func (d Date) AfterOrEqual(o Date) bool  { return !d.t.Before(o.t) }
func (d Date) IsZero() bool              { return d.t.IsZero() }

// Arithmetic
func (d Date) AddDays(n int) Date   { return Date{t: d.t.AddDate(0, 0, n)} }
func (d Date) AddMonths(n int) Date { return Date{t: d.t.AddDate(0, n, 0)} }

// DaysUntil returns the number of days from d to o (negative if o is earlier).
func (d Date) DaysUntil(o Date) int {
	return int(o.t.Sub(d.t).Hours() / 24)
}

// Properties
func (d Date) Year() int             { return d.t.Year() }
func (d Date) Month() time.Month     { return d.t.Month() }
func (d Date) Day() int              { return d.t.Day() }
func (d Date) Weekday() time.Weekday { return d.t.Weekday() }

// StartIn returns the instant the day begins in loc.
func (d Date) StartIn(loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, loc)
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.t.Format(DateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*d = Date{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// =============================================================================
// WEEKEND - Days priced at the weekend rate
// =============================================================================

// Weekend is a set of weekdays.
type Weekend uint8

// GulfWeekend is the business weekend: Friday and Saturday.
var GulfWeekend = NewWeekend(time.Friday, time.Saturday)

// NewWeekend builds a weekend from the given days.
func NewWeekend(days ...time.Weekday) Weekend {
	var w Weekend
	for _, d := range days {
		w |= 1 << uint(d)
	}
	return w
}

// Contains reports whether wd is a weekend day.
func (w Weekend) Contains(wd time.Weekday) bool {
	return w&(1<<uint(wd)) != 0
}

// Days returns the weekend days in Sunday-first order.
func (w Weekend) Days() []time.Weekday {
	var out []time.Weekday
	for d := time.Sunday; d <= time.Saturday; d++ {
		if w.Contains(d) {
			out = append(out, d)
		}
	}
	return out
}

// IsWeekendDay reports whether d falls on the default business weekend
// (Friday or Saturday). It ignores RENTAL_WEEKEND; prices are classified by
// booking.Pricing.IsWeekendNight, which honors the configured weekend.
func IsWeekendDay(d Date) bool {
	return GulfWeekend.Contains(d.Weekday())
}

// ParseWeekday parses an English weekday name ("friday", "Fri").
func ParseWeekday(s string) (time.Weekday, error) {
	s = strings.TrimSpace(s)
	for d := time.Sunday; d <= time.Saturday; d++ {
		name := d.String()
		if strings.EqualFold(s, name) || (len(s) == 3 && strings.EqualFold(s, name[:3])) {
			return d, nil
		}
	}
	return 0, fmt.Errorf("unknown weekday %q", s)
}
