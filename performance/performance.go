/*
Package performance tracks what employees do and how they are doing.

PURPOSE:
  Three services over the append-only activity log:
    ActivityLog: record entries, count/sum them over date ranges, page through them
    Targets:     per-employee goal windows (one active window at a time)
    Engine:      role statistics, target achievement, dashboards, team overview

DATE RANGES:
  All ranges are inclusive calendar dates interpreted in the configured time
  zone. A range [from, to] covers the instants [from 00:00, to+1 00:00).

ROLE DOMAINS:
  customer-facing (customers agent): bookings, revenue, customers, completion rate
  property-facing (owners agent):    owners, projects, units
  administrative (admin, owner):     activity counts only

ACHIEVEMENT:
  For each non-zero target field that applies to the employee's domain:
    min(actual / target * 100, 100)
  averaged and rounded to 2 places. No applicable field -> 0.

SEE ALSO:
  - rental/activity.go: Activity kinds and the entry constructor
  - booking/engine.go: Writes booking activity entries
*/
package performance

import (
	"time"

	"github.com/warp/rental-engine/calendar"
	"github.com/warp/rental-engine/rental"
)

// Config is shared by the three services.
type Config struct {
	Currency rental.Currency
	Location *time.Location
}

func (c Config) location() *time.Location {
	if c.Location == nil {
		return time.UTC
	}
	return c.Location
}

// Option customizes a service.
type Option func(*settings)

type settings struct {
	listener rental.ActivityListener
	now      func() time.Time
}

// WithListener is notified of every committed activity entry.
func WithListener(l rental.ActivityListener) Option { return func(s *settings) { s.listener = l } }

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option { return func(s *settings) { s.now = now } }

func newSettings(opts []Option) settings {
	s := settings{now: time.Now}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

// dateQuery turns an inclusive date range into an activity query.
func dateQuery(loc *time.Location, employeeID rental.EmployeeID, from, to calendar.Date, kinds []rental.ActivityKind) (rental.ActivityQuery, error) {
	p := calendar.Period{Start: from, End: to}
	if !p.IsValid() {
		return rental.ActivityQuery{}, &rental.ValidationError{Field: "end_date", Message: "end date must not be before start date"}
	}
	start, end := p.Bounds(loc)
	return rental.ActivityQuery{EmployeeID: employeeID, From: start, To: end, Kinds: kinds}, nil
}
