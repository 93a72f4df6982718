package rental

import "fmt"

// =============================================================================
// BOOKING STATUS - Closed set with a single classification + state machine
// =============================================================================

// BookingStatus is the lifecycle state of a booking.
type BookingStatus string

const (
	BookingPending    BookingStatus = "pending"
	BookingConfirmed  BookingStatus = "confirmed"
	BookingCheckedIn  BookingStatus = "checked_in"
	BookingCheckedOut BookingStatus = "checked_out"
	BookingCompleted  BookingStatus = "completed"
	BookingCancelled  BookingStatus = "cancelled"
)

// BookingStatuses lists every status in lifecycle order.
var BookingStatuses = []BookingStatus{
	BookingPending,
	BookingConfirmed,
	BookingCheckedIn,
	BookingCheckedOut,
	BookingCompleted,
	BookingCancelled,
}

var bookingStatusLabels = map[BookingStatus]string{
	BookingPending:    "Pending",
	BookingConfirmed:  "Confirmed",
	BookingCheckedIn:  "Checked in",
	BookingCheckedOut: "Checked out",
	BookingCompleted:  "Completed",
	BookingCancelled:  "Cancelled",
}

// Valid reports whether s is a known status.
func (s BookingStatus) Valid() bool {
	_, ok := bookingStatusLabels[s]
	return ok
}

// Label returns a human-readable name.
func (s BookingStatus) Label() string {
	if l, ok := bookingStatusLabels[s]; ok {
		return l
	}
	return string(s)
}

// IsOccupying reports whether a booking in this status holds the unit for its
// nights. This is the only definition used by the overlap check, the SQL
// triggers and the Postgres exclusion constraint.
func (s BookingStatus) IsOccupying() bool {
	switch s {
	case BookingPending, BookingConfirmed, BookingCheckedIn:
		return true
	}
	return false
}

// IsTerminal reports whether no further transition is allowed.
func (s BookingStatus) IsTerminal() bool {
	return s == BookingCompleted || s == BookingCancelled
}

// OccupyingStatuses returns the occupying subset of BookingStatuses.
func OccupyingStatuses() []BookingStatus {
	var out []BookingStatus
	for _, s := range BookingStatuses {
		if s.IsOccupying() {
			out = append(out, s)
		}
	}
	return out
}

// bookingTransitions is the state machine:
//
//	pending     -> confirmed | cancelled
//	confirmed   -> checked_in | completed | cancelled
//	checked_in  -> checked_out | completed | cancelled
//	checked_out -> completed
var bookingTransitions = map[BookingStatus][]BookingStatus{
	BookingPending:    {BookingConfirmed, BookingCancelled},
	BookingConfirmed:  {BookingCheckedIn, BookingCompleted, BookingCancelled},
	BookingCheckedIn:  {BookingCheckedOut, BookingCompleted, BookingCancelled},
	BookingCheckedOut: {BookingCompleted},
}

// CanTransitionTo reports whether the state machine allows s -> next.
// Staying in the same status is always allowed.
func (s BookingStatus) CanTransitionTo(next BookingStatus) bool {
	if s == next {
		return true
	}
	for _, allowed := range bookingTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// NextStatuses returns the statuses reachable from s in one step.
func (s BookingStatus) NextStatuses() []BookingStatus {
	return append([]BookingStatus(nil), bookingTransitions[s]...)
}

// IsInitial reports whether a new booking may be created in this status.
func (s BookingStatus) IsInitial() bool {
	return s == BookingPending || s == BookingConfirmed
}

// ParseBookingStatus validates a wire value.
func ParseBookingStatus(v string) (BookingStatus, error) {
	s := BookingStatus(v)
	if !s.Valid() {
		return "", &ValidationError{Field: "status", Message: fmt.Sprintf("unknown booking status %q", v)}
	}
	return s, nil
}

// =============================================================================
// UNIT STATUS
// =============================================================================

// UnitStatus is the operational state of a unit.
type UnitStatus string

const (
	UnitAvailable   UnitStatus = "available"
	UnitBooked      UnitStatus = "booked"
	UnitCleaning    UnitStatus = "cleaning"
	UnitMaintenance UnitStatus = "maintenance"
	UnitHidden      UnitStatus = "hidden"
)

// Valid reports whether s is a known status.
func (s UnitStatus) Valid() bool {
	switch s {
	case UnitAvailable, UnitBooked, UnitCleaning, UnitMaintenance, UnitHidden:
		return true
	}
	return false
}

// IsListed reports whether the unit takes new bookings. Hidden units and
// units under maintenance do not.
func (s UnitStatus) IsListed() bool {
	return s != UnitHidden && s != UnitMaintenance
}

// =============================================================================
// TARGET PERIOD
// =============================================================================

// TargetPeriod is the cadence a target is declared for.
type TargetPeriod string

const (
	PeriodDaily   TargetPeriod = "daily"
	PeriodWeekly  TargetPeriod = "weekly"
	PeriodMonthly TargetPeriod = "monthly"
)

// Valid reports whether p is a known period.
func (p TargetPeriod) Valid() bool {
	return p == PeriodDaily || p == PeriodWeekly || p == PeriodMonthly
}
