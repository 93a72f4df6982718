/*
store.go - Persistence interfaces consumed by the engines

PURPOSE:
  Defines the interface between the domain logic and the database. The engines
  never see SQL; they call these methods with plain records and filters.
  Different implementations use SQLite, PostgreSQL, or in-memory storage.

KEY INTERFACES:
  UnitStore:     Unit lookup (rates + status) for pricing
  BookingStore:  Filter by unit/status/stay window, insert, update, delete
  EmployeeStore: Employees and their roles
  ActivityStore: APPEND-ONLY activity log with range count/sum queries
  TargetStore:   Targets with active-window lookup and bulk deactivation
  TxStore:       All of the above inside one transaction

APPEND-ONLY CONTRACT:
  ActivityStore has no Update() or Delete(). Entries are written once.

ATOMIC OPERATIONS:
  Every engine operation runs inside WithTx(). Creating a booking checks for
  overlaps, inserts the booking and appends the booking_created entry; either
  all three happen or none do. Implementations also guard the overlap
  invariant at the storage level and report it as ErrBookingOverlap.

MISSING RECORDS:
  Get* methods return (nil, nil) when the record does not exist. Engines turn
  that into a *NotFoundError.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: SQLite (default, embedded)
  - store/postgres/postgres.go: PostgreSQL (pgx)
  - store/memory/memory.go: In-memory for testing

SEE ALSO:
  - booking/engine.go, performance/*.go: Consumers
*/
package rental

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/rental-engine/calendar"
)

// =============================================================================
// FILTERS
// =============================================================================

// BookingFilter selects bookings. Zero fields do not filter.
type BookingFilter struct {
	UnitID    UnitID
	Statuses  []BookingStatus
	ExcludeID BookingID

	// Overlapping keeps bookings whose stay overlaps this half-open interval.
	Overlapping *calendar.Interval
}

// OverlapFilter is the query behind the overlap check: occupying bookings of
// unit whose stay overlaps [checkIn, checkOut), minus exclude.
func OverlapFilter(unit UnitID, checkIn, checkOut calendar.Date, exclude BookingID) BookingFilter {
	stay := calendar.NewInterval(checkIn, checkOut)
	return BookingFilter{
		UnitID:      unit,
		Statuses:    OccupyingStatuses(),
		ExcludeID:   exclude,
		Overlapping: &stay,
	}
}

// Matches applies the filter in memory. Stores may use it after a coarse query.
func (f BookingFilter) Matches(b Booking) bool {
	if f.UnitID != "" && b.UnitID != f.UnitID {
		return false
	}
	if f.ExcludeID != "" && b.ID == f.ExcludeID {
		return false
	}
	if len(f.Statuses) > 0 {
		found := false
		for _, s := range f.Statuses {
			if s == b.Status {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.Overlapping != nil && !f.Overlapping.Overlaps(b.Stay()) {
		return false
	}
	return true
}

// EmployeeFilter selects employees.
type EmployeeFilter struct {
	ActiveOnly         bool
	ExcludeSystemOwner bool
}

// ActivityQuery selects activity entries.
type ActivityQuery struct {
	EmployeeID EmployeeID // empty = everyone
	Role       Role       // empty = any; matched against the employee's role
	From       time.Time  // inclusive, zero = unbounded
	To         time.Time  // exclusive, zero = unbounded
	Kinds      []ActivityKind
}

// HasKind reports whether k passes the kind filter.
func (q ActivityQuery) HasKind(k ActivityKind) bool {
	if len(q.Kinds) == 0 {
		return true
	}
	for _, want := range q.Kinds {
		if want == k {
			return true
		}
	}
	return false
}

// InRange reports whether t is inside [From, To).
func (q ActivityQuery) InRange(t time.Time) bool {
	if !q.From.IsZero() && t.Before(q.From) {
		return false
	}
	if !q.To.IsZero() && !t.Before(q.To) {
		return false
	}
	return true
}

// =============================================================================
// STORES
// =============================================================================

type UnitStore interface {
	SaveUnit(ctx context.Context, u Unit) error
	GetUnit(ctx context.Context, id UnitID) (*Unit, error)
	ListUnits(ctx context.Context) ([]Unit, error)
}

type BookingStore interface {
	// InsertBooking returns ErrBookingOverlap when the storage guard rejects it.
	InsertBooking(ctx context.Context, b Booking) error
	// UpdateBooking returns ErrBookingOverlap when the storage guard rejects it.
	UpdateBooking(ctx context.Context, b Booking) error
	// DeleteBooking reports whether a row was removed.
	DeleteBooking(ctx context.Context, id BookingID) (bool, error)
	GetBooking(ctx context.Context, id BookingID) (*Booking, error)
	// ListBookings returns matches ordered by check-in date.
	ListBookings(ctx context.Context, f BookingFilter) ([]Booking, error)
}

type EmployeeStore interface {
	SaveEmployee(ctx context.Context, e Employee) error
	GetEmployee(ctx context.Context, id EmployeeID) (*Employee, error)
	ListEmployees(ctx context.Context, f EmployeeFilter) ([]Employee, error)
}

// ActivityStore is append-only.
type ActivityStore interface {
	AppendActivity(ctx context.Context, e ActivityEntry) error
	CountActivities(ctx context.Context, q ActivityQuery) (int, error)
	SumActivityAmount(ctx context.Context, q ActivityQuery) (decimal.Decimal, error)
	// ListActivities returns one page newest first, and the total match count.
	ListActivities(ctx context.Context, q ActivityQuery, offset, limit int) ([]ActivityEntry, int, error)
}

type TargetStore interface {
	InsertTarget(ctx context.Context, t Target) error
	UpdateTarget(ctx context.Context, t Target) error
	GetTarget(ctx context.Context, id TargetID) (*Target, error)
	// DeactivateTargets clears is_active on the employee's active targets whose
	// end date is on or after from, stamping updated_at with now, and returns
	// how many were changed.
	DeactivateTargets(ctx context.Context, employeeID EmployeeID, from calendar.Date, now time.Time) (int, error)
	// ActiveTarget returns the most recently created active target whose window
	// contains on, or nil.
	ActiveTarget(ctx context.Context, employeeID EmployeeID, on calendar.Date) (*Target, error)
	// ListTargets returns the employee's targets newest first.
	ListTargets(ctx context.Context, employeeID EmployeeID, includeInactive bool) ([]Target, error)
}

// Store is everything the engines persist.
type Store interface {
	UnitStore
	BookingStore
	EmployeeStore
	ActivityStore
	TargetStore
}

// TxStore runs fn inside one transaction. Returning an error rolls back.
type TxStore interface {
	Store
	WithTx(ctx context.Context, fn func(Store) error) error
}
