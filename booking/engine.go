/*
Package booking implements the booking availability and pricing engine.

PURPOSE:
  Decides whether a unit is free for a stay, prices the stay night by night,
  and creates/edits/transitions bookings while keeping the no-overlap
  invariant. Every create and status change appends an activity entry in the
  same transaction so performance figures never drift from bookings.

OVERLAP INVARIANT:
  For a unit, no two bookings in an occupying status (pending, confirmed,
  checked_in) may share a night. Stays are half-open: [check_in, check_out).
  Enforcement is layered:
    1. Per-unit lock (optional Locker: in-process or Redis)
    2. Check inside the store transaction -> ConflictError with the other id
    3. Storage guard (SQLite trigger / Postgres exclusion constraint)
       -> ErrBookingOverlap -> ConflictError without an id

STATE MACHINE:
  Status changes follow rental.BookingStatus.CanTransitionTo unless the
  engine is built with StrictTransitions=false, which accepts any status.

REQUEST FLOW (Create):
  1. Validate input (dates, price, initial status)
  2. Lock the unit
  3. In one transaction: load unit, check overlap, price, insert, log activity
  4. Notify activity listeners (events, metrics) after commit

SEE ALSO:
  - pricing.go: Night-by-night price computation
  - rental/status.go: Status classification and transitions
  - performance/activity.go: Reads what this package logs
*/
package booking

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/warp/rental-engine/calendar"
	"github.com/warp/rental-engine/rental"
)

// Locker serializes work on one key across goroutines or processes.
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// Config is injected by the caller; the engine reads no global state.
type Config struct {
	Pricing           Pricing
	StrictTransitions bool
}

// Engine is the booking service.
type Engine struct {
	store    rental.TxStore
	pricing  Pricing
	strict   bool
	locker   Locker
	listener rental.ActivityListener
	now      func() time.Time
}

// Option customizes an Engine.
type Option func(*Engine)

// WithLocker adds a per-unit lock around writes.
func WithLocker(l Locker) Option { return func(e *Engine) { e.locker = l } }

// WithListener is notified of every committed activity entry.
func WithListener(l rental.ActivityListener) Option { return func(e *Engine) { e.listener = l } }

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option { return func(e *Engine) { e.now = now } }

// NewEngine creates a booking engine over store.
func NewEngine(store rental.TxStore, cfg Config, opts ...Option) *Engine {
	e := &Engine{
		store:   store,
		pricing: cfg.Pricing,
		strict:  cfg.StrictTransitions,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Pricing returns the engine's pricing rules.
func (e *Engine) Pricing() Pricing { return e.pricing }

// =============================================================================
// AVAILABILITY
// =============================================================================

// CheckOverlap reports whether any occupying booking of unit overlaps
// [checkIn, checkOut), ignoring exclude.
func (e *Engine) CheckOverlap(ctx context.Context, unit rental.UnitID, checkIn, checkOut calendar.Date, exclude rental.BookingID) (bool, error) {
	if err := validateStay(checkIn, checkOut); err != nil {
		return false, err
	}
	conflicts, err := findConflicts(ctx, e.store, unit, checkIn, checkOut, exclude)
	if err != nil {
		return false, err
	}
	return len(conflicts) > 0, nil
}

// Availability is the answer to an availability check.
type Availability struct {
	Available      bool               `json:"available"`
	SuggestedPrice *rental.Money      `json:"suggested_price"`
	Quote          *Quote             `json:"quote,omitempty"`
	Conflicts      []rental.BookingID `json:"conflicting_booking_ids,omitempty"`
	Message        string             `json:"message"`
}

// CheckAvailability combines the overlap check with a price quote. The price is
// nil when the unit is unknown. A hidden or maintenance unit is never available.
func (e *Engine) CheckAvailability(ctx context.Context, unitID rental.UnitID, checkIn, checkOut calendar.Date, exclude rental.BookingID) (Availability, error) {
	if err := validateStay(checkIn, checkOut); err != nil {
		return Availability{}, err
	}
	conflicts, err := findConflicts(ctx, e.store, unitID, checkIn, checkOut, exclude)
	if err != nil {
		return Availability{}, err
	}

	unit, err := e.store.GetUnit(ctx, unitID)
	if err != nil {
		return Availability{}, fmt.Errorf("load unit: %w", err)
	}

	result := Availability{Available: len(conflicts) == 0}
	for _, b := range conflicts {
		result.Conflicts = append(result.Conflicts, b.ID)
	}
	switch {
	case unit != nil && !unit.Status.IsListed():
		result.Available = false
		result.Message = fmt.Sprintf("Unit is %s and not taking bookings", unit.Status)
	case result.Available:
		result.Message = "Unit is available for the selected dates"
	default:
		result.Message = "Unit is already booked for the selected dates"
	}

	if unit != nil {
		q, err := e.pricing.Quote(*unit, checkIn, checkOut)
		if err != nil {
			return Availability{}, err
		}
		result.Quote = &q
		result.SuggestedPrice = &q.Total
	}
	return result, nil
}

// ComputePrice prices a stay for unit.
func (e *Engine) ComputePrice(unit rental.Unit, checkIn, checkOut calendar.Date) (rental.Money, error) {
	return e.pricing.ComputePrice(unit, checkIn, checkOut)
}

// =============================================================================
// CREATE / UPDATE / STATUS
// =============================================================================

// CreateInput describes a new booking. A nil TotalPrice is computed from the
// unit's rates; an empty Status means confirmed.
type CreateInput struct {
	UnitID     rental.UnitID
	CustomerID rental.CustomerID
	GuestName  string
	GuestPhone string
	CheckIn    calendar.Date
	CheckOut   calendar.Date
	TotalPrice *rental.Money
	Status     rental.BookingStatus
	Notes      string
	CreatedBy  rental.EmployeeID
}

// Create validates and persists a booking and logs booking_created.
func (e *Engine) Create(ctx context.Context, in CreateInput) (rental.Booking, error) {
	if in.UnitID == "" {
		return rental.Booking{}, &rental.ValidationError{Field: "unit_id", Message: "required"}
	}
	if in.GuestName == "" && in.CustomerID == "" {
		return rental.Booking{}, &rental.ValidationError{Field: "guest_name", Message: "guest name or customer is required"}
	}
	if err := validateStay(in.CheckIn, in.CheckOut); err != nil {
		return rental.Booking{}, err
	}
	if in.TotalPrice != nil && in.TotalPrice.IsNegative() {
		return rental.Booking{}, &rental.ValidationError{Field: "total_price", Message: "must not be negative"}
	}
	status := in.Status
	if status == "" {
		status = rental.BookingConfirmed
	}
	if !status.Valid() {
		return rental.Booking{}, &rental.ValidationError{Field: "status", Message: "unknown booking status " + string(status)}
	}
	if e.strict && !status.IsInitial() {
		return rental.Booking{}, &rental.ValidationError{Field: "status", Message: "a new booking must be pending or confirmed"}
	}

	var (
		created rental.Booking
		entry   *rental.ActivityEntry
	)
	err := e.underUnitLock(ctx, in.UnitID, func() error {
		return e.store.WithTx(ctx, func(s rental.Store) error {
			unit, err := s.GetUnit(ctx, in.UnitID)
			if err != nil {
				return fmt.Errorf("load unit: %w", err)
			}
			if unit == nil {
				return &rental.NotFoundError{Kind: "unit", ID: string(in.UnitID)}
			}
			if !unit.Status.IsListed() {
				return &rental.ValidationError{Field: "unit_id", Message: fmt.Sprintf("unit is %s and not taking bookings", unit.Status)}
			}

			if status.IsOccupying() {
				if err := ensureNoConflict(ctx, s, in.UnitID, in.CheckIn, in.CheckOut, ""); err != nil {
					return err
				}
			}

			var price rental.Money
			if in.TotalPrice != nil {
				price = rental.NewMoney(in.TotalPrice.Amount, e.pricing.Currency)
			} else if price, err = e.pricing.ComputePrice(*unit, in.CheckIn, in.CheckOut); err != nil {
				return err
			}

			now := e.now().UTC()
			b := rental.Booking{
				ID:         rental.BookingID(rental.NewID()),
				UnitID:     in.UnitID,
				CustomerID: in.CustomerID,
				GuestName:  in.GuestName,
				GuestPhone: in.GuestPhone,
				CheckIn:    in.CheckIn,
				CheckOut:   in.CheckOut,
				TotalPrice: price,
				Status:     status,
				Notes:      in.Notes,
				CreatedBy:  in.CreatedBy,
				UpdatedBy:  in.CreatedBy,
				CreatedAt:  now,
				UpdatedAt:  now,
			}
			if err := s.InsertBooking(ctx, b); err != nil {
				return storeError(err, b)
			}

			entry, err = e.record(ctx, s, b, rental.KindBookingCreated, in.CreatedBy, &price)
			if err != nil {
				return err
			}
			created = b
			return nil
		})
	})
	if err != nil {
		return rental.Booking{}, err
	}

	log.Printf("[Booking] Created %s on unit %s %s (%s, %s)", created.ID, created.UnitID, created.Stay(), created.Status, created.TotalPrice)
	e.notify(ctx, entry)
	return created, nil
}

// UpdateInput carries the fields to change. Nil pointers are left alone.
type UpdateInput struct {
	CustomerID *rental.CustomerID
	GuestName  *string
	GuestPhone *string
	Notes      *string
	CheckIn    *calendar.Date
	CheckOut   *calendar.Date
	TotalPrice *rental.Money
	Status     *rental.BookingStatus

	// Reprice recomputes the price from the unit's rates when TotalPrice is nil.
	Reprice bool

	UpdatedBy rental.EmployeeID
}

// Update edits a booking. Changing dates, or moving the booking back into an
// occupying status, re-runs the overlap check excluding the booking itself.
func (e *Engine) Update(ctx context.Context, id rental.BookingID, in UpdateInput) (rental.Booking, error) {
	if in.TotalPrice != nil && in.TotalPrice.IsNegative() {
		return rental.Booking{}, &rental.ValidationError{Field: "total_price", Message: "must not be negative"}
	}
	if in.Status != nil && !in.Status.Valid() {
		return rental.Booking{}, &rental.ValidationError{Field: "status", Message: "unknown booking status " + string(*in.Status)}
	}

	current, err := e.Get(ctx, id)
	if err != nil {
		return rental.Booking{}, err
	}
	var (
		updated rental.Booking
		entries []*rental.ActivityEntry
	)
	err = e.underUnitLock(ctx, current.UnitID, func() error {
		return e.store.WithTx(ctx, func(s rental.Store) error {
			cur, err := s.GetBooking(ctx, id)
			if err != nil {
				return fmt.Errorf("load booking: %w", err)
			}
			if cur == nil {
				return &rental.NotFoundError{Kind: "booking", ID: string(id)}
			}

			next := *cur
			if in.CustomerID != nil {
				next.CustomerID = *in.CustomerID
			}
			if in.GuestName != nil {
				next.GuestName = *in.GuestName
			}
			if in.GuestPhone != nil {
				next.GuestPhone = *in.GuestPhone
			}
			if in.Notes != nil {
				next.Notes = *in.Notes
			}
			if in.CheckIn != nil {
				next.CheckIn = *in.CheckIn
			}
			if in.CheckOut != nil {
				next.CheckOut = *in.CheckOut
			}
			if in.Status != nil {
				next.Status = *in.Status
			}

			datesChanged := !next.CheckIn.Equal(cur.CheckIn) || !next.CheckOut.Equal(cur.CheckOut)
			statusChanged := next.Status != cur.Status

			if datesChanged {
				if err := validateStay(next.CheckIn, next.CheckOut); err != nil {
					return err
				}
			}
			if statusChanged {
				if err := e.checkTransition(cur.Status, next.Status); err != nil {
					return err
				}
			}
			if next.Status.IsOccupying() && (datesChanged || !cur.Status.IsOccupying()) {
				if err := ensureNoConflict(ctx, s, next.UnitID, next.CheckIn, next.CheckOut, next.ID); err != nil {
					return err
				}
			}

			switch {
			case in.TotalPrice != nil:
				next.TotalPrice = rental.NewMoney(in.TotalPrice.Amount, e.pricing.Currency)
			case in.Reprice:
				unit, err := s.GetUnit(ctx, next.UnitID)
				if err != nil {
					return fmt.Errorf("load unit: %w", err)
				}
				if unit == nil {
					return &rental.NotFoundError{Kind: "unit", ID: string(next.UnitID)}
				}
				if next.TotalPrice, err = e.pricing.ComputePrice(*unit, next.CheckIn, next.CheckOut); err != nil {
					return err
				}
			}

			next.UpdatedBy = in.UpdatedBy
			next.UpdatedAt = e.now().UTC()
			if err := s.UpdateBooking(ctx, next); err != nil {
				return storeError(err, next)
			}

			entry, err := e.record(ctx, s, next, rental.KindBookingUpdated, in.UpdatedBy, nil)
			if err != nil {
				return err
			}
			entries = append(entries, entry)
			if statusChanged {
				if kind := rental.BookingStatusKind(next.Status); kind != rental.KindBookingUpdated {
					entry, err := e.record(ctx, s, next, kind, in.UpdatedBy, statusAmount(next))
					if err != nil {
						return err
					}
					entries = append(entries, entry)
				}
			}
			updated = next
			return nil
		})
	})
	if err != nil {
		return rental.Booking{}, err
	}

	log.Printf("[Booking] Updated %s on unit %s %s (%s)", updated.ID, updated.UnitID, updated.Stay(), updated.Status)
	for _, entry := range entries {
		e.notify(ctx, entry)
	}
	return updated, nil
}

// SetStatus moves a booking to status and logs the matching activity.
// Setting the current status again is a no-op.
func (e *Engine) SetStatus(ctx context.Context, id rental.BookingID, status rental.BookingStatus, actor rental.EmployeeID) (rental.Booking, error) {
	if !status.Valid() {
		return rental.Booking{}, &rental.ValidationError{Field: "status", Message: "unknown booking status " + string(status)}
	}

	current, err := e.Get(ctx, id)
	if err != nil {
		return rental.Booking{}, err
	}
	if current.Status == status {
		return current, nil
	}
	var (
		updated rental.Booking
		entry   *rental.ActivityEntry
	)
	err = e.underUnitLock(ctx, current.UnitID, func() error {
		return e.store.WithTx(ctx, func(s rental.Store) error {
			cur, err := s.GetBooking(ctx, id)
			if err != nil {
				return fmt.Errorf("load booking: %w", err)
			}
			if cur == nil {
				return &rental.NotFoundError{Kind: "booking", ID: string(id)}
			}
			if cur.Status == status {
				updated = *cur
				return nil
			}
			if err := e.checkTransition(cur.Status, status); err != nil {
				return err
			}
			if status.IsOccupying() && !cur.Status.IsOccupying() {
				if err := ensureNoConflict(ctx, s, cur.UnitID, cur.CheckIn, cur.CheckOut, cur.ID); err != nil {
					return err
				}
			}

			next := *cur
			next.Status = status
			next.UpdatedBy = actor
			next.UpdatedAt = e.now().UTC()
			if err := s.UpdateBooking(ctx, next); err != nil {
				return storeError(err, next)
			}

			entry, err = e.record(ctx, s, next, rental.BookingStatusKind(status), actor, statusAmount(next))
			if err != nil {
				return err
			}
			updated = next
			return nil
		})
	})
	if err != nil {
		return rental.Booking{}, err
	}

	log.Printf("[Booking] %s: %s -> %s", updated.ID, current.Status, updated.Status)
	e.notify(ctx, entry)
	return updated, nil
}

// Delete removes a booking.
func (e *Engine) Delete(ctx context.Context, id rental.BookingID) error {
	return e.store.WithTx(ctx, func(s rental.Store) error {
		ok, err := s.DeleteBooking(ctx, id)
		if err != nil {
			return fmt.Errorf("delete booking: %w", err)
		}
		if !ok {
			return &rental.NotFoundError{Kind: "booking", ID: string(id)}
		}
		return nil
	})
}

// =============================================================================
// QUERIES
// =============================================================================

// Get returns one booking or a NotFoundError.
func (e *Engine) Get(ctx context.Context, id rental.BookingID) (rental.Booking, error) {
	b, err := e.store.GetBooking(ctx, id)
	if err != nil {
		return rental.Booking{}, fmt.Errorf("load booking: %w", err)
	}
	if b == nil {
		return rental.Booking{}, &rental.NotFoundError{Kind: "booking", ID: string(id)}
	}
	return *b, nil
}

// List returns bookings matching f ordered by check-in.
func (e *Engine) List(ctx context.Context, f rental.BookingFilter) ([]rental.Booking, error) {
	return e.store.ListBookings(ctx, f)
}

// Monthly returns the bookings with at least one night in the given month,
// optionally for one unit.
func (e *Engine) Monthly(ctx context.Context, year int, month time.Month, unit rental.UnitID) ([]rental.Booking, error) {
	if month < time.January || month > time.December {
		return nil, &rental.ValidationError{Field: "month", Message: "must be 1-12"}
	}
	first := calendar.NewDate(year, month, 1)
	window := calendar.NewInterval(first, first.AddMonths(1))
	return e.store.ListBookings(ctx, rental.BookingFilter{UnitID: unit, Overlapping: &window})
}

// =============================================================================
// HELPERS
// =============================================================================

func validateStay(checkIn, checkOut calendar.Date) error {
	if checkIn.IsZero() || checkOut.IsZero() {
		return &rental.ValidationError{Field: "check_in_date", Message: "check-in and check-out dates are required"}
	}
	if !checkIn.Before(checkOut) {
		return &rental.ValidationError{Field: "check_out_date", Message: "check-out must be after check-in"}
	}
	return nil
}

func findConflicts(ctx context.Context, s rental.BookingStore, unit rental.UnitID, checkIn, checkOut calendar.Date, exclude rental.BookingID) ([]rental.Booking, error) {
	found, err := s.ListBookings(ctx, rental.OverlapFilter(unit, checkIn, checkOut, exclude))
	if err != nil {
		return nil, fmt.Errorf("query overlapping bookings: %w", err)
	}
	return found, nil
}

func ensureNoConflict(ctx context.Context, s rental.BookingStore, unit rental.UnitID, checkIn, checkOut calendar.Date, exclude rental.BookingID) error {
	conflicts, err := findConflicts(ctx, s, unit, checkIn, checkOut, exclude)
	if err != nil {
		return err
	}
	if len(conflicts) > 0 {
		return &rental.ConflictError{
			UnitID:               unit,
			CheckIn:              checkIn,
			CheckOut:             checkOut,
			ConflictingBookingID: conflicts[0].ID,
		}
	}
	return nil
}

// storeError turns the storage-level overlap guard into a ConflictError.
func storeError(err error, b rental.Booking) error {
	if errors.Is(err, rental.ErrBookingOverlap) {
		return &rental.ConflictError{UnitID: b.UnitID, CheckIn: b.CheckIn, CheckOut: b.CheckOut}
	}
	return fmt.Errorf("save booking %s: %w", b.ID, err)
}

func (e *Engine) checkTransition(from, to rental.BookingStatus) error {
	if !e.strict || from.CanTransitionTo(to) {
		return nil
	}
	return &rental.ValidationError{
		Field:   "status",
		Message: fmt.Sprintf("cannot change booking status from %s to %s", from, to),
	}
}

// statusAmount is the amount logged with a status change: completed bookings
// carry their price, everything else 0.
func statusAmount(b rental.Booking) *rental.Money {
	if b.Status == rental.BookingCompleted {
		price := b.TotalPrice
		return &price
	}
	return nil
}

// record appends an activity for a booking. Actions without an actor (imports,
// scenario loading) are not attributed to anyone and are not logged.
func (e *Engine) record(ctx context.Context, s rental.ActivityStore, b rental.Booking, kind rental.ActivityKind, actor rental.EmployeeID, amount *rental.Money) (*rental.ActivityEntry, error) {
	if actor == "" {
		return nil, nil
	}
	entry, err := rental.NewActivityEntry(rental.ActivityInput{
		EmployeeID: actor,
		Kind:       kind,
		EntityType: rental.EntityBooking,
		EntityID:   string(b.ID),
		Amount:     amount,
		Metadata:   map[string]string{"unit_id": string(b.UnitID), "status": string(b.Status)},
	}, e.pricing.Currency, e.now())
	if err != nil {
		return nil, err
	}
	if err := s.AppendActivity(ctx, entry); err != nil {
		return nil, fmt.Errorf("append activity: %w", err)
	}
	return &entry, nil
}

func (e *Engine) notify(ctx context.Context, entry *rental.ActivityEntry) {
	if entry == nil || e.listener == nil {
		return
	}
	e.listener.ActivityRecorded(ctx, *entry)
}

// underUnitLock runs fn while holding the unit's lock. Callers notify
// listeners after it returns, never while the lock is held.
func (e *Engine) underUnitLock(ctx context.Context, unit rental.UnitID, fn func() error) error {
	if e.locker == nil {
		return fn()
	}
	unlock, err := e.locker.Lock(ctx, "booking:unit:"+string(unit))
	if err != nil {
		return fmt.Errorf("lock unit %s: %w", unit, err)
	}
	defer unlock()
	return fn()
}
