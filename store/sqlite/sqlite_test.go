package sqlite_test

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/rental-engine/booking"
	"github.com/warp/rental-engine/calendar"
	"github.com/warp/rental-engine/rental"
	"github.com/warp/rental-engine/store/sqlite"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

var base = time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

func newStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	ctx := context.Background()
	require.NoError(t, store.SaveUnit(ctx, rental.Unit{
		ID:          "unit-1",
		Name:        "Chalet 1",
		WeekdayRate: rental.MustMoney("100", rental.CurrencySAR),
		WeekendRate: rental.MustMoney("150", rental.CurrencySAR),
		Status:      rental.UnitAvailable,
		CreatedAt:   base,
		UpdatedAt:   base,
	}))
	for _, e := range []rental.Employee{
		{ID: "agent", Username: "sara", FirstName: "Sara", Role: rental.RoleCustomersAgent, IsActive: true, CreatedAt: base},
		{ID: "owners", Username: "omar", FirstName: "Omar", Role: rental.RoleOwnersAgent, IsActive: true, CreatedAt: base},
		{ID: "root", Username: "root", FirstName: "Root", Role: rental.RoleSystemOwner, IsActive: true, IsSystemOwner: true, CreatedAt: base},
	} {
		require.NoError(t, store.SaveEmployee(ctx, e))
	}
	return store
}

func booked(id rental.BookingID, in, out string, status rental.BookingStatus) rental.Booking {
	return rental.Booking{
		ID:         id,
		UnitID:     "unit-1",
		GuestName:  "Guest",
		CheckIn:    calendar.MustParseDate(in),
		CheckOut:   calendar.MustParseDate(out),
		TotalPrice: rental.MustMoney("300", rental.CurrencySAR),
		Status:     status,
		CreatedAt:  base,
		UpdatedAt:  base,
	}
}

func entry(emp rental.EmployeeID, kind rental.ActivityKind, amount string, at time.Time) rental.ActivityEntry {
	return rental.ActivityEntry{
		ID:          rental.ActivityID(rental.NewID()),
		EmployeeID:  emp,
		Kind:        kind,
		EntityType:  rental.EntityBooking,
		Description: kind.Label(),
		Amount:      rental.MustMoney(amount, rental.CurrencySAR),
		CreatedAt:   at,
	}
}

// =============================================================================
// UNITS AND EMPLOYEES
// =============================================================================

func TestUnit_RoundTripsRates(t *testing.T) {
	store := newStore(t)

	u, err := store.GetUnit(context.Background(), "unit-1")
	require.NoError(t, err)
	require.NotNil(t, u)

	assert.Equal(t, "Chalet 1", u.Name)
	assert.True(t, u.WeekendRate.Amount.Equal(decimal.NewFromInt(150)))
	assert.Equal(t, rental.CurrencySAR, u.WeekdayRate.Currency)
	assert.True(t, u.CreatedAt.Equal(base))

	missing, err := store.GetUnit(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestListEmployees_Filters(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	require.NoError(t, store.SaveEmployee(ctx, rental.Employee{
		ID: "gone", Username: "gone", FirstName: "Gone", Role: rental.RoleAdmin, CreatedAt: base,
	}))

	all, err := store.ListEmployees(ctx, rental.EmployeeFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 4)

	active, err := store.ListEmployees(ctx, rental.EmployeeFilter{ActiveOnly: true, ExcludeSystemOwner: true})
	require.NoError(t, err)
	require.Len(t, active, 2)
	assert.Equal(t, rental.EmployeeID("agent"), active[0].ID)
	assert.Equal(t, rental.EmployeeID("owners"), active[1].ID)
}

// =============================================================================
// BOOKINGS AND THE OVERLAP GUARD
// =============================================================================

func TestInsertBooking_TriggerRejectsOverlap(t *testing.T) {
	// GIVEN: A confirmed booking for 10-15 March
	store := newStore(t)
	ctx := context.Background()
	require.NoError(t, store.InsertBooking(ctx, booked("b1", "2024-03-10", "2024-03-15", rental.BookingConfirmed)))

	// WHEN: Inserting a stay that shares the night of the 14th
	err := store.InsertBooking(ctx, booked("b2", "2024-03-14", "2024-03-16", rental.BookingPending))

	// THEN: The storage guard rejects it
	assert.ErrorIs(t, err, rental.ErrBookingOverlap)
}

func TestInsertBooking_AdjacentAndCancelledAllowed(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	require.NoError(t, store.InsertBooking(ctx, booked("b1", "2024-03-10", "2024-03-15", rental.BookingConfirmed)))

	// Check-out day equals the next check-in day
	require.NoError(t, store.InsertBooking(ctx, booked("b2", "2024-03-15", "2024-03-17", rental.BookingConfirmed)))

	// Cancelled stays never occupy the unit
	require.NoError(t, store.InsertBooking(ctx, booked("b3", "2024-03-11", "2024-03-12", rental.BookingCancelled)))

	list, err := store.ListBookings(ctx, rental.BookingFilter{UnitID: "unit-1"})
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, rental.BookingID("b1"), list[0].ID)
	assert.Equal(t, rental.BookingID("b3"), list[1].ID)
	assert.Equal(t, rental.BookingID("b2"), list[2].ID)
}

func TestUpdateBooking_TriggerRejectsReoccupying(t *testing.T) {
	// GIVEN: A cancelled stay overlapping a confirmed one
	store := newStore(t)
	ctx := context.Background()
	require.NoError(t, store.InsertBooking(ctx, booked("b1", "2024-03-10", "2024-03-15", rental.BookingConfirmed)))
	cancelled := booked("b2", "2024-03-12", "2024-03-13", rental.BookingCancelled)
	require.NoError(t, store.InsertBooking(ctx, cancelled))

	// WHEN: Moving it back to pending
	cancelled.Status = rental.BookingPending
	err := store.UpdateBooking(ctx, cancelled)

	// THEN: Rejected, and the stored row is unchanged
	assert.ErrorIs(t, err, rental.ErrBookingOverlap)
	got, err := store.GetBooking(ctx, "b2")
	require.NoError(t, err)
	assert.Equal(t, rental.BookingCancelled, got.Status)
}

func TestUpdateBooking_MissingIsNotFound(t *testing.T) {
	store := newStore(t)

	err := store.UpdateBooking(context.Background(), booked("ghost", "2024-03-10", "2024-03-11", rental.BookingConfirmed))

	var nf *rental.NotFoundError
	assert.True(t, errors.As(err, &nf))
}

func TestListBookings_OverlapFilter(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	require.NoError(t, store.InsertBooking(ctx, booked("b1", "2024-03-01", "2024-03-05", rental.BookingConfirmed)))
	require.NoError(t, store.InsertBooking(ctx, booked("b2", "2024-03-05", "2024-03-08", rental.BookingCheckedIn)))
	require.NoError(t, store.InsertBooking(ctx, booked("b3", "2024-03-04", "2024-03-06", rental.BookingCancelled)))

	list, err := store.ListBookings(ctx, rental.OverlapFilter("unit-1",
		calendar.MustParseDate("2024-03-04"), calendar.MustParseDate("2024-03-05"), ""))
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, rental.BookingID("b1"), list[0].ID)

	list, err = store.ListBookings(ctx, rental.OverlapFilter("unit-1",
		calendar.MustParseDate("2024-03-04"), calendar.MustParseDate("2024-03-06"), "b1"))
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, rental.BookingID("b2"), list[0].ID)
}

func TestDeleteBooking(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	require.NoError(t, store.InsertBooking(ctx, booked("b1", "2024-03-01", "2024-03-05", rental.BookingConfirmed)))

	removed, err := store.DeleteBooking(ctx, "b1")
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = store.DeleteBooking(ctx, "b1")
	require.NoError(t, err)
	assert.False(t, removed)
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

func TestWithTx_RollsBackOnError(t *testing.T) {
	// GIVEN: A transaction that inserts a booking and an entry, then fails
	store := newStore(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := store.WithTx(ctx, func(tx rental.Store) error {
		if err := tx.InsertBooking(ctx, booked("b1", "2024-03-01", "2024-03-05", rental.BookingConfirmed)); err != nil {
			return err
		}
		if err := tx.AppendActivity(ctx, entry("agent", rental.KindBookingCreated, "300", base)); err != nil {
			return err
		}
		return boom
	})

	// THEN: Neither write survives
	assert.ErrorIs(t, err, boom)
	b, err := store.GetBooking(ctx, "b1")
	require.NoError(t, err)
	assert.Nil(t, b)
	n, err := store.CountActivities(ctx, rental.ActivityQuery{})
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestWithTx_ReadsOwnWrites(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	err := store.WithTx(ctx, func(tx rental.Store) error {
		if err := tx.InsertBooking(ctx, booked("b1", "2024-03-01", "2024-03-05", rental.BookingConfirmed)); err != nil {
			return err
		}
		got, err := tx.GetBooking(ctx, "b1")
		if err != nil {
			return err
		}
		assert.NotNil(t, got)
		return nil
	})
	require.NoError(t, err)
}

// =============================================================================
// ACTIVITY LOG
// =============================================================================

func TestActivity_CountSumAndRole(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	require.NoError(t, store.AppendActivity(ctx, entry("agent", rental.KindBookingCreated, "250.50", base)))
	require.NoError(t, store.AppendActivity(ctx, entry("agent", rental.KindBookingCreated, "100.25", base.Add(time.Hour))))
	require.NoError(t, store.AppendActivity(ctx, entry("agent", rental.KindCustomerCreated, "0", base.Add(2*time.Hour))))
	require.NoError(t, store.AppendActivity(ctx, entry("owners", rental.KindUnitCreated, "0", base.Add(3*time.Hour))))

	q := rental.ActivityQuery{EmployeeID: "agent", Kinds: []rental.ActivityKind{rental.KindBookingCreated}}
	n, err := store.CountActivities(ctx, q)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	sum, err := store.SumActivityAmount(ctx, q)
	require.NoError(t, err)
	assert.True(t, sum.Equal(decimal.RequireFromString("350.75")), sum.String())

	// [From, To) excludes the entry at To
	n, err = store.CountActivities(ctx, rental.ActivityQuery{From: base, To: base.Add(2 * time.Hour)})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = store.CountActivities(ctx, rental.ActivityQuery{Role: rental.RoleOwnersAgent})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestListActivities_NewestFirstWithPaging(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		e := entry("agent", rental.KindBookingCreated, "10", base.Add(time.Duration(i)*time.Minute))
		if i == 0 {
			e.Metadata = map[string]string{"unit_id": "unit-1"}
		}
		require.NoError(t, store.AppendActivity(ctx, e))
	}

	page, total, err := store.ListActivities(ctx, rental.ActivityQuery{EmployeeID: "agent"}, 0, 2)
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	require.Len(t, page, 2)
	assert.True(t, page[0].CreatedAt.Equal(base.Add(4*time.Minute)))
	assert.True(t, page[1].CreatedAt.Equal(base.Add(3*time.Minute)))

	last, total, err := store.ListActivities(ctx, rental.ActivityQuery{EmployeeID: "agent"}, 4, 2)
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	require.Len(t, last, 1)
	assert.Equal(t, "unit-1", last[0].Metadata["unit_id"])

	all, _, err := store.ListActivities(ctx, rental.ActivityQuery{}, 0, 0)
	require.NoError(t, err)
	assert.Len(t, all, 5)
}

// =============================================================================
// TARGETS
// =============================================================================

func target(id rental.TargetID, start, end string, created time.Time) rental.Target {
	return rental.Target{
		ID:                   id,
		EmployeeID:           "agent",
		Period:               rental.PeriodMonthly,
		StartDate:            calendar.MustParseDate(start),
		EndDate:              calendar.MustParseDate(end),
		TargetBookings:       10,
		TargetBookingRevenue: rental.MustMoney("5000", rental.CurrencySAR),
		TargetCompletionRate: decimal.NewFromInt(80),
		SetBy:                "root",
		IsActive:             true,
		CreatedAt:            created,
		UpdatedAt:            created,
	}
}

func TestTargets_ActiveLookupAndDeactivate(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	require.NoError(t, store.InsertTarget(ctx, target("t-feb", "2024-02-01", "2024-02-29", base)))
	require.NoError(t, store.InsertTarget(ctx, target("t-mar", "2024-03-01", "2024-03-31", base.Add(time.Minute))))

	active, err := store.ActiveTarget(ctx, "agent", calendar.MustParseDate("2024-03-15"))
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, rental.TargetID("t-mar"), active.ID)
	assert.True(t, active.TargetBookingRevenue.Amount.Equal(decimal.NewFromInt(5000)))
	assert.Equal(t, rental.CurrencySAR, active.TargetBookingRevenue.Currency)
	assert.True(t, active.TargetCompletionRate.Equal(decimal.NewFromInt(80)))

	// Only targets still running on or after the date are deactivated
	stamp := base.Add(time.Hour)
	n, err := store.DeactivateTargets(ctx, "agent", calendar.MustParseDate("2024-03-01"), stamp)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	stopped, err := store.GetTarget(ctx, "t-mar")
	require.NoError(t, err)
	assert.False(t, stopped.IsActive)
	assert.True(t, stamp.Equal(stopped.UpdatedAt))

	active, err = store.ActiveTarget(ctx, "agent", calendar.MustParseDate("2024-03-15"))
	require.NoError(t, err)
	assert.Nil(t, active)

	live, err := store.ListTargets(ctx, "agent", false)
	require.NoError(t, err)
	require.Len(t, live, 1)
	assert.Equal(t, rental.TargetID("t-feb"), live[0].ID)

	all, err := store.ListTargets(ctx, "agent", true)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, rental.TargetID("t-mar"), all[0].ID)
}

func TestUpdateTarget(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	tg := target("t-1", "2024-03-01", "2024-03-31", base)
	require.NoError(t, store.InsertTarget(ctx, tg))

	tg.TargetBookings = 20
	tg.Notes = "stretch"
	require.NoError(t, store.UpdateTarget(ctx, tg))

	got, err := store.GetTarget(ctx, "t-1")
	require.NoError(t, err)
	assert.Equal(t, 20, got.TargetBookings)
	assert.Equal(t, "stretch", got.Notes)

	var nf *rental.NotFoundError
	assert.True(t, errors.As(store.UpdateTarget(ctx, target("ghost", "2024-03-01", "2024-03-31", base)), &nf))
}

// =============================================================================
// CORRUPT ROWS
// =============================================================================

func TestScan_CorruptValuesAreErrors(t *testing.T) {
	// GIVEN: A file database holding a unit, an employee and a target
	path := filepath.Join(t.TempDir(), "rental.db")
	store, err := sqlite.New(path)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	ctx := context.Background()
	require.NoError(t, store.SaveUnit(ctx, rental.Unit{
		ID:          "unit-1",
		Name:        "Chalet 1",
		WeekdayRate: rental.MustMoney("100", rental.CurrencySAR),
		WeekendRate: rental.MustMoney("150", rental.CurrencySAR),
		Status:      rental.UnitAvailable,
		CreatedAt:   base,
		UpdatedAt:   base,
	}))
	require.NoError(t, store.SaveEmployee(ctx, rental.Employee{
		ID: "agent", Username: "sara", FirstName: "Sara", Role: rental.RoleCustomersAgent, IsActive: true, CreatedAt: base,
	}))
	require.NoError(t, store.SaveEmployee(ctx, rental.Employee{
		ID: "root", Username: "root", FirstName: "Root", Role: rental.RoleSystemOwner, IsActive: true, IsSystemOwner: true, CreatedAt: base,
	}))
	require.NoError(t, store.InsertTarget(ctx, target("t-1", "2024-03-01", "2024-03-31", base)))

	// WHEN: Another writer leaves values that do not parse
	raw, err := sql.Open("sqlite3", path+"?_busy_timeout=5000")
	require.NoError(t, err)
	defer raw.Close()
	for _, stmt := range []string{
		`UPDATE units SET weekday_rate = 'lots' WHERE id = 'unit-1'`,
		`UPDATE employees SET created_at = 'yesterday' WHERE id = 'agent'`,
		`UPDATE employee_targets SET target_completion_rate = 'most' WHERE id = 't-1'`,
	} {
		_, err := raw.ExecContext(ctx, stmt)
		require.NoError(t, err, stmt)
	}

	// THEN: Reads fail instead of returning zero values
	_, err = store.GetUnit(ctx, "unit-1")
	assert.ErrorContains(t, err, "invalid amount")

	_, err = store.GetEmployee(ctx, "agent")
	assert.ErrorContains(t, err, "invalid timestamp")

	_, err = store.GetTarget(ctx, "t-1")
	assert.ErrorContains(t, err, "invalid completion rate")

	// AND: Untouched rows still read
	root, err := store.GetEmployee(ctx, "root")
	require.NoError(t, err)
	assert.Equal(t, "root", root.Username)
}

// =============================================================================
// ENGINE ON SQLITE
// =============================================================================

func TestBookingEngine_OnSQLite(t *testing.T) {
	// GIVEN: The booking engine running on the SQLite store
	store := newStore(t)
	ctx := context.Background()
	engine := booking.NewEngine(store, booking.Config{Pricing: booking.DefaultPricing(rental.CurrencySAR)},
		booking.WithClock(func() time.Time { return base }))

	// WHEN: Booking Thu 4 Jan to Mon 8 Jan, then an overlapping stay
	b, err := engine.Create(ctx, booking.CreateInput{
		UnitID:    "unit-1",
		GuestName: "Guest",
		CheckIn:   calendar.MustParseDate("2024-01-04"),
		CheckOut:  calendar.MustParseDate("2024-01-08"),
		CreatedBy: "agent",
	})
	require.NoError(t, err)
	_, err = engine.Create(ctx, booking.CreateInput{
		UnitID:    "unit-1",
		GuestName: "Other",
		CheckIn:   calendar.MustParseDate("2024-01-07"),
		CheckOut:  calendar.MustParseDate("2024-01-09"),
		CreatedBy: "agent",
	})

	// THEN: The first is priced with two weekend nights, the second conflicts
	assert.Equal(t, "500.00", b.TotalPrice.String())
	var conflict *rental.ConflictError
	require.True(t, errors.As(err, &conflict))
	assert.Equal(t, b.ID, conflict.ConflictingBookingID)

	n, err := store.CountActivities(ctx, rental.ActivityQuery{EmployeeID: "agent"})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
