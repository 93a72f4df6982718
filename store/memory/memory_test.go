package memory_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/rental-engine/calendar"
	"github.com/warp/rental-engine/rental"
	"github.com/warp/rental-engine/store/memory"
)

func booking(id, unit, in, out string, status rental.BookingStatus) rental.Booking {
	return rental.Booking{
		ID:       rental.BookingID(id),
		UnitID:   rental.UnitID(unit),
		CheckIn:  calendar.MustParseDate(in),
		CheckOut: calendar.MustParseDate(out),
		Status:   status,
	}
}

func TestWithTx_RollsBackOnError(t *testing.T) {
	// GIVEN: An empty store
	m := memory.New()
	ctx := context.Background()

	// WHEN: A transaction writes and then fails
	boom := errors.New("boom")
	err := m.WithTx(ctx, func(s rental.Store) error {
		require.NoError(t, s.InsertBooking(ctx, booking("bk-1", "u-1", "2024-03-01", "2024-03-05", rental.BookingConfirmed)))
		require.NoError(t, s.AppendActivity(ctx, rental.ActivityEntry{ID: "a-1", EmployeeID: "emp-1", Kind: rental.KindBookingCreated}))
		return boom
	})

	// THEN: Nothing is visible
	assert.ErrorIs(t, err, boom)
	got, err := m.GetBooking(ctx, "bk-1")
	require.NoError(t, err)
	assert.Nil(t, got)
	n, err := m.CountActivities(ctx, rental.ActivityQuery{})
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestInsertBooking_GuardsOverlap(t *testing.T) {
	m := memory.New()
	ctx := context.Background()

	require.NoError(t, m.InsertBooking(ctx, booking("bk-1", "u-1", "2024-03-01", "2024-03-05", rental.BookingConfirmed)))

	err := m.InsertBooking(ctx, booking("bk-2", "u-1", "2024-03-04", "2024-03-06", rental.BookingPending))
	assert.ErrorIs(t, err, rental.ErrBookingOverlap)

	// Adjacent, other unit and non-occupying bookings pass.
	assert.NoError(t, m.InsertBooking(ctx, booking("bk-3", "u-1", "2024-03-05", "2024-03-06", rental.BookingConfirmed)))
	assert.NoError(t, m.InsertBooking(ctx, booking("bk-4", "u-2", "2024-03-02", "2024-03-04", rental.BookingConfirmed)))
	assert.NoError(t, m.InsertBooking(ctx, booking("bk-5", "u-1", "2024-03-02", "2024-03-04", rental.BookingCancelled)))
}

func TestListActivities_NewestFirstWithPaging(t *testing.T) {
	m := memory.New()
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		require.NoError(t, m.AppendActivity(ctx, rental.ActivityEntry{
			ID:         rental.ActivityID(rune('a' + i)),
			EmployeeID: "emp-1",
			Kind:       rental.KindCustomerCreated,
			CreatedAt:  base.Add(time.Duration(i) * time.Hour),
		}))
	}

	page, total, err := m.ListActivities(ctx, rental.ActivityQuery{EmployeeID: "emp-1"}, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	require.Len(t, page, 2)
	assert.Equal(t, rental.ActivityID("d"), page[0].ID)
	assert.Equal(t, rental.ActivityID("c"), page[1].ID)
}

func TestDeactivateTargets(t *testing.T) {
	m := memory.New()
	ctx := context.Background()

	old := rental.Target{ID: "t-old", EmployeeID: "emp-1", IsActive: true,
		StartDate: calendar.MustParseDate("2024-01-01"), EndDate: calendar.MustParseDate("2024-01-31")}
	overlapping := rental.Target{ID: "t-jan-feb", EmployeeID: "emp-1", IsActive: true,
		StartDate: calendar.MustParseDate("2024-01-15"), EndDate: calendar.MustParseDate("2024-02-15")}
	require.NoError(t, m.InsertTarget(ctx, old))
	require.NoError(t, m.InsertTarget(ctx, overlapping))

	stamp := time.Date(2024, 2, 1, 8, 0, 0, 0, time.UTC)
	n, err := m.DeactivateTargets(ctx, "emp-1", calendar.MustParseDate("2024-02-01"), stamp)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := m.GetTarget(ctx, "t-old")
	require.NoError(t, err)
	assert.True(t, got.IsActive)
	got, err = m.GetTarget(ctx, "t-jan-feb")
	require.NoError(t, err)
	assert.False(t, got.IsActive)
	assert.Equal(t, stamp, got.UpdatedAt)
}
