package rental_test

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/rental-engine/calendar"
	"github.com/warp/rental-engine/rental"
)

// =============================================================================
// STATUS CLASSIFICATION
// =============================================================================

func TestBookingStatus_Occupying(t *testing.T) {
	occupying := map[rental.BookingStatus]bool{
		rental.BookingPending:    true,
		rental.BookingConfirmed:  true,
		rental.BookingCheckedIn:  true,
		rental.BookingCheckedOut: false,
		rental.BookingCompleted:  false,
		rental.BookingCancelled:  false,
	}
	for s, want := range occupying {
		assert.Equal(t, want, s.IsOccupying(), s)
	}
	assert.Equal(t, []rental.BookingStatus{
		rental.BookingPending, rental.BookingConfirmed, rental.BookingCheckedIn,
	}, rental.OccupyingStatuses())
}

func TestUnitStatus_IsListed(t *testing.T) {
	assert.True(t, rental.UnitAvailable.IsListed())
	assert.True(t, rental.UnitBooked.IsListed())
	assert.True(t, rental.UnitCleaning.IsListed())
	assert.False(t, rental.UnitMaintenance.IsListed())
	assert.False(t, rental.UnitHidden.IsListed())
}

func TestBookingStatus_StateMachine(t *testing.T) {
	allowed := []struct{ from, to rental.BookingStatus }{
		{rental.BookingPending, rental.BookingConfirmed},
		{rental.BookingPending, rental.BookingCancelled},
		{rental.BookingConfirmed, rental.BookingCheckedIn},
		{rental.BookingConfirmed, rental.BookingCancelled},
		{rental.BookingConfirmed, rental.BookingCompleted},
		{rental.BookingCheckedIn, rental.BookingCheckedOut},
		{rental.BookingCheckedIn, rental.BookingCompleted},
		{rental.BookingCheckedIn, rental.BookingCancelled},
		{rental.BookingCheckedOut, rental.BookingCompleted},
		{rental.BookingCompleted, rental.BookingCompleted},
	}
	for _, tt := range allowed {
		assert.True(t, tt.from.CanTransitionTo(tt.to), "%s -> %s", tt.from, tt.to)
	}

	rejected := []struct{ from, to rental.BookingStatus }{
		{rental.BookingPending, rental.BookingCheckedIn},
		{rental.BookingCancelled, rental.BookingConfirmed},
		{rental.BookingCompleted, rental.BookingCancelled},
		{rental.BookingCheckedOut, rental.BookingCancelled},
		{rental.BookingConfirmed, rental.BookingPending},
	}
	for _, tt := range rejected {
		assert.False(t, tt.from.CanTransitionTo(tt.to), "%s -> %s", tt.from, tt.to)
	}

	for _, s := range rental.BookingStatuses {
		if s.IsTerminal() {
			assert.Empty(t, s.NextStatuses(), "%s is terminal", s)
		}
	}
}

func TestParseBookingStatus(t *testing.T) {
	s, err := rental.ParseBookingStatus("checked_in")
	require.NoError(t, err)
	assert.Equal(t, rental.BookingCheckedIn, s)

	_, err = rental.ParseBookingStatus("مؤكد")
	assert.ErrorIs(t, err, rental.ErrValidation)
}

func TestRole_DomainAndLevel(t *testing.T) {
	assert.Equal(t, rental.DomainCustomerFacing, rental.RoleCustomersAgent.Domain())
	assert.Equal(t, rental.DomainPropertyFacing, rental.RoleOwnersAgent.Domain())
	assert.Equal(t, rental.DomainAdministrative, rental.RoleAdmin.Domain())
	assert.Equal(t, rental.DomainAdministrative, rental.Role("intern").Domain())

	assert.True(t, rental.RoleSystemOwner.IsAdminOrHigher())
	assert.True(t, rental.RoleAdmin.IsAdminOrHigher())
	assert.False(t, rental.RoleOwnersAgent.IsAdminOrHigher())
	assert.False(t, rental.Role("intern").Valid())
}

func TestKindsForRole(t *testing.T) {
	kinds := rental.KindsForRole(rental.RoleCustomersAgent)
	assert.Contains(t, kinds, rental.KindBookingCreated)
	assert.NotContains(t, kinds, rental.KindUnitCreated)

	assert.Equal(t, rental.KindsForRole(rental.RoleAdmin), rental.KindsForRole(rental.RoleSystemOwner))
}

// =============================================================================
// MONEY
// =============================================================================

func TestMoney_RoundsToTwoPlaces(t *testing.T) {
	m := rental.MustMoney("100.005", rental.CurrencySAR)
	assert.Equal(t, "100.01", m.String())

	sum := rental.MustMoney("0.10", rental.CurrencySAR).Add(rental.MustMoney("0.20", rental.CurrencySAR))
	assert.True(t, sum.Equal(rental.MustMoney("0.30", rental.CurrencySAR)))
}

func TestMoney_JSON(t *testing.T) {
	out, err := json.Marshal(rental.NewMoneyFromInt(500, rental.CurrencySAR))
	require.NoError(t, err)
	assert.Equal(t, `"500.00"`, string(out))

	var m rental.Money
	require.NoError(t, json.Unmarshal([]byte(`150.5`), &m))
	assert.Equal(t, "150.50", m.String())

	require.NoError(t, json.Unmarshal([]byte(`"99.99"`), &m))
	assert.Equal(t, "99.99", m.String())

	assert.Error(t, json.Unmarshal([]byte(`"abc"`), &m))
}

// =============================================================================
// ACTIVITY ENTRIES
// =============================================================================

func TestNewActivityEntry_Defaults(t *testing.T) {
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	entry, err := rental.NewActivityEntry(rental.ActivityInput{
		EmployeeID: "emp-1",
		Kind:       rental.KindCustomerCreated,
	}, rental.CurrencySAR, now)
	require.NoError(t, err)

	assert.NotEmpty(t, entry.ID)
	assert.Equal(t, rental.KindCustomerCreated.Label(), entry.Description)
	assert.True(t, entry.Amount.IsZero())
	assert.Equal(t, rental.CurrencySAR, entry.Amount.Currency)
	assert.Equal(t, now, entry.CreatedAt)
}

func TestNewActivityEntry_Rejects(t *testing.T) {
	negative := rental.MustMoney("-1", rental.CurrencySAR)
	cases := []rental.ActivityInput{
		{Kind: rental.KindBookingCreated},
		{EmployeeID: "emp-1", Kind: "booking_exploded"},
		{EmployeeID: "emp-1", Kind: rental.KindBookingCreated, Amount: &negative},
	}
	for i, in := range cases {
		_, err := rental.NewActivityEntry(in, rental.CurrencySAR, time.Now())
		assert.ErrorIs(t, err, rental.ErrValidation, "case %d", i)
	}
}

// =============================================================================
// ERRORS
// =============================================================================

func TestErrorClasses(t *testing.T) {
	conflict := fmt.Errorf("create: %w", &rental.ConflictError{
		UnitID:               "unit-1",
		CheckIn:              calendar.MustParseDate("2024-03-04"),
		CheckOut:             calendar.MustParseDate("2024-03-06"),
		ConflictingBookingID: "bk-1",
	})
	assert.True(t, rental.IsConflict(conflict))
	assert.True(t, rental.IsClientError(conflict))
	assert.Contains(t, conflict.Error(), "bk-1")

	var ce *rental.ConflictError
	require.True(t, errors.As(conflict, &ce))
	assert.Equal(t, rental.BookingID("bk-1"), ce.ConflictingBookingID)

	nf := &rental.NotFoundError{Kind: "unit", ID: "u-9"}
	assert.True(t, rental.IsNotFound(nf))
	assert.Equal(t, "unit not found: u-9", nf.Error())

	assert.True(t, rental.IsForbidden(&rental.AuthorizationError{Action: "set target", Role: rental.RoleCustomersAgent}))
	assert.False(t, rental.IsClientError(errors.New("disk full")))
}

func TestTarget_Validate(t *testing.T) {
	base := rental.Target{
		EmployeeID:     "emp-1",
		Period:         rental.PeriodMonthly,
		StartDate:      calendar.MustParseDate("2024-02-01"),
		EndDate:        calendar.MustParseDate("2024-02-29"),
		TargetBookings: 10,
	}
	require.NoError(t, base.Validate())

	inverted := base
	inverted.EndDate = calendar.MustParseDate("2024-01-31")
	assert.ErrorIs(t, inverted.Validate(), rental.ErrValidation)

	negative := base
	negative.TargetNewUnits = -1
	assert.ErrorIs(t, negative.Validate(), rental.ErrValidation)
}

func TestBookingFilter_Matches(t *testing.T) {
	b := rental.Booking{
		ID:       "bk-1",
		UnitID:   "unit-1",
		Status:   rental.BookingConfirmed,
		CheckIn:  calendar.MustParseDate("2024-03-01"),
		CheckOut: calendar.MustParseDate("2024-03-05"),
	}

	assert.True(t, rental.OverlapFilter("unit-1", calendar.MustParseDate("2024-03-04"), calendar.MustParseDate("2024-03-06"), "").Matches(b))
	assert.False(t, rental.OverlapFilter("unit-1", calendar.MustParseDate("2024-03-05"), calendar.MustParseDate("2024-03-06"), "").Matches(b))
	assert.False(t, rental.OverlapFilter("unit-1", calendar.MustParseDate("2024-03-02"), calendar.MustParseDate("2024-03-03"), "bk-1").Matches(b))
	assert.False(t, rental.OverlapFilter("unit-2", calendar.MustParseDate("2024-03-02"), calendar.MustParseDate("2024-03-03"), "").Matches(b))

	b.Status = rental.BookingCancelled
	assert.False(t, rental.OverlapFilter("unit-1", calendar.MustParseDate("2024-03-02"), calendar.MustParseDate("2024-03-03"), "").Matches(b))
}
