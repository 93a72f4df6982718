package performance_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/rental-engine/calendar"
	"github.com/warp/rental-engine/performance"
	"github.com/warp/rental-engine/rental"
	"github.com/warp/rental-engine/store/memory"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

var riyadh = time.FixedZone("AST", 3*60*60)

type fixture struct {
	store    *memory.Memory
	clock    time.Time
	activity *performance.ActivityLog
	targets  *performance.Targets
	engine   *performance.Engine
}

func (f *fixture) now() time.Time { return f.clock }

// newFixture starts on Wednesday 2024-05-15 10:00 local time with four
// employees: a customers agent, an owners agent, an admin and the system owner.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store: memory.New(),
		clock: time.Date(2024, 5, 15, 10, 0, 0, 0, riyadh),
	}
	cfg := performance.Config{Currency: rental.CurrencySAR, Location: riyadh}
	clock := performance.WithClock(f.now)
	f.activity = performance.NewActivityLog(f.store, cfg, clock)
	f.targets = performance.NewTargets(f.store, cfg, clock)
	f.engine = performance.NewEngine(f.store, f.activity, f.targets, cfg, clock)

	ctx := context.Background()
	for _, e := range []rental.Employee{
		{ID: "agent", FirstName: "Sara", LastName: "Ali", Role: rental.RoleCustomersAgent, IsActive: true},
		{ID: "owners", FirstName: "Omar", Role: rental.RoleOwnersAgent, IsActive: true},
		{ID: "admin", FirstName: "Huda", Role: rental.RoleAdmin, IsActive: true},
		{ID: "root", FirstName: "Root", Role: rental.RoleSystemOwner, IsActive: true, IsSystemOwner: true},
		{ID: "gone", FirstName: "Former", Role: rental.RoleCustomersAgent, IsActive: false},
	} {
		require.NoError(t, f.store.SaveEmployee(ctx, e))
	}
	return f
}

func (f *fixture) record(t *testing.T, emp rental.EmployeeID, kind rental.ActivityKind, amount string) {
	t.Helper()
	in := rental.ActivityInput{EmployeeID: emp, Kind: kind}
	if amount != "" {
		m := rental.MustMoney(amount, rental.CurrencySAR)
		in.Amount = &m
	}
	_, err := f.activity.Record(context.Background(), in)
	require.NoError(t, err)
}

func d(s string) calendar.Date { return calendar.MustParseDate(s) }

// =============================================================================
// PURE SCORING
// =============================================================================

func TestCompletionRate(t *testing.T) {
	assert.Equal(t, 0.0, performance.CompletionRate(0, 0))
	assert.Equal(t, 66.67, performance.CompletionRate(2, 1))
	assert.Equal(t, 100.0, performance.CompletionRate(3, 0))
}

func TestAchievement_CapsEachGoalBeforeAveraging(t *testing.T) {
	customer := performance.RoleStats{
		Domain: rental.DomainCustomerFacing,
		Customer: &performance.CustomerStats{
			BookingsCreated: 25,
			NewCustomers:    1,
			BookingRevenue:  rental.MustMoney("0", rental.CurrencySAR),
		},
	}

	// 25 of 10 bookings scores 100, never 250.
	assert.Equal(t, 100.0, performance.Achievement(rental.Target{TargetBookings: 10}, customer))

	// (100 + 25) / 2
	assert.Equal(t, 62.5, performance.Achievement(rental.Target{TargetBookings: 10, TargetNewCustomers: 4}, customer))

	// Goals of another domain are ignored.
	assert.Equal(t, 0.0, performance.Achievement(rental.Target{TargetNewUnits: 5}, customer))

	// No goals at all.
	assert.Equal(t, 0.0, performance.Achievement(rental.Target{}, customer))
	assert.Equal(t, 0.0, performance.Achievement(rental.Target{TargetBookings: 3}, performance.RoleStats{Domain: rental.DomainAdministrative}))
}

func TestAchievement_RevenueAndCompletionRate(t *testing.T) {
	stats := performance.RoleStats{
		Domain: rental.DomainCustomerFacing,
		Customer: &performance.CustomerStats{
			BookingRevenue: rental.MustMoney("1500", rental.CurrencySAR),
			CompletionRate: 40,
		},
	}
	target := rental.Target{
		TargetBookingRevenue: rental.MustMoney("2000", rental.CurrencySAR),
		TargetCompletionRate: decimal.NewFromInt(80),
	}
	// (75 + 50) / 2
	assert.Equal(t, 62.5, performance.Achievement(target, stats))
}

// =============================================================================
// ACTIVITY LOG
// =============================================================================

func TestRecord_DefaultsAndValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	entry, err := f.activity.Record(ctx, rental.ActivityInput{EmployeeID: "agent", Kind: rental.KindCustomerCreated})
	require.NoError(t, err)
	assert.Equal(t, "Customer added", entry.Description)
	assert.True(t, entry.Amount.IsZero())

	negative := rental.MustMoney("-10", rental.CurrencySAR)
	_, err = f.activity.Record(ctx, rental.ActivityInput{EmployeeID: "agent", Kind: rental.KindBookingCreated, Amount: &negative})
	assert.ErrorIs(t, err, rental.ErrValidation)

	_, err = f.activity.Record(ctx, rental.ActivityInput{EmployeeID: "agent", Kind: "coffee_made"})
	assert.ErrorIs(t, err, rental.ErrValidation)
}

func TestCount_UsesLocalCalendarDays(t *testing.T) {
	// GIVEN: An entry at 01:30 local time, which is still the previous day in UTC
	f := newFixture(t)
	ctx := context.Background()
	f.clock = time.Date(2024, 5, 14, 22, 30, 0, 0, time.UTC)
	f.record(t, "agent", rental.KindBookingCreated, "250")

	// WHEN: Counting by local date
	on15, err := f.activity.Count(ctx, "agent", d("2024-05-15"), d("2024-05-15"))
	require.NoError(t, err)
	on14, err := f.activity.Count(ctx, "agent", d("2024-05-14"), d("2024-05-14"))
	require.NoError(t, err)

	// THEN: It belongs to the 15th
	assert.Equal(t, 1, on15)
	assert.Equal(t, 0, on14)

	sum, err := f.activity.SumAmount(ctx, "agent", d("2024-05-01"), d("2024-05-31"), rental.KindBookingCreated)
	require.NoError(t, err)
	assert.Equal(t, "250.00", sum.String())

	_, err = f.activity.Count(ctx, "agent", d("2024-05-31"), d("2024-05-01"))
	assert.ErrorIs(t, err, rental.ErrValidation)
}

func TestList_PagingAndRoleFilter(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		f.clock = f.clock.Add(time.Minute)
		f.record(t, "agent", rental.KindCustomerCreated, "")
	}
	f.clock = f.clock.Add(time.Minute)
	f.record(t, "owners", rental.KindUnitCreated, "")

	all, err := f.activity.List(ctx, performance.ActivityFilter{})
	require.NoError(t, err)
	assert.Equal(t, 4, all.TotalCount)
	assert.Equal(t, 1, all.Page)
	assert.Equal(t, performance.DefaultPageSize, all.PageSize)
	assert.Equal(t, rental.KindUnitCreated, all.Activities[0].Kind, "newest first")

	agents, err := f.activity.List(ctx, performance.ActivityFilter{Role: rental.RoleCustomersAgent, Page: 2, PageSize: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, agents.TotalCount)
	assert.Len(t, agents.Activities, 1)

	for _, bad := range []performance.ActivityFilter{{Page: -1}, {PageSize: 101}, {Role: "intern"}} {
		_, err := f.activity.List(ctx, bad)
		assert.ErrorIs(t, err, rental.ErrValidation)
	}
}

// =============================================================================
// TARGETS
// =============================================================================

func TestSetTarget_SupersedesAndLogs(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.targets.SetTarget(ctx, performance.SetTargetInput{
		EmployeeID: "agent", SetBy: "admin", Period: rental.PeriodMonthly,
		StartDate: d("2024-05-01"), EndDate: d("2024-05-31"), TargetBookings: 10,
	})
	require.NoError(t, err)

	f.clock = f.clock.Add(time.Hour)
	second, err := f.targets.SetTarget(ctx, performance.SetTargetInput{
		EmployeeID: "agent", SetBy: "admin", Period: rental.PeriodMonthly,
		StartDate: d("2024-05-10"), EndDate: d("2024-06-09"), TargetBookings: 12,
	})
	require.NoError(t, err)

	active, err := f.targets.GetActiveTarget(ctx, "agent", d("2024-05-15"))
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, second.ID, active.ID)

	old, err := f.targets.Get(ctx, first.ID)
	require.NoError(t, err)
	assert.False(t, old.IsActive)
	// The superseded target is stamped by the injected clock, not the wall clock.
	assert.True(t, f.clock.Equal(old.UpdatedAt), "updated_at %s", old.UpdatedAt)

	none, err := f.targets.GetActiveTarget(ctx, "agent", d("2024-07-01"))
	require.NoError(t, err)
	assert.Nil(t, none)

	// target_set is attributed to the setter.
	n, err := f.activity.Count(ctx, "admin", d("2024-05-15"), d("2024-05-15"), rental.KindTargetSet)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	list, err := f.targets.List(ctx, "agent", true)
	require.NoError(t, err)
	assert.Len(t, list, 2)
	list, err = f.targets.List(ctx, "agent", false)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestSetTarget_Rejects(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	base := performance.SetTargetInput{
		EmployeeID: "agent", SetBy: "admin", Period: rental.PeriodMonthly,
		StartDate: d("2024-05-01"), EndDate: d("2024-05-31"),
	}

	inverted := base
	inverted.EndDate = d("2024-04-30")
	_, err := f.targets.SetTarget(ctx, inverted)
	assert.ErrorIs(t, err, rental.ErrValidation)

	negative := base
	negative.TargetBookings = -1
	_, err = f.targets.SetTarget(ctx, negative)
	assert.ErrorIs(t, err, rental.ErrValidation)

	unknown := base
	unknown.EmployeeID = "nobody"
	_, err = f.targets.SetTarget(ctx, unknown)
	assert.ErrorIs(t, err, rental.ErrNotFound)

	// Nothing was logged for the failures.
	n, err := f.activity.Count(ctx, "admin", d("2024-05-15"), d("2024-05-15"))
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestUpdateAndDeactivateTarget(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	target, err := f.targets.SetTarget(ctx, performance.SetTargetInput{
		EmployeeID: "owners", SetBy: "admin", Period: rental.PeriodMonthly,
		StartDate: d("2024-05-01"), EndDate: d("2024-05-31"), TargetNewUnits: 4,
	})
	require.NoError(t, err)

	units := 8
	updated, err := f.targets.Update(ctx, target.ID, performance.TargetUpdate{TargetNewUnits: &units})
	require.NoError(t, err)
	assert.Equal(t, 8, updated.TargetNewUnits)

	bad := d("2024-04-01")
	_, err = f.targets.Update(ctx, target.ID, performance.TargetUpdate{EndDate: &bad})
	assert.ErrorIs(t, err, rental.ErrValidation)

	deactivated, err := f.targets.Deactivate(ctx, target.ID)
	require.NoError(t, err)
	assert.False(t, deactivated.IsActive)

	_, err = f.targets.Deactivate(ctx, "missing")
	assert.ErrorIs(t, err, rental.ErrNotFound)
}

// =============================================================================
// ENGINE
// =============================================================================

func TestRoleStats_ByDomain(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.record(t, "agent", rental.KindBookingCreated, "300")
	f.record(t, "agent", rental.KindBookingCreated, "200")
	f.record(t, "agent", rental.KindBookingCompleted, "300")
	f.record(t, "agent", rental.KindBookingCompleted, "200")
	f.record(t, "agent", rental.KindBookingCancelled, "")
	f.record(t, "agent", rental.KindCustomerCreated, "")
	f.record(t, "owners", rental.KindUnitCreated, "")

	stats, err := f.engine.RoleStats(ctx, "agent", rental.RoleCustomersAgent, d("2024-05-01"), d("2024-05-31"))
	require.NoError(t, err)
	require.NotNil(t, stats.Customer)
	assert.Nil(t, stats.Property)
	assert.Equal(t, 2, stats.Customer.BookingsCreated)
	assert.Equal(t, "500.00", stats.Customer.BookingRevenue.String(), "revenue sums booking_created only")
	assert.Equal(t, 66.67, stats.Customer.CompletionRate)
	assert.Equal(t, 1, stats.Customer.NewCustomers)

	owner, err := f.engine.RoleStats(ctx, "owners", rental.RoleOwnersAgent, d("2024-05-01"), d("2024-05-31"))
	require.NoError(t, err)
	require.NotNil(t, owner.Property)
	assert.Equal(t, 1, owner.Property.NewUnits)

	admin, err := f.engine.RoleStats(ctx, "admin", rental.RoleAdmin, d("2024-05-01"), d("2024-05-31"))
	require.NoError(t, err)
	assert.Equal(t, rental.DomainAdministrative, admin.Domain)
	assert.Nil(t, admin.Customer)
	assert.Nil(t, admin.Property)
}

func TestEmployeeDashboard(t *testing.T) {
	// GIVEN: An agent with a target of 4 bookings who made 2 this month
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.targets.SetTarget(ctx, performance.SetTargetInput{
		EmployeeID: "agent", SetBy: "admin", Period: rental.PeriodMonthly,
		StartDate: d("2024-05-01"), EndDate: d("2024-05-31"), TargetBookings: 4,
	})
	require.NoError(t, err)

	f.clock = time.Date(2024, 5, 2, 12, 0, 0, 0, riyadh)
	f.record(t, "agent", rental.KindBookingCreated, "100")
	f.clock = time.Date(2024, 5, 15, 9, 0, 0, 0, riyadh)
	f.record(t, "agent", rental.KindBookingCreated, "100")
	f.clock = time.Date(2024, 5, 15, 10, 0, 0, 0, riyadh)

	// WHEN: Loading the dashboard
	dash, err := f.engine.EmployeeDashboard(ctx, "agent")
	require.NoError(t, err)

	// THEN: Windows, target and score line up
	assert.Equal(t, "Sara Ali", dash.EmployeeName)
	assert.Equal(t, 1, dash.ActivitySummary.Today)
	assert.Equal(t, 1, dash.ActivitySummary.Week)
	assert.Equal(t, 2, dash.ActivitySummary.Month)
	require.NotNil(t, dash.ActivitySummary.LastActivityAt)
	require.NotNil(t, dash.RoleStats)
	assert.Equal(t, 2, dash.RoleStats.Month.Customer.BookingsCreated)
	require.NotNil(t, dash.CurrentTarget)
	assert.Equal(t, 50.0, dash.TargetAchievement)
	assert.Len(t, dash.RecentActivities, 2)

	_, err = f.engine.EmployeeDashboard(ctx, "nobody")
	assert.ErrorIs(t, err, rental.ErrNotFound)

	admin, err := f.engine.EmployeeDashboard(ctx, "admin")
	require.NoError(t, err)
	assert.Nil(t, admin.RoleStats)
	assert.Nil(t, admin.CurrentTarget)
	assert.Equal(t, 1, admin.ActivitySummary.Month, "target_set is logged for the admin")
}

func TestTeamOverview(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	set := func(in performance.SetTargetInput) {
		in.SetBy, in.Period = "root", rental.PeriodMonthly
		in.StartDate, in.EndDate = d("2024-05-01"), d("2024-05-31")
		_, err := f.targets.SetTarget(ctx, in)
		require.NoError(t, err)
	}
	set(performance.SetTargetInput{EmployeeID: "agent", TargetBookings: 2})
	set(performance.SetTargetInput{EmployeeID: "owners", TargetNewUnits: 4})

	f.record(t, "agent", rental.KindBookingCreated, "100")
	f.record(t, "agent", rental.KindBookingCreated, "100")
	f.record(t, "owners", rental.KindUnitCreated, "")
	f.record(t, "admin", rental.KindUserCreated, "")

	overview, err := f.engine.TeamOverview(ctx, true)
	require.NoError(t, err)

	assert.Equal(t, 3, overview.TotalEmployees, "inactive and system owner excluded")
	require.Len(t, overview.Employees, 3)
	assert.Equal(t, rental.EmployeeID("agent"), overview.Employees[0].EmployeeID)
	assert.Equal(t, 100.0, overview.Employees[0].TargetAchievement)
	assert.Equal(t, "Bookings", overview.Employees[0].Label)
	assert.Equal(t, 2.0, overview.Employees[0].Value)
	assert.Equal(t, 2.0, overview.Employees[0].Target)

	assert.Equal(t, rental.EmployeeID("owners"), overview.Employees[1].EmployeeID)
	assert.Equal(t, 25.0, overview.Employees[1].TargetAchievement)
	assert.Equal(t, "Units", overview.Employees[1].Label)

	assert.Equal(t, "Activities", overview.Employees[2].Label)
	assert.False(t, overview.Employees[2].HasTarget)

	// Mean over the two employees with a target; the admin is not a zero.
	assert.Equal(t, 62.5, overview.AverageAchievement)
	assert.Equal(t, 4, overview.TeamMonth)
	assert.Len(t, overview.TopPerformers, 3)

	withOwner, err := f.engine.TeamOverview(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 4, withOwner.TotalEmployees)
}

func TestAccessRules(t *testing.T) {
	agent := rental.Employee{ID: "agent", Role: rental.RoleCustomersAgent}
	admin := rental.Employee{ID: "admin", Role: rental.RoleAdmin}
	root := rental.Employee{ID: "root", Role: rental.RoleSystemOwner}

	assert.NoError(t, performance.CanViewEmployee(agent, "agent"))
	assert.ErrorIs(t, performance.CanViewEmployee(agent, "owners"), rental.ErrForbidden)
	assert.NoError(t, performance.CanViewEmployee(admin, "agent"))

	assert.ErrorIs(t, performance.CanViewTeam(agent), rental.ErrForbidden)
	assert.NoError(t, performance.CanViewTeam(admin))

	assert.NoError(t, performance.CanManageTargets(admin, agent))
	assert.ErrorIs(t, performance.CanManageTargets(agent, agent), rental.ErrForbidden)
	assert.ErrorIs(t, performance.CanManageTargets(admin, root), rental.ErrForbidden)
	assert.NoError(t, performance.CanManageTargets(root, root))
}
