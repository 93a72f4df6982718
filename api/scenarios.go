/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the database with realistic
	data for demos. Everything is written through the engines, so bookings
	are priced and overlap-checked and every action lands in the activity log
	exactly as it would in production.

AVAILABLE SCENARIOS:

	weekend-pricing: One unit, a weekday stay, a weekend stay and a stay
	                 spanning both, to show night-by-night pricing
	busy-month:      Three units with bookings across the current month in
	                 every status, plus a customers agent with a monthly target
	team-targets:    A full team (admin, owners agent, two customers agents)
	                 with activity and targets, for the team overview

HOW SCENARIOS WORK:
 1. Reset database (clear all data)
 2. Seed the staff (every scenario includes the system owner and an admin
    under fixed ids, so demo tokens keep working across loads)
 3. Create units
 4. Create bookings and move them through their statuses
 5. Log other activity and set targets

All dates are relative to today in the configured time zone.

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "busy-month"}

NOTE:

	Scenarios reset the database. The routes are only mounted when
	DEMO_SCENARIOS is enabled.

SEE ALSO:
  - handlers.go: ResetDatabase
  - server.go: Route mounting
*/
package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/warp/rental-engine/booking"
	"github.com/warp/rental-engine/calendar"
	"github.com/warp/rental-engine/performance"
	"github.com/warp/rental-engine/rental"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "weekend-pricing",
		Name:        "Weekend Pricing",
		Description: "One unit priced 300 on weekdays and 450 on Friday/Saturday nights",
		Category:    "bookings",
	},
	{
		ID:          "busy-month",
		Name:        "Busy Month",
		Description: "Three units, bookings in every status this month, one agent with a target",
		Category:    "bookings",
	},
	{
		ID:          "team-targets",
		Name:        "Team Targets",
		Description: "Admin, owners agent and customers agents with activity and monthly targets",
		Category:    "performance",
	},
}

// Fixed staff ids shared by every scenario.
const (
	ScenarioOwnerID = rental.EmployeeID("emp-owner")
	ScenarioAdminID = rental.EmployeeID("emp-admin")
)

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	current := h.scenario()
	if current == "" {
		writeJSON(w, http.StatusOK, nil)
		return
	}

	for _, s := range scenarios {
		if s.ID == current {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}
	writeJSON(w, http.StatusOK, ScenarioDTO{ID: current, Name: current, Description: "Currently loaded scenario"})
}

// LoadScenario resets the database and loads a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	if err := h.loadScenario(r.Context(), req.ScenarioID); err != nil {
		writeDomainError(w, fmt.Sprintf("Failed to load scenario %q", req.ScenarioID), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "loaded", "scenario": req.ScenarioID})
}

func (h *Handler) loadScenario(ctx context.Context, id string) error {
	var load func(context.Context, *scenarioBuilder) error
	switch id {
	case "weekend-pricing":
		load = loadWeekendPricingScenario
	case "busy-month":
		load = loadBusyMonthScenario
	case "team-targets":
		load = loadTeamTargetsScenario
	default:
		return &rental.ValidationError{Field: "scenario_id", Message: "unknown scenario " + id}
	}

	if err := h.Store.Reset(ctx); err != nil {
		return fmt.Errorf("reset database: %w", err)
	}
	h.setScenario("")

	b := &scenarioBuilder{h: h, today: calendar.Today(h.now, h.location)}
	if err := b.staff(ctx); err != nil {
		return err
	}
	if err := load(ctx, b); err != nil {
		return err
	}

	h.setScenario(id)
	return nil
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

func loadWeekendPricingScenario(ctx context.Context, b *scenarioBuilder) error {
	agent := b.employee("emp-sara", "sara", "Sara", "Alqahtani", rental.RoleCustomersAgent)
	if err := b.save(ctx, agent); err != nil {
		return err
	}
	if err := b.unit(ctx, agent.ID, "unit-palm-101", "Palm Residence 101", "300", "450"); err != nil {
		return err
	}

	// Next Sunday, so the stays below always land on the same weekdays.
	sunday := b.today.AddDays((7 - int(b.today.Weekday())) % 7)
	stays := []struct {
		guest    string
		from, to int
	}{
		{"Weekday guest", 0, 4},   // Sun-Thu nights
		{"Weekend guest", 12, 14}, // Fri + Sat nights
		{"Long stay", 21, 28},     // a full week
	}
	for _, s := range stays {
		if _, err := b.booking(ctx, agent.ID, "unit-palm-101", s.guest, sunday.AddDays(s.from), sunday.AddDays(s.to), rental.BookingConfirmed); err != nil {
			return err
		}
	}
	return nil
}

func loadBusyMonthScenario(ctx context.Context, b *scenarioBuilder) error {
	agent := b.employee("emp-omar", "omar", "Omar", "Hassan", rental.RoleCustomersAgent)
	if err := b.save(ctx, agent); err != nil {
		return err
	}
	units := []struct {
		id                     rental.UnitID
		name, weekday, weekend string
	}{
		{"unit-a1", "Corniche A1", "250", "400"},
		{"unit-b2", "Garden B2", "180", "220"},
		{"unit-c3", "Tower C3", "500", "750"},
	}
	for _, u := range units {
		if err := b.unit(ctx, ScenarioAdminID, u.id, u.name, u.weekday, u.weekend); err != nil {
			return err
		}
	}

	first := calendar.NewDate(b.today.Year(), b.today.Month(), 1)
	stays := []struct {
		unit     rental.UnitID
		guest    string
		from, to int
		path     []rental.BookingStatus
	}{
		{"unit-a1", "Fahad", 0, 3, []rental.BookingStatus{rental.BookingCheckedIn, rental.BookingCheckedOut, rental.BookingCompleted}},
		{"unit-a1", "Layla", 3, 6, []rental.BookingStatus{rental.BookingCompleted}},
		{"unit-a1", "Yousef", 8, 10, []rental.BookingStatus{rental.BookingCancelled}},
		{"unit-a1", "Noura", 8, 12, nil},
		{"unit-b2", "Khalid", 1, 8, []rental.BookingStatus{rental.BookingCheckedIn}},
		{"unit-b2", "Maha", 10, 14, nil},
		{"unit-c3", "Reem", 5, 7, []rental.BookingStatus{rental.BookingCompleted}},
		{"unit-c3", "Tariq", 20, 25, nil},
	}
	for _, s := range stays {
		created, err := b.booking(ctx, agent.ID, s.unit, s.guest, first.AddDays(s.from), first.AddDays(s.to), rental.BookingConfirmed)
		if err != nil {
			return err
		}
		for _, status := range s.path {
			if _, err := b.h.Bookings.SetStatus(ctx, created.ID, status, agent.ID); err != nil {
				return fmt.Errorf("%s -> %s: %w", s.guest, status, err)
			}
		}
	}

	for _, name := range []string{"Fahad", "Layla", "Reem"} {
		if err := b.activity(ctx, agent.ID, rental.KindCustomerCreated, rental.EntityCustomer, "Customer added: "+name); err != nil {
			return err
		}
	}

	return b.target(ctx, performance.SetTargetInput{
		EmployeeID:           agent.ID,
		Period:               rental.PeriodMonthly,
		StartDate:            first,
		EndDate:              first.AddMonths(1).AddDays(-1),
		TargetBookings:       10,
		TargetBookingRevenue: rental.MustMoney("8000", b.h.currency),
		TargetNewCustomers:   5,
		TargetCompletionRate: decimal.NewFromInt(80),
		Notes:                "Monthly plan",
	})
}

func loadTeamTargetsScenario(ctx context.Context, b *scenarioBuilder) error {
	team := []rental.Employee{
		b.employee("emp-hind", "hind", "Hind", "Saleh", rental.RoleOwnersAgent),
		b.employee("emp-ali", "ali", "Ali", "Nasser", rental.RoleCustomersAgent),
		b.employee("emp-dana", "dana", "Dana", "Fares", rental.RoleCustomersAgent),
	}
	for _, e := range team {
		if err := b.save(ctx, e); err != nil {
			return err
		}
	}
	owners, ali, dana := team[0].ID, team[1].ID, team[2].ID

	// Property side: the owners agent brings in an owner, a project and two units.
	if err := b.activity(ctx, owners, rental.KindOwnerCreated, rental.EntityOwner, "Owner added: Al Noor Holdings"); err != nil {
		return err
	}
	if err := b.activity(ctx, owners, rental.KindProjectCreated, rental.EntityProject, "Project created: Al Noor Towers"); err != nil {
		return err
	}
	for i, name := range []string{"Al Noor 1A", "Al Noor 1B"} {
		if err := b.unit(ctx, owners, rental.UnitID(fmt.Sprintf("unit-noor-%d", i+1)), name, "320", "480"); err != nil {
			return err
		}
	}

	// Customer side: Ali completes a stay, Dana books two and loses one.
	first := calendar.NewDate(b.today.Year(), b.today.Month(), 1)
	done, err := b.booking(ctx, ali, "unit-noor-1", "Saud", first, first.AddDays(2), rental.BookingConfirmed)
	if err != nil {
		return err
	}
	if _, err := b.h.Bookings.SetStatus(ctx, done.ID, rental.BookingCompleted, ali); err != nil {
		return err
	}
	if err := b.activity(ctx, ali, rental.KindCustomerCreated, rental.EntityCustomer, "Customer added: Saud"); err != nil {
		return err
	}
	if _, err := b.booking(ctx, dana, "unit-noor-2", "Huda", first.AddDays(3), first.AddDays(6), rental.BookingConfirmed); err != nil {
		return err
	}
	lost, err := b.booking(ctx, dana, "unit-noor-1", "Majed", first.AddDays(10), first.AddDays(12), rental.BookingPending)
	if err != nil {
		return err
	}
	if _, err := b.h.Bookings.SetStatus(ctx, lost.ID, rental.BookingCancelled, dana); err != nil {
		return err
	}

	monthEnd := first.AddMonths(1).AddDays(-1)
	targets := []performance.SetTargetInput{
		{EmployeeID: owners, TargetNewOwners: 2, TargetNewProjects: 2, TargetNewUnits: 4},
		{EmployeeID: ali, TargetBookings: 4, TargetBookingRevenue: rental.MustMoney("2000", b.h.currency)},
		{EmployeeID: dana, TargetBookings: 4, TargetNewCustomers: 2, TargetCompletionRate: decimal.NewFromInt(75)},
	}
	for _, t := range targets {
		t.Period = rental.PeriodMonthly
		t.StartDate = first
		t.EndDate = monthEnd
		if err := b.target(ctx, t); err != nil {
			return err
		}
	}
	return nil
}

// =============================================================================
// BUILDER
// =============================================================================

// scenarioBuilder writes scenario data through the handler's engines.
type scenarioBuilder struct {
	h     *Handler
	today calendar.Date
}

func (b *scenarioBuilder) employee(id rental.EmployeeID, username, first, last string, role rental.Role) rental.Employee {
	return rental.Employee{
		ID:            id,
		Username:      username,
		FirstName:     first,
		LastName:      last,
		Email:         username + "@example.com",
		Role:          role,
		IsActive:      true,
		IsSystemOwner: role == rental.RoleSystemOwner,
		CreatedAt:     b.h.now().UTC(),
	}
}

func (b *scenarioBuilder) save(ctx context.Context, e rental.Employee) error {
	if err := b.h.Store.SaveEmployee(ctx, e); err != nil {
		return fmt.Errorf("save employee %s: %w", e.ID, err)
	}
	return nil
}

func (b *scenarioBuilder) staff(ctx context.Context) error {
	if err := b.save(ctx, b.employee(ScenarioOwnerID, "owner", "System", "Owner", rental.RoleSystemOwner)); err != nil {
		return err
	}
	return b.save(ctx, b.employee(ScenarioAdminID, "admin", "Mona", "Admin", rental.RoleAdmin))
}

func (b *scenarioBuilder) unit(ctx context.Context, by rental.EmployeeID, id rental.UnitID, name, weekday, weekend string) error {
	now := b.h.now().UTC()
	u := rental.Unit{
		ID:          id,
		Name:        name,
		WeekdayRate: rental.MustMoney(weekday, b.h.currency),
		WeekendRate: rental.MustMoney(weekend, b.h.currency),
		Status:      rental.UnitAvailable,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := b.h.Store.SaveUnit(ctx, u); err != nil {
		return fmt.Errorf("save unit %s: %w", id, err)
	}
	return b.activity(ctx, by, rental.KindUnitCreated, rental.EntityUnit, "Unit added: "+name)
}

func (b *scenarioBuilder) booking(ctx context.Context, by rental.EmployeeID, unit rental.UnitID, guest string, in, out calendar.Date, status rental.BookingStatus) (rental.Booking, error) {
	created, err := b.h.Bookings.Create(ctx, booking.CreateInput{
		UnitID:    unit,
		GuestName: guest,
		CheckIn:   in,
		CheckOut:  out,
		Status:    status,
		CreatedBy: by,
	})
	if err != nil {
		return rental.Booking{}, fmt.Errorf("book %s for %s: %w", unit, guest, err)
	}
	return created, nil
}

func (b *scenarioBuilder) activity(ctx context.Context, by rental.EmployeeID, kind rental.ActivityKind, entity rental.EntityType, desc string) error {
	_, err := b.h.Activity.Record(ctx, rental.ActivityInput{EmployeeID: by, Kind: kind, EntityType: entity, Description: desc})
	return err
}

func (b *scenarioBuilder) target(ctx context.Context, in performance.SetTargetInput) error {
	in.SetBy = ScenarioAdminID
	_, err := b.h.Targets.SetTarget(ctx, in)
	return err
}
