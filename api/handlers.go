/*
handlers.go - HTTP API handlers for the rental engine

PURPOSE:
  Exposes the booking engine and the performance engine via REST API.
  Handles HTTP request/response, JSON serialization and role gating, and
  delegates every decision to the domain packages.

ENDPOINTS:
  Bookings:
    GET    /api/bookings                      List (unit_id, status, start_date, end_date)
    POST   /api/bookings                      Create booking
    GET    /api/bookings/monthly              Bookings with a night in year/month
    GET    /api/bookings/check-availability   Overlap check + price quote
    GET    /api/bookings/{id}                 Get booking
    PUT    /api/bookings/{id}                 Edit booking
    PATCH  /api/bookings/{id}/status          Status transition
    DELETE /api/bookings/{id}                 Delete booking

  Units & employees:
    GET/POST /api/units, GET /api/units/{id}
    GET/POST /api/employees, GET /api/employees/{id}

  Performance (/api/employee-performance):
    GET    /my-dashboard, /my-activities, /my-target, /quick-stats
    POST   /activities                        Log an activity for the caller
    GET    /team-overview                     Admin only
    GET    /employee/{id}/dashboard           Self or admin
    GET    /employee/{id}/activities          Self or admin
    GET    /all-activities                    Admin only
    POST   /targets                           Admin only
    GET    /targets/{employee_id}             Self or admin
    PUT    /targets/{target_id}               Admin only
    DELETE /targets/{target_id}               Admin only (deactivates)

ARCHITECTURE:
  Handler struct holds all dependencies:
  - Store: Database access (any rental.TxStore that can Reset)
  - Bookings: booking.Engine
  - Activity, Targets, Performance: the three performance services

ERROR HANDLING:
  Errors are returned as JSON with the HTTP status chosen from the error class:
  - 400: Validation errors, invalid input
  - 401: Missing or invalid token (auth.go)
  - 403: Role gating
  - 404: Resource not found
  - 409: Overlapping booking (with the conflicting booking id when known)
  - 500: Internal errors

SEE ALSO:
  - dto.go: Request/response data structures
  - auth.go: Bearer token middleware
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/warp/rental-engine/booking"
	"github.com/warp/rental-engine/calendar"
	"github.com/warp/rental-engine/performance"
	"github.com/warp/rental-engine/rental"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Store is the persistence the handlers need: the engine stores plus Reset
// for demo scenarios.
type Store interface {
	rental.TxStore
	Reset(ctx context.Context) error
}

// Config wires the engines behind the handlers.
type Config struct {
	Booking     booking.Config
	Performance performance.Config

	Locker   booking.Locker          // nil = no per-unit lock
	Listener rental.ActivityListener // notified after every committed entry
	Now      func() time.Time        // nil = time.Now
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store       Store
	Bookings    *booking.Engine
	Activity    *performance.ActivityLog
	Targets     *performance.Targets
	Performance *performance.Engine

	currency rental.Currency
	location *time.Location
	now      func() time.Time
	validate *validator.Validate

	mu              sync.RWMutex
	currentScenario string
}

// NewHandler builds the engines over store and returns the handler set.
func NewHandler(store Store, cfg Config) *Handler {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	loc := cfg.Performance.Location
	if loc == nil {
		loc = time.UTC
	}

	bookingOpts := []booking.Option{booking.WithClock(now)}
	perfOpts := []performance.Option{performance.WithClock(now)}
	if cfg.Locker != nil {
		bookingOpts = append(bookingOpts, booking.WithLocker(cfg.Locker))
	}
	if cfg.Listener != nil {
		bookingOpts = append(bookingOpts, booking.WithListener(cfg.Listener))
		perfOpts = append(perfOpts, performance.WithListener(cfg.Listener))
	}

	activity := performance.NewActivityLog(store, cfg.Performance, perfOpts...)
	targets := performance.NewTargets(store, cfg.Performance, perfOpts...)

	return &Handler{
		Store:       store,
		Bookings:    booking.NewEngine(store, cfg.Booking, bookingOpts...),
		Activity:    activity,
		Targets:     targets,
		Performance: performance.NewEngine(store, activity, targets, cfg.Performance, perfOpts...),
		currency:    cfg.Booking.Pricing.Currency,
		location:    loc,
		now:         now,
		validate:    newValidator(),
	}
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// =============================================================================
// BOOKING HANDLERS
// =============================================================================

// ListBookings returns bookings ordered by check-in.
// GET /api/bookings?unit_id=&status=confirmed,pending&start_date=&end_date=
func (h *Handler) ListBookings(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := rental.BookingFilter{UnitID: rental.UnitID(q.Get("unit_id"))}

	if raw := q.Get("status"); raw != "" {
		for _, v := range strings.Split(raw, ",") {
			s, err := rental.ParseBookingStatus(strings.TrimSpace(v))
			if err != nil {
				writeDomainError(w, "Invalid status filter", err)
				return
			}
			f.Statuses = append(f.Statuses, s)
		}
	}

	window, err := windowParams(r, "start_date", "end_date")
	if err != nil {
		writeDomainError(w, "Invalid date range", err)
		return
	}
	if window != nil {
		stay := calendar.NewInterval(window.Start, window.End.AddDays(1))
		f.Overlapping = &stay
	}

	bookings, err := h.Bookings.List(r.Context(), f)
	if err != nil {
		writeDomainError(w, "Failed to list bookings", err)
		return
	}
	h.writeBookings(w, r, bookings)
}

// MonthlyBookings returns bookings with at least one night in the month.
// GET /api/bookings/monthly?year=2024&month=3&unit_id=
func (h *Handler) MonthlyBookings(w http.ResponseWriter, r *http.Request) {
	year, err := intParam(r, "year", 0)
	if err != nil || year == 0 {
		writeError(w, http.StatusBadRequest, "year is required", err)
		return
	}
	month, err := intParam(r, "month", 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid month", err)
		return
	}

	bookings, err := h.Bookings.Monthly(r.Context(), year, time.Month(month), rental.UnitID(r.URL.Query().Get("unit_id")))
	if err != nil {
		writeDomainError(w, "Failed to list monthly bookings", err)
		return
	}
	h.writeBookings(w, r, bookings)
}

// CheckAvailability reports whether a unit is free and quotes the stay.
// GET /api/bookings/check-availability?unit_id=&check_in_date=&check_out_date=&exclude_booking_id=
func (h *Handler) CheckAvailability(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	unitID := q.Get("unit_id")
	if unitID == "" {
		writeError(w, http.StatusBadRequest, "unit_id is required", nil)
		return
	}
	checkIn, err := requiredDateParam(r, "check_in_date")
	if err != nil {
		writeDomainError(w, "Invalid check_in_date", err)
		return
	}
	checkOut, err := requiredDateParam(r, "check_out_date")
	if err != nil {
		writeDomainError(w, "Invalid check_out_date", err)
		return
	}

	result, err := h.Bookings.CheckAvailability(r.Context(), rental.UnitID(unitID), checkIn, checkOut, rental.BookingID(q.Get("exclude_booking_id")))
	if err != nil {
		writeDomainError(w, "Failed to check availability", err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// GetBooking returns one booking.
// GET /api/bookings/{id}
func (h *Handler) GetBooking(w http.ResponseWriter, r *http.Request) {
	b, err := h.Bookings.Get(r.Context(), rental.BookingID(chi.URLParam(r, "id")))
	if err != nil {
		writeDomainError(w, "Failed to get booking", err)
		return
	}
	h.writeBooking(w, r, http.StatusOK, b)
}

// CreateBooking creates a booking priced from the unit's rates unless a total
// is supplied.
// POST /api/bookings
func (h *Handler) CreateBooking(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	var req CreateBookingRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	checkIn, err := parseDate("check_in_date", req.CheckInDate)
	if err != nil {
		writeDomainError(w, "Invalid check_in_date", err)
		return
	}
	checkOut, err := parseDate("check_out_date", req.CheckOutDate)
	if err != nil {
		writeDomainError(w, "Invalid check_out_date", err)
		return
	}

	b, err := h.Bookings.Create(r.Context(), booking.CreateInput{
		UnitID:     rental.UnitID(req.UnitID),
		CustomerID: rental.CustomerID(req.CustomerID),
		GuestName:  req.GuestName,
		GuestPhone: req.GuestPhone,
		CheckIn:    checkIn,
		CheckOut:   checkOut,
		TotalPrice: h.money(req.TotalPrice),
		Status:     rental.BookingStatus(req.Status),
		Notes:      req.Notes,
		CreatedBy:  actor.ID,
	})
	if err != nil {
		writeDomainError(w, "Failed to create booking", err)
		return
	}
	h.writeBooking(w, r, http.StatusCreated, b)
}

// UpdateBooking edits a booking. Date changes re-run the overlap check.
// PUT /api/bookings/{id}
func (h *Handler) UpdateBooking(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	var req UpdateBookingRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	in := booking.UpdateInput{
		GuestName:  req.GuestName,
		GuestPhone: req.GuestPhone,
		Notes:      req.Notes,
		TotalPrice: h.money(req.TotalPrice),
		Reprice:    req.Reprice,
		UpdatedBy:  actor.ID,
	}
	if req.CustomerID != nil {
		c := rental.CustomerID(*req.CustomerID)
		in.CustomerID = &c
	}
	if req.Status != nil {
		s := rental.BookingStatus(*req.Status)
		in.Status = &s
	}
	var err error
	if in.CheckIn, err = optionalDate("check_in_date", req.CheckInDate); err != nil {
		writeDomainError(w, "Invalid check_in_date", err)
		return
	}
	if in.CheckOut, err = optionalDate("check_out_date", req.CheckOutDate); err != nil {
		writeDomainError(w, "Invalid check_out_date", err)
		return
	}

	b, err := h.Bookings.Update(r.Context(), rental.BookingID(chi.URLParam(r, "id")), in)
	if err != nil {
		writeDomainError(w, "Failed to update booking", err)
		return
	}
	h.writeBooking(w, r, http.StatusOK, b)
}

// UpdateBookingStatus moves a booking through its lifecycle.
// PATCH /api/bookings/{id}/status
func (h *Handler) UpdateBookingStatus(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	var req StatusUpdateRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	b, err := h.Bookings.SetStatus(r.Context(), rental.BookingID(chi.URLParam(r, "id")), rental.BookingStatus(req.Status), actor.ID)
	if err != nil {
		writeDomainError(w, "Failed to update booking status", err)
		return
	}
	h.writeBooking(w, r, http.StatusOK, b)
}

// DeleteBooking removes a booking.
// DELETE /api/bookings/{id}
func (h *Handler) DeleteBooking(w http.ResponseWriter, r *http.Request) {
	if err := h.Bookings.Delete(r.Context(), rental.BookingID(chi.URLParam(r, "id"))); err != nil {
		writeDomainError(w, "Failed to delete booking", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Booking deleted"})
}

func (h *Handler) writeBooking(w http.ResponseWriter, r *http.Request, status int, b rental.Booking) {
	dto := BookingDTO{Booking: b}
	unit, err := h.Store.GetUnit(r.Context(), b.UnitID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load unit", err)
		return
	}
	if unit != nil {
		dto.UnitName = unit.Name
		dto.ProjectID = string(unit.ProjectID)
	}
	writeJSON(w, status, dto)
}

func (h *Handler) writeBookings(w http.ResponseWriter, r *http.Request, bookings []rental.Booking) {
	units, err := h.Store.ListUnits(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list units", err)
		return
	}
	byID := make(map[rental.UnitID]rental.Unit, len(units))
	for _, u := range units {
		byID[u.ID] = u
	}

	dtos := make([]BookingDTO, len(bookings))
	for i, b := range bookings {
		u := byID[b.UnitID]
		dtos[i] = BookingDTO{Booking: b, UnitName: u.Name, ProjectID: string(u.ProjectID)}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// UNIT HANDLERS
// =============================================================================

// ListUnits returns all units.
func (h *Handler) ListUnits(w http.ResponseWriter, r *http.Request) {
	units, err := h.Store.ListUnits(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list units", err)
		return
	}
	if units == nil {
		units = []rental.Unit{}
	}
	writeJSON(w, http.StatusOK, units)
}

// GetUnit returns a single unit.
func (h *Handler) GetUnit(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	unit, err := h.Store.GetUnit(r.Context(), rental.UnitID(id))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get unit", err)
		return
	}
	if unit == nil {
		writeError(w, http.StatusNotFound, "Unit not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, unit)
}

// errUnitExists rejects a create that names an existing unit id.
var errUnitExists = errors.New("unit already exists")

// CreateUnit adds a unit and logs unit_created for the caller. An id that is
// already taken is a 409; units are never overwritten here.
func (h *Handler) CreateUnit(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	var req CreateUnitRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	if req.WeekdayRate.IsNegative() || req.WeekendRate.IsNegative() {
		writeError(w, http.StatusBadRequest, "Rates must not be negative", nil)
		return
	}

	now := h.now().UTC()
	unit := rental.Unit{
		ID:          rental.UnitID(req.ID),
		ProjectID:   rental.ProjectID(req.ProjectID),
		Name:        req.Name,
		WeekdayRate: rental.NewMoney(req.WeekdayRate.Amount, h.currency),
		WeekendRate: rental.NewMoney(req.WeekendRate.Amount, h.currency),
		Status:      rental.UnitStatus(req.Status),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if unit.ID == "" {
		unit.ID = rental.UnitID(rental.NewID())
	}
	if unit.Status == "" {
		unit.Status = rental.UnitAvailable
	}

	err := h.Store.WithTx(r.Context(), func(s rental.Store) error {
		existing, err := s.GetUnit(r.Context(), unit.ID)
		if err != nil {
			return err
		}
		if existing != nil {
			return errUnitExists
		}
		return s.SaveUnit(r.Context(), unit)
	})
	if errors.Is(err, errUnitExists) {
		writeError(w, http.StatusConflict, "Unit already exists", nil)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create unit", err)
		return
	}
	h.logActivity(r.Context(), rental.ActivityInput{
		EmployeeID:  actor.ID,
		Kind:        rental.KindUnitCreated,
		EntityType:  rental.EntityUnit,
		EntityID:    string(unit.ID),
		Description: "Unit added: " + unit.Name,
	})
	writeJSON(w, http.StatusCreated, unit)
}

// =============================================================================
// EMPLOYEE HANDLERS
// =============================================================================

// ListEmployees returns employees. ?active=true keeps active ones only.
func (h *Handler) ListEmployees(w http.ResponseWriter, r *http.Request) {
	active, _ := strconv.ParseBool(r.URL.Query().Get("active"))
	employees, err := h.Store.ListEmployees(r.Context(), rental.EmployeeFilter{ActiveOnly: active})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list employees", err)
		return
	}
	if employees == nil {
		employees = []rental.Employee{}
	}
	writeJSON(w, http.StatusOK, employees)
}

// GetEmployee returns a single employee.
func (h *Handler) GetEmployee(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	emp, err := h.Store.GetEmployee(r.Context(), rental.EmployeeID(id))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get employee", err)
		return
	}
	if emp == nil {
		writeError(w, http.StatusNotFound, "Employee not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, emp)
}

// CreateEmployee adds an employee. Admins only; only a system owner may add
// another system owner.
func (h *Handler) CreateEmployee(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	var req CreateEmployeeRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	role := rental.Role(req.Role)
	if !actor.Role.IsAdminOrHigher() || (role == rental.RoleSystemOwner && actor.Role != rental.RoleSystemOwner) {
		writeDomainError(w, "Cannot create employee", &rental.AuthorizationError{Action: "create a " + string(role), Role: actor.Role})
		return
	}

	emp := rental.Employee{
		ID:            rental.EmployeeID(req.ID),
		Username:      req.Username,
		FirstName:     req.FirstName,
		LastName:      req.LastName,
		Email:         req.Email,
		Role:          role,
		IsActive:      true,
		IsSystemOwner: role == rental.RoleSystemOwner,
		CreatedAt:     h.now().UTC(),
	}
	if emp.ID == "" {
		emp.ID = rental.EmployeeID(rental.NewID())
	}

	if err := h.Store.SaveEmployee(r.Context(), emp); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create employee", err)
		return
	}
	h.logActivity(r.Context(), rental.ActivityInput{
		EmployeeID:  actor.ID,
		Kind:        rental.KindUserCreated,
		EntityType:  rental.EntityUser,
		EntityID:    string(emp.ID),
		Description: "Employee added: " + emp.FullName(),
	})
	writeJSON(w, http.StatusCreated, emp)
}

// =============================================================================
// PERFORMANCE HANDLERS
// =============================================================================

// MyDashboard returns the caller's dashboard.
// GET /api/employee-performance/my-dashboard
func (h *Handler) MyDashboard(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	h.writeDashboard(w, r, actor.ID)
}

// EmployeeDashboard returns another employee's dashboard.
// GET /api/employee-performance/employee/{id}/dashboard
func (h *Handler) EmployeeDashboard(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	id := rental.EmployeeID(chi.URLParam(r, "id"))
	if err := performance.CanViewEmployee(actor, id); err != nil {
		writeDomainError(w, "Cannot view dashboard", err)
		return
	}
	h.writeDashboard(w, r, id)
}

func (h *Handler) writeDashboard(w http.ResponseWriter, r *http.Request, id rental.EmployeeID) {
	d, err := h.Performance.EmployeeDashboard(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Failed to build dashboard", err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// MyActivities pages through the caller's activity log.
// GET /api/employee-performance/my-activities?start_date=&end_date=&page=&page_size=
func (h *Handler) MyActivities(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	h.writeActivities(w, r, actor.ID, "", defaultEmployeePageSize)
}

// EmployeeActivities pages through another employee's activity log.
// GET /api/employee-performance/employee/{id}/activities
func (h *Handler) EmployeeActivities(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	id := rental.EmployeeID(chi.URLParam(r, "id"))
	if err := performance.CanViewEmployee(actor, id); err != nil {
		writeDomainError(w, "Cannot view activities", err)
		return
	}
	h.writeActivities(w, r, id, "", defaultEmployeePageSize)
}

// AllActivities pages through everyone's activity, optionally by role.
// GET /api/employee-performance/all-activities?role=&start_date=&end_date=&page=&page_size=
func (h *Handler) AllActivities(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	if err := performance.CanViewTeam(actor); err != nil {
		writeDomainError(w, "Cannot view all activities", err)
		return
	}
	h.writeActivities(w, r, "", rental.Role(r.URL.Query().Get("role")), performance.DefaultPageSize)
}

const defaultEmployeePageSize = 20

func (h *Handler) writeActivities(w http.ResponseWriter, r *http.Request, employee rental.EmployeeID, role rental.Role, defaultPageSize int) {
	f := performance.ActivityFilter{EmployeeID: employee, Role: role}
	var err error
	if f.From, err = dateParam(r, "start_date"); err != nil {
		writeDomainError(w, "Invalid start_date", err)
		return
	}
	if f.To, err = dateParam(r, "end_date"); err != nil {
		writeDomainError(w, "Invalid end_date", err)
		return
	}
	if f.Page, err = intParam(r, "page", 1); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid page", err)
		return
	}
	if f.PageSize, err = intParam(r, "page_size", defaultPageSize); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid page_size", err)
		return
	}
	if raw := r.URL.Query().Get("activity_type"); raw != "" {
		for _, k := range strings.Split(raw, ",") {
			f.Kinds = append(f.Kinds, rental.ActivityKind(strings.TrimSpace(k)))
		}
	}

	page, err := h.Activity.List(r.Context(), f)
	if err != nil {
		writeDomainError(w, "Failed to list activities", err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// LogActivity records an activity for the caller. Other parts of the
// business (customers, owners, finance) report their actions here.
// POST /api/employee-performance/activities
func (h *Handler) LogActivity(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	var req LogActivityRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	entry, err := h.Activity.Record(r.Context(), rental.ActivityInput{
		EmployeeID:  actor.ID,
		Kind:        rental.ActivityKind(req.ActivityType),
		EntityType:  rental.EntityType(req.EntityType),
		EntityID:    req.EntityID,
		Description: req.Description,
		Amount:      h.money(req.Amount),
		Metadata:    req.Metadata,
	})
	if err != nil {
		writeDomainError(w, "Failed to log activity", err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

// QuickStats returns the caller's activity counts.
// GET /api/employee-performance/quick-stats
func (h *Handler) QuickStats(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	s, err := h.Activity.QuickStats(r.Context(), actor.ID)
	if err != nil {
		writeDomainError(w, "Failed to count activities", err)
		return
	}
	writeJSON(w, http.StatusOK, QuickStatsDTO{Today: s.Today, ThisWeek: s.Week, ThisMonth: s.Month})
}

// TeamOverview returns every active employee's card. System owners are left
// out unless ?exclude_system_owner=false.
// GET /api/employee-performance/team-overview
func (h *Handler) TeamOverview(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	if err := performance.CanViewTeam(actor); err != nil {
		writeDomainError(w, "Cannot view team overview", err)
		return
	}
	exclude := true
	if raw := r.URL.Query().Get("exclude_system_owner"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid exclude_system_owner", err)
			return
		}
		exclude = v
	}

	overview, err := h.Performance.TeamOverview(r.Context(), exclude)
	if err != nil {
		writeDomainError(w, "Failed to build team overview", err)
		return
	}
	writeJSON(w, http.StatusOK, overview)
}

// =============================================================================
// TARGET HANDLERS
// =============================================================================

// MyTarget returns the caller's current target and its achievement.
// GET /api/employee-performance/my-target
func (h *Handler) MyTarget(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	target, err := h.Targets.Current(r.Context(), actor.ID)
	if err != nil {
		writeDomainError(w, "Failed to load target", err)
		return
	}
	if target == nil {
		writeJSON(w, http.StatusOK, MyTargetResponse{Message: "No target is currently set"})
		return
	}
	rate, err := h.Performance.TargetAchievement(r.Context(), actor.ID, *target)
	if err != nil {
		writeDomainError(w, "Failed to compute achievement", err)
		return
	}
	writeJSON(w, http.StatusOK, MyTargetResponse{Target: target, AchievementRate: &rate})
}

// SetTarget replaces the employee's overlapping active targets with a new one.
// POST /api/employee-performance/targets
func (h *Handler) SetTarget(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	var req SetTargetRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	subject, ok := h.targetSubject(w, r, actor, rental.EmployeeID(req.EmployeeID))
	if !ok {
		return
	}

	start, err := parseDate("start_date", req.StartDate)
	if err != nil {
		writeDomainError(w, "Invalid start_date", err)
		return
	}
	end, err := parseDate("end_date", req.EndDate)
	if err != nil {
		writeDomainError(w, "Invalid end_date", err)
		return
	}

	in := performance.SetTargetInput{
		EmployeeID:         subject.ID,
		SetBy:              actor.ID,
		Period:             rental.TargetPeriod(req.Period),
		StartDate:          start,
		EndDate:            end,
		TargetBookings:     req.TargetBookings,
		TargetNewCustomers: req.TargetNewCustomers,
		TargetNewOwners:    req.TargetNewOwners,
		TargetNewProjects:  req.TargetNewProjects,
		TargetNewUnits:     req.TargetNewUnits,
		Notes:              req.Notes,
	}
	if m := h.money(req.TargetBookingRevenue); m != nil {
		in.TargetBookingRevenue = *m
	}
	if req.TargetCompletionRate != nil {
		in.TargetCompletionRate = *req.TargetCompletionRate
	}

	target, err := h.Targets.SetTarget(r.Context(), in)
	if err != nil {
		writeDomainError(w, "Failed to set target", err)
		return
	}
	writeJSON(w, http.StatusCreated, TargetResponse{Message: "Target set", Target: target})
}

// ListTargets returns an employee's targets, newest first.
// GET /api/employee-performance/targets/{employee_id}?include_inactive=true
func (h *Handler) ListTargets(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	id := rental.EmployeeID(chi.URLParam(r, "employee_id"))
	if err := performance.CanViewEmployee(actor, id); err != nil {
		writeDomainError(w, "Cannot view targets", err)
		return
	}
	includeInactive, _ := strconv.ParseBool(r.URL.Query().Get("include_inactive"))

	targets, err := h.Targets.List(r.Context(), id, includeInactive)
	if err != nil {
		writeDomainError(w, "Failed to list targets", err)
		return
	}
	if targets == nil {
		targets = []rental.Target{}
	}
	writeJSON(w, http.StatusOK, targets)
}

// UpdateTarget edits a target in place.
// PUT /api/employee-performance/targets/{target_id}
func (h *Handler) UpdateTarget(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	var req UpdateTargetRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	id, ok := h.managedTarget(w, r, actor)
	if !ok {
		return
	}

	in := performance.TargetUpdate{
		TargetBookings:       req.TargetBookings,
		TargetBookingRevenue: h.money(req.TargetBookingRevenue),
		TargetNewCustomers:   req.TargetNewCustomers,
		TargetCompletionRate: req.TargetCompletionRate,
		TargetNewOwners:      req.TargetNewOwners,
		TargetNewProjects:    req.TargetNewProjects,
		TargetNewUnits:       req.TargetNewUnits,
		Notes:                req.Notes,
		IsActive:             req.IsActive,
	}
	if req.Period != nil {
		p := rental.TargetPeriod(*req.Period)
		in.Period = &p
	}
	var err error
	if in.StartDate, err = optionalDate("start_date", req.StartDate); err != nil {
		writeDomainError(w, "Invalid start_date", err)
		return
	}
	if in.EndDate, err = optionalDate("end_date", req.EndDate); err != nil {
		writeDomainError(w, "Invalid end_date", err)
		return
	}

	target, err := h.Targets.Update(r.Context(), id, in)
	if err != nil {
		writeDomainError(w, "Failed to update target", err)
		return
	}
	writeJSON(w, http.StatusOK, TargetResponse{Message: "Target updated", Target: target})
}

// DeactivateTarget clears is_active on a target.
// DELETE /api/employee-performance/targets/{target_id}
func (h *Handler) DeactivateTarget(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, ok := h.managedTarget(w, r, actor)
	if !ok {
		return
	}

	target, err := h.Targets.Deactivate(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Failed to deactivate target", err)
		return
	}
	writeJSON(w, http.StatusOK, TargetResponse{Message: "Target deactivated", Target: target})
}

// targetSubject loads the employee a target is for and checks the caller may
// manage their targets.
func (h *Handler) targetSubject(w http.ResponseWriter, r *http.Request, actor rental.Employee, id rental.EmployeeID) (rental.Employee, bool) {
	if !actor.Role.IsAdminOrHigher() {
		writeDomainError(w, "Cannot manage targets", performance.CanManageTargets(actor, rental.Employee{}))
		return rental.Employee{}, false
	}
	subject, err := h.Store.GetEmployee(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load employee", err)
		return rental.Employee{}, false
	}
	if subject == nil {
		writeDomainError(w, "Employee not found", &rental.NotFoundError{Kind: "employee", ID: string(id)})
		return rental.Employee{}, false
	}
	if err := performance.CanManageTargets(actor, *subject); err != nil {
		writeDomainError(w, "Cannot manage targets", err)
		return rental.Employee{}, false
	}
	return *subject, true
}

// managedTarget resolves {target_id} and checks the caller may manage it.
func (h *Handler) managedTarget(w http.ResponseWriter, r *http.Request, actor rental.Employee) (rental.TargetID, bool) {
	if !actor.Role.IsAdminOrHigher() {
		writeDomainError(w, "Cannot manage targets", performance.CanManageTargets(actor, rental.Employee{}))
		return "", false
	}
	target, err := h.Targets.Get(r.Context(), rental.TargetID(chi.URLParam(r, "target_id")))
	if err != nil {
		writeDomainError(w, "Failed to load target", err)
		return "", false
	}
	if _, ok := h.targetSubject(w, r, actor, target.EmployeeID); !ok {
		return "", false
	}
	return target.ID, true
}

// =============================================================================
// ADMIN
// =============================================================================

// ResetDatabase clears all data.
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Reset(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	h.setScenario("")

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Health reports whether the store answers.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if p, ok := h.Store.(interface{ Ping(context.Context) error }); ok {
		if err := p.Ping(r.Context()); err != nil {
			writeError(w, http.StatusServiceUnavailable, "Database unavailable", err)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("[API] Failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError picks the status from the error class.
func writeDomainError(w http.ResponseWriter, message string, err error) {
	var conflict *rental.ConflictError
	switch {
	case errors.As(err, &conflict):
		writeJSON(w, http.StatusConflict, ErrorResponse{
			Error:                message,
			Details:              err.Error(),
			ConflictingBookingID: string(conflict.ConflictingBookingID),
		})
	case rental.IsForbidden(err):
		writeError(w, http.StatusForbidden, message, err)
	case rental.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err)
	case errors.Is(err, rental.ErrValidation):
		writeError(w, http.StatusBadRequest, message, err)
	default:
		log.Printf("[API] %s: %v", message, err)
		writeError(w, http.StatusInternalServerError, message, err)
	}
}

// decodeJSON decodes and validates the body, writing a 400 on failure.
func (h *Handler) decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s: failed %s", fe.Field(), fe.Tag()))
			}
			err = errors.New(strings.Join(msgs, "; "))
		}
		writeError(w, http.StatusBadRequest, "Validation failed", err)
		return false
	}
	return true
}

// actor returns the authenticated employee or writes a 401.
func (h *Handler) actor(w http.ResponseWriter, r *http.Request) (rental.Employee, bool) {
	emp, ok := ActorFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Authentication required", nil)
	}
	return emp, ok
}

// logActivity records a side-effect entry; the primary write already
// succeeded, so failures are only logged.
func (h *Handler) logActivity(ctx context.Context, in rental.ActivityInput) {
	if _, err := h.Activity.Record(ctx, in); err != nil {
		log.Printf("[API] Failed to log %s for %s: %v", in.Kind, in.EmployeeID, err)
	}
}

// money stamps the configured currency on a decoded amount.
func (h *Handler) money(m *rental.Money) *rental.Money {
	if m == nil {
		return nil
	}
	out := rental.NewMoney(m.Amount, h.currency)
	return &out
}

func (h *Handler) setScenario(id string) {
	h.mu.Lock()
	h.currentScenario = id
	h.mu.Unlock()
}

func (h *Handler) scenario() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.currentScenario
}

func parseDate(field, value string) (calendar.Date, error) {
	d, err := calendar.ParseDate(value)
	if err != nil {
		return calendar.Date{}, &rental.ValidationError{Field: field, Message: "use YYYY-MM-DD"}
	}
	return d, nil
}

func optionalDate(field string, value *string) (*calendar.Date, error) {
	if value == nil {
		return nil, nil
	}
	d, err := parseDate(field, *value)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// dateParam reads an optional YYYY-MM-DD query parameter.
func dateParam(r *http.Request, name string) (*calendar.Date, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	return optionalDate(name, &raw)
}

func requiredDateParam(r *http.Request, name string) (calendar.Date, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return calendar.Date{}, &rental.ValidationError{Field: name, Message: "required"}
	}
	return parseDate(name, raw)
}

// windowParams reads an inclusive date window; both ends or neither.
func windowParams(r *http.Request, fromName, toName string) (*calendar.Period, error) {
	from, err := dateParam(r, fromName)
	if err != nil {
		return nil, err
	}
	to, err := dateParam(r, toName)
	if err != nil {
		return nil, err
	}
	if from == nil && to == nil {
		return nil, nil
	}
	if from == nil || to == nil {
		return nil, &rental.ValidationError{Field: fromName, Message: fromName + " and " + toName + " must be given together"}
	}
	p := calendar.Period{Start: *from, End: *to}
	if !p.IsValid() {
		return nil, &rental.ValidationError{Field: toName, Message: "end date must not be before start date"}
	}
	return &p, nil
}

func intParam(r *http.Request, name string, fallback int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer", name)
	}
	return v, nil
}
