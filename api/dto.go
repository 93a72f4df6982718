/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. Domain records
  (rental.Booking, rental.Target, ...) already carry their wire tags and are
  returned as-is; this file holds the request bodies and the few response
  wrappers that have no domain counterpart.

NAMING CONVENTION:
  - *Request:  Request body types from clients
  - *Response: Response wrappers
  - *DTO:      Response types with no domain counterpart

VALIDATION:
  Request types carry go-playground/validator tags checked by decodeJSON.
  Tags cover shape (required, formats, enums, bounds); business rules such
  as check_out > check_in or the status state machine stay in the engines.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"github.com/shopspring/decimal"

	"github.com/warp/rental-engine/rental"
)

// =============================================================================
// BOOKINGS
// =============================================================================

// BookingDTO is a booking with its unit's display name.
type BookingDTO struct {
	rental.Booking
	UnitName  string `json:"unit_name"`
	ProjectID string `json:"project_id,omitempty"`
}

// CreateBookingRequest is the body of POST /api/bookings.
type CreateBookingRequest struct {
	UnitID       string        `json:"unit_id" validate:"required"`
	CustomerID   string        `json:"customer_id"`
	GuestName    string        `json:"guest_name" validate:"required,max=200"`
	GuestPhone   string        `json:"guest_phone" validate:"omitempty,max=50"`
	CheckInDate  string        `json:"check_in_date" validate:"required,datetime=2006-01-02"`
	CheckOutDate string        `json:"check_out_date" validate:"required,datetime=2006-01-02"`
	TotalPrice   *rental.Money `json:"total_price"`
	Status       string        `json:"status" validate:"omitempty,oneof=pending confirmed checked_in checked_out completed cancelled"`
	Notes        string        `json:"notes" validate:"omitempty,max=2000"`
}

// UpdateBookingRequest is the body of PUT /api/bookings/{id}. Absent fields
// are left unchanged.
type UpdateBookingRequest struct {
	CustomerID   *string       `json:"customer_id"`
	GuestName    *string       `json:"guest_name" validate:"omitempty,min=1,max=200"`
	GuestPhone   *string       `json:"guest_phone" validate:"omitempty,max=50"`
	CheckInDate  *string       `json:"check_in_date" validate:"omitempty,datetime=2006-01-02"`
	CheckOutDate *string       `json:"check_out_date" validate:"omitempty,datetime=2006-01-02"`
	TotalPrice   *rental.Money `json:"total_price"`
	Status       *string       `json:"status" validate:"omitempty,oneof=pending confirmed checked_in checked_out completed cancelled"`
	Notes        *string       `json:"notes" validate:"omitempty,max=2000"`
	Reprice      bool          `json:"reprice"`
}

// StatusUpdateRequest is the body of PATCH /api/bookings/{id}/status.
type StatusUpdateRequest struct {
	Status string `json:"status" validate:"required,oneof=pending confirmed checked_in checked_out completed cancelled"`
}

// =============================================================================
// UNITS & EMPLOYEES
// =============================================================================

// CreateUnitRequest is the body of POST /api/units.
type CreateUnitRequest struct {
	ID          string       `json:"id"`
	ProjectID   string       `json:"project_id"`
	Name        string       `json:"name" validate:"required,max=200"`
	WeekdayRate rental.Money `json:"price_days_of_week"`
	WeekendRate rental.Money `json:"price_in_weekends"`
	Status      string       `json:"status" validate:"omitempty,oneof=available booked cleaning maintenance hidden"`
}

// CreateEmployeeRequest is the body of POST /api/employees.
type CreateEmployeeRequest struct {
	ID        string `json:"id"`
	Username  string `json:"username" validate:"required,max=100"`
	FirstName string `json:"first_name" validate:"required,max=100"`
	LastName  string `json:"last_name" validate:"omitempty,max=100"`
	Email     string `json:"email" validate:"omitempty,email"`
	Role      string `json:"role" validate:"required,oneof=system_owner admin owners_agent customers_agent"`
}

// =============================================================================
// ACTIVITY & TARGETS
// =============================================================================

// LogActivityRequest is the body of POST /api/employee-performance/activities.
// The entry is attributed to the authenticated employee.
type LogActivityRequest struct {
	ActivityType string            `json:"activity_type" validate:"required"`
	EntityType   string            `json:"entity_type" validate:"omitempty,max=50"`
	EntityID     string            `json:"entity_id" validate:"omitempty,max=100"`
	Description  string            `json:"description" validate:"omitempty,max=500"`
	Amount       *rental.Money     `json:"amount"`
	Metadata     map[string]string `json:"metadata"`
}

// SetTargetRequest is the body of POST /api/employee-performance/targets.
type SetTargetRequest struct {
	EmployeeID string `json:"employee_id" validate:"required"`
	Period     string `json:"period" validate:"required,oneof=daily weekly monthly"`
	StartDate  string `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate    string `json:"end_date" validate:"required,datetime=2006-01-02"`

	TargetBookings       int              `json:"target_bookings" validate:"min=0"`
	TargetBookingRevenue *rental.Money    `json:"target_booking_revenue"`
	TargetNewCustomers   int              `json:"target_new_customers" validate:"min=0"`
	TargetCompletionRate *decimal.Decimal `json:"target_completion_rate"`
	TargetNewOwners      int              `json:"target_new_owners" validate:"min=0"`
	TargetNewProjects    int              `json:"target_new_projects" validate:"min=0"`
	TargetNewUnits       int              `json:"target_new_units" validate:"min=0"`

	Notes string `json:"notes" validate:"omitempty,max=2000"`
}

// UpdateTargetRequest is the body of PUT /api/employee-performance/targets/{id}.
type UpdateTargetRequest struct {
	Period    *string `json:"period" validate:"omitempty,oneof=daily weekly monthly"`
	StartDate *string `json:"start_date" validate:"omitempty,datetime=2006-01-02"`
	EndDate   *string `json:"end_date" validate:"omitempty,datetime=2006-01-02"`

	TargetBookings       *int             `json:"target_bookings" validate:"omitempty,min=0"`
	TargetBookingRevenue *rental.Money    `json:"target_booking_revenue"`
	TargetNewCustomers   *int             `json:"target_new_customers" validate:"omitempty,min=0"`
	TargetCompletionRate *decimal.Decimal `json:"target_completion_rate"`
	TargetNewOwners      *int             `json:"target_new_owners" validate:"omitempty,min=0"`
	TargetNewProjects    *int             `json:"target_new_projects" validate:"omitempty,min=0"`
	TargetNewUnits       *int             `json:"target_new_units" validate:"omitempty,min=0"`

	Notes    *string `json:"notes" validate:"omitempty,max=2000"`
	IsActive *bool   `json:"is_active"`
}

// TargetResponse wraps a target with a confirmation message.
type TargetResponse struct {
	Message string        `json:"message"`
	Target  rental.Target `json:"target"`
}

// MyTargetResponse is the current target with its achievement, or a message
// when no target covers today.
type MyTargetResponse struct {
	Message         string         `json:"message,omitempty"`
	Target          *rental.Target `json:"target"`
	AchievementRate *float64       `json:"achievement_rate,omitempty"`
}

// QuickStatsDTO is the compact activity counter shown in the app header.
type QuickStatsDTO struct {
	Today     int `json:"today"`
	ThisWeek  int `json:"this_week"`
	ThisMonth int `json:"this_month"`
}

// =============================================================================
// SCENARIOS & ERRORS
// =============================================================================

// ScenarioDTO describes a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Category    string `json:"category"`
}

// LoadScenarioRequest is the body of POST /api/scenarios/load.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id" validate:"required"`
}

// ErrorResponse is returned for every failed request.
type ErrorResponse struct {
	Error                string `json:"error"`
	Details              string `json:"details,omitempty"`
	ConflictingBookingID string `json:"conflicting_booking_id,omitempty"`
}
