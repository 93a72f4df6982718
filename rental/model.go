package rental

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/rental-engine/calendar"
)

// =============================================================================
// RECORDS - Plain data returned by the stores
// =============================================================================

// Unit is a rentable property unit. The pricing engine reads its two rates.
type Unit struct {
	ID          UnitID     `json:"id"`
	ProjectID   ProjectID  `json:"project_id,omitempty"`
	Name        string     `json:"name"`
	WeekdayRate Money      `json:"price_days_of_week"`
	WeekendRate Money      `json:"price_in_weekends"`
	Status      UnitStatus `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Booking reserves one unit for the half-open stay [CheckIn, CheckOut).
type Booking struct {
	ID         BookingID     `json:"id"`
	UnitID     UnitID        `json:"unit_id"`
	CustomerID CustomerID    `json:"customer_id,omitempty"`
	GuestName  string        `json:"guest_name"`
	GuestPhone string        `json:"guest_phone,omitempty"`
	CheckIn    calendar.Date `json:"check_in_date"`
	CheckOut   calendar.Date `json:"check_out_date"`
	TotalPrice Money         `json:"total_price"`
	Status     BookingStatus `json:"status"`
	Notes      string        `json:"notes,omitempty"`
	CreatedBy  EmployeeID    `json:"created_by,omitempty"`
	UpdatedBy  EmployeeID    `json:"updated_by,omitempty"`
	CreatedAt  time.Time     `json:"created_at"`
	UpdatedAt  time.Time     `json:"updated_at"`
}

// Stay returns the booking's interval.
func (b Booking) Stay() calendar.Interval {
	return calendar.NewInterval(b.CheckIn, b.CheckOut)
}

// Nights returns the number of nights booked.
func (b Booking) Nights() int {
	return b.Stay().Nights()
}

// Employee is a staff user. Activity and targets are attributed to employees.
type Employee struct {
	ID            EmployeeID `json:"id"`
	Username      string     `json:"username"`
	FirstName     string     `json:"first_name"`
	LastName      string     `json:"last_name"`
	Email         string     `json:"email,omitempty"`
	Role          Role       `json:"role"`
	IsActive      bool       `json:"is_active"`
	IsSystemOwner bool       `json:"is_system_owner"`
	CreatedAt     time.Time  `json:"created_at"`
}

// FullName joins first and last name.
func (e Employee) FullName() string {
	if e.LastName == "" {
		return e.FirstName
	}
	return e.FirstName + " " + e.LastName
}

// Target is a goal window for one employee. Zero fields are "not set".
type Target struct {
	ID         TargetID      `json:"id"`
	EmployeeID EmployeeID    `json:"employee_id"`
	Period     TargetPeriod  `json:"period"`
	StartDate  calendar.Date `json:"start_date"`
	EndDate    calendar.Date `json:"end_date"`

	TargetBookings       int             `json:"target_bookings"`
	TargetBookingRevenue Money           `json:"target_booking_revenue"`
	TargetNewCustomers   int             `json:"target_new_customers"`
	TargetCompletionRate decimal.Decimal `json:"target_completion_rate"`
	TargetNewOwners      int             `json:"target_new_owners"`
	TargetNewProjects    int             `json:"target_new_projects"`
	TargetNewUnits       int             `json:"target_new_units"`

	Notes     string     `json:"notes,omitempty"`
	SetBy     EmployeeID `json:"set_by_id"`
	IsActive  bool       `json:"is_active"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Window returns the inclusive target window.
func (t Target) Window() calendar.Period {
	return calendar.Period{Start: t.StartDate, End: t.EndDate}
}

// Validate checks the window, period and that no goal is negative.
func (t Target) Validate() error {
	if t.EmployeeID == "" {
		return &ValidationError{Field: "employee_id", Message: "required"}
	}
	if !t.Period.Valid() {
		return &ValidationError{Field: "period", Message: "unknown period " + string(t.Period)}
	}
	if t.StartDate.IsZero() || t.EndDate.IsZero() {
		return &ValidationError{Field: "start_date", Message: "start and end dates are required"}
	}
	if t.EndDate.Before(t.StartDate) {
		return &ValidationError{Field: "end_date", Message: "end date must not be before start date"}
	}
	if t.TargetBookings < 0 || t.TargetNewCustomers < 0 || t.TargetNewOwners < 0 ||
		t.TargetNewProjects < 0 || t.TargetNewUnits < 0 {
		return &ValidationError{Field: "target", Message: "target counts must not be negative"}
	}
	if t.TargetBookingRevenue.IsNegative() {
		return &ValidationError{Field: "target_booking_revenue", Message: "must not be negative"}
	}
	if t.TargetCompletionRate.IsNegative() || t.TargetCompletionRate.GreaterThan(decimal.NewFromInt(100)) {
		return &ValidationError{Field: "target_completion_rate", Message: "must be between 0 and 100"}
	}
	return nil
}
