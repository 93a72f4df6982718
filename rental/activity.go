package rental

import (
	"context"
	"time"
)

// =============================================================================
// ACTIVITY KINDS
// =============================================================================

// ActivityKind classifies one employee action.
type ActivityKind string

const (
	// Bookings (customers agent)
	KindBookingCreated    ActivityKind = "booking_created"
	KindBookingUpdated    ActivityKind = "booking_updated"
	KindBookingCancelled  ActivityKind = "booking_cancelled"
	KindBookingCompleted  ActivityKind = "booking_completed"
	KindBookingCheckedIn  ActivityKind = "booking_checked_in"
	KindBookingCheckedOut ActivityKind = "booking_checked_out"

	// Customers (customers agent)
	KindCustomerCreated  ActivityKind = "customer_created"
	KindCustomerUpdated  ActivityKind = "customer_updated"
	KindCustomerBanned   ActivityKind = "customer_banned"
	KindCustomerUnbanned ActivityKind = "customer_unbanned"

	// Properties (owners agent)
	KindOwnerCreated      ActivityKind = "owner_created"
	KindOwnerUpdated      ActivityKind = "owner_updated"
	KindProjectCreated    ActivityKind = "project_created"
	KindProjectUpdated    ActivityKind = "project_updated"
	KindUnitCreated       ActivityKind = "unit_created"
	KindUnitUpdated       ActivityKind = "unit_updated"
	KindUnitStatusChanged ActivityKind = "unit_status_changed"

	// Finance
	KindTransactionCreated ActivityKind = "transaction_created"

	// Administration
	KindUserCreated     ActivityKind = "user_created"
	KindUserUpdated     ActivityKind = "user_updated"
	KindUserDeactivated ActivityKind = "user_deactivated"
	KindTargetSet       ActivityKind = "target_set"
)

var activityLabels = map[ActivityKind]string{
	KindBookingCreated:     "Booking created",
	KindBookingUpdated:     "Booking updated",
	KindBookingCancelled:   "Booking cancelled",
	KindBookingCompleted:   "Booking completed",
	KindBookingCheckedIn:   "Guest checked in",
	KindBookingCheckedOut:  "Guest checked out",
	KindCustomerCreated:    "Customer added",
	KindCustomerUpdated:    "Customer updated",
	KindCustomerBanned:     "Customer banned",
	KindCustomerUnbanned:   "Customer unbanned",
	KindOwnerCreated:       "Owner added",
	KindOwnerUpdated:       "Owner updated",
	KindProjectCreated:     "Project created",
	KindProjectUpdated:     "Project updated",
	KindUnitCreated:        "Unit added",
	KindUnitUpdated:        "Unit updated",
	KindUnitStatusChanged:  "Unit status changed",
	KindTransactionCreated: "Transaction recorded",
	KindUserCreated:        "Employee added",
	KindUserUpdated:        "Employee updated",
	KindUserDeactivated:    "Employee deactivated",
	KindTargetSet:          "Target set",
}

// kindsByRole lists the kinds each role is expected to produce.
var kindsByRole = map[Role][]ActivityKind{
	RoleCustomersAgent: {
		KindBookingCreated, KindBookingUpdated, KindBookingCancelled,
		KindBookingCompleted, KindBookingCheckedIn, KindBookingCheckedOut,
		KindCustomerCreated, KindCustomerUpdated, KindCustomerBanned, KindCustomerUnbanned,
	},
	RoleOwnersAgent: {
		KindOwnerCreated, KindOwnerUpdated,
		KindProjectCreated, KindProjectUpdated,
		KindUnitCreated, KindUnitUpdated, KindUnitStatusChanged,
	},
	RoleAdmin: {
		KindUserCreated, KindUserUpdated, KindUserDeactivated,
		KindTargetSet, KindTransactionCreated,
	},
}

// Valid reports whether k is a known kind.
func (k ActivityKind) Valid() bool {
	_, ok := activityLabels[k]
	return ok
}

// Label is the canonical description used when none is supplied.
func (k ActivityKind) Label() string {
	if l, ok := activityLabels[k]; ok {
		return l
	}
	return string(k)
}

// KindsForRole returns the kinds attributed to a role. The system owner shares
// the admin set.
func KindsForRole(r Role) []ActivityKind {
	if r == RoleSystemOwner {
		r = RoleAdmin
	}
	return append([]ActivityKind(nil), kindsByRole[r]...)
}

// BookingStatusKind returns the activity recorded when a booking enters status s.
func BookingStatusKind(s BookingStatus) ActivityKind {
	switch s {
	case BookingCancelled:
		return KindBookingCancelled
	case BookingCompleted:
		return KindBookingCompleted
	case BookingCheckedIn:
		return KindBookingCheckedIn
	case BookingCheckedOut:
		return KindBookingCheckedOut
	}
	return KindBookingUpdated
}

// EntityType names what an activity entry points at.
type EntityType string

const (
	EntityBooking     EntityType = "booking"
	EntityCustomer    EntityType = "customer"
	EntityOwner       EntityType = "owner"
	EntityProject     EntityType = "project"
	EntityUnit        EntityType = "unit"
	EntityTransaction EntityType = "transaction"
	EntityUser        EntityType = "user"
	EntityTarget      EntityType = "employee_target"
)

// =============================================================================
// ACTIVITY ENTRY - Immutable log record
// =============================================================================

// ActivityEntry is one append-only log record. CreatedAt is the ordering key.
type ActivityEntry struct {
	ID          ActivityID        `json:"id"`
	EmployeeID  EmployeeID        `json:"employee_id"`
	Kind        ActivityKind      `json:"activity_type"`
	EntityType  EntityType        `json:"entity_type,omitempty"`
	EntityID    string            `json:"entity_id,omitempty"`
	Description string            `json:"description"`
	Amount      Money             `json:"amount"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
}

// ActivityInput is what callers supply to record an activity.
type ActivityInput struct {
	EmployeeID  EmployeeID
	Kind        ActivityKind
	EntityType  EntityType
	EntityID    string
	Description string
	Amount      *Money // nil = 0
	Metadata    map[string]string
}

// Validate checks the input without touching storage.
func (in ActivityInput) Validate() error {
	if in.EmployeeID == "" {
		return &ValidationError{Field: "employee_id", Message: "required"}
	}
	if !in.Kind.Valid() {
		return &ValidationError{Field: "activity_type", Message: "unknown activity type " + string(in.Kind)}
	}
	if in.Amount != nil && in.Amount.IsNegative() {
		return &ValidationError{Field: "amount", Message: "must not be negative"}
	}
	return nil
}

// NewActivityEntry validates in and builds the entry to append, applying the
// description and amount defaults. Every writer of the log goes through here.
func NewActivityEntry(in ActivityInput, currency Currency, now time.Time) (ActivityEntry, error) {
	if err := in.Validate(); err != nil {
		return ActivityEntry{}, err
	}
	amount := ZeroMoney(currency)
	if in.Amount != nil {
		amount = NewMoney(in.Amount.Amount, currency)
	}
	desc := in.Description
	if desc == "" {
		desc = in.Kind.Label()
	}
	return ActivityEntry{
		ID:          ActivityID(NewID()),
		EmployeeID:  in.EmployeeID,
		Kind:        in.Kind,
		EntityType:  in.EntityType,
		EntityID:    in.EntityID,
		Description: desc,
		Amount:      amount,
		Metadata:    in.Metadata,
		CreatedAt:   now.UTC(),
	}, nil
}

// ActivityListener is notified after an entry has been committed.
type ActivityListener interface {
	ActivityRecorded(ctx context.Context, entry ActivityEntry)
}

// ActivityListeners fans out to several listeners in order.
type ActivityListeners []ActivityListener

func (ls ActivityListeners) ActivityRecorded(ctx context.Context, entry ActivityEntry) {
	for _, l := range ls {
		if l != nil {
			l.ActivityRecorded(ctx, entry)
		}
	}
}
