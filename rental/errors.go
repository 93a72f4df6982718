/*
errors.go - Centralized error types for the rental engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Engines return the structured types below; callers classify them with
  errors.Is against the sentinels or with the helpers at the bottom.

ERROR CATEGORIES:
  1. Validation errors - Malformed input (check_out <= check_in, end < start,
     negative amounts, illegal status transitions)
  2. Not found errors - Unknown unit, booking, employee or target
  3. Conflict errors - A stay overlaps an occupying booking on the same unit
  4. Authorization errors - Role gating, produced by the HTTP layer

USAGE:
    _, err := engine.Create(ctx, in)
    var conflict *rental.ConflictError
    if errors.As(err, &conflict) {
        // conflict.ConflictingBookingID tells the caller what to resolve
    }

SEE ALSO:
  - booking/engine.go: Produces validation, not-found and conflict errors
  - api/handlers.go: Maps error classes to HTTP status codes
*/
package rental

import (
	"errors"
	"fmt"

	"github.com/warp/rental-engine/calendar"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrValidation is the class of all malformed-input errors.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound is the class of all missing-entity errors.
	ErrNotFound = errors.New("not found")

	// ErrConflict is the class of booking overlap errors.
	ErrConflict = errors.New("overlapping booking")

	// ErrForbidden is the class of role-gating failures.
	ErrForbidden = errors.New("insufficient permissions")

	// ErrBookingOverlap is returned by stores when the storage-level overlap
	// guard (trigger or exclusion constraint) rejects a write. Engines turn it
	// into a *ConflictError.
	ErrBookingOverlap = errors.New("booking overlaps an occupying booking")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError describes one invalid field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Message
	}
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// NotFoundError names the missing entity.
type NotFoundError struct {
	Kind string // "unit", "booking", "employee", "target"
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// ConflictError reports the booking a requested stay collides with.
// ConflictingBookingID is empty when the storage guard caught the overlap and
// the other booking is not known.
type ConflictError struct {
	UnitID               UnitID
	CheckIn              calendar.Date
	CheckOut             calendar.Date
	ConflictingBookingID BookingID
}

func (e *ConflictError) Error() string {
	if e.ConflictingBookingID == "" {
		return fmt.Sprintf("overlapping booking on unit %s for [%s, %s)", e.UnitID, e.CheckIn, e.CheckOut)
	}
	return fmt.Sprintf("overlapping booking on unit %s for [%s, %s): conflicts with %s",
		e.UnitID, e.CheckIn, e.CheckOut, e.ConflictingBookingID)
}

func (e *ConflictError) Unwrap() error { return ErrConflict }

// AuthorizationError reports a role-gating failure.
type AuthorizationError struct {
	Action string
	Role   Role
}

func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("insufficient permissions: %s requires a higher role than %s", e.Action, e.Role)
}

func (e *AuthorizationError) Unwrap() error { return ErrForbidden }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrConflict) ||
		errors.Is(err, ErrNotFound)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsConflict returns true for booking overlap errors.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}

// IsForbidden returns true for role-gating failures.
func IsForbidden(err error) bool {
	return errors.Is(err, ErrForbidden)
}
