package performance

import (
	"context"
	"fmt"
	"log"

	"github.com/shopspring/decimal"
	"github.com/warp/rental-engine/calendar"
	"github.com/warp/rental-engine/rental"
)

// =============================================================================
// TARGETS
// =============================================================================

// Targets manages employee goal windows.
type Targets struct {
	store rental.TxStore
	cfg   Config
	settings
}

// NewTargets creates the target service.
func NewTargets(store rental.TxStore, cfg Config, opts ...Option) *Targets {
	return &Targets{store: store, cfg: cfg, settings: newSettings(opts)}
}

// SetTargetInput is a new target. Zero goals are "not set".
type SetTargetInput struct {
	EmployeeID rental.EmployeeID
	SetBy      rental.EmployeeID
	Period     rental.TargetPeriod
	StartDate  calendar.Date
	EndDate    calendar.Date

	TargetBookings       int
	TargetBookingRevenue rental.Money
	TargetNewCustomers   int
	TargetCompletionRate decimal.Decimal
	TargetNewOwners      int
	TargetNewProjects    int
	TargetNewUnits       int

	Notes string
}

// SetTarget deactivates the employee's active targets that end on or after
// the new start date, inserts the new target and logs target_set for the
// setter, all in one transaction.
func (t *Targets) SetTarget(ctx context.Context, in SetTargetInput) (rental.Target, error) {
	if in.SetBy == "" {
		return rental.Target{}, &rental.ValidationError{Field: "set_by_id", Message: "required"}
	}
	now := t.now().UTC()
	target := rental.Target{
		ID:                   rental.TargetID(rental.NewID()),
		EmployeeID:           in.EmployeeID,
		Period:               in.Period,
		StartDate:            in.StartDate,
		EndDate:              in.EndDate,
		TargetBookings:       in.TargetBookings,
		TargetBookingRevenue: rental.NewMoney(in.TargetBookingRevenue.Amount, t.cfg.Currency),
		TargetNewCustomers:   in.TargetNewCustomers,
		TargetCompletionRate: in.TargetCompletionRate,
		TargetNewOwners:      in.TargetNewOwners,
		TargetNewProjects:    in.TargetNewProjects,
		TargetNewUnits:       in.TargetNewUnits,
		Notes:                in.Notes,
		SetBy:                in.SetBy,
		IsActive:             true,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	if err := target.Validate(); err != nil {
		return rental.Target{}, err
	}

	var entry rental.ActivityEntry
	err := t.store.WithTx(ctx, func(s rental.Store) error {
		emp, err := s.GetEmployee(ctx, in.EmployeeID)
		if err != nil {
			return fmt.Errorf("load employee: %w", err)
		}
		if emp == nil {
			return &rental.NotFoundError{Kind: "employee", ID: string(in.EmployeeID)}
		}

		if _, err := s.DeactivateTargets(ctx, in.EmployeeID, in.StartDate, now); err != nil {
			return fmt.Errorf("deactivate targets: %w", err)
		}
		if err := s.InsertTarget(ctx, target); err != nil {
			return fmt.Errorf("insert target: %w", err)
		}

		entry, err = rental.NewActivityEntry(rental.ActivityInput{
			EmployeeID:  in.SetBy,
			Kind:        rental.KindTargetSet,
			EntityType:  rental.EntityTarget,
			EntityID:    string(target.ID),
			Description: "Target set for " + emp.FullName(),
			Metadata:    map[string]string{"target_employee_id": string(in.EmployeeID)},
		}, t.cfg.Currency, now)
		if err != nil {
			return err
		}
		return s.AppendActivity(ctx, entry)
	})
	if err != nil {
		return rental.Target{}, err
	}

	log.Printf("[Targets] %s set %s target %s for %s", in.SetBy, target.Period, target.Window(), target.EmployeeID)
	if t.listener != nil {
		t.listener.ActivityRecorded(ctx, entry)
	}
	return target, nil
}

// GetActiveTarget returns the active target whose window contains on, or nil.
func (t *Targets) GetActiveTarget(ctx context.Context, employeeID rental.EmployeeID, on calendar.Date) (*rental.Target, error) {
	target, err := t.store.ActiveTarget(ctx, employeeID, on)
	if err != nil {
		return nil, fmt.Errorf("active target: %w", err)
	}
	return target, nil
}

// Current returns the active target for today.
func (t *Targets) Current(ctx context.Context, employeeID rental.EmployeeID) (*rental.Target, error) {
	return t.GetActiveTarget(ctx, employeeID, calendar.Today(t.now, t.cfg.location()))
}

// Get returns one target or a NotFoundError.
func (t *Targets) Get(ctx context.Context, id rental.TargetID) (rental.Target, error) {
	target, err := t.store.GetTarget(ctx, id)
	if err != nil {
		return rental.Target{}, fmt.Errorf("load target: %w", err)
	}
	if target == nil {
		return rental.Target{}, &rental.NotFoundError{Kind: "target", ID: string(id)}
	}
	return *target, nil
}

// List returns the employee's targets newest first.
func (t *Targets) List(ctx context.Context, employeeID rental.EmployeeID, includeInactive bool) ([]rental.Target, error) {
	targets, err := t.store.ListTargets(ctx, employeeID, includeInactive)
	if err != nil {
		return nil, fmt.Errorf("list targets: %w", err)
	}
	if targets == nil {
		targets = []rental.Target{}
	}
	return targets, nil
}

// TargetUpdate carries the fields to change. Nil pointers are left alone.
type TargetUpdate struct {
	Period               *rental.TargetPeriod
	StartDate            *calendar.Date
	EndDate              *calendar.Date
	TargetBookings       *int
	TargetBookingRevenue *rental.Money
	TargetNewCustomers   *int
	TargetCompletionRate *decimal.Decimal
	TargetNewOwners      *int
	TargetNewProjects    *int
	TargetNewUnits       *int
	Notes                *string
	IsActive             *bool
}

// Update edits a target in place.
func (t *Targets) Update(ctx context.Context, id rental.TargetID, in TargetUpdate) (rental.Target, error) {
	var updated rental.Target
	err := t.store.WithTx(ctx, func(s rental.Store) error {
		cur, err := s.GetTarget(ctx, id)
		if err != nil {
			return fmt.Errorf("load target: %w", err)
		}
		if cur == nil {
			return &rental.NotFoundError{Kind: "target", ID: string(id)}
		}
		next := *cur
		if in.Period != nil {
			next.Period = *in.Period
		}
		if in.StartDate != nil {
			next.StartDate = *in.StartDate
		}
		if in.EndDate != nil {
			next.EndDate = *in.EndDate
		}
		if in.TargetBookings != nil {
			next.TargetBookings = *in.TargetBookings
		}
		if in.TargetBookingRevenue != nil {
			next.TargetBookingRevenue = rental.NewMoney(in.TargetBookingRevenue.Amount, t.cfg.Currency)
		}
		if in.TargetNewCustomers != nil {
			next.TargetNewCustomers = *in.TargetNewCustomers
		}
		if in.TargetCompletionRate != nil {
			next.TargetCompletionRate = *in.TargetCompletionRate
		}
		if in.TargetNewOwners != nil {
			next.TargetNewOwners = *in.TargetNewOwners
		}
		if in.TargetNewProjects != nil {
			next.TargetNewProjects = *in.TargetNewProjects
		}
		if in.TargetNewUnits != nil {
			next.TargetNewUnits = *in.TargetNewUnits
		}
		if in.Notes != nil {
			next.Notes = *in.Notes
		}
		if in.IsActive != nil {
			next.IsActive = *in.IsActive
		}
		if err := next.Validate(); err != nil {
			return err
		}
		next.UpdatedAt = t.now().UTC()
		if err := s.UpdateTarget(ctx, next); err != nil {
			return fmt.Errorf("update target: %w", err)
		}
		updated = next
		return nil
	})
	if err != nil {
		return rental.Target{}, err
	}
	return updated, nil
}

// Deactivate clears is_active on one target.
func (t *Targets) Deactivate(ctx context.Context, id rental.TargetID) (rental.Target, error) {
	inactive := false
	return t.Update(ctx, id, TargetUpdate{IsActive: &inactive})
}
