package performance

import (
	"context"
	"fmt"
	"time"

	"github.com/warp/rental-engine/calendar"
	"github.com/warp/rental-engine/rental"
)

// =============================================================================
// ACTIVITY LOG
// =============================================================================

const (
	DefaultPageSize = 50
	MaxPageSize     = 100
	RecentLimit     = 10
)

// ActivityLog records and queries employee activity.
type ActivityLog struct {
	store rental.ActivityStore
	cfg   Config
	settings
}

// NewActivityLog creates the activity log service.
func NewActivityLog(store rental.ActivityStore, cfg Config, opts ...Option) *ActivityLog {
	return &ActivityLog{store: store, cfg: cfg, settings: newSettings(opts)}
}

// Record appends one entry. The description defaults to the kind's label and
// the amount to zero.
func (l *ActivityLog) Record(ctx context.Context, in rental.ActivityInput) (rental.ActivityEntry, error) {
	entry, err := rental.NewActivityEntry(in, l.cfg.Currency, l.now())
	if err != nil {
		return rental.ActivityEntry{}, err
	}
	if err := l.store.AppendActivity(ctx, entry); err != nil {
		return rental.ActivityEntry{}, fmt.Errorf("append activity: %w", err)
	}
	if l.listener != nil {
		l.listener.ActivityRecorded(ctx, entry)
	}
	return entry, nil
}

// Count returns how many entries the employee logged between from and to
// inclusive, optionally restricted to kinds.
func (l *ActivityLog) Count(ctx context.Context, employeeID rental.EmployeeID, from, to calendar.Date, kinds ...rental.ActivityKind) (int, error) {
	q, err := dateQuery(l.cfg.location(), employeeID, from, to, kinds)
	if err != nil {
		return 0, err
	}
	return l.store.CountActivities(ctx, q)
}

// SumAmount totals the amount of matching entries.
func (l *ActivityLog) SumAmount(ctx context.Context, employeeID rental.EmployeeID, from, to calendar.Date, kinds ...rental.ActivityKind) (rental.Money, error) {
	q, err := dateQuery(l.cfg.location(), employeeID, from, to, kinds)
	if err != nil {
		return rental.Money{}, err
	}
	sum, err := l.store.SumActivityAmount(ctx, q)
	if err != nil {
		return rental.Money{}, err
	}
	return rental.NewMoney(sum, l.cfg.Currency), nil
}

// ActivityFilter selects a page of entries. Zero fields do not filter.
type ActivityFilter struct {
	EmployeeID rental.EmployeeID
	From       *calendar.Date
	To         *calendar.Date
	Role       rental.Role
	Kinds      []rental.ActivityKind
	Page       int
	PageSize   int
}

// ActivityPage is one page of entries, newest first.
type ActivityPage struct {
	Activities []rental.ActivityEntry `json:"activities"`
	TotalCount int                    `json:"total_count"`
	Page       int                    `json:"page"`
	PageSize   int                    `json:"page_size"`
}

// List returns one page. Page starts at 1; PageSize defaults to 50 and may not
// exceed 100.
func (l *ActivityLog) List(ctx context.Context, f ActivityFilter) (ActivityPage, error) {
	if f.Page == 0 {
		f.Page = 1
	}
	if f.PageSize == 0 {
		f.PageSize = DefaultPageSize
	}
	if f.Page < 1 {
		return ActivityPage{}, &rental.ValidationError{Field: "page", Message: "must be at least 1"}
	}
	if f.PageSize < 1 || f.PageSize > MaxPageSize {
		return ActivityPage{}, &rental.ValidationError{Field: "page_size", Message: fmt.Sprintf("must be between 1 and %d", MaxPageSize)}
	}
	if f.Role != "" && !f.Role.Valid() {
		return ActivityPage{}, &rental.ValidationError{Field: "role", Message: "unknown role " + string(f.Role)}
	}

	loc := l.cfg.location()
	q := rental.ActivityQuery{EmployeeID: f.EmployeeID, Role: f.Role, Kinds: f.Kinds}
	if f.From != nil {
		q.From = f.From.StartIn(loc)
	}
	if f.To != nil {
		q.To = f.To.AddDays(1).StartIn(loc)
	}
	if f.From != nil && f.To != nil && f.To.Before(*f.From) {
		return ActivityPage{}, &rental.ValidationError{Field: "end_date", Message: "end date must not be before start date"}
	}

	entries, total, err := l.store.ListActivities(ctx, q, (f.Page-1)*f.PageSize, f.PageSize)
	if err != nil {
		return ActivityPage{}, fmt.Errorf("list activities: %w", err)
	}
	if entries == nil {
		entries = []rental.ActivityEntry{}
	}
	return ActivityPage{Activities: entries, TotalCount: total, Page: f.Page, PageSize: f.PageSize}, nil
}

// Recent returns the employee's n newest entries.
func (l *ActivityLog) Recent(ctx context.Context, employeeID rental.EmployeeID, n int) ([]rental.ActivityEntry, error) {
	entries, _, err := l.store.ListActivities(ctx, rental.ActivityQuery{EmployeeID: employeeID}, 0, n)
	if err != nil {
		return nil, fmt.Errorf("recent activities: %w", err)
	}
	if entries == nil {
		entries = []rental.ActivityEntry{}
	}
	return entries, nil
}

// LastActivityAt returns when the employee last logged anything, or nil.
func (l *ActivityLog) LastActivityAt(ctx context.Context, employeeID rental.EmployeeID) (*time.Time, error) {
	entries, err := l.Recent(ctx, employeeID, 1)
	if err != nil || len(entries) == 0 {
		return nil, err
	}
	at := entries[0].CreatedAt
	return &at, nil
}

// ActivitySummary counts an employee's entries over the dashboard windows.
type ActivitySummary struct {
	Today          int        `json:"today_activities"`
	Week           int        `json:"week_activities"`
	Month          int        `json:"month_activities"`
	LastActivityAt *time.Time `json:"last_activity_at"`
}

// QuickStats counts the employee's entries for today, this week and this month.
func (l *ActivityLog) QuickStats(ctx context.Context, employeeID rental.EmployeeID) (ActivitySummary, error) {
	w := calendar.WindowsFor(l.today())
	var (
		s   ActivitySummary
		err error
	)
	if s.Today, err = l.Count(ctx, employeeID, w.Today.Start, w.Today.End); err != nil {
		return ActivitySummary{}, err
	}
	if s.Week, err = l.Count(ctx, employeeID, w.Week.Start, w.Week.End); err != nil {
		return ActivitySummary{}, err
	}
	if s.Month, err = l.Count(ctx, employeeID, w.Month.Start, w.Month.End); err != nil {
		return ActivitySummary{}, err
	}
	if s.LastActivityAt, err = l.LastActivityAt(ctx, employeeID); err != nil {
		return ActivitySummary{}, err
	}
	return s, nil
}

func (l *ActivityLog) today() calendar.Date {
	return calendar.Today(l.now, l.cfg.location())
}
