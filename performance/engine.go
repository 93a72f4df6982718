package performance

import (
	"context"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
	"github.com/warp/rental-engine/calendar"
	"github.com/warp/rental-engine/rental"
)

// =============================================================================
// PERFORMANCE ENGINE - Stats, achievement and dashboards
// =============================================================================

// TopPerformers is how many cards TeamOverview highlights.
const TopPerformers = 5

// Engine aggregates the activity log into statistics. It never writes.
type Engine struct {
	employees rental.EmployeeStore
	activity  *ActivityLog
	targets   *Targets
	cfg       Config
	settings
}

// NewEngine creates a performance engine over the activity log and targets.
func NewEngine(employees rental.EmployeeStore, activity *ActivityLog, targets *Targets, cfg Config, opts ...Option) *Engine {
	return &Engine{
		employees: employees,
		activity:  activity,
		targets:   targets,
		cfg:       cfg,
		settings:  newSettings(opts),
	}
}

// RoleStats computes the stats of role's domain between from and to inclusive.
func (e *Engine) RoleStats(ctx context.Context, employeeID rental.EmployeeID, role rental.Role, from, to calendar.Date) (RoleStats, error) {
	stats := RoleStats{Domain: role.Domain()}
	count := func(kind rental.ActivityKind) (int, error) {
		return e.activity.Count(ctx, employeeID, from, to, kind)
	}
	var err error

	switch stats.Domain {
	case rental.DomainCustomerFacing:
		c := &CustomerStats{}
		if c.BookingsCreated, err = count(rental.KindBookingCreated); err != nil {
			return RoleStats{}, err
		}
		if c.BookingsCompleted, err = count(rental.KindBookingCompleted); err != nil {
			return RoleStats{}, err
		}
		if c.BookingsCancelled, err = count(rental.KindBookingCancelled); err != nil {
			return RoleStats{}, err
		}
		if c.NewCustomers, err = count(rental.KindCustomerCreated); err != nil {
			return RoleStats{}, err
		}
		if c.BookingRevenue, err = e.activity.SumAmount(ctx, employeeID, from, to, rental.KindBookingCreated); err != nil {
			return RoleStats{}, err
		}
		c.CompletionRate = CompletionRate(c.BookingsCompleted, c.BookingsCancelled)
		stats.Customer = c
	case rental.DomainPropertyFacing:
		p := &PropertyStats{}
		if p.NewOwners, err = count(rental.KindOwnerCreated); err != nil {
			return RoleStats{}, err
		}
		if p.NewProjects, err = count(rental.KindProjectCreated); err != nil {
			return RoleStats{}, err
		}
		if p.NewUnits, err = count(rental.KindUnitCreated); err != nil {
			return RoleStats{}, err
		}
		stats.Property = p
	}
	return stats, nil
}

// TargetAchievement scores the employee's activity inside the target window.
// An unknown employee scores 0.
func (e *Engine) TargetAchievement(ctx context.Context, employeeID rental.EmployeeID, target rental.Target) (float64, error) {
	emp, err := e.employees.GetEmployee(ctx, employeeID)
	if err != nil {
		return 0, fmt.Errorf("load employee: %w", err)
	}
	if emp == nil {
		return 0, nil
	}
	return e.achievement(ctx, *emp, target)
}

func (e *Engine) achievement(ctx context.Context, emp rental.Employee, target rental.Target) (float64, error) {
	stats, err := e.RoleStats(ctx, emp.ID, emp.Role, target.StartDate, target.EndDate)
	if err != nil {
		return 0, err
	}
	return Achievement(target, stats), nil
}

// =============================================================================
// EMPLOYEE DASHBOARD
// =============================================================================

// WindowStats holds role stats for the three dashboard windows.
type WindowStats struct {
	Today RoleStats `json:"today"`
	Week  RoleStats `json:"week"`
	Month RoleStats `json:"month"`
}

// Dashboard is one employee's performance page.
type Dashboard struct {
	EmployeeID        rental.EmployeeID      `json:"employee_id"`
	EmployeeName      string                 `json:"employee_name"`
	Role              rental.Role            `json:"role"`
	RoleLabel         string                 `json:"role_label"`
	ActivitySummary   ActivitySummary        `json:"activity_summary"`
	RoleStats         *WindowStats           `json:"role_stats,omitempty"`
	CurrentTarget     *rental.Target         `json:"current_target"`
	TargetAchievement float64                `json:"target_achievement_rate"`
	RecentActivities  []rental.ActivityEntry `json:"recent_activities"`
}

// EmployeeDashboard composes counts, role stats, the current target and the
// latest entries for one employee.
func (e *Engine) EmployeeDashboard(ctx context.Context, employeeID rental.EmployeeID) (Dashboard, error) {
	emp, err := e.employees.GetEmployee(ctx, employeeID)
	if err != nil {
		return Dashboard{}, fmt.Errorf("load employee: %w", err)
	}
	if emp == nil {
		return Dashboard{}, &rental.NotFoundError{Kind: "employee", ID: string(employeeID)}
	}

	today := e.today()
	d := Dashboard{
		EmployeeID:   emp.ID,
		EmployeeName: emp.FullName(),
		Role:         emp.Role,
		RoleLabel:    emp.Role.Label(),
	}
	if d.ActivitySummary, err = e.activity.QuickStats(ctx, emp.ID); err != nil {
		return Dashboard{}, err
	}

	if emp.Role.Domain() != rental.DomainAdministrative {
		w := calendar.WindowsFor(today)
		ws := &WindowStats{}
		if ws.Today, err = e.RoleStats(ctx, emp.ID, emp.Role, w.Today.Start, w.Today.End); err != nil {
			return Dashboard{}, err
		}
		if ws.Week, err = e.RoleStats(ctx, emp.ID, emp.Role, w.Week.Start, w.Week.End); err != nil {
			return Dashboard{}, err
		}
		if ws.Month, err = e.RoleStats(ctx, emp.ID, emp.Role, w.Month.Start, w.Month.End); err != nil {
			return Dashboard{}, err
		}
		d.RoleStats = ws
	}

	if d.CurrentTarget, err = e.targets.GetActiveTarget(ctx, emp.ID, today); err != nil {
		return Dashboard{}, err
	}
	if d.CurrentTarget != nil {
		if d.TargetAchievement, err = e.achievement(ctx, *emp, *d.CurrentTarget); err != nil {
			return Dashboard{}, err
		}
	}

	if d.RecentActivities, err = e.activity.Recent(ctx, emp.ID, RecentLimit); err != nil {
		return Dashboard{}, err
	}
	return d, nil
}

// =============================================================================
// TEAM OVERVIEW
// =============================================================================

// KeyMetric is the one figure that best describes a role's month.
type KeyMetric struct {
	Label  string  `json:"key_metric_label"`
	Value  float64 `json:"key_metric_value"`
	Target float64 `json:"key_metric_target"`
}

// EmployeeCard summarizes one employee on the team overview.
type EmployeeCard struct {
	EmployeeID        rental.EmployeeID `json:"employee_id"`
	EmployeeName      string            `json:"employee_name"`
	Role              rental.Role       `json:"role"`
	RoleLabel         string            `json:"role_label"`
	IsActive          bool              `json:"is_active"`
	TodayActivities   int               `json:"today_activities"`
	WeekActivities    int               `json:"week_activities"`
	MonthActivities   int               `json:"month_activities"`
	HasTarget         bool              `json:"has_target"`
	TargetAchievement float64           `json:"target_achievement_rate"`
	KeyMetric
}

// TeamOverview is the manager's view of every active employee.
type TeamOverview struct {
	TotalEmployees     int            `json:"total_employees"`
	ActiveEmployees    int            `json:"active_employees"`
	TeamToday          int            `json:"team_total_activities_today"`
	TeamWeek           int            `json:"team_total_activities_week"`
	TeamMonth          int            `json:"team_total_activities_month"`
	AverageAchievement float64        `json:"average_target_achievement"`
	TopPerformers      []EmployeeCard `json:"top_performers"`
	Employees          []EmployeeCard `json:"all_employees"`
}

// TeamOverview builds a card per active employee sorted by achievement. The
// average only covers employees with an active target.
func (e *Engine) TeamOverview(ctx context.Context, excludeSystemOwner bool) (TeamOverview, error) {
	emps, err := e.employees.ListEmployees(ctx, rental.EmployeeFilter{ActiveOnly: true, ExcludeSystemOwner: excludeSystemOwner})
	if err != nil {
		return TeamOverview{}, fmt.Errorf("list employees: %w", err)
	}

	today := e.today()
	w := calendar.WindowsFor(today)
	cards := make([]EmployeeCard, 0, len(emps))
	var scores []float64

	for _, emp := range emps {
		card, err := e.card(ctx, emp, today, w)
		if err != nil {
			return TeamOverview{}, err
		}
		if card.HasTarget {
			scores = append(scores, card.TargetAchievement)
		}
		cards = append(cards, card)
	}

	sort.SliceStable(cards, func(i, j int) bool {
		return cards[i].TargetAchievement > cards[j].TargetAchievement
	})

	o := TeamOverview{
		TotalEmployees:  len(emps),
		ActiveEmployees: len(emps),
		Employees:       cards,
	}
	for _, c := range cards {
		o.TeamToday += c.TodayActivities
		o.TeamWeek += c.WeekActivities
		o.TeamMonth += c.MonthActivities
	}
	if len(scores) > 0 {
		var sum float64
		for _, s := range scores {
			sum += s
		}
		o.AverageAchievement = roundTo2(sum / float64(len(scores)))
	}
	top := TopPerformers
	if len(cards) < top {
		top = len(cards)
	}
	o.TopPerformers = cards[:top]
	return o, nil
}

func (e *Engine) card(ctx context.Context, emp rental.Employee, today calendar.Date, w calendar.Windows) (EmployeeCard, error) {
	card := EmployeeCard{
		EmployeeID:   emp.ID,
		EmployeeName: emp.FullName(),
		Role:         emp.Role,
		RoleLabel:    emp.Role.Label(),
		IsActive:     emp.IsActive,
	}
	var err error
	if card.TodayActivities, err = e.activity.Count(ctx, emp.ID, w.Today.Start, w.Today.End); err != nil {
		return EmployeeCard{}, err
	}
	if card.WeekActivities, err = e.activity.Count(ctx, emp.ID, w.Week.Start, w.Week.End); err != nil {
		return EmployeeCard{}, err
	}
	if card.MonthActivities, err = e.activity.Count(ctx, emp.ID, w.Month.Start, w.Month.End); err != nil {
		return EmployeeCard{}, err
	}

	target, err := e.targets.GetActiveTarget(ctx, emp.ID, today)
	if err != nil {
		return EmployeeCard{}, err
	}
	if target != nil {
		card.HasTarget = true
		if card.TargetAchievement, err = e.achievement(ctx, emp, *target); err != nil {
			return EmployeeCard{}, err
		}
	}

	month, err := e.RoleStats(ctx, emp.ID, emp.Role, w.Month.Start, w.Month.End)
	if err != nil {
		return EmployeeCard{}, err
	}
	card.KeyMetric = keyMetric(month, card.MonthActivities, target)
	return card, nil
}

func keyMetric(month RoleStats, activities int, target *rental.Target) KeyMetric {
	switch {
	case month.Customer != nil:
		m := KeyMetric{Label: "Bookings", Value: float64(month.Customer.BookingsCreated)}
		if target != nil {
			m.Target = float64(target.TargetBookings)
		}
		return m
	case month.Property != nil:
		m := KeyMetric{Label: "Units", Value: float64(month.Property.NewUnits)}
		if target != nil {
			m.Target = float64(target.TargetNewUnits)
		}
		return m
	default:
		return KeyMetric{Label: "Activities", Value: float64(activities)}
	}
}

func (e *Engine) today() calendar.Date {
	return calendar.Today(e.now, e.cfg.location())
}

func roundTo2(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}
