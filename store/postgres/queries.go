package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/warp/rental-engine/calendar"
	"github.com/warp/rental-engine/rental"
)

// dbtx is satisfied by *pgxpool.Pool and pgx.Tx.
type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// queries implements rental.Store against either the pool or a transaction.
// Numeric and date columns travel as text so decimal and calendar values keep
// their exact form.
type queries struct {
	db dbtx
}

// =============================================================================
// UNITS
// =============================================================================

const unitColumns = `id, COALESCE(project_id, ''), name, weekday_rate::text, weekend_rate::text, currency, status, created_at, updated_at`

func (q *queries) SaveUnit(ctx context.Context, u rental.Unit) error {
	_, err := q.db.Exec(ctx, `
		INSERT INTO units (id, project_id, name, weekday_rate, weekend_rate, currency, status, created_at, updated_at)
		VALUES ($1, NULLIF($2, ''), $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			project_id = EXCLUDED.project_id,
			name = EXCLUDED.name,
			weekday_rate = EXCLUDED.weekday_rate,
			weekend_rate = EXCLUDED.weekend_rate,
			currency = EXCLUDED.currency,
			status = EXCLUDED.status,
			updated_at = EXCLUDED.updated_at`,
		string(u.ID), string(u.ProjectID), u.Name,
		u.WeekdayRate.Amount.String(), u.WeekendRate.Amount.String(), string(u.WeekdayRate.Currency),
		string(u.Status), u.CreatedAt, u.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save unit: %w", err)
	}
	return nil
}

func (q *queries) GetUnit(ctx context.Context, id rental.UnitID) (*rental.Unit, error) {
	u, err := scanUnit(q.db.QueryRow(ctx, `SELECT `+unitColumns+` FROM units WHERE id = $1`, string(id)))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get unit: %w", err)
	}
	return &u, nil
}

func (q *queries) ListUnits(ctx context.Context) ([]rental.Unit, error) {
	rows, err := q.db.Query(ctx, `SELECT `+unitColumns+` FROM units ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list units: %w", err)
	}
	return collect(rows, scanUnit)
}

func scanUnit(row pgx.Row) (rental.Unit, error) {
	var (
		u                          rental.Unit
		id, projectID, status      string
		weekday, weekend, currency string
	)
	if err := row.Scan(&id, &projectID, &u.Name, &weekday, &weekend, &currency, &status, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return rental.Unit{}, err
	}
	u.ID = rental.UnitID(id)
	u.ProjectID = rental.ProjectID(projectID)
	u.Status = rental.UnitStatus(status)
	var err error
	if u.WeekdayRate, err = parseMoney(weekday, currency); err != nil {
		return rental.Unit{}, err
	}
	if u.WeekendRate, err = parseMoney(weekend, currency); err != nil {
		return rental.Unit{}, err
	}
	return u, nil
}

// =============================================================================
// BOOKINGS
// =============================================================================

const bookingColumns = `id, unit_id, COALESCE(customer_id, ''), guest_name, COALESCE(guest_phone, ''),
	check_in_date::text, check_out_date::text, total_price::text, currency, status, COALESCE(notes, ''),
	COALESCE(created_by, ''), COALESCE(updated_by, ''), created_at, updated_at`

func (q *queries) InsertBooking(ctx context.Context, b rental.Booking) error {
	_, err := q.db.Exec(ctx, `
		INSERT INTO bookings (id, unit_id, customer_id, guest_name, guest_phone, check_in_date, check_out_date,
			total_price, currency, status, notes, created_by, updated_by, created_at, updated_at)
		VALUES ($1, $2, NULLIF($3, ''), $4, NULLIF($5, ''), $6, $7, $8, $9, $10, NULLIF($11, ''),
			NULLIF($12, ''), NULLIF($13, ''), $14, $15)`,
		string(b.ID), string(b.UnitID), string(b.CustomerID), b.GuestName, b.GuestPhone,
		b.CheckIn.String(), b.CheckOut.String(),
		b.TotalPrice.Amount.String(), string(b.TotalPrice.Currency), string(b.Status), b.Notes,
		string(b.CreatedBy), string(b.UpdatedBy), b.CreatedAt, b.UpdatedAt,
	)
	if err != nil {
		if isOverlapError(err) {
			return rental.ErrBookingOverlap
		}
		return fmt.Errorf("failed to insert booking: %w", err)
	}
	return nil
}

func (q *queries) UpdateBooking(ctx context.Context, b rental.Booking) error {
	tag, err := q.db.Exec(ctx, `
		UPDATE bookings SET
			unit_id = $2, customer_id = NULLIF($3, ''), guest_name = $4, guest_phone = NULLIF($5, ''),
			check_in_date = $6, check_out_date = $7, total_price = $8, currency = $9,
			status = $10, notes = NULLIF($11, ''), updated_by = NULLIF($12, ''), updated_at = $13
		WHERE id = $1`,
		string(b.ID), string(b.UnitID), string(b.CustomerID), b.GuestName, b.GuestPhone,
		b.CheckIn.String(), b.CheckOut.String(), b.TotalPrice.Amount.String(), string(b.TotalPrice.Currency),
		string(b.Status), b.Notes, string(b.UpdatedBy), b.UpdatedAt,
	)
	if err != nil {
		if isOverlapError(err) {
			return rental.ErrBookingOverlap
		}
		return fmt.Errorf("failed to update booking: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return &rental.NotFoundError{Kind: "booking", ID: string(b.ID)}
	}
	return nil
}

func (q *queries) DeleteBooking(ctx context.Context, id rental.BookingID) (bool, error) {
	tag, err := q.db.Exec(ctx, `DELETE FROM bookings WHERE id = $1`, string(id))
	if err != nil {
		return false, fmt.Errorf("failed to delete booking: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (q *queries) GetBooking(ctx context.Context, id rental.BookingID) (*rental.Booking, error) {
	b, err := scanBooking(q.db.QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1`, string(id)))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}
	return &b, nil
}

func (q *queries) ListBookings(ctx context.Context, f rental.BookingFilter) ([]rental.Booking, error) {
	var w where
	if f.UnitID != "" {
		w.add("unit_id = ?", string(f.UnitID))
	}
	if f.ExcludeID != "" {
		w.add("id <> ?", string(f.ExcludeID))
	}
	if len(f.Statuses) > 0 {
		statuses := make([]string, len(f.Statuses))
		for i, st := range f.Statuses {
			statuses[i] = string(st)
		}
		w.add("status = ANY(?)", statuses)
	}
	if f.Overlapping != nil {
		w.add("daterange(check_in_date, check_out_date) && daterange(?::date, ?::date)",
			f.Overlapping.Start.String(), f.Overlapping.End.String())
	}

	rows, err := q.db.Query(ctx, `SELECT `+bookingColumns+` FROM bookings`+w.sql()+` ORDER BY check_in_date, id`, w.args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}
	return collect(rows, scanBooking)
}

func scanBooking(row pgx.Row) (rental.Booking, error) {
	var (
		b                              rental.Booking
		id, unitID, customerID, status string
		checkIn, checkOut, price, cur  string
		createdBy, updatedBy           string
	)
	err := row.Scan(&id, &unitID, &customerID, &b.GuestName, &b.GuestPhone,
		&checkIn, &checkOut, &price, &cur, &status, &b.Notes,
		&createdBy, &updatedBy, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return rental.Booking{}, err
	}
	b.ID = rental.BookingID(id)
	b.UnitID = rental.UnitID(unitID)
	b.CustomerID = rental.CustomerID(customerID)
	b.Status = rental.BookingStatus(status)
	b.CreatedBy = rental.EmployeeID(createdBy)
	b.UpdatedBy = rental.EmployeeID(updatedBy)
	if b.TotalPrice, err = parseMoney(price, cur); err != nil {
		return rental.Booking{}, err
	}
	if b.CheckIn, err = calendar.ParseDate(checkIn); err != nil {
		return rental.Booking{}, err
	}
	if b.CheckOut, err = calendar.ParseDate(checkOut); err != nil {
		return rental.Booking{}, err
	}
	return b, nil
}

// =============================================================================
// EMPLOYEES
// =============================================================================

const employeeColumns = `id, username, first_name, COALESCE(last_name, ''), COALESCE(email, ''), role, is_active, is_system_owner, created_at`

func (q *queries) SaveEmployee(ctx context.Context, e rental.Employee) error {
	_, err := q.db.Exec(ctx, `
		INSERT INTO employees (id, username, first_name, last_name, email, role, is_active, is_system_owner, created_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			username = EXCLUDED.username,
			first_name = EXCLUDED.first_name,
			last_name = EXCLUDED.last_name,
			email = EXCLUDED.email,
			role = EXCLUDED.role,
			is_active = EXCLUDED.is_active,
			is_system_owner = EXCLUDED.is_system_owner`,
		string(e.ID), e.Username, e.FirstName, e.LastName, e.Email, string(e.Role),
		e.IsActive, e.IsSystemOwner, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save employee: %w", err)
	}
	return nil
}

func (q *queries) GetEmployee(ctx context.Context, id rental.EmployeeID) (*rental.Employee, error) {
	e, err := scanEmployee(q.db.QueryRow(ctx, `SELECT `+employeeColumns+` FROM employees WHERE id = $1`, string(id)))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get employee: %w", err)
	}
	return &e, nil
}

func (q *queries) ListEmployees(ctx context.Context, f rental.EmployeeFilter) ([]rental.Employee, error) {
	var w where
	if f.ActiveOnly {
		w.add("is_active")
	}
	if f.ExcludeSystemOwner {
		w.add("NOT is_system_owner")
	}
	rows, err := q.db.Query(ctx, `SELECT `+employeeColumns+` FROM employees`+w.sql()+` ORDER BY id`, w.args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list employees: %w", err)
	}
	return collect(rows, scanEmployee)
}

func scanEmployee(row pgx.Row) (rental.Employee, error) {
	var (
		e        rental.Employee
		id, role string
	)
	if err := row.Scan(&id, &e.Username, &e.FirstName, &e.LastName, &e.Email, &role,
		&e.IsActive, &e.IsSystemOwner, &e.CreatedAt); err != nil {
		return rental.Employee{}, err
	}
	e.ID = rental.EmployeeID(id)
	e.Role = rental.Role(role)
	return e, nil
}

// =============================================================================
// ACTIVITY LOG (append-only)
// =============================================================================

const activityColumns = `a.id, a.employee_id, a.activity_type, COALESCE(a.entity_type, ''), COALESCE(a.entity_id, ''),
	a.description, a.amount::text, a.currency, a.metadata, a.created_at`

func (q *queries) AppendActivity(ctx context.Context, e rental.ActivityEntry) error {
	var metadata []byte
	if len(e.Metadata) > 0 {
		raw, err := json.Marshal(e.Metadata)
		if err != nil {
			return fmt.Errorf("failed to encode activity metadata: %w", err)
		}
		metadata = raw
	}

	_, err := q.db.Exec(ctx, `
		INSERT INTO activity_logs
			(id, employee_id, activity_type, entity_type, entity_id, description, amount, currency, metadata, created_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), $6, $7, $8, $9, $10)`,
		string(e.ID), string(e.EmployeeID), string(e.Kind), string(e.EntityType), e.EntityID,
		e.Description, e.Amount.Amount.String(), string(e.Amount.Currency), metadata, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to append activity: %w", err)
	}
	return nil
}

func activityFilter(aq rental.ActivityQuery) (string, []any) {
	from := ` FROM activity_logs a`
	var w where
	if aq.Role != "" {
		from += ` JOIN employees e ON e.id = a.employee_id`
		w.add("e.role = ?", string(aq.Role))
	}
	if aq.EmployeeID != "" {
		w.add("a.employee_id = ?", string(aq.EmployeeID))
	}
	if !aq.From.IsZero() {
		w.add("a.created_at >= ?", aq.From)
	}
	if !aq.To.IsZero() {
		w.add("a.created_at < ?", aq.To)
	}
	if len(aq.Kinds) > 0 {
		kinds := make([]string, len(aq.Kinds))
		for i, k := range aq.Kinds {
			kinds[i] = string(k)
		}
		w.add("a.activity_type = ANY(?)", kinds)
	}
	return from + w.sql(), w.args
}

func (q *queries) CountActivities(ctx context.Context, aq rental.ActivityQuery) (int, error) {
	from, args := activityFilter(aq)
	var n int
	if err := q.db.QueryRow(ctx, `SELECT COUNT(*)`+from, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count activities: %w", err)
	}
	return n, nil
}

func (q *queries) SumActivityAmount(ctx context.Context, aq rental.ActivityQuery) (decimal.Decimal, error) {
	from, args := activityFilter(aq)
	var raw string
	if err := q.db.QueryRow(ctx, `SELECT COALESCE(SUM(a.amount), 0)::text`+from, args...).Scan(&raw); err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum activities: %w", err)
	}
	return decimal.NewFromString(raw)
}

func (q *queries) ListActivities(ctx context.Context, aq rental.ActivityQuery, offset, limit int) ([]rental.ActivityEntry, int, error) {
	total, err := q.CountActivities(ctx, aq)
	if err != nil {
		return nil, 0, err
	}

	from, args := activityFilter(aq)
	query := `SELECT ` + activityColumns + from + ` ORDER BY a.created_at DESC, a.seq DESC`
	if limit > 0 {
		args = append(args, limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	args = append(args, offset)
	query += fmt.Sprintf(" OFFSET $%d", len(args))

	rows, err := q.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list activities: %w", err)
	}
	out, err := collect(rows, scanActivity)
	if err != nil {
		return nil, 0, err
	}
	if out == nil {
		out = []rental.ActivityEntry{}
	}
	return out, total, nil
}

func scanActivity(row pgx.Row) (rental.ActivityEntry, error) {
	var (
		e                            rental.ActivityEntry
		id, employeeID, kind         string
		entityType, amount, currency string
		metadata                     []byte
	)
	if err := row.Scan(&id, &employeeID, &kind, &entityType, &e.EntityID,
		&e.Description, &amount, &currency, &metadata, &e.CreatedAt); err != nil {
		return rental.ActivityEntry{}, err
	}
	e.ID = rental.ActivityID(id)
	e.EmployeeID = rental.EmployeeID(employeeID)
	e.Kind = rental.ActivityKind(kind)
	e.EntityType = rental.EntityType(entityType)
	var err error
	if e.Amount, err = parseMoney(amount, currency); err != nil {
		return rental.ActivityEntry{}, err
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &e.Metadata); err != nil {
			return rental.ActivityEntry{}, fmt.Errorf("invalid activity metadata: %w", err)
		}
	}
	return e, nil
}

// =============================================================================
// TARGETS
// =============================================================================

const targetColumns = `id, employee_id, period, start_date::text, end_date::text,
	target_bookings, target_booking_revenue::text, currency, target_new_customers, target_completion_rate::text,
	target_new_owners, target_new_projects, target_new_units,
	COALESCE(notes, ''), COALESCE(set_by_id, ''), is_active, created_at, updated_at`

func (q *queries) InsertTarget(ctx context.Context, t rental.Target) error {
	_, err := q.db.Exec(ctx, `
		INSERT INTO employee_targets (id, employee_id, period, start_date, end_date,
			target_bookings, target_booking_revenue, currency, target_new_customers, target_completion_rate,
			target_new_owners, target_new_projects, target_new_units,
			notes, set_by_id, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, NULLIF($14, ''), NULLIF($15, ''), $16, $17, $18)`,
		string(t.ID), string(t.EmployeeID), string(t.Period), t.StartDate.String(), t.EndDate.String(),
		t.TargetBookings, t.TargetBookingRevenue.Amount.String(), string(t.TargetBookingRevenue.Currency),
		t.TargetNewCustomers, t.TargetCompletionRate.String(),
		t.TargetNewOwners, t.TargetNewProjects, t.TargetNewUnits,
		t.Notes, string(t.SetBy), t.IsActive, t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert target: %w", err)
	}
	return nil
}

func (q *queries) UpdateTarget(ctx context.Context, t rental.Target) error {
	tag, err := q.db.Exec(ctx, `
		UPDATE employee_targets SET
			period = $2, start_date = $3, end_date = $4,
			target_bookings = $5, target_booking_revenue = $6, currency = $7,
			target_new_customers = $8, target_completion_rate = $9,
			target_new_owners = $10, target_new_projects = $11, target_new_units = $12,
			notes = NULLIF($13, ''), is_active = $14, updated_at = $15
		WHERE id = $1`,
		string(t.ID), string(t.Period), t.StartDate.String(), t.EndDate.String(),
		t.TargetBookings, t.TargetBookingRevenue.Amount.String(), string(t.TargetBookingRevenue.Currency),
		t.TargetNewCustomers, t.TargetCompletionRate.String(),
		t.TargetNewOwners, t.TargetNewProjects, t.TargetNewUnits,
		t.Notes, t.IsActive, t.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update target: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return &rental.NotFoundError{Kind: "target", ID: string(t.ID)}
	}
	return nil
}

func (q *queries) GetTarget(ctx context.Context, id rental.TargetID) (*rental.Target, error) {
	t, err := scanTarget(q.db.QueryRow(ctx, `SELECT `+targetColumns+` FROM employee_targets WHERE id = $1`, string(id)))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get target: %w", err)
	}
	return &t, nil
}

func (q *queries) DeactivateTargets(ctx context.Context, employeeID rental.EmployeeID, from calendar.Date, now time.Time) (int, error) {
	tag, err := q.db.Exec(ctx, `
		UPDATE employee_targets SET is_active = FALSE, updated_at = $3
		WHERE employee_id = $1 AND is_active AND end_date >= $2`,
		string(employeeID), from.String(), now.UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to deactivate targets: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (q *queries) ActiveTarget(ctx context.Context, employeeID rental.EmployeeID, on calendar.Date) (*rental.Target, error) {
	t, err := scanTarget(q.db.QueryRow(ctx, `
		SELECT `+targetColumns+` FROM employee_targets
		WHERE employee_id = $1 AND is_active AND start_date <= $2 AND end_date >= $2
		ORDER BY created_at DESC
		LIMIT 1`,
		string(employeeID), on.String(),
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get active target: %w", err)
	}
	return &t, nil
}

func (q *queries) ListTargets(ctx context.Context, employeeID rental.EmployeeID, includeInactive bool) ([]rental.Target, error) {
	query := `SELECT ` + targetColumns + ` FROM employee_targets WHERE employee_id = $1`
	if !includeInactive {
		query += ` AND is_active`
	}
	rows, err := q.db.Query(ctx, query+` ORDER BY created_at DESC`, string(employeeID))
	if err != nil {
		return nil, fmt.Errorf("failed to list targets: %w", err)
	}
	return collect(rows, scanTarget)
}

func scanTarget(row pgx.Row) (rental.Target, error) {
	var (
		t                              rental.Target
		id, employeeID, period, setBy  string
		start, end, revenue, cur, rate string
	)
	err := row.Scan(&id, &employeeID, &period, &start, &end,
		&t.TargetBookings, &revenue, &cur, &t.TargetNewCustomers, &rate,
		&t.TargetNewOwners, &t.TargetNewProjects, &t.TargetNewUnits,
		&t.Notes, &setBy, &t.IsActive, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return rental.Target{}, err
	}
	t.ID = rental.TargetID(id)
	t.EmployeeID = rental.EmployeeID(employeeID)
	t.Period = rental.TargetPeriod(period)
	t.SetBy = rental.EmployeeID(setBy)
	if t.StartDate, err = calendar.ParseDate(start); err != nil {
		return rental.Target{}, err
	}
	if t.EndDate, err = calendar.ParseDate(end); err != nil {
		return rental.Target{}, err
	}
	if t.TargetBookingRevenue, err = parseMoney(revenue, cur); err != nil {
		return rental.Target{}, err
	}
	if t.TargetCompletionRate, err = decimal.NewFromString(rate); err != nil {
		return rental.Target{}, fmt.Errorf("invalid completion rate %q: %w", rate, err)
	}
	return t, nil
}

// =============================================================================
// HELPERS
// =============================================================================

// where accumulates AND-ed conditions; "?" placeholders are numbered on add.
type where struct {
	conds []string
	args  []any
}

func (w *where) add(cond string, args ...any) {
	for _, a := range args {
		w.args = append(w.args, a)
		cond = strings.Replace(cond, "?", fmt.Sprintf("$%d", len(w.args)), 1)
	}
	w.conds = append(w.conds, cond)
}

func (w *where) sql() string {
	if len(w.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.conds, " AND ")
}

func collect[T any](rows pgx.Rows, scan func(pgx.Row) (T, error)) ([]T, error) {
	defer rows.Close()
	var out []T
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func parseMoney(value, currency string) (rental.Money, error) {
	amount, err := decimal.NewFromString(value)
	if err != nil {
		return rental.Money{}, fmt.Errorf("invalid amount %q: %w", value, err)
	}
	return rental.NewMoney(amount, rental.Currency(currency)), nil
}
