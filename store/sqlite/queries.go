package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/rental-engine/calendar"
	"github.com/warp/rental-engine/rental"
)

// overlapMarker is the RAISE message of the overlap triggers.
const overlapMarker = "booking_overlap"

// timeLayout is fixed-width so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// queries holds the SQL for every store method. Store wraps it with the
// mutex; WithTx hands a queries bound to the *sql.Tx to its callback.
type queries struct {
	db querier
}

type scanner interface {
	Scan(dest ...any) error
}

// =============================================================================
// UNITS
// =============================================================================

func (q *queries) SaveUnit(ctx context.Context, u rental.Unit) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO units (id, project_id, name, weekday_rate, weekend_rate, currency, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			project_id = excluded.project_id,
			name = excluded.name,
			weekday_rate = excluded.weekday_rate,
			weekend_rate = excluded.weekend_rate,
			currency = excluded.currency,
			status = excluded.status,
			updated_at = excluded.updated_at
	`,
		u.ID, nullString(string(u.ProjectID)), u.Name,
		u.WeekdayRate.Amount.String(), u.WeekendRate.Amount.String(), string(u.WeekdayRate.Currency),
		u.Status, formatTime(u.CreatedAt), formatTime(u.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to save unit: %w", err)
	}
	return nil
}

const unitColumns = `id, project_id, name, weekday_rate, weekend_rate, currency, status, created_at, updated_at`

func (q *queries) GetUnit(ctx context.Context, id rental.UnitID) (*rental.Unit, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+unitColumns+` FROM units WHERE id = ?`, id)
	u, err := scanUnit(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get unit: %w", err)
	}
	return &u, nil
}

func (q *queries) ListUnits(ctx context.Context) ([]rental.Unit, error) {
	rows, err := q.db.QueryContext(ctx, `SELECT `+unitColumns+` FROM units ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list units: %w", err)
	}
	defer rows.Close()

	var out []rental.Unit
	for rows.Next() {
		u, err := scanUnit(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func scanUnit(row scanner) (rental.Unit, error) {
	var (
		u                            rental.Unit
		projectID                    sql.NullString
		weekday, weekend, currency   string
		status, createdAt, updatedAt string
	)
	if err := row.Scan(&u.ID, &projectID, &u.Name, &weekday, &weekend, &currency, &status, &createdAt, &updatedAt); err != nil {
		return rental.Unit{}, err
	}
	u.ProjectID = rental.ProjectID(projectID.String)
	u.Status = rental.UnitStatus(status)
	var err error
	if u.WeekdayRate, err = parseMoney(weekday, currency); err != nil {
		return rental.Unit{}, err
	}
	if u.WeekendRate, err = parseMoney(weekend, currency); err != nil {
		return rental.Unit{}, err
	}
	if u.CreatedAt, err = parseTime(createdAt); err != nil {
		return rental.Unit{}, err
	}
	if u.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return rental.Unit{}, err
	}
	return u, nil
}

// =============================================================================
// BOOKINGS
// =============================================================================

const bookingColumns = `id, unit_id, customer_id, guest_name, guest_phone, check_in_date, check_out_date,
	total_price, currency, status, notes, created_by, updated_by, created_at, updated_at`

func (q *queries) InsertBooking(ctx context.Context, b rental.Booking) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO bookings (`+bookingColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		b.ID, b.UnitID, nullString(string(b.CustomerID)), b.GuestName, nullString(b.GuestPhone),
		b.CheckIn.String(), b.CheckOut.String(),
		b.TotalPrice.Amount.String(), string(b.TotalPrice.Currency), b.Status, nullString(b.Notes),
		nullString(string(b.CreatedBy)), nullString(string(b.UpdatedBy)),
		formatTime(b.CreatedAt), formatTime(b.UpdatedAt),
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
	res, err := q.db.ExecContext(ctx, `
		UPDATE bookings SET
			unit_id = ?, customer_id = ?, guest_name = ?, guest_phone = ?,
			check_in_date = ?, check_out_date = ?, total_price = ?, currency = ?,
			status = ?, notes = ?, updated_by = ?, updated_at = ?
		WHERE id = ?
	`,
		b.UnitID, nullString(string(b.CustomerID)), b.GuestName, nullString(b.GuestPhone),
		b.CheckIn.String(), b.CheckOut.String(), b.TotalPrice.Amount.String(), string(b.TotalPrice.Currency),
		b.Status, nullString(b.Notes), nullString(string(b.UpdatedBy)), formatTime(b.UpdatedAt),
		b.ID,
	)
	if err != nil {
		if isOverlapError(err) {
			return rental.ErrBookingOverlap
		}
		return fmt.Errorf("failed to update booking: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &rental.NotFoundError{Kind: "booking", ID: string(b.ID)}
	}
	return nil
}

func (q *queries) DeleteBooking(ctx context.Context, id rental.BookingID) (bool, error) {
	res, err := q.db.ExecContext(ctx, `DELETE FROM bookings WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete booking: %w", err)
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (q *queries) GetBooking(ctx context.Context, id rental.BookingID) (*rental.Booking, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = ?`, id)
	b, err := scanBooking(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}
	return &b, nil
}

func (q *queries) ListBookings(ctx context.Context, f rental.BookingFilter) ([]rental.Booking, error) {
	var (
		where []string
		args  []any
	)
	if f.UnitID != "" {
		where = append(where, "unit_id = ?")
		args = append(args, f.UnitID)
	}
	if f.ExcludeID != "" {
		where = append(where, "id <> ?")
		args = append(args, f.ExcludeID)
	}
	if len(f.Statuses) > 0 {
		where = append(where, "status IN ("+placeholders(len(f.Statuses))+")")
		for _, st := range f.Statuses {
			args = append(args, st)
		}
	}
	if f.Overlapping != nil {
		// Half-open overlap: existing.in < new.out AND new.in < existing.out
		where = append(where, "check_in_date < ? AND ? < check_out_date")
		args = append(args, f.Overlapping.End.String(), f.Overlapping.Start.String())
	}

	query := `SELECT ` + bookingColumns + ` FROM bookings`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY check_in_date, id"

	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}
	defer rows.Close()

	var out []rental.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func scanBooking(row scanner) (rental.Booking, error) {
	var (
		b                             rental.Booking
		customerID, phone, notes      sql.NullString
		createdBy, updatedBy          sql.NullString
		checkIn, checkOut, price, cur string
		status, createdAt, updatedAt  string
	)
	err := row.Scan(&b.ID, &b.UnitID, &customerID, &b.GuestName, &phone, &checkIn, &checkOut,
		&price, &cur, &status, &notes, &createdBy, &updatedBy, &createdAt, &updatedAt)
	if err != nil {
		return rental.Booking{}, err
	}
	b.CustomerID = rental.CustomerID(customerID.String)
	b.GuestPhone = phone.String
	b.Notes = notes.String
	b.CreatedBy = rental.EmployeeID(createdBy.String)
	b.UpdatedBy = rental.EmployeeID(updatedBy.String)
	b.Status = rental.BookingStatus(status)
	if b.TotalPrice, err = parseMoney(price, cur); err != nil {
		return rental.Booking{}, err
	}
	if b.CheckIn, err = calendar.ParseDate(checkIn); err != nil {
		return rental.Booking{}, err
	}
	if b.CheckOut, err = calendar.ParseDate(checkOut); err != nil {
		return rental.Booking{}, err
	}
	if b.CreatedAt, err = parseTime(createdAt); err != nil {
		return rental.Booking{}, err
	}
	if b.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return rental.Booking{}, err
	}
	return b, nil
}

// =============================================================================
// EMPLOYEES
// =============================================================================

const employeeColumns = `id, username, first_name, last_name, email, role, is_active, is_system_owner, created_at`

func (q *queries) SaveEmployee(ctx context.Context, e rental.Employee) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO employees (`+employeeColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			username = excluded.username,
			first_name = excluded.first_name,
			last_name = excluded.last_name,
			email = excluded.email,
			role = excluded.role,
			is_active = excluded.is_active,
			is_system_owner = excluded.is_system_owner
	`,
		e.ID, e.Username, e.FirstName, nullString(e.LastName), nullString(e.Email), e.Role,
		e.IsActive, e.IsSystemOwner, formatTime(e.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to save employee: %w", err)
	}
	return nil
}

func (q *queries) GetEmployee(ctx context.Context, id rental.EmployeeID) (*rental.Employee, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+employeeColumns+` FROM employees WHERE id = ?`, id)
	e, err := scanEmployee(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get employee: %w", err)
	}
	return &e, nil
}

func (q *queries) ListEmployees(ctx context.Context, f rental.EmployeeFilter) ([]rental.Employee, error) {
	query := `SELECT ` + employeeColumns + ` FROM employees WHERE 1 = 1`
	if f.ActiveOnly {
		query += " AND is_active = 1"
	}
	if f.ExcludeSystemOwner {
		query += " AND is_system_owner = 0"
	}
	query += " ORDER BY id"

	rows, err := q.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list employees: %w", err)
	}
	defer rows.Close()

	var out []rental.Employee
	for rows.Next() {
		e, err := scanEmployee(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func scanEmployee(row scanner) (rental.Employee, error) {
	var (
		e               rental.Employee
		lastName, email sql.NullString
		role, createdAt string
	)
	if err := row.Scan(&e.ID, &e.Username, &e.FirstName, &lastName, &email, &role,
		&e.IsActive, &e.IsSystemOwner, &createdAt); err != nil {
		return rental.Employee{}, err
	}
	e.LastName = lastName.String
	e.Email = email.String
	e.Role = rental.Role(role)
	var err error
	if e.CreatedAt, err = parseTime(createdAt); err != nil {
		return rental.Employee{}, err
	}
	return e, nil
}

// =============================================================================
// ACTIVITY LOG (append-only)
// =============================================================================

const activityColumns = `a.id, a.employee_id, a.activity_type, a.entity_type, a.entity_id,
	a.description, a.amount, a.currency, a.metadata_json, a.created_at`

func (q *queries) AppendActivity(ctx context.Context, e rental.ActivityEntry) error {
	var metadata sql.NullString
	if len(e.Metadata) > 0 {
		raw, err := json.Marshal(e.Metadata)
		if err != nil {
			return fmt.Errorf("failed to encode activity metadata: %w", err)
		}
		metadata = sql.NullString{String: string(raw), Valid: true}
	}

	_, err := q.db.ExecContext(ctx, `
		INSERT INTO activity_logs
		(id, employee_id, activity_type, entity_type, entity_id, description, amount, currency, metadata_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		e.ID, e.EmployeeID, e.Kind, nullString(string(e.EntityType)), nullString(e.EntityID),
		e.Description, e.Amount.Amount.String(), string(e.Amount.Currency), metadata, formatTime(e.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to append activity: %w", err)
	}
	return nil
}

// activityFilter renders q as FROM/WHERE clauses over activity_logs a.
func activityFilter(q rental.ActivityQuery) (string, []any) {
	from := " FROM activity_logs a"
	var (
		where []string
		args  []any
	)
	if q.Role != "" {
		from += " JOIN employees e ON e.id = a.employee_id"
		where = append(where, "e.role = ?")
		args = append(args, q.Role)
	}
	if q.EmployeeID != "" {
		where = append(where, "a.employee_id = ?")
		args = append(args, q.EmployeeID)
	}
	if !q.From.IsZero() {
		where = append(where, "a.created_at >= ?")
		args = append(args, formatTime(q.From))
	}
	if !q.To.IsZero() {
		where = append(where, "a.created_at < ?")
		args = append(args, formatTime(q.To))
	}
	if len(q.Kinds) > 0 {
		where = append(where, "a.activity_type IN ("+placeholders(len(q.Kinds))+")")
		for _, k := range q.Kinds {
			args = append(args, k)
		}
	}
	if len(where) > 0 {
		from += " WHERE " + strings.Join(where, " AND ")
	}
	return from, args
}

func (q *queries) CountActivities(ctx context.Context, aq rental.ActivityQuery) (int, error) {
	from, args := activityFilter(aq)
	var n int
	if err := q.db.QueryRowContext(ctx, `SELECT COUNT(*)`+from, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count activities: %w", err)
	}
	return n, nil
}

// SumActivityAmount adds the decimal text amounts in Go; SQLite would sum them
// as floats.
func (q *queries) SumActivityAmount(ctx context.Context, aq rental.ActivityQuery) (decimal.Decimal, error) {
	from, args := activityFilter(aq)
	rows, err := q.db.QueryContext(ctx, `SELECT a.amount`+from, args...)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum activities: %w", err)
	}
	defer rows.Close()

	sum := decimal.Zero
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return decimal.Zero, err
		}
		v, err := decimal.NewFromString(raw)
		if err != nil {
			return decimal.Zero, fmt.Errorf("invalid stored amount %q: %w", raw, err)
		}
		sum = sum.Add(v)
	}
	return sum, rows.Err()
}

func (q *queries) ListActivities(ctx context.Context, aq rental.ActivityQuery, offset, limit int) ([]rental.ActivityEntry, int, error) {
	total, err := q.CountActivities(ctx, aq)
	if err != nil {
		return nil, 0, err
	}
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}

	from, args := activityFilter(aq)
	args = append(args, limit, offset)
	rows, err := q.db.QueryContext(ctx,
		`SELECT `+activityColumns+from+` ORDER BY a.created_at DESC, a.rowid DESC LIMIT ? OFFSET ?`, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list activities: %w", err)
	}
	defer rows.Close()

	out := []rental.ActivityEntry{}
	for rows.Next() {
		var (
			e                      rental.ActivityEntry
			entityType, entityID   sql.NullString
			metadata               sql.NullString
			kind, amount, currency string
			createdAt              string
		)
		if err := rows.Scan(&e.ID, &e.EmployeeID, &kind, &entityType, &entityID,
			&e.Description, &amount, &currency, &metadata, &createdAt); err != nil {
			return nil, 0, err
		}
		e.Kind = rental.ActivityKind(kind)
		e.EntityType = rental.EntityType(entityType.String)
		e.EntityID = entityID.String
		if e.Amount, err = parseMoney(amount, currency); err != nil {
			return nil, 0, err
		}
		if e.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, 0, err
		}
		if metadata.Valid && metadata.String != "" {
			if err := json.Unmarshal([]byte(metadata.String), &e.Metadata); err != nil {
				return nil, 0, fmt.Errorf("invalid activity metadata: %w", err)
			}
		}
		out = append(out, e)
	}
	return out, total, rows.Err()
}

// =============================================================================
// TARGETS
// =============================================================================

const targetColumns = `id, employee_id, period, start_date, end_date,
	target_bookings, target_booking_revenue, currency, target_new_customers, target_completion_rate,
	target_new_owners, target_new_projects, target_new_units,
	notes, set_by_id, is_active, created_at, updated_at`

func (q *queries) InsertTarget(ctx context.Context, t rental.Target) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO employee_targets (`+targetColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		t.ID, t.EmployeeID, t.Period, t.StartDate.String(), t.EndDate.String(),
		t.TargetBookings, t.TargetBookingRevenue.Amount.String(), string(t.TargetBookingRevenue.Currency),
		t.TargetNewCustomers, t.TargetCompletionRate.String(),
		t.TargetNewOwners, t.TargetNewProjects, t.TargetNewUnits,
		nullString(t.Notes), nullString(string(t.SetBy)), t.IsActive, formatTime(t.CreatedAt), formatTime(t.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert target: %w", err)
	}
	return nil
}

func (q *queries) UpdateTarget(ctx context.Context, t rental.Target) error {
	res, err := q.db.ExecContext(ctx, `
		UPDATE employee_targets SET
			period = ?, start_date = ?, end_date = ?,
			target_bookings = ?, target_booking_revenue = ?, currency = ?, target_new_customers = ?, target_completion_rate = ?,
			target_new_owners = ?, target_new_projects = ?, target_new_units = ?,
			notes = ?, is_active = ?, updated_at = ?
		WHERE id = ?
	`,
		t.Period, t.StartDate.String(), t.EndDate.String(),
		t.TargetBookings, t.TargetBookingRevenue.Amount.String(), string(t.TargetBookingRevenue.Currency),
		t.TargetNewCustomers, t.TargetCompletionRate.String(),
		t.TargetNewOwners, t.TargetNewProjects, t.TargetNewUnits,
		nullString(t.Notes), t.IsActive, formatTime(t.UpdatedAt),
		t.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update target: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &rental.NotFoundError{Kind: "target", ID: string(t.ID)}
	}
	return nil
}

func (q *queries) GetTarget(ctx context.Context, id rental.TargetID) (*rental.Target, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+targetColumns+` FROM employee_targets WHERE id = ?`, id)
	t, err := scanTarget(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get target: %w", err)
	}
	return &t, nil
}

func (q *queries) DeactivateTargets(ctx context.Context, employeeID rental.EmployeeID, from calendar.Date, now time.Time) (int, error) {
	res, err := q.db.ExecContext(ctx, `
		UPDATE employee_targets SET is_active = 0, updated_at = ?
		WHERE employee_id = ? AND is_active = 1 AND end_date >= ?
	`, formatTime(now), employeeID, from.String())
	if err != nil {
		return 0, fmt.Errorf("failed to deactivate targets: %w", err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (q *queries) ActiveTarget(ctx context.Context, employeeID rental.EmployeeID, on calendar.Date) (*rental.Target, error) {
	row := q.db.QueryRowContext(ctx, `
		SELECT `+targetColumns+` FROM employee_targets
		WHERE employee_id = ? AND is_active = 1 AND start_date <= ? AND end_date >= ?
		ORDER BY created_at DESC
		LIMIT 1
	`, employeeID, on.String(), on.String())
	t, err := scanTarget(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get active target: %w", err)
	}
	return &t, nil
}

func (q *queries) ListTargets(ctx context.Context, employeeID rental.EmployeeID, includeInactive bool) ([]rental.Target, error) {
	query := `SELECT ` + targetColumns + ` FROM employee_targets WHERE employee_id = ?`
	if !includeInactive {
		query += " AND is_active = 1"
	}
	query += " ORDER BY created_at DESC"

	rows, err := q.db.QueryContext(ctx, query, employeeID)
	if err != nil {
		return nil, fmt.Errorf("failed to list targets: %w", err)
	}
	defer rows.Close()

	var out []rental.Target
	for rows.Next() {
		t, err := scanTarget(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func scanTarget(row scanner) (rental.Target, error) {
	var (
		t                       rental.Target
		period, start, end      string
		revenue, currency, rate string
		notes, setBy            sql.NullString
		createdAt, updatedAt    string
	)
	err := row.Scan(&t.ID, &t.EmployeeID, &period, &start, &end,
		&t.TargetBookings, &revenue, &currency, &t.TargetNewCustomers, &rate,
		&t.TargetNewOwners, &t.TargetNewProjects, &t.TargetNewUnits,
		&notes, &setBy, &t.IsActive, &createdAt, &updatedAt)
	if err != nil {
		return rental.Target{}, err
	}
	t.Period = rental.TargetPeriod(period)
	if t.StartDate, err = calendar.ParseDate(start); err != nil {
		return rental.Target{}, err
	}
	if t.EndDate, err = calendar.ParseDate(end); err != nil {
		return rental.Target{}, err
	}
	if t.TargetBookingRevenue, err = parseMoney(revenue, currency); err != nil {
		return rental.Target{}, err
	}
	if t.TargetCompletionRate, err = decimal.NewFromString(rate); err != nil {
		return rental.Target{}, fmt.Errorf("invalid completion rate %q: %w", rate, err)
	}
	t.Notes = notes.String
	t.SetBy = rental.EmployeeID(setBy.String)
	if t.CreatedAt, err = parseTime(createdAt); err != nil {
		return rental.Target{}, err
	}
	if t.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return rental.Target{}, err
	}
	return t, nil
}

// =============================================================================
// HELPERS
// =============================================================================

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	return t, nil
}

func parseMoney(value, currency string) (rental.Money, error) {
	amount, err := decimal.NewFromString(value)
	if err != nil {
		return rental.Money{}, fmt.Errorf("invalid amount %q: %w", value, err)
	}
	return rental.NewMoney(amount, rental.Currency(currency)), nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func isOverlapError(err error) bool {
	return err != nil && strings.Contains(err.Error(), overlapMarker)
}
