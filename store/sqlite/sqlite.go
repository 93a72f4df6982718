/*
Package sqlite provides a SQLite-backed implementation of rental.TxStore.

PURPOSE:
  Default embedded store. The same schema runs on PostgreSQL (store/postgres)
  with dialect changes and an exclusion constraint in place of the triggers.

KEY TABLES:
  units:            Rentable units with weekday/weekend nightly rates
  bookings:         Stays [check_in_date, check_out_date) per unit
  employees:        Staff with role and system-owner flag
  activity_logs:    APPEND-ONLY employee activity (no UPDATE/DELETE paths)
  employee_targets: Goal windows, at most one active per employee and day

OVERLAP GUARD:
  Two triggers abort any INSERT or UPDATE that would leave two occupying
  bookings of one unit sharing a night:
    RAISE(ABORT, 'booking_overlap') -> rental.ErrBookingOverlap
  The occupying status list comes from rental.OccupyingStatuses().

DATES AND TIMES:
  Dates are stored as YYYY-MM-DD, timestamps as fixed-width UTC text, so
  string comparison matches chronological order in every range query.
  Money is stored as decimal text and summed in Go.

CONCURRENCY:
  One connection (required for ":memory:" and serializes writers) plus
  sync.RWMutex. WithTx holds the write lock for the whole callback, so the
  overlap check and the insert it guards cannot interleave with another
  transaction.

USAGE:
  store, err := sqlite.New("./data/rental.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  engine := booking.NewEngine(store, cfg)

SEE ALSO:
  - rental/store.go: Interface definitions
  - store/memory/memory.go: In-memory implementation for testing
  - store/postgres/postgres.go: PostgreSQL implementation
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/warp/rental-engine/calendar"
	"github.com/warp/rental-engine/rental"
)

// Store implements rental.TxStore using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
	q  *queries
}

// New opens (and migrates) the database at dbPath.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	store := &Store{db: db, q: &queries{db: db}}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the connection; used by the health endpoint.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS units (
		id TEXT PRIMARY KEY,
		project_id TEXT,
		name TEXT NOT NULL,
		weekday_rate TEXT NOT NULL,
		weekend_rate TEXT NOT NULL,
		currency TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'available',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS bookings (
		id TEXT PRIMARY KEY,
		unit_id TEXT NOT NULL REFERENCES units(id),
		customer_id TEXT,
		guest_name TEXT NOT NULL DEFAULT '',
		guest_phone TEXT,
		check_in_date TEXT NOT NULL,
		check_out_date TEXT NOT NULL,
		total_price TEXT NOT NULL,
		currency TEXT NOT NULL,
		status TEXT NOT NULL,
		notes TEXT,
		created_by TEXT,
		updated_by TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		CHECK (check_in_date < check_out_date)
	);

	-- Overlap checks and monthly listings (hot path)
	CREATE INDEX IF NOT EXISTS idx_bookings_unit_stay
		ON bookings(unit_id, check_in_date, check_out_date);
	CREATE INDEX IF NOT EXISTS idx_bookings_status
		ON bookings(status);

	CREATE TABLE IF NOT EXISTS employees (
		id TEXT PRIMARY KEY,
		username TEXT NOT NULL,
		first_name TEXT NOT NULL,
		last_name TEXT,
		email TEXT,
		role TEXT NOT NULL,
		is_active INTEGER NOT NULL DEFAULT 1,
		is_system_owner INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL
	);

	-- Activity log (append-only)
	CREATE TABLE IF NOT EXISTS activity_logs (
		id TEXT PRIMARY KEY,
		employee_id TEXT NOT NULL,
		activity_type TEXT NOT NULL,
		entity_type TEXT,
		entity_id TEXT,
		description TEXT NOT NULL,
		amount TEXT NOT NULL DEFAULT '0',
		currency TEXT NOT NULL,
		metadata_json TEXT,
		created_at TEXT NOT NULL
	);

	-- Range counts per employee (hot path)
	CREATE INDEX IF NOT EXISTS idx_activity_employee_created
		ON activity_logs(employee_id, created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_activity_type
		ON activity_logs(activity_type);
	CREATE INDEX IF NOT EXISTS idx_activity_created
		ON activity_logs(created_at DESC);

	CREATE TABLE IF NOT EXISTS employee_targets (
		id TEXT PRIMARY KEY,
		employee_id TEXT NOT NULL,
		period TEXT NOT NULL,
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL,
		target_bookings INTEGER NOT NULL DEFAULT 0,
		target_booking_revenue TEXT NOT NULL DEFAULT '0',
		currency TEXT NOT NULL DEFAULT '',
		target_new_customers INTEGER NOT NULL DEFAULT 0,
		target_completion_rate TEXT NOT NULL DEFAULT '0',
		target_new_owners INTEGER NOT NULL DEFAULT 0,
		target_new_projects INTEGER NOT NULL DEFAULT 0,
		target_new_units INTEGER NOT NULL DEFAULT 0,
		notes TEXT,
		set_by_id TEXT,
		is_active INTEGER NOT NULL DEFAULT 1,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_targets_employee_active
		ON employee_targets(employee_id, is_active, start_date, end_date);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return err
	}
	_, err := s.db.Exec(overlapTriggers())
	return err
}

// overlapTriggers builds the storage-level overlap guard from the one
// definition of occupying statuses.
func overlapTriggers() string {
	quoted := make([]string, 0, len(rental.OccupyingStatuses()))
	for _, st := range rental.OccupyingStatuses() {
		quoted = append(quoted, "'"+string(st)+"'")
	}
	occupying := strings.Join(quoted, ", ")

	guard := `
		SELECT RAISE(ABORT, '` + overlapMarker + `')
		WHERE EXISTS (
			SELECT 1 FROM bookings b
			WHERE b.unit_id = NEW.unit_id
			  AND b.id <> NEW.id
			  AND b.status IN (` + occupying + `)
			  AND b.check_in_date < NEW.check_out_date
			  AND NEW.check_in_date < b.check_out_date
		);`

	return `
	CREATE TRIGGER IF NOT EXISTS trg_bookings_no_overlap_insert
	BEFORE INSERT ON bookings
	WHEN NEW.status IN (` + occupying + `)
	BEGIN` + guard + `
	END;

	CREATE TRIGGER IF NOT EXISTS trg_bookings_no_overlap_update
	BEFORE UPDATE OF unit_id, check_in_date, check_out_date, status ON bookings
	WHEN NEW.status IN (` + occupying + `)
	BEGIN` + guard + `
	END;
	`
}

// =============================================================================
// TRANSACTIONAL STORE (rental.TxStore interface)
// =============================================================================

// WithTx executes fn within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(store rental.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&queries{db: sqlTx}); err != nil {
		return err
	}

	return sqlTx.Commit()
}

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{"activity_logs", "employee_targets", "bookings", "units", "employees"}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

// =============================================================================
// LOCKED ACCESSORS - Outside a transaction every call takes the mutex
// =============================================================================

func (s *Store) SaveUnit(ctx context.Context, u rental.Unit) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.q.SaveUnit(ctx, u)
}

func (s *Store) GetUnit(ctx context.Context, id rental.UnitID) (*rental.Unit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.q.GetUnit(ctx, id)
}

func (s *Store) ListUnits(ctx context.Context) ([]rental.Unit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.q.ListUnits(ctx)
}

func (s *Store) InsertBooking(ctx context.Context, b rental.Booking) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.q.InsertBooking(ctx, b)
}

func (s *Store) UpdateBooking(ctx context.Context, b rental.Booking) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.q.UpdateBooking(ctx, b)
}

func (s *Store) DeleteBooking(ctx context.Context, id rental.BookingID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.q.DeleteBooking(ctx, id)
}

func (s *Store) GetBooking(ctx context.Context, id rental.BookingID) (*rental.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.q.GetBooking(ctx, id)
}

func (s *Store) ListBookings(ctx context.Context, f rental.BookingFilter) ([]rental.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.q.ListBookings(ctx, f)
}

func (s *Store) SaveEmployee(ctx context.Context, e rental.Employee) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.q.SaveEmployee(ctx, e)
}

func (s *Store) GetEmployee(ctx context.Context, id rental.EmployeeID) (*rental.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.q.GetEmployee(ctx, id)
}

func (s *Store) ListEmployees(ctx context.Context, f rental.EmployeeFilter) ([]rental.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.q.ListEmployees(ctx, f)
}

func (s *Store) AppendActivity(ctx context.Context, e rental.ActivityEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.q.AppendActivity(ctx, e)
}

func (s *Store) CountActivities(ctx context.Context, q rental.ActivityQuery) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.q.CountActivities(ctx, q)
}

func (s *Store) SumActivityAmount(ctx context.Context, q rental.ActivityQuery) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.q.SumActivityAmount(ctx, q)
}

func (s *Store) ListActivities(ctx context.Context, q rental.ActivityQuery, offset, limit int) ([]rental.ActivityEntry, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.q.ListActivities(ctx, q, offset, limit)
}

func (s *Store) InsertTarget(ctx context.Context, t rental.Target) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.q.InsertTarget(ctx, t)
}

func (s *Store) UpdateTarget(ctx context.Context, t rental.Target) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.q.UpdateTarget(ctx, t)
}

func (s *Store) GetTarget(ctx context.Context, id rental.TargetID) (*rental.Target, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.q.GetTarget(ctx, id)
}

func (s *Store) DeactivateTargets(ctx context.Context, employeeID rental.EmployeeID, from calendar.Date, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.q.DeactivateTargets(ctx, employeeID, from, now)
}

func (s *Store) ActiveTarget(ctx context.Context, employeeID rental.EmployeeID, on calendar.Date) (*rental.Target, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.q.ActiveTarget(ctx, employeeID, on)
}

func (s *Store) ListTargets(ctx context.Context, employeeID rental.EmployeeID, includeInactive bool) ([]rental.Target, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.q.ListTargets(ctx, employeeID, includeInactive)
}
