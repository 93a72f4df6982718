// Package memory provides an in-memory rental.TxStore (for testing/dev).
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/rental-engine/calendar"
	"github.com/warp/rental-engine/rental"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu    sync.RWMutex
	state state
}

type state struct {
	units      map[rental.UnitID]rental.Unit
	bookings   map[rental.BookingID]rental.Booking
	employees  map[rental.EmployeeID]rental.Employee
	activities []rental.ActivityEntry // append order
	targets    map[rental.TargetID]rental.Target
}

func newState() state {
	return state{
		units:     make(map[rental.UnitID]rental.Unit),
		bookings:  make(map[rental.BookingID]rental.Booking),
		employees: make(map[rental.EmployeeID]rental.Employee),
		targets:   make(map[rental.TargetID]rental.Target),
	}
}

func New() *Memory {
	return &Memory{state: newState()}
}

// Every public method takes the lock and delegates to the matching method on
// state. The transactional view calls state directly while WithTx holds the lock.

func (m *Memory) SaveUnit(_ context.Context, u rental.Unit) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.saveUnit(u)
}

func (m *Memory) GetUnit(_ context.Context, id rental.UnitID) (*rental.Unit, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.getUnit(id)
}

func (m *Memory) ListUnits(_ context.Context) ([]rental.Unit, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.listUnits()
}

func (m *Memory) InsertBooking(_ context.Context, b rental.Booking) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.insertBooking(b)
}

func (m *Memory) UpdateBooking(_ context.Context, b rental.Booking) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.updateBooking(b)
}

func (m *Memory) DeleteBooking(_ context.Context, id rental.BookingID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.deleteBooking(id)
}

func (m *Memory) GetBooking(_ context.Context, id rental.BookingID) (*rental.Booking, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.getBooking(id)
}

func (m *Memory) ListBookings(_ context.Context, f rental.BookingFilter) ([]rental.Booking, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.listBookings(f)
}

func (m *Memory) SaveEmployee(_ context.Context, e rental.Employee) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.saveEmployee(e)
}

func (m *Memory) GetEmployee(_ context.Context, id rental.EmployeeID) (*rental.Employee, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.getEmployee(id)
}

func (m *Memory) ListEmployees(_ context.Context, f rental.EmployeeFilter) ([]rental.Employee, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.listEmployees(f)
}

// AppendActivity adds a single entry. Append-only.
func (m *Memory) AppendActivity(_ context.Context, e rental.ActivityEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.appendActivity(e)
}

func (m *Memory) CountActivities(_ context.Context, q rental.ActivityQuery) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.countActivities(q)
}

func (m *Memory) SumActivityAmount(_ context.Context, q rental.ActivityQuery) (decimal.Decimal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.sumActivityAmount(q)
}

func (m *Memory) ListActivities(_ context.Context, q rental.ActivityQuery, offset, limit int) ([]rental.ActivityEntry, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.listActivities(q, offset, limit)
}

func (m *Memory) InsertTarget(_ context.Context, t rental.Target) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.insertTarget(t)
}

func (m *Memory) UpdateTarget(_ context.Context, t rental.Target) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.updateTarget(t)
}

func (m *Memory) GetTarget(_ context.Context, id rental.TargetID) (*rental.Target, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.getTarget(id)
}

func (m *Memory) DeactivateTargets(_ context.Context, employeeID rental.EmployeeID, from calendar.Date, now time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.deactivateTargets(employeeID, from, now)
}

func (m *Memory) ActiveTarget(_ context.Context, employeeID rental.EmployeeID, on calendar.Date) (*rental.Target, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.activeTarget(employeeID, on)
}

func (m *Memory) ListTargets(_ context.Context, employeeID rental.EmployeeID, includeInactive bool) ([]rental.Target, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.listTargets(employeeID, includeInactive)
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// WithTx executes fn within a transaction.
// For memory store, this is simulated with a snapshot + rollback on error.
// The write lock is held for the whole of fn, so transactions are serialized.
func (m *Memory) WithTx(ctx context.Context, fn func(rental.Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := m.state.clone()
	if err := fn(&txView{s: &m.state}); err != nil {
		m.state = snapshot
		return err
	}
	return nil
}

// Reset drops all data.
func (m *Memory) Reset(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = newState()
	return nil
}

func (s *state) clone() state {
	c := newState()
	for k, v := range s.units {
		c.units[k] = v
	}
	for k, v := range s.bookings {
		c.bookings[k] = v
	}
	for k, v := range s.employees {
		c.employees[k] = v
	}
	for k, v := range s.targets {
		c.targets[k] = v
	}
	c.activities = append([]rental.ActivityEntry(nil), s.activities...)
	return c
}

// txView is the rental.Store handed to WithTx callbacks.
type txView struct {
	s *state
}

func (v *txView) SaveUnit(_ context.Context, u rental.Unit) error { return v.s.saveUnit(u) }
func (v *txView) GetUnit(_ context.Context, id rental.UnitID) (*rental.Unit, error) {
	return v.s.getUnit(id)
}
func (v *txView) ListUnits(_ context.Context) ([]rental.Unit, error) { return v.s.listUnits() }
func (v *txView) InsertBooking(_ context.Context, b rental.Booking) error {
	return v.s.insertBooking(b)
}
func (v *txView) UpdateBooking(_ context.Context, b rental.Booking) error {
	return v.s.updateBooking(b)
}
func (v *txView) DeleteBooking(_ context.Context, id rental.BookingID) (bool, error) {
	return v.s.deleteBooking(id)
}
func (v *txView) GetBooking(_ context.Context, id rental.BookingID) (*rental.Booking, error) {
	return v.s.getBooking(id)
}
func (v *txView) ListBookings(_ context.Context, f rental.BookingFilter) ([]rental.Booking, error) {
	return v.s.listBookings(f)
}
func (v *txView) SaveEmployee(_ context.Context, e rental.Employee) error {
	return v.s.saveEmployee(e)
}
func (v *txView) GetEmployee(_ context.Context, id rental.EmployeeID) (*rental.Employee, error) {
	return v.s.getEmployee(id)
}
func (v *txView) ListEmployees(_ context.Context, f rental.EmployeeFilter) ([]rental.Employee, error) {
	return v.s.listEmployees(f)
}
func (v *txView) AppendActivity(_ context.Context, e rental.ActivityEntry) error {
	return v.s.appendActivity(e)
}
func (v *txView) CountActivities(_ context.Context, q rental.ActivityQuery) (int, error) {
	return v.s.countActivities(q)
}
func (v *txView) SumActivityAmount(_ context.Context, q rental.ActivityQuery) (decimal.Decimal, error) {
	return v.s.sumActivityAmount(q)
}
func (v *txView) ListActivities(_ context.Context, q rental.ActivityQuery, offset, limit int) ([]rental.ActivityEntry, int, error) {
	return v.s.listActivities(q, offset, limit)
}
func (v *txView) InsertTarget(_ context.Context, t rental.Target) error {
	return v.s.insertTarget(t)
}
func (v *txView) UpdateTarget(_ context.Context, t rental.Target) error {
	return v.s.updateTarget(t)
}
func (v *txView) GetTarget(_ context.Context, id rental.TargetID) (*rental.Target, error) {
	return v.s.getTarget(id)
}
func (v *txView) DeactivateTargets(_ context.Context, employeeID rental.EmployeeID, from calendar.Date, now time.Time) (int, error) {
	return v.s.deactivateTargets(employeeID, from, now)
}
func (v *txView) ActiveTarget(_ context.Context, employeeID rental.EmployeeID, on calendar.Date) (*rental.Target, error) {
	return v.s.activeTarget(employeeID, on)
}
func (v *txView) ListTargets(_ context.Context, employeeID rental.EmployeeID, includeInactive bool) ([]rental.Target, error) {
	return v.s.listTargets(employeeID, includeInactive)
}

// =============================================================================
// STATE OPERATIONS (caller holds the lock)
// =============================================================================

func (s *state) saveUnit(u rental.Unit) error {
	s.units[u.ID] = u
	return nil
}

func (s *state) getUnit(id rental.UnitID) (*rental.Unit, error) {
	u, ok := s.units[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (s *state) listUnits() ([]rental.Unit, error) {
	out := make([]rental.Unit, 0, len(s.units))
	for _, u := range s.units {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// guardOverlap mirrors the storage-level guard of the SQL stores.
func (s *state) guardOverlap(b rental.Booking) error {
	if !b.Status.IsOccupying() {
		return nil
	}
	f := rental.OverlapFilter(b.UnitID, b.CheckIn, b.CheckOut, b.ID)
	for _, other := range s.bookings {
		if f.Matches(other) {
			return rental.ErrBookingOverlap
		}
	}
	return nil
}

func (s *state) insertBooking(b rental.Booking) error {
	if err := s.guardOverlap(b); err != nil {
		return err
	}
	s.bookings[b.ID] = b
	return nil
}

func (s *state) updateBooking(b rental.Booking) error {
	if _, ok := s.bookings[b.ID]; !ok {
		return &rental.NotFoundError{Kind: "booking", ID: string(b.ID)}
	}
	if err := s.guardOverlap(b); err != nil {
		return err
	}
	s.bookings[b.ID] = b
	return nil
}

func (s *state) deleteBooking(id rental.BookingID) (bool, error) {
	if _, ok := s.bookings[id]; !ok {
		return false, nil
	}
	delete(s.bookings, id)
	return true, nil
}

func (s *state) getBooking(id rental.BookingID) (*rental.Booking, error) {
	b, ok := s.bookings[id]
	if !ok {
		return nil, nil
	}
	return &b, nil
}

func (s *state) listBookings(f rental.BookingFilter) ([]rental.Booking, error) {
	var out []rental.Booking
	for _, b := range s.bookings {
		if f.Matches(b) {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CheckIn.Equal(out[j].CheckIn) {
			return out[i].ID < out[j].ID
		}
		return out[i].CheckIn.Before(out[j].CheckIn)
	})
	return out, nil
}

func (s *state) saveEmployee(e rental.Employee) error {
	s.employees[e.ID] = e
	return nil
}

func (s *state) getEmployee(id rental.EmployeeID) (*rental.Employee, error) {
	e, ok := s.employees[id]
	if !ok {
		return nil, nil
	}
	return &e, nil
}

func (s *state) listEmployees(f rental.EmployeeFilter) ([]rental.Employee, error) {
	var out []rental.Employee
	for _, e := range s.employees {
		if f.ActiveOnly && !e.IsActive {
			continue
		}
		if f.ExcludeSystemOwner && e.IsSystemOwner {
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *state) appendActivity(e rental.ActivityEntry) error {
	s.activities = append(s.activities, e)
	return nil
}

func (s *state) matchActivity(q rental.ActivityQuery, e rental.ActivityEntry) bool {
	if q.EmployeeID != "" && e.EmployeeID != q.EmployeeID {
		return false
	}
	if q.Role != "" {
		emp, ok := s.employees[e.EmployeeID]
		if !ok || emp.Role != q.Role {
			return false
		}
	}
	return q.HasKind(e.Kind) && q.InRange(e.CreatedAt)
}

func (s *state) countActivities(q rental.ActivityQuery) (int, error) {
	n := 0
	for _, e := range s.activities {
		if s.matchActivity(q, e) {
			n++
		}
	}
	return n, nil
}

func (s *state) sumActivityAmount(q rental.ActivityQuery) (decimal.Decimal, error) {
	sum := decimal.Zero
	for _, e := range s.activities {
		if s.matchActivity(q, e) {
			sum = sum.Add(e.Amount.Amount)
		}
	}
	return sum, nil
}

func (s *state) listActivities(q rental.ActivityQuery, offset, limit int) ([]rental.ActivityEntry, int, error) {
	var matched []rental.ActivityEntry
	for i := len(s.activities) - 1; i >= 0; i-- {
		if s.matchActivity(q, s.activities[i]) {
			matched = append(matched, s.activities[i])
		}
	}
	// Newest first; ties keep reverse append order.
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})
	total := len(matched)
	if offset >= total {
		return []rental.ActivityEntry{}, total, nil
	}
	end := total
	if limit > 0 && offset+limit < total {
		end = offset + limit
	}
	return append([]rental.ActivityEntry(nil), matched[offset:end]...), total, nil
}

func (s *state) insertTarget(t rental.Target) error {
	s.targets[t.ID] = t
	return nil
}

func (s *state) updateTarget(t rental.Target) error {
	if _, ok := s.targets[t.ID]; !ok {
		return &rental.NotFoundError{Kind: "target", ID: string(t.ID)}
	}
	s.targets[t.ID] = t
	return nil
}

func (s *state) getTarget(id rental.TargetID) (*rental.Target, error) {
	t, ok := s.targets[id]
	if !ok {
		return nil, nil
	}
	return &t, nil
}

func (s *state) deactivateTargets(employeeID rental.EmployeeID, from calendar.Date, now time.Time) (int, error) {
	n := 0
	for id, t := range s.targets {
		if t.EmployeeID == employeeID && t.IsActive && t.EndDate.AfterOrEqual(from) {
			t.IsActive = false
			t.UpdatedAt = now
			s.targets[id] = t
			n++
		}
	}
	return n, nil
}

func (s *state) activeTarget(employeeID rental.EmployeeID, on calendar.Date) (*rental.Target, error) {
	var best *rental.Target
	for _, t := range s.targets {
		if t.EmployeeID != employeeID || !t.IsActive || !t.Window().Contains(on) {
			continue
		}
		if best == nil || t.CreatedAt.After(best.CreatedAt) {
			t := t
			best = &t
		}
	}
	return best, nil
}

func (s *state) listTargets(employeeID rental.EmployeeID, includeInactive bool) ([]rental.Target, error) {
	var out []rental.Target
	for _, t := range s.targets {
		if t.EmployeeID != employeeID || (!includeInactive && !t.IsActive) {
			continue
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}
