/*
scheduler.go - Periodic refresh of the stored-state gauges

PURPOSE:
  Request counters and the activity counter are updated inline. Figures that
  describe stored state (bookings per status, employees with a target
  covering today) are recomputed on a ticker instead, so scraping /metrics
  never touches the database.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Reads through the store only; never writes
  - Errors are logged and the previous gauge values are kept

USAGE:
  refresher := NewStatsRefresher(handler, time.Minute)
  refresher.Start()
  // ... later
  refresher.Stop()

SEE ALSO:
  - metrics.go: Gauge definitions
*/
package api

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/warp/rental-engine/calendar"
	"github.com/warp/rental-engine/rental"
)

// StatsRefresher recomputes the stored-state gauges.
type StatsRefresher struct {
	Handler       *Handler
	CheckInterval time.Duration
	Enabled       bool

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewStatsRefresher creates a refresher. A non-positive interval disables it.
func NewStatsRefresher(h *Handler, interval time.Duration) *StatsRefresher {
	return &StatsRefresher{
		Handler:       h,
		CheckInterval: interval,
		Enabled:       interval > 0,
	}
}

// Start begins the refresh loop.
func (s *StatsRefresher) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.Enabled {
		log.Println("[Stats] Disabled, not starting")
		return
	}
	if s.ticker != nil {
		return
	}

	s.ticker = time.NewTicker(s.CheckInterval)
	s.stop = make(chan struct{})
	s.wg.Add(1)

	go s.run()

	log.Printf("[Stats] Started with refresh interval: %v", s.CheckInterval)
}

// Stop stops the refresh loop and waits for it to exit.
func (s *StatsRefresher) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ticker != nil {
		s.ticker.Stop()
		close(s.stop)
		s.wg.Wait()
		s.ticker = nil
		log.Println("[Stats] Stopped")
	}
}

func (s *StatsRefresher) run() {
	defer s.wg.Done()

	// Run immediately on start
	s.refresh()

	for {
		select {
		case <-s.ticker.C:
			s.refresh()
		case <-s.stop:
			return
		}
	}
}

func (s *StatsRefresher) refresh() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.RunNow(ctx); err != nil {
		log.Printf("[Stats] Refresh failed: %v", err)
	}
}

// RunNow recomputes the gauges once.
func (s *StatsRefresher) RunNow(ctx context.Context) error {
	counts, err := s.BookingCounts(ctx)
	if err != nil {
		return err
	}
	recordBookingCounts(counts)

	withTarget, err := s.EmployeesWithTarget(ctx)
	if err != nil {
		return err
	}
	recordActiveTargets(withTarget)
	return nil
}

// BookingCounts returns the number of stored bookings per status.
func (s *StatsRefresher) BookingCounts(ctx context.Context) (map[rental.BookingStatus]int, error) {
	bookings, err := s.Handler.Store.ListBookings(ctx, rental.BookingFilter{})
	if err != nil {
		return nil, err
	}
	counts := make(map[rental.BookingStatus]int, len(rental.BookingStatuses))
	for _, b := range bookings {
		counts[b.Status]++
	}
	return counts, nil
}

// EmployeesWithTarget counts active employees with a target covering today.
func (s *StatsRefresher) EmployeesWithTarget(ctx context.Context) (int, error) {
	h := s.Handler
	emps, err := h.Store.ListEmployees(ctx, rental.EmployeeFilter{ActiveOnly: true})
	if err != nil {
		return 0, err
	}
	today := calendar.Today(h.now, h.location)
	n := 0
	for _, e := range emps {
		t, err := h.Targets.GetActiveTarget(ctx, e.ID, today)
		if err != nil {
			return 0, err
		}
		if t != nil {
			n++
		}
	}
	return n, nil
}
