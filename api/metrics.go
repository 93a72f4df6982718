package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/warp/rental-engine/rental"
)

var (
	httpRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rental_engine",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests by method, route pattern and status code.",
	}, []string{"method", "route", "status"})
	httpDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "rental_engine",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency by method and route pattern.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})
	activitiesRecorded = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rental_engine",
		Subsystem: "activity",
		Name:      "recorded_total",
		Help:      "Committed activity log entries by activity type.",
	}, []string{"activity_type"})
	lastActivityGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "rental_engine",
		Subsystem: "activity",
		Name:      "last_recorded_timestamp_seconds",
		Help:      "Unix timestamp of the most recent committed activity entry.",
	})
	bookingsByStatus = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "rental_engine",
		Subsystem: "bookings",
		Name:      "current",
		Help:      "Bookings currently stored, by status.",
	}, []string{"status"})
	activeTargets = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "rental_engine",
		Subsystem: "targets",
		Name:      "active_employees",
		Help:      "Active employees with a target covering today.",
	})
)

func init() {
	prometheus.MustRegister(httpRequests, httpDuration, activitiesRecorded, lastActivityGauge, bookingsByStatus, activeTargets)
}

// instrument records request counts and latency per route pattern.
func instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		httpRequests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		httpDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

// ActivityMetrics counts committed activity entries. It is registered as an
// activity listener next to the event publisher.
type ActivityMetrics struct{}

func (ActivityMetrics) ActivityRecorded(_ context.Context, entry rental.ActivityEntry) {
	activitiesRecorded.WithLabelValues(string(entry.Kind)).Inc()
	if !entry.CreatedAt.IsZero() {
		lastActivityGauge.Set(float64(entry.CreatedAt.Unix()))
	}
}

// recordBookingCounts replaces the per-status booking gauge.
func recordBookingCounts(counts map[rental.BookingStatus]int) {
	for _, s := range rental.BookingStatuses {
		bookingsByStatus.WithLabelValues(string(s)).Set(float64(counts[s]))
	}
}

func recordActiveTargets(n int) {
	activeTargets.Set(float64(n))
}
