/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. Logger:     Request logging
  3. Recoverer:  Panic recovery (500 instead of crash)
  4. instrument: Prometheus request counter + latency histogram
  5. CORS:       Cross-origin requests for the frontend
  6. Auth:       Bearer token -> active employee (everything under /api)

ROUTE GROUPS:
  /healthz                       Liveness + database ping (public)
  /metrics                       Prometheus exposition (public)
  /api/scenarios/*               Demo scenarios (public, only when enabled)
  /api/bookings/*                Booking engine
  /api/units/*                   Units (pricing inputs)
  /api/employees/*               Employees (roles)
  /api/employee-performance/*    Activity log, targets, dashboards

SEE ALSO:
  - handlers.go: Handler implementations
  - auth.go: Bearer token middleware
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RouterConfig controls the router's outer surface.
type RouterConfig struct {
	Auth            *Authenticator
	CORSOrigins     []string
	EnableScenarios bool
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(instrument)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		AllowCredentials: true,
	}))

	r.Get("/healthz", h.Health)
	r.Handle("/metrics", promhttp.Handler())

	if cfg.EnableScenarios {
		r.Route("/api/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Get("/current", h.GetCurrentScenario)
			r.Post("/load", h.LoadScenario)
			r.Post("/reset", h.ResetDatabase)
		})
	}

	// API routes
	r.Group(func(r chi.Router) {
		r.Use(cfg.Auth.Middleware)

		r.Route("/api/bookings", func(r chi.Router) {
			r.Get("/", h.ListBookings)
			r.Post("/", h.CreateBooking)
			r.Get("/monthly", h.MonthlyBookings)
			r.Get("/check-availability", h.CheckAvailability)
			r.Get("/{id}", h.GetBooking)
			r.Put("/{id}", h.UpdateBooking)
			r.Patch("/{id}/status", h.UpdateBookingStatus)
			r.Delete("/{id}", h.DeleteBooking)
		})

		r.Route("/api/units", func(r chi.Router) {
			r.Get("/", h.ListUnits)
			r.Post("/", h.CreateUnit)
			r.Get("/{id}", h.GetUnit)
		})

		r.Route("/api/employees", func(r chi.Router) {
			r.Get("/", h.ListEmployees)
			r.Post("/", h.CreateEmployee)
			r.Get("/{id}", h.GetEmployee)
		})

		r.Route("/api/employee-performance", func(r chi.Router) {
			r.Get("/my-dashboard", h.MyDashboard)
			r.Get("/my-activities", h.MyActivities)
			r.Get("/my-target", h.MyTarget)
			r.Get("/quick-stats", h.QuickStats)
			r.Post("/activities", h.LogActivity)

			r.Get("/team-overview", h.TeamOverview)
			r.Get("/all-activities", h.AllActivities)
			r.Get("/employee/{id}/dashboard", h.EmployeeDashboard)
			r.Get("/employee/{id}/activities", h.EmployeeActivities)

			r.Post("/targets", h.SetTarget)
			r.Get("/targets/{employee_id}", h.ListTargets)
			r.Put("/targets/{target_id}", h.UpdateTarget)
			r.Delete("/targets/{target_id}", h.DeactivateTarget)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "Route not found", nil)
	})

	return r
}
