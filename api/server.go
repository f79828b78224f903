/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route
  definitions. This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. Metrics:    Prometheus request duration histogram (optional)
  5. CORS:       Cross-origin requests for the console frontend
  6. Auth:       JWT bearer tokens; everything under /api/v1 except
                 /auth/login requires a valid token

ROUTE GROUPS:
  /api/v1/auth/*        Login
  /api/v1/leaves/*      Leave requests and balances
  /api/v1/compoff/*     Comp-off claims and wallet
  /api/v1/wfh/*         WFH requests
  /api/v1/accrual/*     Accrual runs (HR/ADMIN)
  /api/v1/policy/*      Policy per year, year-close (ADMIN)
  /api/v1/hr/*          HR-only actions
  /api/v1/admin/*       Reporting views (HR/ADMIN)
  /api/v1/employees/*   Organization management (HR/ADMIN)
  /metrics              Prometheus scrape endpoint (unauthenticated)

SEE ALSO:
  - handlers.go: Handler implementations
  - auth.go: Token middleware and role gates
  - cmd/server/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/warp/leave-engine/engine"
	"github.com/warp/leave-engine/metrics"
)

// RouterOptions carries the deployment knobs the router needs.
type RouterOptions struct {
	CORSOrigins    []string
	MetricsEnabled bool
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, opts RouterOptions) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	if opts.MetricsEnabled {
		r.Use(metrics.Middleware)
		r.Handle("/metrics", promhttp.Handler())
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/auth/login", h.Login)

		// Everything below requires a valid token.
		r.Group(func(r chi.Router) {
			r.Use(h.Auth.Middleware)

			r.Route("/leaves", func(r chi.Router) {
				r.Post("/", h.SubmitLeave)
				r.Get("/my", h.MyLeaves)
				r.Get("/balance", h.MyBalances)
				r.Get("/pending", h.PendingLeaves)
				r.Post("/{id}/approve", h.ApproveLeave)
				r.Post("/{id}/reject", h.RejectLeave)
				r.Post("/{id}/cancel", h.CancelLeave)

				r.With(RequireRoles(engine.RoleHR, engine.RoleAdmin)).
					Get("/list", h.ListLeaves)
			})

			r.Route("/compoff", func(r chi.Router) {
				r.Post("/request", h.SubmitCompoff)
				r.Get("/balance", h.CompoffBalance)
				r.Get("/pending", h.PendingCompoff)
				r.Post("/{id}/approve", h.ApproveCompoff)
				r.Post("/{id}/reject", h.RejectCompoff)
			})

			r.Route("/wfh", func(r chi.Router) {
				r.Post("/request", h.SubmitWfh)
				r.Get("/pending", h.PendingWfh)
				r.Post("/{id}/approve", h.ApproveWfh)
				r.Post("/{id}/reject", h.RejectWfh)
				r.Post("/{id}/cancel", h.CancelWfh)
			})

			r.Route("/accrual", func(r chi.Router) {
				r.Use(RequireRoles(engine.RoleHR, engine.RoleAdmin))
				r.Post("/run", h.RunAccrual)
				r.Get("/status", h.AccrualStatus)
			})

			r.Route("/policy", func(r chi.Router) {
				r.Get("/{year}", h.GetPolicy)
				r.With(RequireRoles(engine.RoleAdmin)).Put("/{year}", h.PutPolicy)
				r.With(RequireRoles(engine.RoleAdmin)).Post("/year-close", h.RunYearClose)
			})

			r.Route("/hr", func(r chi.Router) {
				r.Use(RequireRoles(engine.RoleHR, engine.RoleAdmin))
				r.Post("/actions/cancel-leave/{id}", h.CompanyCancelLeave)
			})

			r.Route("/admin", func(r chi.Router) {
				r.Use(RequireRoles(engine.RoleHR, engine.RoleAdmin))
				r.Get("/leaves/balances", h.AdminBalances)
				r.Get("/leaves/balances/transactions", h.AdminTransactions)
				r.Get("/wfh/usage", h.WfhUsage)
			})

			r.Route("/employees", func(r chi.Router) {
				r.Use(RequireRoles(engine.RoleHR, engine.RoleAdmin))
				r.Get("/", h.ListEmployees)
				r.Post("/", h.SaveEmployee)
				r.Get("/{id}", h.GetEmployee)
			})

			r.Get("/roles", h.ListRoles)
			r.Get("/departments", h.ListDepartments)
			r.With(RequireRoles(engine.RoleHR, engine.RoleAdmin)).
				Post("/departments", h.SaveDepartment)
			r.Get("/holidays", h.ListHolidays)
			r.With(RequireRoles(engine.RoleHR, engine.RoleAdmin)).
				Post("/holidays", h.SaveHoliday)
		})
	})

	return r
}
