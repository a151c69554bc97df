/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

ROUTER: chi
  Chi was chosen for:
  - Lightweight and fast
  - Context-based
  - Middleware support
  - RESTful route patterns

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for the admin frontend

ROUTE GROUPS:
  /api/periods/*    Period lifecycle, imports, recompute, summaries
  /api/scenarios/*  Demo data loaders (development only)
  /api/agencies/*   Agency policy (tiers, service codes, rates, salary)

SECURITY NOTE:
  No authentication middleware currently. All endpoints are public.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		// Period routes
		r.Route("/periods", func(r chi.Router) {
			r.Get("/", h.ListPeriods)
			r.Post("/", h.CreatePeriod)
			r.Get("/{id}", h.GetPeriod)
			r.Post("/{id}/status", h.SetPeriodStatus)
			r.Post("/{id}/rows", h.ReplaceRows)
			r.Post("/{id}/recompute", h.Recompute)
			r.Get("/{id}/summaries", h.ListSummaries)

			// Per-period pay inputs
			r.Post("/{id}/adjustments", h.SaveAdjustment)
			r.Post("/{id}/claims", h.SaveClaims)
			r.Post("/{id}/manual-lines", h.AddManualLine)
			r.Post("/{id}/overrides", h.SaveOverride)
			r.Post("/{id}/carryovers", h.AddCarryover)
		})

		// Demo scenario routes (development only)
		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Get("/current", h.GetCurrentScenario)
			r.Post("/load", h.LoadScenario)
		})

		// Agency policy routes
		r.Route("/agencies/{agencyID}", func(r chi.Router) {
			r.Get("/tier-settings", h.GetTierSettings)
			r.Put("/tier-settings", h.SaveTierSettings)
			r.Get("/service-codes", h.ListServiceCodes)
			r.Put("/service-codes", h.SaveServiceCode)
			r.Post("/rate-rules", h.AddRateRule)
			r.Put("/rate-cards", h.SaveRateCard)
			r.Post("/salary-positions", h.AddSalaryPosition)
			r.Get("/employees/{employeeID}/summaries", h.EmployeeSummaries)
		})
	})

	return r
}
