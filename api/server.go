/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:     Unique ID per request for tracing
  2. RealIP:        Client address behind a proxy
  3. RequestLogger: zap access log + request metrics
  4. Recoverer:     Panic recovery (500 instead of crash)
  5. CORS:          Cross-origin requests from the dashboard
  6. Auth:          Bearer JWT on /api only

ROUTE GROUPS:
  /health, /metrics     Unauthenticated
  /api/*                Any authenticated user
  /api/... (admin)      RequireRole(admin)

SEE ALSO:
  - handlers.go: Handler implementations
  - auth.go: Token checks
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/warp/sales-engine/generic"
	"github.com/warp/sales-engine/observability"
)

// RouterOptions carries the cross-cutting pieces of the router.
type RouterOptions struct {
	// Auth verifies bearer tokens. Nil trusts identity headers (local runs).
	Auth        *Authenticator
	CORSOrigins []string

	// Scenarios mounts the demo loaders under /api/scenarios.
	Scenarios bool
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, opts RouterOptions) *chi.Mux {
	r := chi.NewRouter()

	origins := opts.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.RequestLogger(h.logger, h.metrics))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-User-Id", "X-User-Role"},
		AllowCredentials: true,
	}))

	r.Get("/health", h.Health)
	if h.metrics != nil {
		r.Handle("/metrics", promhttp.HandlerFor(h.metrics.Registry, promhttp.HandlerOpts{}))
	}

	admin := RequireRole(generic.RoleAdmin)
	team := RequireRole(generic.RoleAdmin, generic.RoleCoordinator)

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Use(opts.Auth.Middleware)

		// Config routes
		r.Get("/config", h.GetConfig)
		r.With(admin).Put("/config", h.PutConfig)
		r.Get("/team", h.GetTeam)

		// Sale routes
		r.Route("/sales", func(r chi.Router) {
			r.Post("/", h.CreateSale)
			r.Get("/", h.ListSales)
			r.Put("/{month}/{uid}/{id}", h.UpdateSale)
			r.Patch("/{month}/{uid}/{id}/status", h.UpdateSaleStatus)
			r.Delete("/{month}/{uid}/{id}", h.DeleteSale)
		})

		// Marketplace routes
		r.Post("/ml-links", h.AddLink)
		r.Get("/ml-links", h.ListLinks)

		// Instagram routes
		r.Post("/instagram/{kind}", h.IncrementInstagram)
		r.Get("/instagram", h.GetInstagram)

		// Closure routes
		r.Route("/closures", func(r chi.Router) {
			r.Get("/{month}", h.GetClosure)
			r.With(admin).Get("/{month}/suggestion", h.SuggestAdhesion)
			r.With(admin).Post("/", h.PublishClosure)
		})

		// Payout routes
		r.Get("/payouts/{month}", h.GetOwnPayout)
		r.With(team).Get("/payouts/{month}/{uid}", h.GetUserPayout)
		r.With(admin).Get("/commissions/{month}", h.GetCommissions)

		// Admin routes
		r.Route("/admin", func(r chi.Router) {
			r.Use(admin)
			r.Post("/reset-day", h.ResetDay)
			r.Post("/reset-month", h.ResetMonth)
		})

		// Demo scenario routes
		if opts.Scenarios {
			r.Route("/scenarios", func(r chi.Router) {
				r.Use(admin)
				r.Get("/", h.ListScenarios)
				r.Post("/load", h.LoadScenario)
			})
		}
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "Not found", nil)
	})

	return r
}
