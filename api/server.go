/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for the operator UI
  5. Actor:      X-Actor-ID header into the request context

ROUTE GROUPS:
  /api/holidays/*       Holiday definitions, dates, feeds, generation
  /api/customers/*      Customers
  /api/products/*       Flag products
  /api/subscriptions/*  Subscription lifecycle
  /api/placements/*     Crew operations on placements
  /api/admin/*          Reminders
  /api/scenarios/*      Demo scenarios
  /metrics              Prometheus
  /health               Liveness

SECURITY NOTE:
  No authentication middleware. All endpoints are public.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/injoimydesign/flag-community/schedule"
)

// ActorHeader names the crew member performing a request.
const ActorHeader = "X-Actor-ID"

// RouterOptions configures NewRouter. Zero values are usable.
type RouterOptions struct {
	CORSOrigins []string

	// Metrics serves /metrics when set.
	Metrics http.Handler
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, opts RouterOptions) *chi.Mux {
	origins := opts.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:5173", "http://localhost:8080"}
	}

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", ActorHeader},
		AllowCredentials: true,
	}))
	r.Use(ActorMiddleware)

	r.Get("/health", h.Health)
	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics)
	}

	r.Route("/api", func(r chi.Router) {
		// Holiday routes
		r.Route("/holidays", func(r chi.Router) {
			r.Get("/", h.ListHolidays)
			r.Post("/", h.CreateHoliday)
			r.Post("/defaults", h.AddDefaultHolidays)
			r.Get("/calendar.ics", h.HolidayCalendar)
			r.Get("/{id}", h.GetHoliday)
			r.Get("/{id}/dates", h.HolidayDates)
			r.Post("/{id}/generate", h.GenerateForHoliday)
		})

		// Catalog routes
		r.Route("/customers", func(r chi.Router) {
			r.Get("/", h.ListCustomers)
			r.Post("/", h.CreateCustomer)
		})
		r.Route("/products", func(r chi.Router) {
			r.Get("/", h.ListProducts)
			r.Post("/", h.CreateProduct)
		})

		// Subscription routes
		r.Route("/subscriptions", func(r chi.Router) {
			r.Get("/", h.ListSubscriptions)
			r.Post("/", h.CreateSubscription)
			r.Get("/{id}", h.GetSubscription)
			r.Get("/{id}/placements", h.SubscriptionPlacements)
			r.Post("/{id}/generate", h.GenerateForSubscription)
			r.Post("/{id}/activate", h.ActivateSubscription)
			r.Post("/{id}/cancel", h.CancelSubscription)
			r.Post("/{id}/reactivate", h.ReactivateSubscription)
			r.Post("/{id}/renew", h.RenewSubscription)
		})

		// Placement routes
		r.Route("/placements", func(r chi.Router) {
			r.Get("/", h.ListPlacements)
			r.Get("/calendar.ics", h.PlacementCalendar)
			r.Post("/bulk", h.BulkTransition)
			r.Get("/{id}", h.GetPlacement)
			r.Post("/{id}/place", h.Transition(schedule.ActionPlace))
			r.Post("/{id}/remove", h.Transition(schedule.ActionRemove))
			r.Post("/{id}/skip", h.Transition(schedule.ActionSkip))
			r.Post("/{id}/reschedule", h.Transition(schedule.ActionReschedule))
		})

		// Admin routes
		r.Route("/admin", func(r chi.Router) {
			r.Post("/reminders", h.SendReminders)
		})

		// Scenario routes
		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Get("/current", h.GetCurrentScenario)
			r.Post("/load", h.LoadScenario)
			r.Post("/reset", h.ResetDatabase)
		})
	})

	return r
}

// ActorMiddleware stores the X-Actor-ID header as the request's actor.
func ActorMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := r.Header.Get(ActorHeader); id != "" {
			r = r.WithContext(schedule.WithActor(r.Context(), id))
		}
		next.ServeHTTP(w, r)
	})
}
