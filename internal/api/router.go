package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/Priya8975/crm-automation-dispatch/internal/domain"
	"github.com/Priya8975/crm-automation-dispatch/internal/permission"
	"github.com/Priya8975/crm-automation-dispatch/internal/store"
)

// Deps are the components the HTTP API is built from. Limiter, Circuits
// and Realtime are optional.
type Deps struct {
	Configs  store.ConfigStore
	Jobs     Submitter
	Limiter  Limiter
	Circuits CircuitReporter
	Checks   map[string]Pinger
	Realtime http.HandlerFunc
	Logger   *slog.Logger
}

// NewRouter creates and configures the HTTP router.
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()

	// Middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))
	r.Use(corsMiddleware)
	r.Use(identify)

	automationHandler := NewAutomationHandler(deps.Jobs, deps.Limiter, deps.Logger)
	configHandler := NewConfigHandler(deps.Configs, deps.Logger)

	if deps.Realtime != nil {
		r.Get("/ws", deps.Realtime)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", HealthHandler(deps.Checks, deps.Circuits,
			[]string{domain.IntegrationExa, domain.IntegrationN8N}))

		r.Route("/automation", func(r chi.Router) {
			r.Use(permission.Middleware(permission.CheckLogin))
			r.Post("/events", automationHandler.Create)
		})

		r.Route("/configs", func(r chi.Router) {
			r.Use(permission.Middleware(permission.CheckLogin))
			r.Get("/{code}", configHandler.Get)
			r.Put("/{code}", configHandler.Set)
		})
	})

	return r
}

// corsMiddleware adds CORS headers for browser clients.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-User-Id, X-User-Role, X-User-Owner, X-Session-Code, X-User-Email, X-Username")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
