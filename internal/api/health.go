package api

import (
	"context"
	"net/http"
	"time"

	"github.com/Priya8975/crm-automation-dispatch/internal/guard"
)

// Pinger is a dependency the health check probes.
type Pinger interface {
	Ping(ctx context.Context) error
}

// CircuitReporter exposes integration circuit states.
type CircuitReporter interface {
	State(ctx context.Context, integration string) guard.Circuit
}

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status   string                   `json:"status"`
	Version  string                   `json:"version"`
	Checks   map[string]string        `json:"checks,omitempty"`
	Circuits map[string]guard.Circuit `json:"circuits,omitempty"`
}

// HealthHandler pings every dependency and reports circuit states. Any
// failing dependency turns the answer into a 503.
func HealthHandler(deps map[string]Pinger, circuits CircuitReporter, integrations []string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		resp := HealthResponse{
			Status:  "healthy",
			Version: "1.0.0",
			Checks:  make(map[string]string, len(deps)),
		}

		status := http.StatusOK
		for name, dep := range deps {
			if err := dep.Ping(ctx); err != nil {
				resp.Checks[name] = err.Error()
				resp.Status = "degraded"
				status = http.StatusServiceUnavailable
				continue
			}
			resp.Checks[name] = "ok"
		}

		if circuits != nil {
			resp.Circuits = make(map[string]guard.Circuit, len(integrations))
			for _, name := range integrations {
				resp.Circuits[name] = circuits.State(ctx, name)
			}
		}

		respondJSON(w, status, resp)
	}
}
