package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/Priya8975/crm-automation-dispatch/internal/automation"
	"github.com/Priya8975/crm-automation-dispatch/internal/domain"
	"github.com/Priya8975/crm-automation-dispatch/internal/permission"
	"github.com/Priya8975/crm-automation-dispatch/internal/worker"
)

// Submitter queues automation jobs.
type Submitter interface {
	Submit(ctx context.Context, job worker.Job) error
}

// Limiter throttles submissions per user.
type Limiter interface {
	Allow(ctx context.Context, userID string) bool
}

type AutomationHandler struct {
	jobs    Submitter
	limiter Limiter
	logger  *slog.Logger
}

func NewAutomationHandler(jobs Submitter, limiter Limiter, logger *slog.Logger) *AutomationHandler {
	return &AutomationHandler{jobs: jobs, limiter: limiter, logger: logger}
}

type EventResponse struct {
	Kind   string `json:"kind,omitempty"`
	Queued bool   `json:"queued"`
}

// Create classifies a change event and queues relevant ones for the
// integrations. The caller does not wait for delivery.
func (h *AutomationHandler) Create(w http.ResponseWriter, r *http.Request) {
	var event domain.ChangeEvent
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user := permission.UserFrom(r.Context())
	if h.limiter != nil && !h.limiter.Allow(r.Context(), user.ID) {
		respondError(w, http.StatusTooManyRequests, "too many automation events")
		return
	}

	decision := automation.Classify(event)
	if decision == nil {
		respondJSON(w, http.StatusOK, EventResponse{Queued: false})
		return
	}

	err := h.jobs.Submit(r.Context(), worker.Job{Decision: *decision, User: user})
	if err != nil {
		level := slog.LevelWarn
		if !errors.Is(err, context.Canceled) {
			level = slog.LevelError
		}
		h.logger.Log(r.Context(), level, "failed to queue automation job",
			"kind", decision.Kind,
			"user_id", user.ID,
			"error", err,
		)
		respondError(w, http.StatusServiceUnavailable, "automation queue unavailable")
		return
	}

	respondJSON(w, http.StatusAccepted, EventResponse{Kind: decision.Kind, Queued: true})
}
