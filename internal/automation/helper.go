package automation

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Priya8975/crm-automation-dispatch/internal/domain"
)

// Helper runs the whole automation pipeline for one change event.
type Helper struct {
	gate       *Gate
	dispatcher *Dispatcher
	logger     *slog.Logger
}

func NewHelper(gate *Gate, dispatcher *Dispatcher, logger *slog.Logger) *Helper {
	return &Helper{gate: gate, dispatcher: dispatcher, logger: logger}
}

// Run classifies the event and, when it is relevant, notifies the configured
// integrations. The returned decision is nil for irrelevant events.
func (h *Helper) Run(ctx context.Context, event domain.ChangeEvent, user *domain.User) (*domain.AutomationDecision, error) {
	decision := Classify(event)
	if decision == nil {
		return nil, nil
	}
	return decision, h.Notify(ctx, *decision, user)
}

// Notify passes an already classified decision through the gate and the
// dispatcher.
func (h *Helper) Notify(ctx context.Context, decision domain.AutomationDecision, user *domain.User) error {
	if user == nil {
		return fmt.Errorf("notifying %s: user is required", decision.Kind)
	}

	grant, err := h.gate.Resolve(ctx)
	if err != nil {
		return err
	}
	if grant == nil {
		h.logger.Debug("automation disabled, skipping dispatch", "kind", decision.Kind)
		return nil
	}

	return h.dispatcher.Dispatch(ctx, decision, *grant, user)
}
