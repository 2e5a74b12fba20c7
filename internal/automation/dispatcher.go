package automation

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/Priya8975/crm-automation-dispatch/internal/domain"
)

// Notifier performs the outbound call for one integration.
type Notifier interface {
	Notify(ctx context.Context, payload domain.NotificationPayload, user *domain.User) error
}

// Dispatcher routes a decision to the notifier registered for each
// configured integration.
type Dispatcher struct {
	notifiers map[string]Notifier
	logger    *slog.Logger
}

func NewDispatcher(notifiers map[string]Notifier, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{notifiers: notifiers, logger: logger}
}

// Dispatch notifies every integration in the grant concurrently. A failing
// integration does not stop the others; the first error is returned once
// all of them have finished.
func (d *Dispatcher) Dispatch(ctx context.Context, decision domain.AutomationDecision, grant Grant, user *domain.User) error {
	var g errgroup.Group

	for _, integration := range grant.Integrations {
		notifier, ok := d.notifiers[integration.Name]
		if !ok {
			d.logger.Debug("no notifier for integration", "integration", integration.Name)
			continue
		}

		payload := domain.NewNotificationPayload(grant.APIKey, integration, decision, user.ID)
		name := integration.Name

		g.Go(func() error {
			if err := notifier.Notify(ctx, payload, user); err != nil {
				d.logger.Error("automation notify failed",
					"integration", name,
					"kind", decision.Kind,
					"user_id", user.ID,
					"error", err,
				)
				return err
			}
			return nil
		})
	}

	return g.Wait()
}
