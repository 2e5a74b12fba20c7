package automation

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Priya8975/crm-automation-dispatch/internal/domain"
)

// MockNotifier is a mock implementation of Notifier
type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Notify(ctx context.Context, payload domain.NotificationPayload, user *domain.User) error {
	args := m.Called(ctx, payload, user)
	return args.Error(0)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

var testUser = &domain.User{ID: "user-1", SessionCode: "sess-1"}

func dealDecision() domain.AutomationDecision {
	return domain.AutomationDecision{
		Kind: domain.KindChangeDeal,
		Body: map[string]any{"sourceStageId": "A", "destinationStageId": "B"},
	}
}

func TestDispatcher_RoutesEachIntegrationOnce(t *testing.T) {
	exa := new(MockNotifier)
	n8n := new(MockNotifier)

	exa.On("Notify", mock.Anything, mock.MatchedBy(func(p domain.NotificationPayload) bool {
		return p["apiToken"] == "tok1" && p["kind"] == domain.KindChangeDeal && p["userId"] == "user-1"
	}), testUser).Return(nil).Once()
	n8n.On("Notify", mock.Anything, mock.MatchedBy(func(p domain.NotificationPayload) bool {
		return p["apiToken"] == "tok2"
	}), testUser).Return(nil).Once()

	d := NewDispatcher(map[string]Notifier{"exa": exa, "n8n": n8n}, testLogger())
	err := d.Dispatch(context.Background(), dealDecision(), Grant{
		APIKey: "key-1",
		Integrations: []domain.IntegrationConfig{
			{Name: "exa", Token: "tok1"},
			{Name: "n8n", Token: "tok2"},
		},
	}, testUser)

	require.NoError(t, err)
	exa.AssertNumberOfCalls(t, "Notify", 1)
	n8n.AssertNumberOfCalls(t, "Notify", 1)
}

func TestDispatcher_IgnoresUnknownIntegrations(t *testing.T) {
	exa := new(MockNotifier)
	exa.On("Notify", mock.Anything, mock.Anything, testUser).Return(nil)

	d := NewDispatcher(map[string]Notifier{"exa": exa}, testLogger())
	err := d.Dispatch(context.Background(), dealDecision(), Grant{
		APIKey: "key-1",
		Integrations: []domain.IntegrationConfig{
			{Name: "exa", Token: "tok1"},
			{Name: "zapier", Token: "tok3"},
		},
	}, testUser)

	require.NoError(t, err)
	exa.AssertNumberOfCalls(t, "Notify", 1)
}

func TestDispatcher_FailureDoesNotStopOthers(t *testing.T) {
	publishErr := errors.New("redis down")
	exa := new(MockNotifier)
	n8n := new(MockNotifier)
	exa.On("Notify", mock.Anything, mock.Anything, testUser).Return(publishErr)
	n8n.On("Notify", mock.Anything, mock.Anything, testUser).Return(nil)

	d := NewDispatcher(map[string]Notifier{"exa": exa, "n8n": n8n}, testLogger())
	err := d.Dispatch(context.Background(), dealDecision(), Grant{
		APIKey: "key-1",
		Integrations: []domain.IntegrationConfig{
			{Name: "exa", Token: "tok1"},
			{Name: "n8n", Token: "tok2"},
		},
	}, testUser)

	assert.ErrorIs(t, err, publishErr)
	n8n.AssertNumberOfCalls(t, "Notify", 1)
}

func TestDispatcher_NoIntegrations(t *testing.T) {
	d := NewDispatcher(map[string]Notifier{}, testLogger())
	assert.NoError(t, d.Dispatch(context.Background(), dealDecision(), Grant{APIKey: "key-1"}, testUser))
}
