package automation

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Priya8975/crm-automation-dispatch/internal/domain"
)

// memoryConfigs is an in-memory ConfigGetter that counts lookups.
type memoryConfigs struct {
	values  map[string]any
	err     error
	lookups int
}

func (m *memoryConfigs) GetConfig(ctx context.Context, code string) (*domain.Config, error) {
	m.lookups++
	if m.err != nil {
		return nil, m.err
	}
	v, ok := m.values[code]
	if !ok {
		return nil, nil
	}
	return &domain.Config{Code: code, Value: v}, nil
}

func TestGate_NoAPIKey(t *testing.T) {
	configs := &memoryConfigs{values: map[string]any{
		domain.ConfigAPITokens: map[string]any{"exa": "tok1"},
	}}
	grant, err := NewGate(configs, GateOptions{}).Resolve(context.Background())
	require.NoError(t, err)
	assert.Nil(t, grant)
}

func TestGate_APIKeyRecordWithNullValue(t *testing.T) {
	configs := &memoryConfigs{values: map[string]any{
		domain.ConfigAPIKey:    nil,
		domain.ConfigAPITokens: map[string]any{"n8n": "t1"},
	}}
	grant, err := NewGate(configs, GateOptions{}).Resolve(context.Background())
	require.NoError(t, err)
	require.NotNil(t, grant)
	assert.Nil(t, grant.APIKey)
	assert.Equal(t, []domain.IntegrationConfig{{Name: "n8n", Token: "t1"}}, grant.Integrations)
}

func TestGate_IntegrationsSortedByName(t *testing.T) {
	configs := &memoryConfigs{values: map[string]any{
		domain.ConfigAPIKey:    "key-1",
		domain.ConfigAPITokens: map[string]any{"n8n": "tok2", "exa": "tok1", "zapier": 7},
	}}
	grant, err := NewGate(configs, GateOptions{}).Resolve(context.Background())
	require.NoError(t, err)
	require.NotNil(t, grant)

	assert.Equal(t, "key-1", grant.APIKey)
	assert.Equal(t, []domain.IntegrationConfig{
		{Name: "exa", Token: "tok1"},
		{Name: "n8n", Token: "tok2"},
		{Name: "zapier", Token: "7"},
	}, grant.Integrations)
}

func TestGate_NoTokensConfigured(t *testing.T) {
	configs := &memoryConfigs{values: map[string]any{domain.ConfigAPIKey: "key-1"}}
	grant, err := NewGate(configs, GateOptions{}).Resolve(context.Background())
	require.NoError(t, err)
	require.NotNil(t, grant)
	assert.Empty(t, grant.Integrations)
}

func TestGate_InvalidTokensValue(t *testing.T) {
	configs := &memoryConfigs{values: map[string]any{
		domain.ConfigAPIKey:    "key-1",
		domain.ConfigAPITokens: "not-an-object",
	}}
	_, err := NewGate(configs, GateOptions{}).Resolve(context.Background())
	assert.Error(t, err)
}

func TestGate_TestModeSkipsStore(t *testing.T) {
	configs := &memoryConfigs{values: map[string]any{domain.ConfigAPIKey: "key-1"}}
	grant, err := NewGate(configs, GateOptions{TestMode: true}).Resolve(context.Background())
	require.NoError(t, err)
	assert.Nil(t, grant)
	assert.Zero(t, configs.lookups)
}

func TestGate_StoreError(t *testing.T) {
	storeErr := errors.New("connection refused")
	configs := &memoryConfigs{err: storeErr}
	_, err := NewGate(configs, GateOptions{}).Resolve(context.Background())
	assert.ErrorIs(t, err, storeErr)
}
