package automation

import (
	"context"
	"fmt"
	"sort"

	"github.com/Priya8975/crm-automation-dispatch/internal/domain"
)

// ConfigGetter reads a single configuration record. A missing record is
// reported as (nil, nil).
type ConfigGetter interface {
	GetConfig(ctx context.Context, code string) (*domain.Config, error)
}

// Grant is what the gate hands to the dispatcher when automation is enabled.
type Grant struct {
	APIKey       any
	Integrations []domain.IntegrationConfig
}

type GateOptions struct {
	// TestMode disables every outbound call. The store is not consulted.
	TestMode bool
}

// Gate decides whether automation is enabled and which integrations to call.
type Gate struct {
	configs  ConfigGetter
	testMode bool
}

func NewGate(configs ConfigGetter, opts GateOptions) *Gate {
	return &Gate{configs: configs, testMode: opts.TestMode}
}

// Resolve returns nil when automation is disabled: test mode, or no API_KEY
// configured.
func (g *Gate) Resolve(ctx context.Context) (*Grant, error) {
	if g.testMode {
		return nil, nil
	}

	apiKey, err := g.configs.GetConfig(ctx, domain.ConfigAPIKey)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", domain.ConfigAPIKey, err)
	}
	if apiKey == nil {
		return nil, nil
	}

	tokens, err := g.configs.GetConfig(ctx, domain.ConfigAPITokens)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", domain.ConfigAPITokens, err)
	}

	grant := &Grant{APIKey: apiKey.Value}
	if tokens != nil {
		grant.Integrations, err = parseIntegrations(tokens.Value)
		if err != nil {
			return nil, err
		}
	}
	return grant, nil
}

// parseIntegrations turns the API_TOKENS value (name -> token) into a list
// sorted by name.
func parseIntegrations(value any) ([]domain.IntegrationConfig, error) {
	var integrations []domain.IntegrationConfig

	switch v := value.(type) {
	case nil:
		return nil, nil
	case map[string]string:
		for name, token := range v {
			integrations = append(integrations, domain.IntegrationConfig{Name: name, Token: token})
		}
	case map[string]any:
		for name, token := range v {
			integrations = append(integrations, domain.IntegrationConfig{Name: name, Token: tokenString(token)})
		}
	default:
		return nil, fmt.Errorf("%s must be an object, got %T", domain.ConfigAPITokens, value)
	}

	sort.Slice(integrations, func(i, j int) bool {
		return integrations[i].Name < integrations[j].Name
	})
	return integrations, nil
}

func tokenString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	default:
		return fmt.Sprint(t)
	}
}
