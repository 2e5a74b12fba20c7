package domain

const (
	IntegrationExa = "exa"
	IntegrationN8N = "n8n"
)

type IntegrationConfig struct {
	Name  string `json:"name"`
	Token string `json:"token"`
}

// NotificationPayload is the outbound body sent to one integration.
type NotificationPayload map[string]any

// NewNotificationPayload merges the decision body with the gate values.
// userId, kind and apiToken always win over body keys of the same name.
func NewNotificationPayload(apiKey any, integration IntegrationConfig, decision AutomationDecision, userID string) NotificationPayload {
	payload := make(NotificationPayload, len(decision.Body)+4)
	payload["apiKey"] = apiKey
	for k, v := range decision.Body {
		payload[k] = v
	}
	payload["userId"] = userID
	payload["kind"] = decision.Kind
	payload["apiToken"] = integration.Token
	return payload
}
