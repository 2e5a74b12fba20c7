package domain

const TopicAutomationResponded = "automationResponded"

type AutomationResponse struct {
	Response []any `json:"response"`
}

type AutomationResponded struct {
	UserID      string `json:"userId"`
	ResponseID  string `json:"responseId"`
	SessionCode string `json:"sessionCode"`
	Content     []any  `json:"content"`
}
